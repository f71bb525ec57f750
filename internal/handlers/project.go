package handlers

import (
	"github.com/gofiber/fiber/v2"

	"planpilot/internal/models"
	"planpilot/internal/services"
)

// ProjectHandler serves project and task CRUD over REST.
type ProjectHandler struct {
	projects *services.ProjectService
}

// NewProjectHandler creates a new project handler
func NewProjectHandler(projects *services.ProjectService) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

// List handles GET /api/projects
func (h *ProjectHandler) List(c *fiber.Ctx) error {
	status := c.Query("status")
	page := c.QueryInt("page", 1)
	pageSize := c.QueryInt("page_size", 20)

	projects, total, err := h.projects.ListProjects(status, page, pageSize)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list projects"})
	}
	return c.JSON(fiber.Map{
		"projects": projects,
		"total":    total,
		"page":     page,
	})
}

// Get handles GET /api/projects/:id
func (h *ProjectHandler) Get(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid project ID"})
	}

	project, err := h.projects.GetProjectByID(int64(id))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load project"})
	}
	if project == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Project not found"})
	}
	return c.JSON(project)
}

// Create handles POST /api/projects
func (h *ProjectHandler) Create(c *fiber.Ctx) error {
	var payload models.ProjectPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	result := h.projects.CreateProject(payload)
	if !result.Success {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": result.Message})
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// Update handles PUT /api/projects/:id
func (h *ProjectHandler) Update(c *fiber.Ctx) error {
	project, status, errResp := h.lookup(c)
	if project == nil {
		return c.Status(status).JSON(errResp)
	}

	var payload models.ProjectPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	payload.ProjectName = project.Name

	result := h.projects.UpdateProject(payload)
	if !result.Success {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": result.Message})
	}
	return c.JSON(result)
}

// Delete handles DELETE /api/projects/:id
func (h *ProjectHandler) Delete(c *fiber.Ctx) error {
	project, status, errResp := h.lookup(c)
	if project == nil {
		return c.Status(status).JSON(errResp)
	}

	result := h.projects.DeleteProject(project.Name)
	if !result.Success {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": result.Message})
	}
	return c.JSON(result)
}

// Refresh handles POST /api/projects/:id/refresh
func (h *ProjectHandler) Refresh(c *fiber.Ctx) error {
	project, status, errResp := h.lookup(c)
	if project == nil {
		return c.Status(status).JSON(errResp)
	}

	result := h.projects.RefreshProject(project.Name)
	if !result.Success {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": result.Message})
	}
	return c.JSON(result)
}

// MoveTask handles POST /api/projects/:id/tasks/:taskId/move
func (h *ProjectHandler) MoveTask(c *fiber.Ctx) error {
	projectID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid project ID"})
	}
	taskID, err := c.ParamsInt("taskId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid task ID"})
	}

	var req struct {
		Direction string `json:"direction"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	result := h.projects.MoveTask(int64(projectID), int64(taskID), req.Direction)
	if !result.Success {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": result.Message})
	}
	return c.JSON(result)
}

// lookup resolves the :id route param to a project, returning the status and
// error body to send when it cannot.
func (h *ProjectHandler) lookup(c *fiber.Ctx) (*models.Project, int, fiber.Map) {
	id, err := c.ParamsInt("id")
	if err != nil {
		return nil, fiber.StatusBadRequest, fiber.Map{"error": "Invalid project ID"}
	}
	project, err := h.projects.GetProjectByID(int64(id))
	if err != nil {
		return nil, fiber.StatusInternalServerError, fiber.Map{"error": "Failed to load project"}
	}
	if project == nil {
		return nil, fiber.StatusNotFound, fiber.Map{"error": "Project not found"}
	}
	return project, fiber.StatusOK, nil
}
