package handlers

import (
	"github.com/gofiber/fiber/v2"

	"planpilot/internal/models"
	"planpilot/internal/services"
)

// CategoryHandler serves project category CRUD.
type CategoryHandler struct {
	projects *services.ProjectService
}

// NewCategoryHandler creates a new category handler
func NewCategoryHandler(projects *services.ProjectService) *CategoryHandler {
	return &CategoryHandler{projects: projects}
}

// List handles GET /api/categories
func (h *CategoryHandler) List(c *fiber.Ctx) error {
	categories, err := h.projects.ListCategories()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list categories"})
	}
	return c.JSON(fiber.Map{"categories": categories})
}

// Create handles POST /api/categories
func (h *CategoryHandler) Create(c *fiber.Ctx) error {
	var payload models.CategoryPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	result := h.projects.CreateCategory(payload)
	if !result.Success {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": result.Message})
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// Update handles PUT /api/categories/:name
func (h *CategoryHandler) Update(c *fiber.Ctx) error {
	var payload models.CategoryPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	payload.CategoryName = c.Params("name")

	result := h.projects.UpdateCategory(payload)
	if !result.Success {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": result.Message})
	}
	return c.JSON(result)
}

// Delete handles DELETE /api/categories/:name
func (h *CategoryHandler) Delete(c *fiber.Ctx) error {
	result := h.projects.DeleteCategory(c.Params("name"))
	if !result.Success {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": result.Message})
	}
	return c.JSON(result)
}

// Assign handles POST /api/categories/assign
func (h *CategoryHandler) Assign(c *fiber.Ctx) error {
	var req struct {
		ProjectName  string `json:"project_name"`
		CategoryName string `json:"category_name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	result := h.projects.AssignCategory(req.ProjectName, req.CategoryName)
	if !result.Success {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": result.Message,
			"data":  result.Data,
		})
	}
	return c.JSON(result)
}
