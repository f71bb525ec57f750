package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"planpilot/internal/config"
	"planpilot/internal/database"
	"planpilot/internal/llm"
	"planpilot/internal/models"
	"planpilot/internal/services"
	"planpilot/internal/session"
)

type scriptedProvider struct {
	reply  string
	before func()
}

func (p *scriptedProvider) Chat(ctx context.Context, messages []llm.Message, cfg llm.Config) (*llm.Response, error) {
	if p.before != nil {
		p.before()
	}
	return &llm.Response{Content: p.reply}, nil
}

func (p *scriptedProvider) Name() string { return "scripted" }

type testEnv struct {
	app      *fiber.App
	chat     *services.ChatService
	projects *services.ProjectService
	registry *session.Registry
}

func setupTestApp(t *testing.T, provider llm.Provider) *testEnv {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test_handlers.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	if err := db.Initialize(); err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		HistoryLimit:    5,
		HistoryCacheTTL: time.Minute,
		SessionMaxAge:   time.Hour,
	}
	registry := session.NewRegistry()
	projects := services.NewProjectService(db)
	chat := services.NewChatService(db, cfg, registry, provider, projects)
	extraction := services.NewExtractionService(provider)

	app := fiber.New()

	healthHandler := NewHealthHandler(registry)
	chatHandler := NewChatHandler(chat, extraction)
	projectHandler := NewProjectHandler(projects)
	categoryHandler := NewCategoryHandler(projects)

	app.Get("/health", healthHandler.Handle)

	api := app.Group("/api")
	api.Post("/chat/messages", chatHandler.SendMessage)
	api.Get("/chat/sessions", chatHandler.ListSessions)
	api.Post("/chat/sessions", chatHandler.CreateSession)
	api.Post("/chat/sessions/batch-delete", chatHandler.BatchDeleteSessions)
	api.Put("/chat/sessions/:id", chatHandler.RenameSession)
	api.Delete("/chat/sessions/:id", chatHandler.DeleteSession)
	api.Get("/chat/sessions/:id/messages", chatHandler.GetHistory)
	api.Delete("/chat/sessions/:id/messages", chatHandler.ClearHistory)
	api.Post("/chat/sessions/:id/abort", chatHandler.AbortSession)

	api.Get("/projects", projectHandler.List)
	api.Post("/projects", projectHandler.Create)
	api.Get("/projects/:id", projectHandler.Get)
	api.Put("/projects/:id", projectHandler.Update)
	api.Delete("/projects/:id", projectHandler.Delete)
	api.Post("/projects/:id/refresh", projectHandler.Refresh)
	api.Post("/projects/:id/tasks/:taskId/move", projectHandler.MoveTask)

	api.Get("/categories", categoryHandler.List)
	api.Post("/categories", categoryHandler.Create)
	api.Post("/categories/assign", categoryHandler.Assign)
	api.Delete("/categories/:name", categoryHandler.Delete)

	return &testEnv{app: app, chat: chat, projects: projects, registry: registry}
}

func postJSON(t *testing.T, app *fiber.App, path string, body interface{}) (map[string]interface{}, int) {
	t.Helper()
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, 10000)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	var result map[string]interface{}
	json.Unmarshal(data, &result)
	return result, resp.StatusCode
}

func TestHealthHandler(t *testing.T) {
	env := setupTestApp(t, nil)

	req := httptest.NewRequest("GET", "/health", nil)
	resp, err := env.app.Test(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("Failed to parse JSON: %v", err)
	}
	if result["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", result["status"])
	}
}

func TestSendMessageExecutesInstruction(t *testing.T) {
	provider := &scriptedProvider{reply: "Creating it.\n```json\n" +
		`{"intent": "create_project", "data": {"project_name": "Alpha"}}` + "\n```"}
	env := setupTestApp(t, provider)

	result, status := postJSON(t, env.app, "/api/chat/messages",
		map[string]string{"session_id": "s1", "message": "create Alpha"})
	if status != fiber.StatusOK {
		t.Fatalf("Expected status 200, got %d: %v", status, result)
	}
	if result["instructions_executed"].(float64) != 1 {
		t.Errorf("Expected 1 executed instruction, got %v", result["instructions_executed"])
	}

	if q := env.projects.QueryProject("Alpha"); !q.Success {
		t.Errorf("Project not created: %s", q.Message)
	}
}

func TestSendMessageSupersededReturns409(t *testing.T) {
	provider := &scriptedProvider{reply: "Done."}
	env := setupTestApp(t, provider)
	// A newer message for the session lands while the LLM call is in flight.
	provider.before = func() { env.registry.IssueChatToken("s1") }

	result, status := postJSON(t, env.app, "/api/chat/messages",
		map[string]string{"session_id": "s1", "message": "hello"})
	if status != fiber.StatusConflict {
		t.Fatalf("Expected status 409, got %d: %v", status, result)
	}
	if result["is_outdated"] != true {
		t.Errorf("Expected is_outdated true, got %v", result)
	}
}

func TestSendMessageValidation(t *testing.T) {
	env := setupTestApp(t, nil)

	_, status := postJSON(t, env.app, "/api/chat/messages", map[string]string{"session_id": "s1"})
	if status != fiber.StatusBadRequest {
		t.Errorf("Expected status 400 for missing message, got %d", status)
	}
}

func TestProjectCRUDOverHTTP(t *testing.T) {
	env := setupTestApp(t, nil)

	created, status := postJSON(t, env.app, "/api/projects", models.ProjectPayload{
		ProjectName: "Alpha",
		Tasks:       []models.TaskPayload{{Name: "T1"}},
	})
	if status != fiber.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %v", status, created)
	}

	dup, status := postJSON(t, env.app, "/api/projects", models.ProjectPayload{ProjectName: "Alpha"})
	if status != fiber.StatusConflict {
		t.Fatalf("Expected status 409 for duplicate, got %d: %v", status, dup)
	}

	req := httptest.NewRequest("GET", "/api/projects", nil)
	resp, err := env.app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	var list map[string]interface{}
	json.Unmarshal(body, &list)
	if list["total"].(float64) != 1 {
		t.Fatalf("Expected 1 project, got %v", list["total"])
	}

	projects := list["projects"].([]interface{})
	id := int(projects[0].(map[string]interface{})["id"].(float64))

	req = httptest.NewRequest("GET", "/api/projects/"+strconv.Itoa(id), nil)
	resp, err = env.app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest("DELETE", "/api/projects/"+strconv.Itoa(id), nil)
	resp, err = env.app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected status 200 on delete, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest("GET", "/api/projects/"+strconv.Itoa(id), nil)
	resp, _ = env.app.Test(req)
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("Expected status 404 after delete, got %d", resp.StatusCode)
	}
}

func TestCategoryAssignSuggestionsOverHTTP(t *testing.T) {
	env := setupTestApp(t, nil)
	env.projects.CreateProject(models.ProjectPayload{ProjectName: "Website Redesign"})
	env.projects.CreateCategory(models.CategoryPayload{CategoryName: "Internal Tools"})

	result, status := postJSON(t, env.app, "/api/categories/assign",
		map[string]string{"project_name": "Website", "category_name": "Internal Tools"})
	if status != fiber.StatusNotFound {
		t.Fatalf("Expected status 404, got %d: %v", status, result)
	}
	data := result["data"].(map[string]interface{})
	suggestions := data["suggestions"].([]interface{})
	if len(suggestions) != 1 || suggestions[0] != "Website Redesign" {
		t.Fatalf("Expected suggestion list, got %v", suggestions)
	}
}

func TestSessionEndpoints(t *testing.T) {
	provider := &scriptedProvider{reply: "Hi."}
	env := setupTestApp(t, provider)

	created, status := postJSON(t, env.app, "/api/chat/sessions", map[string]string{"name": "Plan"})
	if status != fiber.StatusCreated {
		t.Fatalf("Expected status 201, got %d", status)
	}
	sessionID := created["session_id"].(string)

	postJSON(t, env.app, "/api/chat/messages", map[string]string{"session_id": sessionID, "message": "hello"})

	req := httptest.NewRequest("GET", "/api/chat/sessions/"+sessionID+"/messages", nil)
	resp, err := env.app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	var history map[string]interface{}
	json.Unmarshal(body, &history)
	if msgs := history["messages"].([]interface{}); len(msgs) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(msgs))
	}

	result, status := postJSON(t, env.app, "/api/chat/sessions/batch-delete",
		map[string][]string{"session_ids": {sessionID}})
	if status != fiber.StatusOK || result["deleted"].(float64) != 1 {
		t.Fatalf("Expected 1 deleted, got %d: %v", status, result)
	}
}

