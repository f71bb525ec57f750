package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"planpilot/internal/services"
	"planpilot/internal/session"
)

// ChatHandler serves the chat turn endpoint and session management.
type ChatHandler struct {
	chat       *services.ChatService
	extraction *services.ExtractionService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chat *services.ChatService, extraction *services.ExtractionService) *ChatHandler {
	return &ChatHandler{chat: chat, extraction: extraction}
}

// SendMessage handles POST /api/chat/messages
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	var req struct {
		SessionID string `json:"session_id"`
		Message   string `json:"message"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Message is required"})
	}

	result, err := h.chat.ProcessMessage(c.Context(), req.SessionID, req.Message)
	if err != nil {
		log.Printf("❌ [CHAT] Turn failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process message"})
	}

	if result.Superseded {
		// A newer message for this session replaced the turn mid-flight.
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"is_outdated": true,
			"session_id":  result.SessionID,
		})
	}

	return c.JSON(result)
}

// AbortSession handles POST /api/chat/sessions/:id/abort
func (h *ChatHandler) AbortSession(c *fiber.Ctx) error {
	sessionID := c.Params("id")
	cancelled := h.chat.Registry().Cancel(sessionID, session.ScopeChat)
	return c.JSON(fiber.Map{"cancelled": cancelled})
}

// GetHistory handles GET /api/chat/sessions/:id/messages
func (h *ChatHandler) GetHistory(c *fiber.Ctx) error {
	sessionID := c.Params("id")
	limit := c.QueryInt("limit", 50)

	turns, err := h.chat.History(sessionID, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load history"})
	}
	return c.JSON(fiber.Map{"session_id": sessionID, "messages": turns})
}

// ClearHistory handles DELETE /api/chat/sessions/:id/messages
func (h *ChatHandler) ClearHistory(c *fiber.Ctx) error {
	if err := h.chat.ClearHistory(c.Params("id")); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to clear history"})
	}
	return c.JSON(fiber.Map{"success": true})
}

// CreateSession handles POST /api/chat/sessions
func (h *ChatHandler) CreateSession(c *fiber.Ctx) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	info, err := h.chat.CreateSession(req.Name)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create session"})
	}
	return c.Status(fiber.StatusCreated).JSON(info)
}

// ListSessions handles GET /api/chat/sessions
func (h *ChatHandler) ListSessions(c *fiber.Ctx) error {
	sessions, err := h.chat.ListSessions()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list sessions"})
	}
	return c.JSON(fiber.Map{"sessions": sessions})
}

// RenameSession handles PUT /api/chat/sessions/:id
func (h *ChatHandler) RenameSession(c *fiber.Ctx) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil || req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Name is required"})
	}

	if err := h.chat.RenameSession(c.Params("id"), req.Name); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	}
	return c.JSON(fiber.Map{"success": true})
}

// DeleteSession handles DELETE /api/chat/sessions/:id
func (h *ChatHandler) DeleteSession(c *fiber.Ctx) error {
	if err := h.chat.DeleteSession(c.Params("id")); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete session"})
	}
	return c.JSON(fiber.Map{"success": true})
}

// BatchDeleteSessions handles POST /api/chat/sessions/batch-delete
func (h *ChatHandler) BatchDeleteSessions(c *fiber.Ctx) error {
	var req struct {
		SessionIDs []string `json:"session_ids"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if len(req.SessionIDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "session_ids is required"})
	}

	deleted, err := h.chat.DeleteSessions(req.SessionIDs)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete sessions"})
	}
	return c.JSON(fiber.Map{"deleted": deleted})
}

// ExtractInstructions handles POST /api/chat/extract
func (h *ChatHandler) ExtractInstructions(c *fiber.Ctx) error {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil || req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Text is required"})
	}

	instructions, err := h.extraction.Extract(c.Context(), req.Text)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to extract instructions"})
	}
	return c.JSON(fiber.Map{"instructions": instructions})
}
