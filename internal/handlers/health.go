package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"planpilot/internal/session"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	registry *session.Registry
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(registry *session.Registry) *HealthHandler {
	return &HealthHandler{registry: registry}
}

// Handle responds with server health status
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	sessions, requests := h.registry.Stats()
	return c.JSON(fiber.Map{
		"status":          "healthy",
		"active_sessions": sessions,
		"active_requests": requests,
		"timestamp":       time.Now().Format(time.RFC3339),
	})
}
