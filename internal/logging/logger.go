package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog logger.
// In production (ENVIRONMENT=production) it uses JSON output for log aggregation.
// Otherwise it uses the human-readable text handler.
func Init() {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	slog.SetDefault(slog.New(handler))
}

// WithTurn returns a logger with chat-turn context fields attached.
// Use this for all logging within a single chat turn's processing.
func WithTurn(sessionID, requestToken string) *slog.Logger {
	return slog.With(
		"session_id", sessionID,
		"request_token", requestToken,
	)
}

// WithInstruction returns a logger scoped to one instruction within a turn.
func WithInstruction(logger *slog.Logger, index int, intent string) *slog.Logger {
	return logger.With(
		"instruction_index", index,
		"intent", intent,
	)
}
