package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"planpilot/internal/config"
	"planpilot/internal/database"
	"planpilot/internal/extractor"
	"planpilot/internal/llm"
	"planpilot/internal/logging"
	"planpilot/internal/models"
	"planpilot/internal/session"
)

const fallbackReply = "I'm sorry, I couldn't reach the language model just now. Please try again in a moment."

// ChatService runs the full chat turn pipeline: issue a request token, call
// the LLM with project context and history, extract instructions, decide on
// confirmation, execute, then persist only if the turn is still current.
type ChatService struct {
	db       *database.DB
	cfg      *config.Config
	registry *session.Registry
	provider llm.Provider
	projects *ProjectService
	executor *Executor

	// history caches the last-N conversation turns per session so repeat
	// turns in an active session skip the DB read.
	history *cache.Cache
}

// NewChatService creates a new chat service
func NewChatService(db *database.DB, cfg *config.Config, registry *session.Registry, provider llm.Provider, projects *ProjectService) *ChatService {
	return &ChatService{
		db:       db,
		cfg:      cfg,
		registry: registry,
		provider: provider,
		projects: projects,
		executor: NewExecutor(projects),
		history:  cache.New(cfg.HistoryCacheTTL, cfg.HistoryCacheTTL*2),
	}
}

// Registry exposes the request registry for the HTTP layer (abort endpoint).
func (s *ChatService) Registry() *session.Registry {
	return s.registry
}

// ProcessMessage runs one chat turn. A Superseded result means a newer turn
// arrived for the session while this one was in flight; nothing was persisted
// and no instructions' effects were reported to the user.
func (s *ChatService) ProcessMessage(ctx context.Context, sessionID, userMessage string) (*models.ChatResult, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if strings.TrimSpace(userMessage) == "" {
		return nil, fmt.Errorf("message must not be empty")
	}

	chatRequestsTotal.Inc()
	started := time.Now()
	defer func() { chatTurnDuration.Observe(time.Since(started).Seconds()) }()

	token := s.registry.IssueChatToken(sessionID)
	logger := logging.WithTurn(sessionID, token)
	logger.Info("chat turn started")

	content, err := s.complete(ctx, sessionID, userMessage)
	if err != nil {
		logger.Warn("LLM call failed, using fallback reply", "error", err)
		content = fallbackReply
	}

	instructions := extractor.Extract(content)
	needsConfirmation := extractor.RequiresConfirmation(instructions, content)

	executed := 0
	if !needsConfirmation {
		outcomes, appended := s.executor.Execute(instructions)
		recordOutcomes(outcomes)
		executed = len(outcomes)
		content += appended
	} else {
		logger.Info("instructions held for confirmation", "count", len(instructions))
	}

	// Staleness gate: everything above is side effects we already committed
	// to (domain ops are not rolled back), but the conversation itself is
	// only persisted for the current turn.
	if s.registry.IsChatStale(sessionID, token) {
		chatSupersededTotal.Inc()
		logger.Info("chat turn superseded, discarding reply")
		return &models.ChatResult{SessionID: sessionID, Superseded: true}, nil
	}

	messageID, err := s.persistTurn(sessionID, userMessage, content)
	if err != nil {
		return nil, fmt.Errorf("failed to persist chat turn: %w", err)
	}
	s.history.Delete(sessionID)

	logger.Info("chat turn completed", "instructions_executed", executed, "requires_confirmation", needsConfirmation)

	return &models.ChatResult{
		MessageID:            messageID,
		SessionID:            sessionID,
		Content:              content,
		RequiresConfirmation: needsConfirmation,
		InstructionsExecuted: executed,
	}, nil
}

// complete builds the prompt and calls the provider. With no provider
// configured the pipeline still works end to end on the fallback reply.
func (s *ChatService) complete(ctx context.Context, sessionID, userMessage string) (string, error) {
	if s.provider == nil {
		return "", fmt.Errorf("no LLM provider configured")
	}

	messages := []llm.Message{{Role: "system", Content: s.systemPrompt()}}
	for _, turn := range s.recentHistory(sessionID) {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: userMessage})

	resp, err := s.provider.Chat(ctx, messages, llm.Config{Temperature: 0.7})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// systemPrompt assembles the instruction-format contract plus a snapshot of
// current projects and categories so the model grounds its answers in real
// state.
func (s *ChatService) systemPrompt() string {
	var b strings.Builder

	b.WriteString("You are a project management assistant. Today is ")
	b.WriteString(time.Now().Format("2006-01-02"))
	b.WriteString(".\n\n")
	b.WriteString("When the user asks you to change project data, reply with a short explanation ")
	b.WriteString("followed by a ```json fenced block containing instructions. Each instruction is an ")
	b.WriteString("object with \"intent\", \"data\", and optional \"requires_confirmation\". ")
	b.WriteString("Supported intents: create_project, update_project, delete_project, query_project, ")
	b.WriteString("refresh_project_status, create_task, update_task, delete_task, create_category, ")
	b.WriteString("update_category, delete_category, query_category, assign_category.\n")
	b.WriteString("Set \"requires_confirmation\": true for destructive operations and wait for the ")
	b.WriteString("user's explicit confirmation before re-issuing them without the flag.\n")
	b.WriteString("Dates use YYYY-MM-DD. Priorities are high, medium or low.\n")

	if projects, _, err := s.projects.ListProjects("", 1, 50); err == nil && len(projects) > 0 {
		b.WriteString("\nCurrent projects:\n")
		for _, p := range projects {
			fmt.Fprintf(&b, "- %s (status %s, progress %.0f%%, %d task(s))\n",
				p.Name, p.Status, p.Progress, p.TaskCount)
		}
	}
	if categories, err := s.projects.ListCategories(); err == nil && len(categories) > 0 {
		b.WriteString("\nCurrent categories:\n")
		for _, c := range categories {
			fmt.Fprintf(&b, "- %s (%d project(s))\n", c.Name, c.ProjectCount)
		}
	}

	return b.String()
}

// recentHistory returns the last-N turns for a session, cached.
func (s *ChatService) recentHistory(sessionID string) []models.Conversation {
	if cached, ok := s.history.Get(sessionID); ok {
		return cached.([]models.Conversation)
	}

	turns, err := s.History(sessionID, s.cfg.HistoryLimit*2)
	if err != nil {
		log.Printf("⚠️ [CHAT] Failed to load history for %s: %v", sessionID, err)
		return nil
	}

	s.history.Set(sessionID, turns, cache.DefaultExpiration)
	return turns
}

// persistTurn stores the user and assistant messages and touches the
// session_info row. Returns the assistant message's row ID.
func (s *ChatService) persistTurn(sessionID, userMessage, reply string) (int64, error) {
	now := time.Now()

	if err := s.ensureSession(sessionID, userMessage); err != nil {
		return 0, err
	}

	if _, err := s.db.Exec(
		"INSERT INTO conversations (session_id, role, content, timestamp) VALUES (?, 'user', ?, ?)",
		sessionID, userMessage, now); err != nil {
		return 0, err
	}

	res, err := s.db.Exec(
		"INSERT INTO conversations (session_id, role, content, timestamp) VALUES (?, 'assistant', ?, ?)",
		sessionID, reply, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ensureSession creates the session_info row on first contact, naming the
// session after the opening message.
func (s *ChatService) ensureSession(sessionID, firstMessage string) error {
	var id int64
	err := s.db.QueryRow("SELECT id FROM session_info WHERE session_id = ?", sessionID).Scan(&id)
	if err == nil {
		_, err = s.db.Exec("UPDATE session_info SET updated_at = ? WHERE id = ?", time.Now(), id)
		return err
	}
	if err != sql.ErrNoRows {
		return err
	}

	name := firstMessage
	if runes := []rune(name); len(runes) > 30 {
		name = string(runes[:30])
	}
	now := time.Now()
	_, err = s.db.Exec(
		"INSERT INTO session_info (session_id, name, created_at, updated_at) VALUES (?, ?, ?, ?)",
		sessionID, name, now, now)
	return err
}

// --- session management ---

// History returns up to limit turns for a session in chronological order.
func (s *ChatService) History(sessionID string, limit int) ([]models.Conversation, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, session_id, role, content, timestamp FROM (
			SELECT id, session_id, role, content, timestamp
			FROM conversations WHERE session_id = ?
			ORDER BY id DESC LIMIT ?
		) recent ORDER BY id ASC`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []models.Conversation
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(&c.ID, &c.SessionID, &c.Role, &c.Content, &c.Timestamp); err != nil {
			return nil, err
		}
		turns = append(turns, c)
	}
	return turns, rows.Err()
}

// ClearHistory deletes a session's conversation rows but keeps the session.
func (s *ChatService) ClearHistory(sessionID string) error {
	if _, err := s.db.Exec("DELETE FROM conversations WHERE session_id = ?", sessionID); err != nil {
		return err
	}
	s.history.Delete(sessionID)
	return nil
}

// CreateSession registers a new named session and returns its ID.
func (s *ChatService) CreateSession(name string) (*models.SessionInfo, error) {
	info := &models.SessionInfo{
		SessionID: uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	res, err := s.db.Exec(
		"INSERT INTO session_info (session_id, name, created_at, updated_at) VALUES (?, ?, ?, ?)",
		info.SessionID, nullStr(name), info.CreatedAt, info.UpdatedAt)
	if err != nil {
		return nil, err
	}
	info.ID, _ = res.LastInsertId()
	return info, nil
}

// ListSessions returns all sessions, most recently active first.
func (s *ChatService) ListSessions() ([]models.SessionInfo, error) {
	rows, err := s.db.Query(
		"SELECT id, session_id, name, created_at, updated_at FROM session_info ORDER BY updated_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.SessionInfo
	for rows.Next() {
		var info models.SessionInfo
		var name sql.NullString
		if err := rows.Scan(&info.ID, &info.SessionID, &name, &info.CreatedAt, &info.UpdatedAt); err != nil {
			return nil, err
		}
		info.Name = name.String
		sessions = append(sessions, info)
	}
	return sessions, rows.Err()
}

// RenameSession updates a session's display name.
func (s *ChatService) RenameSession(sessionID, name string) error {
	res, err := s.db.Exec(
		"UPDATE session_info SET name = ?, updated_at = ? WHERE session_id = ?",
		name, time.Now(), sessionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s does not exist", sessionID)
	}
	return nil
}

// DeleteSession removes a session, its conversation and its request slots.
func (s *ChatService) DeleteSession(sessionID string) error {
	if _, err := s.db.Exec("DELETE FROM conversations WHERE session_id = ?", sessionID); err != nil {
		return err
	}
	if _, err := s.db.Exec("DELETE FROM session_info WHERE session_id = ?", sessionID); err != nil {
		return err
	}
	s.registry.ClearSession(sessionID)
	s.history.Delete(sessionID)
	return nil
}

// DeleteSessions removes several sessions at once and reports how many were
// deleted. A missing session is not an error.
func (s *ChatService) DeleteSessions(sessionIDs []string) (int, error) {
	deleted := 0
	for _, id := range sessionIDs {
		if id == "" {
			continue
		}
		res, err := s.db.Exec("DELETE FROM session_info WHERE session_id = ?", id)
		if err != nil {
			return deleted, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			deleted++
		}
		if _, err := s.db.Exec("DELETE FROM conversations WHERE session_id = ?", id); err != nil {
			return deleted, err
		}
		s.registry.ClearSession(id)
		s.history.Delete(id)
	}
	return deleted, nil
}
