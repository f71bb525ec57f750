package services

import (
	"context"
	"testing"
	"time"

	"planpilot/internal/config"
	"planpilot/internal/llm"
	"planpilot/internal/models"
	"planpilot/internal/session"
)

// fakeProvider returns a scripted reply, with an optional hook that runs
// before returning (used to simulate a competing request mid-flight).
type fakeProvider struct {
	reply  string
	err    error
	before func()
}

func (f *fakeProvider) Chat(ctx context.Context, messages []llm.Message, cfg llm.Config) (*llm.Response, error) {
	if f.before != nil {
		f.before()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Content: f.reply}, nil
}

func (f *fakeProvider) Name() string { return "fake" }

func testConfig() *config.Config {
	return &config.Config{
		HistoryLimit:    5,
		HistoryCacheTTL: time.Minute,
		SessionMaxAge:   time.Hour,
	}
}

func newTestChatService(t *testing.T, provider llm.Provider) *ChatService {
	t.Helper()
	db := newTestDB(t)
	return NewChatService(db, testConfig(), session.NewRegistry(), provider, NewProjectService(db))
}

func TestProcessMessageExecutesInstructions(t *testing.T) {
	provider := &fakeProvider{reply: "Creating that project now.\n```json\n" +
		`{"intent": "create_project", "data": {"project_name": "Alpha"}}` + "\n```"}
	svc := newTestChatService(t, provider)

	result, err := svc.ProcessMessage(context.Background(), "s1", "create a project called Alpha")
	if err != nil {
		t.Fatal(err)
	}
	if result.Superseded {
		t.Fatal("unexpected superseded result")
	}
	if result.InstructionsExecuted != 1 {
		t.Fatalf("expected 1 executed instruction, got %d", result.InstructionsExecuted)
	}
	if result.RequiresConfirmation {
		t.Fatal("no confirmation expected")
	}

	q := svc.projects.QueryProject("Alpha")
	if !q.Success {
		t.Fatalf("project not created: %s", q.Message)
	}

	// Both turns persisted.
	turns, err := svc.History("s1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 2 || turns[0].Role != "user" || turns[1].Role != "assistant" {
		t.Fatalf("expected persisted user+assistant turns, got %d", len(turns))
	}
}

func TestProcessMessageHoldsForConfirmation(t *testing.T) {
	provider := &fakeProvider{reply: "This will delete the project. Please confirm.\n```json\n" +
		`{"intent": "delete_project", "data": {"project_name": "Alpha"}, "requires_confirmation": true}` + "\n```"}
	svc := newTestChatService(t, provider)
	svc.projects.CreateProject(models.ProjectPayload{ProjectName: "Alpha"})

	result, err := svc.ProcessMessage(context.Background(), "s1", "delete Alpha")
	if err != nil {
		t.Fatal(err)
	}
	if !result.RequiresConfirmation {
		t.Fatal("expected confirmation request")
	}
	if result.InstructionsExecuted != 0 {
		t.Fatalf("held instructions must not execute, got %d", result.InstructionsExecuted)
	}
	if q := svc.projects.QueryProject("Alpha"); !q.Success {
		t.Fatal("project must survive an unconfirmed delete")
	}
}

func TestProcessMessageSuperseded(t *testing.T) {
	svc := newTestChatService(t, nil)
	provider := &fakeProvider{
		reply: "Done.",
		before: func() {
			// A newer request lands while this one is waiting on the LLM.
			svc.registry.IssueChatToken("s1")
		},
	}
	svc.provider = provider

	result, err := svc.ProcessMessage(context.Background(), "s1", "hello")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Superseded {
		t.Fatal("expected superseded result")
	}

	turns, err := svc.History("s1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 0 {
		t.Fatalf("superseded turn must not persist, got %d rows", len(turns))
	}
}

func TestProcessMessageFallbackWithoutProvider(t *testing.T) {
	svc := newTestChatService(t, nil)

	result, err := svc.ProcessMessage(context.Background(), "s1", "hello")
	if err != nil {
		t.Fatal(err)
	}
	if result.Content != fallbackReply {
		t.Fatalf("expected fallback reply, got %q", result.Content)
	}
	if result.InstructionsExecuted != 0 {
		t.Fatal("fallback reply must not execute instructions")
	}
}

func TestProcessMessageGeneratesSessionID(t *testing.T) {
	svc := newTestChatService(t, &fakeProvider{reply: "Hi."})

	result, err := svc.ProcessMessage(context.Background(), "", "hello")
	if err != nil {
		t.Fatal(err)
	}
	if result.SessionID == "" {
		t.Fatal("expected a generated session ID")
	}
}

func TestSessionLifecycle(t *testing.T) {
	svc := newTestChatService(t, &fakeProvider{reply: "Hi."})

	info, err := svc.CreateSession("Planning chat")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.ProcessMessage(context.Background(), info.SessionID, "hello"); err != nil {
		t.Fatal(err)
	}

	sessions, err := svc.ListSessions()
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0].Name != "Planning chat" {
		t.Fatalf("unexpected sessions: %+v", sessions)
	}

	if err := svc.RenameSession(info.SessionID, "Renamed"); err != nil {
		t.Fatal(err)
	}
	sessions, _ = svc.ListSessions()
	if sessions[0].Name != "Renamed" {
		t.Fatalf("rename not applied: %+v", sessions[0])
	}

	if err := svc.RenameSession("missing", "x"); err == nil {
		t.Fatal("expected error renaming missing session")
	}

	if err := svc.DeleteSession(info.SessionID); err != nil {
		t.Fatal(err)
	}
	sessions, _ = svc.ListSessions()
	if len(sessions) != 0 {
		t.Fatalf("session not deleted: %+v", sessions)
	}
}

func TestDeleteSessionsBatch(t *testing.T) {
	svc := newTestChatService(t, &fakeProvider{reply: "Hi."})

	a, _ := svc.CreateSession("a")
	b, _ := svc.CreateSession("b")

	deleted, err := svc.DeleteSessions([]string{a.SessionID, b.SessionID, "missing"})
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted, got %d", deleted)
	}
}

func TestHistoryLimitAndOrder(t *testing.T) {
	svc := newTestChatService(t, &fakeProvider{reply: "ok"})

	for i := 0; i < 4; i++ {
		if _, err := svc.ProcessMessage(context.Background(), "s1", "msg"); err != nil {
			t.Fatal(err)
		}
		svc.history.Delete("s1")
	}

	turns, err := svc.History("s1", 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(turns))
	}
	for i := 1; i < len(turns); i++ {
		if turns[i].ID <= turns[i-1].ID {
			t.Fatal("history not in chronological order")
		}
	}
}
