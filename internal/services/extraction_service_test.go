package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"planpilot/internal/llm"
	"planpilot/internal/models"
)

// countingProvider fails a set number of times before succeeding.
type countingProvider struct {
	failures int
	calls    int
	reply    string
}

func (p *countingProvider) Chat(ctx context.Context, messages []llm.Message, cfg llm.Config) (*llm.Response, error) {
	p.calls++
	if p.calls <= p.failures {
		return nil, fmt.Errorf("transient error")
	}
	return &llm.Response{Content: p.reply}, nil
}

func (p *countingProvider) Name() string { return "counting" }

func newFastExtractionService(provider llm.Provider) *ExtractionService {
	svc := NewExtractionService(provider)
	svc.backoff = time.Millisecond
	return svc
}

func TestExtractRetriesThenSucceeds(t *testing.T) {
	provider := &countingProvider{
		failures: 2,
		reply: "```json\n" +
			`[{"intent": "create_project", "data": {"project_name": "Alpha", "start_date": "2026-03-01"}}]` +
			"\n```",
	}
	svc := newFastExtractionService(provider)

	instructions, err := svc.Extract(context.Background(), "set up Alpha")
	if err != nil {
		t.Fatal(err)
	}
	if provider.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", provider.calls)
	}
	if len(instructions) != 1 || instructions[0].Intent != models.IntentCreateProject {
		t.Fatalf("unexpected instructions: %+v", instructions)
	}
}

func TestExtractDropsInvalidDates(t *testing.T) {
	provider := &countingProvider{
		reply: "```json\n" +
			`[{"intent": "create_project", "data": {"project_name": "Alpha", "start_date": "March 1st"}}]` +
			"\n```",
	}
	svc := newFastExtractionService(provider)

	// Every attempt returns the same malformed date, so validation rejects
	// all of them and the keyword fallback kicks in.
	instructions, err := svc.Extract(context.Background(), `create project "Alpha"`)
	if err != nil {
		t.Fatal(err)
	}
	if len(instructions) != 1 || instructions[0].Intent != models.IntentCreateProject {
		t.Fatalf("unexpected fallback result: %+v", instructions)
	}
	if instructions[0].Data["project_name"] != "Alpha" {
		t.Fatalf("expected quoted name in fallback, got %+v", instructions[0].Data)
	}
}

func TestExtractDropsUnknownIntents(t *testing.T) {
	provider := &countingProvider{
		reply: "```json\n" +
			`[{"intent": "launch_rocket", "data": {}},` +
			` {"intent": "delete_project", "data": {"project_name": "Alpha"}}]` +
			"\n```",
	}
	svc := newFastExtractionService(provider)

	instructions, err := svc.Extract(context.Background(), "clean up")
	if err != nil {
		t.Fatal(err)
	}
	if len(instructions) != 1 || instructions[0].Intent != models.IntentDeleteProject {
		t.Fatalf("unexpected instructions: %+v", instructions)
	}
}

func TestExtractKeywordFallbackWithoutProvider(t *testing.T) {
	svc := newFastExtractionService(nil)

	instructions, err := svc.Extract(context.Background(), `please delete project "Old Site"`)
	if err != nil {
		t.Fatal(err)
	}
	if len(instructions) != 1 {
		t.Fatalf("expected 1 instruction, got %d", len(instructions))
	}
	if instructions[0].Intent != models.IntentDeleteProject {
		t.Fatalf("expected delete_project, got %s", instructions[0].Intent)
	}
	if instructions[0].Data["project_name"] != "Old Site" {
		t.Fatalf("expected project name from quotes, got %+v", instructions[0].Data)
	}
}

func TestExtractEmptyText(t *testing.T) {
	svc := newFastExtractionService(nil)
	if _, err := svc.Extract(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestExtractInvalidPriorityRejected(t *testing.T) {
	if validFields(map[string]interface{}{
		"tasks": []interface{}{
			map[string]interface{}{"name": "T", "priority": "urgent"},
		},
	}) {
		t.Fatal("expected invalid priority to fail validation")
	}
	if !validFields(map[string]interface{}{
		"tasks": []interface{}{
			map[string]interface{}{"name": "T", "priority": "High", "planned_end_date": "2026-03-01"},
		},
	}) {
		t.Fatal("expected valid fields to pass")
	}
}
