package services

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"planpilot/internal/extractor"
	"planpilot/internal/llm"
	"planpilot/internal/models"
)

var isoDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

var validIntents = map[string]bool{
	models.IntentCreateProject:  true,
	models.IntentUpdateProject:  true,
	models.IntentDeleteProject:  true,
	models.IntentQueryProject:   true,
	models.IntentRefreshProject: true,
	models.IntentCreateTask:     true,
	models.IntentUpdateTask:     true,
	models.IntentDeleteTask:     true,
	models.IntentCreateCategory: true,
	models.IntentUpdateCategory: true,
	models.IntentDeleteCategory: true,
	models.IntentQueryCategory:  true,
	models.IntentAssignCategory: true,
}

// ExtractionService asks a dedicated LLM call to turn free-form user text
// into structured instructions, separate from the conversational reply path.
// Used by the bulk-import endpoint where text arrives without a chat turn.
type ExtractionService struct {
	provider llm.Provider
	retries  int
	backoff  time.Duration
}

// NewExtractionService creates a new extraction service
func NewExtractionService(provider llm.Provider) *ExtractionService {
	return &ExtractionService{provider: provider, retries: 3, backoff: time.Second}
}

const extractionPrompt = `Convert the user's text into project-management instructions.
Reply with ONLY a ` + "```json" + ` fenced block containing an array of instruction objects.
Each object has "intent" and "data". Supported intents: create_project, update_project,
delete_project, query_project, refresh_project_status, create_task, update_task, delete_task,
create_category, update_category, delete_category, query_category, assign_category.
Dates must be YYYY-MM-DD. Task priorities are high, medium or low.

Example input: "Set up a project called Website Redesign starting March 1st 2026, with a task to draft wireframes due March 10th."
Example output:
` + "```json" + `
[
  {"intent": "create_project", "data": {"project_name": "Website Redesign", "start_date": "2026-03-01",
    "tasks": [{"name": "Draft wireframes", "planned_end_date": "2026-03-10"}]}}
]
` + "```"

// Extract converts text into validated instructions. LLM failures are retried
// with exponential backoff; if all attempts fail (or no provider is
// configured) a keyword heuristic produces a best-effort result.
func (s *ExtractionService) Extract(ctx context.Context, text string) ([]models.Instruction, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text must not be empty")
	}

	if s.provider != nil {
		delay := s.backoff
		for attempt := 1; attempt <= s.retries; attempt++ {
			resp, err := s.provider.Chat(ctx, []llm.Message{
				{Role: "system", Content: extractionPrompt},
				{Role: "user", Content: text},
			}, llm.Config{Temperature: 0.1})
			if err == nil {
				instructions := validate(extractor.Extract(resp.Content))
				if len(instructions) > 0 {
					return instructions, nil
				}
				log.Printf("⚠️ [EXTRACT] Attempt %d returned no valid instructions", attempt)
			} else {
				log.Printf("⚠️ [EXTRACT] Attempt %d failed: %v", attempt, err)
			}

			if attempt < s.retries {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(delay):
				}
				delay *= 2
			}
		}
	}

	log.Printf("📋 [EXTRACT] Falling back to keyword heuristics")
	return keywordFallback(text), nil
}

// validate drops instructions with unknown intents or malformed field values.
func validate(instructions []models.Instruction) []models.Instruction {
	var valid []models.Instruction
	for _, in := range instructions {
		if !validIntents[in.Intent] {
			continue
		}
		if !validFields(in.Data) {
			continue
		}
		valid = append(valid, in)
	}
	return valid
}

// validFields checks date and priority shapes recursively through the data map.
func validFields(data map[string]interface{}) bool {
	for key, value := range data {
		switch v := value.(type) {
		case string:
			if strings.HasSuffix(key, "_date") && v != "" && !isoDateRe.MatchString(v) {
				return false
			}
			if key == "priority" && v != "" {
				switch strings.ToLower(v) {
				case "high", "medium", "low":
				default:
					return false
				}
			}
		case map[string]interface{}:
			if !validFields(v) {
				return false
			}
		case []interface{}:
			for _, item := range v {
				if m, ok := item.(map[string]interface{}); ok && !validFields(m) {
					return false
				}
			}
		}
	}
	return true
}

// keywordFallback builds a minimal instruction from verb keywords when the
// LLM path is unavailable. It only recognizes the unambiguous cases; anything
// else comes back as a query so the caller still gets a response.
func keywordFallback(text string) []models.Instruction {
	lower := strings.ToLower(text)

	intent := models.IntentQueryProject
	switch {
	case containsAny(lower, "create project", "new project", "set up a project", "start a project"):
		intent = models.IntentCreateProject
	case containsAny(lower, "delete project", "remove project"):
		intent = models.IntentDeleteProject
	case containsAny(lower, "create task", "new task", "add a task", "add task"):
		intent = models.IntentCreateTask
	case containsAny(lower, "create category", "new category"):
		intent = models.IntentCreateCategory
	}

	data := map[string]interface{}{}
	if name := quotedName(text); name != "" {
		switch intent {
		case models.IntentCreateCategory:
			data["category_name"] = name
		case models.IntentCreateTask:
			data["name"] = name
		default:
			data["project_name"] = name
		}
	}

	return []models.Instruction{{Intent: intent, Data: data}}
}

var quotedRe = regexp.MustCompile(`["'\x60]([^"'\x60]+)["'\x60]`)

// quotedName pulls the first quoted phrase out of the text, the most common
// way users name the thing they are talking about.
func quotedName(text string) string {
	if m := quotedRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
