package services

import (
	"fmt"
	"log"
	"strings"

	"planpilot/internal/models"
)

// DomainPort is the surface the executor dispatches instructions onto.
// ProjectService is the production implementation; tests substitute a stub.
type DomainPort interface {
	CreateProject(p models.ProjectPayload) models.OperationResult
	UpdateProject(p models.ProjectPayload) models.OperationResult
	DeleteProject(name string) models.OperationResult
	QueryProject(name string) models.OperationResult
	RefreshProject(name string) models.OperationResult

	CreateTask(projectName string, t models.TaskPayload) models.OperationResult
	UpdateTask(projectName, taskName string, t models.TaskPayload) models.OperationResult
	DeleteTask(projectName, taskName string) models.OperationResult

	CreateCategory(c models.CategoryPayload) models.OperationResult
	UpdateCategory(c models.CategoryPayload) models.OperationResult
	DeleteCategory(name string) models.OperationResult
	QueryCategory(name string) models.OperationResult
	AssignCategory(projectName, categoryName string) models.OperationResult
}

// Executor runs extracted instructions sequentially against a DomainPort and
// folds each outcome into the assistant's reply text.
type Executor struct {
	port DomainPort
}

// NewExecutor creates a new instruction executor
func NewExecutor(port DomainPort) *Executor {
	return &Executor{port: port}
}

// Execute dispatches instructions in list order. Each instruction succeeds or
// fails on its own; a failure never stops the rest and nothing is rolled
// back. The returned string is the text to append to the assistant reply.
func (e *Executor) Execute(instructions []models.Instruction) ([]models.ExecutionOutcome, string) {
	var outcomes []models.ExecutionOutcome
	var appended strings.Builder

	for i, in := range instructions {
		if !in.Actionable() {
			continue
		}

		results := e.dispatch(in)
		if results == nil {
			// Incomplete instruction: logged and skipped, no outcome recorded.
			log.Printf("⚠️ [EXEC] Skipping incomplete instruction %d (%s): missing required fields", i, in.Intent)
			continue
		}

		for _, r := range results {
			outcomes = append(outcomes, models.ExecutionOutcome{
				Instruction: in,
				Success:     r.Success,
				Message:     r.Message,
				Payload:     r.Data,
			})
			appended.WriteString(renderOutcome(in.Intent, r))
			if r.Success {
				log.Printf("✅ [EXEC] %s: %s", in.Intent, r.Message)
			} else {
				log.Printf("❌ [EXEC] %s: %s", in.Intent, r.Message)
			}
		}
	}

	return outcomes, appended.String()
}

// dispatch maps one instruction onto port calls. It returns nil when required
// fields are absent (the caller treats that as skip, not failure). Task-batch
// intents return one result per task so partial failures stay visible.
func (e *Executor) dispatch(in models.Instruction) []models.OperationResult {
	switch in.Intent {
	case models.IntentCreateProject:
		var p models.ProjectPayload
		if err := models.DecodePayload(in.Data, &p); err != nil || p.ProjectName == "" {
			return nil
		}
		result := e.port.CreateProject(p)
		if result.Success && p.CategoryName != "" {
			return []models.OperationResult{result, e.port.AssignCategory(p.ProjectName, p.CategoryName)}
		}
		return []models.OperationResult{result}

	case models.IntentUpdateProject:
		var p models.ProjectPayload
		if err := models.DecodePayload(in.Data, &p); err != nil || p.ProjectName == "" {
			return nil
		}
		return []models.OperationResult{e.port.UpdateProject(p)}

	case models.IntentDeleteProject:
		name := stringField(in.Data, "project_name")
		if name == "" {
			return nil
		}
		return []models.OperationResult{e.port.DeleteProject(name)}

	case models.IntentQueryProject:
		name := stringField(in.Data, "project_name")
		if name == "" {
			return nil
		}
		return []models.OperationResult{e.port.QueryProject(name)}

	case models.IntentRefreshProject:
		name := stringField(in.Data, "project_name")
		if name == "" {
			return nil
		}
		return []models.OperationResult{e.port.RefreshProject(name)}

	case models.IntentCreateTask:
		projectName, tasks := taskBatch(in.Data)
		if projectName == "" || len(tasks) == 0 {
			return nil
		}
		var results []models.OperationResult
		for _, t := range tasks {
			if t.Name == "" {
				continue
			}
			results = append(results, e.port.CreateTask(projectName, t))
		}
		if len(results) == 0 {
			return nil
		}
		return results

	case models.IntentUpdateTask:
		projectName, tasks := taskBatch(in.Data)
		if projectName == "" || len(tasks) == 0 {
			return nil
		}
		var results []models.OperationResult
		for _, t := range tasks {
			if t.Name == "" {
				continue
			}
			results = append(results, e.port.UpdateTask(projectName, t.Name, t))
		}
		if len(results) == 0 {
			return nil
		}
		return results

	case models.IntentDeleteTask:
		projectName, tasks := taskBatch(in.Data)
		if projectName == "" || len(tasks) == 0 {
			return nil
		}
		var results []models.OperationResult
		for _, t := range tasks {
			if t.Name == "" {
				continue
			}
			results = append(results, e.port.DeleteTask(projectName, t.Name))
		}
		if len(results) == 0 {
			return nil
		}
		return results

	case models.IntentCreateCategory:
		var c models.CategoryPayload
		if err := models.DecodePayload(in.Data, &c); err != nil || c.ResolvedName() == "" {
			return nil
		}
		return []models.OperationResult{e.port.CreateCategory(c)}

	case models.IntentUpdateCategory:
		var c models.CategoryPayload
		if err := models.DecodePayload(in.Data, &c); err != nil || c.ResolvedName() == "" {
			return nil
		}
		return []models.OperationResult{e.port.UpdateCategory(c)}

	case models.IntentDeleteCategory:
		name := stringField(in.Data, "category_name")
		if name == "" {
			name = stringField(in.Data, "name")
		}
		if name == "" {
			return nil
		}
		return []models.OperationResult{e.port.DeleteCategory(name)}

	case models.IntentQueryCategory:
		// Empty name means list all; never skipped.
		name := stringField(in.Data, "category_name")
		if name == "" {
			name = stringField(in.Data, "name")
		}
		return []models.OperationResult{e.port.QueryCategory(name)}

	case models.IntentAssignCategory:
		projectName := stringField(in.Data, "project_name")
		categoryName := stringField(in.Data, "category_name")
		if projectName == "" || categoryName == "" {
			return nil
		}
		return []models.OperationResult{e.port.AssignCategory(projectName, categoryName)}

	default:
		log.Printf("⚠️ [EXEC] Unrecognized intent '%s'", in.Intent)
		return nil
	}
}

// renderOutcome formats one operation result as appended reply text.
func renderOutcome(intent string, r models.OperationResult) string {
	if r.Success {
		var b strings.Builder
		fmt.Fprintf(&b, "\n\nResult: %s", r.Message)
		switch intent {
		case models.IntentQueryProject:
			if r.Data != nil {
				if pct, ok := r.Data["progress"].(float64); ok {
					fmt.Fprintf(&b, "\nProgress: %.1f%%", pct)
				}
				if status, ok := r.Data["status"].(string); ok && status != "" {
					fmt.Fprintf(&b, "\nStatus: %s", status)
				}
			}
		case models.IntentQueryCategory:
			if r.Data != nil {
				if cats, ok := r.Data["categories"].([]models.Category); ok {
					for _, c := range cats {
						fmt.Fprintf(&b, "\n- %s (%d project(s))", c.Name, c.ProjectCount)
					}
				}
			}
		}
		return b.String()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n\nOperation failed: %s", r.Message)
	if r.Data != nil {
		if suggestions, ok := r.Data["suggestions"].([]string); ok && len(suggestions) > 0 {
			b.WriteString("\nDid you mean: ")
			b.WriteString(strings.Join(suggestions, ", "))
		}
	}
	return b.String()
}

// taskBatch pulls the project name and the task list out of a task-intent
// data map. A data block that is itself a single task (no "tasks" array) is
// treated as a batch of one.
func taskBatch(data map[string]interface{}) (string, []models.TaskPayload) {
	projectName := stringField(data, "project_name")

	if raw, ok := data["tasks"]; ok {
		items, ok := raw.([]interface{})
		if !ok {
			return projectName, nil
		}
		var tasks []models.TaskPayload
		for _, item := range items {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			var t models.TaskPayload
			if err := models.DecodePayload(m, &t); err != nil {
				continue
			}
			tasks = append(tasks, t)
		}
		return projectName, tasks
	}

	var t models.TaskPayload
	if err := models.DecodePayload(data, &t); err != nil {
		return projectName, nil
	}
	if t.Name == "" {
		// "task_name" is the delete/update spelling for a single task.
		t.Name = stringField(data, "task_name")
	}
	if t.Name == "" {
		return projectName, nil
	}
	return projectName, []models.TaskPayload{t}
}

func stringField(data map[string]interface{}, key string) string {
	if data == nil {
		return ""
	}
	v, _ := data[key].(string)
	return v
}
