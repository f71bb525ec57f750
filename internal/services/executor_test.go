package services

import (
	"strings"
	"testing"

	"planpilot/internal/extractor"
	"planpilot/internal/models"
)

// stubPort records dispatched calls and returns scripted results per entity name.
type stubPort struct {
	calls    []string
	failures map[string]string // entity name -> failure message
}

func newStubPort() *stubPort {
	return &stubPort{failures: map[string]string{}}
}

func (p *stubPort) result(op, name string) models.OperationResult {
	p.calls = append(p.calls, op+":"+name)
	if msg, ok := p.failures[name]; ok {
		return models.OperationResult{Success: false, Message: msg}
	}
	return models.OperationResult{Success: true, Message: op + " " + name + " ok"}
}

func (p *stubPort) CreateProject(pl models.ProjectPayload) models.OperationResult {
	return p.result("create_project", pl.ProjectName)
}
func (p *stubPort) UpdateProject(pl models.ProjectPayload) models.OperationResult {
	return p.result("update_project", pl.ProjectName)
}
func (p *stubPort) DeleteProject(name string) models.OperationResult {
	return p.result("delete_project", name)
}
func (p *stubPort) QueryProject(name string) models.OperationResult {
	r := p.result("query_project", name)
	if r.Success {
		r.Data = map[string]interface{}{"progress": 42.5, "status": "active"}
	}
	return r
}
func (p *stubPort) RefreshProject(name string) models.OperationResult {
	return p.result("refresh_project_status", name)
}
func (p *stubPort) CreateTask(projectName string, t models.TaskPayload) models.OperationResult {
	return p.result("create_task", t.Name)
}
func (p *stubPort) UpdateTask(projectName, taskName string, t models.TaskPayload) models.OperationResult {
	return p.result("update_task", taskName)
}
func (p *stubPort) DeleteTask(projectName, taskName string) models.OperationResult {
	return p.result("delete_task", taskName)
}
func (p *stubPort) CreateCategory(c models.CategoryPayload) models.OperationResult {
	return p.result("create_category", c.ResolvedName())
}
func (p *stubPort) UpdateCategory(c models.CategoryPayload) models.OperationResult {
	return p.result("update_category", c.ResolvedName())
}
func (p *stubPort) DeleteCategory(name string) models.OperationResult {
	return p.result("delete_category", name)
}
func (p *stubPort) QueryCategory(name string) models.OperationResult {
	return p.result("query_category", name)
}
func (p *stubPort) AssignCategory(projectName, categoryName string) models.OperationResult {
	r := p.result("assign_category", categoryName)
	if !r.Success {
		r.Data = map[string]interface{}{
			"suggestions":    []string{"Internal Tools", "Client Work"},
			"field":          "category_name",
			"original_value": categoryName,
		}
	}
	return r
}

func TestExecutePartialFailure(t *testing.T) {
	port := newStubPort()
	port.failures["T1"] = "task 'T1' already exists in project 'P'"
	exec := NewExecutor(port)

	outcomes, appended := exec.Execute([]models.Instruction{{
		Intent: models.IntentCreateTask,
		Data: map[string]interface{}{
			"project_name": "P",
			"tasks": []interface{}{
				map[string]interface{}{"name": "T1"},
				map[string]interface{}{"name": "T2"},
			},
		},
	}})

	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].Success || !outcomes[1].Success {
		t.Fatalf("expected [fail, success], got [%v, %v]", outcomes[0].Success, outcomes[1].Success)
	}
	if !strings.Contains(appended, "Operation failed: task 'T1' already exists") {
		t.Fatalf("failure message missing from appended text: %q", appended)
	}
	if !strings.Contains(appended, "Result: create_task T2 ok") {
		t.Fatalf("success message missing from appended text: %q", appended)
	}
}

func TestExtractThenExecuteTaskBatch(t *testing.T) {
	port := newStubPort()
	port.failures["T1"] = "task 'T1' already exists in project 'P'"
	exec := NewExecutor(port)

	reply := "Proceeding now.\n```json\n" +
		`{"intent":"create_task","data":{"project_name":"P","tasks":[{"name":"T1"},{"name":"T2"}]}}` +
		"\n```"
	outcomes, appended := exec.Execute(extractor.Extract(reply))

	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	if !strings.Contains(appended, "already exists") || !strings.Contains(appended, "T2 ok") {
		t.Fatalf("expected both messages in appended text: %q", appended)
	}
}

func TestExecuteSequentialOrder(t *testing.T) {
	port := newStubPort()
	exec := NewExecutor(port)

	exec.Execute([]models.Instruction{
		{Intent: models.IntentCreateProject, Data: map[string]interface{}{"project_name": "A"}},
		{Intent: models.IntentCreateTask, Data: map[string]interface{}{"project_name": "A", "name": "T"}},
		{Intent: models.IntentDeleteProject, Data: map[string]interface{}{"project_name": "B"}},
	})

	want := []string{"create_project:A", "create_task:T", "delete_project:B"}
	if len(port.calls) != len(want) {
		t.Fatalf("expected %d calls, got %v", len(want), port.calls)
	}
	for i, w := range want {
		if port.calls[i] != w {
			t.Fatalf("call %d: expected %s, got %s", i, w, port.calls[i])
		}
	}
}

func TestExecuteSkipsSentinelAndUnknown(t *testing.T) {
	port := newStubPort()
	exec := NewExecutor(port)

	outcomes, appended := exec.Execute([]models.Instruction{
		{Intent: models.IntentNone},
		{Intent: models.IntentUnknown},
	})
	if len(outcomes) != 0 || appended != "" {
		t.Fatalf("sentinel instructions must produce no outcomes, got %d / %q", len(outcomes), appended)
	}
	if len(port.calls) != 0 {
		t.Fatalf("no port calls expected, got %v", port.calls)
	}
}

func TestExecuteSkipsIncompleteWithoutOutcome(t *testing.T) {
	port := newStubPort()
	exec := NewExecutor(port)

	// delete_project without project_name is skipped silently, not failed.
	outcomes, _ := exec.Execute([]models.Instruction{
		{Intent: models.IntentDeleteProject, Data: map[string]interface{}{}},
		{Intent: models.IntentCreateProject, Data: map[string]interface{}{"project_name": "A"}},
	})
	if len(outcomes) != 1 {
		t.Fatalf("expected only the complete instruction to run, got %d outcomes", len(outcomes))
	}
	if outcomes[0].Instruction.Intent != models.IntentCreateProject {
		t.Fatalf("wrong instruction executed: %s", outcomes[0].Instruction.Intent)
	}
}

func TestExecuteCreateProjectAssignsCategory(t *testing.T) {
	port := newStubPort()
	exec := NewExecutor(port)

	outcomes, _ := exec.Execute([]models.Instruction{{
		Intent: models.IntentCreateProject,
		Data:   map[string]interface{}{"project_name": "P", "category_name": "C"},
	}})
	if len(outcomes) != 2 {
		t.Fatalf("expected create + assign outcomes, got %d", len(outcomes))
	}
	if port.calls[1] != "assign_category:C" {
		t.Fatalf("expected follow-up category assignment, got %v", port.calls)
	}
}

func TestExecuteRendersSuggestions(t *testing.T) {
	port := newStubPort()
	port.failures["Internl"] = "category 'Internl' does not exist"
	exec := NewExecutor(port)

	_, appended := exec.Execute([]models.Instruction{{
		Intent: models.IntentAssignCategory,
		Data:   map[string]interface{}{"project_name": "P", "category_name": "Internl"},
	}})
	if !strings.Contains(appended, "Did you mean: Internal Tools, Client Work") {
		t.Fatalf("suggestions missing from appended text: %q", appended)
	}
}

func TestExecuteQueryProjectAppendsDetails(t *testing.T) {
	port := newStubPort()
	exec := NewExecutor(port)

	_, appended := exec.Execute([]models.Instruction{{
		Intent: models.IntentQueryProject,
		Data:   map[string]interface{}{"project_name": "P"},
	}})
	if !strings.Contains(appended, "Progress: 42.5%") || !strings.Contains(appended, "Status: active") {
		t.Fatalf("query details missing: %q", appended)
	}
}

func TestExecuteSingleTaskWithoutArray(t *testing.T) {
	port := newStubPort()
	exec := NewExecutor(port)

	outcomes, _ := exec.Execute([]models.Instruction{{
		Intent: models.IntentDeleteTask,
		Data:   map[string]interface{}{"project_name": "P", "task_name": "T"},
	}})
	if len(outcomes) != 1 {
		t.Fatalf("expected 1 outcome, got %d", len(outcomes))
	}
	if port.calls[0] != "delete_task:T" {
		t.Fatalf("expected delete_task:T, got %v", port.calls)
	}
}
