package models

// Intent values an LLM reply may carry. IntentNone is the sentinel for "no
// actionable instruction found in this turn" (e.g. a confirmation-round reply).
const (
	IntentNone           = ""
	IntentUnknown        = "unknown"
	IntentCreateProject  = "create_project"
	IntentUpdateProject  = "update_project"
	IntentDeleteProject  = "delete_project"
	IntentQueryProject   = "query_project"
	IntentRefreshProject = "refresh_project_status"
	IntentCreateTask     = "create_task"
	IntentUpdateTask     = "update_task"
	IntentDeleteTask     = "delete_task"
	IntentCreateCategory = "create_category"
	IntentUpdateCategory = "update_category"
	IntentDeleteCategory = "delete_category"
	IntentQueryCategory  = "query_category"
	IntentAssignCategory = "assign_category"
)

// Instruction is one machine-readable action mined from an LLM reply.
// Data is kept loosely typed because the model controls its shape; the
// executor validates required keys per intent before dispatching.
type Instruction struct {
	Intent               string                 `json:"intent"`
	Data                 map[string]interface{} `json:"data,omitempty"`
	Content              string                 `json:"content,omitempty"`
	RequiresConfirmation *bool                  `json:"requires_confirmation,omitempty"`
}

// Actionable reports whether the instruction should be dispatched at all.
func (in Instruction) Actionable() bool {
	return in.Intent != IntentNone && in.Intent != IntentUnknown
}

// OperationResult is the uniform return shape of every domain operation.
// Failures are values here, not errors: the message is folded into the
// assistant reply so the chat UI never renders protocol errors.
type OperationResult struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// ExecutionOutcome records what happened to one executed instruction.
type ExecutionOutcome struct {
	Instruction Instruction            `json:"instruction"`
	Success     bool                   `json:"success"`
	Message     string                 `json:"message"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
}

// ChatResult is the persisted-state shape handed back to the HTTP layer
// after a chat turn completes.
type ChatResult struct {
	MessageID            int64  `json:"message_id,omitempty"`
	SessionID            string `json:"session_id"`
	Content              string `json:"content"`
	RequiresConfirmation bool   `json:"requires_confirmation"`
	InstructionsExecuted int    `json:"instructions_executed"`
	Superseded           bool   `json:"-"`
}
