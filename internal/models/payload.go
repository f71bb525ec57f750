package models

import (
	"encoding/json"
	"fmt"
)

// Typed payloads decoded from Instruction.Data. The extractor hands the
// executor loosely-typed maps; these structs are the boundary where shape
// gets enforced. Date fields stay strings here; the storage layer owns
// parsing because it accepts several formats (ISO, YYYY-MM-DD, bare MM-DD).

// TaskPayload is one task entry inside a create/update/delete_task instruction.
type TaskPayload struct {
	Name        string `json:"name"`
	Assignee    string `json:"assignee,omitempty"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Deliverable string `json:"deliverable,omitempty"`

	// The extraction prompt uses start_date/end_date; the chat prompt uses
	// planned_*. Both are accepted; planned_* wins when both are present.
	StartDate        string `json:"start_date,omitempty"`
	EndDate          string `json:"end_date,omitempty"`
	PlannedStartDate string `json:"planned_start_date,omitempty"`
	PlannedEndDate   string `json:"planned_end_date,omitempty"`

	// Pointers so an explicit JSON null clears the stored date.
	ActualStartDate *string `json:"actual_start_date,omitempty"`
	ActualEndDate   *string `json:"actual_end_date,omitempty"`
}

// PlannedStart resolves the planned start date across both field spellings.
func (t TaskPayload) PlannedStart() string {
	if t.PlannedStartDate != "" {
		return t.PlannedStartDate
	}
	return t.StartDate
}

// PlannedEnd resolves the planned end date across both field spellings.
func (t TaskPayload) PlannedEnd() string {
	if t.PlannedEndDate != "" {
		return t.PlannedEndDate
	}
	return t.EndDate
}

// ProjectPayload is the data block of a project-level instruction.
type ProjectPayload struct {
	ProjectName  string        `json:"project_name"`
	Description  string        `json:"description,omitempty"`
	StartDate    string        `json:"start_date,omitempty"`
	EndDate      string        `json:"end_date,omitempty"`
	Status       string        `json:"status,omitempty"`
	CategoryName string        `json:"category_name,omitempty"`
	Tasks        []TaskPayload `json:"tasks,omitempty"`
}

// CategoryPayload is the data block of a category-level instruction.
type CategoryPayload struct {
	CategoryName string `json:"category_name"`
	Name         string `json:"name,omitempty"`
	Description  string `json:"description,omitempty"`
}

// ResolvedName returns whichever of category_name/name is populated.
func (c CategoryPayload) ResolvedName() string {
	if c.CategoryName != "" {
		return c.CategoryName
	}
	return c.Name
}

// DecodePayload converts an instruction's data map into a typed payload via a
// JSON round trip.
func DecodePayload(data map[string]interface{}, out interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal instruction data: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode instruction data: %w", err)
	}
	return nil
}
