package models

import "time"

// Project status values
const (
	StatusPending   = "pending"
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusDelayed   = "delayed"
	StatusCancelled = "cancelled"
)

// Task priority values (lower number = higher priority)
const (
	PriorityHigh   = 1
	PriorityMedium = 2
	PriorityLow    = 3
)

// Project represents a managed project
type Project struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Progress    float64    `json:"progress"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Status      string     `json:"status"`
	CategoryID  *int64     `json:"category_id,omitempty"`
	CategoryName string    `json:"category_name,omitempty"`
	TaskCount   int        `json:"task_count,omitempty"`
	CompletedTaskCount int `json:"completed_task_count,omitempty"`
	Tasks       []Task     `json:"tasks,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Task represents a single task within a project
type Task struct {
	ID               int64      `json:"id"`
	ProjectID        int64      `json:"project_id"`
	Name             string     `json:"name"`
	Description      string     `json:"description,omitempty"`
	Assignee         string     `json:"assignee,omitempty"`
	PlannedStartDate *time.Time `json:"planned_start_date,omitempty"`
	PlannedEndDate   *time.Time `json:"planned_end_date,omitempty"`
	ActualStartDate  *time.Time `json:"actual_start_date,omitempty"`
	ActualEndDate    *time.Time `json:"actual_end_date,omitempty"`
	Progress         float64    `json:"progress"`
	Deliverable      string     `json:"deliverable,omitempty"`
	Status           string     `json:"status"`
	Priority         int        `json:"priority"`
	Order            int        `json:"order"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Category groups projects (the original UI calls these "project categories")
type Category struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	ProjectCount int       `json:"project_count,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Conversation is one persisted chat turn
type Conversation struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionInfo carries the user-visible name of a chat session
type SessionInfo struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
