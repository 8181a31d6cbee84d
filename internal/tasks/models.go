package tasks

import (
	"github.com/aliuyar1234/taskhub/internal/types"
	"github.com/google/uuid"
)

// CreateInput describes a new task. DueDate is an RFC 3339 timestamp or a
// calendar date (YYYY-MM-DD).
type CreateInput struct {
	Title            string     `json:"title" validate:"required,max=500"`
	Description      *string    `json:"description"`
	DueDate          *string    `json:"dueDate"`
	AssignedToUserID *uuid.UUID `json:"assignedToUserId"`
}

// titleField carries the title rule of CreateInput for updates
type titleField struct {
	Title string `json:"title" validate:"required,max=500"`
}

// UpdateInput is a partial task update. Only fields that are Set are
// written; an explicit null clears Description, DueDate or
// AssignedToUserID.
type UpdateInput struct {
	Title            Optional[string]           `json:"title"`
	Description      Optional[*string]          `json:"description"`
	Status           Optional[types.TaskStatus] `json:"status"`
	DueDate          Optional[*string]          `json:"dueDate"`
	AssignedToUserID Optional[*uuid.UUID]       `json:"assignedToUserId"`
}
