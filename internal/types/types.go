package types

import (
	"time"

	"github.com/aliuyar1234/taskhub/internal/rbac"
	"github.com/google/uuid"
)

// User is an identity. Email is unique as stored (case-sensitive).
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	FullName     string    `db:"full_name" json:"fullName"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// Organization is a tenant boundary with a unique name
type Organization struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Membership is a user's role within one organization. At most one exists
// per (UserID, OrgID).
//
// User and Organization are only populated by lookups that join them
// explicitly (store.FindMembership, store.ListMembershipsByOrg,
// store.ListMembershipsByUser).
type Membership struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"userId"`
	OrgID     uuid.UUID `db:"org_id" json:"organizationId"`
	Role      rbac.Role `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`

	User         *User         `db:"-" json:"user,omitempty"`
	Organization *Organization `db:"-" json:"organization,omitempty"`
}

// TaskStatus is the progress state of a task
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "TODO"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusDone       TaskStatus = "DONE"
)

// IsValid reports whether s is a known status
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	}
	return false
}

// Task is a unit of work scoped to one organization. OrgID and
// CreatedByUserID never change after creation.
type Task struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	OrgID            uuid.UUID  `db:"org_id" json:"organizationId"`
	Title            string     `db:"title" json:"title"`
	Description      *string    `db:"description" json:"description"`
	Status           TaskStatus `db:"status" json:"status"`
	DueDate          *time.Time `db:"due_date" json:"dueDate"`
	CreatedByUserID  uuid.UUID  `db:"created_by_user_id" json:"createdByUserId"`
	AssignedToUserID *uuid.UUID `db:"assigned_to_user_id" json:"assignedToUserId"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updatedAt"`
}

// IsAssignedTo reports whether userID is the task's current assignee
func (t *Task) IsAssignedTo(userID uuid.UUID) bool {
	return t.AssignedToUserID != nil && *t.AssignedToUserID == userID
}

// AuditEntry is an append-only record of a mutating action
type AuditEntry struct {
	ID          uuid.UUID      `db:"id" json:"id"`
	Action      string         `db:"action" json:"action"`
	ActorUserID *uuid.UUID     `db:"actor_user_id" json:"actorUserId,omitempty"`
	OrgID       *uuid.UUID     `db:"org_id" json:"organizationId,omitempty"`
	EntityType  string         `db:"entity_type" json:"entityType,omitempty"`
	EntityID    string         `db:"entity_id" json:"entityId,omitempty"`
	Meta        map[string]any `db:"meta" json:"meta"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`

	// ActorEmail is filled by audit listing joins only
	ActorEmail string `db:"-" json:"actorEmail,omitempty"`
}
