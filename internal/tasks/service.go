package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aliuyar1234/taskhub/internal/apperrors"
	"github.com/aliuyar1234/taskhub/internal/audit"
	"github.com/aliuyar1234/taskhub/internal/metrics"
	"github.com/aliuyar1234/taskhub/internal/orgs"
	"github.com/aliuyar1234/taskhub/internal/rbac"
	"github.com/aliuyar1234/taskhub/internal/store"
	"github.com/aliuyar1234/taskhub/internal/types"
	"github.com/aliuyar1234/taskhub/internal/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrTaskNotFound       = &apperrors.Error{Kind: apperrors.ErrNotFound, Message: "Task not found in this organization"}
	ErrNotAllowedToUpdate = &apperrors.Error{Kind: apperrors.ErrForbidden, Message: "You are not allowed to update this task"}
	ErrAssigneeNotMember  = &apperrors.Error{Kind: apperrors.ErrInvalidInput, Message: "Assigned user must be a member of this organization"}
	ErrInvalidDueDate     = &apperrors.Error{Kind: apperrors.ErrInvalidInput, Message: "Invalid dueDate format"}
)

// Store is the persistence the task service needs
type Store interface {
	orgs.MembershipFinder
	GetTaskInOrg(ctx context.Context, orgID, taskID uuid.UUID) (*types.Task, error)
	ListTasksByOrg(ctx context.Context, orgID uuid.UUID) ([]types.Task, error)
	CreateTask(ctx context.Context, t *types.Task) error
	UpdateTask(ctx context.Context, orgID, taskID uuid.UUID, changes store.TaskChanges) (*types.Task, error)
	DeleteTask(ctx context.Context, orgID, taskID uuid.UUID) error
}

// Service implements org-scoped task operations. Every call is authorized
// against the caller's membership in orgID and never touches a task of
// another organization.
type Service struct {
	store   Store
	authz   *orgs.Authorizer
	auditor audit.Sink
	metrics *metrics.Metrics
}

func NewService(s Store, authz *orgs.Authorizer, auditor audit.Sink, m *metrics.Metrics) *Service {
	return &Service{store: s, authz: authz, auditor: auditor, metrics: m}
}

// List returns every task of orgID, newest first. Requires VIEWER+.
func (s *Service) List(ctx context.Context, userID, orgID uuid.UUID) ([]types.Task, error) {
	if _, err := s.authz.RequireRole(ctx, userID, orgID, rbac.RoleViewer); err != nil {
		return nil, err
	}
	return s.store.ListTasksByOrg(ctx, orgID)
}

// Get returns one task of orgID. Requires VIEWER+.
func (s *Service) Get(ctx context.Context, userID, orgID, taskID uuid.UUID) (*types.Task, error) {
	if _, err := s.authz.RequireRole(ctx, userID, orgID, rbac.RoleViewer); err != nil {
		return nil, err
	}
	return s.getTask(ctx, orgID, taskID)
}

// Create adds a TODO task created by userID. Requires MEMBER+. An assignee
// must be a member of orgID.
func (s *Service) Create(ctx context.Context, userID, orgID uuid.UUID, in CreateInput) (*types.Task, error) {
	if _, err := s.authz.RequireRole(ctx, userID, orgID, rbac.RoleMember); err != nil {
		return nil, err
	}

	in.Title = strings.TrimSpace(in.Title)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	dueDate, err := parseDueDate(in.DueDate)
	if err != nil {
		return nil, err
	}
	if err := s.checkAssignee(ctx, orgID, in.AssignedToUserID); err != nil {
		return nil, err
	}

	task := &types.Task{
		OrgID:            orgID,
		Title:            in.Title,
		Description:      in.Description,
		Status:           types.TaskStatusTodo,
		DueDate:          dueDate,
		CreatedByUserID:  userID,
		AssignedToUserID: in.AssignedToUserID,
	}
	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, err
	}

	audit.Record(ctx, s.auditor, s.metrics, audit.TaskEvent(audit.EventTaskCreated, userID, orgID, task.ID, map[string]any{
		"title": task.Title,
	}))

	log.Info().
		Str("org_id", orgID.String()).
		Str("task_id", task.ID.String()).
		Str("user_id", userID.String()).
		Msg("Task created")

	return task, nil
}

// Update applies the set fields of in. Requires MEMBER+, and additionally
// MANAGER+ unless the caller created the task or is its current assignee.
func (s *Service) Update(ctx context.Context, userID, orgID, taskID uuid.UUID, in UpdateInput) (*types.Task, error) {
	m, err := s.authz.RequireRole(ctx, userID, orgID, rbac.RoleMember)
	if err != nil {
		return nil, err
	}

	task, err := s.getTask(ctx, orgID, taskID)
	if err != nil {
		return nil, err
	}

	if !rbac.AtLeast(m.Role, rbac.RoleManager) && task.CreatedByUserID != userID && !task.IsAssignedTo(userID) {
		log.Debug().
			Str("user_id", userID.String()).
			Str("task_id", taskID.String()).
			Str("role", string(m.Role)).
			Msg("Task update denied")
		return nil, ErrNotAllowedToUpdate
	}

	changes, changed, err := s.buildChanges(ctx, orgID, in)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateTask(ctx, orgID, taskID, changes)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}

	audit.Record(ctx, s.auditor, s.metrics, audit.TaskEvent(audit.EventTaskUpdated, userID, orgID, taskID, map[string]any{
		"title":   updated.Title,
		"changed": changed,
	}))

	log.Info().
		Str("org_id", orgID.String()).
		Str("task_id", taskID.String()).
		Strs("changed", changed).
		Msg("Task updated")

	return updated, nil
}

func (s *Service) buildChanges(ctx context.Context, orgID uuid.UUID, in UpdateInput) (store.TaskChanges, []string, error) {
	var changes store.TaskChanges
	changed := []string{}

	if in.Title.Set {
		title := strings.TrimSpace(in.Title.Value)
		if err := validation.Struct(titleField{Title: title}); err != nil {
			return changes, nil, err
		}
		changes.SetTitle(title)
		changed = append(changed, "title")
	}

	if in.Description.Set {
		changes.SetDescription(in.Description.Value)
		changed = append(changed, "description")
	}

	if in.Status.Set {
		if !in.Status.Value.IsValid() {
			return changes, nil, apperrors.InvalidInput("status must be one of TODO, IN_PROGRESS, DONE")
		}
		changes.SetStatus(in.Status.Value)
		changed = append(changed, "status")
	}

	if in.DueDate.Set {
		dueDate, err := parseDueDate(in.DueDate.Value)
		if err != nil {
			return changes, nil, err
		}
		changes.SetDueDate(dueDate)
		changed = append(changed, "dueDate")
	}

	if in.AssignedToUserID.Set {
		if err := s.checkAssignee(ctx, orgID, in.AssignedToUserID.Value); err != nil {
			return changes, nil, err
		}
		changes.SetAssignee(in.AssignedToUserID.Value)
		changed = append(changed, "assignedToUserId")
	}

	return changes, changed, nil
}

// Delete removes a task of orgID. Requires ADMIN+.
func (s *Service) Delete(ctx context.Context, userID, orgID, taskID uuid.UUID) error {
	if _, err := s.authz.RequireRole(ctx, userID, orgID, rbac.RoleAdmin); err != nil {
		return err
	}

	task, err := s.getTask(ctx, orgID, taskID)
	if err != nil {
		return err
	}

	if err := s.store.DeleteTask(ctx, orgID, taskID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrTaskNotFound
		}
		return err
	}

	audit.Record(ctx, s.auditor, s.metrics, audit.TaskEvent(audit.EventTaskDeleted, userID, orgID, taskID, map[string]any{
		"title": task.Title,
	}))

	log.Info().
		Str("org_id", orgID.String()).
		Str("task_id", taskID.String()).
		Str("user_id", userID.String()).
		Msg("Task deleted")

	return nil
}

func (s *Service) getTask(ctx context.Context, orgID, taskID uuid.UUID) (*types.Task, error) {
	task, err := s.store.GetTaskInOrg(ctx, orgID, taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return task, nil
}

// checkAssignee accepts no assignee or a member of orgID
func (s *Service) checkAssignee(ctx context.Context, orgID uuid.UUID, assignee *uuid.UUID) error {
	if assignee == nil {
		return nil
	}
	_, err := s.store.FindMembership(ctx, *assignee, orgID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrAssigneeNotMember
	}
	if err != nil {
		return fmt.Errorf("failed to check assignee membership: %w", err)
	}
	return nil
}

// parseDueDate accepts an RFC 3339 timestamp or a calendar date. Nil or
// empty means no due date.
func parseDueDate(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	v := strings.TrimSpace(*raw)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, ErrInvalidDueDate
}
