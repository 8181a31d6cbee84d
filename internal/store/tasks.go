package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/aliuyar1234/taskhub/internal/types"
	"github.com/google/uuid"
)

var taskColumns = []string{
	"id", "org_id", "title", "description", "status", "due_date",
	"created_by_user_id", "assigned_to_user_id", "created_at", "updated_at",
}

func scanTask(row rowScanner) (*types.Task, error) {
	var t types.Task
	var description sql.NullString
	var dueDate sql.NullTime
	var assignee uuid.NullUUID

	if err := row.Scan(
		&t.ID, &t.OrgID, &t.Title, &description, &t.Status, &dueDate,
		&t.CreatedByUserID, &assignee, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if description.Valid {
		t.Description = &description.String
	}
	if dueDate.Valid {
		d := dueDate.Time
		t.DueDate = &d
	}
	if assignee.Valid {
		id := assignee.UUID
		t.AssignedToUserID = &id
	}
	return &t, nil
}

// GetTaskInOrg retrieves a task by ID. A task that exists in another
// organization is reported as ErrNotFound.
func (s *Store) GetTaskInOrg(ctx context.Context, orgID, taskID uuid.UUID) (*types.Task, error) {
	t, err := scanTask(s.sb.
		Select(taskColumns...).
		From("tasks").
		Where(sq.Eq{"id": taskID, "org_id": orgID}).
		QueryRowContext(ctx))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

// ListTasksByOrg returns all tasks of an organization, newest first
func (s *Store) ListTasksByOrg(ctx context.Context, orgID uuid.UUID) ([]types.Task, error) {
	rows, err := s.sb.
		Select(taskColumns...).
		From("tasks").
		Where(sq.Eq{"org_id": orgID}).
		OrderBy("created_at DESC", "id DESC").
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []types.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}

	return tasks, nil
}

// CreateTask inserts t, assigning its ID and timestamps
func (s *Store) CreateTask(ctx context.Context, t *types.Task) error {
	now := s.now()
	t.ID = uuid.New()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := s.sb.
		Insert("tasks").
		Columns(taskColumns...).
		Values(
			t.ID, t.OrgID, t.Title, nullString(t.Description), t.Status, nullTime(t.DueDate),
			t.CreatedByUserID, nullUUID(t.AssignedToUserID), t.CreatedAt, t.UpdatedAt,
		).
		ExecContext(ctx)
	if err != nil {
		return wrapWriteError(err, "create task")
	}
	return nil
}

// TaskChanges collects the columns of a partial task update. Only columns
// that were set are written.
type TaskChanges struct {
	set map[string]any
}

func (c *TaskChanges) put(column string, value any) {
	if c.set == nil {
		c.set = make(map[string]any)
	}
	c.set[column] = value
}

func (c *TaskChanges) SetTitle(title string)             { c.put("title", title) }
func (c *TaskChanges) SetDescription(d *string)          { c.put("description", nullString(d)) }
func (c *TaskChanges) SetStatus(status types.TaskStatus) { c.put("status", status) }
func (c *TaskChanges) SetDueDate(d *time.Time)           { c.put("due_date", nullTime(d)) }
func (c *TaskChanges) SetAssignee(id *uuid.UUID)         { c.put("assigned_to_user_id", nullUUID(id)) }

// Empty reports whether no column was set
func (c *TaskChanges) Empty() bool {
	return len(c.set) == 0
}

// UpdateTask writes the set columns of a task in orgID and returns the
// stored result.
func (s *Store) UpdateTask(ctx context.Context, orgID, taskID uuid.UUID, changes TaskChanges) (*types.Task, error) {
	if changes.Empty() {
		return s.GetTaskInOrg(ctx, orgID, taskID)
	}

	res, err := s.sb.
		Update("tasks").
		SetMap(changes.set).
		Set("updated_at", s.now()).
		Where(sq.Eq{"id": taskID, "org_id": orgID}).
		ExecContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	if err := expectAffected(res); err != nil {
		return nil, err
	}

	return s.GetTaskInOrg(ctx, orgID, taskID)
}

// DeleteTask removes a task scoped to its organization
func (s *Store) DeleteTask(ctx context.Context, orgID, taskID uuid.UUID) error {
	res, err := s.sb.
		Delete("tasks").
		Where(sq.Eq{"id": taskID, "org_id": orgID}).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return expectAffected(res)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
