package audit

import (
	"context"
	"fmt"

	"github.com/aliuyar1234/taskhub/internal/metrics"
	"github.com/aliuyar1234/taskhub/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	EventTaskCreated           = "TASK_CREATED"
	EventTaskUpdated           = "TASK_UPDATED"
	EventTaskDeleted           = "TASK_DELETED"
	EventOrgUserAddedOrUpdated = "ORG_USER_ADDED_OR_UPDATED"
	EventOrgUserRemoved        = "ORG_USER_REMOVED"
	EventUserPasswordReset     = "USER_PASSWORD_RESET"
	EventProvisioningCompleted = "PROVISIONING_COMPLETED"
)

const (
	EntityTask         = "Task"
	EntityMembership   = "Membership"
	EntityUser         = "User"
	EntityOrganization = "Organization"
)

// Event is an audit log entry to append
type Event struct {
	Action      string
	ActorUserID *uuid.UUID
	OrgID       *uuid.UUID
	EntityType  string
	EntityID    string
	Meta        map[string]any
}

// Sink appends audit events. Implementations may fail; callers record
// through Record so a failure never reaches the primary operation.
type Sink interface {
	Log(ctx context.Context, ev Event) error
}

// Appender is the persistence the Writer needs
type Appender interface {
	InsertAuditEntry(ctx context.Context, e *types.AuditEntry) error
}

// Writer persists audit events through the store
type Writer struct {
	store Appender
}

func NewWriter(store Appender) *Writer {
	return &Writer{store: store}
}

func (w *Writer) Log(ctx context.Context, ev Event) error {
	if ev.Action == "" {
		return fmt.Errorf("audit event has no action")
	}

	entry := &types.AuditEntry{
		Action:      ev.Action,
		ActorUserID: ev.ActorUserID,
		OrgID:       ev.OrgID,
		EntityType:  ev.EntityType,
		EntityID:    ev.EntityID,
		Meta:        ev.Meta,
	}
	if err := w.store.InsertAuditEntry(ctx, entry); err != nil {
		return err
	}

	log.Info().
		Str("action", ev.Action).
		Interface("org_id", ev.OrgID).
		Interface("actor_user_id", ev.ActorUserID).
		Str("entity_id", ev.EntityID).
		Msg("Audit event logged")

	return nil
}

// Record writes ev to sink and swallows any failure. The failure is logged
// and counted, never returned.
func Record(ctx context.Context, sink Sink, m *metrics.Metrics, ev Event) {
	if sink == nil {
		return
	}
	if err := sink.Log(ctx, ev); err != nil {
		log.Warn().
			Err(err).
			Str("action", ev.Action).
			Interface("org_id", ev.OrgID).
			Msg("Failed to write audit event")
		m.AuditWriteFailed(ev.Action)
	}
}

// TaskEvent builds an event about a task in orgID
func TaskEvent(action string, actorUserID, orgID, taskID uuid.UUID, meta map[string]any) Event {
	return Event{
		Action:      action,
		ActorUserID: &actorUserID,
		OrgID:       &orgID,
		EntityType:  EntityTask,
		EntityID:    taskID.String(),
		Meta:        meta,
	}
}

// MembershipEvent builds an event about a membership in orgID
func MembershipEvent(action string, actorUserID, orgID, membershipID uuid.UUID, meta map[string]any) Event {
	return Event{
		Action:      action,
		ActorUserID: &actorUserID,
		OrgID:       &orgID,
		EntityType:  EntityMembership,
		EntityID:    membershipID.String(),
		Meta:        meta,
	}
}
