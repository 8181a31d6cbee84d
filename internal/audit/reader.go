package audit

import (
	"context"
	"time"

	"github.com/aliuyar1234/taskhub/internal/types"
	"github.com/google/uuid"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Lister is the persistence the Reader needs
type Lister interface {
	ListAuditByOrg(ctx context.Context, orgID uuid.UUID, limit uint64) ([]types.AuditEntry, error)
}

type Reader struct {
	store Lister
}

func NewReader(store Lister) *Reader {
	return &Reader{store: store}
}

type ListItem struct {
	ID          uuid.UUID      `json:"id"`
	Action      string         `json:"action"`
	OrgID       *uuid.UUID     `json:"organizationId,omitempty"`
	ActorUserID *uuid.UUID     `json:"actorUserId,omitempty"`
	ActorEmail  string         `json:"actorEmail,omitempty"`
	EntityType  string         `json:"entityType,omitempty"`
	EntityID    string         `json:"entityId,omitempty"`
	Meta        map[string]any `json:"meta"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// ListByOrg returns the newest entries of an organization. A limit outside
// (0, MaxListLimit] falls back to DefaultListLimit.
func (r *Reader) ListByOrg(ctx context.Context, orgID uuid.UUID, limit int) ([]ListItem, error) {
	if limit <= 0 || limit > MaxListLimit {
		limit = DefaultListLimit
	}

	entries, err := r.store.ListAuditByOrg(ctx, orgID, uint64(limit))
	if err != nil {
		return nil, err
	}

	out := make([]ListItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, ListItem{
			ID:          e.ID,
			Action:      e.Action,
			OrgID:       e.OrgID,
			ActorUserID: e.ActorUserID,
			ActorEmail:  e.ActorEmail,
			EntityType:  e.EntityType,
			EntityID:    e.EntityID,
			Meta:        e.Meta,
			CreatedAt:   e.CreatedAt,
		})
	}
	return out, nil
}
