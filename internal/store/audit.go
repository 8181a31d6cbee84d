package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/aliuyar1234/taskhub/internal/types"
	"github.com/google/uuid"
)

// InsertAuditEntry appends an entry to the audit log, assigning its ID and
// creation time
func (s *Store) InsertAuditEntry(ctx context.Context, e *types.AuditEntry) error {
	metaJSON := []byte("{}")
	if e.Meta != nil {
		b, err := json.Marshal(e.Meta)
		if err != nil {
			return fmt.Errorf("failed to marshal audit meta: %w", err)
		}
		metaJSON = b
	}

	e.ID = uuid.New()
	e.CreatedAt = s.now()

	_, err := s.sb.
		Insert("audit_log").
		Columns("id", "action", "actor_user_id", "org_id", "entity_type", "entity_id", "meta", "created_at").
		Values(
			e.ID, e.Action, nullUUID(e.ActorUserID), nullUUID(e.OrgID),
			nullString(optional(e.EntityType)), nullString(optional(e.EntityID)),
			string(metaJSON), e.CreatedAt,
		).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// ListAuditByOrg returns the newest audit entries of an organization with
// the actor's email joined in
func (s *Store) ListAuditByOrg(ctx context.Context, orgID uuid.UUID, limit uint64) ([]types.AuditEntry, error) {
	rows, err := s.sb.
		Select(
			"a.id", "a.action", "a.actor_user_id", "a.org_id", "a.entity_type",
			"a.entity_id", "a.meta", "a.created_at", "u.email",
		).
		From("audit_log a").
		LeftJoin("users u ON u.id = a.actor_user_id").
		Where(sq.Eq{"a.org_id": orgID}).
		OrderBy("a.created_at DESC", "a.id DESC").
		Limit(limit).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	entries := []types.AuditEntry{}
	for rows.Next() {
		var e types.AuditEntry
		var actor, org uuid.NullUUID
		var entityType, entityID, actorEmail sql.NullString
		var metaRaw []byte

		if err := rows.Scan(&e.ID, &e.Action, &actor, &org, &entityType, &entityID, &metaRaw, &e.CreatedAt, &actorEmail); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}

		if actor.Valid {
			e.ActorUserID = &actor.UUID
		}
		if org.Valid {
			e.OrgID = &org.UUID
		}
		e.EntityType = entityType.String
		e.EntityID = entityID.String
		e.ActorEmail = actorEmail.String

		e.Meta = map[string]any{}
		if len(metaRaw) > 0 {
			_ = json.Unmarshal(metaRaw, &e.Meta)
		}

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit rows: %w", err)
	}

	return entries, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
