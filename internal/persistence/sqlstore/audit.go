package sqlstore

import (
	"context"
	"database/sql"

	"github.com/example/campus-rooms/internal/application"
)

type auditRow struct {
	ID         int64         `db:"id"`
	UserID     sql.NullInt64 `db:"user_id"`
	Action     string        `db:"action"`
	EntityType string        `db:"entity_type"`
	EntityID   int64         `db:"entity_id"`
	Details    string        `db:"details"`
	CreatedAt  int64         `db:"created_at"`
}

// InsertAuditEntry appends an audit line.
func (s *Store) InsertAuditEntry(ctx context.Context, entry application.AuditEntry) (application.AuditEntry, error) {
	details := entry.Details
	if details == "" {
		details = "{}"
	}
	query := s.db.Rebind(`INSERT INTO audit_logs (user_id, action, entity_type, entity_id, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`)
	err := s.db.GetContext(ctx, &entry.ID, query,
		nullableID(entry.UserID), entry.Action, entry.EntityType, entry.EntityID, details, toMillis(entry.CreatedAt))
	if err != nil {
		return application.AuditEntry{}, mapError(err)
	}
	entry.Details = details
	return entry, nil
}

// ListAuditEntries returns the newest entries first.
func (s *Store) ListAuditEntries(ctx context.Context, limit int) ([]application.AuditEntry, error) {
	var rows []auditRow
	query := s.db.Rebind(`SELECT id, user_id, action, entity_type, entity_id, details, created_at
		FROM audit_logs ORDER BY created_at DESC, id DESC LIMIT ?`)
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, mapError(err)
	}
	out := make([]application.AuditEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, application.AuditEntry{
			ID:         r.ID,
			UserID:     idFromNull(r.UserID),
			Action:     r.Action,
			EntityType: r.EntityType,
			EntityID:   r.EntityID,
			Details:    r.Details,
			CreatedAt:  fromMillis(r.CreatedAt),
		})
	}
	return out, nil
}
