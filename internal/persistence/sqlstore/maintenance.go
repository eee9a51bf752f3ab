package sqlstore

import (
	"context"
	"database/sql"

	"github.com/example/campus-rooms/internal/application"
	"github.com/example/campus-rooms/internal/persistence"
)

type maintenanceRow struct {
	ID          int64         `db:"id"`
	RoomID      int64         `db:"room_id"`
	ReportedBy  sql.NullInt64 `db:"reported_by"`
	Issue       string        `db:"issue"`
	Description string        `db:"description"`
	Priority    string        `db:"priority"`
	Status      string        `db:"status"`
	Notes       string        `db:"notes"`
	CreatedAt   int64         `db:"created_at"`
	UpdatedAt   int64         `db:"updated_at"`
	CompletedAt sql.NullInt64 `db:"completed_at"`
	RoomName    string        `db:"room_name"`
}

func (r maintenanceRow) request() application.MaintenanceRequest {
	return application.MaintenanceRequest{
		ID:          r.ID,
		RoomID:      r.RoomID,
		ReportedBy:  r.ReportedBy.Int64,
		Issue:       r.Issue,
		Description: r.Description,
		Priority:    application.Priority(r.Priority),
		Status:      application.MaintenanceStatus(r.Status),
		Notes:       r.Notes,
		CreatedAt:   fromMillis(r.CreatedAt),
		UpdatedAt:   fromMillis(r.UpdatedAt),
		CompletedAt: timeFromNull(r.CompletedAt),
		RoomName:    r.RoomName,
	}
}

const maintenanceSelect = `SELECT m.id, m.room_id, m.reported_by, m.issue, m.description, m.priority, m.status,
	m.notes, m.created_at, m.updated_at, m.completed_at, COALESCE(r.name, '') AS room_name
	FROM maintenance_requests m
	LEFT JOIN rooms r ON r.id = m.room_id`

// CreateMaintenanceRequest inserts a request.
func (s *Store) CreateMaintenanceRequest(ctx context.Context, req application.MaintenanceRequest) (application.MaintenanceRequest, error) {
	query := s.db.Rebind(`INSERT INTO maintenance_requests
		(room_id, reported_by, issue, description, priority, status, notes, created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	var id int64
	err := s.db.GetContext(ctx, &id, query,
		req.RoomID, nullableID(&req.ReportedBy), req.Issue, req.Description, string(req.Priority),
		string(req.Status), req.Notes, toMillis(req.CreatedAt), toMillis(req.UpdatedAt), nullableMillis(req.CompletedAt))
	if err != nil {
		return application.MaintenanceRequest{}, mapError(err)
	}
	return s.GetMaintenanceRequest(ctx, id)
}

// GetMaintenanceRequest loads a request by id.
func (s *Store) GetMaintenanceRequest(ctx context.Context, id int64) (application.MaintenanceRequest, error) {
	var row maintenanceRow
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(maintenanceSelect+` WHERE m.id = ?`), id); err != nil {
		return application.MaintenanceRequest{}, mapError(err)
	}
	return row.request(), nil
}

// UpdateMaintenanceRequest stores progress on a request.
func (s *Store) UpdateMaintenanceRequest(ctx context.Context, req application.MaintenanceRequest) (application.MaintenanceRequest, error) {
	query := s.db.Rebind(`UPDATE maintenance_requests SET priority = ?, status = ?, notes = ?, updated_at = ?, completed_at = ?
		WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query,
		string(req.Priority), string(req.Status), req.Notes, toMillis(req.UpdatedAt), nullableMillis(req.CompletedAt), req.ID)
	if err := expectAffected(res, err); err != nil {
		return application.MaintenanceRequest{}, err
	}
	return s.GetMaintenanceRequest(ctx, req.ID)
}

// DeleteMaintenanceRequest removes a request.
func (s *Store) DeleteMaintenanceRequest(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM maintenance_requests WHERE id = ?`), id)
	return expectAffected(res, err)
}

// ListMaintenanceRequests returns requests matching filter, newest first.
func (s *Store) ListMaintenanceRequests(ctx context.Context, filter persistence.MaintenanceFilter) ([]application.MaintenanceRequest, error) {
	var where persistence.Where
	where.Scope(filter.Scope, "m.reported_by")
	if filter.RoomID != 0 {
		where.Add("m.room_id = ?", filter.RoomID)
	}
	if filter.Status != "" {
		where.Add("m.status = ?", filter.Status)
	}
	if filter.Priority != "" {
		where.Add("m.priority = ?", filter.Priority)
	}

	var rows []maintenanceRow
	query := s.db.Rebind(maintenanceSelect + where.SQL() + ` ORDER BY m.created_at DESC, m.id DESC`)
	if err := s.db.SelectContext(ctx, &rows, query, where.Args()...); err != nil {
		return nil, mapError(err)
	}
	out := make([]application.MaintenanceRequest, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.request())
	}
	return out, nil
}
