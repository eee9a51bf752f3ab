package sqlstore

import (
	"context"

	"github.com/example/campus-rooms/internal/application"
	"github.com/example/campus-rooms/internal/persistence"
	"github.com/example/campus-rooms/internal/scheduler"
)

const msPerHour = float64(60 * 60 * 1000)

// windowJoin renders the report window as extra join conditions on bookings.
func windowJoin(window persistence.ReportWindow, alias string) (string, []any) {
	var (
		sql  string
		args []any
	)
	if window.From != nil {
		sql += " AND " + alias + ".end_ms > ?"
		args = append(args, toMillis(*window.From))
	}
	if window.To != nil {
		sql += " AND " + alias + ".start_ms < ?"
		args = append(args, toMillis(*window.To))
	}
	return sql, args
}

// countedStatuses are the booking states that represent real use of a room.
var countedStatuses = []any{string(scheduler.StatusConfirmed), string(scheduler.StatusCompleted)}

// RoomUtilization counts confirmed and completed bookings per room within window.
// Rooms without bookings are included with zero counts.
func (s *Store) RoomUtilization(ctx context.Context, scope persistence.Scope, window persistence.ReportWindow) ([]application.RoomUtilization, error) {
	join := "b.room_id = r.id AND b.status IN (?, ?)"
	args := append([]any{}, countedStatuses...)
	windowSQL, windowArgs := windowJoin(window, "b")
	scopeSQL, scopeArgs := scope.Clause("b.user_id")
	join += windowSQL + scopeSQL
	args = append(append(args, windowArgs...), scopeArgs...)

	query := `SELECT r.id AS room_id, r.name AS room_name,
		COUNT(b.id) AS bookings,
		CAST(COALESCE(SUM(b.end_ms - b.start_ms), 0) AS BIGINT) AS booked_ms
		FROM rooms r
		LEFT JOIN bookings b ON ` + join + `
		GROUP BY r.id, r.name
		ORDER BY r.name, r.id`

	var rows []struct {
		RoomID   int64  `db:"room_id"`
		RoomName string `db:"room_name"`
		Bookings int    `db:"bookings"`
		BookedMS int64  `db:"booked_ms"`
	}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, mapError(err)
	}
	out := make([]application.RoomUtilization, 0, len(rows))
	for _, r := range rows {
		out = append(out, application.RoomUtilization{
			RoomID:      r.RoomID,
			RoomName:    r.RoomName,
			Bookings:    r.Bookings,
			BookedHours: float64(r.BookedMS) / msPerHour,
		})
	}
	return out, nil
}

// BookingSummary counts bookings per status within window.
func (s *Store) BookingSummary(ctx context.Context, scope persistence.Scope, window persistence.ReportWindow) ([]application.StatusCount, error) {
	var where persistence.Where
	where.Scope(scope, "b.user_id")
	windowSQL, windowArgs := windowJoin(window, "b")
	where.Add(windowSQL, windowArgs...)

	query := `SELECT b.status AS status, COUNT(*) AS count FROM bookings b` + where.SQL() + `
		GROUP BY b.status ORDER BY b.status`
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), where.Args()...); err != nil {
		return nil, mapError(err)
	}
	out := make([]application.StatusCount, 0, len(rows))
	for _, r := range rows {
		out = append(out, application.StatusCount{Status: r.Status, Count: r.Count})
	}
	return out, nil
}

// DepartmentUsage counts rooms and confirmed or completed bookings per department.
func (s *Store) DepartmentUsage(ctx context.Context, window persistence.ReportWindow) ([]application.DepartmentUsage, error) {
	join := "b.room_id = r.id AND b.status IN (?, ?)"
	args := append([]any{}, countedStatuses...)
	windowSQL, windowArgs := windowJoin(window, "b")
	join += windowSQL
	args = append(args, windowArgs...)

	query := `SELECT d.id AS department_id, d.name AS department_name,
		COUNT(DISTINCT r.id) AS rooms,
		COUNT(b.id) AS bookings
		FROM departments d
		LEFT JOIN rooms r ON r.department_id = d.id
		LEFT JOIN bookings b ON ` + join + `
		GROUP BY d.id, d.name
		ORDER BY d.name, d.id`

	var rows []struct {
		DepartmentID   int64  `db:"department_id"`
		DepartmentName string `db:"department_name"`
		Rooms          int    `db:"rooms"`
		Bookings       int    `db:"bookings"`
	}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, mapError(err)
	}
	out := make([]application.DepartmentUsage, 0, len(rows))
	for _, r := range rows {
		out = append(out, application.DepartmentUsage{
			DepartmentID:   r.DepartmentID,
			DepartmentName: r.DepartmentName,
			Rooms:          r.Rooms,
			Bookings:       r.Bookings,
		})
	}
	return out, nil
}

// MaintenanceSummary counts maintenance requests per status and priority,
// using the creation time for the window.
func (s *Store) MaintenanceSummary(ctx context.Context, scope persistence.Scope, window persistence.ReportWindow) ([]application.MaintenanceSummary, error) {
	var where persistence.Where
	where.Scope(scope, "m.reported_by")
	if window.From != nil {
		where.Add("m.created_at >= ?", toMillis(*window.From))
	}
	if window.To != nil {
		where.Add("m.created_at < ?", toMillis(*window.To))
	}

	query := `SELECT m.status AS status, m.priority AS priority, COUNT(*) AS count
		FROM maintenance_requests m` + where.SQL() + `
		GROUP BY m.status, m.priority
		ORDER BY m.status, m.priority`
	var rows []struct {
		Status   string `db:"status"`
		Priority string `db:"priority"`
		Count    int    `db:"count"`
	}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), where.Args()...); err != nil {
		return nil, mapError(err)
	}
	out := make([]application.MaintenanceSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, application.MaintenanceSummary{Status: r.Status, Priority: r.Priority, Count: r.Count})
	}
	return out, nil
}
