package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/campus-rooms/internal/application"
	"github.com/example/campus-rooms/internal/persistence"
	"github.com/example/campus-rooms/internal/scheduler"
)

type roomRow struct {
	ID           int64         `db:"id"`
	Name         string        `db:"name"`
	Capacity     int           `db:"capacity"`
	Building     string        `db:"building"`
	Floor        int           `db:"floor"`
	Resources    string        `db:"resources"`
	Status       string        `db:"status"`
	Description  string        `db:"description"`
	DepartmentID sql.NullInt64 `db:"department_id"`
	CreatedAt    int64         `db:"created_at"`
	UpdatedAt    int64         `db:"updated_at"`
}

func (r roomRow) room() application.Room {
	var resources []string
	if r.Resources != "" {
		_ = json.Unmarshal([]byte(r.Resources), &resources)
	}
	if resources == nil {
		resources = []string{}
	}
	return application.Room{
		ID:           r.ID,
		Name:         r.Name,
		Capacity:     r.Capacity,
		Building:     r.Building,
		Floor:        r.Floor,
		Resources:    resources,
		Status:       application.RoomStatus(r.Status),
		Description:  r.Description,
		DepartmentID: idFromNull(r.DepartmentID),
		CreatedAt:    fromMillis(r.CreatedAt),
		UpdatedAt:    fromMillis(r.UpdatedAt),
	}
}

const roomColumns = `id, name, capacity, building, floor, resources, status, description, department_id, created_at, updated_at`

func encodeResources(resources []string) (string, error) {
	if resources == nil {
		resources = []string{}
	}
	raw, err := json.Marshal(resources)
	if err != nil {
		return "", fmt.Errorf("encode resources: %w", err)
	}
	return string(raw), nil
}

// CreateRoom inserts a room.
func (s *Store) CreateRoom(ctx context.Context, room application.Room) (application.Room, error) {
	resources, err := encodeResources(room.Resources)
	if err != nil {
		return application.Room{}, err
	}
	query := s.db.Rebind(`INSERT INTO rooms (name, capacity, building, floor, resources, status, description, department_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	var id int64
	err = s.db.GetContext(ctx, &id, query,
		room.Name, room.Capacity, room.Building, room.Floor, resources, string(room.Status),
		room.Description, nullableID(room.DepartmentID), toMillis(room.CreatedAt), toMillis(room.UpdatedAt))
	if err != nil {
		return application.Room{}, mapError(err)
	}
	return s.GetRoom(ctx, id)
}

// GetRoom loads a room by id.
func (s *Store) GetRoom(ctx context.Context, id int64) (application.Room, error) {
	var row roomRow
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT `+roomColumns+` FROM rooms WHERE id = ?`), id); err != nil {
		return application.Room{}, mapError(err)
	}
	return row.room(), nil
}

// UpdateRoom stores every editable room field.
func (s *Store) UpdateRoom(ctx context.Context, room application.Room) (application.Room, error) {
	resources, err := encodeResources(room.Resources)
	if err != nil {
		return application.Room{}, err
	}
	query := s.db.Rebind(`UPDATE rooms SET name = ?, capacity = ?, building = ?, floor = ?, resources = ?,
		status = ?, description = ?, department_id = ?, updated_at = ? WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query,
		room.Name, room.Capacity, room.Building, room.Floor, resources, string(room.Status),
		room.Description, nullableID(room.DepartmentID), toMillis(room.UpdatedAt), room.ID)
	if err := expectAffected(res, err); err != nil {
		return application.Room{}, err
	}
	return s.GetRoom(ctx, room.ID)
}

// DeleteRoom removes a room and its maintenance requests. Rooms referenced by
// any booking fail with persistence.ErrForeignKeyViolation.
func (s *Store) DeleteRoom(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM rooms WHERE id = ?`), id)
	return expectAffected(res, err)
}

// ListRooms returns rooms matching filter ordered by building and name.
func (s *Store) ListRooms(ctx context.Context, filter persistence.RoomFilter) ([]application.Room, error) {
	var where persistence.Where
	if filter.Status != "" {
		where.Add("status = ?", filter.Status)
	}
	if filter.Building != "" {
		where.Add("building = ?", filter.Building)
	}
	if filter.DepartmentID != 0 {
		where.Add("department_id = ?", filter.DepartmentID)
	}
	if filter.MinCapacity > 0 {
		where.Add("capacity >= ?", filter.MinCapacity)
	}
	query := `SELECT ` + roomColumns + ` FROM rooms` + where.SQL() + ` ORDER BY building, name, id`
	return s.selectRooms(ctx, query, where.Args()...)
}

// ListAvailableRooms returns rooms in service with no confirmed booking overlapping window.
func (s *Store) ListAvailableRooms(ctx context.Context, window scheduler.Interval) ([]application.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms r
		WHERE r.status = ?
		  AND NOT EXISTS (
			SELECT 1 FROM bookings b
			WHERE b.room_id = r.id
			  AND b.status = ?
			  AND b.start_ms < ?
			  AND b.end_ms > ?
		  )
		ORDER BY r.building, r.name, r.id`
	return s.selectRooms(ctx, query,
		string(application.RoomAvailable), string(scheduler.StatusConfirmed),
		toMillis(window.End), toMillis(window.Start))
}

func (s *Store) selectRooms(ctx context.Context, query string, args ...any) ([]application.Room, error) {
	var rows []roomRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, mapError(err)
	}
	rooms := make([]application.Room, 0, len(rows))
	for _, r := range rows {
		rooms = append(rooms, r.room())
	}
	return rooms, nil
}

// SetRoomStatus changes only the status of a room.
func (s *Store) SetRoomStatus(ctx context.Context, id int64, status application.RoomStatus, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind(`UPDATE rooms SET status = ?, updated_at = ? WHERE id = ?`),
		string(status), toMillis(at), id)
	return expectAffected(res, err)
}

// HasUpcomingBookings reports whether the room has a confirmed booking that has not yet ended.
func (s *Store) HasUpcomingBookings(ctx context.Context, roomID int64, now time.Time) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		s.db.Rebind(`SELECT COUNT(*) FROM bookings WHERE room_id = ? AND status = ? AND end_ms > ?`),
		roomID, string(scheduler.StatusConfirmed), toMillis(now))
	if err != nil {
		return false, mapError(err)
	}
	return n > 0, nil
}
