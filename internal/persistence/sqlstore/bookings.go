package sqlstore

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/campus-rooms/internal/application"
	"github.com/example/campus-rooms/internal/persistence"
	"github.com/example/campus-rooms/internal/scheduler"
)

type bookingRow struct {
	ID          int64  `db:"id"`
	RoomID      int64  `db:"room_id"`
	UserID      int64  `db:"user_id"`
	Title       string `db:"title"`
	Description string `db:"description"`
	StartMS     int64  `db:"start_ms"`
	EndMS       int64  `db:"end_ms"`
	Recurring   bool   `db:"recurring"`
	Status      string `db:"status"`
	CreatedAt   int64  `db:"created_at"`
	UpdatedAt   int64  `db:"updated_at"`
	RoomName    string `db:"room_name"`
	UserName    string `db:"user_name"`
}

func (r bookingRow) booking() application.Booking {
	return application.Booking{
		ID:          r.ID,
		RoomID:      r.RoomID,
		UserID:      r.UserID,
		Title:       r.Title,
		Description: r.Description,
		Start:       fromMillis(r.StartMS),
		End:         fromMillis(r.EndMS),
		Recurring:   r.Recurring,
		Status:      scheduler.Status(r.Status),
		CreatedAt:   fromMillis(r.CreatedAt),
		UpdatedAt:   fromMillis(r.UpdatedAt),
		RoomName:    r.RoomName,
		UserName:    r.UserName,
	}
}

const bookingSelect = `SELECT b.id, b.room_id, b.user_id, b.title, b.description, b.start_ms, b.end_ms,
	b.recurring, b.status, b.created_at, b.updated_at,
	COALESCE(r.name, '') AS room_name, COALESCE(u.name, '') AS user_name
	FROM bookings b
	LEFT JOIN rooms r ON r.id = b.room_id
	LEFT JOIN users u ON u.id = b.user_id`

type reservationRow struct {
	ID      int64  `db:"id"`
	RoomID  int64  `db:"room_id"`
	Status  string `db:"status"`
	StartMS int64  `db:"start_ms"`
	EndMS   int64  `db:"end_ms"`
}

// bookingTx is the transactional view handed to the booking service.
type bookingTx struct {
	tx *sqlx.Tx
}

// WithinTx runs fn in one transaction so that the conflict check and the
// write it guards see the same data.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx application.BookingTx) error) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		return fn(ctx, bookingTx{tx: tx})
	})
}

func (t bookingTx) GetBooking(ctx context.Context, id int64) (application.Booking, error) {
	return getBooking(ctx, t.tx, id)
}

func (t bookingTx) ListReservations(ctx context.Context, roomID int64, window scheduler.Interval) ([]scheduler.Reservation, error) {
	return listReservations(ctx, t.tx, roomID, window)
}

func (t bookingTx) InsertBooking(ctx context.Context, b application.Booking) (application.Booking, error) {
	query := t.tx.Rebind(`INSERT INTO bookings (room_id, user_id, title, description, start_ms, end_ms, recurring, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	var id int64
	err := t.tx.GetContext(ctx, &id, query,
		b.RoomID, b.UserID, b.Title, b.Description, toMillis(b.Start), toMillis(b.End),
		b.Recurring, string(b.Status), toMillis(b.CreatedAt), toMillis(b.UpdatedAt))
	if err != nil {
		return application.Booking{}, mapError(err)
	}
	return getBooking(ctx, t.tx, id)
}

func (t bookingTx) UpdateBooking(ctx context.Context, b application.Booking) (application.Booking, error) {
	query := t.tx.Rebind(`UPDATE bookings SET room_id = ?, title = ?, description = ?, start_ms = ?, end_ms = ?,
		recurring = ?, status = ?, updated_at = ? WHERE id = ?`)
	res, err := t.tx.ExecContext(ctx, query,
		b.RoomID, b.Title, b.Description, toMillis(b.Start), toMillis(b.End),
		b.Recurring, string(b.Status), toMillis(b.UpdatedAt), b.ID)
	if err := expectAffected(res, err); err != nil {
		return application.Booking{}, err
	}
	return getBooking(ctx, t.tx, b.ID)
}

// GetBooking loads a booking by id.
func (s *Store) GetBooking(ctx context.Context, id int64) (application.Booking, error) {
	return getBooking(ctx, s.db, id)
}

// ListReservations returns the bookings of a room that overlap window.
func (s *Store) ListReservations(ctx context.Context, roomID int64, window scheduler.Interval) ([]scheduler.Reservation, error) {
	return listReservations(ctx, s.db, roomID, window)
}

// ListBookings returns bookings matching filter, most recent start first.
func (s *Store) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]application.Booking, error) {
	var where persistence.Where
	if filter.RoomID != 0 {
		where.Add("b.room_id = ?", filter.RoomID)
	}
	if filter.UserID != 0 {
		where.Add("b.user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		where.Add("b.status = ?", string(filter.Status))
	}
	if filter.From != nil {
		where.Add("b.end_ms > ?", toMillis(*filter.From))
	}
	if filter.To != nil {
		where.Add("b.start_ms < ?", toMillis(*filter.To))
	}

	query := bookingSelect + where.SQL() + ` ORDER BY b.start_ms DESC, b.id DESC`
	args := where.Args()
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	var rows []bookingRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, mapError(err)
	}
	bookings := make([]application.Booking, 0, len(rows))
	for _, r := range rows {
		bookings = append(bookings, r.booking())
	}
	return bookings, nil
}

// DeleteBooking removes a booking permanently.
func (s *Store) DeleteBooking(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM bookings WHERE id = ?`), id)
	return expectAffected(res, err)
}

// CompleteElapsedBookings marks confirmed bookings that ended at or before now as completed.
func (s *Store) CompleteElapsedBookings(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind(`UPDATE bookings SET status = ?, updated_at = ? WHERE status = ? AND end_ms <= ?`),
		string(scheduler.StatusCompleted), toMillis(now), string(scheduler.StatusConfirmed), toMillis(now))
	if err != nil {
		return 0, mapError(err)
	}
	return res.RowsAffected()
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	sqlx.QueryerContext
	Rebind(query string) string
}

func getBooking(ctx context.Context, q queryer, id int64) (application.Booking, error) {
	var row bookingRow
	if err := sqlx.GetContext(ctx, q, &row, q.Rebind(bookingSelect+` WHERE b.id = ?`), id); err != nil {
		return application.Booking{}, mapError(err)
	}
	return row.booking(), nil
}

func listReservations(ctx context.Context, q queryer, roomID int64, window scheduler.Interval) ([]scheduler.Reservation, error) {
	query := q.Rebind(`SELECT id, room_id, status, start_ms, end_ms FROM bookings
		WHERE room_id = ? AND start_ms < ? AND end_ms > ?
		ORDER BY start_ms, id`)
	var rows []reservationRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, roomID, toMillis(window.End), toMillis(window.Start)); err != nil {
		return nil, mapError(err)
	}
	out := make([]scheduler.Reservation, 0, len(rows))
	for _, r := range rows {
		out = append(out, scheduler.Reservation{
			ID:       r.ID,
			RoomID:   r.RoomID,
			Status:   scheduler.Status(r.Status),
			Interval: scheduler.NewInterval(fromMillis(r.StartMS), fromMillis(r.EndMS)),
		})
	}
	return out, nil
}
