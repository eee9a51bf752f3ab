package application

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/campus-rooms/internal/persistence"
	"github.com/example/campus-rooms/internal/scheduler"
)

type memoryBookings struct {
	mu        sync.Mutex
	nextID    int64
	rows      map[int64]Booking
	insertErr error
	completed int64
}

func newMemoryBookings() *memoryBookings {
	return &memoryBookings{rows: make(map[int64]Booking)}
}

func (m *memoryBookings) WithinTx(ctx context.Context, fn func(ctx context.Context, tx BookingTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make(map[int64]Booking, len(m.rows))
	for id, b := range m.rows {
		snapshot[id] = b
	}
	nextID := m.nextID

	if err := fn(ctx, memoryBookingTx{m}); err != nil {
		m.rows = snapshot
		m.nextID = nextID
		return err
	}
	return nil
}

func (m *memoryBookings) GetBooking(ctx context.Context, id int64) (Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memoryBookingTx{m}.GetBooking(ctx, id)
}

func (m *memoryBookings) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Booking
	for _, b := range m.rows {
		if filter.UserID != 0 && b.UserID != filter.UserID {
			continue
		}
		if filter.RoomID != 0 && b.RoomID != filter.RoomID {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.After(out[j].Start) })
	return out, nil
}

func (m *memoryBookings) ListReservations(ctx context.Context, roomID int64, window scheduler.Interval) ([]scheduler.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memoryBookingTx{m}.ListReservations(ctx, roomID, window)
}

func (m *memoryBookings) DeleteBooking(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memoryBookings) CompleteElapsedBookings(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, b := range m.rows {
		if b.Status == scheduler.StatusConfirmed && !b.End.After(now) {
			b.Status = scheduler.StatusCompleted
			m.rows[id] = b
			n++
		}
	}
	m.completed += n
	return n, nil
}

func (m *memoryBookings) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memoryBookingTx struct{ m *memoryBookings }

func (tx memoryBookingTx) GetBooking(_ context.Context, id int64) (Booking, error) {
	b, ok := tx.m.rows[id]
	if !ok {
		return Booking{}, persistence.ErrNotFound
	}
	return b, nil
}

func (tx memoryBookingTx) ListReservations(_ context.Context, roomID int64, _ scheduler.Interval) ([]scheduler.Reservation, error) {
	var out []scheduler.Reservation
	for _, b := range tx.m.rows {
		if b.RoomID == roomID {
			out = append(out, b.Reservation())
		}
	}
	return out, nil
}

func (tx memoryBookingTx) InsertBooking(_ context.Context, b Booking) (Booking, error) {
	if tx.m.insertErr != nil {
		return Booking{}, tx.m.insertErr
	}
	tx.m.nextID++
	b.ID = tx.m.nextID
	tx.m.rows[b.ID] = b
	return b, nil
}

func (tx memoryBookingTx) UpdateBooking(_ context.Context, b Booking) (Booking, error) {
	if _, ok := tx.m.rows[b.ID]; !ok {
		return Booking{}, persistence.ErrNotFound
	}
	tx.m.rows[b.ID] = b
	return b, nil
}

type roomLookupStub map[int64]Room

func (r roomLookupStub) GetRoom(_ context.Context, id int64) (Room, error) {
	room, ok := r[id]
	if !ok {
		return Room{}, persistence.ErrNotFound
	}
	return room, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(_ context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventName()
	}
	return out
}

var (
	admin     = Principal{UserID: 1, Role: RoleAdmin}
	lecturer  = Principal{UserID: 2, Role: RoleLecturer}
	colleague = Principal{UserID: 3, Role: RoleLecturer}
	day       = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
)

func hour(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

type bookingHarness struct {
	svc    *BookingService
	store  *memoryBookings
	events *recordingPublisher
}

func newBookingHarness() bookingHarness {
	store := newMemoryBookings()
	events := &recordingPublisher{}
	rooms := roomLookupStub{
		1: {ID: 1, Name: "Lecture Hall A", Status: RoomAvailable},
		2: {ID: 2, Name: "Seminar Room B", Status: RoomAvailable},
	}
	svc := NewBookingService(store, rooms, events, func() time.Time { return day })
	return bookingHarness{svc: svc, store: store, events: events}
}

func (h bookingHarness) book(t *testing.T, who Principal, roomID int64, start, end time.Time) Booking {
	t.Helper()
	b, err := h.svc.CreateBooking(context.Background(), CreateBookingParams{
		Principal: who,
		Input:     BookingInput{RoomID: roomID, Title: "Lecture", Start: start, End: end},
	})
	require.NoError(t, err)
	return b
}

func TestBookingService_CreateBooking(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("stores a confirmed booking owned by the caller", func(t *testing.T) {
		t.Parallel()
		h := newBookingHarness()
		b := h.book(t, lecturer, 1, hour(10, 0), hour(11, 0))

		assert.NotZero(t, b.ID)
		assert.Equal(t, scheduler.StatusConfirmed, b.Status)
		assert.Equal(t, lecturer.UserID, b.UserID)
		assert.Equal(t, []string{"booking.created"}, h.events.names())
	})

	t.Run("touching bookings are allowed", func(t *testing.T) {
		t.Parallel()
		h := newBookingHarness()
		h.book(t, lecturer, 1, hour(10, 0), hour(11, 0))
		h.book(t, colleague, 1, hour(11, 0), hour(12, 0))
		assert.Equal(t, 2, h.store.count())
	})

	t.Run("overlap is rejected and nothing is written", func(t *testing.T) {
		t.Parallel()
		h := newBookingHarness()
		a := h.book(t, lecturer, 1, hour(10, 0), hour(12, 0))

		_, err := h.svc.CreateBooking(ctx, CreateBookingParams{
			Principal: colleague,
			Input:     BookingInput{RoomID: 1, Title: "Clash", Start: hour(11, 0), End: hour(13, 0)},
		})
		require.ErrorIs(t, err, ErrConflict)

		var cErr *ConflictError
		require.ErrorAs(t, err, &cErr)
		assert.Equal(t, a.ID, cErr.BlockingBookingID)

		assert.Equal(t, 1, h.store.count())
		got, err := h.svc.GetBooking(ctx, admin, a.ID)
		require.NoError(t, err)
		assert.Equal(t, a, got)
	})

	t.Run("rooms are independent", func(t *testing.T) {
		t.Parallel()
		h := newBookingHarness()
		h.book(t, lecturer, 1, hour(10, 0), hour(12, 0))
		h.book(t, lecturer, 2, hour(10, 0), hour(12, 0))
	})

	t.Run("rejects invalid input before touching the store", func(t *testing.T) {
		t.Parallel()
		h := newBookingHarness()

		long := make([]byte, MaxBookingTitleLength+1)
		for i := range long {
			long[i] = 'x'
		}
		cases := []struct {
			field string
			input BookingInput
		}{
			{"title", BookingInput{RoomID: 1, Title: "  ", Start: hour(10, 0), End: hour(11, 0)}},
			{"title", BookingInput{RoomID: 1, Title: string(long), Start: hour(10, 0), End: hour(11, 0)}},
			{"endTime", BookingInput{RoomID: 1, Title: "x", Start: hour(10, 0), End: hour(10, 0)}},
			{"endTime", BookingInput{RoomID: 1, Title: "x", Start: hour(11, 0), End: hour(10, 0)}},
			{"roomId", BookingInput{Title: "x", Start: hour(10, 0), End: hour(11, 0)}},
			{"startTime", BookingInput{RoomID: 1, Title: "x", End: hour(11, 0)}},
		}
		for _, tc := range cases {
			_, err := h.svc.CreateBooking(ctx, CreateBookingParams{Principal: lecturer, Input: tc.input})
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr, tc.field)
			assert.Contains(t, vErr.FieldErrors, tc.field)
		}
		assert.Zero(t, h.store.count())
	})

	t.Run("unknown room is not found", func(t *testing.T) {
		t.Parallel()
		h := newBookingHarness()
		_, err := h.svc.CreateBooking(ctx, CreateBookingParams{
			Principal: lecturer,
			Input:     BookingInput{RoomID: 99, Title: "x", Start: hour(10, 0), End: hour(11, 0)},
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("store level overlap becomes a conflict", func(t *testing.T) {
		t.Parallel()
		h := newBookingHarness()
		h.store.insertErr = persistence.ErrOverlap
		_, err := h.svc.CreateBooking(ctx, CreateBookingParams{
			Principal: lecturer,
			Input:     BookingInput{RoomID: 1, Title: "x", Start: hour(10, 0), End: hour(11, 0)},
		})
		assert.ErrorIs(t, err, ErrConflict)
		assert.Empty(t, h.events.names())
	})

	t.Run("store level check violation is a validation error", func(t *testing.T) {
		t.Parallel()
		h := newBookingHarness()
		h.store.insertErr = persistence.ErrConstraintViolation
		_, err := h.svc.CreateBooking(ctx, CreateBookingParams{
			Principal: lecturer,
			Input:     BookingInput{RoomID: 1, Title: "x", Start: hour(10, 0), End: hour(11, 0)},
		})
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.FieldErrors, "endTime")
	})

	t.Run("times are truncated to milliseconds", func(t *testing.T) {
		t.Parallel()
		h := newBookingHarness()
		b := h.book(t, lecturer, 1, hour(10, 0).Add(300*time.Microsecond), hour(11, 0).Add(999*time.Microsecond))
		assert.Equal(t, hour(10, 0), b.Start)
		assert.Equal(t, hour(11, 0), b.End)

		_, err := h.svc.CreateBooking(ctx, CreateBookingParams{
			Principal: colleague,
			Input:     BookingInput{RoomID: 2, Title: "x", Start: hour(9, 0).Add(100 * time.Microsecond), End: hour(9, 0).Add(600 * time.Microsecond)},
		})
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.FieldErrors, "endTime")
	})

	t.Run("requires an authenticated caller", func(t *testing.T) {
		t.Parallel()
		h := newBookingHarness()
		_, err := h.svc.CreateBooking(ctx, CreateBookingParams{
			Input: BookingInput{RoomID: 1, Title: "x", Start: hour(10, 0), End: hour(11, 0)},
		})
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})
}

func TestBookingService_ConcurrentCreatesKeepRoomFree(t *testing.T) {
	t.Parallel()
	h := newBookingHarness()

	const writers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			who := Principal{UserID: int64(10 + i), Role: RoleLecturer}
			_, err := h.svc.CreateBooking(context.Background(), CreateBookingParams{
				Principal: who,
				Input:     BookingInput{RoomID: 1, Title: "Race", Start: hour(9, i), End: hour(10, i)},
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, writers-1, conflicts)

	all, err := h.store.ListBookings(context.Background(), persistence.BookingFilter{})
	require.NoError(t, err)
	reservations := make([]scheduler.Reservation, len(all))
	for i, b := range all {
		reservations[i] = b.Reservation()
	}
	assert.Empty(t, scheduler.FindConflicts(reservations))
}

func TestBookingService_UpdateBooking(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	update := func(h bookingHarness, who Principal, id int64, room int64, start, end time.Time) (Booking, error) {
		return h.svc.UpdateBooking(ctx, UpdateBookingParams{
			Principal: who,
			BookingID: id,
			Input:     BookingInput{RoomID: room, Title: "Moved", Start: start, End: end},
		})
	}

	t.Run("excludes itself from the conflict check", func(t *testing.T) {
		t.Parallel()
		h := newBookingHarness()
		a := h.book(t, lecturer, 1, hour(10, 0), hour(11, 0))

		got, err := update(h, lecturer, a.ID, 1, hour(10, 30), hour(11, 30))
		require.NoError(t, err)
		assert.Equal(t, hour(10, 30), got.Start)
		assert.Equal(t, "Moved", got.Title)
	})

	t.Run("conflict leaves the booking unchanged", func(t *testing.T) {
		t.Parallel()
		h := newBookingHarness()
		h.book(t, lecturer, 1, hour(10, 0), hour(11, 0))
		b := h.book(t, lecturer, 1, hour(12, 0), hour(13, 0))

		_, err := update(h, lecturer, b.ID, 1, hour(10, 30), hour(12, 30))
		require.ErrorIs(t, err, ErrConflict)

		got, err := h.svc.GetBooking(ctx, lecturer, b.ID)
		require.NoError(t, err)
		assert.Equal(t, b, got)
	})

	t.Run("moving to another room checks that room", func(t *testing.T) {
		t.Parallel()
		h := newBookingHarness()
		a := h.book(t, lecturer, 1, hour(10, 0), hour(11, 0))
		h.book(t, colleague, 2, hour(10, 0), hour(11, 0))

		_, err := update(h, lecturer, a.ID, 2, hour(10, 0), hour(11, 0))
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("only owner or admin may update", func(t *testing.T) {
		t.Parallel()
		h := newBookingHarness()
		a := h.book(t, lecturer, 1, hour(10, 0), hour(11, 0))

		_, err := update(h, colleague, a.ID, 1, hour(14, 0), hour(15, 0))
		require.ErrorIs(t, err, ErrUnauthorized)

		_, err = update(h, admin, a.ID, 1, hour(14, 0), hour(15, 0))
		require.NoError(t, err)
	})

	t.Run("missing booking is not found", func(t *testing.T) {
		t.Parallel()
		h := newBookingHarness()
		_, err := update(h, admin, 404, 1, hour(14, 0), hour(15, 0))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("cancelled bookings cannot be edited", func(t *testing.T) {
		t.Parallel()
		h := newBookingHarness()
		a := h.book(t, lecturer, 1, hour(10, 0), hour(11, 0))
		_, err := h.svc.CancelBooking(ctx, lecturer, a.ID)
		require.NoError(t, err)

		_, err = update(h, lecturer, a.ID, 1, hour(14, 0), hour(15, 0))
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestBookingService_CancelBooking(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("cancellation frees the slot", func(t *testing.T) {
		t.Parallel()
		h := newBookingHarness()
		a := h.book(t, lecturer, 1, hour(10, 0), hour(11, 0))

		cancelled, err := h.svc.CancelBooking(ctx, lecturer, a.ID)
		require.NoError(t, err)
		assert.Equal(t, scheduler.StatusCancelled, cancelled.Status)

		h.book(t, colleague, 1, hour(10, 0), hour(11, 0))
		assert.Equal(t, []string{"booking.created", "booking.cancelled", "booking.created"}, h.events.names())
	})

	t.Run("other lecturers cannot cancel", func(t *testing.T) {
		t.Parallel()
		h := newBookingHarness()
		a := h.book(t, lecturer, 1, hour(10, 0), hour(11, 0))

		_, err := h.svc.CancelBooking(ctx, colleague, a.ID)
		require.ErrorIs(t, err, ErrUnauthorized)

		_, err = h.svc.CancelBooking(ctx, admin, a.ID)
		require.NoError(t, err)
	})

	t.Run("cancelling twice is an invalid transition", func(t *testing.T) {
		t.Parallel()
		h := newBookingHarness()
		a := h.book(t, lecturer, 1, hour(10, 0), hour(11, 0))
		_, err := h.svc.CancelBooking(ctx, lecturer, a.ID)
		require.NoError(t, err)

		_, err = h.svc.CancelBooking(ctx, lecturer, a.ID)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestBookingService_SetBookingStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("confirming a pending booking re-checks the room", func(t *testing.T) {
		t.Parallel()
		h := newBookingHarness()
		a := h.book(t, lecturer, 1, hour(10, 0), hour(11, 0))

		// Park a pending booking in the same slot directly in the store.
		var pending Booking
		require.NoError(t, h.store.WithinTx(ctx, func(ctx context.Context, tx BookingTx) error {
			var err error
			pending, err = tx.InsertBooking(ctx, Booking{
				RoomID: 1, UserID: colleague.UserID, Title: "Waiting",
				Start: hour(10, 30), End: hour(11, 30), Status: scheduler.StatusPending,
			})
			return err
		}))

		_, err := h.svc.SetBookingStatus(ctx, admin, pending.ID, scheduler.StatusConfirmed)
		require.ErrorIs(t, err, ErrConflict)

		_, err = h.svc.CancelBooking(ctx, admin, a.ID)
		require.NoError(t, err)

		confirmed, err := h.svc.SetBookingStatus(ctx, admin, pending.ID, scheduler.StatusConfirmed)
		require.NoError(t, err)
		assert.Equal(t, scheduler.StatusConfirmed, confirmed.Status)
	})

	t.Run("rejects transitions outside the table", func(t *testing.T) {
		t.Parallel()
		h := newBookingHarness()
		a := h.book(t, lecturer, 1, hour(10, 0), hour(11, 0))

		_, err := h.svc.SetBookingStatus(ctx, admin, a.ID, scheduler.StatusPending)
		assert.ErrorIs(t, err, ErrInvalidTransition)

		done, err := h.svc.SetBookingStatus(ctx, admin, a.ID, scheduler.StatusCompleted)
		require.NoError(t, err)
		assert.Equal(t, scheduler.StatusCompleted, done.Status)

		_, err = h.svc.SetBookingStatus(ctx, admin, a.ID, scheduler.StatusConfirmed)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("administrators only", func(t *testing.T) {
		t.Parallel()
		h := newBookingHarness()
		a := h.book(t, lecturer, 1, hour(10, 0), hour(11, 0))
		_, err := h.svc.SetBookingStatus(ctx, lecturer, a.ID, scheduler.StatusCompleted)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestBookingService_DeleteBooking(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newBookingHarness()
	a := h.book(t, lecturer, 1, hour(10, 0), hour(11, 0))

	require.ErrorIs(t, h.svc.DeleteBooking(ctx, lecturer, a.ID), ErrUnauthorized)
	require.NoError(t, h.svc.DeleteBooking(ctx, admin, a.ID))
	assert.Zero(t, h.store.count())
	assert.ErrorIs(t, h.svc.DeleteBooking(ctx, admin, a.ID), ErrNotFound)
}

func TestBookingService_Listing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newBookingHarness()
	early := h.book(t, lecturer, 1, hour(8, 0), hour(9, 0))
	late := h.book(t, lecturer, 1, hour(15, 0), hour(16, 0))
	h.book(t, colleague, 2, hour(8, 0), hour(9, 0))

	mine, err := h.svc.ListMyBookings(ctx, lecturer)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, late.ID, mine[0].ID)
	assert.Equal(t, early.ID, mine[1].ID)

	_, err = h.svc.ListBookings(ctx, lecturer, persistence.BookingFilter{})
	assert.ErrorIs(t, err, ErrUnauthorized)

	all, err := h.svc.ListBookings(ctx, admin, persistence.BookingFilter{RoomID: 2})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = h.svc.ListBookings(ctx, admin, persistence.BookingFilter{Status: "archived"})
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)

	_, err = h.svc.GetBooking(ctx, colleague, early.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestBookingService_CheckConflict(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newBookingHarness()
	a := h.book(t, lecturer, 1, hour(10, 0), hour(11, 0))

	busy, err := h.svc.CheckConflict(ctx, 1, hour(10, 30), hour(11, 30), 0)
	require.NoError(t, err)
	assert.True(t, busy)

	busy, err = h.svc.CheckConflict(ctx, 1, hour(10, 30), hour(11, 30), a.ID)
	require.NoError(t, err)
	assert.False(t, busy)

	_, err = h.svc.CheckConflict(ctx, 1, hour(11, 0), hour(10, 0), 0)
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestBookingService_CompleteElapsedBookings(t *testing.T) {
	t.Parallel()
	store := newMemoryBookings()
	now := hour(12, 0)
	svc := NewBookingService(store, nil, nil, func() time.Time { return now })

	ctx := context.Background()
	for _, w := range [][2]time.Time{{hour(9, 0), hour(10, 0)}, {hour(11, 0), hour(12, 0)}, {hour(13, 0), hour(14, 0)}} {
		_, err := svc.CreateBooking(ctx, CreateBookingParams{
			Principal: lecturer,
			Input:     BookingInput{RoomID: 1, Title: "x", Start: w[0], End: w[1]},
		})
		require.NoError(t, err)
	}

	n, err := svc.CompleteElapsedBookings(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
