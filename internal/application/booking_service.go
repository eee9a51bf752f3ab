package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/campus-rooms/internal/persistence"
	"github.com/example/campus-rooms/internal/scheduler"
)

// MaxBookingTitleLength bounds booking titles in characters.
const MaxBookingTitleLength = 200

// BookingRepository captures the persistence operations needed by the booking service.
type BookingRepository interface {
	// WithinTx runs fn in a single transaction; conflict checks and the
	// write that depends on them must go through the BookingTx it receives.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx BookingTx) error) error
	GetBooking(ctx context.Context, id int64) (Booking, error)
	ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]Booking, error)
	ListReservations(ctx context.Context, roomID int64, window scheduler.Interval) ([]scheduler.Reservation, error)
	DeleteBooking(ctx context.Context, id int64) error
	CompleteElapsedBookings(ctx context.Context, now time.Time) (int64, error)
}

// BookingTx is the transactional view of the booking store.
type BookingTx interface {
	GetBooking(ctx context.Context, id int64) (Booking, error)
	ListReservations(ctx context.Context, roomID int64, window scheduler.Interval) ([]scheduler.Reservation, error)
	InsertBooking(ctx context.Context, booking Booking) (Booking, error)
	UpdateBooking(ctx context.Context, booking Booking) (Booking, error)
}

// RoomLookup resolves rooms referenced by bookings.
type RoomLookup interface {
	GetRoom(ctx context.Context, id int64) (Room, error)
}

// BookingRecorder receives booking operation outcomes for metrics.
type BookingRecorder interface {
	BookingOperation(operation, result string)
}

// BookingInput captures caller provided booking fields.
type BookingInput struct {
	RoomID      int64
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Recurring   bool
}

// CreateBookingParams wraps the data required to create a booking.
type CreateBookingParams struct {
	Principal Principal
	Input     BookingInput
}

// UpdateBookingParams wraps the data required to update a booking.
type UpdateBookingParams struct {
	Principal Principal
	BookingID int64
	Input     BookingInput
}

// BookingService enforces the no-overlap rule and the booking lifecycle.
type BookingService struct {
	bookings BookingRepository
	rooms    RoomLookup
	events   EventPublisher
	recorder BookingRecorder
	now      func() time.Time
	logger   *slog.Logger
}

// NewBookingService constructs a booking service with the provided dependencies.
func NewBookingService(bookings BookingRepository, rooms RoomLookup, events EventPublisher, now func() time.Time) *BookingService {
	return NewBookingServiceWithLogger(bookings, rooms, events, now, nil)
}

// NewBookingServiceWithLogger constructs a booking service with a specified logger.
func NewBookingServiceWithLogger(bookings BookingRepository, rooms RoomLookup, events EventPublisher, now func() time.Time, logger *slog.Logger) *BookingService {
	if now == nil {
		now = time.Now
	}
	return &BookingService{bookings: bookings, rooms: rooms, events: events, now: now, logger: defaultLogger(logger)}
}

// WithRecorder attaches a metrics recorder and returns the service.
func (s *BookingService) WithRecorder(recorder BookingRecorder) *BookingService {
	s.recorder = recorder
	return s
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

func (s *BookingService) record(operation string, err error) {
	if s.recorder == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = ErrorKind(err)
	}
	s.recorder.BookingOperation(operation, result)
}

// CheckConflict reports whether a confirmed booking other than excludeID
// occupies any part of [start, end) on roomID.
func (s *BookingService) CheckConflict(ctx context.Context, roomID int64, start, end time.Time, excludeID int64) (bool, error) {
	if s == nil || s.bookings == nil {
		return false, fmt.Errorf("booking repository not configured")
	}
	window := bookingWindow(start, end)
	if vErr := validateWindow(window); vErr.HasErrors() {
		return false, vErr
	}
	existing, err := s.bookings.ListReservations(ctx, roomID, window)
	if err != nil {
		return false, mapBookingRepoError(err)
	}
	_, conflict := scheduler.CheckConflict(existing, roomID, window, excludeID)
	return conflict, nil
}

// CreateBooking validates input and stores a confirmed booking owned by the caller.
func (s *BookingService) CreateBooking(ctx context.Context, params CreateBookingParams) (booking Booking, err error) {
	if s == nil || s.bookings == nil {
		err = fmt.Errorf("booking repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateBooking",
		"principal_id", params.Principal.UserID,
		"room_id", params.Input.RoomID,
	)
	defer func() {
		s.record("create", err)
		logOutcome(ctx, logger, err, "failed to create booking", "booking created", "booking_id", booking.ID)
	}()

	if params.Principal.UserID == 0 {
		err = ErrUnauthenticated
		return
	}

	input := normalizeBookingInput(params.Input)
	if vErr := validateBookingInput(input); vErr.HasErrors() {
		err = vErr
		return
	}
	if err = s.ensureRoom(ctx, input.RoomID); err != nil {
		return
	}

	now := s.now()
	candidate := Booking{
		RoomID:      input.RoomID,
		UserID:      params.Principal.UserID,
		Title:       input.Title,
		Description: input.Description,
		Start:       input.Start,
		End:         input.End,
		Recurring:   input.Recurring,
		Status:      scheduler.StatusConfirmed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.bookings.WithinTx(ctx, func(ctx context.Context, tx BookingTx) error {
		if err := s.ensureFree(ctx, tx, candidate); err != nil {
			return err
		}
		created, err := tx.InsertBooking(ctx, candidate)
		if err != nil {
			return err
		}
		booking = created
		return nil
	})
	if err != nil {
		booking = Booking{}
		err = s.mapWriteError(err, candidate)
		return
	}

	publish(ctx, s.events, logger, BookingCreated{Booking: booking, Actor: params.Principal})
	return
}

// UpdateBooking rewrites a booking's room, window, and details for its owner or an administrator.
func (s *BookingService) UpdateBooking(ctx context.Context, params UpdateBookingParams) (booking Booking, err error) {
	if s == nil || s.bookings == nil {
		err = fmt.Errorf("booking repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateBooking",
		"principal_id", params.Principal.UserID,
		"booking_id", params.BookingID,
	)
	defer func() {
		s.record("update", err)
		logOutcome(ctx, logger, err, "failed to update booking", "booking updated", "room_id", booking.RoomID)
	}()

	input := normalizeBookingInput(params.Input)
	if vErr := validateBookingInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	if err = s.ensureRoom(ctx, input.RoomID); err != nil {
		return
	}

	var previous, candidate Booking
	err = s.bookings.WithinTx(ctx, func(ctx context.Context, tx BookingTx) error {
		existing, err := tx.GetBooking(ctx, params.BookingID)
		if err != nil {
			return err
		}
		if !canManage(params.Principal, existing) {
			return ErrUnauthorized
		}
		if !existing.Status.Mutable() {
			return fmt.Errorf("%w: %s bookings cannot be edited", ErrInvalidTransition, existing.Status)
		}

		previous = existing
		candidate = existing
		candidate.RoomID = input.RoomID
		candidate.Title = input.Title
		candidate.Description = input.Description
		candidate.Start = input.Start
		candidate.End = input.End
		candidate.Recurring = input.Recurring
		candidate.UpdatedAt = s.now()

		if err := s.ensureFree(ctx, tx, candidate); err != nil {
			return err
		}
		updated, err := tx.UpdateBooking(ctx, candidate)
		if err != nil {
			return err
		}
		booking = updated
		return nil
	})
	if err != nil {
		booking = Booking{}
		err = s.mapWriteError(err, candidate)
		return
	}

	publish(ctx, s.events, logger, BookingUpdated{Booking: booking, Previous: previous, Actor: params.Principal})
	return
}

// CancelBooking soft-cancels a booking for its owner or an administrator.
func (s *BookingService) CancelBooking(ctx context.Context, principal Principal, bookingID int64) (booking Booking, err error) {
	if s == nil || s.bookings == nil {
		err = fmt.Errorf("booking repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CancelBooking",
		"principal_id", principal.UserID,
		"booking_id", bookingID,
	)
	defer func() {
		s.record("cancel", err)
		logOutcome(ctx, logger, err, "failed to cancel booking", "booking cancelled")
	}()

	booking, err = s.transition(ctx, bookingID, scheduler.StatusCancelled, func(existing Booking) error {
		if !canManage(principal, existing) {
			return ErrUnauthorized
		}
		return nil
	})
	if err != nil {
		return
	}

	publish(ctx, s.events, logger, BookingCancelled{Booking: booking, Actor: principal})
	return
}

// SetBookingStatus applies an administrator-driven status transition.
// Confirming a pending booking re-checks the room for overlaps.
func (s *BookingService) SetBookingStatus(ctx context.Context, principal Principal, bookingID int64, status scheduler.Status) (booking Booking, err error) {
	if s == nil || s.bookings == nil {
		err = fmt.Errorf("booking repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "SetBookingStatus",
		"principal_id", principal.UserID,
		"booking_id", bookingID,
		"status", string(status),
	)
	defer func() {
		s.record("set_status", err)
		logOutcome(ctx, logger, err, "failed to change booking status", "booking status changed")
	}()

	if !principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}
	if !status.Valid() {
		err = NewValidationError("status", "must be one of confirmed, pending, cancelled, completed")
		return
	}

	var previous Booking
	booking, err = s.transition(ctx, bookingID, status, func(existing Booking) error {
		previous = existing
		return nil
	})
	if err != nil {
		return
	}

	var event Event = BookingUpdated{Booking: booking, Previous: previous, Actor: principal}
	if status == scheduler.StatusCancelled {
		event = BookingCancelled{Booking: booking, Actor: principal}
	}
	publish(ctx, s.events, logger, event)
	return
}

func (s *BookingService) transition(ctx context.Context, bookingID int64, to scheduler.Status, guard func(Booking) error) (booking Booking, err error) {
	var candidate Booking
	err = s.bookings.WithinTx(ctx, func(ctx context.Context, tx BookingTx) error {
		existing, err := tx.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := guard(existing); err != nil {
			return err
		}
		next, err := scheduler.Transition(existing.Status, to)
		if err != nil {
			return err
		}

		candidate = existing
		candidate.Status = next
		candidate.UpdatedAt = s.now()
		if next.BlocksSlot() {
			if err := s.ensureFree(ctx, tx, candidate); err != nil {
				return err
			}
		}

		updated, err := tx.UpdateBooking(ctx, candidate)
		if err != nil {
			return err
		}
		booking = updated
		return nil
	})
	if err != nil {
		return Booking{}, s.mapWriteError(err, candidate)
	}
	return booking, nil
}

// DeleteBooking permanently removes a booking. Only administrators may do this.
func (s *BookingService) DeleteBooking(ctx context.Context, principal Principal, bookingID int64) (err error) {
	if s == nil || s.bookings == nil {
		return fmt.Errorf("booking repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteBooking",
		"principal_id", principal.UserID,
		"booking_id", bookingID,
	)
	defer func() {
		s.record("delete", err)
		logOutcome(ctx, logger, err, "failed to delete booking", "booking deleted")
	}()

	if !principal.IsAdmin() {
		return ErrUnauthorized
	}

	existing, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return mapBookingRepoError(err)
	}
	if err = s.bookings.DeleteBooking(ctx, bookingID); err != nil {
		return mapBookingRepoError(err)
	}

	publish(ctx, s.events, logger, BookingDeleted{Booking: existing, Actor: principal})
	return nil
}

// CompleteElapsedBookings marks confirmed bookings that have ended as completed.
func (s *BookingService) CompleteElapsedBookings(ctx context.Context) (count int64, err error) {
	if s == nil || s.bookings == nil {
		return 0, fmt.Errorf("booking repository not configured")
	}

	now := s.now()
	logger := s.loggerWith(ctx, "CompleteElapsedBookings")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to complete elapsed bookings", "error", err)
			return
		}
		if count > 0 {
			logger.InfoContext(ctx, "elapsed bookings completed", "count", count)
		}
	}()

	count, err = s.bookings.CompleteElapsedBookings(ctx, now)
	return
}

// GetBooking returns a booking visible to the caller.
func (s *BookingService) GetBooking(ctx context.Context, principal Principal, bookingID int64) (Booking, error) {
	if s == nil || s.bookings == nil {
		return Booking{}, fmt.Errorf("booking repository not configured")
	}
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return Booking{}, mapBookingRepoError(err)
	}
	if !canManage(principal, booking) {
		return Booking{}, ErrUnauthorized
	}
	return booking, nil
}

// ListMyBookings returns the caller's bookings, most recent start first.
func (s *BookingService) ListMyBookings(ctx context.Context, principal Principal) ([]Booking, error) {
	if s == nil || s.bookings == nil {
		return nil, fmt.Errorf("booking repository not configured")
	}
	if principal.UserID == 0 {
		return nil, ErrUnauthenticated
	}
	bookings, err := s.bookings.ListBookings(ctx, persistence.BookingFilter{UserID: principal.UserID})
	if err != nil {
		return nil, mapBookingRepoError(err)
	}
	return bookings, nil
}

// ListBookings returns every booking matching filter. Only administrators may list all bookings.
func (s *BookingService) ListBookings(ctx context.Context, principal Principal, filter persistence.BookingFilter) (bookings []Booking, err error) {
	if s == nil || s.bookings == nil {
		return nil, fmt.Errorf("booking repository not configured")
	}

	logger := s.loggerWith(ctx, "ListBookings", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "failed to list bookings", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "bookings listed", "result_count", len(bookings))
	}()

	if !principal.IsAdmin() {
		return nil, ErrUnauthorized
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, NewValidationError("status", "must be one of confirmed, pending, cancelled, completed")
	}
	if filter.From != nil && filter.To != nil && !filter.To.After(*filter.From) {
		return nil, NewValidationError("to", "must be after from")
	}

	bookings, err = s.bookings.ListBookings(ctx, filter)
	if err != nil {
		err = mapBookingRepoError(err)
	}
	return
}

func (s *BookingService) ensureRoom(ctx context.Context, roomID int64) error {
	if s.rooms == nil {
		return nil
	}
	if _, err := s.rooms.GetRoom(ctx, roomID); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
			return fmt.Errorf("room %d: %w", roomID, ErrNotFound)
		}
		return err
	}
	return nil
}

func (s *BookingService) ensureFree(ctx context.Context, tx BookingTx, candidate Booking) error {
	existing, err := tx.ListReservations(ctx, candidate.RoomID, candidate.Interval())
	if err != nil {
		return err
	}
	if blocking, found := scheduler.CheckConflict(existing, candidate.RoomID, candidate.Interval(), candidate.ID); found {
		return &ConflictError{
			RoomID:            candidate.RoomID,
			Start:             candidate.Start,
			End:               candidate.End,
			BlockingBookingID: blocking.ID,
		}
	}
	return nil
}

func (s *BookingService) mapWriteError(err error, candidate Booking) error {
	if errors.Is(err, persistence.ErrOverlap) {
		return &ConflictError{RoomID: candidate.RoomID, Start: candidate.Start, End: candidate.End}
	}
	if errors.Is(err, scheduler.ErrInvalidTransition) {
		return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}
	return mapBookingRepoError(err)
}

func canManage(principal Principal, booking Booking) bool {
	return principal.IsAdmin() || (principal.UserID != 0 && principal.UserID == booking.UserID)
}

func normalizeBookingInput(input BookingInput) BookingInput {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	input.Start = input.Start.Truncate(time.Millisecond)
	input.End = input.End.Truncate(time.Millisecond)
	return input
}

// bookingWindow builds an interval at the millisecond resolution bookings are stored with.
func bookingWindow(start, end time.Time) scheduler.Interval {
	return scheduler.NewInterval(start.Truncate(time.Millisecond), end.Truncate(time.Millisecond))
}

func validateBookingInput(input BookingInput) *ValidationError {
	vErr := &ValidationError{}

	if input.RoomID <= 0 {
		vErr.add("roomId", "room is required")
	}
	switch n := utf8.RuneCountInString(input.Title); {
	case n == 0:
		vErr.add("title", "title is required")
	case n > MaxBookingTitleLength:
		vErr.add("title", fmt.Sprintf("title must be at most %d characters", MaxBookingTitleLength))
	}
	vErr.merge(validateWindow(scheduler.NewInterval(input.Start, input.End)))

	return vErr
}

func validateWindow(window scheduler.Interval) *ValidationError {
	vErr := &ValidationError{}
	if window.Start.IsZero() {
		vErr.add("startTime", "start time is required")
	}
	if window.End.IsZero() {
		vErr.add("endTime", "end time is required")
	}
	if !window.Start.IsZero() && !window.End.IsZero() && !window.Valid() {
		vErr.add("endTime", "end time must be after start time")
	}
	return vErr
}

func mapBookingRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("booking: %w", ErrNotFound)
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		return fmt.Errorf("booking references a missing room or user: %w", ErrNotFound)
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		return NewValidationError("endTime", "end time must be after start time")
	}
	return err
}
