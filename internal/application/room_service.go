package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/campus-rooms/internal/persistence"
	"github.com/example/campus-rooms/internal/scheduler"
)

// RoomRepository captures the persistence operations needed by the service.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) (Room, error)
	GetRoom(ctx context.Context, id int64) (Room, error)
	UpdateRoom(ctx context.Context, room Room) (Room, error)
	DeleteRoom(ctx context.Context, id int64) error
	ListRooms(ctx context.Context, filter persistence.RoomFilter) ([]Room, error)
	ListAvailableRooms(ctx context.Context, window scheduler.Interval) ([]Room, error)
	SetRoomStatus(ctx context.Context, id int64, status RoomStatus, at time.Time) error
	HasUpcomingBookings(ctx context.Context, roomID int64, now time.Time) (bool, error)
}

// RoomInput captures caller provided room fields.
type RoomInput struct {
	Name         string
	Capacity     int
	Building     string
	Floor        int
	Resources    []string
	Status       string
	Description  string
	DepartmentID *int64
}

// CreateRoomParams wraps the data required to create a room.
type CreateRoomParams struct {
	Principal Principal
	Input     RoomInput
}

// UpdateRoomParams wraps the data required to update an existing room.
type UpdateRoomParams struct {
	Principal Principal
	RoomID    int64
	Input     RoomInput
}

// RoomService orchestrates validation, authorization, and persistence for rooms.
type RoomService struct {
	rooms  RoomRepository
	now    func() time.Time
	logger *slog.Logger
}

// NewRoomService constructs a room service with the provided dependencies.
func NewRoomService(rooms RoomRepository, now func() time.Time) *RoomService {
	return NewRoomServiceWithLogger(rooms, now, nil)
}

// NewRoomServiceWithLogger constructs a room service with a specified logger.
func NewRoomServiceWithLogger(rooms RoomRepository, now func() time.Time, logger *slog.Logger) *RoomService {
	if now == nil {
		now = time.Now
	}
	return &RoomService{rooms: rooms, now: now, logger: defaultLogger(logger)}
}

func (s *RoomService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RoomService", operation, attrs...)
}

// CreateRoom validates input and persists a new room for administrators.
func (s *RoomService) CreateRoom(ctx context.Context, params CreateRoomParams) (room Room, err error) {
	if s == nil || s.rooms == nil {
		err = fmt.Errorf("room repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateRoom",
		"principal_id", params.Principal.UserID,
	)
	defer func() {
		logOutcome(ctx, logger, err, "failed to create room", "room created", "room_id", room.ID)
	}()

	if !params.Principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}

	input, vErr := normalizeRoomInput(params.Input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	room = Room{
		Name:         input.Name,
		Capacity:     input.Capacity,
		Building:     input.Building,
		Floor:        input.Floor,
		Resources:    input.Resources,
		Status:       RoomStatus(input.Status),
		Description:  input.Description,
		DepartmentID: input.DepartmentID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var persisted Room
	persisted, err = s.rooms.CreateRoom(ctx, room)
	if err != nil {
		room = Room{}
		err = mapRoomRepoError(err)
		return
	}

	room = persisted
	return
}

// UpdateRoom validates input and updates an existing room for administrators.
func (s *RoomService) UpdateRoom(ctx context.Context, params UpdateRoomParams) (room Room, err error) {
	if s == nil || s.rooms == nil {
		err = fmt.Errorf("room repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateRoom",
		"principal_id", params.Principal.UserID,
		"room_id", params.RoomID,
	)
	defer func() {
		logOutcome(ctx, logger, err, "failed to update room", "room updated")
	}()

	if !params.Principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}

	var existing Room
	existing, err = s.rooms.GetRoom(ctx, params.RoomID)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}

	input, vErr := normalizeRoomInput(params.Input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	updated := existing
	updated.Name = input.Name
	updated.Capacity = input.Capacity
	updated.Building = input.Building
	updated.Floor = input.Floor
	updated.Resources = input.Resources
	updated.Status = RoomStatus(input.Status)
	updated.Description = input.Description
	updated.DepartmentID = input.DepartmentID
	updated.UpdatedAt = s.now()

	room, err = s.rooms.UpdateRoom(ctx, updated)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}

	return
}

// DeleteRoom removes a room that has no confirmed upcoming bookings.
func (s *RoomService) DeleteRoom(ctx context.Context, principal Principal, roomID int64) error {
	if s == nil || s.rooms == nil {
		return fmt.Errorf("room repository not configured")
	}
	if !principal.IsAdmin() {
		return ErrUnauthorized
	}

	logger := s.loggerWith(ctx, "DeleteRoom",
		"principal_id", principal.UserID,
		"room_id", roomID,
	)

	err := s.deleteRoom(ctx, roomID)
	logOutcome(ctx, logger, err, "failed to delete room", "room deleted")
	return err
}

func (s *RoomService) deleteRoom(ctx context.Context, roomID int64) error {
	if _, err := s.rooms.GetRoom(ctx, roomID); err != nil {
		return mapRoomRepoError(err)
	}
	busy, err := s.rooms.HasUpcomingBookings(ctx, roomID, s.now())
	if err != nil {
		return err
	}
	if busy {
		return fmt.Errorf("room %d has upcoming confirmed bookings: %w", roomID, ErrInUse)
	}
	if err := s.rooms.DeleteRoom(ctx, roomID); err != nil {
		if errors.Is(err, persistence.ErrForeignKeyViolation) {
			return fmt.Errorf("room %d has booking history: %w", roomID, ErrInUse)
		}
		return mapRoomRepoError(err)
	}
	return nil
}

// GetRoom returns a single room.
func (s *RoomService) GetRoom(ctx context.Context, roomID int64) (Room, error) {
	if s == nil || s.rooms == nil {
		return Room{}, fmt.Errorf("room repository not configured")
	}
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return Room{}, mapRoomRepoError(err)
	}
	return room, nil
}

// ListRooms returns the catalog of rooms for any authenticated user.
func (s *RoomService) ListRooms(ctx context.Context, principal Principal, filter persistence.RoomFilter) (rooms []Room, err error) {
	if s == nil || s.rooms == nil {
		return nil, fmt.Errorf("room repository not configured")
	}

	logger := s.loggerWith(ctx, "ListRooms",
		"principal_id", principal.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list rooms", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(rooms)).DebugContext(ctx, "rooms listed")
	}()

	if filter.Status != "" {
		if _, ok := ParseRoomStatus(filter.Status); !ok {
			err = NewValidationError("status", "must be one of available, maintenance, occupied, inactive")
			return
		}
	}
	if filter.MinCapacity < 0 {
		err = NewValidationError("min_capacity", "must not be negative")
		return
	}

	rooms, err = s.rooms.ListRooms(ctx, filter)
	return
}

// AvailableRooms lists rooms with status available and no confirmed booking overlapping [start, end).
func (s *RoomService) AvailableRooms(ctx context.Context, start, end time.Time) ([]Room, error) {
	if s == nil || s.rooms == nil {
		return nil, fmt.Errorf("room repository not configured")
	}
	window := bookingWindow(start, end)
	if vErr := validateWindow(window); vErr.HasErrors() {
		return nil, vErr
	}
	return s.rooms.ListAvailableRooms(ctx, window)
}

// SetRoomStatus changes a room's status for administrators.
func (s *RoomService) SetRoomStatus(ctx context.Context, principal Principal, roomID int64, raw string) (room Room, err error) {
	if s == nil || s.rooms == nil {
		err = fmt.Errorf("room repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "SetRoomStatus",
		"principal_id", principal.UserID,
		"room_id", roomID,
		"status", raw,
	)
	defer func() {
		logOutcome(ctx, logger, err, "failed to change room status", "room status changed")
	}()

	if !principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}
	status, ok := ParseRoomStatus(raw)
	if !ok {
		err = NewValidationError("status", "must be one of available, maintenance, occupied, inactive")
		return
	}
	if err = s.rooms.SetRoomStatus(ctx, roomID, status, s.now()); err != nil {
		err = mapRoomRepoError(err)
		return
	}
	room, err = s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		err = mapRoomRepoError(err)
	}
	return
}

func normalizeRoomInput(input RoomInput) (RoomInput, *ValidationError) {
	vErr := &ValidationError{}

	input.Name = strings.TrimSpace(input.Name)
	input.Building = strings.TrimSpace(input.Building)
	input.Description = strings.TrimSpace(input.Description)
	input.Resources = normalizeTags(input.Resources)

	if input.Name == "" {
		vErr.add("name", "name is required")
	} else if len(input.Name) > 100 {
		vErr.add("name", "name must be at most 100 characters")
	}
	if input.Building == "" {
		vErr.add("building", "building is required")
	}
	if input.Capacity <= 0 {
		vErr.add("capacity", "capacity must be positive")
	}
	if input.DepartmentID != nil && *input.DepartmentID <= 0 {
		vErr.add("departmentId", "department id must be positive")
	}

	if strings.TrimSpace(input.Status) == "" {
		input.Status = string(RoomAvailable)
	} else if status, ok := ParseRoomStatus(input.Status); ok {
		input.Status = string(status)
	} else {
		vErr.add("status", "must be one of available, maintenance, occupied, inactive")
	}

	return input, vErr
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func mapRoomRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return fmt.Errorf("room: %w", ErrNotFound)
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		return NewValidationError("departmentId", "department does not exist")
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		return NewValidationError("capacity", "capacity must be positive")
	}
	return err
}
