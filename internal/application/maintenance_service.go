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
)

// MaxMaintenanceIssueLength bounds the issue summary in characters.
const MaxMaintenanceIssueLength = 255

// MaintenanceRepository captures the persistence operations for maintenance requests.
type MaintenanceRepository interface {
	CreateMaintenanceRequest(ctx context.Context, request MaintenanceRequest) (MaintenanceRequest, error)
	GetMaintenanceRequest(ctx context.Context, id int64) (MaintenanceRequest, error)
	UpdateMaintenanceRequest(ctx context.Context, request MaintenanceRequest) (MaintenanceRequest, error)
	DeleteMaintenanceRequest(ctx context.Context, id int64) error
	ListMaintenanceRequests(ctx context.Context, filter persistence.MaintenanceFilter) ([]MaintenanceRequest, error)
}

// MaintenanceInput captures the fields of a new maintenance request.
type MaintenanceInput struct {
	RoomID      int64
	Issue       string
	Description string
	Priority    string
}

// MaintenanceUpdate captures progress on an existing request. Nil fields are left unchanged.
type MaintenanceUpdate struct {
	Status   *string
	Priority *string
	Notes    *string
}

var maintenanceTransitions = map[MaintenanceStatus][]MaintenanceStatus{
	MaintenancePending:    {MaintenanceInProgress, MaintenanceCompleted},
	MaintenanceInProgress: {MaintenanceCompleted},
}

// MaintenanceService manages maintenance requests and announces room status changes.
type MaintenanceService struct {
	requests MaintenanceRepository
	rooms    RoomLookup
	events   EventPublisher
	now      func() time.Time
	logger   *slog.Logger
}

// NewMaintenanceService constructs a maintenance service.
func NewMaintenanceService(requests MaintenanceRepository, rooms RoomLookup, events EventPublisher, now func() time.Time, logger *slog.Logger) *MaintenanceService {
	if now == nil {
		now = time.Now
	}
	return &MaintenanceService{requests: requests, rooms: rooms, events: events, now: now, logger: defaultLogger(logger)}
}

func (s *MaintenanceService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "MaintenanceService", operation, attrs...)
}

// CreateRequest files a maintenance request reported by the caller. A high
// priority request takes the room out of service.
func (s *MaintenanceService) CreateRequest(ctx context.Context, principal Principal, input MaintenanceInput) (request MaintenanceRequest, err error) {
	logger := s.loggerWith(ctx, "CreateRequest",
		"principal_id", principal.UserID,
		"room_id", input.RoomID,
	)
	defer func() {
		logOutcome(ctx, logger, err, "failed to create maintenance request", "maintenance request created", "request_id", request.ID)
	}()

	if principal.UserID == 0 {
		err = ErrUnauthenticated
		return
	}

	vErr := &ValidationError{}
	issue := strings.TrimSpace(input.Issue)
	if input.RoomID <= 0 {
		vErr.add("roomId", "room is required")
	}
	if issue == "" {
		vErr.add("issue", "issue is required")
	} else if utf8.RuneCountInString(issue) > MaxMaintenanceIssueLength {
		vErr.add("issue", fmt.Sprintf("issue must be at most %d characters", MaxMaintenanceIssueLength))
	}
	priority, ok := ParsePriority(input.Priority)
	if !ok {
		vErr.add("priority", "must be one of low, medium, high")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if s.rooms != nil {
		if _, err = s.rooms.GetRoom(ctx, input.RoomID); err != nil {
			if isNotFound(err) {
				err = fmt.Errorf("room %d: %w", input.RoomID, ErrNotFound)
			}
			return
		}
	}

	now := s.now()
	request, err = s.requests.CreateMaintenanceRequest(ctx, MaintenanceRequest{
		RoomID:      input.RoomID,
		ReportedBy:  principal.UserID,
		Issue:       issue,
		Description: strings.TrimSpace(input.Description),
		Priority:    priority,
		Status:      MaintenancePending,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		err = mapMaintenanceRepoError(err)
		return
	}

	if request.Priority == PriorityHigh {
		publish(ctx, s.events, logger, RoomMaintenanceRequired{Request: request, Actor: principal})
	}
	return
}

// UpdateRequest records progress on a request. Completing it returns the room to service.
func (s *MaintenanceService) UpdateRequest(ctx context.Context, principal Principal, id int64, update MaintenanceUpdate) (request MaintenanceRequest, err error) {
	logger := s.loggerWith(ctx, "UpdateRequest",
		"principal_id", principal.UserID,
		"request_id", id,
	)
	defer func() {
		logOutcome(ctx, logger, err, "failed to update maintenance request", "maintenance request updated", "status", string(request.Status))
	}()

	if !principal.HasRole(RoleAdmin, RoleMaintenance) {
		err = ErrUnauthorized
		return
	}

	var existing MaintenanceRequest
	existing, err = s.requests.GetMaintenanceRequest(ctx, id)
	if err != nil {
		err = mapMaintenanceRepoError(err)
		return
	}

	updated := existing
	if update.Status != nil {
		next, ok := ParseMaintenanceStatus(*update.Status)
		if !ok {
			err = NewValidationError("status", "must be one of pending, in-progress, completed")
			return
		}
		if next != existing.Status {
			if !canAdvanceMaintenance(existing.Status, next) {
				err = fmt.Errorf("%w: maintenance %s -> %s", ErrInvalidTransition, existing.Status, next)
				return
			}
			updated.Status = next
		}
	}
	if update.Priority != nil {
		priority, ok := ParsePriority(*update.Priority)
		if !ok {
			err = NewValidationError("priority", "must be one of low, medium, high")
			return
		}
		updated.Priority = priority
	}
	if update.Notes != nil {
		updated.Notes = strings.TrimSpace(*update.Notes)
	}

	now := s.now()
	updated.UpdatedAt = now
	if updated.Status == MaintenanceCompleted && existing.Status != MaintenanceCompleted {
		updated.CompletedAt = &now
	}

	request, err = s.requests.UpdateMaintenanceRequest(ctx, updated)
	if err != nil {
		err = mapMaintenanceRepoError(err)
		return
	}

	if request.Status == MaintenanceCompleted && existing.Status != MaintenanceCompleted {
		publish(ctx, s.events, logger, RoomMaintenanceResolved{Request: request, Actor: principal})
	}
	return
}

// GetRequest returns a request visible to the caller.
func (s *MaintenanceService) GetRequest(ctx context.Context, principal Principal, id int64) (MaintenanceRequest, error) {
	request, err := s.requests.GetMaintenanceRequest(ctx, id)
	if err != nil {
		return MaintenanceRequest{}, mapMaintenanceRepoError(err)
	}
	if !principal.HasRole(RoleAdmin, RoleMaintenance) && request.ReportedBy != principal.UserID {
		return MaintenanceRequest{}, ErrUnauthorized
	}
	return request, nil
}

// ListRequests returns requests visible to the caller, newest first.
func (s *MaintenanceService) ListRequests(ctx context.Context, principal Principal, filter persistence.MaintenanceFilter) ([]MaintenanceRequest, error) {
	if filter.Status != "" {
		if _, ok := ParseMaintenanceStatus(filter.Status); !ok {
			return nil, NewValidationError("status", "must be one of pending, in-progress, completed")
		}
	}
	if filter.Priority != "" {
		if _, ok := ParsePriority(filter.Priority); !ok {
			return nil, NewValidationError("priority", "must be one of low, medium, high")
		}
	}
	filter.Scope = principal.Scope(RoleMaintenance)
	return s.requests.ListMaintenanceRequests(ctx, filter)
}

// DeleteRequest removes a request. Only administrators may do this.
func (s *MaintenanceService) DeleteRequest(ctx context.Context, principal Principal, id int64) (err error) {
	logger := s.loggerWith(ctx, "DeleteRequest", "principal_id", principal.UserID, "request_id", id)
	defer func() {
		logOutcome(ctx, logger, err, "failed to delete maintenance request", "maintenance request deleted")
	}()

	if !principal.IsAdmin() {
		return ErrUnauthorized
	}
	if err = s.requests.DeleteMaintenanceRequest(ctx, id); err != nil {
		return mapMaintenanceRepoError(err)
	}
	return nil
}

func canAdvanceMaintenance(from, to MaintenanceStatus) bool {
	for _, next := range maintenanceTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func mapMaintenanceRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return err
	case errors.Is(err, persistence.ErrNotFound):
		return fmt.Errorf("maintenance request: %w", ErrNotFound)
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return fmt.Errorf("maintenance request room: %w", ErrNotFound)
	}
	return err
}
