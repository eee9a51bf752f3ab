package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// AuditRepository stores and lists audit entries.
type AuditRepository interface {
	InsertAuditEntry(ctx context.Context, entry AuditEntry) (AuditEntry, error)
	ListAuditEntries(ctx context.Context, limit int) ([]AuditEntry, error)
}

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

// AuditService writes an audit line for every domain event and lists them for administrators.
type AuditService struct {
	entries AuditRepository
	now     func() time.Time
	logger  *slog.Logger
}

// NewAuditService constructs an audit service.
func NewAuditService(entries AuditRepository, now func() time.Time, logger *slog.Logger) *AuditService {
	if now == nil {
		now = time.Now
	}
	return &AuditService{entries: entries, now: now, logger: defaultLogger(logger)}
}

// HandleEvent implements EventHandler.
func (s *AuditService) HandleEvent(ctx context.Context, event Event) error {
	entry, ok := auditEntryFor(event)
	if !ok {
		return nil
	}
	entry.CreatedAt = s.now()
	if _, err := s.entries.InsertAuditEntry(ctx, entry); err != nil {
		serviceLogger(ctx, s.logger, "AuditService", "HandleEvent", "event", event.EventName()).
			ErrorContext(ctx, "failed to write audit entry", "error", err)
		return err
	}
	return nil
}

// ListEntries returns the newest audit entries. Administrators only.
func (s *AuditService) ListEntries(ctx context.Context, principal Principal, limit int) ([]AuditEntry, error) {
	if !principal.IsAdmin() {
		return nil, ErrUnauthorized
	}
	switch {
	case limit <= 0:
		limit = defaultAuditLimit
	case limit > maxAuditLimit:
		limit = maxAuditLimit
	}
	return s.entries.ListAuditEntries(ctx, limit)
}

func auditEntryFor(event Event) (AuditEntry, bool) {
	var (
		actor   Principal
		entity  string
		id      int64
		details map[string]any
	)
	switch e := event.(type) {
	case BookingCreated:
		actor, entity, id = e.Actor, "booking", e.Booking.ID
		details = bookingDetails(e.Booking)
	case BookingUpdated:
		actor, entity, id = e.Actor, "booking", e.Booking.ID
		details = bookingDetails(e.Booking)
		details["previous_status"] = string(e.Previous.Status)
	case BookingCancelled:
		actor, entity, id = e.Actor, "booking", e.Booking.ID
		details = bookingDetails(e.Booking)
	case BookingDeleted:
		actor, entity, id = e.Actor, "booking", e.Booking.ID
		details = bookingDetails(e.Booking)
	case RoomMaintenanceRequired:
		actor, entity, id = e.Actor, "room", e.Request.RoomID
		details = map[string]any{"maintenance_request_id": e.Request.ID, "priority": string(e.Request.Priority)}
	case RoomMaintenanceResolved:
		actor, entity, id = e.Actor, "room", e.Request.RoomID
		details = map[string]any{"maintenance_request_id": e.Request.ID}
	default:
		return AuditEntry{}, false
	}

	entry := AuditEntry{Action: event.EventName(), EntityType: entity, EntityID: id}
	if actor.UserID != 0 {
		uid := actor.UserID
		entry.UserID = &uid
	}
	if raw, err := json.Marshal(details); err == nil {
		entry.Details = string(raw)
	}
	return entry, true
}

func bookingDetails(b Booking) map[string]any {
	return map[string]any{
		"room_id": b.RoomID,
		"user_id": b.UserID,
		"status":  string(b.Status),
		"start":   b.Start.UTC().Format(time.RFC3339),
		"end":     b.End.UTC().Format(time.RFC3339),
	}
}
