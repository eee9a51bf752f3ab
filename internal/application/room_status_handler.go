package application

import (
	"context"
	"log/slog"
	"time"
)

// RoomStatusWriter updates a room's status.
type RoomStatusWriter interface {
	SetRoomStatus(ctx context.Context, id int64, status RoomStatus, at time.Time) error
}

// RoomStatusHandler keeps room status in step with maintenance work: a
// room needing maintenance is taken out of service and returns to
// available when the work is resolved.
type RoomStatusHandler struct {
	rooms  RoomStatusWriter
	now    func() time.Time
	logger *slog.Logger
}

// NewRoomStatusHandler constructs the handler.
func NewRoomStatusHandler(rooms RoomStatusWriter, now func() time.Time, logger *slog.Logger) *RoomStatusHandler {
	if now == nil {
		now = time.Now
	}
	return &RoomStatusHandler{rooms: rooms, now: now, logger: defaultLogger(logger)}
}

// HandleEvent implements EventHandler.
func (h *RoomStatusHandler) HandleEvent(ctx context.Context, event Event) error {
	var (
		roomID int64
		status RoomStatus
	)
	switch e := event.(type) {
	case RoomMaintenanceRequired:
		roomID, status = e.Request.RoomID, RoomMaintenance
	case RoomMaintenanceResolved:
		roomID, status = e.Request.RoomID, RoomAvailable
	default:
		return nil
	}

	logger := serviceLogger(ctx, h.logger, "RoomStatusHandler", event.EventName(),
		"room_id", roomID,
		"status", string(status),
	)
	if err := h.rooms.SetRoomStatus(ctx, roomID, status, h.now()); err != nil {
		logger.ErrorContext(ctx, "failed to update room status", "error", err)
		return err
	}
	logger.InfoContext(ctx, "room status updated")
	return nil
}
