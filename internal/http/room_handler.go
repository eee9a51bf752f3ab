package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/campus-rooms/internal/application"
	"github.com/example/campus-rooms/internal/persistence"
)

type roomService interface {
	CreateRoom(ctx context.Context, params application.CreateRoomParams) (application.Room, error)
	UpdateRoom(ctx context.Context, params application.UpdateRoomParams) (application.Room, error)
	DeleteRoom(ctx context.Context, principal application.Principal, roomID int64) error
	GetRoom(ctx context.Context, roomID int64) (application.Room, error)
	ListRooms(ctx context.Context, principal application.Principal, filter persistence.RoomFilter) ([]application.Room, error)
	AvailableRooms(ctx context.Context, start, end time.Time) ([]application.Room, error)
	SetRoomStatus(ctx context.Context, principal application.Principal, roomID int64, raw string) (application.Room, error)
}

type conflictChecker interface {
	CheckConflict(ctx context.Context, roomID int64, start, end time.Time, excludeID int64) (bool, error)
}

// RoomHandler serves the /rooms resource.
type RoomHandler struct {
	service   roomService
	conflicts conflictChecker
	responder responder
	logger    *slog.Logger
}

// NewRoomHandler constructs a RoomHandler. conflicts answers availability checks.
func NewRoomHandler(service roomService, conflicts conflictChecker, logger *slog.Logger) *RoomHandler {
	base := defaultLogger(logger)
	return &RoomHandler{service: service, conflicts: conflicts, responder: newResponder(base), logger: base}
}

func (h *RoomHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "RoomHandler", operation, attrs...)
}

// Create handles POST /rooms.
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.responder.handleDecodeError(r.Context(), w, err)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	room, err := h.service.CreateRoom(r.Context(), application.CreateRoomParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.log(r.Context(), "Create", "room_id", room.ID).InfoContext(r.Context(), "room created")
	h.responder.ok(r.Context(), w, http.StatusCreated, "Room created", toRoomDTO(room))
}

// Update handles PUT /rooms/{id}.
func (h *RoomHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	var req roomRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.responder.handleDecodeError(r.Context(), w, err)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	room, err := h.service.UpdateRoom(r.Context(), application.UpdateRoomParams{
		Principal: principal,
		RoomID:    id,
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.ok(r.Context(), w, http.StatusOK, "Room updated", toRoomDTO(room))
}

// Delete handles DELETE /rooms/{id}.
func (h *RoomHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.DeleteRoom(r.Context(), principal, id); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.ok(r.Context(), w, http.StatusOK, "Room deleted", nil)
}

// SetStatus handles PATCH /rooms/{id}/status.
func (h *RoomHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.responder.handleDecodeError(r.Context(), w, err)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	room, err := h.service.SetRoomStatus(r.Context(), principal, id, req.Status)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.ok(r.Context(), w, http.StatusOK, "Room status updated", toRoomDTO(room))
}

// Get handles GET /rooms/{id}.
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	room, err := h.service.GetRoom(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.ok(r.Context(), w, http.StatusOK, "Room retrieved", toRoomDTO(room))
}

// List handles GET /rooms with optional status, building, department_id and min_capacity filters.
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	departmentID, err := queryInt(r, "department_id")
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	minCapacity, err := queryInt(r, "min_capacity")
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	q := r.URL.Query()
	filter := persistence.RoomFilter{
		Status:       strings.TrimSpace(q.Get("status")),
		Building:     strings.TrimSpace(q.Get("building")),
		DepartmentID: departmentID,
		MinCapacity:  int(minCapacity),
	}

	principal, _ := PrincipalFromContext(r.Context())
	rooms, err := h.service.ListRooms(r.Context(), principal, filter)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.ok(r.Context(), w, http.StatusOK, "Rooms retrieved", toRoomDTOs(rooms))
}

// Available handles GET /rooms/available?start=&end=.
func (h *RoomHandler) Available(w http.ResponseWriter, r *http.Request) {
	start, end, err := windowFromQuery(r)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	rooms, err := h.service.AvailableRooms(r.Context(), start, end)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.ok(r.Context(), w, http.StatusOK, "Available rooms retrieved", toRoomDTOs(rooms))
}

// Availability handles GET /rooms/{id}/availability?start=&end=&exclude_booking_id=.
func (h *RoomHandler) Availability(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	start, end, err := windowFromQuery(r)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	exclude, err := queryInt(r, "exclude_booking_id")
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if _, err := h.service.GetRoom(r.Context(), id); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	conflict, err := h.conflicts.CheckConflict(r.Context(), id, start, end, exclude)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.ok(r.Context(), w, http.StatusOK, "Availability checked", availabilityDTO{
		RoomID:    id,
		StartTime: formatTime(start),
		EndTime:   formatTime(end),
		Available: !conflict,
	})
}

func windowFromQuery(r *http.Request) (time.Time, time.Time, error) {
	vErr := &application.ValidationError{}
	start, err := queryTime(r, "start")
	if err != nil || start == nil {
		vErr.Add("start", "must be an RFC 3339 timestamp")
	}
	end, err := queryTime(r, "end")
	if err != nil || end == nil {
		vErr.Add("end", "must be an RFC 3339 timestamp")
	}
	if vErr.HasErrors() {
		return time.Time{}, time.Time{}, vErr
	}
	return *start, *end, nil
}

type roomRequest struct {
	Name         string   `json:"name" validate:"required,max=100"`
	Capacity     int      `json:"capacity" validate:"gt=0"`
	Building     string   `json:"building" validate:"required,max=100"`
	Floor        int      `json:"floor"`
	Resources    []string `json:"resources" validate:"dive,max=50"`
	Status       string   `json:"status" validate:"omitempty,oneof=available maintenance occupied inactive"`
	Description  string   `json:"description" validate:"max=2000"`
	DepartmentID *int64   `json:"departmentId" validate:"omitempty,gt=0"`
}

func (r roomRequest) toInput() application.RoomInput {
	return application.RoomInput{
		Name:         r.Name,
		Capacity:     r.Capacity,
		Building:     r.Building,
		Floor:        r.Floor,
		Resources:    r.Resources,
		Status:       r.Status,
		Description:  r.Description,
		DepartmentID: r.DepartmentID,
	}
}

type roomDTO struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Capacity     int      `json:"capacity"`
	Building     string   `json:"building"`
	Floor        int      `json:"floor"`
	Resources    []string `json:"resources"`
	Status       string   `json:"status"`
	Description  string   `json:"description,omitempty"`
	DepartmentID *int64   `json:"departmentId,omitempty"`
	CreatedAt    string   `json:"createdAt"`
	UpdatedAt    string   `json:"updatedAt"`
}

type availabilityDTO struct {
	RoomID    int64  `json:"roomId"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Available bool   `json:"available"`
}

func toRoomDTO(room application.Room) roomDTO {
	resources := room.Resources
	if resources == nil {
		resources = []string{}
	}
	return roomDTO{
		ID:           room.ID,
		Name:         room.Name,
		Capacity:     room.Capacity,
		Building:     room.Building,
		Floor:        room.Floor,
		Resources:    resources,
		Status:       string(room.Status),
		Description:  room.Description,
		DepartmentID: room.DepartmentID,
		CreatedAt:    formatTime(room.CreatedAt),
		UpdatedAt:    formatTime(room.UpdatedAt),
	}
}

func toRoomDTOs(rooms []application.Room) []roomDTO {
	out := make([]roomDTO, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, toRoomDTO(room))
	}
	return out
}
