package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/campus-rooms/internal/application"
	"github.com/example/campus-rooms/internal/persistence"
)

type maintenanceService interface {
	CreateRequest(ctx context.Context, principal application.Principal, input application.MaintenanceInput) (application.MaintenanceRequest, error)
	UpdateRequest(ctx context.Context, principal application.Principal, id int64, update application.MaintenanceUpdate) (application.MaintenanceRequest, error)
	GetRequest(ctx context.Context, principal application.Principal, id int64) (application.MaintenanceRequest, error)
	ListRequests(ctx context.Context, principal application.Principal, filter persistence.MaintenanceFilter) ([]application.MaintenanceRequest, error)
	DeleteRequest(ctx context.Context, principal application.Principal, id int64) error
}

// MaintenanceHandler serves the /maintenance resource.
type MaintenanceHandler struct {
	service   maintenanceService
	responder responder
}

// NewMaintenanceHandler constructs a MaintenanceHandler.
func NewMaintenanceHandler(service maintenanceService, logger *slog.Logger) *MaintenanceHandler {
	return &MaintenanceHandler{service: service, responder: newResponder(logger)}
}

// Create handles POST /maintenance.
func (h *MaintenanceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req maintenanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.responder.handleDecodeError(r.Context(), w, err)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	request, err := h.service.CreateRequest(r.Context(), principal, application.MaintenanceInput{
		RoomID:      req.RoomID,
		Issue:       req.Issue,
		Description: req.Description,
		Priority:    req.Priority,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.ok(r.Context(), w, http.StatusCreated, "Maintenance request created", toMaintenanceDTO(request))
}

// Update handles PUT /maintenance/{id}.
func (h *MaintenanceHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	var req maintenanceUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.responder.handleDecodeError(r.Context(), w, err)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	request, err := h.service.UpdateRequest(r.Context(), principal, id, application.MaintenanceUpdate{
		Status:   req.Status,
		Priority: req.Priority,
		Notes:    req.Notes,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.ok(r.Context(), w, http.StatusOK, "Maintenance request updated", toMaintenanceDTO(request))
}

// Delete handles DELETE /maintenance/{id}.
func (h *MaintenanceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.DeleteRequest(r.Context(), principal, id); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.ok(r.Context(), w, http.StatusOK, "Maintenance request deleted", nil)
}

// Get handles GET /maintenance/{id}.
func (h *MaintenanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	request, err := h.service.GetRequest(r.Context(), principal, id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.ok(r.Context(), w, http.StatusOK, "Maintenance request retrieved", toMaintenanceDTO(request))
}

// List handles GET /maintenance with optional room_id, status and priority filters.
func (h *MaintenanceHandler) List(w http.ResponseWriter, r *http.Request) {
	roomID, err := queryInt(r, "room_id")
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	q := r.URL.Query()
	principal, _ := PrincipalFromContext(r.Context())
	requests, err := h.service.ListRequests(r.Context(), principal, persistence.MaintenanceFilter{
		RoomID:   roomID,
		Status:   strings.TrimSpace(q.Get("status")),
		Priority: strings.TrimSpace(q.Get("priority")),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	out := make([]maintenanceDTO, 0, len(requests))
	for _, m := range requests {
		out = append(out, toMaintenanceDTO(m))
	}
	h.responder.ok(r.Context(), w, http.StatusOK, "Maintenance requests retrieved", out)
}

type maintenanceRequest struct {
	RoomID      int64  `json:"roomId" validate:"required,gt=0"`
	Issue       string `json:"issue" validate:"required,max=255"`
	Description string `json:"description" validate:"max=2000"`
	Priority    string `json:"priority" validate:"omitempty,oneof=low medium high"`
}

type maintenanceUpdateRequest struct {
	Status   *string `json:"status" validate:"omitempty,oneof=pending in-progress completed"`
	Priority *string `json:"priority" validate:"omitempty,oneof=low medium high"`
	Notes    *string `json:"notes" validate:"omitempty,max=2000"`
}

type maintenanceDTO struct {
	ID          int64  `json:"id"`
	RoomID      int64  `json:"roomId"`
	RoomName    string `json:"roomName,omitempty"`
	ReportedBy  int64  `json:"reportedBy,omitempty"`
	Issue       string `json:"issue"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
	Notes       string `json:"notes,omitempty"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
	CompletedAt string `json:"completedAt,omitempty"`
}

func toMaintenanceDTO(m application.MaintenanceRequest) maintenanceDTO {
	dto := maintenanceDTO{
		ID:          m.ID,
		RoomID:      m.RoomID,
		RoomName:    m.RoomName,
		ReportedBy:  m.ReportedBy,
		Issue:       m.Issue,
		Description: m.Description,
		Priority:    string(m.Priority),
		Status:      string(m.Status),
		Notes:       m.Notes,
		CreatedAt:   formatTime(m.CreatedAt),
		UpdatedAt:   formatTime(m.UpdatedAt),
	}
	if m.CompletedAt != nil {
		dto.CompletedAt = formatTime(*m.CompletedAt)
	}
	return dto
}
