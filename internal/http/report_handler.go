package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/campus-rooms/internal/application"
	"github.com/example/campus-rooms/internal/persistence"
)

type reportService interface {
	RoomUtilization(ctx context.Context, scope persistence.Scope, window persistence.ReportWindow) ([]application.RoomUtilization, error)
	BookingSummary(ctx context.Context, scope persistence.Scope, window persistence.ReportWindow) ([]application.StatusCount, error)
	DepartmentUsage(ctx context.Context, principal application.Principal, window persistence.ReportWindow) ([]application.DepartmentUsage, error)
	MaintenanceSummary(ctx context.Context, principal application.Principal, window persistence.ReportWindow) ([]application.MaintenanceSummary, error)
}

// ReportHandler serves the read-only /reports endpoints. Booking reports use
// the row scope attached by RequireAuth.
type ReportHandler struct {
	service   reportService
	responder responder
}

// NewReportHandler constructs a ReportHandler.
func NewReportHandler(service reportService, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{service: service, responder: newResponder(logger)}
}

// RoomUtilization handles GET /reports/room-utilization.
func (h *ReportHandler) RoomUtilization(w http.ResponseWriter, r *http.Request) {
	window, err := reportWindow(r)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	rows, err := h.service.RoomUtilization(r.Context(), ScopeFromContext(r.Context()), window)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	out := make([]roomUtilizationDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, roomUtilizationDTO(row))
	}
	h.responder.ok(r.Context(), w, http.StatusOK, "Room utilization report", out)
}

// BookingSummary handles GET /reports/booking-summary.
func (h *ReportHandler) BookingSummary(w http.ResponseWriter, r *http.Request) {
	window, err := reportWindow(r)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	rows, err := h.service.BookingSummary(r.Context(), ScopeFromContext(r.Context()), window)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	out := make([]statusCountDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, statusCountDTO(row))
	}
	h.responder.ok(r.Context(), w, http.StatusOK, "Booking summary report", out)
}

// DepartmentUsage handles GET /reports/department-usage.
func (h *ReportHandler) DepartmentUsage(w http.ResponseWriter, r *http.Request) {
	window, err := reportWindow(r)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	rows, err := h.service.DepartmentUsage(r.Context(), principal, window)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	out := make([]departmentUsageDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, departmentUsageDTO(row))
	}
	h.responder.ok(r.Context(), w, http.StatusOK, "Department usage report", out)
}

// MaintenanceSummary handles GET /reports/maintenance-summary.
func (h *ReportHandler) MaintenanceSummary(w http.ResponseWriter, r *http.Request) {
	window, err := reportWindow(r)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	rows, err := h.service.MaintenanceSummary(r.Context(), principal, window)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	out := make([]maintenanceSummaryDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, maintenanceSummaryDTO(row))
	}
	h.responder.ok(r.Context(), w, http.StatusOK, "Maintenance summary report", out)
}

func reportWindow(r *http.Request) (persistence.ReportWindow, error) {
	from, err := queryTime(r, "from")
	if err != nil {
		return persistence.ReportWindow{}, err
	}
	to, err := queryTime(r, "to")
	if err != nil {
		return persistence.ReportWindow{}, err
	}
	return persistence.ReportWindow{From: from, To: to}, nil
}

type roomUtilizationDTO struct {
	RoomID      int64   `json:"roomId"`
	RoomName    string  `json:"roomName"`
	Bookings    int     `json:"bookings"`
	BookedHours float64 `json:"bookedHours"`
}

type statusCountDTO struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

type departmentUsageDTO struct {
	DepartmentID   int64  `json:"departmentId"`
	DepartmentName string `json:"departmentName"`
	Rooms          int    `json:"rooms"`
	Bookings       int    `json:"bookings"`
}

type maintenanceSummaryDTO struct {
	Status   string `json:"status"`
	Priority string `json:"priority"`
	Count    int    `json:"count"`
}
