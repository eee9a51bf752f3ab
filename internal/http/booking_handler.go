package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/campus-rooms/internal/application"
	"github.com/example/campus-rooms/internal/persistence"
	"github.com/example/campus-rooms/internal/scheduler"
)

type bookingService interface {
	CreateBooking(ctx context.Context, params application.CreateBookingParams) (application.Booking, error)
	UpdateBooking(ctx context.Context, params application.UpdateBookingParams) (application.Booking, error)
	CancelBooking(ctx context.Context, principal application.Principal, bookingID int64) (application.Booking, error)
	SetBookingStatus(ctx context.Context, principal application.Principal, bookingID int64, status scheduler.Status) (application.Booking, error)
	DeleteBooking(ctx context.Context, principal application.Principal, bookingID int64) error
	GetBooking(ctx context.Context, principal application.Principal, bookingID int64) (application.Booking, error)
	ListMyBookings(ctx context.Context, principal application.Principal) ([]application.Booking, error)
	ListBookings(ctx context.Context, principal application.Principal, filter persistence.BookingFilter) ([]application.Booking, error)
}

// BookingHandler serves the /bookings resource.
type BookingHandler struct {
	service   bookingService
	responder responder
	logger    *slog.Logger
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(service bookingService, logger *slog.Logger) *BookingHandler {
	base := defaultLogger(logger)
	return &BookingHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *BookingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "BookingHandler", operation, attrs...)
}

// Create handles POST /bookings.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.responder.handleDecodeError(r.Context(), w, err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	booking, err := h.service.CreateBooking(r.Context(), application.CreateBookingParams{
		Principal: principal,
		Input:     input,
	})
	if err != nil {
		h.log(r.Context(), "Create", "room_id", input.RoomID).
			InfoContext(r.Context(), "booking rejected", "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.ok(r.Context(), w, http.StatusCreated, "Booking created", toBookingDTO(booking))
}

// Update handles PUT /bookings/{id}.
func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	var req bookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.responder.handleDecodeError(r.Context(), w, err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	booking, err := h.service.UpdateBooking(r.Context(), application.UpdateBookingParams{
		Principal: principal,
		BookingID: id,
		Input:     input,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.ok(r.Context(), w, http.StatusOK, "Booking updated", toBookingDTO(booking))
}

// Cancel handles DELETE /bookings/{id}. The booking is kept with status cancelled.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	booking, err := h.service.CancelBooking(r.Context(), principal, id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.ok(r.Context(), w, http.StatusOK, "Booking cancelled", toBookingDTO(booking))
}

// Delete handles DELETE /bookings/{id}/permanent.
func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.DeleteBooking(r.Context(), principal, id); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.ok(r.Context(), w, http.StatusOK, "Booking deleted", nil)
}

// SetStatus handles PATCH /bookings/{id}/status.
func (h *BookingHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
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
	status, err := scheduler.ParseStatus(req.Status)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w,
			application.NewValidationError("status", "must be one of confirmed, pending, cancelled, completed"))
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	booking, err := h.service.SetBookingStatus(r.Context(), principal, id, status)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.ok(r.Context(), w, http.StatusOK, "Booking status updated", toBookingDTO(booking))
}

// Get handles GET /bookings/{id}.
func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	booking, err := h.service.GetBooking(r.Context(), principal, id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.ok(r.Context(), w, http.StatusOK, "Booking retrieved", toBookingDTO(booking))
}

// Mine handles GET /bookings/my-bookings.
func (h *BookingHandler) Mine(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	bookings, err := h.service.ListMyBookings(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.ok(r.Context(), w, http.StatusOK, "Bookings retrieved", toBookingDTOs(bookings))
}

// List handles GET /bookings for administrators.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := bookingFilterFromQuery(r)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	bookings, err := h.service.ListBookings(r.Context(), principal, filter)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.log(r.Context(), "List", "result_count", len(bookings)).DebugContext(r.Context(), "bookings listed")
	h.responder.ok(r.Context(), w, http.StatusOK, "Bookings retrieved", toBookingDTOs(bookings))
}

func bookingFilterFromQuery(r *http.Request) (persistence.BookingFilter, error) {
	var (
		filter persistence.BookingFilter
		err    error
	)
	if filter.RoomID, err = queryInt(r, "room_id"); err != nil {
		return filter, err
	}
	if filter.UserID, err = queryInt(r, "user_id"); err != nil {
		return filter, err
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		return filter, err
	}
	filter.Limit = int(limit)
	if filter.From, err = queryTime(r, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = queryTime(r, "to"); err != nil {
		return filter, err
	}
	filter.Status = scheduler.Status(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status"))))
	return filter, nil
}

type bookingRequest struct {
	RoomID      int64  `json:"roomId" validate:"required,gt=0"`
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	StartTime   string `json:"startTime" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	EndTime     string `json:"endTime" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	Recurring   bool   `json:"recurring"`
}

func (r bookingRequest) toInput() (application.BookingInput, error) {
	start, err := parseTimestamp("startTime", r.StartTime)
	if err != nil {
		return application.BookingInput{}, err
	}
	end, err := parseTimestamp("endTime", r.EndTime)
	if err != nil {
		return application.BookingInput{}, err
	}
	return application.BookingInput{
		RoomID:      r.RoomID,
		Title:       r.Title,
		Description: r.Description,
		Start:       start,
		End:         end,
		Recurring:   r.Recurring,
	}, nil
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type bookingDTO struct {
	ID          int64  `json:"id"`
	RoomID      int64  `json:"roomId"`
	RoomName    string `json:"roomName,omitempty"`
	UserID      int64  `json:"userId"`
	UserName    string `json:"userName,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Recurring   bool   `json:"recurring"`
	Status      string `json:"status"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

func toBookingDTO(b application.Booking) bookingDTO {
	return bookingDTO{
		ID:          b.ID,
		RoomID:      b.RoomID,
		RoomName:    b.RoomName,
		UserID:      b.UserID,
		UserName:    b.UserName,
		Title:       b.Title,
		Description: b.Description,
		StartTime:   formatTime(b.Start),
		EndTime:     formatTime(b.End),
		Recurring:   b.Recurring,
		Status:      string(b.Status),
		CreatedAt:   formatTime(b.CreatedAt),
		UpdatedAt:   formatTime(b.UpdatedAt),
	}
}

func toBookingDTOs(bookings []application.Booking) []bookingDTO {
	out := make([]bookingDTO, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingDTO(b))
	}
	return out
}
