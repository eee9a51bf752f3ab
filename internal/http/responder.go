package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/campus-rooms/internal/application"
	"github.com/example/campus-rooms/internal/logging"
)

var (
	errBadRequestBody   = errors.New("Invalid request body")
	errInvalidID        = errors.New("Invalid identifier")
	errMissingToken     = errors.New("Authentication required")
	errTooManyRequests  = errors.New("Too many login attempts, try again later")
	errRouteNotFound    = errors.New("Route not found")
	errMethodNotAllowed = errors.New("Method not allowed")
	errInternal         = errors.New("Internal server error")
)

const (
	msgConflict          = "Room is not available during the selected time"
	msgValidationFailed  = "Validation failed"
	msgForbidden         = "You do not have permission to perform this action"
	msgNotFound          = "Resource not found"
	msgAlreadyExists     = "Resource already exists"
	msgInUse             = "Resource is still in use"
	msgInvalidTransition = "Invalid status transition"
)

// envelope is the body of every JSON response.
type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    any               `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	return responder{logger: defaultLogger(logger)}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) ok(ctx context.Context, w http.ResponseWriter, status int, message string, data any) {
	r.writeJSON(ctx, w, status, envelope{Success: true, Message: message, Data: data})
}

// writeError responds with err's text, which must be safe to show to clients.
func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	r.writeJSON(ctx, w, status, envelope{Message: err.Error()})
}

// handleServiceError maps application errors to statuses. Unexpected errors
// are logged and replaced with a generic message.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		vErr *application.ValidationError
		cErr *application.ConflictError
	)
	switch {
	case errors.As(err, &vErr):
		r.writeJSON(ctx, w, http.StatusBadRequest, envelope{Message: msgValidationFailed, Errors: vErr.FieldErrors})
	case errors.As(err, &cErr):
		r.writeJSON(ctx, w, http.StatusBadRequest, envelope{Message: msgConflict, Data: conflictDTO{
			RoomID:            cErr.RoomID,
			StartTime:         cErr.Start.UTC().Format(time.RFC3339),
			EndTime:           cErr.End.UTC().Format(time.RFC3339),
			BlockingBookingID: cErr.BlockingBookingID,
		}})
	case errors.Is(err, application.ErrConflict):
		r.writeJSON(ctx, w, http.StatusBadRequest, envelope{Message: msgConflict})
	case errors.Is(err, application.ErrInUse):
		r.writeJSON(ctx, w, http.StatusBadRequest, envelope{Message: msgInUse})
	case errors.Is(err, application.ErrInvalidTransition):
		r.writeJSON(ctx, w, http.StatusBadRequest, envelope{Message: msgInvalidTransition})
	case errors.Is(err, application.ErrInvalidCredentials):
		r.writeJSON(ctx, w, http.StatusUnauthorized, envelope{Message: "Invalid email or password"})
	case errors.Is(err, application.ErrAccountDisabled):
		r.writeJSON(ctx, w, http.StatusUnauthorized, envelope{Message: "Account is disabled"})
	case errors.Is(err, application.ErrUnauthenticated):
		r.writeJSON(ctx, w, http.StatusUnauthorized, envelope{Message: "Invalid or expired token"})
	case errors.Is(err, application.ErrUnauthorized):
		r.writeJSON(ctx, w, http.StatusForbidden, envelope{Message: msgForbidden})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, envelope{Message: msgNotFound})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusConflict, envelope{Message: msgAlreadyExists})
	default:
		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err)
		r.writeError(ctx, w, http.StatusInternalServerError, errInternal)
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

type conflictDTO struct {
	RoomID            int64  `json:"roomId"`
	StartTime         string `json:"startTime"`
	EndTime           string `json:"endTime"`
	BlockingBookingID int64  `json:"blockingBookingId,omitempty"`
}

// handleDecodeError answers a failed decodeJSON call.
func (r responder) handleDecodeError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, errBadRequestBody) {
		r.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	r.handleServiceError(ctx, w, err)
}
