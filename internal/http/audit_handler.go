package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/example/campus-rooms/internal/application"
)

type auditService interface {
	ListEntries(ctx context.Context, principal application.Principal, limit int) ([]application.AuditEntry, error)
}

// AuditHandler serves GET /audit-logs.
type AuditHandler struct {
	service   auditService
	responder responder
}

// NewAuditHandler constructs an AuditHandler.
func NewAuditHandler(service auditService, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{service: service, responder: newResponder(logger)}
}

// List returns the newest entries, bounded by the optional limit query parameter.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	entries, err := h.service.ListEntries(r.Context(), principal, int(limit))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	out := make([]auditEntryDTO, 0, len(entries))
	for _, e := range entries {
		details := json.RawMessage(e.Details)
		if !json.Valid(details) {
			details = json.RawMessage("{}")
		}
		out = append(out, auditEntryDTO{
			ID:         e.ID,
			UserID:     e.UserID,
			Action:     e.Action,
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			Details:    details,
			CreatedAt:  formatTime(e.CreatedAt),
		})
	}
	h.responder.ok(r.Context(), w, http.StatusOK, "Audit log retrieved", out)
}

type auditEntryDTO struct {
	ID         int64           `json:"id"`
	UserID     *int64          `json:"userId,omitempty"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   int64           `json:"entityId"`
	Details    json.RawMessage `json:"details"`
	CreatedAt  string          `json:"createdAt"`
}
