package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/campus-rooms/internal/application"
)

type departmentService interface {
	CreateDepartment(ctx context.Context, principal application.Principal, input application.DepartmentInput) (application.Department, error)
	UpdateDepartment(ctx context.Context, principal application.Principal, id int64, input application.DepartmentInput) (application.Department, error)
	DeleteDepartment(ctx context.Context, principal application.Principal, id int64) error
	GetDepartment(ctx context.Context, id int64) (application.Department, error)
	ListDepartments(ctx context.Context) ([]application.Department, error)
}

// DepartmentHandler serves the /departments resource.
type DepartmentHandler struct {
	service   departmentService
	responder responder
}

// NewDepartmentHandler constructs a DepartmentHandler.
func NewDepartmentHandler(service departmentService, logger *slog.Logger) *DepartmentHandler {
	return &DepartmentHandler{service: service, responder: newResponder(logger)}
}

// Create handles POST /departments.
func (h *DepartmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req departmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.responder.handleDecodeError(r.Context(), w, err)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	department, err := h.service.CreateDepartment(r.Context(), principal, req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.ok(r.Context(), w, http.StatusCreated, "Department created", toDepartmentDTO(department))
}

// Update handles PUT /departments/{id}.
func (h *DepartmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	var req departmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.responder.handleDecodeError(r.Context(), w, err)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	department, err := h.service.UpdateDepartment(r.Context(), principal, id, req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.ok(r.Context(), w, http.StatusOK, "Department updated", toDepartmentDTO(department))
}

// Delete handles DELETE /departments/{id}.
func (h *DepartmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.DeleteDepartment(r.Context(), principal, id); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.ok(r.Context(), w, http.StatusOK, "Department deleted", nil)
}

// Get handles GET /departments/{id}.
func (h *DepartmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	department, err := h.service.GetDepartment(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.ok(r.Context(), w, http.StatusOK, "Department retrieved", toDepartmentDTO(department))
}

// List handles GET /departments.
func (h *DepartmentHandler) List(w http.ResponseWriter, r *http.Request) {
	departments, err := h.service.ListDepartments(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	out := make([]departmentDTO, 0, len(departments))
	for _, d := range departments {
		out = append(out, toDepartmentDTO(d))
	}
	h.responder.ok(r.Context(), w, http.StatusOK, "Departments retrieved", out)
}

type departmentRequest struct {
	Name         string `json:"name" validate:"required,max=100"`
	Code         string `json:"code" validate:"required,max=20"`
	Description  string `json:"description" validate:"max=2000"`
	ContactEmail string `json:"contactEmail" validate:"omitempty,email"`
	ContactPhone string `json:"contactPhone" validate:"max=30"`
	Status       string `json:"status" validate:"omitempty,oneof=active inactive"`
}

func (r departmentRequest) toInput() application.DepartmentInput {
	return application.DepartmentInput{
		Name:         r.Name,
		Code:         r.Code,
		Description:  r.Description,
		ContactEmail: r.ContactEmail,
		ContactPhone: r.ContactPhone,
		Status:       r.Status,
	}
}

type departmentDTO struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Code         string `json:"code"`
	Description  string `json:"description,omitempty"`
	ContactEmail string `json:"contactEmail,omitempty"`
	ContactPhone string `json:"contactPhone,omitempty"`
	Status       string `json:"status"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
}

func toDepartmentDTO(d application.Department) departmentDTO {
	return departmentDTO{
		ID:           d.ID,
		Name:         d.Name,
		Code:         d.Code,
		Description:  d.Description,
		ContactEmail: d.ContactEmail,
		ContactPhone: d.ContactPhone,
		Status:       string(d.Status),
		CreatedAt:    formatTime(d.CreatedAt),
		UpdatedAt:    formatTime(d.UpdatedAt),
	}
}
