package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/example/campus-rooms/internal/persistence"
)

// DepartmentRepository captures the persistence operations for departments.
type DepartmentRepository interface {
	CreateDepartment(ctx context.Context, department Department) (Department, error)
	GetDepartment(ctx context.Context, id int64) (Department, error)
	UpdateDepartment(ctx context.Context, department Department) (Department, error)
	DeleteDepartment(ctx context.Context, id int64) error
	ListDepartments(ctx context.Context) ([]Department, error)
	CountRoomsInDepartment(ctx context.Context, id int64) (int, error)
}

// DepartmentInput captures caller provided department fields.
type DepartmentInput struct {
	Name         string
	Code         string
	Description  string
	ContactEmail string
	ContactPhone string
	Status       string
}

// DepartmentService manages departments.
type DepartmentService struct {
	departments DepartmentRepository
	now         func() time.Time
	logger      *slog.Logger
}

// NewDepartmentService constructs a department service.
func NewDepartmentService(departments DepartmentRepository, now func() time.Time, logger *slog.Logger) *DepartmentService {
	if now == nil {
		now = time.Now
	}
	return &DepartmentService{departments: departments, now: now, logger: defaultLogger(logger)}
}

func (s *DepartmentService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "DepartmentService", operation, attrs...)
}

// CreateDepartment stores a new department with a unique code.
func (s *DepartmentService) CreateDepartment(ctx context.Context, principal Principal, input DepartmentInput) (department Department, err error) {
	logger := s.loggerWith(ctx, "CreateDepartment", "principal_id", principal.UserID)
	defer func() {
		logOutcome(ctx, logger, err, "failed to create department", "department created", "department_id", department.ID)
	}()

	if !principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}
	input, vErr := normalizeDepartmentInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	department, err = s.departments.CreateDepartment(ctx, Department{
		Name:         input.Name,
		Code:         input.Code,
		Description:  input.Description,
		ContactEmail: input.ContactEmail,
		ContactPhone: input.ContactPhone,
		Status:       DepartmentStatus(input.Status),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		err = mapDepartmentRepoError(err)
	}
	return
}

// UpdateDepartment rewrites a department's fields.
func (s *DepartmentService) UpdateDepartment(ctx context.Context, principal Principal, id int64, input DepartmentInput) (department Department, err error) {
	logger := s.loggerWith(ctx, "UpdateDepartment", "principal_id", principal.UserID, "department_id", id)
	defer func() {
		logOutcome(ctx, logger, err, "failed to update department", "department updated")
	}()

	if !principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}
	existing, err := s.departments.GetDepartment(ctx, id)
	if err != nil {
		err = mapDepartmentRepoError(err)
		return
	}
	input, vErr := normalizeDepartmentInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	existing.Name = input.Name
	existing.Code = input.Code
	existing.Description = input.Description
	existing.ContactEmail = input.ContactEmail
	existing.ContactPhone = input.ContactPhone
	existing.Status = DepartmentStatus(input.Status)
	existing.UpdatedAt = s.now()

	department, err = s.departments.UpdateDepartment(ctx, existing)
	if err != nil {
		err = mapDepartmentRepoError(err)
	}
	return
}

// DeleteDepartment removes a department that no room references.
func (s *DepartmentService) DeleteDepartment(ctx context.Context, principal Principal, id int64) (err error) {
	logger := s.loggerWith(ctx, "DeleteDepartment", "principal_id", principal.UserID, "department_id", id)
	defer func() {
		logOutcome(ctx, logger, err, "failed to delete department", "department deleted")
	}()

	if !principal.IsAdmin() {
		return ErrUnauthorized
	}
	if _, err = s.departments.GetDepartment(ctx, id); err != nil {
		return mapDepartmentRepoError(err)
	}
	rooms, err := s.departments.CountRoomsInDepartment(ctx, id)
	if err != nil {
		return err
	}
	if rooms > 0 {
		return fmt.Errorf("department %d has %d rooms: %w", id, rooms, ErrInUse)
	}
	if err = s.departments.DeleteDepartment(ctx, id); err != nil {
		return mapDepartmentRepoError(err)
	}
	return nil
}

// GetDepartment returns a single department.
func (s *DepartmentService) GetDepartment(ctx context.Context, id int64) (Department, error) {
	department, err := s.departments.GetDepartment(ctx, id)
	if err != nil {
		return Department{}, mapDepartmentRepoError(err)
	}
	return department, nil
}

// ListDepartments returns every department ordered by name.
func (s *DepartmentService) ListDepartments(ctx context.Context) ([]Department, error) {
	return s.departments.ListDepartments(ctx)
}

func normalizeDepartmentInput(input DepartmentInput) (DepartmentInput, *ValidationError) {
	vErr := &ValidationError{}

	input.Name = strings.TrimSpace(input.Name)
	input.Code = strings.ToUpper(strings.TrimSpace(input.Code))
	input.Description = strings.TrimSpace(input.Description)
	input.ContactEmail = strings.TrimSpace(input.ContactEmail)
	input.ContactPhone = strings.TrimSpace(input.ContactPhone)

	if input.Name == "" {
		vErr.add("name", "name is required")
	}
	if input.Code == "" {
		vErr.add("code", "code is required")
	} else if len(input.Code) > 20 {
		vErr.add("code", "code must be at most 20 characters")
	}
	if input.ContactEmail != "" {
		if _, err := mail.ParseAddress(input.ContactEmail); err != nil {
			vErr.add("contactEmail", "must be a valid email address")
		}
	}

	switch DepartmentStatus(strings.ToLower(strings.TrimSpace(input.Status))) {
	case "":
		input.Status = string(DepartmentActive)
	case DepartmentActive, DepartmentInactive:
		input.Status = strings.ToLower(strings.TrimSpace(input.Status))
	default:
		vErr.add("status", "must be active or inactive")
	}

	return input, vErr
}

func mapDepartmentRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return err
	case errors.Is(err, persistence.ErrNotFound):
		return fmt.Errorf("department: %w", ErrNotFound)
	case errors.Is(err, persistence.ErrDuplicate):
		return fmt.Errorf("department code: %w", ErrAlreadyExists)
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return fmt.Errorf("department: %w", ErrInUse)
	}
	return err
}
