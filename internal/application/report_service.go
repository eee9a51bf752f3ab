package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/campus-rooms/internal/persistence"
)

// ReportRepository runs the aggregate queries behind the reports.
type ReportRepository interface {
	RoomUtilization(ctx context.Context, scope persistence.Scope, window persistence.ReportWindow) ([]RoomUtilization, error)
	BookingSummary(ctx context.Context, scope persistence.Scope, window persistence.ReportWindow) ([]StatusCount, error)
	DepartmentUsage(ctx context.Context, window persistence.ReportWindow) ([]DepartmentUsage, error)
	MaintenanceSummary(ctx context.Context, scope persistence.Scope, window persistence.ReportWindow) ([]MaintenanceSummary, error)
}

// ReportService serves read-only aggregates scoped to the caller.
type ReportService struct {
	reports ReportRepository
	logger  *slog.Logger
}

// NewReportService constructs a report service.
func NewReportService(reports ReportRepository, logger *slog.Logger) *ReportService {
	return &ReportService{reports: reports, logger: defaultLogger(logger)}
}

// RoomUtilization counts bookings and booked hours per room. Non-admins only see their own bookings counted.
func (s *ReportService) RoomUtilization(ctx context.Context, scope persistence.Scope, window persistence.ReportWindow) ([]RoomUtilization, error) {
	if err := validateReportWindow(window); err != nil {
		return nil, err
	}
	rows, err := s.reports.RoomUtilization(ctx, scope, window)
	s.logResult(ctx, "RoomUtilization", scope, len(rows), err)
	return rows, err
}

// BookingSummary counts bookings per status.
func (s *ReportService) BookingSummary(ctx context.Context, scope persistence.Scope, window persistence.ReportWindow) ([]StatusCount, error) {
	if err := validateReportWindow(window); err != nil {
		return nil, err
	}
	rows, err := s.reports.BookingSummary(ctx, scope, window)
	s.logResult(ctx, "BookingSummary", scope, len(rows), err)
	return rows, err
}

// DepartmentUsage counts rooms and bookings per department. Administrators only.
func (s *ReportService) DepartmentUsage(ctx context.Context, principal Principal, window persistence.ReportWindow) ([]DepartmentUsage, error) {
	if !principal.IsAdmin() {
		return nil, ErrUnauthorized
	}
	if err := validateReportWindow(window); err != nil {
		return nil, err
	}
	rows, err := s.reports.DepartmentUsage(ctx, window)
	s.logResult(ctx, "DepartmentUsage", persistence.AllRows(), len(rows), err)
	return rows, err
}

// MaintenanceSummary counts maintenance requests per status and priority.
// Maintenance staff see every request; lecturers see their own reports.
func (s *ReportService) MaintenanceSummary(ctx context.Context, principal Principal, window persistence.ReportWindow) ([]MaintenanceSummary, error) {
	if err := validateReportWindow(window); err != nil {
		return nil, err
	}
	scope := principal.Scope(RoleMaintenance)
	rows, err := s.reports.MaintenanceSummary(ctx, scope, window)
	s.logResult(ctx, "MaintenanceSummary", scope, len(rows), err)
	return rows, err
}

func (s *ReportService) logResult(ctx context.Context, report string, scope persistence.Scope, rows int, err error) {
	logger := serviceLogger(ctx, s.logger, "ReportService", report, "unrestricted", scope.Unrestricted)
	if err != nil {
		logger.ErrorContext(ctx, "report failed", "error", err)
		return
	}
	logger.DebugContext(ctx, "report generated", "rows", rows)
}

func validateReportWindow(window persistence.ReportWindow) error {
	if window.From != nil && window.To != nil && !window.To.After(*window.From) {
		return NewValidationError("to", fmt.Sprintf("must be after %s", window.From.Format(time.RFC3339)))
	}
	return nil
}
