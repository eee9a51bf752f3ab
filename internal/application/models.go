package application

import (
	"strings"
	"time"

	"github.com/example/campus-rooms/internal/persistence"
	"github.com/example/campus-rooms/internal/scheduler"
)

// Role identifies the permission set of a user.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleLecturer    Role = "lecturer"
	RoleMaintenance Role = "maintenance"
)

// ParseRole converts a raw role name, returning false when it is unknown.
func ParseRole(raw string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	switch r {
	case RoleAdmin, RoleLecturer, RoleMaintenance:
		return r, true
	}
	return "", false
}

// UserStatus marks whether an account may sign in.
type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserInactive UserStatus = "inactive"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID int64
	Role   Role
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// HasRole reports whether the principal holds any of roles.
func (p Principal) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// Scope returns the row visibility for this principal: admins see every
// row, everyone else only their own. Roles listed in widen are treated like admins.
func (p Principal) Scope(widen ...Role) persistence.Scope {
	if p.IsAdmin() || p.HasRole(widen...) {
		return persistence.AllRows()
	}
	return persistence.OwnedBy(p.UserID)
}

// User is an account able to sign in.
type User struct {
	ID        int64
	Name      string
	Email     string
	Role      Role
	Status    UserStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Active reports whether the user may sign in.
func (u User) Active() bool {
	return u.Status == UserActive
}

// UserCredentials couples a user with its stored password hash.
type UserCredentials struct {
	User         User
	PasswordHash string
}

// RoomStatus describes whether a room can be booked.
type RoomStatus string

const (
	RoomAvailable   RoomStatus = "available"
	RoomMaintenance RoomStatus = "maintenance"
	RoomOccupied    RoomStatus = "occupied"
	RoomInactive    RoomStatus = "inactive"
)

// ParseRoomStatus validates a raw room status.
func ParseRoomStatus(raw string) (RoomStatus, bool) {
	s := RoomStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case RoomAvailable, RoomMaintenance, RoomOccupied, RoomInactive:
		return s, true
	}
	return "", false
}

// Room is a bookable space.
type Room struct {
	ID           int64
	Name         string
	Capacity     int
	Building     string
	Floor        int
	Resources    []string
	Status       RoomStatus
	Description  string
	DepartmentID *int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DepartmentStatus marks whether a department is in use.
type DepartmentStatus string

const (
	DepartmentActive   DepartmentStatus = "active"
	DepartmentInactive DepartmentStatus = "inactive"
)

// Department is an organizational unit that owns rooms.
type Department struct {
	ID           int64
	Name         string
	Code         string
	Description  string
	ContactEmail string
	ContactPhone string
	Status       DepartmentStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Booking is a reservation of a room for a half-open time window.
type Booking struct {
	ID          int64
	RoomID      int64
	UserID      int64
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Recurring   bool
	Status      scheduler.Status
	CreatedAt   time.Time
	UpdatedAt   time.Time

	RoomName string
	UserName string
}

// Interval returns the booking window.
func (b Booking) Interval() scheduler.Interval {
	return scheduler.NewInterval(b.Start, b.End)
}

// Reservation projects the booking onto the conflict checker's view.
func (b Booking) Reservation() scheduler.Reservation {
	return scheduler.Reservation{ID: b.ID, RoomID: b.RoomID, Status: b.Status, Interval: b.Interval()}
}

// MaintenanceStatus tracks progress on a maintenance request.
type MaintenanceStatus string

const (
	MaintenancePending    MaintenanceStatus = "pending"
	MaintenanceInProgress MaintenanceStatus = "in-progress"
	MaintenanceCompleted  MaintenanceStatus = "completed"
)

// ParseMaintenanceStatus validates a raw maintenance status.
func ParseMaintenanceStatus(raw string) (MaintenanceStatus, bool) {
	s := MaintenanceStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case MaintenancePending, MaintenanceInProgress, MaintenanceCompleted:
		return s, true
	}
	return "", false
}

// Priority ranks maintenance urgency.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority validates a raw priority, defaulting to medium when empty.
func ParsePriority(raw string) (Priority, bool) {
	p := Priority(strings.ToLower(strings.TrimSpace(raw)))
	switch p {
	case "":
		return PriorityMedium, true
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, true
	}
	return "", false
}

// MaintenanceRequest records an issue reported against a room.
type MaintenanceRequest struct {
	ID          int64
	RoomID      int64
	ReportedBy  int64
	Issue       string
	Description string
	Priority    Priority
	Status      MaintenanceStatus
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time

	RoomName string
}

// AuditEntry is one line of the audit trail.
type AuditEntry struct {
	ID         int64
	UserID     *int64
	Action     string
	EntityType string
	EntityID   int64
	Details    string
	CreatedAt  time.Time
}

// RoomUtilization summarizes bookings per room.
type RoomUtilization struct {
	RoomID      int64
	RoomName    string
	Bookings    int
	BookedHours float64
}

// StatusCount is a count of rows grouped by a status label.
type StatusCount struct {
	Status string
	Count  int
}

// DepartmentUsage summarizes rooms and bookings per department.
type DepartmentUsage struct {
	DepartmentID   int64
	DepartmentName string
	Rooms          int
	Bookings       int
}

// MaintenanceSummary counts maintenance requests per status and priority.
type MaintenanceSummary struct {
	Status   string
	Priority string
	Count    int
}
