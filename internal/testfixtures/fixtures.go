package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/campus-rooms/internal/application"
)

var (
	userCounter    uint64
	roomCounter    uint64
	bookingCounter uint64
)

// Monday 08:00 UTC, so booking fixtures land on working hours.
var referenceTime = time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// DefaultPassword is the password given to every generated user fixture.
const DefaultPassword = "correct-horse-battery"

// ----------------------------- User fixtures -----------------------------

// UserFixture describes an account to create through the user service.
type UserFixture struct {
	Name     string
	Email    string
	Password string
	Role     application.Role
	Status   application.UserStatus
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a lecturer fixture with a unique email.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	fixture := UserFixture{
		Name:     fmt.Sprintf("User %03d", idx),
		Email:    fmt.Sprintf("user-%03d@campus.example", idx),
		Password: DefaultPassword,
		Role:     application.RoleLecturer,
		Status:   application.UserActive,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) {
		f.Email = email
	}
}

// WithUserName overrides the generated name.
func WithUserName(name string) UserOption {
	return func(f *UserFixture) {
		f.Name = name
	}
}

// WithUserRole sets the role of the generated fixture.
func WithUserRole(role application.Role) UserOption {
	return func(f *UserFixture) {
		f.Role = role
	}
}

// WithUserStatus sets the account status of the generated fixture.
func WithUserStatus(status application.UserStatus) UserOption {
	return func(f *UserFixture) {
		f.Status = status
	}
}

// Input returns the fixture as an application.UserInput.
func (f UserFixture) Input() application.UserInput {
	return application.UserInput{
		Name:     f.Name,
		Email:    f.Email,
		Password: f.Password,
		Role:     string(f.Role),
		Status:   string(f.Status),
	}
}

// ----------------------------- Room fixtures -----------------------------

// RoomFixture describes a bookable room.
type RoomFixture struct {
	Name         string
	Capacity     int
	Building     string
	Floor        int
	Resources    []string
	DepartmentID *int64
}

// RoomOption configures the generated room fixture.
type RoomOption func(*RoomFixture)

// NewRoomFixture returns a room fixture with a unique name.
func NewRoomFixture(opts ...RoomOption) RoomFixture {
	idx := atomic.AddUint64(&roomCounter, 1)
	fixture := RoomFixture{
		Name:      fmt.Sprintf("Room %03d", idx),
		Capacity:  int(20 + idx%4*10),
		Building:  "Science",
		Floor:     int(idx % 5),
		Resources: []string{"projector", "whiteboard"},
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRoomName overrides the generated room name.
func WithRoomName(name string) RoomOption {
	return func(f *RoomFixture) {
		f.Name = name
	}
}

// WithRoomBuilding overrides the building.
func WithRoomBuilding(building string) RoomOption {
	return func(f *RoomFixture) {
		f.Building = building
	}
}

// WithRoomDepartment assigns the room to a department.
func WithRoomDepartment(id int64) RoomOption {
	return func(f *RoomFixture) {
		f.DepartmentID = &id
	}
}

// Input returns the fixture as an application.RoomInput.
func (f RoomFixture) Input() application.RoomInput {
	return application.RoomInput{
		Name:         f.Name,
		Capacity:     f.Capacity,
		Building:     f.Building,
		Floor:        f.Floor,
		Resources:    f.Resources,
		DepartmentID: f.DepartmentID,
	}
}

// ----------------------------- Booking fixtures -----------------------------

// BookingFixture describes a one hour booking by default, starting one day
// after ReferenceTime and staggered by the fixture counter.
type BookingFixture struct {
	RoomID      int64
	Title       string
	Description string
	Start       time.Time
	End         time.Time
}

// BookingOption configures the generated booking fixture.
type BookingOption func(*BookingFixture)

// NewBookingFixture returns a booking fixture for roomID.
func NewBookingFixture(roomID int64, opts ...BookingOption) BookingFixture {
	idx := atomic.AddUint64(&bookingCounter, 1)
	start := referenceTime.Add(24*time.Hour + time.Duration(idx)*2*time.Hour)
	fixture := BookingFixture{
		RoomID: roomID,
		Title:  fmt.Sprintf("Lecture %03d", idx),
		Start:  start,
		End:    start.Add(time.Hour),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithBookingWindow sets the booking window.
func WithBookingWindow(start, end time.Time) BookingOption {
	return func(f *BookingFixture) {
		f.Start = start
		f.End = end
	}
}

// WithBookingTitle overrides the generated title.
func WithBookingTitle(title string) BookingOption {
	return func(f *BookingFixture) {
		f.Title = title
	}
}

// Input returns the fixture as an application.BookingInput.
func (f BookingFixture) Input() application.BookingInput {
	return application.BookingInput{
		RoomID:      f.RoomID,
		Title:       f.Title,
		Description: f.Description,
		Start:       f.Start,
		End:         f.End,
	}
}
