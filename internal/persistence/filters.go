package persistence

import (
	"time"

	"github.com/example/campus-rooms/internal/scheduler"
)

// BookingFilter narrows booking listings. Zero values mean no restriction.
type BookingFilter struct {
	RoomID int64
	UserID int64
	Status scheduler.Status
	From   *time.Time
	To     *time.Time
	Limit  int
}

// RoomFilter narrows room listings.
type RoomFilter struct {
	Status       string
	Building     string
	DepartmentID int64
	MinCapacity  int
}

// MaintenanceFilter narrows maintenance request listings.
type MaintenanceFilter struct {
	RoomID   int64
	Status   string
	Priority string
	Scope    Scope
}

// ReportWindow bounds report queries. Nil ends are open.
type ReportWindow struct {
	From *time.Time
	To   *time.Time
}
