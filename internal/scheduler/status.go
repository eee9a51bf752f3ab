package scheduler

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusPending   Status = "pending"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// ErrInvalidTransition is returned when a status change is not in the transition table.
var ErrInvalidTransition = errors.New("scheduler: invalid status transition")

var transitions = map[Status][]Status{
	StatusConfirmed: {StatusCancelled, StatusCompleted},
	StatusPending:   {StatusConfirmed, StatusCancelled},
}

// Statuses lists every known status in display order.
func Statuses() []Status {
	return []Status{StatusConfirmed, StatusPending, StatusCancelled, StatusCompleted}
}

// ParseStatus converts a raw string into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("scheduler: unknown status %q", raw)
	}
	return s, nil
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusConfirmed, StatusPending, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// BlocksSlot reports whether a booking in this status takes part in conflict checks.
func (s Status) BlocksSlot() bool {
	return s == StatusConfirmed
}

// Mutable reports whether a booking in this status may still be edited.
func (s Status) Mutable() bool {
	return s == StatusConfirmed || s == StatusPending
}

// Terminal reports whether no further transitions leave this status.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates a status change and returns the target status.
func Transition(from, to Status) (Status, error) {
	if !CanTransition(from, to) {
		return from, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return to, nil
}
