package scheduler

import "time"

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval builds an interval from its bounds.
func NewInterval(start, end time.Time) Interval {
	return Interval{Start: start, End: end}
}

// Valid reports whether the interval has a strictly positive duration.
func (i Interval) Valid() bool {
	return !i.Start.IsZero() && !i.End.IsZero() && i.End.After(i.Start)
}

// Duration returns the length of the interval, or zero when it is not valid.
func (i Interval) Duration() time.Duration {
	if !i.Valid() {
		return 0
	}
	return i.End.Sub(i.Start)
}

// Overlaps reports whether two half-open intervals intersect. Intervals that
// only touch (one ends exactly when the other starts) do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return !(!i.End.After(other.Start) || !i.Start.Before(other.End))
}

// Reservation is the subset of a booking the conflict rule looks at.
type Reservation struct {
	ID     int64
	RoomID int64
	Status Status
	Interval
}

// Conflict pairs two reservations that violate the no-overlap rule.
type Conflict struct {
	First  Reservation
	Second Reservation
}

// CheckConflict returns the first reservation in existing that blocks the
// candidate window on roomID. Only reservations whose status blocks the slot
// are considered, and the reservation with excludeID (when non-zero) is
// ignored so an update never conflicts with itself.
func CheckConflict(existing []Reservation, roomID int64, candidate Interval, excludeID int64) (Reservation, bool) {
	for _, r := range existing {
		if r.RoomID != roomID {
			continue
		}
		if excludeID != 0 && r.ID == excludeID {
			continue
		}
		if !r.Status.BlocksSlot() {
			continue
		}
		if r.Interval.Overlaps(candidate) {
			return r, true
		}
	}
	return Reservation{}, false
}

// FindConflicts lists every pair of slot-blocking reservations on the same
// room whose intervals intersect. An empty result means the set satisfies the
// no-overlap invariant.
func FindConflicts(reservations []Reservation) []Conflict {
	var conflicts []Conflict
	for i := 0; i < len(reservations); i++ {
		a := reservations[i]
		if !a.Status.BlocksSlot() {
			continue
		}
		for j := i + 1; j < len(reservations); j++ {
			b := reservations[j]
			if a.RoomID != b.RoomID || !b.Status.BlocksSlot() {
				continue
			}
			if a.Interval.Overlaps(b.Interval) {
				conflicts = append(conflicts, Conflict{First: a, Second: b})
			}
		}
	}
	return conflicts
}
