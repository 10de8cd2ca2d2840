// Package schedule holds the calendar arithmetic behind the planning
// board: the visible date window, per-day bucketing, and the placement
// policy for drag-scheduling a project onto a date.
package schedule

import (
	"time"

	"planner/internal/model"
)

type Unit string

const (
	UnitWeek  Unit = "week"
	UnitMonth Unit = "month"
)

type Direction string

const (
	DirectionPrev Direction = "prev"
	DirectionNext Direction = "next"
)

// Window is the visible range of the board: the week containing the
// anchor date, Monday-start. Shifting is pure anchor arithmetic.
type Window struct {
	Anchor time.Time
}

// NewWindow builds a window anchored at the given date (time of day is
// discarded).
func NewWindow(anchor time.Time) Window {
	return Window{Anchor: truncateToDay(anchor)}
}

// Start returns the Monday of the anchor's week.
func (w Window) Start() time.Time {
	weekday := int(w.Anchor.Weekday())
	// time.Weekday is Sunday-based; fold Sunday onto the previous week.
	offset := (weekday + 6) % 7
	return w.Anchor.AddDate(0, 0, -offset)
}

// Days returns the seven consecutive days of the visible week.
func (w Window) Days() []time.Time {
	start := w.Start()
	days := make([]time.Time, 7)
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
	}
	return days
}

// Shift returns a new window moved one unit in the given direction.
// The receiver is unchanged.
func (w Window) Shift(unit Unit, dir Direction) Window {
	sign := 1
	if dir == DirectionPrev {
		sign = -1
	}
	switch unit {
	case UnitMonth:
		return Window{Anchor: w.Anchor.AddDate(0, sign, 0)}
	default:
		return Window{Anchor: w.Anchor.AddDate(0, 0, sign*7)}
	}
}

// Bucket groups deliverables by exact calendar date (yyyy-mm-dd key).
// All deliverables of a day are kept; nothing is collapsed.
func Bucket(deliverables []model.Deliverable) map[string][]model.Deliverable {
	buckets := make(map[string][]model.Deliverable)
	for _, d := range deliverables {
		key := d.Date.Format(model.DateLayout)
		buckets[key] = append(buckets[key], d)
	}
	return buckets
}

// AllowPlacement reports whether a placement proposal onto target is
// acceptable: anything from today onward, by date-only comparison.
// Target dates arrive parsed in UTC while now carries the server zone,
// so each side is compared by its own calendar date rather than by
// instant. Past-date proposals are dropped silently by the callers.
func AllowPlacement(target, now time.Time) bool {
	return target.Format(model.DateLayout) >= now.Format(model.DateLayout)
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
