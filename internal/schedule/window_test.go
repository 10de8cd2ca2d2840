package schedule

import (
	"testing"
	"time"

	"planner/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWindowStartsOnMonday(t *testing.T) {
	cases := []struct {
		name   string
		anchor time.Time
		want   time.Time
	}{
		{"wednesday anchor", date(2025, time.June, 11), date(2025, time.June, 9)},
		{"monday anchor", date(2025, time.June, 9), date(2025, time.June, 9)},
		{"sunday folds back", date(2025, time.June, 15), date(2025, time.June, 9)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := NewWindow(tc.anchor)
			if got := w.Start(); !got.Equal(tc.want) {
				t.Fatalf("Start() = %v, want %v", got, tc.want)
			}
			days := w.Days()
			if len(days) != 7 {
				t.Fatalf("Days() returned %d days", len(days))
			}
			if !days[6].Equal(tc.want.AddDate(0, 0, 6)) {
				t.Fatalf("last day = %v", days[6])
			}
		})
	}
}

func TestShiftIsPure(t *testing.T) {
	w := NewWindow(date(2025, time.June, 11))

	next := w.Shift(UnitWeek, DirectionNext)
	if !next.Anchor.Equal(date(2025, time.June, 18)) {
		t.Fatalf("next week anchor = %v", next.Anchor)
	}

	prev := w.Shift(UnitMonth, DirectionPrev)
	if !prev.Anchor.Equal(date(2025, time.May, 11)) {
		t.Fatalf("prev month anchor = %v", prev.Anchor)
	}

	if !w.Anchor.Equal(date(2025, time.June, 11)) {
		t.Fatal("Shift mutated the receiver")
	}
}

func TestBucketGroupsByExactDate(t *testing.T) {
	monday := date(2025, time.June, 9)
	ds := []model.Deliverable{
		{ID: 1, Date: monday},
		{ID: 2, Date: monday},
		{ID: 3, Date: monday.AddDate(0, 0, 1)},
	}

	buckets := Bucket(ds)
	if got := len(buckets["2025-06-09"]); got != 2 {
		t.Fatalf("monday bucket size = %d, want 2", got)
	}
	if got := len(buckets["2025-06-10"]); got != 1 {
		t.Fatalf("tuesday bucket size = %d, want 1", got)
	}
	if _, ok := buckets["2025-06-11"]; ok {
		t.Fatal("empty day should have no bucket")
	}
}

func TestAllowPlacementRejectsPastDatesOnly(t *testing.T) {
	now := time.Date(2025, time.June, 11, 15, 30, 0, 0, time.UTC)

	if AllowPlacement(now.AddDate(0, 0, -1), now) {
		t.Fatal("yesterday should be rejected")
	}
	// Same calendar day is allowed regardless of time of day.
	if !AllowPlacement(date(2025, time.June, 11), now) {
		t.Fatal("today should be allowed")
	}
	if !AllowPlacement(now.AddDate(0, 0, 1), now) {
		t.Fatal("tomorrow should be allowed")
	}
}

func TestAllowPlacementAcrossZones(t *testing.T) {
	// Request dates parse in UTC; the clock may run in another zone.
	// The calendar dates are what count, not the instants.
	est := time.FixedZone("EST", -5*60*60)

	target := date(2025, time.June, 11)
	now := time.Date(2025, time.June, 11, 1, 0, 0, 0, est)
	if !AllowPlacement(target, now) {
		t.Fatal("today should be allowed when the clock zone is west of UTC")
	}

	if AllowPlacement(date(2025, time.June, 10), now) {
		t.Fatal("yesterday should be rejected across zones")
	}

	// East of UTC: local midnight has passed while UTC has not.
	tokyo := time.FixedZone("JST", 9*60*60)
	lateNow := time.Date(2025, time.June, 11, 23, 30, 0, 0, tokyo)
	if !AllowPlacement(date(2025, time.June, 11), lateNow) {
		t.Fatal("today should be allowed when the clock zone is east of UTC")
	}
}
