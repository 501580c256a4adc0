package scheduler

import (
	"errors"
	"slices"
	"testing"
	"time"
)

func TestPlanDayRelease(t *testing.T) {
	t.Parallel()

	tenDays := Range{Start: MustParseDate("2024-01-01"), End: MustParseDate("2024-01-10")}

	cases := []struct {
		name      string
		current   Range
		day       string
		remove    bool
		keep      string
		split     string
	}{
		{"single day removes row", day("2024-01-03"), "2024-01-03", true, "", ""},
		{"first day shifts start", tenDays, "2024-01-01", false, "2024-01-02..2024-01-10", ""},
		{"last day shifts end", tenDays, "2024-01-10", false, "2024-01-01..2024-01-09", ""},
		{"inner day splits", tenDays, "2024-01-05", false, "2024-01-01..2024-01-04", "2024-01-06..2024-01-10"},
		{"second of two days", Range{Start: MustParseDate("2024-01-01"), End: MustParseDate("2024-01-02")}, "2024-01-02", false, "2024-01-01", ""},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			plan, err := PlanDayRelease(tc.current, MustParseDate(tc.day))
			if err != nil {
				t.Fatalf("PlanDayRelease returned error: %v", err)
			}
			if plan.Remove != tc.remove {
				t.Fatalf("Remove = %v, want %v", plan.Remove, tc.remove)
			}
			if !tc.remove && plan.Keep.String() != tc.keep {
				t.Fatalf("Keep = %s, want %s", plan.Keep, tc.keep)
			}
			switch {
			case tc.split == "" && plan.Split != nil:
				t.Fatalf("unexpected split %s", plan.Split)
			case tc.split != "" && (plan.Split == nil || plan.Split.String() != tc.split):
				t.Fatalf("Split = %v, want %s", plan.Split, tc.split)
			}
		})
	}

	if _, err := PlanDayRelease(tenDays, MustParseDate("2024-02-01")); !errors.Is(err, ErrDayOutsideRange) {
		t.Fatalf("expected ErrDayOutsideRange, got %v", err)
	}
}

func TestCheckSpan(t *testing.T) {
	t.Parallel()

	start := MustParseDate("2024-01-01")
	if err := CheckSpan(Range{Start: start, End: start.AddDays(365)}, MaxAssignmentDays); err != nil {
		t.Fatalf("366 inclusive days should be accepted: %v", err)
	}
	if err := CheckSpan(Range{Start: start, End: start.AddDays(366)}, MaxAssignmentDays); !errors.Is(err, ErrRangeTooLong) {
		t.Fatalf("expected ErrRangeTooLong, got %v", err)
	}
	if err := CheckSpan(Range{Start: start, End: start.AddDays(399)}, MaxAssignmentDays); !errors.Is(err, ErrRangeTooLong) {
		t.Fatalf("expected ErrRangeTooLong for 400 days, got %v", err)
	}
}

func TestCheckAssignmentSpan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		start, end string
		ok         bool
	}{
		{start: "2024-01-01", end: "2024-12-31", ok: true},
		{start: "2024-01-01", end: "2025-01-01", ok: true},
		{start: "2024-01-01", end: "2025-01-02", ok: false},
		{start: "2025-03-01", end: "2026-03-01", ok: true},
		{start: "2025-03-01", end: "2026-03-02", ok: false},
		{start: "2024-02-29", end: "2025-03-01", ok: true},
		{start: "2024-01-01", end: "2025-02-03", ok: false},
	}
	for _, tc := range tests {
		r := Range{Start: MustParseDate(tc.start), End: MustParseDate(tc.end)}
		err := CheckAssignmentSpan(r)
		if tc.ok && err != nil {
			t.Errorf("%s: expected accepted, got %v", r, err)
		}
		if !tc.ok && !errors.Is(err, ErrRangeTooLong) {
			t.Errorf("%s: expected ErrRangeTooLong, got %v", r, err)
		}
	}
}

func TestExpandAssignment(t *testing.T) {
	t.Parallel()

	a := AssignmentSpec{
		CellID:    "c1",
		RoomID:    "room",
		UserID:    "u",
		CreatedBy: "admin",
		Range:     Range{Start: MustParseDate("2024-03-04"), End: MustParseDate("2024-03-10")},
	}

	drafts := slices.Collect(ExpandAssignment(a, nil))
	if len(drafts) != 7 {
		t.Fatalf("expected 7 drafts, got %d", len(drafts))
	}
	for i, d := range drafts {
		if d.Segment != SegmentFull || d.Status != StatusApproved || d.ApprovedBy != "admin" {
			t.Fatalf("draft %d has unexpected fields %+v", i, d)
		}
		if !d.Day.Equal(a.Range.Start.AddDays(i)) {
			t.Fatalf("draft %d day = %s", i, d.Day)
		}
	}

	weekdaysOnly := slices.Collect(ExpandAssignment(a, func(d Date) bool {
		return d.Weekday() != time.Saturday && d.Weekday() != time.Sunday
	}))
	if len(weekdaysOnly) != 5 {
		t.Fatalf("expected 5 weekday drafts, got %d", len(weekdaysOnly))
	}
}
