package scheduler

import (
	"errors"
	"fmt"
	"iter"
)

// MaxAssignmentDays is the default cap on the inclusive length of a booked
// range. Fixed assignments are bounded by CheckAssignmentSpan instead.
const MaxAssignmentDays = 366

var (
	// ErrRangeTooLong is returned when a range exceeds the allowed number of days.
	ErrRangeTooLong = errors.New("scheduler: range too long")
	// ErrDayOutsideRange is returned when releasing a day the assignment does not cover.
	ErrDayOutsideRange = errors.New("scheduler: day outside assignment range")
)

// CheckSpan rejects ranges longer than maxDays inclusive days.
func CheckSpan(r Range, maxDays int) error {
	if maxDays > 0 && r.Len() > maxDays {
		return fmt.Errorf("%w: %d days requested, at most %d allowed", ErrRangeTooLong, r.Len(), maxDays)
	}
	return nil
}

// CheckAssignmentSpan rejects assignment ranges whose end lies more than one
// calendar year after their start.
func CheckAssignmentSpan(r Range) error {
	if limit := r.Start.AddYears(1); r.End.After(limit) {
		return fmt.Errorf("%w: %s ends after %s", ErrRangeTooLong, r, limit)
	}
	return nil
}

// ReleasePlan describes how a fixed assignment changes when one day is given up.
//
//   - Remove: the assignment covered only that day and disappears.
//   - Keep: the narrowed range the original row retains.
//   - Split: when set, the range of a new row covering the days after the released day.
type ReleasePlan struct {
	Day    Date
	Remove bool
	Keep   Range
	Split  *Range
}

// PlanDayRelease computes the effect of releasing day from an assignment
// spanning current.
func PlanDayRelease(current Range, day Date) (ReleasePlan, error) {
	if !current.Contains(day) {
		return ReleasePlan{}, fmt.Errorf("%w: %s not in %s", ErrDayOutsideRange, day, current)
	}
	plan := ReleasePlan{Day: day}
	switch {
	case current.Start.Equal(current.End):
		plan.Remove = true
	case day.Equal(current.Start):
		plan.Keep = Range{Start: day.AddDays(1), End: current.End}
	case day.Equal(current.End):
		plan.Keep = Range{Start: current.Start, End: day.AddDays(-1)}
	default:
		plan.Keep = Range{Start: current.Start, End: day.AddDays(-1)}
		plan.Split = &Range{Start: day.AddDays(1), End: current.End}
	}
	return plan, nil
}

// AssignmentSpec is an admin request to give a cell to a user for a range of days.
type AssignmentSpec struct {
	CellID    string
	RoomID    string
	UserID    string
	CreatedBy string
	Range     Range
}

// ReservationDraft is a single-day reservation produced by expanding an assignment.
type ReservationDraft struct {
	CellID     string
	RoomID     string
	UserID     string
	Day        Date
	Segment    Segment
	Status     Status
	ApprovedBy string
}

// Booking returns the draft as an unsaved Booking with the given id.
func (d ReservationDraft) Booking(id string) Booking {
	return Booking{
		Kind:    KindReservation,
		ID:      id,
		CellID:  d.CellID,
		RoomID:  d.RoomID,
		UserID:  d.UserID,
		Range:   SingleDay(d.Day),
		Segment: d.Segment,
		Status:  d.Status,
	}
}

// ExpandAssignment yields one FULL, approved draft per day of the assignment range
// accepted by include. A nil include accepts every day.
func ExpandAssignment(a AssignmentSpec, include func(Date) bool) iter.Seq[ReservationDraft] {
	return func(yield func(ReservationDraft) bool) {
		for day := range a.Range.Days() {
			if include != nil && !include(day) {
				continue
			}
			draft := ReservationDraft{
				CellID:     a.CellID,
				RoomID:     a.RoomID,
				UserID:     a.UserID,
				Day:        day,
				Segment:    SegmentFull,
				Status:     StatusApproved,
				ApprovedBy: a.CreatedBy,
			}
			if !yield(draft) {
				return
			}
		}
	}
}
