package scheduler

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSegment indicates an unknown time segment value.
var ErrInvalidSegment = errors.New("scheduler: invalid time segment")

// Segment is the part of a day a booking occupies.
type Segment string

const (
	SegmentAM   Segment = "AM"
	SegmentPM   Segment = "PM"
	SegmentFull Segment = "FULL"
)

// ParseSegment accepts AM, PM or FULL in any case.
func ParseSegment(value string) (Segment, error) {
	s := Segment(strings.ToUpper(strings.TrimSpace(value)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSegment, value)
	}
	return s, nil
}

// Valid reports whether s is one of the known segments.
func (s Segment) Valid() bool {
	switch s {
	case SegmentAM, SegmentPM, SegmentFull:
		return true
	}
	return false
}

// Halves returns the half-day slots the segment occupies.
func (s Segment) Halves() []Segment {
	switch s {
	case SegmentAM:
		return []Segment{SegmentAM}
	case SegmentPM:
		return []Segment{SegmentPM}
	case SegmentFull:
		return []Segment{SegmentAM, SegmentPM}
	}
	return nil
}

// SegmentsConflict reports whether two bookings on the same day collide. FULL
// collides with everything; AM and PM only collide with themselves.
func SegmentsConflict(a, b Segment) bool {
	return a == SegmentFull || b == SegmentFull || a == b
}
