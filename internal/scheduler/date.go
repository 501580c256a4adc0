// Package scheduler holds the pure booking rules: calendar dates and ranges,
// time segments, reservation status transitions, conflict predicates and the
// fixed-assignment split/expand arithmetic. Nothing here touches storage.
package scheduler

import (
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"
)

// DateLayout is the wire and storage representation of a Date.
const DateLayout = "2006-01-02"

// ErrInvalidDate indicates a value that cannot be parsed as a calendar date.
var ErrInvalidDate = errors.New("scheduler: invalid date")

// ErrInvalidRange indicates a range whose end precedes its start.
var ErrInvalidRange = errors.New("scheduler: range end precedes start")

// Date is a calendar day without a time-of-day or zone component.
type Date struct {
	t time.Time
}

// NewDate builds a Date, normalizing overflowing months and days the same way
// time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to the calendar day it falls on in its own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(value string) (Date, error) {
	trimmed := strings.TrimSpace(value)
	parsed, err := time.Parse(DateLayout, trimmed)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return Date{t: parsed}, nil
}

// MustParseDate is ParseDate for literals known to be valid.
func MustParseDate(value string) Date {
	d, err := ParseDate(value)
	if err != nil {
		panic(err)
	}
	return d
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool { return d.t.IsZero() }

// String renders the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.t.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time { return d.t }

// Weekday returns the day of the week.
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }

// AddDays returns the date n calendar days later (earlier when n < 0).
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// AddYears returns the same calendar day n years later. February 29 maps to
// March 1 in non-leap years.
func (d Date) AddYears(n int) Date { return Date{t: d.t.AddDate(n, 0, 0)} }

// Compare returns -1, 0 or +1 as d is before, equal to or after other.
func (d Date) Compare(other Date) int { return d.t.Compare(other.t) }

// Before reports whether d is strictly before other.
func (d Date) Before(other Date) bool { return d.Compare(other) < 0 }

// After reports whether d is strictly after other.
func (d Date) After(other Date) bool { return d.Compare(other) > 0 }

// Equal reports whether d and other are the same day.
func (d Date) Equal(other Date) bool { return d.Compare(other) == 0 }

// DaysUntil returns the number of calendar days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.t.Sub(d.t).Hours() / 24)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty value yields the
// zero Date so optional fields can be left blank.
func (d *Date) UnmarshalText(text []byte) error {
	if len(strings.TrimSpace(string(text))) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Comparable is satisfied by Date and time.Time.
type Comparable[T any] interface {
	Compare(T) int
}

// Overlaps reports whether the inclusive intervals [aStart,aEnd] and
// [bStart,bEnd] share at least one point.
func Overlaps[T Comparable[T]](aStart, aEnd, bStart, bEnd T) bool {
	return aStart.Compare(bEnd) <= 0 && bStart.Compare(aEnd) <= 0
}

// Range is an inclusive span of calendar days.
type Range struct {
	Start Date
	End   Date
}

// NewRange builds a Range and rejects an end before the start.
func NewRange(start, end Date) (Range, error) {
	r := Range{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return Range{}, err
	}
	return r, nil
}

// SingleDay returns the range covering only d.
func SingleDay(d Date) Range { return Range{Start: d, End: d} }

// Validate checks both bounds are set and ordered.
func (r Range) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("%w: both bounds are required", ErrInvalidRange)
	}
	if r.End.Before(r.Start) {
		return fmt.Errorf("%w: %s..%s", ErrInvalidRange, r.Start, r.End)
	}
	return nil
}

// Len returns the inclusive number of days in the range.
func (r Range) Len() int {
	if r.End.Before(r.Start) {
		return 0
	}
	return r.Start.DaysUntil(r.End) + 1
}

// Contains reports whether d falls within the range.
func (r Range) Contains(d Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// Overlaps reports whether r and other share a day.
func (r Range) Overlaps(other Range) bool {
	return Overlaps(r.Start, r.End, other.Start, other.End)
}

// Intersect returns the shared days of r and other.
func (r Range) Intersect(other Range) (Range, bool) {
	if !r.Overlaps(other) {
		return Range{}, false
	}
	out := r
	if other.Start.After(out.Start) {
		out.Start = other.Start
	}
	if other.End.Before(out.End) {
		out.End = other.End
	}
	return out, true
}

// Days yields every day of the range in ascending order. The sequence can be
// ranged over any number of times.
func (r Range) Days() iter.Seq[Date] {
	return func(yield func(Date) bool) {
		for d := r.Start; !d.After(r.End); d = d.AddDays(1) {
			if !yield(d) {
				return
			}
		}
	}
}

// String renders the range as start..end.
func (r Range) String() string {
	if r.Start.Equal(r.End) {
		return r.Start.String()
	}
	return r.Start.String() + ".." + r.End.String()
}
