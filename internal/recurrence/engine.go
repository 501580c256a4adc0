package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/desk-booking/internal/scheduler"
)

// Frequency represents supported recurrence intervals.
type Frequency int

const (
	// FrequencyUnspecified indicates the rule frequency is not set.
	FrequencyUnspecified Frequency = iota
	// FrequencyDaily generates every day within the range, optionally filtered by weekday.
	FrequencyDaily
	// FrequencyWeekly generates only the selected weekdays.
	FrequencyWeekly
)

// Rule describes which days of a range an assignment should materialize on.
type Rule struct {
	Frequency Frequency
	Weekdays  []time.Weekday
	Range     scheduler.Range
}

// GenerateOptions narrows generation to a sub-window of the rule's range.
type GenerateOptions struct {
	Window *scheduler.Range
}

// ErrInvalidFrequency indicates the recurrence frequency is not supported.
var ErrInvalidFrequency = errors.New("recurrence: invalid frequency")

// ErrInvalidWindow indicates the rule range is not usable.
var ErrInvalidWindow = errors.New("recurrence: generation window requires ordered bounds")

// ErrInvalidWeekday indicates a weekday name could not be parsed.
var ErrInvalidWeekday = errors.New("recurrence: invalid weekday")

// RuleFor builds a daily rule over r, restricted to weekdays when any are given.
func RuleFor(r scheduler.Range, weekdays []time.Weekday) Rule {
	if len(weekdays) == 0 {
		return Rule{Frequency: FrequencyDaily, Range: r}
	}
	return Rule{Frequency: FrequencyWeekly, Weekdays: weekdays, Range: r}
}

// Includes reports whether day is selected by the rule. The range bound is
// checked too, so the method can be used as a filter on arbitrary days.
func (r Rule) Includes(day scheduler.Date) bool {
	if !r.Range.Contains(day) {
		return false
	}
	ok, err := shouldInclude(r.Frequency, weekdaySet(r.Weekdays), day.Weekday())
	return err == nil && ok
}

// GenerateDays returns the selected days in ascending order.
//
// The generation window is the rule's range intersected with the optional
// window; an empty intersection yields no days and no error.
func GenerateDays(rule Rule, opts GenerateOptions) ([]scheduler.Date, error) {
	if err := rule.Range.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWindow, err)
	}

	window := rule.Range
	if opts.Window != nil {
		clipped, ok := window.Intersect(*opts.Window)
		if !ok {
			return nil, nil
		}
		window = clipped
	}

	set := weekdaySet(rule.Weekdays)
	days := make([]scheduler.Date, 0, window.Len())
	for day := range window.Days() {
		include, err := shouldInclude(rule.Frequency, set, day.Weekday())
		if err != nil {
			return nil, err
		}
		if include {
			days = append(days, day)
		}
	}
	return days, nil
}

// ParseWeekdays accepts English weekday names or three letter abbreviations.
func ParseWeekdays(values []string) ([]time.Weekday, error) {
	out := make([]time.Weekday, 0, len(values))
	seen := make(map[time.Weekday]struct{}, len(values))
	for _, raw := range values {
		day, ok := weekdayNames[strings.ToLower(strings.TrimSpace(raw))]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidWeekday, raw)
		}
		if _, dup := seen[day]; dup {
			continue
		}
		seen[day] = struct{}{}
		out = append(out, day)
	}
	return out, nil
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

func weekdaySet(days []time.Weekday) map[time.Weekday]struct{} {
	set := make(map[time.Weekday]struct{}, len(days))
	for _, day := range days {
		set[day] = struct{}{}
	}
	return set
}

func shouldInclude(freq Frequency, weekdaySet map[time.Weekday]struct{}, day time.Weekday) (bool, error) {
	switch freq {
	case FrequencyDaily:
		if len(weekdaySet) == 0 {
			return true, nil
		}
		_, ok := weekdaySet[day]
		return ok, nil
	case FrequencyWeekly:
		if len(weekdaySet) == 0 {
			return false, nil
		}
		_, ok := weekdaySet[day]
		return ok, nil
	case FrequencyUnspecified:
		fallthrough
	default:
		return false, ErrInvalidFrequency
	}
}
