package models

import (
	"fmt"
	"time"
)

// DayRuleKind discriminates the weekly pattern variants for a single day.
type DayRuleKind string

const (
	DayOpen    DayRuleKind = "open"
	DayClosed  DayRuleKind = "closed"
	DayHoliday DayRuleKind = "holiday"
)

// Interval is a wall-clock interval within one day, "HH:MM" inclusive start,
// exclusive end.
type Interval struct {
	Start string `json:"start"` // "09:00"
	End   string `json:"end"`   // "18:00"
}

// DayRule describes availability for one day of week.
// Intervals and SlotDuration are only meaningful when Kind is DayOpen.
type DayRule struct {
	Kind         DayRuleKind `json:"kind"`
	Intervals    []Interval  `json:"intervals,omitempty"`
	SlotDuration int         `json:"slot_duration,omitempty"` // minutes
}

// WeeklyPattern is a garage's recurring weekly availability template.
// Days is indexed by time.Weekday (0 = Sunday).
type WeeklyPattern struct {
	GarageID int64      `json:"garage_id"`
	Days     [7]DayRule `json:"days"`
}

// RestrictionKind discriminates restriction variants.
type RestrictionKind string

const (
	RestrictionHoliday RestrictionKind = "holiday"
	RestrictionBreak   RestrictionKind = "break"
)

// Restriction narrows pattern-derived availability. A holiday excludes whole
// dates, matched either by an explicit date or by recurrence (day-of-month +
// month, or day-of-week). A break excludes a sub-interval within open days,
// one-off on an explicit date or recurring by day-of-week.
type Restriction struct {
	ID       int64           `json:"id,omitempty"`
	GarageID int64           `json:"garage_id,omitempty"`
	Kind     RestrictionKind `json:"kind"`

	Date       *time.Time `json:"date,omitempty"`         // one-off
	DayOfMonth int        `json:"day_of_month,omitempty"` // recurring annual, with Month
	Month      int        `json:"month,omitempty"`
	DayOfWeek  *int       `json:"day_of_week,omitempty"` // recurring weekly, 0 = Sunday

	Start string `json:"start,omitempty"` // break interval, "HH:MM"
	End   string `json:"end,omitempty"`
}

// AppliesTo reports whether the restriction covers the given calendar date.
func (r *Restriction) AppliesTo(date time.Time) bool {
	if r.Date != nil {
		y1, m1, d1 := r.Date.Date()
		y2, m2, d2 := date.Date()
		return y1 == y2 && m1 == m2 && d1 == d2
	}
	if r.DayOfMonth > 0 && r.Month > 0 {
		return date.Day() == r.DayOfMonth && int(date.Month()) == r.Month
	}
	if r.DayOfWeek != nil {
		return int(date.Weekday()) == *r.DayOfWeek
	}
	return false
}

// ValidationError reports malformed input rejected before touching storage.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func validationErrorf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func parseClock(s string) (time.Time, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return time.Time{}, err
	}
	// time.Parse accepts single-digit hours like "9:00"; require the
	// zero-padded form so stored clocks compare consistently.
	if t.Format("15:04") != s {
		return time.Time{}, fmt.Errorf("clock %q not in HH:MM form", s)
	}
	return t, nil
}

// ValidateInterval checks the wall-clock format and ordering of an interval.
func ValidateInterval(field string, iv Interval) error {
	start, err := parseClock(iv.Start)
	if err != nil {
		return validationErrorf(field, "invalid start time %q; expected HH:MM", iv.Start)
	}
	end, err := parseClock(iv.End)
	if err != nil {
		return validationErrorf(field, "invalid end time %q; expected HH:MM", iv.End)
	}
	if !start.Before(end) {
		return validationErrorf(field, "start %s must be before end %s", iv.Start, iv.End)
	}
	return nil
}

// Validate checks the pattern against configured slot duration bounds.
// Rejection happens here, at submission, never at compile time.
func (p *WeeklyPattern) Validate(minSlotMinutes, maxSlotMinutes int) error {
	for day, rule := range p.Days {
		field := fmt.Sprintf("days[%d]", day)
		switch rule.Kind {
		case DayClosed, DayHoliday:
			continue
		case DayOpen:
		default:
			return validationErrorf(field, "unknown day rule kind %q", rule.Kind)
		}

		if len(rule.Intervals) == 0 {
			return validationErrorf(field, "open day requires at least one interval")
		}
		if rule.SlotDuration < minSlotMinutes || rule.SlotDuration > maxSlotMinutes {
			return validationErrorf(field, "slot duration %d minutes out of range [%d, %d]",
				rule.SlotDuration, minSlotMinutes, maxSlotMinutes)
		}
		var prevEnd time.Time
		for i, iv := range rule.Intervals {
			if err := ValidateInterval(fmt.Sprintf("%s.intervals[%d]", field, i), iv); err != nil {
				return err
			}
			start, _ := parseClock(iv.Start)
			if i > 0 && start.Before(prevEnd) {
				return validationErrorf(field, "intervals must be ordered and non-overlapping")
			}
			prevEnd, _ = parseClock(iv.End)
		}
	}
	return nil
}

// Validate checks a restriction's shape: exactly one matching mode, and a
// wall-clock interval for breaks.
func (r *Restriction) Validate() error {
	switch r.Kind {
	case RestrictionHoliday, RestrictionBreak:
	default:
		return validationErrorf("kind", "unknown restriction kind %q", r.Kind)
	}

	modes := 0
	if r.Date != nil {
		modes++
	}
	if r.DayOfMonth > 0 || r.Month > 0 {
		if r.DayOfMonth < 1 || r.DayOfMonth > 31 || r.Month < 1 || r.Month > 12 {
			return validationErrorf("recurrence", "invalid day-of-month %d / month %d", r.DayOfMonth, r.Month)
		}
		modes++
	}
	if r.DayOfWeek != nil {
		if *r.DayOfWeek < 0 || *r.DayOfWeek > 6 {
			return validationErrorf("day_of_week", "must be 0-6, got %d", *r.DayOfWeek)
		}
		modes++
	}
	if modes != 1 {
		return validationErrorf("recurrence", "exactly one of date, day-of-month+month, day-of-week is required")
	}

	if r.Kind == RestrictionBreak {
		if err := ValidateInterval("break", Interval{Start: r.Start, End: r.End}); err != nil {
			return err
		}
	}
	return nil
}
