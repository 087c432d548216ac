// Package pattern compiles a garage's weekly availability pattern and its
// restrictions into concrete bookable time slots.
package pattern

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"garagebook/internal/models"
)

// span is a concrete half-open interval on a specific date.
type span struct {
	start time.Time
	end   time.Time
}

// Compile turns a weekly pattern plus restrictions into an ordered sequence of
// unsaved slot candidates covering [from, to] by calendar date. Identical
// inputs always produce identical output; persistence decides what is new.
func Compile(p *models.WeeklyPattern, restrictions []models.Restriction, from, to time.Time) ([]models.TimeSlot, error) {
	var slots []models.TimeSlot

	for date := truncateToDay(from); !date.After(truncateToDay(to)); date = date.AddDate(0, 0, 1) {
		daySlots, err := compileDay(p, restrictions, date)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", date.Format("2006-01-02"), err)
		}
		slots = append(slots, daySlots...)
	}

	return slots, nil
}

func compileDay(p *models.WeeklyPattern, restrictions []models.Restriction, date time.Time) ([]models.TimeSlot, error) {
	rule := p.Days[int(date.Weekday())]
	if rule.Kind != models.DayOpen {
		return nil, nil
	}

	// A matching holiday restriction closes the whole date, regardless of the
	// recurring weekly rule.
	for i := range restrictions {
		r := &restrictions[i]
		if r.Kind == models.RestrictionHoliday && r.AppliesTo(date) {
			return nil, nil
		}
	}

	open := make([]span, 0, len(rule.Intervals))
	for _, iv := range rule.Intervals {
		start, err := parseTimeOnDate(date, iv.Start)
		if err != nil {
			return nil, fmt.Errorf("parse interval start: %w", err)
		}
		end, err := parseTimeOnDate(date, iv.End)
		if err != nil {
			return nil, fmt.Errorf("parse interval end: %w", err)
		}
		open = append(open, span{start: start, end: end})
	}

	breaks, err := collectBreaks(restrictions, date)
	if err != nil {
		return nil, err
	}
	open = subtractAll(open, breaks)

	slotDuration := time.Duration(rule.SlotDuration) * time.Minute
	var slots []models.TimeSlot
	for _, s := range open {
		// Chunk into consecutive slots; a trailing remainder shorter than the
		// slot duration is dropped, never emitted short.
		for cursor := s.start; !cursor.Add(slotDuration).After(s.end); cursor = cursor.Add(slotDuration) {
			slots = append(slots, models.TimeSlot{
				GarageID:  p.GarageID,
				StartTime: cursor,
				EndTime:   cursor.Add(slotDuration),
				Available: true,
			})
		}
	}
	return slots, nil
}

// collectBreaks resolves break restrictions applicable to a date and unions
// overlapping ones so subtraction sees disjoint intervals.
func collectBreaks(restrictions []models.Restriction, date time.Time) ([]span, error) {
	var breaks []span
	for i := range restrictions {
		r := &restrictions[i]
		if r.Kind != models.RestrictionBreak || !r.AppliesTo(date) {
			continue
		}
		start, err := parseTimeOnDate(date, r.Start)
		if err != nil {
			return nil, fmt.Errorf("parse break start: %w", err)
		}
		end, err := parseTimeOnDate(date, r.End)
		if err != nil {
			return nil, fmt.Errorf("parse break end: %w", err)
		}
		breaks = append(breaks, span{start: start, end: end})
	}
	return unionSpans(breaks), nil
}

func unionSpans(spans []span) []span {
	if len(spans) < 2 {
		return spans
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start.Before(spans[j].start) })

	merged := []span{spans[0]}
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		if !s.start.After(last.end) {
			if s.end.After(last.end) {
				last.end = s.end
			}
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

// subtractAll removes every break from every open interval. A break in the
// middle of an interval splits it in two.
func subtractAll(open, breaks []span) []span {
	for _, b := range breaks {
		var next []span
		for _, o := range open {
			next = append(next, subtract(o, b)...)
		}
		open = next
	}
	return open
}

func subtract(o, b span) []span {
	if !overlaps(o, b) {
		return []span{o}
	}
	var out []span
	if o.start.Before(b.start) {
		out = append(out, span{start: o.start, end: b.start})
	}
	if b.end.Before(o.end) {
		out = append(out, span{start: b.end, end: o.end})
	}
	return out
}

func overlaps(a, b span) bool {
	return a.start.Before(b.end) && b.start.Before(a.end)
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func parseTimeOnDate(date time.Time, timeStr string) (time.Time, error) {
	parts := strings.Split(timeStr, ":")
	if len(parts) < 2 {
		return time.Time{}, fmt.Errorf("invalid time format: %s", timeStr)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid hour: %w", err)
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid minute: %w", err)
	}

	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, date.Location()), nil
}
