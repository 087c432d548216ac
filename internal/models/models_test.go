package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func openDay(intervals []Interval, duration int) DayRule {
	return DayRule{Kind: DayOpen, Intervals: intervals, SlotDuration: duration}
}

func closedWeek() [7]DayRule {
	var days [7]DayRule
	for i := range days {
		days[i] = DayRule{Kind: DayClosed}
	}
	return days
}

func TestWeeklyPattern_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *WeeklyPattern)
		wantErr bool
	}{
		{
			name:   "all closed is valid",
			mutate: func(p *WeeklyPattern) {},
		},
		{
			name: "single open day",
			mutate: func(p *WeeklyPattern) {
				p.Days[time.Monday] = openDay([]Interval{{Start: "09:00", End: "18:00"}}, 60)
			},
		},
		{
			name: "open day without intervals",
			mutate: func(p *WeeklyPattern) {
				p.Days[time.Monday] = openDay(nil, 60)
			},
			wantErr: true,
		},
		{
			name: "slot duration below minimum",
			mutate: func(p *WeeklyPattern) {
				p.Days[time.Monday] = openDay([]Interval{{Start: "09:00", End: "18:00"}}, 5)
			},
			wantErr: true,
		},
		{
			name: "slot duration above maximum",
			mutate: func(p *WeeklyPattern) {
				p.Days[time.Monday] = openDay([]Interval{{Start: "09:00", End: "18:00"}}, 600)
			},
			wantErr: true,
		},
		{
			name: "reversed interval",
			mutate: func(p *WeeklyPattern) {
				p.Days[time.Monday] = openDay([]Interval{{Start: "18:00", End: "09:00"}}, 60)
			},
			wantErr: true,
		},
		{
			name: "malformed clock",
			mutate: func(p *WeeklyPattern) {
				p.Days[time.Monday] = openDay([]Interval{{Start: "9am", End: "18:00"}}, 60)
			},
			wantErr: true,
		},
		{
			name: "single-digit hour",
			mutate: func(p *WeeklyPattern) {
				p.Days[time.Monday] = openDay([]Interval{{Start: "9:00", End: "11:00"}}, 60)
			},
			wantErr: true,
		},
		{
			name: "misordered intervals hidden by padding",
			mutate: func(p *WeeklyPattern) {
				p.Days[time.Monday] = openDay([]Interval{
					{Start: "10:00", End: "12:00"},
					{Start: "9:00", End: "11:00"},
				}, 60)
			},
			wantErr: true,
		},
		{
			name: "misordered intervals",
			mutate: func(p *WeeklyPattern) {
				p.Days[time.Monday] = openDay([]Interval{
					{Start: "13:00", End: "17:00"},
					{Start: "09:00", End: "12:00"},
				}, 60)
			},
			wantErr: true,
		},
		{
			name: "overlapping intervals",
			mutate: func(p *WeeklyPattern) {
				p.Days[time.Monday] = openDay([]Interval{
					{Start: "09:00", End: "13:00"},
					{Start: "12:00", End: "18:00"},
				}, 60)
			},
			wantErr: true,
		},
		{
			name: "unknown kind",
			mutate: func(p *WeeklyPattern) {
				p.Days[time.Monday] = DayRule{Kind: "weird"}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &WeeklyPattern{GarageID: 1, Days: closedWeek()}
			tt.mutate(p)
			err := p.Validate(10, 240)
			if tt.wantErr {
				assert.Error(t, err)
				var verr *ValidationError
				assert.ErrorAs(t, err, &verr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRestriction_Validate(t *testing.T) {
	date := time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC)
	monday := int(time.Monday)
	badDay := 9

	tests := []struct {
		name    string
		r       Restriction
		wantErr bool
	}{
		{"one-off holiday", Restriction{Kind: RestrictionHoliday, Date: &date}, false},
		{"annual holiday", Restriction{Kind: RestrictionHoliday, DayOfMonth: 1, Month: 1}, false},
		{"weekly break", Restriction{Kind: RestrictionBreak, DayOfWeek: &monday, Start: "12:00", End: "13:00"}, false},
		{"unknown kind", Restriction{Kind: "lunch", Date: &date}, true},
		{"no matching mode", Restriction{Kind: RestrictionHoliday}, true},
		{"two matching modes", Restriction{Kind: RestrictionHoliday, Date: &date, DayOfWeek: &monday}, true},
		{"month without day", Restriction{Kind: RestrictionHoliday, Month: 13, DayOfMonth: 1}, true},
		{"day of week out of range", Restriction{Kind: RestrictionHoliday, DayOfWeek: &badDay}, true},
		{"break without interval", Restriction{Kind: RestrictionBreak, DayOfWeek: &monday}, true},
		{"break reversed interval", Restriction{Kind: RestrictionBreak, DayOfWeek: &monday, Start: "13:00", End: "12:00"}, true},
		{"break single-digit hour", Restriction{Kind: RestrictionBreak, DayOfWeek: &monday, Start: "9:00", End: "10:00"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.r.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRestriction_AppliesTo(t *testing.T) {
	christmas := time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC)
	monday := int(time.Monday)

	oneOff := Restriction{Kind: RestrictionHoliday, Date: &christmas}
	assert.True(t, oneOff.AppliesTo(time.Date(2025, 12, 25, 15, 30, 0, 0, time.UTC)))
	assert.False(t, oneOff.AppliesTo(time.Date(2026, 12, 25, 0, 0, 0, 0, time.UTC)))

	annual := Restriction{Kind: RestrictionHoliday, DayOfMonth: 25, Month: 12}
	assert.True(t, annual.AppliesTo(christmas))
	assert.True(t, annual.AppliesTo(time.Date(2026, 12, 25, 0, 0, 0, 0, time.UTC)))
	assert.False(t, annual.AppliesTo(time.Date(2025, 11, 25, 0, 0, 0, 0, time.UTC)))

	weekly := Restriction{Kind: RestrictionBreak, DayOfWeek: &monday, Start: "12:00", End: "13:00"}
	assert.True(t, weekly.AppliesTo(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)))  // a Monday
	assert.False(t, weekly.AppliesTo(time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC))) // a Tuesday

	empty := Restriction{Kind: RestrictionHoliday}
	assert.False(t, empty.AppliesTo(christmas))
}

func TestTimeSlot_Overlaps(t *testing.T) {
	base := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	slot := TimeSlot{StartTime: base, EndTime: base.Add(time.Hour)}

	assert.True(t, slot.Overlaps(base.Add(30*time.Minute), base.Add(90*time.Minute)))
	assert.True(t, slot.Overlaps(base, base.Add(time.Hour)))
	assert.False(t, slot.Overlaps(base.Add(time.Hour), base.Add(2*time.Hour)))
	assert.False(t, slot.Overlaps(base.Add(-time.Hour), base))
}

func TestBookingStatusHelpers(t *testing.T) {
	b := Booking{Status: StatusPending}
	assert.True(t, b.IsActive())
	assert.False(t, b.IsTerminal())

	b.Status = StatusCancelled
	assert.False(t, b.IsActive())
	assert.True(t, b.IsTerminal())

	b.Status = StatusCompleted
	assert.True(t, b.IsTerminal())

	assert.True(t, ServiceMOT.IsValid())
	assert.True(t, ServiceRetest.IsValid())
	assert.False(t, ServiceType("wash").IsValid())
}
