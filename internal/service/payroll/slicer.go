package payroll

import (
	"time"

	"github.com/cmlabs-hris/pos-payroll/internal/domain/payroll"
)

// Slice is one time bucket of a report period. Cycle slices cover a single economic
// cycle, day slices one business day, and the unique slice the whole period.
type Slice struct {
	Kind     payroll.SliceKind
	StartsAt time.Time
	EndsAt   time.Time
	// DayStart and DayEnd bound the business day a day slice buckets attendance into.
	// Same-day working hours still bucket the whole calendar day.
	DayStart time.Time
	DayEnd   time.Time
	// Weekday is the business weekday used to resolve day-restricted rules.
	Weekday time.Weekday
	Cycles  []payroll.EconomicCycle
}

// Contains reports whether an attendance entry at t belongs to the slice. Cycle slices
// accept entries within tolerance of the cycle opening, on either side.
func (s Slice) Contains(t time.Time, tolerance time.Duration) bool {
	switch s.Kind {
	case payroll.SliceKindCycle:
		d := t.Sub(s.StartsAt)
		if d < 0 {
			d = -d
		}
		return d <= tolerance
	case payroll.SliceKindDay:
		if !s.DayStart.IsZero() {
			return !t.Before(s.DayStart) && t.Before(s.DayEnd)
		}
	}
	return !t.Before(s.StartsAt) && t.Before(s.EndsAt)
}

// CycleIDs returns the ids of the slice cycles in order.
func (s Slice) CycleIDs() []string {
	ids := make([]string, 0, len(s.Cycles))
	for _, c := range s.Cycles {
		ids = append(ids, c.ID)
	}
	return ids
}

// frameDay returns the working hours that open on the calendar date of day, and the
// business day around them.
func frameDay(hours payroll.WorkingHours, day time.Time) (start, end, dayStart, dayEnd time.Time) {
	y, m, d := day.Date()
	loc := day.Location()
	dayStart = time.Date(y, m, d, 0, 0, 0, 0, loc)
	dayEnd = time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	if !hours.EnforceOpenClose {
		return dayStart, dayEnd, dayStart, dayEnd
	}

	start = time.Date(y, m, d, hours.StartHour, 0, 0, 0, loc)
	if hours.EndHour < hours.StartHour {
		end = time.Date(y, m, d+1, hours.StartHour, 0, 0, 0, loc)
		return start, end, start, end
	}
	return start, time.Date(y, m, d, hours.EndHour+1, 0, 0, 0, loc), dayStart, dayEnd
}

// SlicePeriod splits [from, to) into business-day slices framed by the working hours.
// Every cycle whose start falls inside a business day is attached to its slice.
func SlicePeriod(hours payroll.WorkingHours, from, to time.Time, cycles []payroll.EconomicCycle) []Slice {
	loc := hours.Location()
	from = from.In(loc)
	to = to.In(loc)

	var slices []Slice
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	for {
		start, end, dayStart, dayEnd := frameDay(hours, day)
		if !dayStart.Before(to) {
			break
		}
		s := Slice{
			Kind:     payroll.SliceKindDay,
			StartsAt: start,
			EndsAt:   end,
			DayStart: dayStart,
			DayEnd:   dayEnd,
			Weekday:  start.Weekday(),
		}
		for _, c := range cycles {
			if !c.StartsAt.Before(dayStart) && c.StartsAt.Before(dayEnd) {
				s.Cycles = append(s.Cycles, c)
			}
		}
		slices = append(slices, s)
		day = day.AddDate(0, 0, 1)
	}
	return slices
}

// CycleSlices expands day slices into one slice per economic cycle. Open cycles end at
// periodEnd. The weekday is inherited from the business day the cycle opened in.
func CycleSlices(days []Slice, periodEnd time.Time) []Slice {
	var slices []Slice
	for _, day := range days {
		for _, c := range day.Cycles {
			end := periodEnd
			if c.EndsAt != nil {
				end = *c.EndsAt
			}
			slices = append(slices, Slice{
				Kind:     payroll.SliceKindCycle,
				StartsAt: c.StartsAt,
				EndsAt:   end,
				Weekday:  day.Weekday,
				Cycles:   []payroll.EconomicCycle{c},
			})
		}
	}
	return slices
}

// UniqueSlice covers the whole period with every cycle in it.
func UniqueSlice(hours payroll.WorkingHours, from, to time.Time, cycles []payroll.EconomicCycle) Slice {
	loc := hours.Location()
	s := Slice{
		Kind:     payroll.SliceKindUnique,
		StartsAt: from.In(loc),
		EndsAt:   to.In(loc),
		Weekday:  from.In(loc).Weekday(),
	}
	for _, c := range cycles {
		if !c.StartsAt.Before(from) && c.StartsAt.Before(to) {
			s.Cycles = append(s.Cycles, c)
		}
	}
	return s
}
