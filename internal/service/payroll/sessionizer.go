package payroll

import (
	"fmt"
	"sort"
	"time"

	"github.com/cmlabs-hris/pos-payroll/internal/domain/attendance"
	"github.com/cmlabs-hris/pos-payroll/internal/domain/payroll"
)

// Session is an ENTRY paired with its EXIT. Exit is nil when the session never closed.
type Session struct {
	Entry time.Time
	Exit  *time.Time
}

// Hours is the whole number of hours between entry and exit. Open sessions count zero.
func (s Session) Hours() int {
	if s.Exit == nil || s.Exit.Before(s.Entry) {
		return 0
	}
	return int(s.Exit.Sub(s.Entry) / time.Hour)
}

// HoursOfDay lists the hours of day touched by the session, from the entry hour through
// the exit hour, in loc.
func (s Session) HoursOfDay(loc *time.Location) []int {
	entry := s.Entry.In(loc)
	if s.Exit == nil {
		return []int{entry.Hour()}
	}

	exit := s.Exit.In(loc)
	seen := make(map[int]bool)
	var hours []int
	start := time.Date(entry.Year(), entry.Month(), entry.Day(), entry.Hour(), 0, 0, 0, loc)
	for t := start; !t.After(exit) && len(hours) < 24; t = t.Add(time.Hour) {
		if h := t.Hour(); !seen[h] {
			seen[h] = true
			hours = append(hours, h)
		}
	}
	return hours
}

// SessionSet is the sessionized attendance of one employee.
type SessionSet struct {
	Sessions     []Session
	Observations []string
}

// Sessionize pairs the records of one employee into sessions. Leading exits are dropped,
// an entry while a session is open closes the previous one as unpaired, and an exit with
// no open session is ignored.
func Sessionize(records []attendance.Record) SessionSet {
	sorted := make([]attendance.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	var set SessionSet
	var open *Session
	started := false
	for _, r := range sorted {
		switch {
		case r.IsEntry():
			if open != nil {
				set.Sessions = append(set.Sessions, *open)
				set.Observations = append(set.Observations,
					fmt.Sprintf("entry at %s has no matching exit", open.Entry.Format(time.RFC3339)))
			}
			open = &Session{Entry: r.CreatedAt}
			started = true
		case r.Type == attendance.RecordTypeExit:
			if open == nil {
				if started {
					set.Observations = append(set.Observations,
						fmt.Sprintf("exit at %s without entry ignored", r.CreatedAt.Format(time.RFC3339)))
				}
				continue
			}
			exit := r.CreatedAt
			open.Exit = &exit
			set.Sessions = append(set.Sessions, *open)
			open = nil
		}
	}
	if open != nil {
		set.Sessions = append(set.Sessions, *open)
		set.Observations = append(set.Observations,
			fmt.Sprintf("session started at %s is still open", open.Entry.Format(time.RFC3339)))
	}
	return set
}

// AssignSessions places each session in the first slice whose window contains its entry.
// The result is indexed like slices.
func AssignSessions(sessions []Session, slices []Slice, tolerance time.Duration) [][]Session {
	out := make([][]Session, len(slices))
	for _, s := range sessions {
		for i, sl := range slices {
			if sl.Contains(s.Entry, tolerance) {
				out[i] = append(out[i], s)
				break
			}
		}
	}
	return out
}

// WorkedCycles returns the cycles of a slice the employee worked in. For cycle and day
// slices any session marks every slice cycle as worked; the unique slice matches each
// cycle against the tolerance window.
func WorkedCycles(sl Slice, sessions []Session, tolerance time.Duration) []payroll.EconomicCycle {
	if len(sessions) == 0 {
		return nil
	}
	if sl.Kind != payroll.SliceKindUnique {
		return sl.Cycles
	}

	var worked []payroll.EconomicCycle
	for _, c := range sl.Cycles {
		window := Slice{Kind: payroll.SliceKindCycle, StartsAt: c.StartsAt}
		for _, s := range sessions {
			if window.Contains(s.Entry, tolerance) {
				worked = append(worked, c)
				break
			}
		}
	}
	return worked
}

func countExits(sessions []Session) int {
	n := 0
	for _, s := range sessions {
		if s.Exit != nil {
			n++
		}
	}
	return n
}

func sumHours(sessions []Session) int {
	n := 0
	for _, s := range sessions {
		n += s.Hours()
	}
	return n
}
