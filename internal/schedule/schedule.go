package schedule

import (
	"fmt"
	"math"
	"time"

	"github.com/stefs/evelyn-reminder/internal/reminder"
)

const secondsPerDay = 24 * 60 * 60

// Schedule derives the canonical slot instants of a reminder: cycles
// evenly spaced slots per civil day, anchored so the last slot of the
// day falls on the configured bed time. All civil arithmetic happens in
// the reminder's timezone, so a day with a DST transition keeps its
// civil spacing while the absolute spacing stretches or shrinks.
type Schedule struct {
	cycles  int
	bedTime int
	loc     *time.Location
}

func New(cycles, bedTimeSeconds int, timezone string) (*Schedule, error) {
	if cycles < 1 {
		return nil, fmt.Errorf("cycles per day must be at least 1, got %d: %w",
			cycles, reminder.ErrInvalidConfiguration)
	}
	if bedTimeSeconds < 0 || bedTimeSeconds >= secondsPerDay {
		return nil, fmt.Errorf("bed time %d out of range: %w",
			bedTimeSeconds, reminder.ErrInvalidConfiguration)
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %v: %w",
			timezone, err, reminder.ErrInvalidConfiguration)
	}
	return &Schedule{cycles: cycles, bedTime: bedTimeSeconds, loc: loc}, nil
}

// ForReminder builds the schedule described by a reminder's configuration.
func ForReminder(r *reminder.Reminder) (*Schedule, error) {
	return New(r.CyclesPerDay, r.BedTime, r.Timezone)
}

// Period is the real-time spacing between consecutive slots on a day
// without timezone-rule changes.
func (s *Schedule) Period() time.Duration {
	return 24 * time.Hour / time.Duration(s.cycles)
}

// Cycles returns the number of slots per day.
func (s *Schedule) Cycles() int {
	return s.cycles
}

// Location returns the schedule's timezone.
func (s *Schedule) Location() *time.Location {
	return s.loc
}

// slotSecondsOfDay returns the civil offset of a slot from the midnight
// of its anchor day. Each offset is derived from the anchor in one
// step, so uneven divisions of the day do not accumulate rounding
// error across slots. The result is negative for slots that wrap onto
// the previous civil day.
func (s *Schedule) slotSecondsOfDay(cycle int) int {
	step := float64(secondsPerDay) / float64(s.cycles)
	return int(math.Round(float64(s.bedTime) - float64(s.cycles-1-cycle)*step))
}

// TimesOfDay returns the slots as seconds since local midnight,
// normalized to [0, 24h) and ordered by cycle.
func (s *Schedule) TimesOfDay() []int {
	out := make([]int, 0, s.cycles)
	for i := 0; i < s.cycles; i++ {
		sec := s.slotSecondsOfDay(i)
		for sec < 0 {
			sec += secondsPerDay
		}
		out = append(out, sec)
	}
	return out
}

// SlotsForDay returns the canonical slot instants anchored on the given
// local calendar day, ordered by cycle. Slots before midnight fall on
// the previous civil day.
func (s *Schedule) SlotsForDay(year int, month time.Month, day int) []time.Time {
	out := make([]time.Time, 0, s.cycles)
	for i := 0; i < s.cycles; i++ {
		sec := s.slotSecondsOfDay(i)
		d := day
		for sec < 0 {
			sec += secondsPerDay
			d--
		}
		out = append(out, time.Date(year, month, d, 0, 0, sec, 0, s.loc))
	}
	return out
}

type slot struct {
	cycle int
	at    time.Time
}

// window returns the slots anchored on the local day before, of, and
// after t, in ascending order. Any instant's neighboring slots are
// contained in this range.
func (s *Schedule) window(t time.Time) []slot {
	lt := t.In(s.loc)
	year, month, day := lt.Date()
	out := make([]slot, 0, 3*s.cycles)
	for off := -1; off <= 1; off++ {
		for cycle, at := range s.SlotsForDay(year, month, day+off) {
			out = append(out, slot{cycle: cycle, at: at})
		}
	}
	return out
}

// SlotAfter returns the first canonical slot strictly after t.
func (s *Schedule) SlotAfter(t time.Time) time.Time {
	for _, sl := range s.window(t) {
		if sl.at.After(t) {
			return sl.at
		}
	}
	// The window always spans t; keep the compiler happy.
	return t.Add(s.Period())
}

// SlotBefore returns the last canonical slot at or before t.
func (s *Schedule) SlotBefore(t time.Time) time.Time {
	window := s.window(t)
	for i := len(window) - 1; i >= 0; i-- {
		if !window[i].at.After(t) {
			return window[i].at
		}
	}
	return t.Add(-s.Period())
}

// Closest returns the canonical slot nearest to t and its cycle index
// (0-based, the bed-time slot being cycles-1).
func (s *Schedule) Closest(t time.Time) (int, time.Time) {
	var (
		best     slot
		bestDiff time.Duration = -1
	)
	for _, sl := range s.window(t) {
		diff := t.Sub(sl.at)
		if diff < 0 {
			diff = -diff
		}
		if bestDiff < 0 || diff < bestDiff {
			best, bestDiff = sl, diff
		}
	}
	return best.cycle, best.at
}
