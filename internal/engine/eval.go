package engine

import (
	"fmt"
	"time"

	"github.com/stefs/evelyn-reminder/internal/reminder"
	"github.com/stefs/evelyn-reminder/internal/schedule"
)

// skewTolerance bounds how far the evaluation clock may lag behind the
// most recent ledger entry before the state is considered corrupt.
const skewTolerance = 5 * time.Minute

// Status of a reminder at one instant.
type Status string

const (
	StatusPending      Status = "pending"
	StatusDue          Status = "due"
	StatusOverdue      Status = "overdue"
	StatusAcknowledged Status = "acknowledged"
	StatusMuted        Status = "muted"
)

// Dose is one (actual, canonical) instant pair: when the action
// happened or is due, and the canonical slot it belongs to.
type Dose struct {
	Timestamp time.Time
	Center    time.Time
}

// Late is how far the actual instant strayed from its canonical slot.
func (d Dose) Late() time.Duration {
	return d.Timestamp.Sub(d.Center)
}

// Snapshot is the derived runtime state of a reminder. It is a pure
// function of (configuration, ledger, now) and is never persisted.
type Snapshot struct {
	Key    reminder.Key
	Status Status

	// Target is the next due dose after the last completion: its
	// Timestamp is the drift-corrected due instant, its Center the
	// canonical slot it converges toward.
	Target      Dose
	TargetCycle int

	// Last is the most recent completion, or a synthetic on-schedule
	// dose when the ledger is empty.
	Last       Dose
	LastCycle  int
	HasHistory bool

	Muted     bool
	MuteUntil time.Time

	// NextPingAt is when the next escalation ping fires; meaningful
	// only while due or overdue and unmuted. PingDue reports whether
	// that instant has passed.
	NextPingAt time.Time
	PingDue    bool
}

// evaluation binds a reminder to its canonical schedule for one
// status computation.
type evaluation struct {
	rem *reminder.Reminder
	sch *schedule.Schedule
}

func newEvaluation(rem *reminder.Reminder) (*evaluation, error) {
	sch, err := schedule.ForReminder(rem)
	if err != nil {
		return nil, err
	}
	if rem.CorrectionAmount < 0 || rem.PingInterval < 0 {
		return nil, fmt.Errorf("negative duration on %s: %w",
			rem.Key, reminder.ErrInvalidConfiguration)
	}
	return &evaluation{rem: rem, sch: sch}, nil
}

// lastDose returns the most recent completion. With an empty ledger it
// assumes the action was performed exactly on the last canonical slot,
// so a fresh reminder starts pending toward the next slot.
func (e *evaluation) lastDose(tail []reminder.HistoryEntry, now time.Time) (Dose, bool) {
	if len(tail) > 0 {
		return Dose{Timestamp: tail[0].Timestamp, Center: tail[0].Center}, true
	}
	slot := e.sch.SlotBefore(now)
	return Dose{Timestamp: slot, Center: slot}, false
}

// nextTarget computes the drift-corrected due dose following last.
//
// The chained instant continues the user's actual rhythm; the ideal
// instant is the canonical slot. The difference is fed back into the
// schedule, clamped to the per-period correction bound, so the due time
// converges toward the anchor without ever jumping more than the bound
// in one period.
func (e *evaluation) nextTarget(last Dose) Dose {
	nextCenter := e.sch.SlotAfter(last.Center)
	chained := last.Timestamp.Add(e.rem.Period())
	correction := clampDuration(nextCenter.Sub(chained), e.rem.CorrectionAmount)
	due := chained.Add(correction)
	// The schedule never runs backwards, even with hand-edited history.
	if !due.After(last.Timestamp) {
		due = last.Timestamp.Add(time.Second)
	}
	return Dose{Timestamp: due, Center: nextCenter}
}

// taken attributes a completion at the given instant to a canonical
// slot. The slot nominally follows the last completion's slot, but is
// walked forward or backward so it never sits more than one period
// (plus the correction bound) away from the completion itself. This
// keeps the ledger anchored near reality after long gaps or backdated
// entries.
func (e *evaluation) taken(last Dose, at time.Time) Dose {
	center := e.sch.SlotAfter(last.Center)
	if center.After(at) {
		for {
			smaller := e.sch.SlotBefore(center.Add(-time.Second))
			if smaller.After(at.Add(e.rem.CorrectionAmount)) {
				center = smaller
			} else {
				break
			}
		}
	} else {
		for {
			bigger := e.sch.SlotAfter(center)
			if bigger.Before(at.Add(-e.rem.CorrectionAmount)) {
				center = bigger
			} else {
				break
			}
		}
	}
	return Dose{Timestamp: at, Center: center}
}

// snapshot derives the full runtime state at now. The caller supplies a
// single now for the whole evaluation.
func (e *evaluation) snapshot(tail []reminder.HistoryEntry, now time.Time) (*Snapshot, error) {
	if len(tail) > 0 && now.Before(tail[0].Timestamp.Add(-skewTolerance)) {
		return nil, fmt.Errorf("now %s is before last entry %s on %s: %w",
			now.UTC().Format(time.RFC3339), tail[0].Timestamp.UTC().Format(time.RFC3339),
			e.rem.Key, reminder.ErrClockSkew)
	}

	last, hasHistory := e.lastDose(tail, now)
	target := e.nextTarget(last)
	lastCycle, _ := e.sch.Closest(last.Center)
	targetCycle, _ := e.sch.Closest(target.Center)

	snap := &Snapshot{
		Key:         e.rem.Key,
		Target:      target,
		TargetCycle: targetCycle,
		Last:        last,
		LastCycle:   lastCycle,
		HasHistory:  hasHistory,
		Muted:       now.Before(e.rem.MuteUntil),
		MuteUntil:   e.rem.MuteUntil,
	}

	due := !now.Before(target.Timestamp)
	switch {
	case snap.Muted:
		snap.Status = StatusMuted
	case !due && hasHistory && now.Before(last.Timestamp.Add(e.rem.Period()/2)):
		snap.Status = StatusAcknowledged
	case !due:
		snap.Status = StatusPending
	case !e.rem.LastPing.Before(target.Timestamp):
		snap.Status = StatusOverdue
	default:
		snap.Status = StatusDue
	}

	if due && !snap.Muted {
		next := target.Timestamp
		if sincePing := e.rem.LastPing.Add(e.rem.PingInterval); sincePing.After(next) {
			next = sincePing
		}
		snap.NextPingAt = next
		snap.PingDue = !now.Before(next)
	}
	return snap, nil
}

func clampDuration(d, bound time.Duration) time.Duration {
	if d > bound {
		return bound
	}
	if d < -bound {
		return -bound
	}
	return d
}
