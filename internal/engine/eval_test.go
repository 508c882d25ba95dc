package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stefs/evelyn-reminder/internal/reminder"
)

func utc(hour, min int) time.Time {
	return time.Date(2024, time.March, 10, hour, min, 0, 0, time.UTC)
}

func testReminder() *reminder.Reminder {
	rem := reminder.NewReminder(reminder.Key{Guild: 1, Member: 2, Slot: 1}, 42, "UTC")
	rem.CorrectionAmount = 10 * time.Minute
	return rem
}

func mustEval(t *testing.T, rem *reminder.Reminder) *evaluation {
	t.Helper()
	eval, err := newEvaluation(rem)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return eval
}

func entry(ts, center time.Time) reminder.HistoryEntry {
	return reminder.HistoryEntry{Timestamp: ts, Center: center}
}

func TestNextTarget_CorrectionClamped(t *testing.T) {
	// Three cycles anchored at 22:00 put canonical slots at 06:00,
	// 14:00 and 22:00. A completion at 06:20 chains to 14:20; the
	// ideal 14:00 wants -20m, clamped to the 10m bound: due 14:10.
	eval := mustEval(t, testReminder())
	last := Dose{Timestamp: utc(6, 20), Center: utc(6, 0)}

	target := eval.nextTarget(last)

	if !target.Timestamp.Equal(utc(14, 10)) {
		t.Fatalf("expected due at 14:10, got %v", target.Timestamp)
	}
	if !target.Center.Equal(utc(14, 0)) {
		t.Fatalf("expected center at 14:00, got %v", target.Center)
	}
}

func TestNextTarget_SmallDriftFullyCorrected(t *testing.T) {
	// 5 minutes late is within the bound, so the next due snaps back
	// onto the canonical slot.
	eval := mustEval(t, testReminder())
	last := Dose{Timestamp: utc(6, 5), Center: utc(6, 0)}

	target := eval.nextTarget(last)

	if !target.Timestamp.Equal(utc(14, 0)) {
		t.Fatalf("expected due at 14:00, got %v", target.Timestamp)
	}
}

func TestNextTarget_ZeroCorrectionIsPureChain(t *testing.T) {
	rem := testReminder()
	rem.CorrectionAmount = 0
	eval := mustEval(t, rem)
	last := Dose{Timestamp: utc(6, 45), Center: utc(6, 0)}

	target := eval.nextTarget(last)

	if !target.Timestamp.Equal(utc(14, 45)) {
		t.Fatalf("expected pure chained due at 14:45, got %v", target.Timestamp)
	}
}

func TestNextTarget_BoundedCorrectionAlways(t *testing.T) {
	eval := mustEval(t, testReminder())
	for _, lateMin := range []int{-300, -60, -15, 0, 15, 60, 300} {
		last := Dose{Timestamp: utc(6, 0).Add(time.Duration(lateMin) * time.Minute), Center: utc(6, 0)}
		target := eval.nextTarget(last)
		chained := last.Timestamp.Add(8 * time.Hour)
		diff := target.Timestamp.Sub(chained)
		if diff < -10*time.Minute || diff > 10*time.Minute {
			t.Fatalf("late=%dm: correction %v exceeds bound", lateMin, diff)
		}
	}
}

func TestNextTarget_ConvergesTowardAnchor(t *testing.T) {
	// A user completing exactly on the drifted due time converges back
	// to the canonical slots by at most the bound per period.
	eval := mustEval(t, testReminder())
	dose := Dose{Timestamp: utc(6, 45), Center: utc(6, 0)}
	for i := 0; i < 10; i++ {
		target := eval.nextTarget(dose)
		dose = Dose{Timestamp: target.Timestamp, Center: target.Center}
	}
	if late := dose.Late(); late != 0 {
		t.Fatalf("expected schedule to converge onto the anchor, still %v late", late)
	}
}

func TestNextTarget_MonotonicWithExtremeHistory(t *testing.T) {
	// A hand-edited ledger far in the future must not make the next
	// due time run backwards.
	eval := mustEval(t, testReminder())
	last := Dose{Timestamp: utc(6, 0).Add(48 * time.Hour), Center: utc(6, 0)}

	target := eval.nextTarget(last)

	if !target.Timestamp.After(last.Timestamp) {
		t.Fatalf("due %v not after last completion %v", target.Timestamp, last.Timestamp)
	}
}

func TestTaken_SnapsCenterNearCompletion(t *testing.T) {
	eval := mustEval(t, testReminder())
	last := Dose{Timestamp: utc(6, 20), Center: utc(6, 0)}

	// Completion two days later: the center must not lag behind.
	at := utc(6, 20).Add(48 * time.Hour)
	taken := eval.taken(last, at)
	if gap := at.Sub(taken.Center); gap > 8*time.Hour+10*time.Minute || gap < -8*time.Hour-10*time.Minute {
		t.Fatalf("snapped center %v too far from completion %v", taken.Center, at)
	}
	if !taken.Timestamp.Equal(at) {
		t.Fatalf("expected recorded timestamp %v, got %v", at, taken.Timestamp)
	}
}

func TestTaken_NormalFlowUsesNextSlot(t *testing.T) {
	eval := mustEval(t, testReminder())
	last := Dose{Timestamp: utc(6, 20), Center: utc(6, 0)}

	taken := eval.taken(last, utc(14, 5))

	if !taken.Center.Equal(utc(14, 0)) {
		t.Fatalf("expected center 14:00, got %v", taken.Center)
	}
}

func TestLastDose_EmptyLedgerAssumesLastSlot(t *testing.T) {
	eval := mustEval(t, testReminder())

	dose, has := eval.lastDose(nil, utc(15, 30))

	if has {
		t.Fatal("expected synthetic dose to be flagged")
	}
	if !dose.Timestamp.Equal(utc(14, 0)) || !dose.Center.Equal(utc(14, 0)) {
		t.Fatalf("expected synthetic dose on the 14:00 slot, got %+v", dose)
	}
}

func TestSnapshot_PendingThenDueThenOverdue(t *testing.T) {
	rem := testReminder()
	eval := mustEval(t, rem)
	tail := []reminder.HistoryEntry{entry(utc(6, 20), utc(6, 0))}

	snap, err := eval.snapshot(tail, utc(13, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Status != StatusPending {
		t.Fatalf("expected pending at 13:00, got %s", snap.Status)
	}

	snap, err = eval.snapshot(tail, utc(14, 15))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Status != StatusDue {
		t.Fatalf("expected due at 14:15, got %s", snap.Status)
	}
	if !snap.PingDue {
		t.Fatal("expected first ping to be due immediately")
	}

	// After a delivered ping the status escalates and the next ping
	// waits out the interval.
	rem.LastPing = utc(14, 15)
	snap, err = eval.snapshot(tail, utc(14, 20))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Status != StatusOverdue {
		t.Fatalf("expected overdue after a ping, got %s", snap.Status)
	}
	if snap.PingDue {
		t.Fatal("expected no ping before the interval elapses")
	}
	if !snap.NextPingAt.Equal(utc(14, 45)) {
		t.Fatalf("expected next ping at 14:45, got %v", snap.NextPingAt)
	}
}

func TestSnapshot_AcknowledgedAfterRecentCompletion(t *testing.T) {
	eval := mustEval(t, testReminder())
	tail := []reminder.HistoryEntry{entry(utc(6, 20), utc(6, 0))}

	snap, err := eval.snapshot(tail, utc(7, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Status != StatusAcknowledged {
		t.Fatalf("expected acknowledged shortly after completion, got %s", snap.Status)
	}
}

func TestSnapshot_MutedSuppressesPings(t *testing.T) {
	rem := testReminder()
	rem.MuteUntil = utc(14, 15).Add(72 * time.Hour)
	eval := mustEval(t, rem)
	tail := []reminder.HistoryEntry{entry(utc(6, 20), utc(6, 0))}

	// One day into a three-day mute: still muted, no pings.
	snap, err := eval.snapshot(tail, utc(14, 15).Add(24*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Status != StatusMuted {
		t.Fatalf("expected muted, got %s", snap.Status)
	}
	if snap.PingDue || !snap.NextPingAt.IsZero() {
		t.Fatal("expected no escalation ping while muted")
	}

	// One second past the mute the state is recomputed normally.
	snap, err = eval.snapshot(tail, rem.MuteUntil.Add(time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Status == StatusMuted {
		t.Fatal("expected mute to expire without an explicit unmute")
	}
	if !snap.PingDue {
		t.Fatal("expected ping to be due once the mute expires")
	}
}

func TestSnapshot_Idempotent(t *testing.T) {
	eval := mustEval(t, testReminder())
	tail := []reminder.HistoryEntry{entry(utc(6, 20), utc(6, 0))}
	now := utc(14, 15)

	first, err := eval.snapshot(tail, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := eval.snapshot(tail, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *first != *second {
		t.Fatalf("snapshots differ: %+v vs %+v", first, second)
	}
}

func TestSnapshot_ClockSkewSurfaced(t *testing.T) {
	eval := mustEval(t, testReminder())
	tail := []reminder.HistoryEntry{entry(utc(6, 20), utc(6, 0))}

	_, err := eval.snapshot(tail, utc(6, 0))
	if !errors.Is(err, reminder.ErrClockSkew) {
		t.Fatalf("expected clock skew error, got %v", err)
	}

	// Within the tolerance the evaluation proceeds.
	if _, err := eval.snapshot(tail, utc(6, 17)); err != nil {
		t.Fatalf("unexpected error inside tolerance: %v", err)
	}
}

func TestNewEvaluation_RejectsNegativeDurations(t *testing.T) {
	rem := testReminder()
	rem.PingInterval = -time.Minute
	if _, err := newEvaluation(rem); !errors.Is(err, reminder.ErrInvalidConfiguration) {
		t.Fatalf("expected invalid configuration, got %v", err)
	}
}
