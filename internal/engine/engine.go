package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stefs/evelyn-reminder/internal/reminder"
)

// historyTailLen is how many ledger entries an evaluation loads: the
// newest drives the scheduling, the rest feed the gap display.
const historyTailLen = 4

// Engine turns reminder configuration and completion history into due
// times, statuses and escalation pings. It holds no timers and no
// derived state; every answer is recomputed from the repository and the
// caller-supplied now, so it is safe to re-ask after arbitrary
// downtime.
type Engine struct {
	repo  reminder.Repository
	locks *keyedLocks
}

func New(repo reminder.Repository) *Engine {
	return &Engine{repo: repo, locks: newKeyedLocks()}
}

// View is everything a presentation layer needs about one reminder at
// one instant.
type View struct {
	Reminder *reminder.Reminder
	// Tail holds the most recent ledger entries, newest first.
	Tail     []reminder.HistoryEntry
	Snapshot *Snapshot
}

// Ack reports a recorded completion back to the caller.
type Ack struct {
	Entry   *reminder.HistoryEntry
	Message string
	Emote   int64
}

// ListOptions filters ListDue. The Filter* fields drop reminders that
// are not due, are muted, or whose next escalation ping has not come
// up yet; they all default to true in the transport layers.
type ListOptions struct {
	Guild  *int64
	Member *int64
	Slot   *int

	FilterDue     bool
	FilterMuted   bool
	FilterPingDue bool
}

// Inspect returns the full view of one reminder at now.
func (e *Engine) Inspect(ctx context.Context, key reminder.Key, now time.Time) (*View, error) {
	rem, err := e.repo.GetReminder(ctx, key)
	if err != nil {
		return nil, err
	}
	return e.view(ctx, rem, now)
}

// Status returns the derived runtime state of one reminder at now.
func (e *Engine) Status(ctx context.Context, key reminder.Key, now time.Time) (*Snapshot, error) {
	view, err := e.Inspect(ctx, key, now)
	if err != nil {
		return nil, err
	}
	return view.Snapshot, nil
}

func (e *Engine) view(ctx context.Context, rem *reminder.Reminder, now time.Time) (*View, error) {
	eval, err := newEvaluation(rem)
	if err != nil {
		return nil, err
	}
	tail, err := e.repo.HistoryTail(ctx, rem.Key, historyTailLen)
	if err != nil {
		return nil, err
	}
	snap, err := eval.snapshot(tail, now)
	if err != nil {
		return nil, err
	}
	return &View{Reminder: rem, Tail: tail, Snapshot: snap}, nil
}

// RecordDone appends a completion at the given instant. The instant may
// be backdated but must not precede the most recent ledger entry and
// must not lie in the future beyond the skew tolerance.
func (e *Engine) RecordDone(ctx context.Context, key reminder.Key, at, now time.Time) (*Ack, error) {
	unlock := e.locks.lock(key)
	defer unlock()

	if at.After(now.Add(skewTolerance)) {
		return nil, fmt.Errorf("completion time %s is in the future: %w",
			at.UTC().Format(time.RFC3339), reminder.ErrOrderingConflict)
	}
	rem, err := e.repo.GetReminder(ctx, key)
	if err != nil {
		return nil, err
	}
	eval, err := newEvaluation(rem)
	if err != nil {
		return nil, err
	}
	tail, err := e.repo.HistoryTail(ctx, key, 1)
	if err != nil {
		return nil, err
	}
	last, _ := eval.lastDose(tail, at)
	if len(tail) > 0 && at.Before(tail[0].Timestamp) {
		return nil, fmt.Errorf("completion time %s precedes last entry %s: %w",
			at.UTC().Format(time.RFC3339), tail[0].Timestamp.UTC().Format(time.RFC3339),
			reminder.ErrOrderingConflict)
	}

	taken := eval.taken(last, at)
	entry, err := e.repo.AppendHistory(ctx, reminder.AppendHistoryInput{
		Key:               key,
		Timestamp:         taken.Timestamp,
		Center:            taken.Center,
		ToggleAlternating: rem.ShowAlternating != "",
	})
	if err != nil {
		return nil, err
	}
	cycle, _ := eval.sch.Closest(taken.Center)
	return &Ack{
		Entry:   entry,
		Message: rem.ResponseMessage,
		Emote:   rem.Emote(cycle),
	}, nil
}

// UndoLastDone removes the most recent completion. The runtime state is
// re-derived from the shortened ledger on the next inquiry; there is
// nothing else to roll back.
func (e *Engine) UndoLastDone(ctx context.Context, key reminder.Key) (*reminder.HistoryEntry, error) {
	unlock := e.locks.lock(key)
	defer unlock()

	rem, err := e.repo.GetReminder(ctx, key)
	if err != nil {
		return nil, err
	}
	return e.repo.RemoveLastHistory(ctx, key, rem.ShowAlternating != "")
}

// Mute suppresses all pings until the given instant.
func (e *Engine) Mute(ctx context.Context, key reminder.Key, until time.Time) error {
	unlock := e.locks.lock(key)
	defer unlock()
	return e.repo.UpdateMuteUntil(ctx, key, until)
}

// Unmute clears the mute by moving mute-until to now.
func (e *Engine) Unmute(ctx context.Context, key reminder.Key, now time.Time) error {
	return e.Mute(ctx, key, now)
}

// MarkPinged records that an escalation ping was delivered, pushing the
// next one out by the ping interval.
func (e *Engine) MarkPinged(ctx context.Context, key reminder.Key, now time.Time) error {
	unlock := e.locks.lock(key)
	defer unlock()
	return e.repo.UpdateLastPing(ctx, key, now)
}

// ListDue evaluates all matching reminders at now and returns their
// views, filtered per opts. A reminder whose evaluation fails (for
// example a timezone rule that no longer loads) is logged and skipped;
// it never poisons the rest of the batch.
func (e *Engine) ListDue(ctx context.Context, opts ListOptions, now time.Time) ([]*View, error) {
	rems, err := e.repo.ListReminders(ctx, reminder.ListFilter{
		Guild:  opts.Guild,
		Member: opts.Member,
		Slot:   opts.Slot,
	})
	if err != nil {
		return nil, err
	}
	views := make([]*View, 0, len(rems))
	for _, rem := range rems {
		view, err := e.view(ctx, rem, now)
		if err != nil {
			slog.Error("reminder evaluation failed", "error", err, "key", rem.Key.String())
			continue
		}
		snap := view.Snapshot
		due := !now.Before(snap.Target.Timestamp)
		if opts.FilterDue && !due {
			continue
		}
		if opts.FilterMuted && snap.Muted {
			continue
		}
		if opts.FilterPingDue && !snap.PingDue {
			continue
		}
		views = append(views, view)
	}
	return views, nil
}

// ListReminders returns the matching active reminders without
// evaluating them.
func (e *Engine) ListReminders(ctx context.Context, filter reminder.ListFilter) ([]*reminder.Reminder, error) {
	return e.repo.ListReminders(ctx, filter)
}

// DeleteReminder removes a reminder and its ledger.
func (e *Engine) DeleteReminder(ctx context.Context, key reminder.Key) error {
	unlock := e.locks.lock(key)
	defer unlock()
	return e.repo.DeleteReminder(ctx, key)
}
