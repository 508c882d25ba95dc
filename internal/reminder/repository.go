package reminder

import (
	"context"
	"time"
)

// ListFilter narrows ListReminders. Nil fields match everything.
type ListFilter struct {
	Guild  *int64
	Member *int64
	Slot   *int
}

type AppendHistoryInput struct {
	Key       Key
	Timestamp time.Time
	Center    time.Time
	// ToggleAlternating flips the reminder's alternating flag in the
	// same transaction as the insert.
	ToggleAlternating bool
}

type ReminderRepository interface {
	// GetReminder returns ErrNotFound for an unknown key.
	GetReminder(ctx context.Context, key Key) (*Reminder, error)
	// ListReminders returns active reminders matching the filter,
	// ordered by member then slot.
	ListReminders(ctx context.Context, filter ListFilter) ([]*Reminder, error)
	UpsertReminder(ctx context.Context, r *Reminder) error
	// DeleteReminder removes the reminder and its ledger.
	DeleteReminder(ctx context.Context, key Key) error
	UpdateLastPing(ctx context.Context, key Key, at time.Time) error
	UpdateMuteUntil(ctx context.Context, key Key, until time.Time) error
}

type HistoryRepository interface {
	// HistoryTail returns up to n entries, newest first.
	HistoryTail(ctx context.Context, key Key, n int) ([]HistoryEntry, error)
	// AppendHistory inserts a completion. It is atomic per key and
	// returns ErrOrderingConflict when the timestamp is older than the
	// most recent entry.
	AppendHistory(ctx context.Context, input AppendHistoryInput) (*HistoryEntry, error)
	// RemoveLastHistory deletes the most recent entry and returns it.
	// Returns ErrEmptyLedger when there is none.
	RemoveLastHistory(ctx context.Context, key Key, toggleAlternating bool) (*HistoryEntry, error)
}

type Repository interface {
	ReminderRepository
	HistoryRepository
}
