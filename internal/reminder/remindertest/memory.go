// Package remindertest provides an in-memory Repository for tests.
package remindertest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stefs/evelyn-reminder/internal/reminder"
)

// Memory implements reminder.Repository on plain maps. The maps are
// exported so tests can seed state and assert on it directly; History
// holds entries oldest first.
type Memory struct {
	mu        sync.Mutex
	Reminders map[reminder.Key]*reminder.Reminder
	History   map[reminder.Key][]reminder.HistoryEntry
	nextID    int64
}

func NewMemory() *Memory {
	return &Memory{
		Reminders: make(map[reminder.Key]*reminder.Reminder),
		History:   make(map[reminder.Key][]reminder.HistoryEntry),
	}
}

func (m *Memory) GetReminder(_ context.Context, key reminder.Key) (*reminder.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rem, ok := m.Reminders[key]
	if !ok {
		return nil, reminder.ErrNotFound
	}
	clone := *rem
	return &clone, nil
}

func (m *Memory) ListReminders(_ context.Context, filter reminder.ListFilter) ([]*reminder.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*reminder.Reminder
	for _, rem := range m.Reminders {
		if !rem.Active {
			continue
		}
		if filter.Guild != nil && rem.Key.Guild != *filter.Guild {
			continue
		}
		if filter.Member != nil && rem.Key.Member != *filter.Member {
			continue
		}
		if filter.Slot != nil && rem.Key.Slot != *filter.Slot {
			continue
		}
		clone := *rem
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Member != out[j].Key.Member {
			return out[i].Key.Member < out[j].Key.Member
		}
		return out[i].Key.Slot < out[j].Key.Slot
	})
	return out, nil
}

func (m *Memory) UpsertReminder(_ context.Context, r *reminder.Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *r
	m.Reminders[r.Key] = &clone
	return nil
}

func (m *Memory) DeleteReminder(_ context.Context, key reminder.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Reminders[key]; !ok {
		return reminder.ErrNotFound
	}
	delete(m.Reminders, key)
	delete(m.History, key)
	return nil
}

func (m *Memory) UpdateLastPing(_ context.Context, key reminder.Key, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rem, ok := m.Reminders[key]
	if !ok {
		return reminder.ErrNotFound
	}
	rem.LastPing = at
	return nil
}

func (m *Memory) UpdateMuteUntil(_ context.Context, key reminder.Key, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rem, ok := m.Reminders[key]
	if !ok {
		return reminder.ErrNotFound
	}
	rem.MuteUntil = until
	return nil
}

func (m *Memory) HistoryTail(_ context.Context, key reminder.Key, n int) ([]reminder.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.History[key]
	out := make([]reminder.HistoryEntry, 0, n)
	for i := len(entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

func (m *Memory) AppendHistory(_ context.Context, input reminder.AppendHistoryInput) (*reminder.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.History[input.Key]
	if len(entries) > 0 && input.Timestamp.Before(entries[len(entries)-1].Timestamp) {
		return nil, reminder.ErrOrderingConflict
	}
	m.nextID++
	entry := reminder.HistoryEntry{
		ID:        m.nextID,
		Key:       input.Key,
		Timestamp: input.Timestamp,
		Center:    input.Center,
	}
	m.History[input.Key] = append(entries, entry)
	if input.ToggleAlternating {
		if rem, ok := m.Reminders[input.Key]; ok {
			rem.AlternatingFlag = !rem.AlternatingFlag
		}
	}
	return &entry, nil
}

func (m *Memory) RemoveLastHistory(_ context.Context, key reminder.Key, toggleAlternating bool) (*reminder.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.History[key]
	if len(entries) == 0 {
		return nil, reminder.ErrEmptyLedger
	}
	last := entries[len(entries)-1]
	m.History[key] = entries[:len(entries)-1]
	if toggleAlternating {
		if rem, ok := m.Reminders[key]; ok {
			rem.AlternatingFlag = !rem.AlternatingFlag
		}
	}
	return &last, nil
}
