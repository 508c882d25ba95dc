package pingview

import (
	"context"
	"testing"
	"time"

	"github.com/stefs/evelyn-reminder/internal/engine"
	"github.com/stefs/evelyn-reminder/internal/reminder"
)

func utc(hour, min int) time.Time {
	return time.Date(2024, time.March, 10, hour, min, 0, 0, time.UTC)
}

// staticRepo serves one reminder and a fixed ledger tail.
type staticRepo struct {
	rem  *reminder.Reminder
	tail []reminder.HistoryEntry
}

func (s *staticRepo) GetReminder(context.Context, reminder.Key) (*reminder.Reminder, error) {
	return s.rem, nil
}

func (s *staticRepo) ListReminders(context.Context, reminder.ListFilter) ([]*reminder.Reminder, error) {
	return []*reminder.Reminder{s.rem}, nil
}

func (s *staticRepo) UpsertReminder(context.Context, *reminder.Reminder) error { return nil }

func (s *staticRepo) DeleteReminder(context.Context, reminder.Key) error { return nil }

func (s *staticRepo) UpdateLastPing(context.Context, reminder.Key, time.Time) error { return nil }

func (s *staticRepo) UpdateMuteUntil(context.Context, reminder.Key, time.Time) error { return nil }

func (s *staticRepo) HistoryTail(_ context.Context, _ reminder.Key, n int) ([]reminder.HistoryEntry, error) {
	if len(s.tail) > n {
		return s.tail[:n], nil
	}
	return s.tail, nil
}

func (s *staticRepo) AppendHistory(context.Context, reminder.AppendHistoryInput) (*reminder.HistoryEntry, error) {
	return nil, nil
}

func (s *staticRepo) RemoveLastHistory(context.Context, reminder.Key, bool) (*reminder.HistoryEntry, error) {
	return nil, reminder.ErrEmptyLedger
}

func testView(t *testing.T, rem *reminder.Reminder, tail []reminder.HistoryEntry, now time.Time) *engine.View {
	t.Helper()
	repo := &staticRepo{rem: rem, tail: tail}
	view, err := engine.New(repo).Inspect(context.Background(), rem.Key, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return view
}

func TestNaturalDelta(t *testing.T) {
	tests := []struct {
		delta     time.Duration
		relative  bool
		hoursOnly bool
		want      string
	}{
		{30 * time.Second, true, true, "now"},
		{90 * time.Second, true, true, "2 minutes ago"},
		{-5 * time.Minute, true, true, "5 minutes from now"},
		{time.Minute, false, true, "1 minute"},
		{3 * time.Hour, false, true, "3 hours"},
		{50 * time.Hour, false, true, "50 hours"},
		{50 * time.Hour, false, false, "2 days"},
		{10 * 24 * time.Hour, false, false, "1 week"},
		{40 * 24 * time.Hour, false, false, "1 month"},
		{2 * 365 * 24 * time.Hour, false, false, "2 years"},
	}
	for _, tt := range tests {
		if got := naturalDelta(tt.delta, tt.relative, tt.hoursOnly); got != tt.want {
			t.Errorf("naturalDelta(%v, %v, %v) = %q, want %q",
				tt.delta, tt.relative, tt.hoursOnly, got, tt.want)
		}
	}
}

func TestFixTimeStr(t *testing.T) {
	tests := []struct{ in, want string }{
		{"06:20", "6:20"},
		{"14:10", "14:10"},
		{"00:05", "0:05"},
		{"00:00", "0:00"},
	}
	for _, tt := range tests {
		if got := fixTimeStr(tt.in); got != tt.want {
			t.Errorf("fixTimeStr(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuild_DueReminder(t *testing.T) {
	rem := testReminder()
	tail := []reminder.HistoryEntry{
		{Key: rem.Key, Timestamp: utc(6, 20), Center: utc(6, 0)},
		{Key: rem.Key, Timestamp: utc(6, 20).Add(-8 * time.Hour), Center: utc(6, 0).Add(-8 * time.Hour)},
	}
	view := testView(t, rem, tail, utc(14, 15))

	ping, err := Build(view, utc(14, 15))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ping.Message != "[1] Reminder text" {
		t.Fatalf("unexpected message %q", ping.Message)
	}
	if ping.When != "5 minutes ago at 14:10" {
		t.Fatalf("unexpected when line %q", ping.When)
	}
	if ping.Last != "8 hours ago at 6:20\u2002(20 minutes late)" {
		t.Fatalf("unexpected last line %q", ping.Last)
	}
	if ping.Gaps != "8 hours" {
		t.Fatalf("unexpected gaps line %q", ping.Gaps)
	}
	if ping.Schedule != "6:00, 14:00, 22:00 (UTC)" {
		t.Fatalf("unexpected schedule line %q", ping.Schedule)
	}
	if !ping.Due || ping.Muted || !ping.PingDue {
		t.Fatalf("unexpected flags: %+v", ping)
	}
	if ping.Color != 0xeb349e {
		t.Fatalf("unexpected color %#x", ping.Color)
	}
	if ping.MutedFor != "" {
		t.Fatalf("expected no mute line, got %q", ping.MutedFor)
	}
}

func TestBuild_AlternatingSuffix(t *testing.T) {
	rem := testReminder()
	rem.ShowAlternating = "left,right"
	rem.AlternatingFlag = true
	view := testView(t, rem, nil, utc(15, 0))

	ping, err := Build(view, utc(15, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ping.Message != "[1] Reminder text\u2002(right)" {
		t.Fatalf("unexpected message %q", ping.Message)
	}
}

func TestBuild_TTSModes(t *testing.T) {
	tests := []struct {
		mode       reminder.TTSMode
		custom     string
		wantTTS    bool
		wantCustom string
	}{
		{reminder.TTSNone, "", false, ""},
		{reminder.TTSMessage, "", true, ""},
		{reminder.TTSNameOnly, "", false, "Reminder text"},
		{reminder.TTSCustomText, "drink water", false, "drink water"},
		{reminder.TTSCustomText, "", false, "Reminder text"},
	}
	for _, tt := range tests {
		rem := testReminder()
		rem.TTSMode = tt.mode
		rem.TTSCustom = tt.custom
		view := testView(t, rem, nil, utc(15, 0))
		ping, err := Build(view, utc(15, 0))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ping.TTSMessage != tt.wantTTS || ping.TTSCustom != tt.wantCustom {
			t.Errorf("mode %d: got (%v, %q), want (%v, %q)",
				tt.mode, ping.TTSMessage, ping.TTSCustom, tt.wantTTS, tt.wantCustom)
		}
	}
}

func TestBuild_MutedLine(t *testing.T) {
	rem := testReminder()
	rem.MuteUntil = utc(15, 0).Add(72 * time.Hour)
	view := testView(t, rem, nil, utc(15, 0))

	ping, err := Build(view, utc(15, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ping.MutedFor != "Muted for another 3 days." {
		t.Fatalf("unexpected mute line %q", ping.MutedFor)
	}
	if !ping.Muted || ping.PingDue {
		t.Fatalf("unexpected flags: %+v", ping)
	}
}

func TestBuild_LateSuffix(t *testing.T) {
	rem := testReminder()
	tail := []reminder.HistoryEntry{
		{Key: rem.Key, Timestamp: utc(8, 0), Center: utc(6, 0)},
	}
	view := testView(t, rem, tail, utc(9, 0))

	ping, err := Build(view, utc(9, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ping.Last != "1 hour ago at 8:00\u2002(2 hours late)" {
		t.Fatalf("unexpected last line %q", ping.Last)
	}
}

func testReminder() *reminder.Reminder {
	rem := reminder.NewReminder(reminder.Key{Guild: 1, Member: 2, Slot: 1}, 42, "UTC")
	rem.CorrectionAmount = 10 * time.Minute
	return rem
}
