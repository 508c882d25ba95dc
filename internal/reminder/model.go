package reminder

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TTSMode controls how a ping is spoken aloud in the target channel.
type TTSMode int16

const (
	TTSNone TTSMode = iota + 1
	TTSMessage
	TTSNameOnly
	TTSCustomText
)

func (m TTSMode) Valid() bool {
	return m >= TTSNone && m <= TTSCustomText
}

// Key identifies a reminder. Slot is the user-facing digit 1..9, unique
// per (guild, member).
type Key struct {
	Guild  int64
	Member int64
	Slot   int
}

func (k Key) String() string {
	return fmt.Sprintf("[guild=%d|member=%d|slot=%d]", k.Guild, k.Member, k.Slot)
}

type Reminder struct {
	Key Key

	Channel          int64
	Timezone         string
	CyclesPerDay     int
	CorrectionAmount time.Duration
	PingInterval     time.Duration
	// BedTime is the local time of day of the last cycle of the day,
	// in seconds since local midnight.
	BedTime         int
	ShowAlternating string
	PingMessage     string
	TTSMode         TTSMode
	TTSCustom       string
	ResponseMessage string
	ResponseEmotes  string
	ColorHex        string
	LastPing        time.Time
	MuteUntil       time.Time
	AlternatingFlag bool
	Active          bool
}

// Period is the real-time spacing between consecutive cycles.
func (r *Reminder) Period() time.Duration {
	return 24 * time.Hour / time.Duration(r.CyclesPerDay)
}

// Emote picks the response emote for a cycle, rotating through the
// configured comma-separated list. Returns 0 when none are configured.
func (r *Reminder) Emote(cycle int) int64 {
	emotes := splitEmotes(r.ResponseEmotes)
	if len(emotes) == 0 {
		return 0
	}
	return emotes[((cycle%len(emotes))+len(emotes))%len(emotes)]
}

// HistoryEntry is one recorded completion. Center is the canonical slot
// the completion was attributed to; Timestamp is when it actually
// happened. Both are UTC instants.
type HistoryEntry struct {
	ID        int64
	Key       Key
	Timestamp time.Time
	Center    time.Time
}

func splitEmotes(s string) []int64 {
	if s == "" {
		return nil
	}
	var out []int64
	for _, part := range strings.Split(s, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out
}

// NewReminder returns a reminder with the original defaults applied.
func NewReminder(key Key, channel int64, timezone string) *Reminder {
	return &Reminder{
		Key:              key,
		Channel:          channel,
		Timezone:         timezone,
		CyclesPerDay:     3,
		CorrectionAmount: time.Hour,
		PingInterval:     30 * time.Minute,
		BedTime:          22 * 3600,
		PingMessage:      "Reminder text",
		TTSMode:          TTSNone,
		ResponseMessage:  "Nice",
		ColorHex:         "#eb349e",
		Active:           true,
	}
}
