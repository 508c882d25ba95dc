package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/stefs/evelyn-reminder/internal/reminder"
	"github.com/stefs/evelyn-reminder/internal/schedule"
)

var colorHexPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Update is a partial configuration edit. Nil fields are left alone.
// ShowAlternating, TTSCustom and ResponseEmotes may be set to the empty
// string to clear them.
type Update struct {
	Channel          *int64
	Timezone         *string
	CyclesPerDay     *int
	CorrectionAmount *time.Duration
	PingInterval     *time.Duration
	// BedTime is the local time of day of the last cycle, in seconds
	// since midnight in the reminder's timezone.
	BedTime         *int
	ShowAlternating *string
	PingMessage     *string
	TTSMode         *reminder.TTSMode
	TTSCustom       *string
	ResponseMessage *string
	ResponseEmotes  *string
	ColorHex        *string
	LastPing        *time.Time
	MuteUntil       *time.Time
	AlternatingFlag *bool
}

// ApplyUpdate edits an existing reminder, or creates one when the key
// is unknown; creation requires at least Channel and Timezone. The
// resulting configuration is validated as a whole before it is saved.
func (e *Engine) ApplyUpdate(ctx context.Context, key reminder.Key, update Update) (*reminder.Reminder, error) {
	unlock := e.locks.lock(key)
	defer unlock()

	rem, err := e.repo.GetReminder(ctx, key)
	switch {
	case err == nil:
	case isNotFound(err):
		if update.Channel == nil || update.Timezone == nil {
			return nil, fmt.Errorf("creating %s requires channel and timezone: %w",
				key, reminder.ErrInvalidConfiguration)
		}
		rem = reminder.NewReminder(key, *update.Channel, *update.Timezone)
	default:
		return nil, err
	}

	applyUpdate(rem, update)
	if err := validateReminder(rem); err != nil {
		return nil, err
	}
	if err := e.repo.UpsertReminder(ctx, rem); err != nil {
		return nil, err
	}
	return rem, nil
}

func applyUpdate(rem *reminder.Reminder, update Update) {
	if update.Channel != nil {
		rem.Channel = *update.Channel
	}
	if update.Timezone != nil {
		rem.Timezone = *update.Timezone
	}
	if update.CyclesPerDay != nil {
		rem.CyclesPerDay = *update.CyclesPerDay
	}
	if update.CorrectionAmount != nil {
		rem.CorrectionAmount = *update.CorrectionAmount
	}
	if update.PingInterval != nil {
		rem.PingInterval = *update.PingInterval
	}
	if update.BedTime != nil {
		rem.BedTime = *update.BedTime
	}
	if update.ShowAlternating != nil {
		rem.ShowAlternating = *update.ShowAlternating
	}
	if update.PingMessage != nil {
		rem.PingMessage = *update.PingMessage
	}
	if update.TTSMode != nil {
		rem.TTSMode = *update.TTSMode
	}
	if update.TTSCustom != nil {
		rem.TTSCustom = *update.TTSCustom
	}
	if update.ResponseMessage != nil {
		rem.ResponseMessage = *update.ResponseMessage
	}
	if update.ResponseEmotes != nil {
		rem.ResponseEmotes = *update.ResponseEmotes
	}
	if update.ColorHex != nil {
		rem.ColorHex = *update.ColorHex
	}
	if update.LastPing != nil {
		rem.LastPing = *update.LastPing
	}
	if update.MuteUntil != nil {
		rem.MuteUntil = *update.MuteUntil
	}
	if update.AlternatingFlag != nil {
		rem.AlternatingFlag = *update.AlternatingFlag
	}
}

func validateReminder(rem *reminder.Reminder) error {
	if rem.Key.Slot < 1 || rem.Key.Slot > 9 {
		return fmt.Errorf("slot %d outside 1..9: %w",
			rem.Key.Slot, reminder.ErrInvalidConfiguration)
	}
	if _, err := schedule.ForReminder(rem); err != nil {
		return err
	}
	if rem.CorrectionAmount < 0 {
		return fmt.Errorf("correction amount must not be negative: %w",
			reminder.ErrInvalidConfiguration)
	}
	if rem.PingInterval < 0 {
		return fmt.Errorf("ping interval must not be negative: %w",
			reminder.ErrInvalidConfiguration)
	}
	if !rem.TTSMode.Valid() {
		return fmt.Errorf("unknown tts mode %d: %w",
			rem.TTSMode, reminder.ErrInvalidConfiguration)
	}
	if !colorHexPattern.MatchString(rem.ColorHex) {
		return fmt.Errorf("color %q is not a #rrggbb value: %w",
			rem.ColorHex, reminder.ErrInvalidConfiguration)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, reminder.ErrNotFound)
}
