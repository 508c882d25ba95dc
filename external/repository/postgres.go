package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stefs/evelyn-reminder/internal/reminder"
)

const reminderColumns = `guild_id, member_id, slot, channel_id, timezone, cycles_per_day,
	correction_amount_secs, ping_interval_secs, bed_time_secs, show_alternating,
	ping_message, tts_mode, tts_custom, response_message, response_emotes,
	color_hex, last_ping, mute_until, alternating_flag, active`

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) reminder.Repository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) GetReminder(ctx context.Context, key reminder.Key) (*reminder.Reminder, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+reminderColumns+`
		 FROM reminders WHERE guild_id = $1 AND member_id = $2 AND slot = $3`,
		key.Guild, key.Member, key.Slot)
	rem, err := scanReminder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("reminder %s: %w", key, reminder.ErrNotFound)
		}
		return nil, err
	}
	return rem, nil
}

func (r *PostgresRepository) ListReminders(ctx context.Context, filter reminder.ListFilter) ([]*reminder.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE active`
	var args []any
	if filter.Guild != nil {
		args = append(args, *filter.Guild)
		query += fmt.Sprintf(" AND guild_id = $%d", len(args))
	}
	if filter.Member != nil {
		args = append(args, *filter.Member)
		query += fmt.Sprintf(" AND member_id = $%d", len(args))
	}
	if filter.Slot != nil {
		args = append(args, *filter.Slot)
		query += fmt.Sprintf(" AND slot = $%d", len(args))
	}
	query += " ORDER BY member_id ASC, slot ASC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*reminder.Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, rem)
	}
	return list, rows.Err()
}

func (r *PostgresRepository) UpsertReminder(ctx context.Context, rem *reminder.Reminder) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO reminders (`+reminderColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		 ON CONFLICT (guild_id, member_id, slot) DO UPDATE SET
			channel_id = EXCLUDED.channel_id,
			timezone = EXCLUDED.timezone,
			cycles_per_day = EXCLUDED.cycles_per_day,
			correction_amount_secs = EXCLUDED.correction_amount_secs,
			ping_interval_secs = EXCLUDED.ping_interval_secs,
			bed_time_secs = EXCLUDED.bed_time_secs,
			show_alternating = EXCLUDED.show_alternating,
			ping_message = EXCLUDED.ping_message,
			tts_mode = EXCLUDED.tts_mode,
			tts_custom = EXCLUDED.tts_custom,
			response_message = EXCLUDED.response_message,
			response_emotes = EXCLUDED.response_emotes,
			color_hex = EXCLUDED.color_hex,
			last_ping = EXCLUDED.last_ping,
			mute_until = EXCLUDED.mute_until,
			alternating_flag = EXCLUDED.alternating_flag,
			active = EXCLUDED.active`,
		rem.Key.Guild, rem.Key.Member, rem.Key.Slot, rem.Channel, rem.Timezone,
		rem.CyclesPerDay, int64(rem.CorrectionAmount/time.Second), int64(rem.PingInterval/time.Second),
		rem.BedTime, rem.ShowAlternating, rem.PingMessage, int16(rem.TTSMode), rem.TTSCustom,
		rem.ResponseMessage, rem.ResponseEmotes, rem.ColorHex, rem.LastPing, rem.MuteUntil,
		rem.AlternatingFlag, rem.Active)
	return err
}

func (r *PostgresRepository) DeleteReminder(ctx context.Context, key reminder.Key) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM reminders WHERE guild_id = $1 AND member_id = $2 AND slot = $3`,
		key.Guild, key.Member, key.Slot)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reminder %s: %w", key, reminder.ErrNotFound)
	}
	return nil
}

func (r *PostgresRepository) UpdateLastPing(ctx context.Context, key reminder.Key, at time.Time) error {
	return r.updateTimestamp(ctx, "last_ping", key, at)
}

func (r *PostgresRepository) UpdateMuteUntil(ctx context.Context, key reminder.Key, until time.Time) error {
	return r.updateTimestamp(ctx, "mute_until", key, until)
}

func (r *PostgresRepository) updateTimestamp(ctx context.Context, column string, key reminder.Key, value time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE reminders SET `+column+` = $4 WHERE guild_id = $1 AND member_id = $2 AND slot = $3`,
		key.Guild, key.Member, key.Slot, value)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reminder %s: %w", key, reminder.ErrNotFound)
	}
	return nil
}

func (r *PostgresRepository) HistoryTail(ctx context.Context, key reminder.Key, n int) ([]reminder.HistoryEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, guild_id, member_id, slot, timestamp, center
		 FROM history WHERE guild_id = $1 AND member_id = $2 AND slot = $3
		 ORDER BY timestamp DESC, id DESC LIMIT $4`,
		key.Guild, key.Member, key.Slot, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []reminder.HistoryEntry
	for rows.Next() {
		var entry reminder.HistoryEntry
		if err := rows.Scan(&entry.ID, &entry.Key.Guild, &entry.Key.Member, &entry.Key.Slot,
			&entry.Timestamp, &entry.Center); err != nil {
			return nil, err
		}
		list = append(list, entry)
	}
	return list, rows.Err()
}

// AppendHistory inserts under a row lock on the reminder, so concurrent
// appends for the same key serialize and the ordering check cannot
// race.
func (r *PostgresRepository) AppendHistory(ctx context.Context, input reminder.AppendHistoryInput) (*reminder.HistoryEntry, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := lockReminderRow(ctx, tx, input.Key); err != nil {
		return nil, err
	}

	var newest *time.Time
	err = tx.QueryRow(ctx,
		`SELECT MAX(timestamp) FROM history WHERE guild_id = $1 AND member_id = $2 AND slot = $3`,
		input.Key.Guild, input.Key.Member, input.Key.Slot).Scan(&newest)
	if err != nil {
		return nil, err
	}
	if newest != nil && input.Timestamp.Before(*newest) {
		return nil, fmt.Errorf("timestamp %s precedes newest entry %s on %s: %w",
			input.Timestamp.UTC().Format(time.RFC3339), newest.UTC().Format(time.RFC3339),
			input.Key, reminder.ErrOrderingConflict)
	}

	entry := reminder.HistoryEntry{
		Key:       input.Key,
		Timestamp: input.Timestamp,
		Center:    input.Center,
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO history (guild_id, member_id, slot, timestamp, center)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		input.Key.Guild, input.Key.Member, input.Key.Slot, input.Timestamp, input.Center).Scan(&entry.ID)
	if err != nil {
		return nil, err
	}

	if input.ToggleAlternating {
		if err := toggleAlternatingFlag(ctx, tx, input.Key); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *PostgresRepository) RemoveLastHistory(ctx context.Context, key reminder.Key, toggleAlternating bool) (*reminder.HistoryEntry, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := lockReminderRow(ctx, tx, key); err != nil {
		return nil, err
	}

	var entry reminder.HistoryEntry
	err = tx.QueryRow(ctx,
		`DELETE FROM history WHERE id = (
			SELECT id FROM history WHERE guild_id = $1 AND member_id = $2 AND slot = $3
			ORDER BY timestamp DESC, id DESC LIMIT 1
		 ) RETURNING id, guild_id, member_id, slot, timestamp, center`,
		key.Guild, key.Member, key.Slot).Scan(
		&entry.ID, &entry.Key.Guild, &entry.Key.Member, &entry.Key.Slot,
		&entry.Timestamp, &entry.Center)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("no history on %s: %w", key, reminder.ErrEmptyLedger)
		}
		return nil, err
	}

	if toggleAlternating {
		if err := toggleAlternatingFlag(ctx, tx, key); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &entry, nil
}

func lockReminderRow(ctx context.Context, tx pgx.Tx, key reminder.Key) error {
	var one int
	err := tx.QueryRow(ctx,
		`SELECT 1 FROM reminders WHERE guild_id = $1 AND member_id = $2 AND slot = $3 FOR UPDATE`,
		key.Guild, key.Member, key.Slot).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("reminder %s: %w", key, reminder.ErrNotFound)
	}
	return err
}

func toggleAlternatingFlag(ctx context.Context, tx pgx.Tx, key reminder.Key) error {
	_, err := tx.Exec(ctx,
		`UPDATE reminders SET alternating_flag = NOT alternating_flag
		 WHERE guild_id = $1 AND member_id = $2 AND slot = $3`,
		key.Guild, key.Member, key.Slot)
	return err
}

func scanReminder(row pgx.Row) (*reminder.Reminder, error) {
	var (
		rem            reminder.Reminder
		correctionSecs int64
		pingSecs       int64
		ttsMode        int16
	)
	err := row.Scan(&rem.Key.Guild, &rem.Key.Member, &rem.Key.Slot, &rem.Channel, &rem.Timezone,
		&rem.CyclesPerDay, &correctionSecs, &pingSecs, &rem.BedTime, &rem.ShowAlternating,
		&rem.PingMessage, &ttsMode, &rem.TTSCustom, &rem.ResponseMessage, &rem.ResponseEmotes,
		&rem.ColorHex, &rem.LastPing, &rem.MuteUntil, &rem.AlternatingFlag, &rem.Active)
	if err != nil {
		return nil, err
	}
	rem.CorrectionAmount = time.Duration(correctionSecs) * time.Second
	rem.PingInterval = time.Duration(pingSecs) * time.Second
	rem.TTSMode = reminder.TTSMode(ttsMode)
	return &rem, nil
}
