package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS reminders (
		guild_id BIGINT NOT NULL,
		member_id BIGINT NOT NULL,
		slot SMALLINT NOT NULL,
		channel_id BIGINT NOT NULL,
		timezone TEXT NOT NULL,
		cycles_per_day SMALLINT NOT NULL,
		correction_amount_secs BIGINT NOT NULL,
		ping_interval_secs BIGINT NOT NULL,
		bed_time_secs INTEGER NOT NULL,
		show_alternating TEXT NOT NULL DEFAULT '',
		ping_message TEXT NOT NULL,
		tts_mode SMALLINT NOT NULL,
		tts_custom TEXT NOT NULL DEFAULT '',
		response_message TEXT NOT NULL,
		response_emotes TEXT NOT NULL DEFAULT '',
		color_hex TEXT NOT NULL,
		last_ping TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
		mute_until TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
		alternating_flag BOOLEAN NOT NULL DEFAULT FALSE,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		PRIMARY KEY (guild_id, member_id, slot)
	)`,
	`CREATE TABLE IF NOT EXISTS history (
		id BIGSERIAL PRIMARY KEY,
		guild_id BIGINT NOT NULL,
		member_id BIGINT NOT NULL,
		slot SMALLINT NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL,
		center TIMESTAMPTZ NOT NULL,
		FOREIGN KEY (guild_id, member_id, slot)
			REFERENCES reminders (guild_id, member_id, slot) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_history_key_timestamp
		ON history (guild_id, member_id, slot, timestamp DESC)`,
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
