package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied idempotently at startup. The users table is owned by the
// account service; it is created here only so a standalone deployment works.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS medications (
		id                  TEXT PRIMARY KEY,
		user_id             TEXT NOT NULL,
		name_fr             TEXT NOT NULL DEFAULT '',
		name_en             TEXT NOT NULL DEFAULT '',
		description_fr      TEXT NOT NULL DEFAULT '',
		description_en      TEXT NOT NULL DEFAULT '',
		notes_fr            TEXT NOT NULL DEFAULT '',
		notes_en            TEXT NOT NULL DEFAULT '',
		medication_type     TEXT NOT NULL,
		frequency_type      TEXT NOT NULL,
		specific_days       INT[] NOT NULL DEFAULT '{}',
		time_of_day         TEXT[] NOT NULL DEFAULT '{}',
		dosage_quantity     INT NOT NULL DEFAULT 1,
		dosage_unit         TEXT NOT NULL DEFAULT '',
		meal_relation       TEXT NOT NULL DEFAULT 'no_relation',
		current_stock       INT NOT NULL DEFAULT 0,
		low_stock_threshold INT NOT NULL DEFAULT 0,
		notify_low_stock    BOOLEAN NOT NULL DEFAULT FALSE,
		start_date          TIMESTAMPTZ NOT NULL,
		end_date            TIMESTAMPTZ,
		is_active           BOOLEAN NOT NULL DEFAULT TRUE,
		created_at          TIMESTAMPTZ NOT NULL,
		updated_at          TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_medications_user_active
		ON medications (user_id) WHERE is_active`,

	`CREATE TABLE IF NOT EXISTS reminders (
		id             TEXT PRIMARY KEY,
		medication_id  TEXT NOT NULL,
		user_id        TEXT NOT NULL,
		scheduled_date TIMESTAMPTZ NOT NULL,
		scheduled_time TEXT NOT NULL,
		is_completed   BOOLEAN NOT NULL DEFAULT FALSE,
		is_skipped     BOOLEAN NOT NULL DEFAULT FALSE,
		completed_at   TIMESTAMPTZ,
		notified_at    TIMESTAMPTZ,
		message_fr     TEXT NOT NULL DEFAULT '',
		message_en     TEXT NOT NULL DEFAULT '',
		created_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reminders_due
		ON reminders (scheduled_date, scheduled_time)
		WHERE NOT is_completed AND NOT is_skipped`,
	`CREATE INDEX IF NOT EXISTS idx_reminders_medication
		ON reminders (medication_id)`,

	`CREATE TABLE IF NOT EXISTS medication_history (
		id             TEXT PRIMARY KEY,
		medication_id  TEXT NOT NULL,
		user_id        TEXT NOT NULL,
		taken_at       TIMESTAMPTZ NOT NULL,
		quantity_taken INT NOT NULL DEFAULT 0,
		scheduled_time TEXT NOT NULL DEFAULT '',
		skipped        BOOLEAN NOT NULL DEFAULT FALSE,
		notes          TEXT NOT NULL DEFAULT '',
		created_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_medication_history_medication
		ON medication_history (medication_id, taken_at DESC)`,

	`CREATE TABLE IF NOT EXISTS stock_history (
		id             TEXT PRIMARY KEY,
		medication_id  TEXT NOT NULL,
		user_id        TEXT NOT NULL,
		previous_stock INT NOT NULL,
		new_stock      INT NOT NULL,
		change_amount  INT NOT NULL,
		change_type    TEXT NOT NULL,
		notes          TEXT NOT NULL DEFAULT '',
		created_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_history_medication
		ON stock_history (medication_id, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS pain_episodes (
		id               TEXT PRIMARY KEY,
		user_id          TEXT NOT NULL,
		body_part_name   TEXT NOT NULL DEFAULT '',
		body_part_index  INT[] NOT NULL DEFAULT '{}',
		description_fr   TEXT NOT NULL DEFAULT '',
		description_en   TEXT NOT NULL DEFAULT '',
		screenshot_url   TEXT NOT NULL DEFAULT '',
		start_time       TIMESTAMPTZ,
		is_active        BOOLEAN NOT NULL DEFAULT TRUE,
		last_check_time  TIMESTAMPTZ NOT NULL,
		needs_pain_check BOOLEAN NOT NULL DEFAULT FALSE,
		end_time         TIMESTAMPTZ,
		was_over_24h     BOOLEAN NOT NULL DEFAULT FALSE,
		device_token     TEXT NOT NULL DEFAULT '',
		created_at       TIMESTAMPTZ NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pain_episodes_active
		ON pain_episodes (last_check_time) WHERE is_active`,

	`CREATE TABLE IF NOT EXISTS users (
		id           TEXT PRIMARY KEY,
		email        TEXT NOT NULL DEFAULT '',
		device_token TEXT NOT NULL DEFAULT '',
		language     TEXT NOT NULL DEFAULT 'fr'
	)`,
}

// EnsureSchema creates the tables and indexes if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
