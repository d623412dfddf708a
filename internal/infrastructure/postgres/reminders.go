package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/sanacare/go-care/internal/domain/medication"
)

// ReminderRepository is a pgx-backed medication.ReminderRepository. The Mark*
// methods express their compare-and-set through the UPDATE's WHERE clause and
// report the row count, so concurrent writers race on the database row, not
// in application code.
type ReminderRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewReminderRepository creates a new repository
func NewReminderRepository(pool *pgxpool.Pool, logger *zap.Logger) *ReminderRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderRepository{pool: pool, logger: logger}
}

const reminderColumns = `
	id, medication_id, user_id, scheduled_date, scheduled_time,
	is_completed, is_skipped, completed_at, notified_at,
	message_fr, message_en, created_at
`

func (r *ReminderRepository) InsertMany(ctx context.Context, rs []*medication.Reminder) error {
	if len(rs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO reminders (` + reminderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	for _, rem := range rs {
		batch.Queue(query,
			rem.ID, rem.MedicationID, rem.UserID, rem.ScheduledDate, rem.ScheduledTime,
			rem.IsCompleted, rem.IsSkipped, rem.CompletedAt, rem.NotifiedAt,
			rem.Message.FR, rem.Message.EN, rem.CreatedAt,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range rs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert reminders: %w", err)
		}
	}
	return nil
}

func (r *ReminderRepository) FindByID(ctx context.Context, id string) (*medication.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE id = $1`
	rem, err := scanReminder(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, medication.ErrReminderNotFound
		}
		return nil, fmt.Errorf("find reminder: %w", err)
	}
	return rem, nil
}

func (r *ReminderRepository) FindUnresolved(ctx context.Context, f medication.ReminderFilter) ([]*medication.Reminder, error) {
	var (
		where = []string{"NOT is_completed", "NOT is_skipped"}
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, cond+" $"+strconv.Itoa(len(args)))
	}
	if f.MedicationID != "" {
		add("medication_id =", f.MedicationID)
	}
	if f.UserID != "" {
		add("user_id =", f.UserID)
	}
	if !f.Day.IsZero() {
		add("scheduled_date =", f.Day)
	}
	if f.ScheduledTime != "" {
		add("scheduled_time =", f.ScheduledTime)
	}
	if f.DueBefore != "" {
		add("scheduled_time <=", f.DueBefore)
	}
	if f.DueAfter != "" {
		add("scheduled_time >=", f.DueAfter)
	}
	if f.Unnotified {
		where = append(where, "notified_at IS NULL")
	}

	query := `
		SELECT ` + reminderColumns + `
		FROM reminders
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY scheduled_date ASC, scheduled_time ASC, id ASC
	`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reminders: %w", err)
	}
	defer rows.Close()

	var out []*medication.Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		out = append(out, rem)
	}
	return out, rows.Err()
}

func (r *ReminderRepository) MarkCompleted(ctx context.Context, id string, completedAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE reminders
		SET is_completed = TRUE, completed_at = $2
		WHERE id = $1 AND NOT is_completed AND NOT is_skipped
	`, id, completedAt)
	if err != nil {
		return false, fmt.Errorf("mark completed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ReminderRepository) MarkSkipped(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE reminders
		SET is_skipped = TRUE
		WHERE id = $1 AND NOT is_completed AND NOT is_skipped
	`, id)
	if err != nil {
		return false, fmt.Errorf("mark skipped: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ReminderRepository) MarkNotified(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE reminders
		SET notified_at = $2
		WHERE id = $1 AND notified_at IS NULL
	`, id, at)
	if err != nil {
		return false, fmt.Errorf("mark notified: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ReminderRepository) DeleteUnresolvedFrom(ctx context.Context, medicationID string, from time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM reminders
		WHERE medication_id = $1
		  AND NOT is_completed AND NOT is_skipped
		  AND scheduled_date >= $2
	`, medicationID, from)
	if err != nil {
		return 0, fmt.Errorf("delete unresolved reminders: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *ReminderRepository) DeleteByMedication(ctx context.Context, medicationID string) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		"DELETE FROM reminders WHERE medication_id = $1", medicationID)
	if err != nil {
		return 0, fmt.Errorf("delete reminders: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanReminder(row pgx.Row) (*medication.Reminder, error) {
	rem := &medication.Reminder{}
	err := row.Scan(
		&rem.ID, &rem.MedicationID, &rem.UserID, &rem.ScheduledDate, &rem.ScheduledTime,
		&rem.IsCompleted, &rem.IsSkipped, &rem.CompletedAt, &rem.NotifiedAt,
		&rem.Message.FR, &rem.Message.EN, &rem.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rem, nil
}
