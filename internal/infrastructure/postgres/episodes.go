package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/sanacare/go-care/internal/domain/pain"
)

// EpisodeRepository is a pgx-backed pain.Repository.
type EpisodeRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewEpisodeRepository creates a new repository
func NewEpisodeRepository(pool *pgxpool.Pool, logger *zap.Logger) *EpisodeRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EpisodeRepository{pool: pool, logger: logger}
}

const episodeColumns = `
	id, user_id, body_part_name, body_part_index, description_fr, description_en,
	screenshot_url, start_time, is_active, last_check_time, needs_pain_check,
	end_time, was_over_24h, device_token, created_at, updated_at
`

func (r *EpisodeRepository) Insert(ctx context.Context, e *pain.Episode) error {
	query := `
		INSERT INTO pain_episodes (` + episodeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := r.pool.Exec(ctx, query,
		e.ID, e.UserID, e.BodyPartName, e.BodyPartIndex, e.Description.FR, e.Description.EN,
		e.ScreenshotURL, e.StartTime, e.IsActive, e.LastCheckTime, e.NeedsPainCheck,
		e.EndTime, e.WasOver24h, e.DeviceToken, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert episode: %w", err)
	}
	return nil
}

func (r *EpisodeRepository) FindByID(ctx context.Context, id string) (*pain.Episode, error) {
	query := `SELECT ` + episodeColumns + ` FROM pain_episodes WHERE id = $1`
	e, err := scanEpisode(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pain.ErrNotFound
		}
		return nil, fmt.Errorf("find episode: %w", err)
	}
	return e, nil
}

func (r *EpisodeRepository) FindByUser(ctx context.Context, userID string) ([]*pain.Episode, error) {
	query := `
		SELECT ` + episodeColumns + `
		FROM pain_episodes
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	return r.queryMany(ctx, query, userID)
}

func (r *EpisodeRepository) FindNeedingCheck(ctx context.Context, userID string) ([]*pain.Episode, error) {
	query := `
		SELECT ` + episodeColumns + `
		FROM pain_episodes
		WHERE user_id = $1 AND needs_pain_check
		ORDER BY created_at DESC
	`
	return r.queryMany(ctx, query, userID)
}

func (r *EpisodeRepository) FindCheckDue(ctx context.Context, cutoff time.Time) ([]*pain.Episode, error) {
	query := `
		SELECT ` + episodeColumns + `
		FROM pain_episodes
		WHERE is_active
		  AND NOT needs_pain_check
		  AND last_check_time <= $1
		ORDER BY last_check_time ASC
	`
	return r.queryMany(ctx, query, cutoff)
}

func (r *EpisodeRepository) FindActiveStartedBefore(ctx context.Context, cutoff time.Time) ([]*pain.Episode, error) {
	query := `
		SELECT ` + episodeColumns + `
		FROM pain_episodes
		WHERE is_active
		  AND COALESCE(start_time, created_at) <= $1
		ORDER BY created_at ASC
	`
	return r.queryMany(ctx, query, cutoff)
}

func (r *EpisodeRepository) FindOver24h(ctx context.Context) ([]*pain.Episode, error) {
	query := `
		SELECT ` + episodeColumns + `
		FROM pain_episodes
		WHERE was_over_24h
		ORDER BY created_at ASC
	`
	return r.queryMany(ctx, query)
}

func (r *EpisodeRepository) Update(ctx context.Context, e *pain.Episode) error {
	query := `
		UPDATE pain_episodes SET
			body_part_name = $2, body_part_index = $3, description_fr = $4,
			description_en = $5, screenshot_url = $6, start_time = $7,
			is_active = $8, last_check_time = $9, needs_pain_check = $10,
			end_time = $11, was_over_24h = $12, device_token = $13, updated_at = $14
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		e.ID, e.BodyPartName, e.BodyPartIndex, e.Description.FR,
		e.Description.EN, e.ScreenshotURL, e.StartTime,
		e.IsActive, e.LastCheckTime, e.NeedsPainCheck,
		e.EndTime, e.WasOver24h, e.DeviceToken, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update episode: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pain.ErrNotFound
	}
	return nil
}

func (r *EpisodeRepository) queryMany(ctx context.Context, query string, args ...any) ([]*pain.Episode, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query episodes: %w", err)
	}
	defer rows.Close()

	var out []*pain.Episode
	for rows.Next() {
		e, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEpisode(row pgx.Row) (*pain.Episode, error) {
	e := &pain.Episode{}
	err := row.Scan(
		&e.ID, &e.UserID, &e.BodyPartName, &e.BodyPartIndex, &e.Description.FR, &e.Description.EN,
		&e.ScreenshotURL, &e.StartTime, &e.IsActive, &e.LastCheckTime, &e.NeedsPainCheck,
		&e.EndTime, &e.WasOver24h, &e.DeviceToken, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}
