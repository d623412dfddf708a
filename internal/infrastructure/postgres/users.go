package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/sanacare/go-care/internal/domain/user"
	"github.com/sanacare/go-care/internal/i18n"
)

// UserDirectory is a pgx-backed user.Directory reading the accounts table
// owned by the account service.
type UserDirectory struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewUserDirectory creates a new directory
func NewUserDirectory(pool *pgxpool.Pool, logger *zap.Logger) *UserDirectory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserDirectory{pool: pool, logger: logger}
}

func (d *UserDirectory) Lookup(ctx context.Context, userID string) (*user.User, error) {
	var (
		u    user.User
		lang string
	)
	err := d.pool.QueryRow(ctx,
		"SELECT id, email, device_token, language FROM users WHERE id = $1",
		userID,
	).Scan(&u.ID, &u.Email, &u.DeviceToken, &lang)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	u.Language = i18n.ParseLang(lang)
	return &u, nil
}

func (d *UserDirectory) UsersWithDeviceToken(ctx context.Context) ([]*user.User, error) {
	rows, err := d.pool.Query(ctx,
		"SELECT id, email, device_token, language FROM users WHERE device_token <> '' ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var out []*user.User
	for rows.Next() {
		var (
			u    user.User
			lang string
		)
		if err := rows.Scan(&u.ID, &u.Email, &u.DeviceToken, &lang); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Language = i18n.ParseLang(lang)
		out = append(out, &u)
	}
	return out, rows.Err()
}
