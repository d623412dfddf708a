// Package user defines the read-only directory contract the engine uses to
// resolve notification targets. Account management itself lives outside this
// service; escalations and reminders only need the owner's current device
// token and display language at fire time.
package user

import (
	"context"
	"errors"

	"github.com/sanacare/go-care/internal/i18n"
)

// ErrNotFound is returned when a user is unknown to the directory.
var ErrNotFound = errors.New("user not found")

// User is the notification-relevant projection of an account.
type User struct {
	ID          string
	Email       string
	DeviceToken string
	Language    i18n.Lang
}

// Directory resolves users at notification fire time, so a token rotated
// after an episode or reminder was created is still honored.
type Directory interface {
	Lookup(ctx context.Context, userID string) (*User, error)
	// UsersWithDeviceToken lists every user currently holding a device token.
	UsersWithDeviceToken(ctx context.Context) ([]*User, error)
}
