// Package pain implements the pain episode lifecycle: reported episodes
// escalate through timed notification stages (5-hour check, 24-hour alert,
// recurring emergency nag) driven by periodic scans.
package pain

import (
	"context"
	"errors"
	"time"

	"github.com/sanacare/go-care/internal/i18n"
)

// ErrNotFound is returned when an episode is absent or not owned by the
// requesting user.
var ErrNotFound = errors.New("pain episode not found")

// Episode is one reported pain event.
//
// Lifecycle: active → (needs check after the check delay) → resolved by the
// user, or escalated past 24 hours (inactive, WasOver24h set) and nagged
// until resolved externally.
type Episode struct {
	ID     string
	UserID string

	BodyPartName  string
	BodyPartIndex []int
	Description   i18n.LocalizedText
	ScreenshotURL string

	// StartTime is when the pain began; nil falls back to CreatedAt.
	StartTime *time.Time

	IsActive       bool
	LastCheckTime  time.Time
	NeedsPainCheck bool
	EndTime        *time.Time
	WasOver24h     bool

	// DeviceToken is the token recorded at report time. Escalations resolve
	// the owner's current token at fire time; this field is a fallback and an
	// audit record.
	DeviceToken string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EffectiveStart returns the episode's start, falling back to creation time.
func (e *Episode) EffectiveStart() time.Time {
	if e.StartTime != nil {
		return *e.StartTime
	}
	return e.CreatedAt
}

// Repository provides episode persistence.
type Repository interface {
	Insert(ctx context.Context, e *Episode) error
	FindByID(ctx context.Context, id string) (*Episode, error)
	FindByUser(ctx context.Context, userID string) ([]*Episode, error)
	// FindNeedingCheck returns the user's episodes flagged for a pain check.
	FindNeedingCheck(ctx context.Context, userID string) ([]*Episode, error)
	// FindCheckDue returns active, not-yet-flagged episodes whose LastCheckTime
	// is at or before the cutoff.
	FindCheckDue(ctx context.Context, cutoff time.Time) ([]*Episode, error)
	// FindActiveStartedBefore returns active episodes whose effective start
	// (StartTime, falling back to CreatedAt) is at or before the cutoff.
	FindActiveStartedBefore(ctx context.Context, cutoff time.Time) ([]*Episode, error)
	// FindOver24h returns every episode with WasOver24h set, active or not.
	FindOver24h(ctx context.Context) ([]*Episode, error)
	Update(ctx context.Context, e *Episode) error
}
