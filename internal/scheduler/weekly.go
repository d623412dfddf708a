package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sanacare/go-care/internal/domain/user"
	"github.com/sanacare/go-care/internal/i18n"
	"github.com/sanacare/go-care/internal/notify"
	"github.com/sanacare/go-care/pkg/clock"
	"github.com/sanacare/go-care/pkg/workerpool"
)

// WeeklyConfig tunes the weekly checkup broadcast.
type WeeklyConfig struct {
	// Weekday and Hour give the local slot the broadcast fires in.
	Weekday time.Weekday
	Hour    int
}

// DefaultWeeklyConfig returns Monday 08:00.
func DefaultWeeklyConfig() WeeklyConfig {
	return WeeklyConfig{Weekday: time.Monday, Hour: 8}
}

// WeeklyBroadcast sends the weekly cognitive checkup invitation to every user
// holding a device token. The pass runs on a short ticker; an in-memory
// last-fired gate limits it to once per ISO week. The gate does not survive a
// restart inside the slot hour, which at worst repeats one invitation.
type WeeklyBroadcast struct {
	users    user.Directory
	notifier notify.Notifier
	pool     *workerpool.Pool
	config   WeeklyConfig
	clock    clock.Clock
	logger   *zap.Logger

	mu        sync.Mutex
	lastYear  int
	lastWeek  int
	lastFired bool
}

// NewWeeklyBroadcast creates the broadcast pass.
func NewWeeklyBroadcast(users user.Directory, notifier notify.Notifier, pool *workerpool.Pool, cfg WeeklyConfig, clk clock.Clock, logger *zap.Logger) *WeeklyBroadcast {
	if cfg.Hour < 0 || cfg.Hour > 23 {
		cfg = DefaultWeeklyConfig()
	}
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WeeklyBroadcast{
		users:    users,
		notifier: notifier,
		pool:     pool,
		config:   cfg,
		clock:    clk,
		logger:   logger,
	}
}

// Pass fires the broadcast when the slot is open and it has not fired this
// week yet.
func (w *WeeklyBroadcast) Pass(ctx context.Context) error {
	now := w.clock.Now()
	if now.Weekday() != w.config.Weekday || now.Hour() != w.config.Hour {
		return nil
	}
	if !w.claimWeek(now) {
		return nil
	}

	recipients, err := w.users.UsersWithDeviceToken(ctx)
	if err != nil {
		w.releaseWeek()
		return fmt.Errorf("list broadcast recipients: %w", err)
	}

	w.logger.Info("weekly checkup broadcast",
		zap.Int("recipients", len(recipients)))

	for _, u := range recipients {
		u := u
		task := &workerpool.Task{
			ID: "weekly-checkup-" + u.ID,
			Run: func(ctx context.Context) error {
				return w.notifier.Send(ctx, u.DeviceToken, checkupMessage(u.Language))
			},
		}
		if err := w.pool.Submit(task); err != nil {
			w.logger.Warn("broadcast task rejected",
				zap.String("user_id", u.ID), zap.Error(err))
		}
	}
	return nil
}

// claimWeek marks the current ISO week as fired. Returns false if it already
// fired this week.
func (w *WeeklyBroadcast) claimWeek(now time.Time) bool {
	year, week := now.ISOWeek()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lastFired && w.lastYear == year && w.lastWeek == week {
		return false
	}
	w.lastYear, w.lastWeek, w.lastFired = year, week, true
	return true
}

// releaseWeek reopens the slot after a failed recipient listing so the next
// tick retries.
func (w *WeeklyBroadcast) releaseWeek() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastFired = false
}

func checkupMessage(lang i18n.Lang) notify.Message {
	if lang == i18n.LangEN {
		return notify.Message{
			Title: "Weekly Checkup",
			Body:  "It's time for your weekly cognitive test. Open the app to get started!",
		}
	}
	return notify.Message{
		Title: "Bilan hebdomadaire",
		Body:  "C'est l'heure de votre test cognitif hebdomadaire. Ouvrez l'application pour commencer !",
	}
}
