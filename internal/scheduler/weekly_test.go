package scheduler_test

import (
	"context"
	"testing"
	"time"

	"github.com/sanacare/go-care/internal/domain/user"
	"github.com/sanacare/go-care/internal/i18n"
	"github.com/sanacare/go-care/internal/infrastructure/memory"
	"github.com/sanacare/go-care/internal/scheduler"
	"github.com/sanacare/go-care/pkg/clock"
	"github.com/sanacare/go-care/pkg/workerpool"
)

// mondayMorning sits inside the Monday 08:00 broadcast slot.
var mondayMorning = time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)

func newWeeklyFixture(t *testing.T, now time.Time) (*scheduler.WeeklyBroadcast, *workerpool.Pool, *captureNotifier) {
	t.Helper()

	users := memory.NewUserDirectory()
	users.Put(&user.User{ID: "user-1", DeviceToken: "tok-1", Language: i18n.LangFR})
	users.Put(&user.User{ID: "user-2", DeviceToken: "tok-2", Language: i18n.LangEN})
	users.Put(&user.User{ID: "user-3", Language: i18n.LangFR}) // no token, excluded

	notifier := &captureNotifier{}
	pool := workerpool.New(workerpool.Config{Workers: 2, QueueSize: 16}, nil)
	pool.Start()

	w := scheduler.NewWeeklyBroadcast(users, notifier, pool,
		scheduler.DefaultWeeklyConfig(), clock.NewFake(now), nil)
	return w, pool, notifier
}

func TestWeeklyBroadcastFiresOncePerWeek(t *testing.T) {
	w, pool, notifier := newWeeklyFixture(t, mondayMorning)
	ctx := context.Background()

	if err := w.Pass(ctx); err != nil {
		t.Fatalf("pass: %v", err)
	}
	// Ticks repeat inside the slot hour; only the first may fire.
	if err := w.Pass(ctx); err != nil {
		t.Fatalf("pass: %v", err)
	}
	pool.Stop()

	if notifier.count() != 2 {
		t.Fatalf("%d notifications, want one per tokened user", notifier.count())
	}
}

func TestWeeklyBroadcastOutsideSlot(t *testing.T) {
	tuesday := mondayMorning.AddDate(0, 0, 1)
	w, pool, notifier := newWeeklyFixture(t, tuesday)

	if err := w.Pass(context.Background()); err != nil {
		t.Fatalf("pass: %v", err)
	}
	pool.Stop()

	if notifier.count() != 0 {
		t.Fatalf("broadcast fired outside its slot")
	}
}
