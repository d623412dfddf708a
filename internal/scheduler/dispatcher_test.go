package scheduler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sanacare/go-care/internal/domain/medication"
	"github.com/sanacare/go-care/internal/domain/user"
	"github.com/sanacare/go-care/internal/i18n"
	"github.com/sanacare/go-care/internal/infrastructure/memory"
	"github.com/sanacare/go-care/internal/notify"
	"github.com/sanacare/go-care/internal/scheduler"
	"github.com/sanacare/go-care/pkg/clock"
)

var morning = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type captureNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (c *captureNotifier) Send(_ context.Context, _ string, msg notify.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *captureNotifier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

type dispatchFixture struct {
	stores     medication.Stores
	dispatcher *scheduler.Dispatcher
	clock      *clock.Fake
	notifier   *captureNotifier
}

func newDispatchFixture(t *testing.T) *dispatchFixture {
	t.Helper()

	stores := medication.Stores{
		Medications:  memory.NewMedicationStore(),
		Reminders:    memory.NewReminderStore(),
		History:      memory.NewHistoryStore(),
		StockHistory: memory.NewStockHistoryStore(),
	}
	users := memory.NewUserDirectory()
	users.Put(&user.User{ID: "user-1", DeviceToken: "tok-1", Language: i18n.LangFR})

	clk := clock.NewFake(morning)
	notifier := &captureNotifier{}
	cfg := scheduler.DispatcherConfig{CatchUpWindow: 30 * time.Minute}
	d := scheduler.NewDispatcher(stores, users, notifier, nil, cfg, clk, nil, nil)
	return &dispatchFixture{stores: stores, dispatcher: d, clock: clk, notifier: notifier}
}

func (f *dispatchFixture) seed(t *testing.T, reminderID, scheduledTime string) {
	t.Helper()
	ctx := context.Background()

	med := &medication.Medication{
		ID:            "med-1",
		UserID:        "user-1",
		Name:          i18n.LocalizedText{FR: "Doliprane", EN: "Doliprane"},
		FrequencyType: medication.FrequencyDaily,
		TimeOfDay:     []string{scheduledTime},
		IsActive:      true,
	}
	if err := f.stores.Medications.Insert(ctx, med); err != nil {
		t.Fatalf("insert medication: %v", err)
	}
	r := &medication.Reminder{
		ID:            reminderID,
		MedicationID:  "med-1",
		UserID:        "user-1",
		ScheduledDate: medication.DayUTC(morning),
		ScheduledTime: scheduledTime,
		Message:       i18n.LocalizedText{FR: "C'est l'heure de prendre Doliprane", EN: "Time to take Doliprane"},
		CreatedAt:     morning,
	}
	if err := f.stores.Reminders.InsertMany(ctx, []*medication.Reminder{r}); err != nil {
		t.Fatalf("insert reminder: %v", err)
	}
}

func TestDispatchFiresDueReminderOnce(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()
	f.seed(t, "rem-1", "08:00")

	if err := f.dispatcher.DispatchPass(ctx); err != nil {
		t.Fatalf("pass: %v", err)
	}
	if f.notifier.count() != 1 {
		t.Fatalf("%d notifications, want 1", f.notifier.count())
	}
	if body := f.notifier.sent[0].Body; body != "C'est l'heure de prendre Doliprane" {
		t.Fatalf("unexpected body %q", body)
	}

	r, err := f.stores.Reminders.FindByID(ctx, "rem-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if r.NotifiedAt == nil {
		t.Fatalf("notified stamp missing")
	}

	// The stamp makes a re-run a no-op.
	if err := f.dispatcher.DispatchPass(ctx); err != nil {
		t.Fatalf("pass: %v", err)
	}
	if f.notifier.count() != 1 {
		t.Fatalf("reminder fired twice")
	}
}

func TestDispatchSkipsFutureReminder(t *testing.T) {
	f := newDispatchFixture(t)
	f.seed(t, "rem-1", "20:00")

	if err := f.dispatcher.DispatchPass(context.Background()); err != nil {
		t.Fatalf("pass: %v", err)
	}
	if f.notifier.count() != 0 {
		t.Fatalf("future reminder fired")
	}
}

func TestDispatchRespectsCatchUpWindow(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()
	f.seed(t, "rem-1", "07:00")

	// 07:00 is an hour old with a 30-minute window: stays unresolved but is
	// not pushed.
	if err := f.dispatcher.DispatchPass(ctx); err != nil {
		t.Fatalf("pass: %v", err)
	}
	if f.notifier.count() != 0 {
		t.Fatalf("stale reminder fired outside catch-up window")
	}

	r, err := f.stores.Reminders.FindByID(ctx, "rem-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if r.Resolved() || r.NotifiedAt != nil {
		t.Fatalf("stale reminder was mutated: %+v", r)
	}
}

func TestDispatchSkipsResolvedReminder(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()
	f.seed(t, "rem-1", "08:00")

	if _, err := f.stores.Reminders.MarkSkipped(ctx, "rem-1"); err != nil {
		t.Fatalf("skip: %v", err)
	}
	if err := f.dispatcher.DispatchPass(ctx); err != nil {
		t.Fatalf("pass: %v", err)
	}
	if f.notifier.count() != 0 {
		t.Fatalf("resolved reminder fired")
	}
}
