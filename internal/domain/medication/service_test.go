package medication_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sanacare/go-care/internal/domain/medication"
	"github.com/sanacare/go-care/internal/domain/user"
	"github.com/sanacare/go-care/internal/i18n"
	"github.com/sanacare/go-care/internal/infrastructure/memory"
	"github.com/sanacare/go-care/internal/notify"
	"github.com/sanacare/go-care/pkg/clock"
)

var testDay = time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)

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

type fixture struct {
	svc      *medication.Service
	stores   medication.Stores
	clock    *clock.Fake
	notifier *captureNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	stores := medication.Stores{
		Medications:  memory.NewMedicationStore(),
		Reminders:    memory.NewReminderStore(),
		History:      memory.NewHistoryStore(),
		StockHistory: memory.NewStockHistoryStore(),
	}
	users := memory.NewUserDirectory()
	users.Put(&user.User{ID: "user-1", Email: "alice@example.com", DeviceToken: "tok-1", Language: i18n.LangFR})

	clk := clock.NewFake(testDay)
	notifier := &captureNotifier{}
	svc := medication.NewService(stores, users, notifier, nil, clk, nil)
	return &fixture{svc: svc, stores: stores, clock: clk, notifier: notifier}
}

func (f *fixture) create(t *testing.T, in medication.CreateInput) *medication.Medication {
	t.Helper()
	m, err := f.svc.Create(context.Background(), "user-1", in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return m
}

func dailyInput(times ...string) medication.CreateInput {
	return medication.CreateInput{
		Name:      i18n.LocalizedText{FR: "Doliprane", EN: "Doliprane"},
		TimeOfDay: times,
	}
}

func TestCreateGeneratesReminders(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, dailyInput("08:00", "20:00"))

	rs, err := f.stores.Reminders.FindUnresolved(context.Background(),
		medication.ReminderFilter{MedicationID: m.ID})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	// Inclusive 31-day window, two occurrences per day.
	if want := 31 * 2; len(rs) != want {
		t.Fatalf("got %d reminders, want %d", len(rs), want)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, "user-1", medication.CreateInput{TimeOfDay: []string{"08:00"}}); !errors.Is(err, medication.ErrInvalidInput) {
		t.Fatalf("missing name: got %v", err)
	}

	in := dailyInput("08:00")
	in.FrequencyType = medication.FrequencyWeekly
	if _, err := f.svc.Create(ctx, "user-1", in); !errors.Is(err, medication.ErrInvalidInput) {
		t.Fatalf("weekly without days: got %v", err)
	}

	in = dailyInput("08:00")
	end := testDay.AddDate(0, 0, -2)
	in.StartDate = testDay
	in.EndDate = &end
	if _, err := f.svc.Create(ctx, "user-1", in); !errors.Is(err, medication.ErrInvalidRange) {
		t.Fatalf("end before start: got %v", err)
	}
}

func TestTakeMatchesClosestReminder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.create(t, dailyInput("08:00", "20:00"))

	f.clock.Set(testDay.Add(2 * time.Hour)) // 09:00
	h, err := f.svc.Take(ctx, m.ID, "user-1", medication.TakeInput{})
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if h.ScheduledTime != "08:00" {
		t.Fatalf("matched %q, want 08:00", h.ScheduledTime)
	}

	f.clock.Set(testDay.Add(12 * time.Hour)) // 19:00
	h, err = f.svc.Take(ctx, m.ID, "user-1", medication.TakeInput{})
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if h.ScheduledTime != "20:00" {
		t.Fatalf("matched %q, want 20:00", h.ScheduledTime)
	}

	// Both of today's occurrences are terminal; a third take matches nothing
	// and records its own wall-clock time.
	f.clock.Set(testDay.Add(15 * time.Hour)) // 22:00
	h, err = f.svc.Take(ctx, m.ID, "user-1", medication.TakeInput{})
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if h.ScheduledTime != "22:00" {
		t.Fatalf("unmatched take recorded %q, want 22:00", h.ScheduledTime)
	}

	today, err := f.svc.TodayReminders(ctx, "user-1", i18n.LangFR)
	if err != nil {
		t.Fatalf("today: %v", err)
	}
	if len(today) != 0 {
		t.Fatalf("%d unresolved occurrences left today", len(today))
	}
}

func TestTakeExactScheduledTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.create(t, dailyInput("08:00", "20:00"))

	f.clock.Set(testDay.Add(2 * time.Hour))
	h, err := f.svc.Take(ctx, m.ID, "user-1", medication.TakeInput{ScheduledTime: "20:00"})
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if h.ScheduledTime != "20:00" {
		t.Fatalf("matched %q, want the targeted 20:00", h.ScheduledTime)
	}
}

func TestTakeDecrementsStockAndFloorsAtZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := dailyInput("08:00")
	in.CurrentStock = 1
	in.DosageQuantity = 2
	m := f.create(t, in)

	if _, err := f.svc.Take(ctx, m.ID, "user-1", medication.TakeInput{}); err != nil {
		t.Fatalf("take: %v", err)
	}

	got, err := f.svc.Get(ctx, m.ID, "user-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CurrentStock != 0 {
		t.Fatalf("stock %d, want 0", got.CurrentStock)
	}

	ledger, err := f.svc.StockHistory(ctx, m.ID, "user-1")
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if len(ledger) != 1 {
		t.Fatalf("%d ledger entries, want 1", len(ledger))
	}
	if ledger[0].Type != medication.StockTake || ledger[0].ChangeAmount != -2 || ledger[0].NewStock != 0 {
		t.Fatalf("unexpected ledger entry: %+v", ledger[0])
	}
}

func TestTakeUnknownMedication(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Take(context.Background(), "nope", "user-1", medication.TakeInput{}); !errors.Is(err, medication.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestSkip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.create(t, dailyInput("08:00"))

	r, err := f.svc.Skip(ctx, m.ID, "user-1", testDay, "08:00")
	if err != nil {
		t.Fatalf("skip: %v", err)
	}
	if !r.IsSkipped {
		t.Fatalf("reminder not skipped")
	}

	// A terminal occurrence cannot be skipped twice.
	if _, err := f.svc.Skip(ctx, m.ID, "user-1", testDay, "08:00"); !errors.Is(err, medication.ErrReminderNotFound) {
		t.Fatalf("double skip: got %v", err)
	}
	// An occurrence that never existed.
	if _, err := f.svc.Skip(ctx, m.ID, "user-1", testDay, "13:00"); !errors.Is(err, medication.ErrReminderNotFound) {
		t.Fatalf("unknown time: got %v", err)
	}

	hist, err := f.svc.History(ctx, m.ID, "user-1", nil, nil)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 1 || !hist[0].Skipped || hist[0].QuantityTaken != 0 {
		t.Fatalf("unexpected history: %+v", hist)
	}
}

func TestSkipLeavesStockUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := dailyInput("08:00")
	in.CurrentStock = 10
	m := f.create(t, in)

	if _, err := f.svc.Skip(ctx, m.ID, "user-1", testDay, "08:00"); err != nil {
		t.Fatalf("skip: %v", err)
	}
	got, _ := f.svc.Get(ctx, m.ID, "user-1")
	if got.CurrentStock != 10 {
		t.Fatalf("stock %d changed by skip", got.CurrentStock)
	}
}

func TestUpdateRegeneratesFutureReminders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.create(t, dailyInput("08:00"))

	// Resolve today's occurrence before the rule changes.
	if _, err := f.svc.Take(ctx, m.ID, "user-1", medication.TakeInput{ScheduledTime: "08:00"}); err != nil {
		t.Fatalf("take: %v", err)
	}

	times := []string{"21:00"}
	if _, err := f.svc.Update(ctx, m.ID, "user-1", medication.UpdateInput{TimeOfDay: &times}); err != nil {
		t.Fatalf("update: %v", err)
	}

	rs, err := f.stores.Reminders.FindUnresolved(ctx, medication.ReminderFilter{MedicationID: m.ID})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	for _, r := range rs {
		if r.ScheduledTime != "21:00" {
			t.Fatalf("stale occurrence survived the edit: %+v", r)
		}
	}

	// The resolved occurrence is history, not schedule; it must survive.
	hist, err := f.svc.History(ctx, m.ID, "user-1", nil, nil)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 1 {
		t.Fatalf("%d history rows, want 1", len(hist))
	}
}

func TestRemoveCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := dailyInput("08:00")
	in.CurrentStock = 5
	m := f.create(t, in)
	if _, err := f.svc.Take(ctx, m.ID, "user-1", medication.TakeInput{}); err != nil {
		t.Fatalf("take: %v", err)
	}

	if err := f.svc.Remove(ctx, m.ID, "user-1"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if _, err := f.svc.Get(ctx, m.ID, "user-1"); !errors.Is(err, medication.ErrNotFound) {
		t.Fatalf("get after remove: %v", err)
	}
	rs, _ := f.stores.Reminders.FindUnresolved(ctx, medication.ReminderFilter{MedicationID: m.ID})
	if len(rs) != 0 {
		t.Fatalf("%d reminders survived removal", len(rs))
	}
	hist, _ := f.stores.History.Find(ctx, medication.HistoryFilter{MedicationID: m.ID})
	if len(hist) != 0 {
		t.Fatalf("%d history rows survived removal", len(hist))
	}
	ledger, _ := f.stores.StockHistory.FindByMedication(ctx, m.ID)
	if len(ledger) != 0 {
		t.Fatalf("%d ledger rows survived removal", len(ledger))
	}
}

func TestOwnerScoping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.create(t, dailyInput("08:00"))

	if _, err := f.svc.Get(ctx, m.ID, "user-2"); !errors.Is(err, medication.ErrNotFound) {
		t.Fatalf("foreign get: %v", err)
	}
	if _, err := f.svc.Take(ctx, m.ID, "user-2", medication.TakeInput{}); !errors.Is(err, medication.ErrNotFound) {
		t.Fatalf("foreign take: %v", err)
	}
}

func TestRemindersForDateResolvesLanguage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, medication.CreateInput{
		Name:      i18n.LocalizedText{FR: "Sirop", EN: "Syrup"},
		TimeOfDay: []string{"08:00"},
	})

	fr, err := f.svc.TodayReminders(ctx, "user-1", i18n.LangFR)
	if err != nil {
		t.Fatalf("today: %v", err)
	}
	en, err := f.svc.TodayReminders(ctx, "user-1", i18n.LangEN)
	if err != nil {
		t.Fatalf("today: %v", err)
	}
	if len(fr) != 1 || len(en) != 1 {
		t.Fatalf("got %d/%d reminders", len(fr), len(en))
	}
	if fr[0].MedicationName != "Sirop" || en[0].MedicationName != "Syrup" {
		t.Fatalf("localization broken: %q / %q", fr[0].MedicationName, en[0].MedicationName)
	}
}
