package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sanacare/go-care/internal/domain/medication"
	"github.com/sanacare/go-care/internal/domain/user"
	"github.com/sanacare/go-care/internal/events"
	"github.com/sanacare/go-care/internal/i18n"
	"github.com/sanacare/go-care/internal/notify"
	"github.com/sanacare/go-care/internal/observability/metrics"
	"github.com/sanacare/go-care/pkg/clock"
)

// DispatcherConfig tunes the reminder dispatch pass.
type DispatcherConfig struct {
	// CatchUpWindow bounds how far back within the current day a pass will
	// still fire an occurrence it missed, e.g. after a restart. Older
	// occurrences stay unresolved for manual take/skip but are not pushed.
	CatchUpWindow time.Duration
	// FollowUpAfter is how long after a push the dispatcher checks whether
	// the occurrence was acted on. Zero disables the follow-up.
	FollowUpAfter time.Duration
}

// DefaultDispatcherConfig returns a 30-minute catch-up window and a 60-second
// follow-up.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		CatchUpWindow: 30 * time.Minute,
		FollowUpAfter: 60 * time.Second,
	}
}

// Dispatcher pushes "time to take" notifications for reminder occurrences
// whose scheduled wall-clock time has arrived. The persisted NotifiedAt stamp
// is written compare-and-set, so overlapping or restarted passes fire each
// occurrence at most once.
type Dispatcher struct {
	stores   medication.Stores
	users    user.Directory
	notifier notify.Notifier
	sink     medication.EventSink
	config   DispatcherConfig
	clock    clock.Clock
	logger   *zap.Logger
	tracer   trace.Tracer
	metrics  *metrics.Metrics
}

// NewDispatcher creates the reminder dispatcher. m may be nil.
func NewDispatcher(stores medication.Stores, users user.Directory, notifier notify.Notifier, sink medication.EventSink, cfg DispatcherConfig, clk clock.Clock, m *metrics.Metrics, logger *zap.Logger) *Dispatcher {
	if cfg.CatchUpWindow <= 0 {
		cfg.CatchUpWindow = DefaultDispatcherConfig().CatchUpWindow
	}
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		stores:   stores,
		users:    users,
		notifier: notifier,
		sink:     sink,
		config:   cfg,
		clock:    clk,
		logger:   logger,
		tracer:   otel.Tracer("reminder-dispatcher"),
		metrics:  m,
	}
}

// DispatchPass fires every due, un-notified occurrence of the current day
// inside the catch-up window.
func (d *Dispatcher) DispatchPass(ctx context.Context) error {
	ctx, span := d.tracer.Start(ctx, "reminder_dispatch_pass")
	defer span.End()

	now := d.clock.Now()
	filter := medication.ReminderFilter{
		Day:        medication.DayUTC(now),
		DueBefore:  now.Format("15:04"),
		Unnotified: true,
	}
	if earliest := now.Add(-d.config.CatchUpWindow); earliest.Day() == now.Day() {
		filter.DueAfter = earliest.Format("15:04")
	}

	due, err := d.stores.Reminders.FindUnresolved(ctx, filter)
	if err != nil {
		return fmt.Errorf("find due reminders: %w", err)
	}
	span.SetAttributes(attribute.Int("reminders", len(due)))

	meds := make(map[string]*medication.Medication)
	for _, r := range due {
		m, ok := meds[r.MedicationID]
		if !ok {
			m, err = d.stores.Medications.FindByID(ctx, r.MedicationID, r.UserID)
			if err != nil {
				if !errors.Is(err, medication.ErrNotFound) {
					d.logger.Error("medication load failed",
						zap.String("medication_id", r.MedicationID), zap.Error(err))
				}
				continue
			}
			meds[r.MedicationID] = m
		}
		d.fire(ctx, r, m, now)
	}
	return nil
}

// fire claims the occurrence, pushes the notification, emits the event, and
// arms the follow-up check.
func (d *Dispatcher) fire(ctx context.Context, r *medication.Reminder, m *medication.Medication, now time.Time) {
	claimed, err := d.stores.Reminders.MarkNotified(ctx, r.ID, now)
	if err != nil {
		d.logger.Error("reminder claim failed", zap.String("reminder_id", r.ID), zap.Error(err))
		return
	}
	if !claimed {
		// Another pass fired it first.
		return
	}

	d.push(ctx, r, m)
	if d.metrics != nil {
		d.metrics.RemindersDispatched.Inc()
	}
	d.logger.Info("reminder dispatched",
		zap.String("reminder_id", r.ID),
		zap.String("medication", m.Name.FR),
		zap.String("scheduled_time", r.ScheduledTime))

	if d.sink != nil {
		err := d.sink.PublishJSON(ctx, events.TopicReminderEvents, r.MedicationID, events.ReminderFired{
			ReminderID:    r.ID,
			MedicationID:  r.MedicationID,
			UserID:        r.UserID,
			ScheduledDate: r.ScheduledDate.Format("2006-01-02"),
			ScheduledTime: r.ScheduledTime,
			FiredAt:       now,
		})
		if err != nil {
			d.logger.Warn("reminder event publish failed",
				zap.String("reminder_id", r.ID), zap.Error(err))
		}
	}

	if d.config.FollowUpAfter > 0 {
		d.armFollowUp(r.ID)
	}
}

func (d *Dispatcher) push(ctx context.Context, r *medication.Reminder, m *medication.Medication) {
	if d.notifier == nil || d.users == nil {
		return
	}
	u, err := d.users.Lookup(ctx, r.UserID)
	if err != nil {
		d.logger.Warn("owner lookup failed", zap.String("user_id", r.UserID), zap.Error(err))
		return
	}
	if u.DeviceToken == "" {
		return
	}

	title := "Rappel de médicament"
	if u.Language == i18n.LangEN {
		title = "Medication Reminder"
	}
	body := r.Message.Resolve(u.Language)
	if body == "" {
		body = m.Name.Resolve(u.Language)
	}
	msg := notify.Message{
		Title: title,
		Body:  body,
		Data: map[string]string{
			"medication_id": r.MedicationID,
			"reminder_id":   r.ID,
		},
	}
	if err := d.notifier.Send(ctx, u.DeviceToken, msg); err != nil {
		d.logger.Warn("reminder notification failed",
			zap.String("reminder_id", r.ID), zap.Error(err))
	}
}

// armFollowUp re-reads the occurrence after the follow-up delay and records
// whether the user acted on it. Best effort: the timer does not survive a
// restart, the next day's adherence history is the durable record.
func (d *Dispatcher) armFollowUp(reminderID string) {
	time.AfterFunc(d.config.FollowUpAfter, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r, err := d.stores.Reminders.FindByID(ctx, reminderID)
		if err != nil {
			d.logger.Warn("follow-up read failed",
				zap.String("reminder_id", reminderID), zap.Error(err))
			return
		}
		switch {
		case r.IsCompleted:
			d.logger.Debug("reminder taken after push", zap.String("reminder_id", r.ID))
		case r.IsSkipped:
			d.logger.Debug("reminder skipped after push", zap.String("reminder_id", r.ID))
		default:
			d.logger.Info("reminder still pending after push",
				zap.String("reminder_id", r.ID),
				zap.String("scheduled_time", r.ScheduledTime))
		}
	})
}
