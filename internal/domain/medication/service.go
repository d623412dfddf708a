package medication

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sanacare/go-care/internal/domain/user"
	"github.com/sanacare/go-care/internal/events"
	"github.com/sanacare/go-care/internal/i18n"
	"github.com/sanacare/go-care/internal/notify"
	"github.com/sanacare/go-care/pkg/clock"
)

// Service is the reminder fulfillment engine. It owns medication lifecycle,
// take/skip matching, and the stock ledger.
type Service struct {
	stores   Stores
	users    user.Directory
	notifier notify.Notifier
	sink     EventSink
	expander *Expander
	clock    clock.Clock
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewService creates the fulfillment engine. notifier and sink may be nil;
// every notification and event emission is best-effort.
func NewService(stores Stores, users user.Directory, notifier notify.Notifier, sink EventSink, clk clock.Clock, logger *zap.Logger) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		stores:   stores,
		users:    users,
		notifier: notifier,
		sink:     sink,
		expander: NewExpander(clk),
		clock:    clk,
		logger:   logger,
		tracer:   otel.Tracer("medication-service"),
	}
}

// CreateInput carries the fields of a new medication.
type CreateInput struct {
	Name           i18n.LocalizedText
	Description    i18n.LocalizedText
	Notes          i18n.LocalizedText
	MedicationType MedicationType
	FrequencyType  FrequencyType
	SpecificDays   []int
	TimeOfDay      []string
	DosageQuantity int
	DosageUnit     string
	MealRelation   MealRelation

	CurrentStock      int
	LowStockThreshold int
	NotifyLowStock    bool

	StartDate time.Time
	EndDate   *time.Time
}

// Create stores a new medication and bulk-inserts its reminder occurrences
// over the default expansion window.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*Medication, error) {
	ctx, span := s.tracer.Start(ctx, "medication_create")
	defer span.End()

	now := s.clock.Now()
	m := &Medication{
		ID:                uuid.New().String(),
		UserID:            userID,
		Name:              in.Name,
		Description:       in.Description,
		Notes:             in.Notes,
		MedicationType:    in.MedicationType,
		FrequencyType:     in.FrequencyType,
		SpecificDays:      in.SpecificDays,
		TimeOfDay:         in.TimeOfDay,
		DosageQuantity:    in.DosageQuantity,
		DosageUnit:        in.DosageUnit,
		MealRelation:      in.MealRelation,
		CurrentStock:      in.CurrentStock,
		LowStockThreshold: in.LowStockThreshold,
		NotifyLowStock:    in.NotifyLowStock,
		StartDate:         in.StartDate,
		EndDate:           in.EndDate,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	applyDefaults(m)

	if err := validate(m); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("medication_id", m.ID))

	if err := s.stores.Medications.Insert(ctx, m); err != nil {
		return nil, fmt.Errorf("insert medication: %w", err)
	}

	if err := s.regenerate(ctx, m); err != nil {
		return nil, err
	}

	s.logger.Info("medication created",
		zap.String("medication_id", m.ID),
		zap.String("user_id", userID),
		zap.String("frequency", string(m.FrequencyType)))
	s.publish(ctx, events.TopicAuditTrail, m.ID, events.AuditEntry{
		Action: "medication.created", EntityType: "medication", EntityID: m.ID,
		UserID: userID, At: now,
	})

	return m, nil
}

// UpdateInput carries a partial medication edit; nil fields keep their value.
type UpdateInput struct {
	Name           *i18n.LocalizedText
	Description    *i18n.LocalizedText
	Notes          *i18n.LocalizedText
	MedicationType *MedicationType
	FrequencyType  *FrequencyType
	SpecificDays   *[]int
	TimeOfDay      *[]string
	DosageQuantity *int
	DosageUnit     *string
	MealRelation   *MealRelation

	CurrentStock      *int
	LowStockThreshold *int
	NotifyLowStock    *bool

	StartDate *time.Time
	EndDate   *time.Time
}

// Update edits a medication, invalidating every future unresolved reminder
// from today onward and regenerating them for the new rule. Past occurrences
// and their history are never touched.
func (s *Service) Update(ctx context.Context, id, userID string, in UpdateInput) (*Medication, error) {
	ctx, span := s.tracer.Start(ctx, "medication_update",
		trace.WithAttributes(attribute.String("medication_id", id)))
	defer span.End()

	m, err := s.stores.Medications.FindByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	applyUpdate(m, in)
	applyDefaults(m)
	m.UpdatedAt = s.clock.Now()

	if err := validate(m); err != nil {
		return nil, err
	}

	today := DayUTC(s.clock.Now())
	deleted, err := s.stores.Reminders.DeleteUnresolvedFrom(ctx, m.ID, today)
	if err != nil {
		return nil, fmt.Errorf("delete future reminders: %w", err)
	}

	if err := s.stores.Medications.Update(ctx, m); err != nil {
		return nil, fmt.Errorf("update medication: %w", err)
	}

	if err := s.regenerate(ctx, m); err != nil {
		return nil, err
	}

	s.logger.Info("medication updated",
		zap.String("medication_id", m.ID),
		zap.Int64("reminders_invalidated", deleted))
	s.publish(ctx, events.TopicAuditTrail, m.ID, events.AuditEntry{
		Action: "medication.updated", EntityType: "medication", EntityID: m.ID,
		UserID: userID, At: m.UpdatedAt,
	})

	return m, nil
}

// Remove soft-deletes a medication and cascades deletion of its reminders,
// take history, and stock ledger.
func (s *Service) Remove(ctx context.Context, id, userID string) error {
	ctx, span := s.tracer.Start(ctx, "medication_remove",
		trace.WithAttributes(attribute.String("medication_id", id)))
	defer span.End()

	m, err := s.stores.Medications.FindByID(ctx, id, userID)
	if err != nil {
		return err
	}

	reminders, err := s.stores.Reminders.DeleteByMedication(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("delete reminders: %w", err)
	}
	history, err := s.stores.History.DeleteByMedication(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	ledger, err := s.stores.StockHistory.DeleteByMedication(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("delete stock history: %w", err)
	}

	if err := s.stores.Medications.Deactivate(ctx, m.ID); err != nil {
		return fmt.Errorf("deactivate medication: %w", err)
	}

	s.logger.Info("medication removed",
		zap.String("medication_id", m.ID),
		zap.Int64("reminders_deleted", reminders),
		zap.Int64("history_deleted", history),
		zap.Int64("stock_history_deleted", ledger))
	s.publish(ctx, events.TopicAuditTrail, m.ID, events.AuditEntry{
		Action: "medication.removed", EntityType: "medication", EntityID: m.ID,
		UserID: userID, At: s.clock.Now(),
	})
	return nil
}

// Get loads one medication, owner-scoped.
func (s *Service) Get(ctx context.Context, id, userID string) (*Medication, error) {
	return s.stores.Medications.FindByID(ctx, id, userID)
}

// View is a medication with localized fields resolved for display.
type View struct {
	ID                string
	Name              string
	Description       string
	Notes             string
	FrequencyType     FrequencyType
	TimeOfDay         []string
	DosageQuantity    int
	DosageUnit        string
	CurrentStock      int
	LowStockThreshold int
	StartDate         time.Time
	EndDate           *time.Time
}

// ListActive returns the user's active medications with text resolved to lang.
func (s *Service) ListActive(ctx context.Context, userID string, lang i18n.Lang) ([]*View, error) {
	meds, err := s.stores.Medications.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list medications: %w", err)
	}
	out := make([]*View, 0, len(meds))
	for _, m := range meds {
		out = append(out, &View{
			ID:                m.ID,
			Name:              m.Name.Resolve(lang),
			Description:       m.Description.Resolve(lang),
			Notes:             m.Notes.Resolve(lang),
			FrequencyType:     m.FrequencyType,
			TimeOfDay:         m.TimeOfDay,
			DosageQuantity:    m.DosageQuantity,
			DosageUnit:        m.DosageUnit,
			CurrentStock:      m.CurrentStock,
			LowStockThreshold: m.LowStockThreshold,
			StartDate:         m.StartDate,
			EndDate:           m.EndDate,
		})
	}
	return out, nil
}

// TakeInput carries one take action.
type TakeInput struct {
	TakenAt time.Time
	// ScheduledTime, when set, targets that exact occurrence instead of the
	// closest one.
	ScheduledTime string
	// QuantityTaken defaults to the medication's dosage quantity.
	QuantityTaken int
	Notes         string
}

// Take records a medication intake: stock is decremented first, then the
// matching reminder (if any) transitions to completed, then the history row
// is appended. At most one reminder transitions per call.
func (s *Service) Take(ctx context.Context, id, userID string, in TakeInput) (*MedicationHistory, error) {
	ctx, span := s.tracer.Start(ctx, "medication_take",
		trace.WithAttributes(attribute.String("medication_id", id)))
	defer span.End()

	m, err := s.stores.Medications.FindByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	takenAt := in.TakenAt
	if takenAt.IsZero() {
		takenAt = s.clock.Now()
	}
	qty := in.QuantityTaken
	if qty <= 0 {
		qty = m.DosageQuantity
	}

	// Stock before history, history before response.
	if m.CurrentStock > 0 {
		s.consumeStock(ctx, m, qty, takenAt)
	}

	matched := s.matchReminder(ctx, m, takenAt, in.ScheduledTime)

	scheduledTime := takenAt.UTC().Format("15:04")
	reminderID := ""
	if matched != nil {
		scheduledTime = matched.ScheduledTime
		reminderID = matched.ID
	}

	h := &MedicationHistory{
		ID:            uuid.New().String(),
		MedicationID:  m.ID,
		UserID:        userID,
		TakenAt:       takenAt,
		QuantityTaken: qty,
		ScheduledTime: scheduledTime,
		Skipped:       false,
		Notes:         in.Notes,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.stores.History.Insert(ctx, h); err != nil {
		// Stock is already updated; accepted degraded state, not rolled back.
		s.logger.Error("history insert failed after stock update",
			zap.String("medication_id", m.ID), zap.Error(err))
	}

	s.publish(ctx, events.TopicReminderEvents, m.ID, events.MedicationTaken{
		MedicationID: m.ID, UserID: userID, ReminderID: reminderID,
		QuantityTaken: qty, ScheduledTime: scheduledTime, TakenAt: takenAt,
	})
	return h, nil
}

// matchReminder finds and completes the reminder occurrence for a take.
// Returns nil when nothing matched, including when a concurrent caller
// resolved the occurrence first.
func (s *Service) matchReminder(ctx context.Context, m *Medication, takenAt time.Time, scheduledTime string) *Reminder {
	day := DayUTC(takenAt)

	f := ReminderFilter{MedicationID: m.ID, UserID: m.UserID, Day: day}
	if scheduledTime != "" {
		f.ScheduledTime = scheduledTime
	}

	candidates, err := s.stores.Reminders.FindUnresolved(ctx, f)
	if err != nil {
		s.logger.Warn("reminder lookup failed", zap.String("medication_id", m.ID), zap.Error(err))
		return nil
	}
	if len(candidates) == 0 {
		return nil
	}

	target := candidates[0]
	if scheduledTime == "" {
		target = closestByTime(candidates, takenAt)
	}

	ok, err := s.stores.Reminders.MarkCompleted(ctx, target.ID, day)
	if err != nil {
		s.logger.Warn("reminder completion failed", zap.String("reminder_id", target.ID), zap.Error(err))
		return nil
	}
	if !ok {
		// Lost the race against a concurrent take/skip; the take is still recorded.
		s.logger.Info("reminder already resolved", zap.String("reminder_id", target.ID))
		return nil
	}

	target.IsCompleted = true
	completedAt := day
	target.CompletedAt = &completedAt
	return target
}

// closestByTime picks the candidate whose time of day is nearest to takenAt's,
// first found winning ties. Candidates are pre-validated "HH:MM" strings.
func closestByTime(candidates []*Reminder, takenAt time.Time) *Reminder {
	t := takenAt.UTC()
	nowMinutes := t.Hour()*60 + t.Minute()

	best := candidates[0]
	bestDiff := int(^uint(0) >> 1)
	for _, c := range candidates {
		mins, err := MinutesOfDay(c.ScheduledTime)
		if err != nil {
			continue
		}
		diff := nowMinutes - mins
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			bestDiff = diff
			best = c
		}
	}
	return best
}

// Skip marks the exact (date, time) occurrence as skipped. Stock is untouched.
func (s *Service) Skip(ctx context.Context, id, userID string, scheduledDate time.Time, scheduledTime string) (*Reminder, error) {
	ctx, span := s.tracer.Start(ctx, "medication_skip",
		trace.WithAttributes(attribute.String("medication_id", id)))
	defer span.End()

	day := DayUTC(scheduledDate)
	candidates, err := s.stores.Reminders.FindUnresolved(ctx, ReminderFilter{
		MedicationID:  id,
		UserID:        userID,
		Day:           day,
		ScheduledTime: scheduledTime,
	})
	if err != nil {
		return nil, fmt.Errorf("reminder lookup: %w", err)
	}
	if len(candidates) == 0 {
		return nil, ErrReminderNotFound
	}

	target := candidates[0]
	ok, err := s.stores.Reminders.MarkSkipped(ctx, target.ID)
	if err != nil {
		return nil, fmt.Errorf("mark skipped: %w", err)
	}
	if !ok {
		return nil, ErrReminderNotFound
	}
	target.IsSkipped = true

	now := s.clock.Now()
	h := &MedicationHistory{
		ID:            uuid.New().String(),
		MedicationID:  id,
		UserID:        userID,
		TakenAt:       now,
		QuantityTaken: 0,
		ScheduledTime: scheduledTime,
		Skipped:       true,
		CreatedAt:     now,
	}
	if err := s.stores.History.Insert(ctx, h); err != nil {
		s.logger.Error("skip history insert failed", zap.String("medication_id", id), zap.Error(err))
	}

	s.publish(ctx, events.TopicReminderEvents, id, events.MedicationSkipped{
		MedicationID: id, UserID: userID, ReminderID: target.ID,
		ScheduledTime: scheduledTime, SkippedAt: now,
	})
	return target, nil
}

// ReminderView is a reminder occurrence with localized text resolved and its
// medication's display fields attached.
type ReminderView struct {
	ID                    string
	MedicationID          string
	ScheduledDate         time.Time
	ScheduledTime         string
	Message               string
	MedicationName        string
	MedicationDescription string
}

// TodayReminders returns the user's unresolved occurrences for today, ordered
// by scheduled time.
func (s *Service) TodayReminders(ctx context.Context, userID string, lang i18n.Lang) ([]*ReminderView, error) {
	return s.RemindersForDate(ctx, userID, s.clock.Now(), lang)
}

// RemindersForDate returns the user's unresolved occurrences for one calendar
// day, ordered by scheduled time.
func (s *Service) RemindersForDate(ctx context.Context, userID string, date time.Time, lang i18n.Lang) ([]*ReminderView, error) {
	day := DayUTC(date)
	reminders, err := s.stores.Reminders.FindUnresolved(ctx, ReminderFilter{UserID: userID, Day: day})
	if err != nil {
		return nil, fmt.Errorf("find reminders: %w", err)
	}

	// Medication lookups are cached per call; a day's reminders usually span
	// few medications.
	meds := make(map[string]*Medication)
	out := make([]*ReminderView, 0, len(reminders))
	for _, r := range reminders {
		m, ok := meds[r.MedicationID]
		if !ok {
			m, err = s.stores.Medications.FindByID(ctx, r.MedicationID, userID)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return nil, fmt.Errorf("load medication %s: %w", r.MedicationID, err)
			}
			meds[r.MedicationID] = m
		}
		out = append(out, &ReminderView{
			ID:                    r.ID,
			MedicationID:          r.MedicationID,
			ScheduledDate:         r.ScheduledDate,
			ScheduledTime:         r.ScheduledTime,
			Message:               r.Message.Resolve(lang),
			MedicationName:        m.Name.Resolve(lang),
			MedicationDescription: m.Description.Resolve(lang),
		})
	}
	return out, nil
}

// History returns a medication's take/skip records, newest first, optionally
// bounded by a date range.
func (s *Service) History(ctx context.Context, id, userID string, from, to *time.Time) ([]*MedicationHistory, error) {
	if _, err := s.stores.Medications.FindByID(ctx, id, userID); err != nil {
		return nil, err
	}
	return s.stores.History.Find(ctx, HistoryFilter{MedicationID: id, UserID: userID, From: from, To: to})
}

// regenerate expands the medication's rule over its default window and
// bulk-inserts the occurrences.
func (s *Service) regenerate(ctx context.Context, m *Medication) error {
	w, err := s.expander.WindowFor(m)
	if err != nil {
		return err
	}
	reminders, err := s.expander.Expand(m, w)
	if err != nil {
		return err
	}
	if len(reminders) == 0 {
		return nil
	}
	if err := s.stores.Reminders.InsertMany(ctx, reminders); err != nil {
		return fmt.Errorf("insert reminders: %w", err)
	}
	s.logger.Debug("reminders generated",
		zap.String("medication_id", m.ID),
		zap.Int("count", len(reminders)))
	return nil
}

// publish emits a domain event; failures are logged, never propagated.
func (s *Service) publish(ctx context.Context, topic, key string, payload any) {
	if s.sink == nil {
		return
	}
	if err := s.sink.PublishJSON(ctx, topic, key, payload); err != nil {
		s.logger.Warn("event publish failed", zap.String("topic", topic), zap.Error(err))
	}
}

// notifyOwner resolves the owner's current device token and pushes a message
// in their preferred language. All failures are swallowed after logging.
func (s *Service) notifyOwner(ctx context.Context, userID string, compose func(lang i18n.Lang) notify.Message) {
	if s.notifier == nil || s.users == nil {
		return
	}
	u, err := s.users.Lookup(ctx, userID)
	if err != nil {
		s.logger.Warn("owner lookup failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	if u.DeviceToken == "" {
		return
	}
	if err := s.notifier.Send(ctx, u.DeviceToken, compose(u.Language)); err != nil {
		s.logger.Warn("notification send failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func applyDefaults(m *Medication) {
	if m.MedicationType == "" {
		m.MedicationType = TypePill
	}
	if m.FrequencyType == "" {
		m.FrequencyType = FrequencyDaily
	}
	if m.MealRelation == "" {
		m.MealRelation = NoRelation
	}
	if m.DosageQuantity <= 0 {
		m.DosageQuantity = 1
	}
	if m.DosageUnit == "" {
		m.DosageUnit = "dose"
	}
}

func applyUpdate(m *Medication, in UpdateInput) {
	if in.Name != nil {
		m.Name = *in.Name
	}
	if in.Description != nil {
		m.Description = *in.Description
	}
	if in.Notes != nil {
		m.Notes = *in.Notes
	}
	if in.MedicationType != nil {
		m.MedicationType = *in.MedicationType
	}
	if in.FrequencyType != nil {
		m.FrequencyType = *in.FrequencyType
	}
	if in.SpecificDays != nil {
		m.SpecificDays = *in.SpecificDays
	}
	if in.TimeOfDay != nil {
		m.TimeOfDay = *in.TimeOfDay
	}
	if in.DosageQuantity != nil {
		m.DosageQuantity = *in.DosageQuantity
	}
	if in.DosageUnit != nil {
		m.DosageUnit = *in.DosageUnit
	}
	if in.MealRelation != nil {
		m.MealRelation = *in.MealRelation
	}
	if in.CurrentStock != nil {
		m.CurrentStock = *in.CurrentStock
	}
	if in.LowStockThreshold != nil {
		m.LowStockThreshold = *in.LowStockThreshold
	}
	if in.NotifyLowStock != nil {
		m.NotifyLowStock = *in.NotifyLowStock
	}
	if in.StartDate != nil {
		m.StartDate = *in.StartDate
	}
	if in.EndDate != nil {
		m.EndDate = in.EndDate
	}
}

// validate checks recurrence fields and the validity window.
func validate(m *Medication) error {
	if m.Name.IsZero() {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if len(m.TimeOfDay) == 0 {
		return fmt.Errorf("%w: timeOfDay is required", ErrInvalidInput)
	}
	for _, tod := range m.TimeOfDay {
		if _, err := MinutesOfDay(tod); err != nil {
			return err
		}
	}

	switch m.FrequencyType {
	case FrequencyDaily:
	case FrequencyWeekly, FrequencySpecificDays:
		if len(m.SpecificDays) == 0 {
			return fmt.Errorf("%w: weekly rule needs specific days", ErrInvalidInput)
		}
		for _, d := range m.SpecificDays {
			if d < 0 || d > 6 {
				return fmt.Errorf("%w: weekday %d out of range", ErrInvalidInput, d)
			}
		}
	case FrequencyMonthly:
		if len(m.SpecificDays) == 0 {
			return fmt.Errorf("%w: monthly rule needs specific days", ErrInvalidInput)
		}
		for _, d := range m.SpecificDays {
			if d < 1 || d > 31 {
				return fmt.Errorf("%w: day of month %d out of range", ErrInvalidInput, d)
			}
		}
	default:
		return fmt.Errorf("%w: unknown frequency type %q", ErrInvalidInput, m.FrequencyType)
	}

	if m.EndDate != nil && !m.StartDate.IsZero() && DayUTC(*m.EndDate).Before(DayUTC(m.StartDate)) {
		return fmt.Errorf("%w: end %s before start %s", ErrInvalidRange,
			m.EndDate.Format("2006-01-02"), m.StartDate.Format("2006-01-02"))
	}
	return nil
}
