package medication

import (
	"context"
	"time"
)

// ReminderFilter narrows reminder queries. Zero values mean "any".
type ReminderFilter struct {
	MedicationID string
	UserID       string

	// Day restricts to one calendar day (compared against ScheduledDate,
	// which is midnight UTC). Zero time means any day.
	Day time.Time

	// ScheduledTime restricts to an exact "HH:MM".
	ScheduledTime string

	// DueBefore keeps only occurrences with ScheduledTime <= this "HH:MM".
	DueBefore string
	// DueAfter keeps only occurrences with ScheduledTime >= this "HH:MM".
	DueAfter string

	// Unnotified keeps only occurrences the dispatcher has not pushed yet.
	Unnotified bool
}

// HistoryFilter narrows medication history queries.
type HistoryFilter struct {
	MedicationID string
	UserID       string
	From         *time.Time
	To           *time.Time
}

// MedicationRepository provides persistence for medications.
type MedicationRepository interface {
	Insert(ctx context.Context, m *Medication) error
	// FindByID is owner-scoped; it returns ErrNotFound for absent, inactive,
	// or foreign medications.
	FindByID(ctx context.Context, id, userID string) (*Medication, error)
	FindActiveByUser(ctx context.Context, userID string) ([]*Medication, error)
	// FindLowStock returns active medications currently satisfying the
	// low-stock predicate with notifications enabled.
	FindLowStock(ctx context.Context) ([]*Medication, error)
	Update(ctx context.Context, m *Medication) error
	UpdateStock(ctx context.Context, id string, stock int) error
	Deactivate(ctx context.Context, id string) error
}

// ReminderRepository provides persistence for reminder occurrences.
//
// MarkCompleted, MarkSkipped, and MarkNotified are compare-and-set: they
// succeed only while the occurrence is still unresolved (respectively
// un-notified) and report whether the write landed. This is what makes
// concurrent take/skip and re-entrant dispatch passes safe.
type ReminderRepository interface {
	InsertMany(ctx context.Context, rs []*Reminder) error
	FindByID(ctx context.Context, id string) (*Reminder, error)
	// FindUnresolved returns non-terminal occurrences matching f, ordered by
	// scheduled time ascending.
	FindUnresolved(ctx context.Context, f ReminderFilter) ([]*Reminder, error)
	MarkCompleted(ctx context.Context, id string, completedAt time.Time) (bool, error)
	MarkSkipped(ctx context.Context, id string) (bool, error)
	MarkNotified(ctx context.Context, id string, at time.Time) (bool, error)
	// DeleteUnresolvedFrom removes unresolved occurrences of a medication with
	// ScheduledDate >= from. Terminal occurrences are never deleted this way.
	DeleteUnresolvedFrom(ctx context.Context, medicationID string, from time.Time) (int64, error)
	DeleteByMedication(ctx context.Context, medicationID string) (int64, error)
}

// HistoryRepository provides append-only medication history persistence.
type HistoryRepository interface {
	Insert(ctx context.Context, h *MedicationHistory) error
	// Find returns history entries ordered by TakenAt descending.
	Find(ctx context.Context, f HistoryFilter) ([]*MedicationHistory, error)
	DeleteByMedication(ctx context.Context, medicationID string) (int64, error)
}

// StockHistoryRepository provides append-only stock ledger persistence.
type StockHistoryRepository interface {
	Insert(ctx context.Context, h *StockHistory) error
	// FindByMedication returns entries ordered by CreatedAt descending.
	FindByMedication(ctx context.Context, medicationID string) ([]*StockHistory, error)
	DeleteByMedication(ctx context.Context, medicationID string) (int64, error)
}

// Stores bundles the four repositories the fulfillment engine operates on.
type Stores struct {
	Medications  MedicationRepository
	Reminders    ReminderRepository
	History      HistoryRepository
	StockHistory StockHistoryRepository
}

// EventSink publishes domain events. Implementations must be safe for
// concurrent use; publish failures are logged by callers and never abort the
// owning flow.
type EventSink interface {
	PublishJSON(ctx context.Context, topic, key string, payload any) error
}
