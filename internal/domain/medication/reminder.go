package medication

import (
	"time"

	"github.com/sanacare/go-care/internal/i18n"
)

// Reminder is one concrete (medication, date, time-of-day) occurrence.
// Once completed or skipped it is terminal and excluded from matching.
type Reminder struct {
	ID           string
	MedicationID string
	UserID       string

	// ScheduledDate is midnight UTC of the occurrence's calendar day.
	ScheduledDate time.Time
	// ScheduledTime is the wall-clock "HH:MM" of the occurrence.
	ScheduledTime string

	IsCompleted bool
	IsSkipped   bool
	CompletedAt *time.Time

	// NotifiedAt records when the dispatcher sent the "time to take" push.
	// Persisting it keeps dispatch restart-safe and at-most-once.
	NotifiedAt *time.Time

	Message   i18n.LocalizedText
	CreatedAt time.Time
}

// Resolved reports whether the occurrence reached a terminal state.
func (r *Reminder) Resolved() bool {
	return r.IsCompleted || r.IsSkipped
}

// StockChangeType classifies a stock ledger entry.
type StockChangeType string

const (
	StockAdd        StockChangeType = "add"
	StockRemove     StockChangeType = "remove"
	StockTake       StockChangeType = "take"
	StockAdjustment StockChangeType = "adjustment"
)

// MedicationHistory is an append-only record of one take or skip action.
type MedicationHistory struct {
	ID           string
	MedicationID string
	UserID       string
	TakenAt      time.Time
	// QuantityTaken is 0 for skips.
	QuantityTaken int
	// ScheduledTime is the "HH:MM" the action was matched against.
	ScheduledTime string
	Skipped       bool
	Notes         string
	CreatedAt     time.Time
}

// StockHistory is an append-only record of one stock mutation.
type StockHistory struct {
	ID            string
	MedicationID  string
	UserID        string
	PreviousStock int
	NewStock      int
	// ChangeAmount is signed: negative for takes, positive for refills.
	ChangeAmount int
	Type         StockChangeType
	Notes        string
	CreatedAt    time.Time
}
