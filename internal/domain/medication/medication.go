// Package medication implements the medication scheduling core: recurrence
// expansion into reminder occurrences, take/skip fulfillment, and the stock
// ledger with its low-stock signal.
package medication

import (
	"time"

	"github.com/sanacare/go-care/internal/i18n"
)

// MedicationType classifies the physical form of a medication.
type MedicationType string

const (
	TypePill      MedicationType = "pill"
	TypeCapsule   MedicationType = "capsule"
	TypeInjection MedicationType = "injection"
	TypeCream     MedicationType = "cream"
	TypeSyrup     MedicationType = "syrup"
)

// FrequencyType selects how reminder occurrences are derived from the
// recurrence rule.
type FrequencyType string

const (
	FrequencyDaily   FrequencyType = "daily"
	FrequencyWeekly  FrequencyType = "weekly"
	FrequencyMonthly FrequencyType = "monthly"
	// FrequencySpecificDays behaves as a day-of-week selection, exactly like
	// FrequencyWeekly. It is kept as a distinct value so stored rules using it
	// remain valid.
	FrequencySpecificDays FrequencyType = "specific_days"
)

// MealRelation records how intake relates to meals.
type MealRelation string

const (
	BeforeEating MealRelation = "before_eating"
	AfterEating  MealRelation = "after_eating"
	WithFood     MealRelation = "with_food"
	NoRelation   MealRelation = "no_relation"
)

// DefaultWindowDays is the expansion horizon when no end date is set.
const DefaultWindowDays = 30

// Medication is a recurring treatment owned by a single user. Its recurrence
// rule (FrequencyType, SpecificDays, TimeOfDay, validity window) drives
// reminder generation.
type Medication struct {
	ID             string
	UserID         string
	Name           i18n.LocalizedText
	Description    i18n.LocalizedText
	Notes          i18n.LocalizedText
	MedicationType MedicationType
	FrequencyType  FrequencyType

	// SpecificDays holds weekdays (0=Sunday..6=Saturday) for weekly rules and
	// days of month (1..31) for monthly rules.
	SpecificDays []int

	// TimeOfDay holds "HH:MM" strings, one occurrence per entry per included day.
	TimeOfDay []string

	DosageQuantity int
	DosageUnit     string
	MealRelation   MealRelation

	CurrentStock      int
	LowStockThreshold int
	NotifyLowStock    bool

	StartDate time.Time
	EndDate   *time.Time

	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LowStock reports whether the low-stock signal condition holds: notifications
// enabled, a threshold configured, and stock at or below it.
func (m *Medication) LowStock() bool {
	return m.NotifyLowStock && m.LowStockThreshold > 0 && m.CurrentStock <= m.LowStockThreshold
}

// DayUTC normalizes t to midnight UTC of its calendar day. Scheduled dates are
// always stored in this form; the time of day travels separately as a string.
func DayUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
