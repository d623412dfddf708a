package events

import "time"

// ReminderFired is emitted when the dispatcher pushes a due reminder.
type ReminderFired struct {
	ReminderID    string    `json:"reminder_id"`
	MedicationID  string    `json:"medication_id"`
	UserID        string    `json:"user_id"`
	ScheduledDate string    `json:"scheduled_date"`
	ScheduledTime string    `json:"scheduled_time"`
	FiredAt       time.Time `json:"fired_at"`
}

// MedicationTaken is emitted after a take action is recorded.
type MedicationTaken struct {
	MedicationID  string    `json:"medication_id"`
	UserID        string    `json:"user_id"`
	ReminderID    string    `json:"reminder_id,omitempty"`
	QuantityTaken int       `json:"quantity_taken"`
	ScheduledTime string    `json:"scheduled_time"`
	TakenAt       time.Time `json:"taken_at"`
}

// MedicationSkipped is emitted after a skip action is recorded.
type MedicationSkipped struct {
	MedicationID  string    `json:"medication_id"`
	UserID        string    `json:"user_id"`
	ReminderID    string    `json:"reminder_id"`
	ScheduledTime string    `json:"scheduled_time"`
	SkippedAt     time.Time `json:"skipped_at"`
}

// StockChanged is emitted on every stock ledger mutation.
type StockChanged struct {
	MedicationID  string    `json:"medication_id"`
	UserID        string    `json:"user_id"`
	PreviousStock int       `json:"previous_stock"`
	NewStock      int       `json:"new_stock"`
	ChangeAmount  int       `json:"change_amount"`
	Type          string    `json:"type"`
	At            time.Time `json:"at"`
}

// LowStock is emitted when a mutation leaves stock at or below the threshold.
type LowStock struct {
	MedicationID string    `json:"medication_id"`
	UserID       string    `json:"user_id"`
	CurrentStock int       `json:"current_stock"`
	Threshold    int       `json:"threshold"`
	At           time.Time `json:"at"`
}

// AuditEntry is emitted to the audit trail on entity lifecycle actions.
type AuditEntry struct {
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	UserID     string    `json:"user_id"`
	At         time.Time `json:"at"`
}

// PainEscalated is emitted on every pain episode stage transition or nag.
type PainEscalated struct {
	EpisodeID string    `json:"episode_id"`
	UserID    string    `json:"user_id"`
	Stage     string    `json:"stage"`
	At        time.Time `json:"at"`
}
