package medication

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sanacare/go-care/internal/events"
	"github.com/sanacare/go-care/internal/i18n"
	"github.com/sanacare/go-care/internal/notify"
)

// UpdateStockInput sets an absolute stock level, optionally adjusting the
// low-stock threshold in the same call.
type UpdateStockInput struct {
	Quantity          int
	LowStockThreshold *int
	Notes             string
}

// UpdateStock sets the medication's stock to an absolute quantity, records the
// signed delta in the ledger, and re-evaluates the low-stock signal.
func (s *Service) UpdateStock(ctx context.Context, id, userID string, in UpdateStockInput) (*Medication, error) {
	m, err := s.stores.Medications.FindByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	previous := m.CurrentStock
	change := in.Quantity - previous

	m.CurrentStock = in.Quantity
	if in.LowStockThreshold != nil {
		m.LowStockThreshold = *in.LowStockThreshold
	}
	m.UpdatedAt = s.clock.Now()
	if err := s.stores.Medications.Update(ctx, m); err != nil {
		return nil, fmt.Errorf("update stock: %w", err)
	}

	entryType := StockAdjustment
	if change > 0 {
		entryType = StockAdd
	}
	s.appendStockEntry(ctx, m, previous, in.Quantity, change, entryType, in.Notes)
	s.checkLowStock(ctx, m)

	return m, nil
}

// AddStock increments the medication's stock and records the refill.
func (s *Service) AddStock(ctx context.Context, id, userID string, quantity int, notes string) (*Medication, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}

	m, err := s.stores.Medications.FindByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	previous := m.CurrentStock
	m.CurrentStock = previous + quantity
	m.UpdatedAt = s.clock.Now()
	if err := s.stores.Medications.Update(ctx, m); err != nil {
		return nil, fmt.Errorf("add stock: %w", err)
	}

	s.appendStockEntry(ctx, m, previous, m.CurrentStock, quantity, StockAdd, notes)
	s.checkLowStock(ctx, m)

	return m, nil
}

// StockHistory returns the medication's ledger entries, newest first.
func (s *Service) StockHistory(ctx context.Context, id, userID string) ([]*StockHistory, error) {
	if _, err := s.stores.Medications.FindByID(ctx, id, userID); err != nil {
		return nil, err
	}
	return s.stores.StockHistory.FindByMedication(ctx, id)
}

// ScanLowStock sweeps every active medication currently in low-stock state
// and notifies its owner. A failing row never aborts the rest of the pass.
func (s *Service) ScanLowStock(ctx context.Context) error {
	meds, err := s.stores.Medications.FindLowStock(ctx)
	if err != nil {
		return fmt.Errorf("find low stock medications: %w", err)
	}

	for _, m := range meds {
		s.signalLowStock(ctx, m)
	}
	if len(meds) > 0 {
		s.logger.Info("low stock sweep", zap.Int("medications", len(meds)))
	}
	return nil
}

// consumeStock applies a take's decrement, flooring at zero, and records the
// ledger entry. Ledger failures are logged and the take proceeds.
func (s *Service) consumeStock(ctx context.Context, m *Medication, qty int, at time.Time) {
	previous := m.CurrentStock
	newStock := previous - qty
	if newStock < 0 {
		newStock = 0
	}

	if err := s.stores.Medications.UpdateStock(ctx, m.ID, newStock); err != nil {
		s.logger.Error("stock decrement failed", zap.String("medication_id", m.ID), zap.Error(err))
		return
	}
	m.CurrentStock = newStock

	s.appendStockEntry(ctx, m, previous, newStock, -qty, StockTake, "")
	s.checkLowStock(ctx, m)
}

// appendStockEntry writes one ledger row and emits the stock event.
func (s *Service) appendStockEntry(ctx context.Context, m *Medication, previous, newStock, change int, t StockChangeType, notes string) {
	now := s.clock.Now()
	entry := &StockHistory{
		ID:            uuid.New().String(),
		MedicationID:  m.ID,
		UserID:        m.UserID,
		PreviousStock: previous,
		NewStock:      newStock,
		ChangeAmount:  change,
		Type:          t,
		Notes:         notes,
		CreatedAt:     now,
	}
	if err := s.stores.StockHistory.Insert(ctx, entry); err != nil {
		// Best-effort: the stock level is authoritative, the ledger is audit.
		s.logger.Error("stock history insert failed", zap.String("medication_id", m.ID), zap.Error(err))
	}

	s.publish(ctx, events.TopicStockEvents, m.ID, events.StockChanged{
		MedicationID: m.ID, UserID: m.UserID,
		PreviousStock: previous, NewStock: newStock, ChangeAmount: change,
		Type: string(t), At: now,
	})
}

// checkLowStock evaluates the low-stock predicate after a mutation and raises
// the signal when it holds.
func (s *Service) checkLowStock(ctx context.Context, m *Medication) {
	if !m.LowStock() {
		return
	}
	s.signalLowStock(ctx, m)
}

func (s *Service) signalLowStock(ctx context.Context, m *Medication) {
	s.logger.Info("low stock",
		zap.String("medication_id", m.ID),
		zap.Int("current_stock", m.CurrentStock),
		zap.Int("threshold", m.LowStockThreshold))

	s.notifyOwner(ctx, m.UserID, func(lang i18n.Lang) notify.Message {
		name := m.Name.Resolve(lang)
		if lang == i18n.LangEN {
			return notify.Message{
				Title: "Low stock",
				Body:  fmt.Sprintf("Only %d left of %s, time to refill.", m.CurrentStock, name),
			}
		}
		return notify.Message{
			Title: "Stock faible",
			Body:  fmt.Sprintf("Il ne reste que %d de %s, pensez à renouveler.", m.CurrentStock, name),
		}
	})

	s.publish(ctx, events.TopicStockEvents, m.ID, events.LowStock{
		MedicationID: m.ID, UserID: m.UserID,
		CurrentStock: m.CurrentStock, Threshold: m.LowStockThreshold,
		At: s.clock.Now(),
	})
}
