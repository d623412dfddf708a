package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/sanacare/go-care/internal/domain/medication"
)

// HistoryStore is an in-memory medication.HistoryRepository.
type HistoryStore struct {
	mu   sync.RWMutex
	rows map[string]*medication.MedicationHistory
}

// NewHistoryStore creates an empty store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{rows: make(map[string]*medication.MedicationHistory)}
}

func (s *HistoryStore) Insert(_ context.Context, h *medication.MedicationHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *h
	s.rows[h.ID] = &c
	return nil
}

func (s *HistoryStore) Find(_ context.Context, f medication.HistoryFilter) ([]*medication.MedicationHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*medication.MedicationHistory
	for _, h := range s.rows {
		if f.MedicationID != "" && h.MedicationID != f.MedicationID {
			continue
		}
		if f.UserID != "" && h.UserID != f.UserID {
			continue
		}
		if f.From != nil && h.TakenAt.Before(*f.From) {
			continue
		}
		if f.To != nil && h.TakenAt.After(*f.To) {
			continue
		}
		c := *h
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TakenAt.After(out[j].TakenAt) })
	return out, nil
}

func (s *HistoryStore) DeleteByMedication(_ context.Context, medicationID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, h := range s.rows {
		if h.MedicationID == medicationID {
			delete(s.rows, id)
			n++
		}
	}
	return n, nil
}

// StockHistoryStore is an in-memory medication.StockHistoryRepository.
type StockHistoryStore struct {
	mu   sync.RWMutex
	rows map[string]*medication.StockHistory
}

// NewStockHistoryStore creates an empty store.
func NewStockHistoryStore() *StockHistoryStore {
	return &StockHistoryStore{rows: make(map[string]*medication.StockHistory)}
}

func (s *StockHistoryStore) Insert(_ context.Context, h *medication.StockHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *h
	s.rows[h.ID] = &c
	return nil
}

func (s *StockHistoryStore) FindByMedication(_ context.Context, medicationID string) ([]*medication.StockHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*medication.StockHistory
	for _, h := range s.rows {
		if h.MedicationID == medicationID {
			c := *h
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *StockHistoryStore) DeleteByMedication(_ context.Context, medicationID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, h := range s.rows {
		if h.MedicationID == medicationID {
			delete(s.rows, id)
			n++
		}
	}
	return n, nil
}
