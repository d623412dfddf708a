// Package memory provides in-memory repository implementations backed by
// mutex-guarded maps. They serve the development store mode and the test
// suite; values are cloned on the way in and out so callers never share
// state with the store.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/sanacare/go-care/internal/domain/medication"
)

// MedicationStore is an in-memory medication.MedicationRepository.
type MedicationStore struct {
	mu   sync.RWMutex
	rows map[string]*medication.Medication
}

// NewMedicationStore creates an empty store.
func NewMedicationStore() *MedicationStore {
	return &MedicationStore{rows: make(map[string]*medication.Medication)}
}

func (s *MedicationStore) Insert(_ context.Context, m *medication.Medication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[m.ID] = cloneMedication(m)
	return nil
}

func (s *MedicationStore) FindByID(_ context.Context, id, userID string) (*medication.Medication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.rows[id]
	if !ok || !m.IsActive || m.UserID != userID {
		return nil, medication.ErrNotFound
	}
	return cloneMedication(m), nil
}

func (s *MedicationStore) FindActiveByUser(_ context.Context, userID string) ([]*medication.Medication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*medication.Medication
	for _, m := range s.rows {
		if m.IsActive && m.UserID == userID {
			out = append(out, cloneMedication(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MedicationStore) FindLowStock(_ context.Context) ([]*medication.Medication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*medication.Medication
	for _, m := range s.rows {
		if m.IsActive && m.LowStock() {
			out = append(out, cloneMedication(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MedicationStore) Update(_ context.Context, m *medication.Medication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[m.ID]; !ok {
		return medication.ErrNotFound
	}
	s.rows[m.ID] = cloneMedication(m)
	return nil
}

func (s *MedicationStore) UpdateStock(_ context.Context, id string, stock int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[id]
	if !ok {
		return medication.ErrNotFound
	}
	m.CurrentStock = stock
	return nil
}

func (s *MedicationStore) Deactivate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[id]
	if !ok {
		return medication.ErrNotFound
	}
	m.IsActive = false
	return nil
}

func cloneMedication(m *medication.Medication) *medication.Medication {
	c := *m
	if m.SpecificDays != nil {
		c.SpecificDays = append([]int(nil), m.SpecificDays...)
	}
	if m.TimeOfDay != nil {
		c.TimeOfDay = append([]string(nil), m.TimeOfDay...)
	}
	if m.EndDate != nil {
		end := *m.EndDate
		c.EndDate = &end
	}
	return &c
}
