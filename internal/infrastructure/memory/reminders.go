package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sanacare/go-care/internal/domain/medication"
)

// ReminderStore is an in-memory medication.ReminderRepository. The Mark*
// methods take the write lock for the whole check-and-set, which gives the
// compare-and-set semantics the contract requires.
type ReminderStore struct {
	mu   sync.RWMutex
	rows map[string]*medication.Reminder
}

// NewReminderStore creates an empty store.
func NewReminderStore() *ReminderStore {
	return &ReminderStore{rows: make(map[string]*medication.Reminder)}
}

func (s *ReminderStore) InsertMany(_ context.Context, rs []*medication.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rs {
		s.rows[r.ID] = cloneReminder(r)
	}
	return nil
}

func (s *ReminderStore) FindByID(_ context.Context, id string) (*medication.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rows[id]
	if !ok {
		return nil, medication.ErrReminderNotFound
	}
	return cloneReminder(r), nil
}

func (s *ReminderStore) FindUnresolved(_ context.Context, f medication.ReminderFilter) ([]*medication.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*medication.Reminder
	for _, r := range s.rows {
		if r.Resolved() || !matchReminder(r, f) {
			continue
		}
		out = append(out, cloneReminder(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledDate.Equal(out[j].ScheduledDate) {
			return out[i].ScheduledDate.Before(out[j].ScheduledDate)
		}
		if out[i].ScheduledTime != out[j].ScheduledTime {
			return out[i].ScheduledTime < out[j].ScheduledTime
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func matchReminder(r *medication.Reminder, f medication.ReminderFilter) bool {
	if f.MedicationID != "" && r.MedicationID != f.MedicationID {
		return false
	}
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	if !f.Day.IsZero() && !r.ScheduledDate.Equal(f.Day) {
		return false
	}
	if f.ScheduledTime != "" && r.ScheduledTime != f.ScheduledTime {
		return false
	}
	// "HH:MM" compares correctly as a string.
	if f.DueBefore != "" && r.ScheduledTime > f.DueBefore {
		return false
	}
	if f.DueAfter != "" && r.ScheduledTime < f.DueAfter {
		return false
	}
	if f.Unnotified && r.NotifiedAt != nil {
		return false
	}
	return true
}

func (s *ReminderStore) MarkCompleted(_ context.Context, id string, completedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return false, medication.ErrReminderNotFound
	}
	if r.Resolved() {
		return false, nil
	}
	r.IsCompleted = true
	r.CompletedAt = &completedAt
	return true, nil
}

func (s *ReminderStore) MarkSkipped(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return false, medication.ErrReminderNotFound
	}
	if r.Resolved() {
		return false, nil
	}
	r.IsSkipped = true
	return true, nil
}

func (s *ReminderStore) MarkNotified(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return false, medication.ErrReminderNotFound
	}
	if r.NotifiedAt != nil {
		return false, nil
	}
	r.NotifiedAt = &at
	return true, nil
}

func (s *ReminderStore) DeleteUnresolvedFrom(_ context.Context, medicationID string, from time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, r := range s.rows {
		if r.MedicationID == medicationID && !r.Resolved() && !r.ScheduledDate.Before(from) {
			delete(s.rows, id)
			n++
		}
	}
	return n, nil
}

func (s *ReminderStore) DeleteByMedication(_ context.Context, medicationID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, r := range s.rows {
		if r.MedicationID == medicationID {
			delete(s.rows, id)
			n++
		}
	}
	return n, nil
}

func cloneReminder(r *medication.Reminder) *medication.Reminder {
	c := *r
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	if r.NotifiedAt != nil {
		t := *r.NotifiedAt
		c.NotifiedAt = &t
	}
	return &c
}
