package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sanacare/go-care/internal/domain/pain"
)

// EpisodeStore is an in-memory pain.Repository.
type EpisodeStore struct {
	mu   sync.RWMutex
	rows map[string]*pain.Episode
}

// NewEpisodeStore creates an empty store.
func NewEpisodeStore() *EpisodeStore {
	return &EpisodeStore{rows: make(map[string]*pain.Episode)}
}

func (s *EpisodeStore) Insert(_ context.Context, e *pain.Episode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[e.ID] = cloneEpisode(e)
	return nil
}

func (s *EpisodeStore) FindByID(_ context.Context, id string) (*pain.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.rows[id]
	if !ok {
		return nil, pain.ErrNotFound
	}
	return cloneEpisode(e), nil
}

func (s *EpisodeStore) FindByUser(_ context.Context, userID string) ([]*pain.Episode, error) {
	return s.collect(func(e *pain.Episode) bool { return e.UserID == userID })
}

func (s *EpisodeStore) FindNeedingCheck(_ context.Context, userID string) ([]*pain.Episode, error) {
	return s.collect(func(e *pain.Episode) bool {
		return e.UserID == userID && e.NeedsPainCheck
	})
}

func (s *EpisodeStore) FindCheckDue(_ context.Context, cutoff time.Time) ([]*pain.Episode, error) {
	return s.collect(func(e *pain.Episode) bool {
		return e.IsActive && !e.NeedsPainCheck && !e.LastCheckTime.After(cutoff)
	})
}

func (s *EpisodeStore) FindActiveStartedBefore(_ context.Context, cutoff time.Time) ([]*pain.Episode, error) {
	return s.collect(func(e *pain.Episode) bool {
		return e.IsActive && !e.EffectiveStart().After(cutoff)
	})
}

func (s *EpisodeStore) FindOver24h(_ context.Context) ([]*pain.Episode, error) {
	return s.collect(func(e *pain.Episode) bool { return e.WasOver24h })
}

func (s *EpisodeStore) Update(_ context.Context, e *pain.Episode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[e.ID]; !ok {
		return pain.ErrNotFound
	}
	s.rows[e.ID] = cloneEpisode(e)
	return nil
}

func (s *EpisodeStore) collect(keep func(*pain.Episode) bool) ([]*pain.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*pain.Episode
	for _, e := range s.rows {
		if keep(e) {
			out = append(out, cloneEpisode(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func cloneEpisode(e *pain.Episode) *pain.Episode {
	c := *e
	if e.BodyPartIndex != nil {
		c.BodyPartIndex = append([]int(nil), e.BodyPartIndex...)
	}
	if e.StartTime != nil {
		t := *e.StartTime
		c.StartTime = &t
	}
	if e.EndTime != nil {
		t := *e.EndTime
		c.EndTime = &t
	}
	return &c
}
