package store

import (
	"context"
	"maps"
	"sync"

	"github.com/lowaak/smart-trainer/trainer-engine/internal/session"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/tracks"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/workout"
)

// MemoryStore keeps everything in process. It backs the "none" driver.
type MemoryStore struct {
	mu        sync.RWMutex
	workout   *workout.Workout
	status    *session.Status
	bindings  map[int]tracks.Binding
	baselines map[int]float64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bindings:  make(map[int]tracks.Binding),
		baselines: make(map[int]float64),
	}
}

func (s *MemoryStore) LoadWorkout(context.Context) (workout.Workout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.workout == nil {
		return workout.Workout{}, ErrNotFound
	}
	return s.workout.Clone(), nil
}

func (s *MemoryStore) SaveWorkout(_ context.Context, w workout.Workout) error {
	w = w.Clone()
	s.mu.Lock()
	s.workout = &w
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) LoadStatus(context.Context) (session.Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status == nil {
		return session.Status{}, ErrNotFound
	}
	return *s.status, nil
}

func (s *MemoryStore) SaveStatus(_ context.Context, st session.Status) error {
	s.mu.Lock()
	s.status = &st
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) LoadBindings(context.Context) (map[int]tracks.Binding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.bindings), nil
}

func (s *MemoryStore) SaveBinding(_ context.Context, track int, b tracks.Binding) error {
	s.mu.Lock()
	s.bindings[track] = b
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) DeleteBinding(_ context.Context, track int) error {
	s.mu.Lock()
	delete(s.bindings, track)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) LoadBaselines(context.Context) (map[int]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.baselines), nil
}

func (s *MemoryStore) SaveBaseline(_ context.Context, track int, baseline float64) error {
	s.mu.Lock()
	s.baselines[track] = baseline
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error { return nil }
