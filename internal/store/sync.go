package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/lowaak/smart-trainer/trainer-engine/internal/metrics"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/session"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/tracks"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/workout"
)

const (
	defaultWriteTimeout = 2 * time.Second
	writeQueueSize      = 64
)

// Restorer receives persisted state at startup.
type Restorer interface {
	LoadWorkout(w workout.Workout) error
	Bind(track int, deviceID uint32, class tracks.DeviceClass) error
	SetBaseline(track int, baseline float64) error
}

type writeOp struct {
	what string
	fn   func(ctx context.Context) error
}

// Syncer mirrors engine state into a ControlStore off the engine loops.
// Status records arrive on a latest-wins channel; binding, baseline and
// workout changes are queued and written in order. All writes are best
// effort: failures are logged and counted, never returned to the engine.
type Syncer struct {
	store   ControlStore
	logger  *log.Logger
	timeout time.Duration
	writes  chan writeOp
}

// NewSyncer creates a Syncer over store.
func NewSyncer(store ControlStore, logger *log.Logger) *Syncer {
	if store == nil {
		panic("Syncer: store cannot be nil")
	}
	if logger == nil {
		panic("Syncer: logger cannot be nil")
	}
	return &Syncer{
		store:   store,
		logger:  logger,
		timeout: defaultWriteTimeout,
		writes:  make(chan writeOp, writeQueueSize),
	}
}

// Restore applies the persisted workout, bindings and baselines to r.
// Individual records that fail to apply are logged and skipped.
func (s *Syncer) Restore(ctx context.Context, r Restorer) error {
	w, err := s.store.LoadWorkout(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return fmt.Errorf("restore workout: %w", err)
	default:
		if err := r.LoadWorkout(w); err != nil {
			s.logger.Printf("Syncer: stored workout %q rejected: %v", w.Name, err)
		}
	}

	bindings, err := s.store.LoadBindings(ctx)
	if err != nil {
		return fmt.Errorf("restore bindings: %w", err)
	}
	for _, track := range sortedKeys(bindings) {
		b := bindings[track]
		if err := r.Bind(track, b.DeviceID, b.Class); err != nil {
			s.logger.Printf("Syncer: stored binding for track %d rejected: %v", track, err)
		}
	}

	baselines, err := s.store.LoadBaselines(ctx)
	if err != nil {
		return fmt.Errorf("restore baselines: %w", err)
	}
	for _, track := range sortedKeys(baselines) {
		if err := r.SetBaseline(track, baselines[track]); err != nil {
			s.logger.Printf("Syncer: stored baseline for track %d rejected: %v", track, err)
		}
	}

	s.logger.Printf("Syncer: restored %d bindings, %d baselines", len(bindings), len(baselines))
	return nil
}

// BindingChanged queues a binding write, or a delete when bound is false.
func (s *Syncer) BindingChanged(track int, b tracks.Binding, bound bool) {
	if !bound {
		s.enqueue("delete binding", func(ctx context.Context) error { return s.store.DeleteBinding(ctx, track) })
		return
	}
	s.enqueue("save binding", func(ctx context.Context) error { return s.store.SaveBinding(ctx, track, b) })
}

// BaselineChanged queues a baseline write.
func (s *Syncer) BaselineChanged(track int, baseline float64) {
	s.enqueue("save baseline", func(ctx context.Context) error { return s.store.SaveBaseline(ctx, track, baseline) })
}

// WorkoutChanged queues a workout write.
func (s *Syncer) WorkoutChanged(w workout.Workout) {
	w = w.Clone()
	s.enqueue("save workout", func(ctx context.Context) error { return s.store.SaveWorkout(ctx, w) })
}

func (s *Syncer) enqueue(what string, fn func(ctx context.Context) error) {
	select {
	case s.writes <- writeOp{what: what, fn: fn}:
	default:
		metrics.RecordStoreWrite(errors.New("queue full"))
		s.logger.Printf("Syncer: write queue full, dropped %s", what)
	}
}

// Run writes until ctx is cancelled, then drains queued writes.
func (s *Syncer) Run(ctx context.Context, statuses <-chan session.Status) {
	for {
		select {
		case <-ctx.Done():
			s.drain()
			return
		case st := <-statuses:
			s.write("save status", func(ctx context.Context) error { return s.store.SaveStatus(ctx, st) })
		case op := <-s.writes:
			s.write(op.what, op.fn)
		}
	}
}

func (s *Syncer) drain() {
	for {
		select {
		case op := <-s.writes:
			s.write(op.what, op.fn)
		default:
			return
		}
	}
}

func (s *Syncer) write(what string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	err := fn(ctx)
	metrics.RecordStoreWrite(err)
	if err != nil {
		s.logger.Printf("Syncer: %s failed: %v", what, err)
	}
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
