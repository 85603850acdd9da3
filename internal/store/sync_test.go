package store

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowaak/smart-trainer/trainer-engine/internal/session"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/tracks"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/workout"
)

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

type fakeRestorer struct {
	workout   workout.Workout
	bound     []int
	baselines map[int]float64
}

func (f *fakeRestorer) LoadWorkout(w workout.Workout) error {
	f.workout = w
	return nil
}

func (f *fakeRestorer) Bind(track int, _ uint32, _ tracks.DeviceClass) error {
	if track >= 4 {
		return errors.New("out of range")
	}
	f.bound = append(f.bound, track)
	return nil
}

func (f *fakeRestorer) SetBaseline(track int, baseline float64) error {
	if f.baselines == nil {
		f.baselines = make(map[int]float64)
	}
	f.baselines[track] = baseline
	return nil
}

func TestSyncer_Restore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.SaveWorkout(ctx, sampleWorkout()))
	require.NoError(t, s.SaveBinding(ctx, 2, tracks.Binding{DeviceID: 10, Class: tracks.ClassPowerMeter}))
	require.NoError(t, s.SaveBinding(ctx, 0, tracks.Binding{DeviceID: 11, Class: tracks.ClassHeartRate}))
	require.NoError(t, s.SaveBinding(ctx, 7, tracks.Binding{DeviceID: 12, Class: tracks.ClassHeartRate}))
	require.NoError(t, s.SaveBaseline(ctx, 2, 240))

	r := &fakeRestorer{}
	require.NoError(t, NewSyncer(s, testLogger()).Restore(ctx, r))

	assert.Equal(t, "Sweet Spot", r.workout.Name)
	assert.Equal(t, []int{0, 2}, r.bound, "bindings restored in track order, bad ones skipped")
	assert.Equal(t, map[int]float64{2: 240}, r.baselines)
}

func TestSyncer_RestoreEmptyStore(t *testing.T) {
	r := &fakeRestorer{}
	require.NoError(t, NewSyncer(NewMemoryStore(), testLogger()).Restore(context.Background(), r))
	assert.True(t, r.workout.Empty())
}

func TestSyncer_RunWritesChanges(t *testing.T) {
	s := NewMemoryStore()
	syncer := NewSyncer(s, testLogger())
	statuses := make(chan session.Status, 1)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		syncer.Run(ctx, statuses)
	}()

	syncer.BindingChanged(1, tracks.Binding{DeviceID: 5, Class: tracks.ClassSmartTrainer}, true)
	syncer.BaselineChanged(1, 275)
	statuses <- session.Status{State: session.StateCountdown, SegmentCount: 3}

	assert.Eventually(t, func() bool {
		st, err := s.LoadStatus(context.Background())
		return err == nil && st.State == session.StateCountdown
	}, time.Second, 5*time.Millisecond)

	syncer.BindingChanged(1, tracks.Binding{}, false)
	syncer.WorkoutChanged(sampleWorkout())
	cancel()
	wg.Wait()

	bindings, err := s.LoadBindings(context.Background())
	require.NoError(t, err)
	assert.Empty(t, bindings)
	baselines, err := s.LoadBaselines(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 275.0, baselines[1])
	_, err = s.LoadWorkout(context.Background())
	assert.NoError(t, err)
}

func TestNewSyncer_NilArgsPanic(t *testing.T) {
	assert.Panics(t, func() { NewSyncer(nil, testLogger()) })
	assert.Panics(t, func() { NewSyncer(NewMemoryStore(), nil) })
}
