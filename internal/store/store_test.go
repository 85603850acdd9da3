package store

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowaak/smart-trainer/trainer-engine/internal/session"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/tracks"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/workout"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func sampleWorkout() workout.Workout {
	return workout.Workout{Name: "Sweet Spot", Segments: []workout.Segment{
		{Name: "warmup", DurationSec: 300, TargetType: workout.TargetBaselinePercent, TargetValue: "55"},
		{Name: "work", DurationSec: 600, TargetType: workout.TargetDual, TargetValue: "88/90"},
		{DurationSec: 120, TargetType: workout.TargetNone},
	}}
}

// exerciseStore checks the behaviour every ControlStore must share.
func exerciseStore(t *testing.T, s ControlStore) {
	ctx := context.Background()

	_, err := s.LoadWorkout(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.LoadStatus(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	bindings, err := s.LoadBindings(ctx)
	require.NoError(t, err)
	assert.Empty(t, bindings)

	require.NoError(t, s.SaveWorkout(ctx, sampleWorkout()))
	w, err := s.LoadWorkout(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleWorkout(), w)

	st := session.Status{
		SessionID:         "0b7c6f1e-3a5d-4c4e-9f5e-2d9b8a1c0e11",
		State:             session.StateRunning,
		SegmentIndex:      1,
		SegmentCount:      3,
		ElapsedSec:        412,
		SegmentElapsedSec: 112,
		UpdatedAt:         time.Date(2026, 3, 1, 9, 7, 0, 0, time.UTC),
	}
	require.NoError(t, s.SaveStatus(ctx, st))
	got, err := s.LoadStatus(ctx)
	require.NoError(t, err)
	assert.True(t, st.UpdatedAt.Equal(got.UpdatedAt))
	got.UpdatedAt = st.UpdatedAt
	assert.Equal(t, st, got)

	require.NoError(t, s.SaveBinding(ctx, 0, tracks.Binding{DeviceID: 0x1A2B3, Class: tracks.ClassSmartTrainer}))
	require.NoError(t, s.SaveBinding(ctx, 4, tracks.Binding{DeviceID: 77, Class: tracks.ClassHeartRate}))
	require.NoError(t, s.SaveBinding(ctx, 0, tracks.Binding{DeviceID: 0x1A2B3, Class: tracks.ClassPowerMeter}))
	require.NoError(t, s.DeleteBinding(ctx, 4))
	require.NoError(t, s.DeleteBinding(ctx, 9))

	bindings, err = s.LoadBindings(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int]tracks.Binding{0: {DeviceID: 0x1A2B3, Class: tracks.ClassPowerMeter}}, bindings)

	require.NoError(t, s.SaveBaseline(ctx, 0, 250))
	require.NoError(t, s.SaveBaseline(ctx, 3, 187.5))
	require.NoError(t, s.SaveBaseline(ctx, 0, 260))
	baselines, err := s.LoadBaselines(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int]float64{0: 260, 3: 187.5}, baselines)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	exerciseStore(t, s)
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "control.json")
	s, err := NewFileStore(path, testLogger())
	require.NoError(t, err)
	exerciseStore(t, s)

	reopened, err := NewFileStore(path, testLogger())
	require.NoError(t, err)
	w, err := reopened.LoadWorkout(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Sweet Spot", w.Name)
	baselines, err := reopened.LoadBaselines(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 260.0, baselines[0])
}

func TestFileStore_CorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "control.json")
	s, err := NewFileStore(path, testLogger())
	require.NoError(t, err)
	require.NoError(t, s.SaveBaseline(context.Background(), 1, 200))

	require.NoError(t, writeFile(path, "{not json"))
	_, err = NewFileStore(path, testLogger())
	assert.Error(t, err)
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "control.db")
	s, err := OpenSQLite(path, testLogger())
	require.NoError(t, err)
	exerciseStore(t, s)
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite(path, testLogger())
	require.NoError(t, err)
	defer reopened.Close()
	bindings, err := reopened.LoadBindings(context.Background())
	require.NoError(t, err)
	assert.Len(t, bindings, 1)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := newRedisStore(client, "", testLogger())
	defer s.Close()

	exerciseStore(t, s)

	assert.True(t, mr.Exists("trainer:workout"))
	assert.Equal(t, "260", mr.HGet("trainer:baselines", "0"))
}

func TestNewRedisStore_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisStore(context.Background(), RedisConfig{Addr: addr}, testLogger())
	assert.Error(t, err)
}

func TestOpen_Drivers(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Config{Driver: DriverNone}, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, Config{Driver: DriverFile, Path: filepath.Join(t.TempDir(), "c.json")}, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	mr := miniredis.RunT(t)
	s, err = Open(ctx, Config{Driver: DriverRedis, RedisAddr: mr.Addr(), RedisPrefix: "t1:"}, testLogger())
	require.NoError(t, err)
	require.NoError(t, s.SaveBaseline(ctx, 2, 180))
	assert.Equal(t, "180", mr.HGet("t1:baselines", "2"))
	require.NoError(t, s.Close())

	_, err = Open(ctx, Config{Driver: "etcd"}, testLogger())
	assert.Error(t, err)
}
