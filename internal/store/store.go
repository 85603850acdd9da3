// Package store persists the engine's control surface: the loaded workout,
// the session status record, per-track bindings and per-track baselines.
package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/lowaak/smart-trainer/trainer-engine/internal/session"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/tracks"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/workout"
)

// ErrNotFound is returned when a record has never been written.
var ErrNotFound = errors.New("store: not found")

// ControlStore is the shared store collaborators use to configure and
// observe the engine.
type ControlStore interface {
	LoadWorkout(ctx context.Context) (workout.Workout, error)
	SaveWorkout(ctx context.Context, w workout.Workout) error

	LoadStatus(ctx context.Context) (session.Status, error)
	SaveStatus(ctx context.Context, st session.Status) error

	LoadBindings(ctx context.Context) (map[int]tracks.Binding, error)
	SaveBinding(ctx context.Context, track int, b tracks.Binding) error
	DeleteBinding(ctx context.Context, track int) error

	LoadBaselines(ctx context.Context) (map[int]float64, error)
	SaveBaseline(ctx context.Context, track int, baseline float64) error

	Close() error
}

// Drivers
const (
	DriverNone   = "none"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Config selects and configures a store driver.
type Config struct {
	Driver      string `mapstructure:"driver"`
	Path        string `mapstructure:"path"`
	RedisAddr   string `mapstructure:"redis_addr"`
	RedisDB     int    `mapstructure:"redis_db"`
	RedisPrefix string `mapstructure:"redis_prefix"`
}

// Open creates the store selected by cfg.Driver.
func Open(ctx context.Context, cfg Config, logger *log.Logger) (ControlStore, error) {
	switch cfg.Driver {
	case "", DriverNone:
		return NewMemoryStore(), nil
	case DriverFile:
		return NewFileStore(cfg.Path, logger)
	case DriverSQLite:
		return OpenSQLite(cfg.Path, logger)
	case DriverRedis:
		return NewRedisStore(ctx, RedisConfig{Addr: cfg.RedisAddr, DB: cfg.RedisDB, Prefix: cfg.RedisPrefix}, logger)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

func trackKey(track int) string {
	return strconv.Itoa(track)
}

func parseTrackKey(key string) (int, error) {
	track, err := strconv.Atoi(key)
	if err != nil {
		return 0, fmt.Errorf("store: bad track key %q: %w", key, err)
	}
	return track, nil
}
