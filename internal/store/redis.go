package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lowaak/smart-trainer/trainer-engine/internal/session"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/tracks"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/workout"
)

// DefaultRedisPrefix namespaces every key the RedisStore writes.
const DefaultRedisPrefix = "trainer:"

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisStore keeps the control surface in Redis so several processes can
// share it. Bindings and baselines are hashes keyed by track.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *log.Logger
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig, logger *log.Logger) (*RedisStore, error) {
	if logger == nil {
		panic("RedisStore: logger cannot be nil")
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("store: redis connection failed: %w", err)
	}
	logger.Printf("RedisStore: connected to %s db %d", cfg.Addr, cfg.DB)
	return newRedisStore(client, cfg.Prefix, logger), nil
}

func newRedisStore(client *redis.Client, prefix string, logger *log.Logger) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix, logger: logger}
}

func (s *RedisStore) key(name string) string {
	return s.prefix + name
}

func (s *RedisStore) getJSON(ctx context.Context, name string, v any) error {
	raw, err := s.client.Get(ctx, s.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("store: redis get %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("store: decode %s: %w", name, err)
	}
	return nil
}

func (s *RedisStore) setJSON(ctx context.Context, name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", name, err)
	}
	if err := s.client.Set(ctx, s.key(name), raw, 0).Err(); err != nil {
		return fmt.Errorf("store: redis set %s: %w", name, err)
	}
	return nil
}

func (s *RedisStore) LoadWorkout(ctx context.Context) (workout.Workout, error) {
	var w workout.Workout
	if err := s.getJSON(ctx, docWorkout, &w); err != nil {
		return workout.Workout{}, err
	}
	return w, nil
}

func (s *RedisStore) SaveWorkout(ctx context.Context, w workout.Workout) error {
	return s.setJSON(ctx, docWorkout, w)
}

func (s *RedisStore) LoadStatus(ctx context.Context) (session.Status, error) {
	var st session.Status
	if err := s.getJSON(ctx, docStatus, &st); err != nil {
		return session.Status{}, err
	}
	return st, nil
}

func (s *RedisStore) SaveStatus(ctx context.Context, st session.Status) error {
	return s.setJSON(ctx, docStatus, st)
}

func (s *RedisStore) LoadBindings(ctx context.Context) (map[int]tracks.Binding, error) {
	fields, err := s.client.HGetAll(ctx, s.key("bindings")).Result()
	if err != nil {
		return nil, fmt.Errorf("store: redis load bindings: %w", err)
	}
	out := make(map[int]tracks.Binding, len(fields))
	for field, raw := range fields {
		track, err := parseTrackKey(field)
		if err != nil {
			return nil, err
		}
		var b tracks.Binding
		if err := json.Unmarshal([]byte(raw), &b); err != nil {
			return nil, fmt.Errorf("store: decode binding %d: %w", track, err)
		}
		out[track] = b
	}
	return out, nil
}

func (s *RedisStore) SaveBinding(ctx context.Context, track int, b tracks.Binding) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("store: encode binding %d: %w", track, err)
	}
	if err := s.client.HSet(ctx, s.key("bindings"), trackKey(track), raw).Err(); err != nil {
		return fmt.Errorf("store: redis save binding %d: %w", track, err)
	}
	return nil
}

func (s *RedisStore) DeleteBinding(ctx context.Context, track int) error {
	if err := s.client.HDel(ctx, s.key("bindings"), trackKey(track)).Err(); err != nil {
		return fmt.Errorf("store: redis delete binding %d: %w", track, err)
	}
	return nil
}

func (s *RedisStore) LoadBaselines(ctx context.Context) (map[int]float64, error) {
	fields, err := s.client.HGetAll(ctx, s.key("baselines")).Result()
	if err != nil {
		return nil, fmt.Errorf("store: redis load baselines: %w", err)
	}
	out := make(map[int]float64, len(fields))
	for field, raw := range fields {
		track, err := parseTrackKey(field)
		if err != nil {
			return nil, err
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("store: baseline %d: %w", track, err)
		}
		out[track] = v
	}
	return out, nil
}

func (s *RedisStore) SaveBaseline(ctx context.Context, track int, baseline float64) error {
	value := strconv.FormatFloat(baseline, 'f', -1, 64)
	if err := s.client.HSet(ctx, s.key("baselines"), trackKey(track), value).Err(); err != nil {
		return fmt.Errorf("store: redis save baseline %d: %w", track, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
