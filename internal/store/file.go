package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"

	"github.com/lowaak/smart-trainer/trainer-engine/internal/session"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/tracks"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/workout"
)

// fileDocument is the on-disk layout of a FileStore.
type fileDocument struct {
	Workout   *workout.Workout          `json:"workout,omitempty"`
	Status    *session.Status           `json:"status,omitempty"`
	Bindings  map[string]tracks.Binding `json:"bindings"`
	Baselines map[string]float64        `json:"baselines"`
}

// FileStore keeps the control surface in a single JSON document that is
// rewritten atomically on every change.
type FileStore struct {
	mu       sync.Mutex
	filePath string
	doc      fileDocument
	logger   *log.Logger
}

// DefaultFilePath returns ~/.trainer-engine/control.json.
func DefaultFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".trainer-engine", "control.json")
}

// NewFileStore opens the document at path, creating an empty one in memory
// if it does not exist yet. An empty path selects DefaultFilePath.
func NewFileStore(path string, logger *log.Logger) (*FileStore, error) {
	if logger == nil {
		panic("FileStore: logger cannot be nil")
	}
	if path == "" {
		path = DefaultFilePath()
	}
	s := &FileStore{filePath: path, logger: logger}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the document location.
func (s *FileStore) Path() string {
	return s.filePath
}

func (s *FileStore) load() error {
	s.doc = fileDocument{
		Bindings:  make(map[string]tracks.Binding),
		Baselines: make(map[string]float64),
	}
	raw, err := os.ReadFile(s.filePath)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Printf("FileStore: load %s (no existing file)", s.filePath)
		return nil
	}
	if err != nil {
		return fmt.Errorf("store: read %s: %w", s.filePath, err)
	}
	if err := json.Unmarshal(raw, &s.doc); err != nil {
		return fmt.Errorf("store: parse %s: %w", s.filePath, err)
	}
	if s.doc.Bindings == nil {
		s.doc.Bindings = make(map[string]tracks.Binding)
	}
	if s.doc.Baselines == nil {
		s.doc.Baselines = make(map[string]float64)
	}
	s.logger.Printf("FileStore: loaded %s (%d bindings, %d baselines)", s.filePath, len(s.doc.Bindings), len(s.doc.Baselines))
	return nil
}

// saveLocked writes the document. MUST be called with mu held.
func (s *FileStore) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		return fmt.Errorf("store: mkdir: %w", err)
	}
	raw, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal: %w", err)
	}

	pending, err := renameio.NewPendingFile(s.filePath, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("store: create pending file: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			s.logger.Printf("FileStore: cleanup pending file: %v", err)
		}
	}()
	if _, err := pending.Write(raw); err != nil {
		return fmt.Errorf("store: write: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("store: replace %s: %w", s.filePath, err)
	}
	return nil
}

func (s *FileStore) LoadWorkout(context.Context) (workout.Workout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc.Workout == nil {
		return workout.Workout{}, ErrNotFound
	}
	return s.doc.Workout.Clone(), nil
}

func (s *FileStore) SaveWorkout(_ context.Context, w workout.Workout) error {
	w = w.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Workout = &w
	return s.saveLocked()
}

func (s *FileStore) LoadStatus(context.Context) (session.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc.Status == nil {
		return session.Status{}, ErrNotFound
	}
	return *s.doc.Status, nil
}

func (s *FileStore) SaveStatus(_ context.Context, st session.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Status = &st
	return s.saveLocked()
}

func (s *FileStore) LoadBindings(context.Context) (map[int]tracks.Binding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]tracks.Binding, len(s.doc.Bindings))
	for key, b := range s.doc.Bindings {
		track, err := parseTrackKey(key)
		if err != nil {
			return nil, err
		}
		out[track] = b
	}
	return out, nil
}

func (s *FileStore) SaveBinding(_ context.Context, track int, b tracks.Binding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Bindings[trackKey(track)] = b
	return s.saveLocked()
}

func (s *FileStore) DeleteBinding(_ context.Context, track int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.doc.Bindings[trackKey(track)]; !ok {
		return nil
	}
	delete(s.doc.Bindings, trackKey(track))
	return s.saveLocked()
}

func (s *FileStore) LoadBaselines(context.Context) (map[int]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]float64, len(s.doc.Baselines))
	for key, v := range s.doc.Baselines {
		track, err := parseTrackKey(key)
		if err != nil {
			return nil, err
		}
		out[track] = v
	}
	return out, nil
}

func (s *FileStore) SaveBaseline(_ context.Context, track int, baseline float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Baselines[trackKey(track)] = baseline
	return s.saveLocked()
}

func (s *FileStore) Close() error { return nil }
