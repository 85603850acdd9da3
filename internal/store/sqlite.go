package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lowaak/smart-trainer/trainer-engine/internal/session"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/tracks"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/workout"
)

const sqliteBusyTimeout = 5 * time.Second

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	name  TEXT PRIMARY KEY,
	body  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS bindings (
	track     INTEGER PRIMARY KEY,
	device_id INTEGER NOT NULL,
	class     TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS baselines (
	track    INTEGER PRIMARY KEY,
	baseline REAL NOT NULL
);`

const (
	docWorkout = "workout"
	docStatus  = "status"
)

// SQLiteStore keeps the control surface in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *log.Logger
}

// OpenSQLite opens (and if needed creates) the database at path with WAL
// journaling and a busy timeout applied to every pooled connection.
func OpenSQLite(path string, logger *log.Logger) (*SQLiteStore, error) {
	if logger == nil {
		panic("SQLiteStore: logger cannot be nil")
	}
	if path == "" {
		return nil, errors.New("store: sqlite path is required")
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		path, sqliteBusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: sqlite ping: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: sqlite schema: %w", err)
	}
	logger.Printf("SQLiteStore: opened %s", path)
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) loadDocument(ctx context.Context, name string, v any) error {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE name = ?`, name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("store: load %s: %w", name, err)
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return fmt.Errorf("store: decode %s: %w", name, err)
	}
	return nil
}

func (s *SQLiteStore) saveDocument(ctx context.Context, name string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", name, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (name, body) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET body = excluded.body`, name, string(body))
	if err != nil {
		return fmt.Errorf("store: save %s: %w", name, err)
	}
	return nil
}

func (s *SQLiteStore) LoadWorkout(ctx context.Context) (workout.Workout, error) {
	var w workout.Workout
	if err := s.loadDocument(ctx, docWorkout, &w); err != nil {
		return workout.Workout{}, err
	}
	return w, nil
}

func (s *SQLiteStore) SaveWorkout(ctx context.Context, w workout.Workout) error {
	return s.saveDocument(ctx, docWorkout, w)
}

func (s *SQLiteStore) LoadStatus(ctx context.Context) (session.Status, error) {
	var st session.Status
	if err := s.loadDocument(ctx, docStatus, &st); err != nil {
		return session.Status{}, err
	}
	return st, nil
}

func (s *SQLiteStore) SaveStatus(ctx context.Context, st session.Status) error {
	return s.saveDocument(ctx, docStatus, st)
}

func (s *SQLiteStore) LoadBindings(ctx context.Context) (map[int]tracks.Binding, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT track, device_id, class FROM bindings`)
	if err != nil {
		return nil, fmt.Errorf("store: load bindings: %w", err)
	}
	defer rows.Close()

	out := make(map[int]tracks.Binding)
	for rows.Next() {
		var (
			track    int
			deviceID int64
			name     string
		)
		if err := rows.Scan(&track, &deviceID, &name); err != nil {
			return nil, fmt.Errorf("store: scan binding: %w", err)
		}
		class, err := tracks.ParseClass(name)
		if err != nil {
			return nil, fmt.Errorf("store: binding for track %d: %w", track, err)
		}
		out[track] = tracks.Binding{DeviceID: uint32(deviceID), Class: class}
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveBinding(ctx context.Context, track int, b tracks.Binding) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bindings (track, device_id, class) VALUES (?, ?, ?)
		 ON CONFLICT(track) DO UPDATE SET device_id = excluded.device_id, class = excluded.class`,
		track, int64(b.DeviceID), b.Class.String())
	if err != nil {
		return fmt.Errorf("store: save binding %d: %w", track, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteBinding(ctx context.Context, track int) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM bindings WHERE track = ?`, track); err != nil {
		return fmt.Errorf("store: delete binding %d: %w", track, err)
	}
	return nil
}

func (s *SQLiteStore) LoadBaselines(ctx context.Context) (map[int]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT track, baseline FROM baselines`)
	if err != nil {
		return nil, fmt.Errorf("store: load baselines: %w", err)
	}
	defer rows.Close()

	out := make(map[int]float64)
	for rows.Next() {
		var (
			track    int
			baseline float64
		)
		if err := rows.Scan(&track, &baseline); err != nil {
			return nil, fmt.Errorf("store: scan baseline: %w", err)
		}
		out[track] = baseline
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveBaseline(ctx context.Context, track int, baseline float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO baselines (track, baseline) VALUES (?, ?)
		 ON CONFLICT(track) DO UPDATE SET baseline = excluded.baseline`, track, baseline)
	if err != nil {
		return fmt.Errorf("store: save baseline %d: %w", track, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
