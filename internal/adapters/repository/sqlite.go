package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/okian/footfall/internal/domain/model"
	"github.com/okian/footfall/pkg/logger"
	"github.com/okian/footfall/pkg/metrics"
)

const (
	sqliteDriver      = "sqlite"
	memoryDSN         = ":memory:"
	dbDirPermission   = 0o755
	timestampLayout   = time.RFC3339Nano
	busyTimeoutMillis = 5000
)

// SQLiteStore persists identities and events in a single SQLite file and
// keeps every identity embedding in an in-memory index for matching.
type SQLiteStore struct {
	db      *sql.DB
	mu      sync.Mutex // guards catalog and serializes writes
	catalog catalog
	rows    int // visitor rows, including ones the index skipped at load
	closed  bool

	logger logger.Logger
}

var _ Store = (*SQLiteStore)(nil)

// OpenDB opens path with the pragmas the store relies on. Parent
// directories are created as needed.
func OpenDB(ctx context.Context, path string) (*sql.DB, error) {
	if path != memoryDSN {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, dbDirPermission); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
	}

	db, err := sql.Open(sqliteDriver, path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One connection keeps ":memory:" databases and pragmas consistent.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeoutMillis),
	}
	if path != memoryDSN {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	return db, nil
}

// OpenSQLite opens (creating and migrating if needed) the store at path and
// loads the stored identities into the match index.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	o := newOptions("sqlite-store", opts)

	db, err := OpenDB(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := MigrateUp(db, o.logger.Named("migrate")); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteStore{
		db:      db,
		catalog: catalog{index: o.index},
		logger:  o.logger,
	}
	if err := s.load(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	metrics.UpdateIdentitiesStored(s.rows)
	s.logger.Info(ctx, "store opened",
		logger.String("path", path),
		logger.Int("identities", s.rows),
		logger.Int("indexed", s.catalog.len()),
	)
	return s, nil
}

func (s *SQLiteStore) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, embedding FROM visitors ORDER BY id`)
	if err != nil {
		return fmt.Errorf("load visitors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id  int64
			raw string
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return fmt.Errorf("scan visitor: %w", err)
		}
		s.rows++
		var vec []float64
		if err := json.Unmarshal([]byte(raw), &vec); err != nil || len(vec) == 0 {
			s.logger.Warn(ctx, "skipping visitor with unreadable embedding", logger.Int64("identity_id", id))
			continue
		}
		if s.catalog.dim != 0 && len(vec) != s.catalog.dim {
			s.logger.Warn(ctx, "skipping visitor with mismatched embedding size",
				logger.Int64("identity_id", id),
				logger.Int("size", len(vec)),
			)
			continue
		}
		s.catalog.add(id, vec)
	}
	return rows.Err()
}

// FindBestMatch implements IdentityStore.
func (s *SQLiteStore) FindBestMatch(_ context.Context, vec []float64, threshold float64) (model.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.Match{}, ErrClosed
	}
	return s.catalog.best(vec, threshold)
}

// Register implements IdentityStore.
func (s *SQLiteStore) Register(ctx context.Context, vec []float64, imagePath string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.register(ctx, vec, imagePath, at)
}

// MatchOrRegister implements IdentityStore.
func (s *SQLiteStore) MatchOrRegister(ctx context.Context, vec []float64, threshold float64, imagePath string, at time.Time) (model.Resolution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.Resolution{}, ErrClosed
	}

	m, err := s.catalog.best(vec, threshold)
	if err != nil || m.Found {
		return model.Resolution{Match: m}, err
	}
	id, err := s.register(ctx, vec, imagePath, at)
	if err != nil {
		return model.Resolution{Match: m}, err
	}
	return model.Resolution{
		Match:   model.Match{IdentityID: id, Similarity: m.Similarity},
		Created: true,
	}, nil
}

func (s *SQLiteStore) register(ctx context.Context, vec []float64, imagePath string, at time.Time) (int64, error) {
	if s.closed {
		return 0, ErrClosed
	}
	n, err := s.catalog.normalize(vec)
	if err != nil {
		return 0, err
	}
	raw, err := json.Marshal(n)
	if err != nil {
		return 0, fmt.Errorf("encode embedding: %w", err)
	}

	start := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO visitors (embedding, first_seen, image_path) VALUES (?, ?, ?)`,
		string(raw), at.UTC().Format(timestampLayout), imagePath,
	)
	metrics.RecordStoreLatency("register", time.Since(start))
	if err != nil {
		metrics.RecordPersistenceError("register")
		return 0, fmt.Errorf("insert visitor: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		metrics.RecordPersistenceError("register")
		return 0, fmt.Errorf("visitor id: %w", err)
	}

	s.catalog.add(id, n)
	s.rows++
	metrics.RecordIdentityRegistered()
	metrics.UpdateIdentitiesStored(s.rows)
	return id, nil
}

// Count implements IdentityStore. It counts visitor rows, so it agrees with
// Stats even when some stored embeddings could not be indexed.
func (s *SQLiteStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	return s.rows, nil
}

// AppendEvent implements EventLog.
func (s *SQLiteStore) AppendEvent(ctx context.Context, ev model.Event) (int64, error) {
	if !ev.Kind.Valid() {
		return 0, fmt.Errorf("%w: kind %q", ErrInvalidEvent, ev.Kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	start := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO events (face_id, event_type, timestamp, image_path, stream, track_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.IdentityID, string(ev.Kind), ev.Timestamp.UTC().Format(timestampLayout),
		ev.ImagePath, ev.Stream, ev.TrackID,
	)
	metrics.RecordStoreLatency("append_event", time.Since(start))
	if err != nil {
		metrics.RecordPersistenceError("append_event")
		return 0, fmt.Errorf("insert %s event: %w", ev.Kind, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		metrics.RecordPersistenceError("append_event")
		return 0, fmt.Errorf("event id: %w", err)
	}
	metrics.RecordEvent(string(ev.Kind))
	return id, nil
}

// Identity implements Reader.
func (s *SQLiteStore) Identity(ctx context.Context, id int64) (model.Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, embedding, first_seen, image_path FROM visitors WHERE id = ?`, id)
	ident, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Identity{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return ident, err
}

// Identities implements Reader.
func (s *SQLiteStore) Identities(ctx context.Context, offset, limit int) ([]model.Identity, error) {
	if offset < 0 || limit < 0 {
		return nil, ErrInvalidLimit
	}
	if limit == 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, embedding, first_seen, image_path FROM visitors ORDER BY id LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list visitors: %w", err)
	}
	defer rows.Close()

	out := make([]model.Identity, 0)
	for rows.Next() {
		ident, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ident)
	}
	return out, rows.Err()
}

// Events implements Reader.
func (s *SQLiteStore) Events(ctx context.Context, q EventQuery) ([]model.Event, error) {
	if q.Limit < 0 {
		return nil, ErrInvalidLimit
	}

	var (
		where []string
		args  []any
	)
	if q.IdentityID != 0 {
		where = append(where, "face_id = ?")
		args = append(args, q.IdentityID)
	}
	if q.Kind != "" {
		where = append(where, "event_type = ?")
		args = append(args, string(q.Kind))
	}
	if q.Stream != "" {
		where = append(where, "stream = ?")
		args = append(args, q.Stream)
	}

	query := `SELECT id, face_id, event_type, timestamp, image_path, stream, track_id FROM events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	out := make([]model.Event, 0)
	for rows.Next() {
		var (
			ev   model.Event
			kind string
			ts   string
		)
		if err := rows.Scan(&ev.ID, &ev.IdentityID, &kind, &ts, &ev.ImagePath, &ev.Stream, &ev.TrackID); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind = model.EventKind(kind)
		if ev.Timestamp, err = time.Parse(timestampLayout, ts); err != nil {
			return nil, fmt.Errorf("event %d timestamp: %w", ev.ID, err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Stats implements Reader.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM visitors`).Scan(&st.Visitors); err != nil {
		return Stats{}, fmt.Errorf("count visitors: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT event_type, COUNT(*) FROM events GROUP BY event_type`)
	if err != nil {
		return Stats{}, fmt.Errorf("count events: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			kind string
			n    int
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return Stats{}, fmt.Errorf("scan event count: %w", err)
		}
		switch model.EventKind(kind) {
		case model.EventEntry:
			st.Entries = n
		case model.EventExit:
			st.Exits = n
		}
	}
	return st, rows.Err()
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(r rowScanner) (model.Identity, error) {
	var (
		ident model.Identity
		raw   string
		ts    string
	)
	if err := r.Scan(&ident.ID, &raw, &ts, &ident.ImagePath); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Identity{}, err
		}
		return model.Identity{}, fmt.Errorf("scan visitor: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &ident.Embedding); err != nil {
		return model.Identity{}, fmt.Errorf("visitor %d embedding: %w", ident.ID, err)
	}
	t, err := time.Parse(timestampLayout, ts)
	if err != nil {
		return model.Identity{}, fmt.Errorf("visitor %d first_seen: %w", ident.ID, err)
	}
	ident.FirstSeen = t
	return ident, nil
}
