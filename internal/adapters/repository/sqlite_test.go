package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/footfall/internal/domain/embedding"
	"github.com/okian/footfall/internal/domain/model"
	"github.com/okian/footfall/pkg/logger"
)

func openTestStore(t *testing.T, path string) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	return s
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "visitors.db")
	first := time.Date(2026, 1, 2, 10, 0, 0, 123456789, time.UTC)

	s := openTestStore(t, path)
	id, err := s.Register(ctx, []float64{0.6, 0.8}, "data/registered_faces/face_1.jpg", first)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	require.NoError(t, s.Close())

	// Reopen: identities are reloaded into the index.
	s = openTestStore(t, path)
	defer s.Close()

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	ident, err := s.Identity(ctx, id)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, embedding.Cosine([]float64{0.6, 0.8}, ident.Embedding), 1e-6)
	assert.True(t, ident.FirstSeen.Equal(first))
	assert.Equal(t, "data/registered_faces/face_1.jpg", ident.ImagePath)

	m, err := s.FindBestMatch(ctx, []float64{0.6, 0.8}, 0.99)
	require.NoError(t, err)
	assert.True(t, m.Found)
	assert.Equal(t, id, m.IdentityID)
	assert.InDelta(t, 1.0, m.Similarity, 1e-6)
}

func TestSQLiteStore_CountIncludesUnindexedRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "visitors.db")

	s := openTestStore(t, path)
	_, err := s.Register(ctx, []float64{1, 0}, "", time.Now())
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO visitors (embedding, first_seen, image_path) VALUES (?, ?, ?)`,
		"not json", time.Now().UTC().Format(timestampLayout), "")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s = openTestStore(t, path)
	defer s.Close()

	count, err := s.Count(ctx)
	require.NoError(t, err)
	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, st.Visitors, count)
	assert.Equal(t, 1, s.catalog.len())

	// The next identity still gets a fresh id and the count follows it.
	id, err := s.Register(ctx, []float64{0, 1}, "", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)
	count, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestSQLiteStore_EmptyMatch(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "v.db"))
	defer s.Close()

	m, err := s.FindBestMatch(context.Background(), []float64{1, 0}, 0.6)
	require.NoError(t, err)
	assert.False(t, m.Found)
	assert.Zero(t, m.Similarity)
}

func TestSQLiteStore_Events(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, filepath.Join(t.TempDir(), "v.db"))
	defer s.Close()

	at := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	res, err := s.MatchOrRegister(ctx, []float64{1, 0}, 0.6, "face_1.jpg", at)
	require.NoError(t, err)
	require.True(t, res.Created)

	entryID, err := s.AppendEvent(ctx, model.Event{
		IdentityID: res.IdentityID, Kind: model.EventEntry, Timestamp: at,
		ImagePath: "entries/entry_1.jpg", Stream: "cam-1", TrackID: 3,
	})
	require.NoError(t, err)
	exitID, err := s.AppendEvent(ctx, model.Event{
		IdentityID: res.IdentityID, Kind: model.EventExit, Timestamp: at.Add(time.Second),
		Stream: "cam-1", TrackID: 3,
	})
	require.NoError(t, err)
	assert.Greater(t, exitID, entryID)

	events, err := s.Events(ctx, EventQuery{IdentityID: res.IdentityID})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.EventExit, events[0].Kind)
	assert.Equal(t, model.EventEntry, events[1].Kind)
	assert.Equal(t, "cam-1", events[1].Stream)
	assert.Equal(t, 3, events[1].TrackID)
	assert.True(t, events[1].Timestamp.Equal(at))

	limited, err := s.Events(ctx, EventQuery{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, exitID, limited[0].ID)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Visitors: 1, Entries: 1, Exits: 1}, st)

	_, err = s.AppendEvent(ctx, model.Event{IdentityID: 99, Kind: model.EventEntry, Timestamp: at})
	assert.Error(t, err, "foreign key must reject unknown visitors")

	_, err = s.AppendEvent(ctx, model.Event{IdentityID: 1, Kind: "left", Timestamp: at})
	assert.ErrorIs(t, err, ErrInvalidEvent)

	_, err = s.Identity(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_Identities(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, filepath.Join(t.TempDir(), "v.db"))
	defer s.Close()

	for _, v := range [][]float64{{1, 0}, {0, 1}, {-1, 0}} {
		_, err := s.Register(ctx, v, "", time.Now())
		require.NoError(t, err)
	}

	all, err := s.Identities(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	page, err := s.Identities(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(2), page[0].ID)

	_, err = s.Identities(ctx, -1, 0)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestSQLiteStore_MemoryDSN(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, ":memory:")
	defer s.Close()

	_, err := s.Register(ctx, []float64{0.6, 0.8}, "", time.Now())
	require.NoError(t, err)
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMigrations(t *testing.T) {
	ctx := context.Background()
	log := logger.Get().Named("migrate-test")

	db, err := OpenDB(ctx, filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	defer db.Close()

	version, dirty, err := MigrateVersion(db, log)
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)

	require.NoError(t, MigrateUp(db, log))
	version, _, err = MigrateVersion(db, log)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)

	// Up again is a no-op.
	require.NoError(t, MigrateUp(db, log))

	var columns int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info('events') WHERE name IN ('stream', 'track_id')`).Scan(&columns))
	assert.Equal(t, 2, columns)

	require.NoError(t, MigrateDown(db, log))
	version, _, err = MigrateVersion(db, log)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info('events') WHERE name IN ('stream', 'track_id')`).Scan(&columns))
	assert.Zero(t, columns)
}
