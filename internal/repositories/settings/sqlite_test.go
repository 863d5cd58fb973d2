package settings

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE moments_setting (
  id    INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL,
  name  TEXT UNIQUE NOT NULL,
  value TEXT NOT NULL
);`)
	require.NoError(t, err)
	return db
}

func TestSetAndGet(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "owner", "did:example:alice"))

	v, ok, err := r.Get(ctx, "owner")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "did:example:alice", v)
}

func TestGet_Absent(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	v, ok, err := r.Get(context.Background(), "owner")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, v)
}

func TestSet_UpsertKeepsSingleRow(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "access", "public"))
	require.NoError(t, r.Set(ctx, "access", "private"))
	require.NoError(t, r.Set(ctx, "access", "private"))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM moments_setting WHERE name='access'`).Scan(&n))
	assert.Equal(t, 1, n)

	v, _, err := r.Get(ctx, "access")
	require.NoError(t, err)
	assert.Equal(t, "private", v)
}

func TestList_ReturnsAllPairs(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "owner", "bob"))
	require.NoError(t, r.Set(ctx, "access", "public"))

	m, err := r.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"owner": "bob", "access": "public"}, m)
}

func TestErrorsAreWrapped(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()
	require.NoError(t, db.Close())

	_, _, err := r.Get(ctx, "owner")
	require.ErrorContains(t, err, "failed to get setting[owner]")

	err = r.Set(ctx, "owner", "x")
	require.ErrorContains(t, err, "failed to set setting[owner]")

	_, err = r.List(ctx)
	require.ErrorContains(t, err, "failed to list settings")
}
