// Package store is the moments repository: durable settings (owner and
// visibility) and the soft-deletable post list, backed by a single SQLite
// file.
//
// The database handle is limited to one open connection, so every
// operation is serialized by database/sql itself; combined with
// AUTOINCREMENT this keeps ids strictly increasing under concurrent callers.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/moments/internal/common"
	"github.com/dmitrijs2005/moments/internal/dbx"
	"github.com/dmitrijs2005/moments/internal/migrations"
	"github.com/dmitrijs2005/moments/internal/models"
	"github.com/dmitrijs2005/moments/internal/repositories/posts"
	"github.com/dmitrijs2005/moments/internal/repositories/settings"

	_ "modernc.org/sqlite"
)

// Store owns the database handle and the repositories built on it.
type Store struct {
	db       *sql.DB
	settings settings.Repository
	posts    posts.Repository
	retry    dbx.RetryConfig
}

// goose keeps its configuration in package globals.
var migrateMu sync.Mutex

// RunMigrations applies the embedded goose migrations to db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

// Open opens or creates the database file at path and brings the schema up
// to date. Any failure is reported as common.ErrStorageUnavailable.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", common.ErrStorageUnavailable, path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: open %s: %w", common.ErrStorageUnavailable, path, err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrate: %w", common.ErrStorageUnavailable, err)
	}

	return &Store{
		db:       db,
		settings: settings.NewSQLiteRepository(db),
		posts:    posts.NewSQLiteRepository(db),
		retry:    dbx.DefaultRetryConfig,
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func writeFailed(err error) error {
	return fmt.Errorf("%w: %w", common.ErrWriteFailed, err)
}

// ---------------------------------------------------------------------------
// Settings
// ---------------------------------------------------------------------------

// Owner returns the stored owner identity, or "" when none was assigned.
func (s *Store) Owner(ctx context.Context) (string, error) {
	v, _, err := s.settings.Get(ctx, models.SettingOwner)
	return v, err
}

func (s *Store) SetOwner(ctx context.Context, owner string) error {
	err := dbx.Retry(ctx, s.retry, func() error {
		return s.settings.Set(ctx, models.SettingOwner, owner)
	})
	if err != nil {
		return writeFailed(err)
	}
	return nil
}

// Visibility returns the stored visibility; Public when never set.
func (s *Store) Visibility(ctx context.Context) (models.Visibility, error) {
	v, ok, err := s.settings.Get(ctx, models.SettingAccess)
	if err != nil || !ok {
		return models.Public, err
	}
	return models.ParseVisibility(v)
}

func (s *Store) SetVisibility(ctx context.Context, v models.Visibility) error {
	err := dbx.Retry(ctx, s.retry, func() error {
		return s.settings.Set(ctx, models.SettingAccess, v.String())
	})
	if err != nil {
		return writeFailed(err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Posts
// ---------------------------------------------------------------------------

// Insert appends a post inside a transaction and returns its id. On failure
// nothing is written.
func (s *Store) Insert(ctx context.Context, p models.NewPost) (int64, error) {
	var id int64
	err := dbx.Retry(ctx, s.retry, func() error {
		return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			var err error
			id, err = posts.NewSQLiteRepository(tx).Insert(ctx, p)
			return err
		})
	})
	if err != nil {
		return 0, writeFailed(err)
	}
	return id, nil
}

// SoftDelete marks the post deleted and reports whether a live post changed.
// Unknown and already deleted ids are accepted.
func (s *Store) SoftDelete(ctx context.Context, id int64) (bool, error) {
	var changed bool
	err := dbx.Retry(ctx, s.retry, func() error {
		var err error
		changed, err = s.posts.SoftDelete(ctx, id)
		return err
	})
	if err != nil {
		return false, writeFailed(err)
	}
	return changed, nil
}

// SoftDeleteAll marks every live post deleted in one statement.
func (s *Store) SoftDeleteAll(ctx context.Context) (int64, error) {
	var n int64
	err := dbx.Retry(ctx, s.retry, func() error {
		var err error
		n, err = s.posts.SoftDeleteAll(ctx)
		return err
	})
	if err != nil {
		return 0, writeFailed(err)
	}
	return n, nil
}

// ListSince returns live posts created strictly after `after` (all of them
// when after <= 0), newest first, capped at limit when limit > 0. newest is
// the creation time of the first post, or 0 for an empty result.
func (s *Store) ListSince(ctx context.Context, after int64, limit int) (list []models.Post, newest int64, err error) {
	list, err = s.posts.ListSince(ctx, after, limit)
	if err != nil {
		return nil, 0, err
	}
	if len(list) > 0 {
		newest = list[0].CreatedAt
	}
	return list, newest, nil
}

// GetOne returns a live post or common.ErrNotFound.
func (s *Store) GetOne(ctx context.Context, id int64) (*models.Post, error) {
	p, err := s.posts.GetByID(ctx, id)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("get post %d: %w", id, err)
	}
	return p, err
}

// HasAttachment reports whether a live post references the attachment key.
func (s *Store) HasAttachment(ctx context.Context, key string) (bool, error) {
	return s.posts.HasAttachment(ctx, key)
}
