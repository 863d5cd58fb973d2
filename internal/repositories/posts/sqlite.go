package posts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/moments/internal/common"
	"github.com/dmitrijs2005/moments/internal/dbx"
	"github.com/dmitrijs2005/moments/internal/models"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const postColumns = `id, type, content, time, files, access, deleted`

func (r *SQLiteRepository) Insert(ctx context.Context, p models.NewPost) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO moments_list (type, content, time, files, access) VALUES (?, ?, ?, ?, ?)`,
		p.Kind, p.Content, p.CreatedAt, p.Attachments, p.Access)
	if err != nil {
		return 0, fmt.Errorf("failed to insert post: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get inserted id: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) SoftDelete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE moments_list SET deleted=1 WHERE id=? AND deleted=0`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete post %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) SoftDeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE moments_list SET deleted=1 WHERE deleted=0`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear posts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) ListSince(ctx context.Context, after int64, limit int) ([]models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM moments_list WHERE deleted=0`
	var args []any
	if after > 0 {
		query += ` AND time > ?`
		args = append(args, after)
	}
	query += ` ORDER BY time DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select posts: %w", err)
	}
	defer rows.Close()

	result := make([]models.Post, 0)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM moments_list WHERE deleted=0 AND id=?`, id)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	return p, nil
}

func (r *SQLiteRepository) HasAttachment(ctx context.Context, key string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM moments_list WHERE deleted=0 AND files=?`, key).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to look up attachment: %w", err)
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(s scanner) (*models.Post, error) {
	var p models.Post
	if err := s.Scan(&p.ID, &p.Kind, &p.Content, &p.CreatedAt, &p.Attachments, &p.Access, &p.Deleted); err != nil {
		return nil, err
	}
	return &p, nil
}
