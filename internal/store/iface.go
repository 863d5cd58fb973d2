package store

import (
	"context"

	"github.com/dmitrijs2005/moments/internal/models"
)

// Repository is the full set of store operations. The sync engine and the
// dispatcher depend on narrower subsets of it.
type Repository interface {
	Close() error

	Owner(ctx context.Context) (string, error)
	SetOwner(ctx context.Context, owner string) error
	Visibility(ctx context.Context) (models.Visibility, error)
	SetVisibility(ctx context.Context, v models.Visibility) error

	Insert(ctx context.Context, p models.NewPost) (int64, error)
	SoftDelete(ctx context.Context, id int64) (bool, error)
	SoftDeleteAll(ctx context.Context) (int64, error)
	ListSince(ctx context.Context, after int64, limit int) ([]models.Post, int64, error)
	GetOne(ctx context.Context, id int64) (*models.Post, error)
	HasAttachment(ctx context.Context, key string) (bool, error)
}

// Compile-time check that *Store implements Repository.
var _ Repository = (*Store)(nil)
