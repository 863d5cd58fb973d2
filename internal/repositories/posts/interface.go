package posts

import (
	"context"

	"github.com/dmitrijs2005/moments/internal/models"
)

// Repository describes storage operations for posts.
type Repository interface {
	// Insert appends a post and returns its id.
	Insert(ctx context.Context, p models.NewPost) (int64, error)

	// SoftDelete marks one post deleted and reports whether a live post was
	// changed. Deleting an already deleted or unknown id is not an error.
	SoftDelete(ctx context.Context, id int64) (bool, error)

	// SoftDeleteAll marks every live post deleted and returns how many were.
	SoftDeleteAll(ctx context.Context) (int64, error)

	// ListSince returns live posts with time > after, newest first. When
	// after <= 0 all live posts are returned; limit <= 0 means no cap.
	ListSince(ctx context.Context, after int64, limit int) ([]models.Post, error)

	// GetByID returns a live post or common.ErrNotFound.
	GetByID(ctx context.Context, id int64) (*models.Post, error)

	// HasAttachment reports whether a live post references key.
	HasAttachment(ctx context.Context, key string) (bool, error)
}
