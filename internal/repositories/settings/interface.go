package settings

import (
	"context"
)

// Repository is a name/value store holding exactly one row per name.
type Repository interface {
	// Get returns the value for name; ok is false when the name was never set.
	Get(ctx context.Context, name string) (value string, ok bool, err error)
	// Set inserts or replaces the value for name.
	Set(ctx context.Context, name, value string) error
	List(ctx context.Context) (map[string]string, error)
}
