// Package filex resolves and creates on-disk locations for service data.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// ServiceDir returns <root>/<user>/<service>.
func ServiceDir(root, user, service string) string {
	return filepath.Join(root, user, service)
}

// EnsureDir creates dir and its parents when missing and returns the
// absolute path. An empty dir means the working directory.
func EnsureDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}

	if err := os.MkdirAll(abs, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", abs, err)
	}

	return abs, nil
}
