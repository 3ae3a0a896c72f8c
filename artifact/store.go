package artifact

import (
	"context"
	"fmt"
	"strings"

	"github.com/kbukum/recpipe/errors"
)

// Store is a flat key/value store for pipeline artifacts. Keys are
// slash-separated relative paths such as "pipelines/knn/definition".
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	// Get returns NOT_FOUND for a missing key.
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	// List returns the keys under prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// ValidKey rejects empty, absolute and parent-relative keys.
func ValidKey(key string) error {
	switch {
	case key == "":
		return errors.InvalidInput("key", "artifact key is empty")
	case strings.HasPrefix(key, "/"), strings.HasSuffix(key, "/"):
		return errors.InvalidInput("key", fmt.Sprintf("artifact key %q must be a relative path", key))
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return errors.InvalidInput("key", fmt.Sprintf("artifact key %q has an invalid segment", key))
		}
	}
	return nil
}
