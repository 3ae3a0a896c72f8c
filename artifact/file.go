package artifact

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kbukum/recpipe/errors"
)

// FileStore keeps each key as a file below a root directory. Writes go
// to a temporary file that is renamed into place.
type FileStore struct {
	root string
}

// NewFileStore creates root if needed.
func NewFileStore(root string) (*FileStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Storage("open", fmt.Errorf("resolve %s: %w", root, err))
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, errors.Storage("open", err)
	}
	return &FileStore{root: abs}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// Put implements Store.
func (s *FileStore) Put(_ context.Context, key string, data []byte) error {
	if err := ValidKey(key); err != nil {
		return err
	}
	full := s.path(key)
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return errors.Storage("put", err).WithDetail("key", key)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(full)+"-*")
	if err != nil {
		return errors.Storage("put", err).WithDetail("key", key)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Storage("put", err).WithDetail("key", key)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Storage("put", err).WithDetail("key", key)
	}
	if err := tmp.Close(); err != nil {
		return errors.Storage("put", err).WithDetail("key", key)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return errors.Storage("put", err).WithDetail("key", key)
	}
	return nil
}

// Get implements Store.
func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	if err := ValidKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("artifact", key)
		}
		return nil, errors.Storage("get", err).WithDetail("key", key)
	}
	return data, nil
}

// Delete implements Store. Deleting a missing key is not an error.
func (s *FileStore) Delete(_ context.Context, key string) error {
	if err := ValidKey(key); err != nil {
		return err
	}
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return errors.Storage("delete", err).WithDetail("key", key)
	}
	return nil
}

// List implements Store.
func (s *FileStore) List(_ context.Context, prefix string) ([]string, error) {
	keys := []string{}
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		if key := filepath.ToSlash(rel); strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Storage("list", err).WithDetail("prefix", prefix)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close implements Store.
func (s *FileStore) Close() error { return nil }

var _ Store = (*FileStore)(nil)
