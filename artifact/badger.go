package artifact

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/kbukum/recpipe/errors"
	"github.com/kbukum/recpipe/logger"
)

// BadgerStore keeps artifacts in an embedded badger database.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a database at path. With inMemory set the
// path is ignored and nothing touches disk.
func OpenBadger(path string, inMemory bool, log *logger.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	if log == nil {
		log = logger.NewNop()
	}
	opts = opts.WithLogger(badgerLogger{log: log.WithComponent("badger")})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Storage("open", err).WithDetail("path", path)
	}
	return &BadgerStore{db: db}, nil
}

// Put implements Store.
func (s *BadgerStore) Put(_ context.Context, key string, data []byte) error {
	if err := ValidKey(key); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return errors.Storage("put", err).WithDetail("key", key)
	}
	return nil
}

// Get implements Store.
func (s *BadgerStore) Get(_ context.Context, key string) ([]byte, error) {
	if err := ValidKey(key); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return nil, errors.NotFound("artifact", key)
	}
	if err != nil {
		return nil, errors.Storage("get", err).WithDetail("key", key)
	}
	return data, nil
}

// Delete implements Store.
func (s *BadgerStore) Delete(_ context.Context, key string) error {
	if err := ValidKey(key); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil && !stderrors.Is(err, badger.ErrKeyNotFound) {
		return errors.Storage("delete", err).WithDetail("key", key)
	}
	return nil
}

// List implements Store. Badger iterates in key order.
func (s *BadgerStore) List(_ context.Context, prefix string) ([]string, error) {
	keys := []string{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Storage("list", err).WithDetail("prefix", prefix)
	}
	return keys, nil
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	if s.db.IsClosed() {
		return nil
	}
	return s.db.Close()
}

// Closed reports whether the database has been closed.
func (s *BadgerStore) Closed() bool { return s.db.IsClosed() }

var _ Store = (*BadgerStore)(nil)

// badgerLogger routes badger's printf logging into the recpipe logger.
// Badger is chatty at info level, so info is demoted to debug.
type badgerLogger struct {
	log *logger.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(line(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn(line(format, args...))
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug(line(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug(line(format, args...))
}

func line(format string, args ...interface{}) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}
