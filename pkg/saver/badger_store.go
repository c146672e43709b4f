package saver

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore keeps slots in an embedded Badger database under
// "save/<namespace>/<slot>".
type BadgerStore struct {
	db        *badger.DB
	namespace string
}

// OpenBadger opens a Badger database at path. An empty path opens an
// in-memory database.
func OpenBadger(path, namespace string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &BadgerStore{db: db, namespace: namespace}, nil
}

// Close closes the database.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}

func (b *BadgerStore) key(slot int) []byte {
	return fmt.Appendf(nil, "save/%s/%d", b.namespace, slot)
}

func (b *BadgerStore) Put(_ context.Context, slot int, payload []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(b.key(slot), payload)
	})
}

func (b *BadgerStore) Get(_ context.Context, slot int) ([]byte, error) {
	var payload []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.key(slot))
		if err != nil {
			return err
		}
		payload, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNoSave
	}
	return payload, err
}

func (b *BadgerStore) Delete(_ context.Context, slot int) error {
	return b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(b.key(slot)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNoSave
			}
			return err
		}
		return txn.Delete(b.key(slot))
	})
}
