package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"choicegraph/pkg/saver"
)

// OpenSaver opens the configured save backend. Saves for different stories
// are kept apart by namespace. The returned close func releases the store.
func (s Saves) OpenSaver(ctx context.Context, namespace string, logger *slog.Logger) (*saver.Saver, func() error, error) {
	if namespace == "" {
		namespace = "default"
	}
	switch s.Backend {
	case BackendFile, "":
		store, err := saver.NewFileStore(filepath.Join(s.Dir, namespace))
		if err != nil {
			return nil, nil, err
		}
		return saver.New(store, logger), func() error { return nil }, nil
	case BackendSQLite:
		store, err := saver.OpenSQLite(ctx, s.SQLitePath, namespace)
		if err != nil {
			return nil, nil, err
		}
		return saver.New(store, logger), store.Close, nil
	case BackendBadger:
		store, err := saver.OpenBadger(s.BadgerPath, namespace)
		if err != nil {
			return nil, nil, err
		}
		return saver.New(store, logger), store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown saves.backend %q", s.Backend)
	}
}
