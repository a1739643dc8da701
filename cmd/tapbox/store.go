package main

import (
	"context"
	"fmt"

	"github.com/BrandonDHaskell/tapbox/internal/config"
	"github.com/BrandonDHaskell/tapbox/internal/db"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/store"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/store/dir"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/store/memory"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/store/sqlite"
)

// openStore mounts the configured backend. The returned func releases it.
func openStore(ctx context.Context, cfg config.Config) (store.FS, func(), error) {
	switch cfg.Store {
	case "memory":
		return memory.New(), func() {}, nil
	case "sqlite":
		conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath})
		if err != nil {
			return nil, nil, fmt.Errorf("mount sqlite store: %w", err)
		}
		w := db.NewWorker(conn)
		return sqlite.New(conn, w), func() {
			w.Close()
			_ = conn.Close()
		}, nil
	case "dir", "":
		fs, err := dir.Open(cfg.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("mount data dir: %w", err)
		}
		return fs, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
}
