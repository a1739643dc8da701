// Package sqlite implements store.FS as one row per file in a SQLite
// database. Every mutation is a single transaction run by the db worker, so
// an interrupted rewrite leaves the previous content in place.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	dbpkg "github.com/BrandonDHaskell/tapbox/internal/db"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/store"
)

const defaultOpTimeout = 5 * time.Second

type FS struct {
	db        *sql.DB
	writer    *dbpkg.Worker
	opTimeout time.Duration
}

func New(db *sql.DB, writer *dbpkg.Worker) *FS {
	return &FS{db: db, writer: writer, opTimeout: defaultOpTimeout}
}

func (f *FS) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), f.opTimeout)
}

func (f *FS) ReadFile(name string) ([]byte, error) {
	ctx, cancel := f.ctx()
	defer cancel()

	var data []byte
	err := f.db.QueryRowContext(ctx, `SELECT data FROM files WHERE name = ?;`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read %s: %w", name, store.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

func (f *FS) WriteFile(name string, data []byte) error {
	ctx, cancel := f.ctx()
	defer cancel()

	if data == nil {
		data = []byte{}
	}
	nowMs := time.Now().UTC().UnixMilli()
	return f.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO files(name, data, updated_at_ms) VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
  data = excluded.data,
  updated_at_ms = excluded.updated_at_ms;
`, name, data, nowMs); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		return nil
	})
}

func (f *FS) AppendFile(name string, data []byte) error {
	ctx, cancel := f.ctx()
	defer cancel()

	if data == nil {
		data = []byte{}
	}
	nowMs := time.Now().UTC().UnixMilli()
	return f.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO files(name, data, updated_at_ms) VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
  data = CAST(files.data || excluded.data AS BLOB),
  updated_at_ms = excluded.updated_at_ms;
`, name, data, nowMs); err != nil {
			return fmt.Errorf("append %s: %w", name, err)
		}
		return nil
	})
}

func (f *FS) Exists(name string) (bool, error) {
	ctx, cancel := f.ctx()
	defer cancel()

	var one int
	err := f.db.QueryRowContext(ctx, `SELECT 1 FROM files WHERE name = ?;`, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", name, err)
	}
	return true, nil
}

func (f *FS) Remove(name string) error {
	ctx, cancel := f.ctx()
	defer cancel()

	return f.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE name = ?;`, name); err != nil {
			return fmt.Errorf("remove %s: %w", name, err)
		}
		return nil
	})
}

func (f *FS) Size(name string) (int64, error) {
	ctx, cancel := f.ctx()
	defer cancel()

	var n int64
	err := f.db.QueryRowContext(ctx,
		`SELECT length(CAST(data AS BLOB)) FROM files WHERE name = ?;`, name,
	).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("stat %s: %w", name, store.ErrNotExist)
	}
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", name, err)
	}
	return n, nil
}

// Create buffers chunks in memory and commits them in one transaction on
// Close.
func (f *FS) Create(name string) (store.Writer, error) {
	return &writer{fs: f, name: name}, nil
}

type writer struct {
	fs   *FS
	name string
	buf  bytes.Buffer
	done bool
}

func (w *writer) Write(p []byte) (int, error) {
	if w.done {
		return 0, fmt.Errorf("write %s: writer closed", w.name)
	}
	return w.buf.Write(p)
}

func (w *writer) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	return w.fs.WriteFile(w.name, w.buf.Bytes())
}

func (w *writer) Abort() error {
	w.done = true
	w.buf.Reset()
	return nil
}
