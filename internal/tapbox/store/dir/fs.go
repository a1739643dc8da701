// Package dir implements store.FS on a mounted directory, the host
// equivalent of the device's flash filesystem.
package dir

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BrandonDHaskell/tapbox/internal/tapbox/store"
)

type FS struct {
	root string
}

// Open mounts root, creating it if needed, and checks it is writable.
func Open(root string) (*FS, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("mount: empty data dir")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("mount %s: %w", root, err)
	}
	probe, err := os.CreateTemp(root, ".mount-*")
	if err != nil {
		return nil, fmt.Errorf("mount %s: not writable: %w", root, err)
	}
	probe.Close()
	_ = os.Remove(probe.Name())
	return &FS{root: root}, nil
}

func (f *FS) Root() string { return f.root }

func (f *FS) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return filepath.Join(f.root, name), nil
}

func (f *FS) ReadFile(name string) ([]byte, error) {
	p, err := f.path(name)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, wrap("read", name, err)
	}
	return b, nil
}

func (f *FS) WriteFile(name string, data []byte) error {
	w, err := f.Create(name)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Abort()
		return err
	}
	return w.Close()
}

func (f *FS) AppendFile(name string, data []byte) error {
	p, err := f.path(name)
	if err != nil {
		return err
	}
	fh, err := os.OpenFile(p, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return wrap("append", name, err)
	}
	if err := appendAll(fh, data); err != nil {
		fh.Close()
		return wrap("append", name, err)
	}
	return wrap("append", name, fh.Close())
}

type appendTarget interface {
	io.Writer
	Stat() (fs.FileInfo, error)
	Sync() error
	Truncate(size int64) error
}

// appendAll writes data at the end of f and syncs it. On failure f is cut
// back to its previous length, so a torn record never stays behind.
func appendAll(f appendTarget, data []byte) error {
	st, err := f.Stat()
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		return rollback(f, st.Size(), err)
	}
	if err := f.Sync(); err != nil {
		return rollback(f, st.Size(), err)
	}
	return nil
}

func rollback(f appendTarget, size int64, cause error) error {
	if err := f.Truncate(size); err != nil {
		return errors.Join(cause, fmt.Errorf("truncate: %w", err))
	}
	return cause
}

func (f *FS) Exists(name string) (bool, error) {
	p, err := f.path(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, wrap("stat", name, err)
	}
	return true, nil
}

func (f *FS) Remove(name string) error {
	p, err := f.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return wrap("remove", name, err)
	}
	return nil
}

func (f *FS) Size(name string) (int64, error) {
	p, err := f.path(name)
	if err != nil {
		return 0, err
	}
	st, err := os.Stat(p)
	if err != nil {
		return 0, wrap("stat", name, err)
	}
	return st.Size(), nil
}

// Create writes to a temp file in the same directory; Close syncs it and
// renames it over name.
func (f *FS) Create(name string) (store.Writer, error) {
	p, err := f.path(name)
	if err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(f.root, "."+name+".tmp-*")
	if err != nil {
		return nil, wrap("create", name, err)
	}
	return &writer{tmp: tmp, dst: p, name: name}, nil
}

type writer struct {
	tmp  *os.File
	dst  string
	name string
	done bool
}

func (w *writer) Write(p []byte) (int, error) {
	n, err := w.tmp.Write(p)
	if err != nil {
		return n, wrap("write", w.name, err)
	}
	return n, nil
}

func (w *writer) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	if err := w.tmp.Sync(); err != nil {
		w.discard()
		return wrap("sync", w.name, err)
	}
	if err := w.tmp.Close(); err != nil {
		_ = os.Remove(w.tmp.Name())
		return wrap("close", w.name, err)
	}
	if err := os.Rename(w.tmp.Name(), w.dst); err != nil {
		_ = os.Remove(w.tmp.Name())
		return wrap("rename", w.name, err)
	}
	return nil
}

func (w *writer) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	w.discard()
	return nil
}

func (w *writer) discard() {
	w.tmp.Close()
	_ = os.Remove(w.tmp.Name())
}

func wrap(op, name string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s %s: %w", op, name, store.ErrNotExist)
	}
	return fmt.Errorf("%s %s: %w", op, name, err)
}
