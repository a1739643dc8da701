package memory

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/BrandonDHaskell/tapbox/internal/tapbox/store"
)

// FS is an in-memory store.FS. It is intended for use in tests and dev
// environments.
type FS struct {
	mu    sync.RWMutex
	files map[string][]byte
}

func New() *FS {
	return &FS{files: make(map[string][]byte)}
}

func (f *FS) ReadFile(name string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	b, ok := f.files[name]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", name, store.ErrNotExist)
	}
	return bytes.Clone(b), nil
}

func (f *FS) WriteFile(name string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[name] = bytes.Clone(data)
	return nil
}

func (f *FS) AppendFile(name string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[name] = append(f.files[name], data...)
	return nil
}

func (f *FS) Exists(name string) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.files[name]
	return ok, nil
}

func (f *FS) Remove(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, name)
	return nil
}

func (f *FS) Size(name string) (int64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	b, ok := f.files[name]
	if !ok {
		return 0, fmt.Errorf("stat %s: %w", name, store.ErrNotExist)
	}
	return int64(len(b)), nil
}

func (f *FS) Create(name string) (store.Writer, error) {
	return &writer{fs: f, name: name}, nil
}

// Names returns the stored file names in sorted order.  Test-only helper.
func (f *FS) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.files))
	for n := range f.files {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
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
