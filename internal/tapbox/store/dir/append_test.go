package dir

import (
	"bytes"
	"errors"
	"io/fs"
	"testing"
	"time"
)

// tornFile accepts half of a write and then fails, like a full flash.
type tornFile struct {
	buf     bytes.Buffer
	syncErr error
}

func (f *tornFile) Write(p []byte) (int, error) {
	n, _ := f.buf.Write(p[:len(p)/2])
	return n, errors.New("no space left on device")
}

func (f *tornFile) Stat() (fs.FileInfo, error) { return sizeInfo(f.buf.Len()), nil }
func (f *tornFile) Sync() error                { return f.syncErr }

func (f *tornFile) Truncate(size int64) error {
	f.buf.Truncate(int(size))
	return nil
}

type sizeInfo int64

func (s sizeInfo) Name() string       { return "activities.log" }
func (s sizeInfo) Size() int64        { return int64(s) }
func (s sizeInfo) Mode() fs.FileMode  { return 0o644 }
func (s sizeInfo) ModTime() time.Time { return time.Time{} }
func (s sizeInfo) IsDir() bool        { return false }
func (s sizeInfo) Sys() any           { return nil }

func TestAppendAll_ShortWriteRollsBack(t *testing.T) {
	f := &tornFile{}
	f.buf.WriteString("{\"uid\":\"AA\"}\n")

	err := appendAll(f, []byte("{\"uid\":\"BB\"}\n"))
	if err == nil {
		t.Fatal("expected error from torn write")
	}
	if got := f.buf.String(); got != "{\"uid\":\"AA\"}\n" {
		t.Fatalf("partial record left behind: %q", got)
	}
}

// syncFailFile writes fully but cannot sync.
type syncFailFile struct{ tornFile }

func (f *syncFailFile) Write(p []byte) (int, error) { return f.buf.Write(p) }

func TestAppendAll_SyncFailureRollsBack(t *testing.T) {
	f := &syncFailFile{tornFile{syncErr: errors.New("io error")}}
	f.buf.WriteString("x\n")

	if err := appendAll(f, []byte("y\n")); err == nil {
		t.Fatal("expected sync error")
	}
	if got := f.buf.String(); got != "x\n" {
		t.Fatalf("unsynced record left behind: %q", got)
	}
}
