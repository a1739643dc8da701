// Package store defines the byte-level persistence layer the device keeps its
// configuration, card registry and activity log on.
package store

import (
	"errors"
	"io"
)

// ErrNotExist is returned (possibly wrapped) when a named file is absent.
var ErrNotExist = errors.New("file does not exist")

// Well-known file names of the persisted layout.
const (
	ConfigFile   = "config.json"
	CardsFile    = "cards.txt"
	ActivityFile = "activities.log"
)

// FS is a flat namespace of small files with whole-file semantics.
//
// Implementations must make WriteFile and a committed Writer replace the
// previous content as a unit, and AppendFile must write the given bytes
// completely or not at all.
type FS interface {
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte) error
	AppendFile(name string, data []byte) error
	Exists(name string) (bool, error)
	Remove(name string) error
	Size(name string) (int64, error)

	// Create starts a chunked replacement of name. Nothing is visible to
	// readers until Close; Abort drops the partial content.
	Create(name string) (Writer, error)
}

// Writer receives a replacement file in chunks.
type Writer interface {
	io.Writer
	Close() error
	Abort() error
}

// IsNotExist reports whether err says the file is missing.
func IsNotExist(err error) bool {
	return errors.Is(err, ErrNotExist)
}
