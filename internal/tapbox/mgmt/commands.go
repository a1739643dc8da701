// Package mgmt defines the management commands the device engine serves and
// the handler that executes them against the persistent stores.
package mgmt

import (
	"errors"
	"time"

	"github.com/BrandonDHaskell/tapbox/internal/tapbox/types"
)

// ErrDisabled is returned for commands switched off in the management
// section of the device config.
var ErrDisabled = errors.New("disabled by device configuration")

// NoTag is reported by ReadLastTag before any tag has been seen.
const NoTag = "none"

// Command is a management request. The set is closed: only the types in this
// file implement it.
type Command interface {
	Name() string
	command()
}

type (
	// ReadConfig returns the persisted config document verbatim ([]byte).
	ReadConfig struct{}
	// WriteConfig replaces the persisted config document and asks for a
	// restart. The running config is unchanged.
	WriteConfig struct{ Raw []byte }
	// ReadLastTag returns the last detected tag id or NoTag (string).
	ReadLastTag struct{}
	// ListCards returns []types.CardRecord.
	ListCards struct{}
	// AddCard returns the stored types.CardRecord.
	AddCard struct{ UID, Color, Animation string }
	DeleteCard struct{ UID string }
	// ReadCardStore returns the raw registry ([]byte).
	ReadCardStore struct{}
	// WriteCardStore replaces the registry verbatim and returns the number
	// of bytes written (int64).
	WriteCardStore struct{ Data []byte }
	// UploadCardStore is WriteCardStore for file uploads.
	UploadCardStore struct {
		Filename string
		Data     []byte
	}
	// ReadActivity returns []types.ActivityRecord.
	ReadActivity  struct{}
	ClearActivity struct{}
	// ReadStatus returns types.DeviceStatus.
	ReadStatus struct{}
)

func (ReadConfig) Name() string      { return "ReadConfig" }
func (WriteConfig) Name() string     { return "WriteConfig" }
func (ReadLastTag) Name() string     { return "ReadLastTag" }
func (ListCards) Name() string       { return "ListCards" }
func (AddCard) Name() string         { return "AddCard" }
func (DeleteCard) Name() string      { return "DeleteCard" }
func (ReadCardStore) Name() string   { return "ReadCardStore" }
func (WriteCardStore) Name() string  { return "WriteCardStore" }
func (UploadCardStore) Name() string { return "UploadCardStore" }
func (ReadActivity) Name() string    { return "ReadActivity" }
func (ClearActivity) Name() string   { return "ClearActivity" }
func (ReadStatus) Name() string      { return "ReadStatus" }

func (ReadConfig) command()      {}
func (WriteConfig) command()     {}
func (ReadLastTag) command()     {}
func (ListCards) command()       {}
func (AddCard) command()         {}
func (DeleteCard) command()      {}
func (ReadCardStore) command()   {}
func (WriteCardStore) command()  {}
func (UploadCardStore) command() {}
func (ReadActivity) command()    {}
func (ClearActivity) command()   {}
func (ReadStatus) command()      {}

// Result is the reply to one command. Restart asks the engine to reboot
// after the reply has been delivered.
type Result struct {
	Value   any
	Restart bool
	Err     error
}

// Snapshot is the engine state a command may read.
type Snapshot struct {
	Config          types.DeviceConfig
	LastTag         types.TagID
	ScanningEnabled bool
	Uptime          time.Duration
}
