package service

import (
	"encoding/json"
	"fmt"

	"github.com/BrandonDHaskell/tapbox/internal/tapbox/store"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/types"
)

// ActivityLog is the append-only tap journal, one compact JSON object per
// line. It is never rotated; Size lets the operator watch its growth.
type ActivityLog struct {
	fs store.FS
}

func NewActivityLog(fs store.FS) *ActivityLog {
	return &ActivityLog{fs: fs}
}

func (l *ActivityLog) Append(rec types.ActivityRecord) error {
	if rec.Time == "" {
		rec.Time = types.UnknownTime
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode activity: %w", err)
	}
	line = append(line, '\n')
	if err := l.fs.AppendFile(store.ActivityFile, line); err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}

// ReadAll returns every record that parses, oldest first. A missing log is
// empty.
func (l *ActivityLog) ReadAll() ([]types.ActivityRecord, error) {
	out := []types.ActivityRecord{}
	data, err := l.fs.ReadFile(store.ActivityFile)
	if store.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read activity: %w", err)
	}
	eachLine(data, func(line string) bool {
		var rec types.ActivityRecord
		if json.Unmarshal([]byte(line), &rec) == nil && rec.ID != "" {
			out = append(out, rec)
		}
		return true
	})
	return out, nil
}

// Clear deletes the log. There is no undo.
func (l *ActivityLog) Clear() error {
	if err := l.fs.Remove(store.ActivityFile); err != nil {
		return fmt.Errorf("clear activity: %w", err)
	}
	return nil
}

func (l *ActivityLog) Size() (int64, error) {
	n, err := l.fs.Size(store.ActivityFile)
	if store.IsNotExist(err) {
		return 0, nil
	}
	return n, err
}
