package service

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/BrandonDHaskell/tapbox/internal/tapbox/store"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/types"
)

// chunkSize is the write granularity of raw registry replacements.
const chunkSize = 512

// CardRegistry maps tag ids to feedback profiles. The store is cards.txt,
// one "ID,#RRGGBB,animation" line per record in insertion order.
//
// Add does not look for an existing entry: adding an id twice keeps both
// lines, Get returns the earliest and List returns all of them.
type CardRegistry struct {
	fs store.FS
}

func NewCardRegistry(fs store.FS) *CardRegistry {
	return &CardRegistry{fs: fs}
}

// Get returns the first record whose id matches case-insensitively.
func (r *CardRegistry) Get(id types.TagID) (types.CardRecord, bool, error) {
	data, err := r.read()
	if err != nil {
		return types.CardRecord{}, false, err
	}
	var (
		found types.CardRecord
		ok    bool
	)
	eachLine(data, func(line string) bool {
		rec, perr := parseCardLine(line)
		if perr != nil || !rec.ID.Equal(id) {
			return true
		}
		found, ok = rec, true
		return false
	})
	return found, ok, nil
}

// List returns every parseable record in storage order, duplicates included.
func (r *CardRegistry) List() ([]types.CardRecord, error) {
	data, err := r.read()
	if err != nil {
		return nil, err
	}
	out := []types.CardRecord{}
	eachLine(data, func(line string) bool {
		if rec, perr := parseCardLine(line); perr == nil {
			out = append(out, rec)
		}
		return true
	})
	return out, nil
}

// Add validates rec and appends it as a new line.
func (r *CardRegistry) Add(rec types.CardRecord) error {
	if rec.ID == "" {
		return validationError("uid is required")
	}
	id, err := types.ParseTagID(string(rec.ID))
	if err != nil {
		return validationError("uid %q: %v", rec.ID, err)
	}
	anim := types.NormalizeAnimation(string(rec.Animation))
	if anim == "" {
		return validationError("animation is required")
	}
	if strings.ContainsAny(string(anim), ",\r\n") {
		return validationError("animation %q contains a delimiter", anim)
	}

	// Make sure the previous last line is terminated before appending.
	var prefix string
	data, err := r.fs.ReadFile(store.CardsFile)
	switch {
	case err == nil:
		if len(data) > 0 && data[len(data)-1] != '\n' {
			prefix = "\n"
		}
	case !store.IsNotExist(err):
		return fmt.Errorf("add card: %w", err)
	}

	line := prefix + formatCardLine(types.CardRecord{ID: id, Color: rec.Color, Animation: anim})
	if err := r.fs.AppendFile(store.CardsFile, []byte(line)); err != nil {
		return fmt.Errorf("add card: %w", err)
	}
	return nil
}

// Delete rewrites the store without any line whose id matches. Other lines,
// malformed ones included, are kept verbatim. An absent id is not an error.
func (r *CardRegistry) Delete(id types.TagID) error {
	data, err := r.fs.ReadFile(store.CardsFile)
	if store.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete card: %w", err)
	}

	var (
		kept    bytes.Buffer
		removed int
	)
	eachLine(data, func(line string) bool {
		first, _, _ := strings.Cut(line, ",")
		if types.TagID(strings.TrimSpace(first)).Equal(id) {
			removed++
			return true
		}
		kept.WriteString(line)
		kept.WriteByte('\n')
		return true
	})
	if removed == 0 {
		return nil
	}
	if err := r.fs.WriteFile(store.CardsFile, kept.Bytes()); err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	return nil
}

// ReadRaw returns the persisted store verbatim; a missing store reads empty.
func (r *CardRegistry) ReadRaw() ([]byte, error) {
	data, err := r.read()
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

// WriteRaw replaces the whole store with src, unvalidated, in fixed-size
// chunks. It returns the number of bytes written. If src fails mid-stream
// the previous store is kept.
func (r *CardRegistry) WriteRaw(src io.Reader) (int64, error) {
	w, err := r.fs.Create(store.CardsFile)
	if err != nil {
		return 0, fmt.Errorf("replace cards: %w", err)
	}
	n, err := io.CopyBuffer(w, src, make([]byte, chunkSize))
	if err != nil {
		_ = w.Abort()
		return n, fmt.Errorf("replace cards: %w", err)
	}
	if err := w.Close(); err != nil {
		return n, fmt.Errorf("replace cards: %w", err)
	}
	return n, nil
}

// Size reports the store size in bytes; a missing store is 0.
func (r *CardRegistry) Size() (int64, error) {
	n, err := r.fs.Size(store.CardsFile)
	if store.IsNotExist(err) {
		return 0, nil
	}
	return n, err
}

// EnsureExists creates an empty store when none is present.
func (r *CardRegistry) EnsureExists() error {
	ok, err := r.fs.Exists(store.CardsFile)
	if err != nil {
		return fmt.Errorf("check cards: %w", err)
	}
	if ok {
		return nil
	}
	if err := r.fs.WriteFile(store.CardsFile, nil); err != nil {
		return fmt.Errorf("create cards: %w", err)
	}
	return nil
}

func (r *CardRegistry) read() ([]byte, error) {
	data, err := r.fs.ReadFile(store.CardsFile)
	if store.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cards: %w", err)
	}
	return data, nil
}

func formatCardLine(rec types.CardRecord) string {
	return string(rec.ID) + "," + rec.Color.String() + "," + string(rec.Animation) + "\n"
}

func parseCardLine(line string) (types.CardRecord, error) {
	fields := strings.SplitN(line, ",", 3)
	if len(fields) != 3 {
		return types.CardRecord{}, fmt.Errorf("card line %q: want 3 fields", line)
	}
	id, err := types.ParseTagID(fields[0])
	if err != nil {
		return types.CardRecord{}, fmt.Errorf("card line %q: %w", line, err)
	}
	color, err := types.ParseRGB(fields[1])
	if err != nil {
		return types.CardRecord{}, fmt.Errorf("card line %q: %w", line, err)
	}
	anim := types.NormalizeAnimation(fields[2])
	if anim == "" {
		return types.CardRecord{}, fmt.Errorf("card line %q: empty animation", line)
	}
	return types.CardRecord{ID: id, Color: color, Animation: anim}, nil
}

// eachLine calls fn with every trimmed, non-blank line until fn returns false.
// Lines have no length limit: a raw store may hold arbitrarily long garbage
// and every line after it must still be seen.
func eachLine(data []byte, fn func(line string) bool) {
	for len(data) > 0 {
		var raw []byte
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			raw, data = data[:i], data[i+1:]
		} else {
			raw, data = data, nil
		}
		line := strings.TrimSpace(string(raw))
		if line == "" {
			continue
		}
		if !fn(line) {
			return
		}
	}
}

// ParseCardRecord validates the three operator-supplied fields of a card.
func ParseCardRecord(uid, color, animation string) (types.CardRecord, error) {
	if strings.TrimSpace(uid) == "" || strings.TrimSpace(color) == "" || strings.TrimSpace(animation) == "" {
		return types.CardRecord{}, validationError("missing uid/color/animation")
	}
	id, err := types.ParseTagID(uid)
	if err != nil {
		return types.CardRecord{}, validationError("uid %q: %v", uid, err)
	}
	rgb, err := types.ParseRGB(color)
	if err != nil {
		return types.CardRecord{}, validationError("color %q: %v", color, err)
	}
	return types.CardRecord{ID: id, Color: rgb, Animation: types.NormalizeAnimation(animation)}, nil
}
