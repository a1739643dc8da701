package types

import (
	"errors"
	"strings"
)

var ErrInvalidTagID = errors.New("tag id must be a non-empty hex string")

// TagID is the canonical identifier of a physical tag: uppercase hex, two
// digits per UID byte.
type TagID string

const hexDigits = "0123456789ABCDEF"

// TagIDFromBytes canonicalizes raw reader bytes.
func TagIDFromBytes(uid []byte) TagID {
	var b strings.Builder
	b.Grow(len(uid) * 2)
	for _, c := range uid {
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&0x0F])
	}
	return TagID(b.String())
}

// ParseTagID normalizes an id typed by an operator.
func ParseTagID(s string) (TagID, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", ErrInvalidTagID
	}
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(hexDigits, s[i]) < 0 {
			return "", ErrInvalidTagID
		}
	}
	return TagID(s), nil
}

// Equal compares ids case-insensitively.
func (t TagID) Equal(other TagID) bool {
	return strings.EqualFold(string(t), string(other))
}

func (t TagID) String() string { return string(t) }
