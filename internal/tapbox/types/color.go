package types

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidColor = errors.New("color must be #RRGGBB or #RGB")

type RGB struct {
	R, G, B uint8
}

var Black = RGB{}

// ParseRGB accepts #RRGGBB, RRGGBB, #RGB and RGB.
func ParseRGB(s string) (RGB, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return RGB{}, ErrInvalidColor
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return RGB{}, ErrInvalidColor
	}
	return RGB{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n)}, nil
}

func (c RGB) String() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// Scale applies an 8-bit brightness the way the LED driver does.
func (c RGB) Scale(brightness uint8) RGB {
	if brightness == 255 {
		return c
	}
	scale := func(v uint8) uint8 { return uint8(uint16(v) * uint16(brightness) / 255) }
	return RGB{R: scale(c.R), G: scale(c.G), B: scale(c.B)}
}

func (c RGB) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *RGB) UnmarshalText(b []byte) error {
	v, err := ParseRGB(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
