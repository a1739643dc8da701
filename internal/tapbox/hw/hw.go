// Package hw declares the hardware the device engine drives, with host and
// simulated implementations.
package hw

import (
	"context"
	"errors"
	"time"

	"github.com/BrandonDHaskell/tapbox/internal/tapbox/types"
)

// ErrNoReader is returned by Probe when no reader answers.
var ErrNoReader = errors.New("tag reader not detected")

// Reader is a proximity-tag reader.
type Reader interface {
	// Probe checks that the reader responds.
	Probe(ctx context.Context) error
	// Poll waits at most timeout for a tag and returns its raw UID, or nil
	// when no tag was presented.
	Poll(ctx context.Context, timeout time.Duration) ([]byte, error)
}

// Discarder is implemented by readers that buffer taps between polls.
type Discarder interface {
	// Discard drops every buffered tap and reports how many were dropped.
	Discard() int
}

// Strip is an addressable LED strip. SetPixels stages colors; Show latches
// them.
type Strip interface {
	Len() int
	SetBrightness(b uint8)
	SetPixels(colors []types.RGB)
	Show() error
}

type Buzzer interface {
	Beep(d time.Duration)
}

type Battery interface {
	Voltage() (float64, error)
}

type NetworkInfo struct {
	IP   string
	MAC  string
	SSID string
	RSSI int
}

type Network interface {
	Info() NetworkInfo
}

type System interface {
	FreeMemory() uint64
	FlashSize() uint64
}

// Clock is the monotonic time source of the tick loop.
type Clock interface {
	Now() time.Time
}

// WallClock reports calendar time once it has been synced.
type WallClock interface {
	WallTime() (time.Time, bool)
}

// Fill stages one color on every pixel of s.
func Fill(s Strip, c types.RGB) {
	px := make([]types.RGB, s.Len())
	for i := range px {
		px[i] = c
	}
	s.SetPixels(px)
}

// Clear switches every pixel of s off.
func Clear(s Strip) error {
	Fill(s, types.Black)
	return s.Show()
}

// BatteryPercent maps a single-cell Li-ion voltage to 0..100.
func BatteryPercent(volts float64) int {
	switch {
	case volts >= 4.2:
		return 100
	case volts <= 3.0:
		return 0
	default:
		return int((volts - 3.0) / (4.2 - 3.0) * 100)
	}
}
