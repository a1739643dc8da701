package engine

import (
	"errors"
	"time"

	"github.com/BrandonDHaskell/tapbox/internal/tapbox/hw"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/types"
)

// ErrEffectActive is returned by Start while another effect is showing.
var ErrEffectActive = errors.New("effect already active")

const (
	minBrightness = 5
	maxBrightness = 255
)

// Effect is one timed light-feedback run.
type Effect struct {
	Color      types.RGB
	Kind       types.AnimationKind
	Duration   time.Duration
	Blinks     int
	Brightness int
}

// EffectScheduler drives the strip through at most one effect at a time. It
// never blocks: Tick is called by the engine loop and does the work due at
// the given instant.
type EffectScheduler struct {
	strip hw.Strip

	active   bool
	start    time.Time
	deadline time.Time
	effect   Effect
	lit      bool
}

func NewEffectScheduler(strip hw.Strip) *EffectScheduler {
	return &EffectScheduler{strip: strip}
}

func (s *EffectScheduler) Active() bool { return s.active }

// Deadline is meaningful only while Active.
func (s *EffectScheduler) Deadline() time.Time { return s.deadline }

// Start lights the strip and arms the deadline.
func (s *EffectScheduler) Start(now time.Time, e Effect) error {
	if s.active {
		return ErrEffectActive
	}
	if e.Blinks < 1 {
		e.Blinks = 1
	}
	s.active = true
	s.start = now
	s.deadline = now.Add(e.Duration)
	s.effect = e

	s.strip.SetBrightness(clampBrightness(e.Brightness))
	s.show(true)
	return nil
}

// Tick advances the effect to now. It reports true when this call cleared
// an expired effect.
func (s *EffectScheduler) Tick(now time.Time) bool {
	if !s.active {
		return false
	}
	if !now.Before(s.deadline) {
		s.active = false
		s.show(false)
		return true
	}
	if s.effect.Kind == types.KindBlink {
		phase := s.effect.Duration / time.Duration(2*s.effect.Blinks)
		if phase <= 0 {
			return false
		}
		on := (now.Sub(s.start)/phase)%2 == 0
		if on != s.lit {
			s.show(on)
		}
	}
	return false
}

func (s *EffectScheduler) show(on bool) {
	s.lit = on
	if on {
		hw.Fill(s.strip, s.effect.Color)
	} else {
		hw.Fill(s.strip, types.Black)
	}
	// A failed frame is not retried; the next phase or the clear repaints.
	_ = s.strip.Show()
}

func clampBrightness(b int) uint8 {
	switch {
	case b < minBrightness:
		return minBrightness
	case b > maxBrightness:
		return maxBrightness
	}
	return uint8(b)
}
