package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BrandonDHaskell/tapbox/internal/metrics"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/hw"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/service"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/types"
)

var errUnhandledKind = errors.New("animation kind has no effect handler")

// Publisher forwards activity records off the device.
type Publisher interface {
	Publish(ctx context.Context, rec types.ActivityRecord) error
}

// State is the device context shared by the scanner and the command
// handler. Only the engine goroutine touches it.
type State struct {
	Config          types.DeviceConfig
	LastTag         types.TagID
	Debounce        types.TagID
	ScanningEnabled bool
}

// TapScanner turns reader polls into feedback and activity records.
type TapScanner struct {
	reader    hw.Reader
	buzzer    hw.Buzzer
	wall      hw.WallClock
	cards     *service.CardRegistry
	activity  *service.ActivityLog
	effects   *EffectScheduler
	publisher Publisher
	logger    *slog.Logger

	pollTimeout time.Duration
	warnBytes   int64
	warned      bool
}

// Scan polls once and runs the tap pipeline when a new tag is present. It
// reports whether the reader was polled.
func (s *TapScanner) Scan(ctx context.Context, st *State, now func() time.Time) (bool, error) {
	if !st.ScanningEnabled {
		return false, nil
	}
	if s.effects.Active() {
		s.dropBuffered()
		return false, nil
	}
	uid, err := s.reader.Poll(ctx, s.pollTimeout)
	if err != nil {
		return true, fmt.Errorf("poll reader: %w", err)
	}
	if len(uid) == 0 {
		return true, nil
	}

	id := types.TagIDFromBytes(uid)
	st.LastTag = id
	if st.Debounce != "" && st.Debounce.Equal(id) {
		metrics.RecordDebounced()
		return true, nil
	}
	st.Debounce = id

	cfg := st.Config
	if cfg.Sound.TapDetection {
		s.buzzer.Beep(time.Duration(cfg.Sound.DurationMs) * time.Millisecond)
	}

	rec, found, err := s.cards.Get(id)
	if err != nil {
		s.logger.Warn("card lookup failed, treating as unknown", "uid", id, "err", err)
		found = false
	}
	status := types.StatusAllowed
	if !found {
		status = types.StatusUnknown
		rec = types.CardRecord{
			ID:        id,
			Color:     cfg.Light.UnknownDefaultColor,
			Animation: cfg.Light.UnknownCardAnimation,
		}
	}

	effect, ok, err := planEffect(rec.Animation.Kind(), rec.Color, cfg.Light, cfg.LEDBrightness)
	switch {
	case err != nil:
		s.logger.Error("no effect for animation", "uid", id, "animation", rec.Animation, "err", err)
	case ok:
		if err := s.effects.Start(now(), effect); err != nil {
			s.logger.Error("start effect", "uid", id, "err", err)
		}
	default:
		s.logger.Debug("animation plays nothing", "uid", id, "animation", rec.Animation)
	}

	act := types.ActivityRecord{Time: types.UnknownTime, ID: id, Status: status}
	if t, synced := s.wall.WallTime(); synced {
		act.Time = t.Format(types.ActivityTimeLayout)
	}
	if err := s.activity.Append(act); err != nil {
		s.logger.Error("append activity", "uid", id, "err", err)
	}
	s.checkLogSize()

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, act); err != nil {
			metrics.RecordUplinkFailure()
			s.logger.Warn("uplink publish failed", "uid", id, "err", err)
		}
	}

	metrics.RecordTap(string(status))
	s.logger.Info("tap", "uid", id, "status", status, "color", rec.Color.String(), "animation", rec.Animation)
	return true, nil
}

// dropBuffered throws away taps a buffering reader queued while feedback was
// showing.
func (s *TapScanner) dropBuffered() {
	d, ok := s.reader.(hw.Discarder)
	if !ok {
		return
	}
	if n := d.Discard(); n > 0 {
		s.logger.Debug("taps during feedback dropped", "count", n)
	}
}

func (s *TapScanner) checkLogSize() {
	n, err := s.activity.Size()
	if err != nil {
		return
	}
	metrics.SetActivityLogBytes(n)
	if s.warnBytes > 0 && n > s.warnBytes && !s.warned {
		s.warned = true
		s.logger.Warn("activity log is large and is never rotated; clear it", "bytes", n, "threshold", s.warnBytes)
	}
}

// planEffect maps an animation kind to an effect. ok is false for kinds that
// intentionally play nothing.
func planEffect(kind types.AnimationKind, color types.RGB, light types.LightConfig, brightness int) (Effect, bool, error) {
	e := Effect{
		Color:      color,
		Kind:       kind,
		Duration:   light.Duration(),
		Brightness: brightness,
	}
	switch kind {
	case types.KindSolid:
		return e, true, nil
	case types.KindBlink:
		e.Blinks = light.NumberOfBlinks
		return e, true, nil
	case types.KindUnknown:
		return Effect{}, false, nil
	}
	return Effect{}, false, fmt.Errorf("%w: %v", errUnhandledKind, kind)
}
