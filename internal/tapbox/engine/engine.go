// Package engine runs the device: one goroutine owns the device state and
// alternates between serving management commands, polling the tag reader and
// advancing the light effect.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/BrandonDHaskell/tapbox/internal/metrics"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/hw"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/mgmt"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/service"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/types"
)

var (
	// ErrRestart is returned by Run after a command asked for a reboot.
	ErrRestart = errors.New("restart requested")
	// ErrStopped is returned by Submit once Run has exited.
	ErrStopped = errors.New("engine stopped")
)

const (
	defaultPollTimeout   = 100 * time.Millisecond
	defaultProbeInterval = 500 * time.Millisecond
	defaultReaderRetries = 5
	effectFrame          = 10 * time.Millisecond
	defaultReadyFrame    = 20 * time.Millisecond
	// readyGlowFrames is how many frames the closing glow of the ready
	// animation stays lit.
	readyGlowFrames      = 5
)

var readySpin = types.RGB{G: 150}

type Options struct {
	Reader hw.Reader
	Strip  hw.Strip
	Buzzer hw.Buzzer
	Clock  hw.Clock
	Wall   hw.WallClock

	Cards    *service.CardRegistry
	Activity *service.ActivityLog
	Config   *service.ConfigStore
	Handler  *mgmt.Handler

	// Publisher is optional.
	Publisher Publisher
	Logger    *slog.Logger

	PollTimeout       time.Duration
	ReaderRetries     int
	ProbeInterval     time.Duration
	ActivityWarnBytes int64
	// ReadyFrame paces the boot animation.
	ReadyFrame        time.Duration
}

type request struct {
	ctx   context.Context
	cmd   mgmt.Command
	reply chan mgmt.Result
}

type Engine struct {
	opts    Options
	logger  *slog.Logger
	scanner *TapScanner
	effects *EffectScheduler

	state   State
	booted  time.Time
	pending *request
	restart bool

	cmds    chan request
	stopped chan struct{}
	snap    atomic.Pointer[mgmt.Snapshot]
}

func New(o Options) *Engine {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.PollTimeout <= 0 {
		o.PollTimeout = defaultPollTimeout
	}
	if o.ProbeInterval <= 0 {
		o.ProbeInterval = defaultProbeInterval
	}
	if o.ReadyFrame <= 0 {
		o.ReadyFrame = defaultReadyFrame
	}
	if o.ReaderRetries < 0 {
		o.ReaderRetries = defaultReaderRetries
	}
	effects := NewEffectScheduler(o.Strip)
	e := &Engine{
		opts:    o,
		logger:  o.Logger,
		effects: effects,
		scanner: &TapScanner{
			reader:      o.Reader,
			buzzer:      o.Buzzer,
			wall:        o.Wall,
			cards:       o.Cards,
			activity:    o.Activity,
			effects:     effects,
			publisher:   o.Publisher,
			logger:      o.Logger,
			pollTimeout: o.PollTimeout,
			warnBytes:   o.ActivityWarnBytes,
		},
		state:   State{Config: types.DefaultDeviceConfig()},
		cmds:    make(chan request, 16),
		stopped: make(chan struct{}),
	}
	e.publish()
	return e
}

// Boot loads the persisted config, prepares the stores and looks for the
// reader. Only a cancelled ctx makes it fail.
func (e *Engine) Boot(ctx context.Context) error {
	cfg, issues, err := e.opts.Config.Load()
	if err != nil {
		e.logger.Error("config load failed, using defaults", "err", err)
		cfg = types.DefaultDeviceConfig()
	}
	for _, field := range issues {
		e.logger.Warn("config field invalid, using default", "field", field)
	}
	e.state.Config = cfg

	if err := e.opts.Cards.EnsureExists(); err != nil {
		e.logger.Error("card store not writable", "err", err)
	}

	enabled, err := e.probeReader(ctx)
	if err != nil {
		return err
	}
	e.state.ScanningEnabled = enabled
	metrics.SetScanningEnabled(enabled)
	if !enabled {
		e.logger.Error("tag reader not found, scanning disabled")
	}

	if err := e.showReady(ctx, cfg); err != nil {
		return err
	}
	e.scanner.dropBuffered()
	e.scanner.checkLogSize()

	e.booted = e.opts.Clock.Now()
	e.publish()
	e.logger.Info("device ready",
		"name", cfg.DeviceName,
		"scanning", enabled,
		"light_ms", cfg.Light.LightDurationMs,
	)
	return nil
}

func (e *Engine) probeReader(ctx context.Context) (bool, error) {
	for attempt := 0; ; attempt++ {
		err := e.opts.Reader.Probe(ctx)
		if err == nil {
			return true, nil
		}
		if attempt >= e.opts.ReaderRetries {
			e.logger.Warn("reader probe failed", "attempts", attempt+1, "err", err)
			return false, nil
		}
		t := time.NewTimer(e.opts.ProbeInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return false, ctx.Err()
		case <-t.C:
		}
	}
}

// showReady spins one green pixel twice around the strip, glows the whole
// strip in the known-card color, then clears it.
func (e *Engine) showReady(ctx context.Context, cfg types.DeviceConfig) error {
	strip := e.opts.Strip
	strip.SetBrightness(clampBrightness(cfg.LEDBrightness))
	defer func() {
		if err := hw.Clear(strip); err != nil {
			e.logger.Warn("clear strip", "err", err)
		}
	}()

	n := strip.Len()
	px := make([]types.RGB, n)
	for i := 0; i < 2*n; i++ {
		clear(px)
		px[i%n] = readySpin
		strip.SetPixels(px)
		_ = strip.Show()
		if err := e.pause(ctx, e.opts.ReadyFrame); err != nil {
			return err
		}
	}
	hw.Fill(strip, cfg.Light.KnownDefaultColor)
	_ = strip.Show()
	return e.pause(ctx, readyGlowFrames*e.opts.ReadyFrame)
}

func (e *Engine) pause(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SetPublisher attaches the uplink once the running config is known. It must
// be called before Run.
func (e *Engine) SetPublisher(p Publisher) {
	e.scanner.publisher = p
}

// Submit queues cmd for the engine goroutine and waits for its result. A
// command that has been queued still runs if ctx ends first.
func (e *Engine) Submit(ctx context.Context, cmd mgmt.Command) (mgmt.Result, error) {
	req := request{ctx: context.WithoutCancel(ctx), cmd: cmd, reply: make(chan mgmt.Result, 1)}
	select {
	case e.cmds <- req:
	case <-e.stopped:
		return mgmt.Result{}, ErrStopped
	case <-ctx.Done():
		return mgmt.Result{}, ctx.Err()
	}
	select {
	case res := <-req.reply:
		return res, nil
	case <-e.stopped:
		// Run may have served it just before exiting.
		select {
		case res := <-req.reply:
			return res, nil
		default:
			return mgmt.Result{}, ErrStopped
		}
	case <-ctx.Done():
		return mgmt.Result{}, ctx.Err()
	}
}

// Tick runs one pass of the loop: at most one command, one poll, one effect
// step. It reports whether the reader was polled.
func (e *Engine) Tick(ctx context.Context) bool {
	e.serveOne()
	if e.restart {
		return false
	}

	polled, err := e.scanner.Scan(ctx, &e.state, e.opts.Clock.Now)
	if err != nil && ctx.Err() == nil {
		e.logger.Warn("scan", "err", err)
	}

	if e.effects.Active() {
		now := e.opts.Clock.Now()
		deadline := e.effects.Deadline()
		if e.effects.Tick(now) {
			e.scanner.dropBuffered()
			e.state.Debounce = ""
			metrics.RecordEffectOverrun(now.Sub(deadline).Seconds())
		}
	}
	e.publish()
	return polled
}

func (e *Engine) serveOne() {
	req := e.pending
	e.pending = nil
	if req == nil {
		select {
		case r := <-e.cmds:
			req = &r
		default:
			return
		}
	}
	res := e.opts.Handler.Handle(req.ctx, e.snapshot(), req.cmd)
	req.reply <- res

	result := "ok"
	if res.Err != nil {
		result = "error"
		e.logger.Warn("command failed", "command", req.cmd.Name(), "err", res.Err)
	}
	metrics.RecordCommand(req.cmd.Name(), result)
	if res.Restart {
		e.restart = true
	}
}

// Run ticks until ctx ends or a command requests a restart.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.stopped)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		polled := e.Tick(ctx)
		if e.restart {
			e.logger.Info("restarting")
			return ErrRestart
		}
		if !polled {
			e.idle(ctx)
		}
	}
}

// idle waits for the next command or the next effect frame when there was
// no reader poll to pace the loop.
func (e *Engine) idle(ctx context.Context) {
	wait := e.opts.PollTimeout
	if e.effects.Active() {
		wait = effectFrame
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case r := <-e.cmds:
		e.pending = &r
	case <-t.C:
	case <-ctx.Done():
	}
}

func (e *Engine) snapshot() mgmt.Snapshot {
	var up time.Duration
	if !e.booted.IsZero() {
		up = e.opts.Clock.Now().Sub(e.booted)
	}
	return mgmt.Snapshot{
		Config:          e.state.Config,
		LastTag:         e.state.LastTag,
		ScanningEnabled: e.state.ScanningEnabled,
		Uptime:          up,
	}
}

func (e *Engine) publish() {
	s := e.snapshot()
	e.snap.Store(&s)
}

// Snapshot returns the state as of the last tick. Safe for any goroutine.
func (e *Engine) Snapshot() mgmt.Snapshot {
	return *e.snap.Load()
}

// EffectActive is for tests driving Tick directly.
func (e *Engine) EffectActive() bool { return e.effects.Active() }

// State exposes the device context to tests driving Tick directly.
func (e *Engine) State() State { return e.state }
