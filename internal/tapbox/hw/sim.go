package hw

import (
	"context"
	"sync"
	"time"

	"github.com/BrandonDHaskell/tapbox/internal/tapbox/types"
)

// SimReader returns queued UIDs, one per Poll. With Wait set, an empty
// poll sleeps for its timeout like a real reader; otherwise it never blocks.
type SimReader struct {
	mu       sync.Mutex
	queue    [][]byte
	ProbeErr error
	Probes   int
	Polls    int
	Wait     bool
}

func (r *SimReader) Present(uid []byte) {
	r.mu.Lock()
	r.queue = append(r.queue, uid)
	r.mu.Unlock()
}

func (r *SimReader) Probe(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Probes++
	return r.ProbeErr
}

func (r *SimReader) Poll(ctx context.Context, timeout time.Duration) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.Polls++
	if len(r.queue) > 0 {
		uid := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return uid, nil
	}
	wait := r.Wait
	r.mu.Unlock()

	if wait {
		t := time.NewTimer(timeout)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, nil
}

// SimStrip records what was last shown and every frame before it.
type SimStrip struct {
	mu         sync.Mutex
	N          int
	Brightness uint8
	staged     []types.RGB
	Shown      []types.RGB
	Shows      int
	frames     [][]types.RGB
}

func NewSimStrip(n int) *SimStrip {
	return &SimStrip{N: n, staged: make([]types.RGB, n), Shown: make([]types.RGB, n)}
}

func (s *SimStrip) Len() int { return s.N }

func (s *SimStrip) SetBrightness(b uint8) {
	s.mu.Lock()
	s.Brightness = b
	s.mu.Unlock()
}

func (s *SimStrip) SetPixels(colors []types.RGB) {
	s.mu.Lock()
	copy(s.staged, colors)
	s.mu.Unlock()
}

func (s *SimStrip) Show() error {
	s.mu.Lock()
	copy(s.Shown, s.staged)
	s.Shows++
	s.frames = append(s.frames, append([]types.RGB(nil), s.staged...))
	s.mu.Unlock()
	return nil
}

// Frames returns every shown frame, oldest first.
func (s *SimStrip) Frames() [][]types.RGB {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]types.RGB(nil), s.frames...)
}

// Color returns the color of the first shown pixel.
func (s *SimStrip) Color() types.RGB {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Shown) == 0 {
		return types.Black
	}
	return s.Shown[0]
}

// SimBuzzer counts beeps.
type SimBuzzer struct {
	mu    sync.Mutex
	Beeps []time.Duration
}

func (b *SimBuzzer) Beep(d time.Duration) {
	b.mu.Lock()
	b.Beeps = append(b.Beeps, d)
	b.mu.Unlock()
}

func (b *SimBuzzer) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Beeps)
}

// FakeClock is a manually advanced clock.
type FakeClock struct {
	mu       sync.Mutex
	T        time.Time
	Unsynced bool
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.T
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.T = c.T.Add(d)
	c.mu.Unlock()
}

func (c *FakeClock) WallTime() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.T, !c.Unsynced
}

// SimNetwork returns fixed info.
type SimNetwork NetworkInfo

func (n SimNetwork) Info() NetworkInfo { return NetworkInfo(n) }

// SimSystem returns fixed figures.
type SimSystem struct {
	Free, Flash uint64
}

func (s SimSystem) FreeMemory() uint64 { return s.Free }
func (s SimSystem) FlashSize() uint64  { return s.Flash }
