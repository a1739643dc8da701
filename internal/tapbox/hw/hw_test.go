package hw

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/tapbox/internal/tapbox/types"
)

func TestBatteryPercent(t *testing.T) {
	cases := map[float64]int{
		2.5: 0,
		3.0: 0,
		3.6: 50,
		4.2: 100,
		4.5: 100,
	}
	for v, want := range cases {
		assert.Equal(t, want, BatteryPercent(v), "voltage %v", v)
	}
}

func TestClearBlanksStrip(t *testing.T) {
	s := NewSimStrip(3)
	Fill(s, types.RGB{R: 1})
	require.NoError(t, s.Show())
	require.NoError(t, Clear(s))
	for _, c := range s.Shown {
		assert.Equal(t, types.Black, c)
	}
}

func TestLineReaderPoll(t *testing.T) {
	pr, pw := io.Pipe()
	r := NewLineReader(pr, slog.New(slog.DiscardHandler))
	ctx := context.Background()

	go func() {
		_, _ = io.WriteString(pw, "zz\n\n04a3f1\n")
	}()

	uid, err := r.Poll(ctx, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x04, 0xA3, 0xF1}, uid)

	uid, err = r.Poll(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, uid)

	require.NoError(t, r.Probe(ctx))
	require.NoError(t, pw.Close())
	<-r.done
	assert.ErrorIs(t, r.Probe(ctx), ErrNoReader)
}

func TestLineReaderDropsStaleTaps(t *testing.T) {
	clock := &FakeClock{T: time.Unix(100, 0)}
	r := &LineReader{
		src:    io.NopCloser(strings.NewReader("")),
		logger: slog.New(slog.DiscardHandler),
		now:    clock.Now,
		events: make(chan tapEvent, 2),
		done:   make(chan struct{}),
	}
	r.events <- tapEvent{uid: []byte{1}, at: clock.Now()}
	clock.Advance(2 * time.Second)
	r.events <- tapEvent{uid: []byte{2}, at: clock.Now()}

	uid, err := r.Poll(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, uid)
}

func TestLineReaderDiscard(t *testing.T) {
	r := &LineReader{
		src:    io.NopCloser(strings.NewReader("")),
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
		events: make(chan tapEvent, 4),
		done:   make(chan struct{}),
	}
	var _ Discarder = r
	r.events <- tapEvent{uid: []byte{1}, at: time.Now()}
	r.events <- tapEvent{uid: []byte{2}, at: time.Now()}

	assert.Equal(t, 2, r.Discard())
	assert.Equal(t, 0, r.Discard())

	uid, err := r.Poll(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, uid)
}

func TestSimReaderQueue(t *testing.T) {
	r := &SimReader{}
	r.Present([]byte{0xAA})
	uid, err := r.Poll(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA}, uid)
	uid, err = r.Poll(context.Background(), 0)
	require.NoError(t, err)
	assert.Nil(t, uid)
}
