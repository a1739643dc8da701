package hw

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// staleTap is how old a queued tap may get before Poll discards it. Taps
// presented while the engine was busy are not replayed later.
const staleTap = time.Second

type tapEvent struct {
	uid []byte
	at  time.Time
}

// LineReader reads one hex-encoded UID per line from a character device or
// pipe, the way keyboard-wedge and serial readers present tags.
type LineReader struct {
	src    io.ReadCloser
	logger *slog.Logger
	now    func() time.Time

	events chan tapEvent
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// OpenLineReader opens path ("-" for stdin) and starts consuming lines.
func OpenLineReader(path string, logger *slog.Logger) (*LineReader, error) {
	var src io.ReadCloser
	if path == "" || path == "-" {
		src = io.NopCloser(os.Stdin)
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		src = f
	}
	return NewLineReader(src, logger), nil
}

func NewLineReader(src io.ReadCloser, logger *slog.Logger) *LineReader {
	r := &LineReader{
		src:    src,
		logger: logger,
		now:    time.Now,
		events: make(chan tapEvent, 8),
		done:   make(chan struct{}),
	}
	go r.loop()
	return r
}

func (r *LineReader) loop() {
	defer close(r.done)
	sc := bufio.NewScanner(r.src)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		uid, err := hex.DecodeString(line)
		if err != nil || len(uid) == 0 {
			r.logger.Warn("reader: discarding unparseable line", "line", line)
			continue
		}
		select {
		case r.events <- tapEvent{uid: uid, at: r.now()}:
		default:
			r.logger.Warn("reader: queue full, dropping tap")
		}
	}
	r.mu.Lock()
	r.err = sc.Err()
	if r.err == nil {
		r.err = io.EOF
	}
	r.mu.Unlock()
}

// Probe reports ErrNoReader once the source has ended.
func (r *LineReader) Probe(ctx context.Context) error {
	select {
	case <-r.done:
		r.mu.Lock()
		defer r.mu.Unlock()
		return errors.Join(ErrNoReader, r.err)
	default:
		return nil
	}
}

func (r *LineReader) Poll(ctx context.Context, timeout time.Duration) ([]byte, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	for {
		select {
		case ev := <-r.events:
			if r.now().Sub(ev.at) > staleTap {
				continue
			}
			return ev.uid, nil
		case <-t.C:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Discard empties the tap queue without blocking.
func (r *LineReader) Discard() int {
	n := 0
	for {
		select {
		case <-r.events:
			n++
		default:
			return n
		}
	}
}

func (r *LineReader) Close() error {
	return r.src.Close()
}
