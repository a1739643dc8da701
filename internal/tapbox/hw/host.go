package hw

import (
	"log/slog"
	"net"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/BrandonDHaskell/tapbox/internal/tapbox/types"
)

// SystemClock is the host clock. The host keeps its own time in sync, so
// wall time is always reported as valid.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) WallTime() (time.Time, bool) { return time.Now(), true }

// HostNetwork reports the first non-loopback interface with an IPv4 address.
type HostNetwork struct {
	SSID string
}

func (n HostNetwork) Info() NetworkInfo {
	info := NetworkInfo{SSID: n.SSID}
	ifaces, err := net.Interfaces()
	if err != nil {
		return info
	}
	for _, ifc := range ifaces {
		if ifc.Flags&net.FlagUp == 0 || ifc.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := ifc.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipn, ok := a.(*net.IPNet)
			if !ok || ipn.IP.To4() == nil {
				continue
			}
			info.IP = ipn.IP.String()
			info.MAC = strings.ToUpper(ifc.HardwareAddr.String())
			return info
		}
	}
	return info
}

// HostSystem reports Go heap headroom as free memory and a configured
// flash size.
type HostSystem struct {
	Flash uint64
}

func (s HostSystem) FreeMemory() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapIdle - ms.HeapReleased
}

func (s HostSystem) FlashSize() uint64 { return s.Flash }

// FixedBattery reports a constant voltage, for mains-powered hosts.
type FixedBattery float64

func (b FixedBattery) Voltage() (float64, error) { return float64(b), nil }

// LogStrip renders frames to a logger at debug level.
type LogStrip struct {
	n          int
	logger     *slog.Logger
	mu         sync.Mutex
	brightness uint8
	staged     []types.RGB
	shown      []types.RGB
}

func NewLogStrip(n int, logger *slog.Logger) *LogStrip {
	if n < 1 {
		n = 1
	}
	return &LogStrip{n: n, logger: logger, brightness: 255, staged: make([]types.RGB, n), shown: make([]types.RGB, n)}
}

func (s *LogStrip) Len() int { return s.n }

func (s *LogStrip) SetBrightness(b uint8) {
	s.mu.Lock()
	s.brightness = b
	s.mu.Unlock()
}

func (s *LogStrip) SetPixels(colors []types.RGB) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy(s.staged, colors)
}

func (s *LogStrip) Show() error {
	s.mu.Lock()
	copy(s.shown, s.staged)
	first, b := s.shown[0], s.brightness
	s.mu.Unlock()
	s.logger.Debug("led frame", "pixels", s.n, "first", first.String(), "brightness", b)
	return nil
}

// LogBuzzer logs beeps instead of sounding them.
type LogBuzzer struct {
	Logger *slog.Logger
}

func (b LogBuzzer) Beep(d time.Duration) {
	b.Logger.Debug("beep", "duration", d)
}
