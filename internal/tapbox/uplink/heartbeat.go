package uplink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BrandonDHaskell/tapbox/internal/tapbox/hw"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/mgmt"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/types"
)

// HeartbeatPath is where the management server accepts heartbeats.
const HeartbeatPath = "/v1/heartbeat"

// HeartbeatURL builds the heartbeat endpoint from the server section of the
// device config. It returns "" when no server is configured.
func HeartbeatURL(s types.ServerConfig) string {
	addr := strings.TrimSpace(s.Address)
	if addr == "" {
		return ""
	}
	if strings.Contains(addr, "://") {
		return strings.TrimRight(addr, "/") + HeartbeatPath
	}
	return "http://" + net.JoinHostPort(addr, strconv.Itoa(s.Port)) + HeartbeatPath
}

type HeartbeatConfig struct {
	URL      string
	Interval time.Duration
	ModuleID string
	Version  string
}

// HeartbeatReporter posts a liveness report on a fixed interval. It runs as
// a background goroutine and reads engine state only through Snapshot.
type HeartbeatReporter struct {
	cfg      HeartbeatConfig
	client   *http.Client
	snapshot func() mgmt.Snapshot
	network  hw.Network
	system   hw.System
	logger   *slog.Logger

	seq    uint64
	cancel context.CancelFunc
	done   chan struct{}
}

func NewHeartbeatReporter(cfg HeartbeatConfig, snapshot func() mgmt.Snapshot, network hw.Network, system hw.System, logger *slog.Logger) *HeartbeatReporter {
	return &HeartbeatReporter{
		cfg:      cfg,
		client:   &http.Client{Timeout: 5 * time.Second},
		snapshot: snapshot,
		network:  network,
		system:   system,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start sends one heartbeat immediately and then one per interval until ctx
// ends or Stop is called. An empty URL or a zero interval disables it.
func (r *HeartbeatReporter) Start(ctx context.Context) {
	if r.cfg.URL == "" || r.cfg.Interval <= 0 {
		r.logger.Info("heartbeat disabled")
		close(r.done)
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)
	go r.loop(ctx)
	r.logger.Info("heartbeat started", "url", r.cfg.URL, "interval", r.cfg.Interval)
}

// Stop signals the reporter to exit and waits for it.
func (r *HeartbeatReporter) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	<-r.done
}

func (r *HeartbeatReporter) loop(ctx context.Context) {
	defer close(r.done)

	r.beat(ctx)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.beat(ctx)
		}
	}
}

func (r *HeartbeatReporter) beat(ctx context.Context) {
	r.seq++
	snap := r.snapshot()
	info := r.network.Info()
	req := types.HeartbeatRequest{
		ModuleID:        r.cfg.ModuleID,
		FirmwareVersion: r.cfg.Version,
		UptimeSeconds:   uint64(snap.Uptime / time.Second),
		IP:              info.IP,
		FreeHeapBytes:   r.system.FreeMemory(),
		Sequence:        r.seq,
	}
	if info.RSSI != 0 {
		rssi := info.RSSI
		req.RSSIDbm = &rssi
	}
	if err := r.post(ctx, req); err != nil && ctx.Err() == nil {
		r.logger.Warn("heartbeat failed", "seq", r.seq, "err", err)
	}
}

func (r *HeartbeatReporter) post(ctx context.Context, hb types.HeartbeatRequest) error {
	body, err := json.Marshal(hb)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("heartbeat: server returned %s", resp.Status)
	}
	var out types.HeartbeatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err == nil && !out.Known {
		r.logger.Debug("heartbeat accepted by server that does not know this module", "module_id", hb.ModuleID)
	}
	return nil
}
