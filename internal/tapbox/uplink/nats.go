// Package uplink carries device events to off-device collectors: activity
// records over NATS and periodic heartbeats over HTTP.
package uplink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/BrandonDHaskell/tapbox/internal/tapbox/types"
)

type conn interface {
	Publish(subject string, data []byte) error
}

// Publisher sends each activity record as JSON to one NATS subject.
type Publisher struct {
	nc      conn
	subject string
	close   func()
}

// Connect dials the broker named in cfg. The connection retries in the
// background, so a broker that is down at boot does not block the device;
// publishes made while disconnected are buffered by the client.
func Connect(cfg types.UplinkConfig, clientName string, logger *slog.Logger) (*Publisher, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("uplink enabled without host")
	}
	url := "nats://" + net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	opts := []nats.Option{
		nats.Name(clientName),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("uplink disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("uplink reconnected", "url", nc.ConnectedUrl())
		}),
	}
	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Pass))
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect uplink %s: %w", url, err)
	}
	logger.Info("uplink configured", "url", url, "subject", cfg.Topic)
	return &Publisher{
		nc:      nc,
		subject: cfg.Topic,
		close: func() {
			if err := nc.Drain(); err != nil {
				nc.Close()
			}
		},
	}, nil
}

func (p *Publisher) Publish(ctx context.Context, rec types.ActivityRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return p.nc.Publish(p.subject, data)
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() {
	if p.close != nil {
		p.close()
	}
}
