package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/tapbox/internal/config"
	"github.com/BrandonDHaskell/tapbox/internal/grpcapi"
	"github.com/BrandonDHaskell/tapbox/internal/httpapi"
	"github.com/BrandonDHaskell/tapbox/internal/logging"
	"github.com/BrandonDHaskell/tapbox/internal/metrics"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/engine"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/hw"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/mgmt"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/service"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/store"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/store/dir"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/uplink"
)

func serveCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the device: scan tags and serve the management API",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, closeLog, err := logging.Open(cfg.LogLevel, cfg.LogFile)
			if err != nil {
				return err
			}
			defer closeLog.Close()
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, *cfg, logger)
		},
	}
}

// device is the hardware that outlives a reboot of the engine.
type device struct {
	reader  hw.Reader
	strip   hw.Strip
	buzzer  hw.Buzzer
	battery hw.Battery
	network hw.Network
	system  hw.System
	clock   hw.SystemClock
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.Init(reg, version); err != nil {
		return err
	}

	fs, unmount, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer unmount()
	logger.Info("store mounted", "backend", cfg.Store, "dir", cfg.DataDir, "env", cfg.Env)

	if d, ok := fs.(*dir.FS); ok {
		w, err := d.Watch(logger, store.ConfigFile, store.CardsFile)
		if err != nil {
			logger.Warn("file watcher unavailable", "err", err)
		} else {
			wctx, stopWatch := context.WithCancel(ctx)
			go w.Run(wctx, nil)
			defer func() {
				stopWatch()
				w.Wait()
			}()
		}
	}

	dev := device{
		strip:   hw.NewLogStrip(cfg.LEDCount, logger),
		buzzer:  hw.LogBuzzer{Logger: logger},
		battery: hw.FixedBattery(cfg.BatteryVolts),
		network: hw.HostNetwork{},
		system:  hw.HostSystem{Flash: cfg.FlashBytes},
	}
	lr, err := hw.OpenLineReader(cfg.ReaderDevice, logger)
	if err != nil {
		logger.Error("open tag reader", "device", cfg.ReaderDevice, "err", err)
		dev.reader = &hw.SimReader{ProbeErr: err}
	} else {
		defer lr.Close()
		dev.reader = lr
	}

	for {
		err := boot(ctx, cfg, logger, reg, fs, dev)
		if errors.Is(err, engine.ErrRestart) {
			logger.Info("rebooting from persisted state")
			continue
		}
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
}

// boot runs one power cycle: it builds the engine from persisted state and
// serves until shutdown or a restart request.
func boot(ctx context.Context, cfg config.Config, logger *slog.Logger, reg *prometheus.Registry, fs store.FS, dev device) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cards := service.NewCardRegistry(fs)
	activity := service.NewActivityLog(fs)
	configStore := service.NewConfigStore(fs)

	handler := mgmt.NewHandler(mgmt.Deps{
		Cards:    cards,
		Activity: activity,
		Config:   configStore,
		Network:  dev.network,
		System:   dev.system,
		Battery:  dev.battery,
		Wall:     dev.clock,
		Version:  version,
		Logger:   logger,
	})
	eng := engine.New(engine.Options{
		Reader:            dev.reader,
		Strip:             dev.strip,
		Buzzer:            dev.buzzer,
		Clock:             dev.clock,
		Wall:              dev.clock,
		Cards:             cards,
		Activity:          activity,
		Config:            configStore,
		Handler:           handler,
		Logger:            logger,
		PollTimeout:       cfg.PollTimeout,
		ReaderRetries:     cfg.ReaderRetries,
		ActivityWarnBytes: cfg.LogWarnBytes,
	})
	if err := eng.Boot(ctx); err != nil {
		return err
	}
	dc := eng.Snapshot().Config

	if dc.Uplink.Enable {
		pub, err := uplink.Connect(dc.Uplink, dc.DeviceName, logger)
		if err != nil {
			logger.Warn("uplink unavailable", "err", err)
		} else {
			defer pub.Close()
			eng.SetPublisher(pub)
		}
	}

	hb := uplink.NewHeartbeatReporter(uplink.HeartbeatConfig{
		URL:      uplink.HeartbeatURL(dc.Server),
		Interval: time.Duration(dc.Server.HeartbeatSeconds) * time.Second,
		ModuleID: dc.DeviceName,
		Version:  version,
	}, eng.Snapshot, dev.network, dev.system, logger)
	hb.Start(ctx)
	defer hb.Stop()

	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			logger.Error("grpc listen", "addr", cfg.GRPCAddr, "err", err)
		} else {
			gs := grpcapi.NewServer(logger)
			go func() {
				if err := gs.Serve(lis); err != nil {
					logger.Error("grpc server error", "err", err)
				}
			}()
			go gs.WatchScanning(ctx, time.Second, func() bool { return eng.Snapshot().ScanningEnabled })
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				gs.Stop(stopCtx)
			}()
		}
	}

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:   logger,
		Addr:     cfg.HTTPAddr,
		Engine:   eng,
		Gatherer: reg,
	})
	httpErr := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
			cancel()
		}
	}()

	runErr := eng.Run(ctx)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = srv.Shutdown(shutdownCtx)

	select {
	case err := <-httpErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return runErr
	}
}
