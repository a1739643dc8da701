package mgmt

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BrandonDHaskell/tapbox/internal/tapbox/hw"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/service"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/types"
)

// Deps are the stores and hardware the handler reads.
type Deps struct {
	Cards    *service.CardRegistry
	Activity *service.ActivityLog
	Config   *service.ConfigStore

	Network hw.Network
	System  hw.System
	Battery hw.Battery
	Wall    hw.WallClock

	Version string
	Logger  *slog.Logger
}

// Handler executes commands synchronously. It is not safe for concurrent
// use; the engine calls it from its own goroutine only.
type Handler struct {
	d Deps
}

func NewHandler(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Handler{d: d}
}

func (h *Handler) Handle(ctx context.Context, snap Snapshot, cmd Command) Result {
	switch c := cmd.(type) {
	case ReadConfig:
		raw, err := h.d.Config.ReadRaw()
		return Result{Value: raw, Err: err}

	case WriteConfig:
		if err := h.d.Config.Save(c.Raw); err != nil {
			return Result{Err: err}
		}
		h.d.Logger.Info("config saved, restart required", "bytes", len(c.Raw))
		return Result{Restart: true}

	case ReadLastTag:
		if snap.LastTag == "" {
			return Result{Value: NoTag}
		}
		return Result{Value: snap.LastTag.String()}

	case ListCards:
		cards, err := h.d.Cards.List()
		return Result{Value: cards, Err: err}

	case AddCard:
		rec, err := service.ParseCardRecord(c.UID, c.Color, c.Animation)
		if err != nil {
			return Result{Err: err}
		}
		if err := h.d.Cards.Add(rec); err != nil {
			return Result{Err: err}
		}
		h.d.Logger.Info("card added", "uid", rec.ID, "color", rec.Color.String(), "animation", rec.Animation)
		return Result{Value: rec}

	case DeleteCard:
		id, err := types.ParseTagID(c.UID)
		if err != nil {
			return Result{Err: fmt.Errorf("%w: uid %q: %v", service.ErrValidation, c.UID, err)}
		}
		if err := h.d.Cards.Delete(id); err != nil {
			return Result{Err: err}
		}
		h.d.Logger.Info("card deleted", "uid", id)
		return Result{}

	case ReadCardStore:
		raw, err := h.d.Cards.ReadRaw()
		return Result{Value: raw, Err: err}

	case WriteCardStore:
		if !snap.Config.Management.RawEditor {
			return Result{Err: fmt.Errorf("raw card editor: %w", ErrDisabled)}
		}
		n, err := h.d.Cards.WriteRaw(bytes.NewReader(c.Data))
		return Result{Value: n, Err: err}

	case UploadCardStore:
		if !snap.Config.Management.Upload {
			return Result{Err: fmt.Errorf("card upload: %w", ErrDisabled)}
		}
		n, err := h.d.Cards.WriteRaw(bytes.NewReader(c.Data))
		if err == nil {
			h.d.Logger.Info("card store uploaded", "file", c.Filename, "bytes", n)
		}
		return Result{Value: n, Err: err}

	case ReadActivity:
		recs, err := h.d.Activity.ReadAll()
		return Result{Value: recs, Err: err}

	case ClearActivity:
		return Result{Err: h.d.Activity.Clear()}

	case ReadStatus:
		return Result{Value: h.status(snap)}
	}
	return Result{Err: fmt.Errorf("unsupported command %T", cmd)}
}

func (h *Handler) status(snap Snapshot) types.DeviceStatus {
	net := h.d.Network.Info()
	st := types.DeviceStatus{
		DeviceName:      snap.Config.DeviceName,
		FirmwareVersion: h.d.Version,
		IPAddress:       net.IP,
		MACAddress:      net.MAC,
		WiFi:            net.SSID,
		WiFiStrength:    net.RSSI,
		Time:            types.UnknownTime,
		UptimeSeconds:   uint64(snap.Uptime / time.Second),
		UptimeHMS:       FormatUptime(snap.Uptime),
		LightDurationMs: snap.Config.Light.LightDurationMs,
		ServerAddress:   snap.Config.Server.Address,
		FreeHeap:        h.d.System.FreeMemory(),
		FlashSize:       h.d.System.FlashSize(),
		ScanningEnabled: snap.ScanningEnabled,
	}
	if now, ok := h.d.Wall.WallTime(); ok {
		st.Time = now.Format(types.ActivityTimeLayout)
	}
	if v, err := h.d.Battery.Voltage(); err == nil {
		st.BatteryLevel = hw.BatteryPercent(v)
	} else {
		h.d.Logger.Warn("battery read failed", "err", err)
	}
	// Size errors leave the figure at zero; status is best effort.
	st.ActivityLogBytes, _ = h.d.Activity.Size()
	st.CardStoreBytes, _ = h.d.Cards.Size()
	return st
}

// FormatUptime renders d as "Xh Ym Zs".
func FormatUptime(d time.Duration) string {
	s := int64(d / time.Second)
	return fmt.Sprintf("%dh %dm %ds", s/3600, s%3600/60, s%60)
}
