package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/BrandonDHaskell/tapbox/internal/tapbox/store"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/types"
)

// ConfigStore persists config.json. Saved documents take effect only after
// a restart: nothing here touches the configuration the engine booted with.
type ConfigStore struct {
	fs store.FS
}

func NewConfigStore(fs store.FS) *ConfigStore {
	return &ConfigStore{fs: fs}
}

// Load parses the persisted document. Every field falls back to its default
// on its own; issues names the fields that were present but unusable. Only
// storage failures are returned as errors, together with the defaults.
func (s *ConfigStore) Load() (cfg types.DeviceConfig, issues []string, err error) {
	data, err := s.fs.ReadFile(store.ConfigFile)
	if store.IsNotExist(err) {
		return types.DefaultDeviceConfig(), nil, nil
	}
	if err != nil {
		return types.DefaultDeviceConfig(), nil, fmt.Errorf("load config: %w", err)
	}
	cfg, issues = ParseDeviceConfig(data)
	return cfg, issues, nil
}

// ReadRaw returns the persisted document verbatim, or "{}" when there is none.
func (s *ConfigStore) ReadRaw() ([]byte, error) {
	data, err := s.fs.ReadFile(store.ConfigFile)
	if store.IsNotExist(err) {
		return []byte("{}"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return data, nil
}

// Save persists raw verbatim once it parses as a JSON object.
func (s *ConfigStore) Save(raw []byte) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return validationError("missing config data")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return validationError("invalid JSON: %v", err)
	}
	if fields == nil {
		return validationError("config must be a JSON object")
	}
	if err := s.fs.WriteFile(store.ConfigFile, raw); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

// ParseDeviceConfig decodes data field by field over the defaults.
func ParseDeviceConfig(data []byte) (types.DeviceConfig, []string) {
	cfg := types.DefaultDeviceConfig()
	p := &fieldParser{}

	root, ok := p.object("", data)
	if !ok {
		return cfg, p.issues
	}

	p.str(root, "deviceName", &cfg.DeviceName)
	p.intIn(root, "ledBrightness", &cfg.LEDBrightness, 0, 255)
	p.intIn(root, "mode", &cfg.Mode, math.MinInt32, math.MaxInt32)
	p.str(root, "hotspotPassword", &cfg.HotspotPassword)

	if light, ok := p.sub(root, "light"); ok {
		p.color(light, "knownDefaultColor", &cfg.Light.KnownDefaultColor)
		p.color(light, "unknownDefaultColor", &cfg.Light.UnknownDefaultColor)
		p.animation(light, "knownCardAnimation", &cfg.Light.KnownCardAnimation)
		p.animation(light, "unknownCardAnimation", &cfg.Light.UnknownCardAnimation)
		p.intIn(light, "lightDuration", &cfg.Light.LightDurationMs, 0, math.MaxInt32)
		p.intIn(light, "numberOfBlinks", &cfg.Light.NumberOfBlinks, 0, 1000)
	}
	if sound, ok := p.sub(root, "sound"); ok {
		p.boolean(sound, "tapDetection", &cfg.Sound.TapDetection)
		p.intIn(sound, "volume", &cfg.Sound.Volume, 0, 100)
		p.boolean(sound, "onStatus", &cfg.Sound.OnStatus)
		p.intIn(sound, "duration", &cfg.Sound.DurationMs, 0, 10000)
	}
	if wifi, ok := p.sub(root, "wifi"); ok {
		p.str(wifi, "ssid", &cfg.WiFi.SSID)
		p.str(wifi, "password", &cfg.WiFi.Password)
	}
	if server, ok := p.sub(root, "server"); ok {
		p.str(server, "address", &cfg.Server.Address)
		p.intIn(server, "port", &cfg.Server.Port, 1, 65535)
		p.intIn(server, "heartbeatSeconds", &cfg.Server.HeartbeatSeconds, 0, 86400)
	}
	if uplink, ok := p.sub(root, "uplink"); ok {
		p.boolean(uplink, "enable", &cfg.Uplink.Enable)
		p.str(uplink, "host", &cfg.Uplink.Host)
		p.intIn(uplink, "port", &cfg.Uplink.Port, 1, 65535)
		p.str(uplink, "topic", &cfg.Uplink.Topic)
		p.str(uplink, "user", &cfg.Uplink.User)
		p.str(uplink, "pass", &cfg.Uplink.Pass)
	}
	if iot, ok := p.sub(root, "iot"); ok {
		p.boolean(iot, "enabled", &cfg.IoT.Enabled)
		p.str(iot, "mode", &cfg.IoT.Mode)
	}
	if mgmt, ok := p.sub(root, "management"); ok {
		p.boolean(mgmt, "rawEditor", &cfg.Management.RawEditor)
		p.boolean(mgmt, "upload", &cfg.Management.Upload)
	}
	return cfg, p.issues
}

type object struct {
	path   string
	fields map[string]json.RawMessage
}

type fieldParser struct {
	issues []string
}

func (p *fieldParser) bad(o object, key string) {
	p.issues = append(p.issues, join(o.path, key))
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func (p *fieldParser) object(path string, raw []byte) (object, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		name := path
		if name == "" {
			name = "(document)"
		}
		p.issues = append(p.issues, name)
		return object{}, false
	}
	return object{path: path, fields: fields}, true
}

func (p *fieldParser) sub(o object, key string) (object, bool) {
	raw, ok := o.get(key)
	if !ok {
		return object{}, false
	}
	return p.object(join(o.path, key), raw)
}

func (p *fieldParser) str(o object, key string, dst *string) {
	raw, ok := o.get(key)
	if !ok {
		return
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		p.bad(o, key)
		return
	}
	*dst = v
}

func (p *fieldParser) boolean(o object, key string, dst *bool) {
	raw, ok := o.get(key)
	if !ok {
		return
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		p.bad(o, key)
		return
	}
	*dst = v
}

func (p *fieldParser) intIn(o object, key string, dst *int, lo, hi int) {
	raw, ok := o.get(key)
	if !ok {
		return
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil || f != math.Trunc(f) || f < float64(lo) || f > float64(hi) {
		p.bad(o, key)
		return
	}
	*dst = int(f)
}

func (p *fieldParser) color(o object, key string, dst *types.RGB) {
	raw, ok := o.get(key)
	if !ok {
		return
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		p.bad(o, key)
		return
	}
	c, err := types.ParseRGB(s)
	if err != nil {
		p.bad(o, key)
		return
	}
	*dst = c
}

func (p *fieldParser) animation(o object, key string, dst *types.Animation) {
	var s string
	p.str(o, key, &s)
	if a := types.NormalizeAnimation(s); a != "" {
		*dst = a
	}
}

// get treats an explicit null like an absent key.
func (o object) get(key string) (json.RawMessage, bool) {
	raw, ok := o.fields[key]
	if !ok || string(bytes.TrimSpace(raw)) == "null" {
		return nil, false
	}
	return raw, true
}
