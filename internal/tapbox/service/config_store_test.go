package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/tapbox/internal/tapbox/service"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/store"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/store/memory"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/types"
)

func TestConfigStore_MissingDocumentIsDefaults(t *testing.T) {
	cfg, issues, err := service.NewConfigStore(memory.New()).Load()
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Equal(t, types.DefaultDeviceConfig(), cfg)
}

func TestConfigStore_MissingFieldDefaultsOthersKept(t *testing.T) {
	fs := memory.New()
	require.NoError(t, fs.WriteFile(store.ConfigFile, []byte(`{
		"deviceName": "Lobby",
		"ledBrightness": 80,
		"light": {"unknownDefaultColor": "#0000FF", "lightDuration": 2500}
	}`)))

	cfg, issues, err := service.NewConfigStore(fs).Load()
	require.NoError(t, err)
	assert.Empty(t, issues)

	assert.Equal(t, "Lobby", cfg.DeviceName)
	assert.Equal(t, 80, cfg.LEDBrightness)
	assert.Equal(t, types.RGB{B: 0xFF}, cfg.Light.UnknownDefaultColor)
	assert.Equal(t, 2500, cfg.Light.LightDurationMs)

	def := types.DefaultDeviceConfig()
	assert.Equal(t, def.Light.KnownDefaultColor, cfg.Light.KnownDefaultColor)
	assert.Equal(t, def.Light.UnknownCardAnimation, cfg.Light.UnknownCardAnimation)
	assert.Equal(t, def.Light.NumberOfBlinks, cfg.Light.NumberOfBlinks)
	assert.Equal(t, def.Sound, cfg.Sound)
}

func TestConfigStore_BadFieldDoesNotFailLoad(t *testing.T) {
	fs := memory.New()
	require.NoError(t, fs.WriteFile(store.ConfigFile, []byte(`{
		"deviceName": 42,
		"ledBrightness": 999,
		"light": {"knownDefaultColor": "green", "lightDuration": 1.5, "numberOfBlinks": 4},
		"wifi": "nope",
		"server": {"address": "10.0.0.5", "port": null}
	}`)))

	cfg, issues, err := service.NewConfigStore(fs).Load()
	require.NoError(t, err)

	def := types.DefaultDeviceConfig()
	assert.Equal(t, def.DeviceName, cfg.DeviceName)
	assert.Equal(t, def.LEDBrightness, cfg.LEDBrightness)
	assert.Equal(t, def.Light.KnownDefaultColor, cfg.Light.KnownDefaultColor)
	assert.Equal(t, def.Light.LightDurationMs, cfg.Light.LightDurationMs)
	assert.Equal(t, 4, cfg.Light.NumberOfBlinks)
	assert.Equal(t, "10.0.0.5", cfg.Server.Address)
	assert.Equal(t, def.Server.Port, cfg.Server.Port)

	assert.ElementsMatch(t, []string{
		"deviceName", "ledBrightness", "light.knownDefaultColor", "light.lightDuration", "wifi",
	}, issues)
}

func TestConfigStore_GarbageDocumentIsDefaults(t *testing.T) {
	fs := memory.New()
	require.NoError(t, fs.WriteFile(store.ConfigFile, []byte(`{"deviceName": "Lob`)))

	cfg, issues, err := service.NewConfigStore(fs).Load()
	require.NoError(t, err)
	assert.Equal(t, types.DefaultDeviceConfig(), cfg)
	assert.Equal(t, []string{"(document)"}, issues)
}

func TestConfigStore_SaveValidatesAndKeepsVerbatim(t *testing.T) {
	fs := memory.New()
	cs := service.NewConfigStore(fs)

	raw, err := cs.ReadRaw()
	require.NoError(t, err)
	assert.Equal(t, "{}", string(raw))

	doc := "{\n  \"deviceName\": \"Lobby\"\n}\n"
	require.NoError(t, cs.Save([]byte(doc)))

	raw, err = cs.ReadRaw()
	require.NoError(t, err)
	assert.Equal(t, doc, string(raw))

	for _, bad := range []string{"", "   ", "not json", `{"a":`, `[1,2]`, `"str"`, "null", " null\n"} {
		err := cs.Save([]byte(bad))
		assert.ErrorIs(t, err, service.ErrValidation, "input %q", bad)
	}

	raw, err = cs.ReadRaw()
	require.NoError(t, err)
	assert.Equal(t, doc, string(raw), "rejected writes leave the document unchanged")
}
