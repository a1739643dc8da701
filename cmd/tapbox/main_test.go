package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/BrandonDHaskell/tapbox/internal/tapbox/types"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCardsCommands(t *testing.T) {
	dataDir := t.TempDir()

	out, _, err := run(t, "--data-dir", dataDir, "cards", "add", "04a3f1", "#112233", "solid")
	require.NoError(t, err)
	assert.Equal(t, "added 04A3F1\n", out)

	out, _, err = run(t, "--data-dir", dataDir, "cards", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "04A3F1")
	assert.Contains(t, out, "#112233")

	raw, err := os.ReadFile(filepath.Join(dataDir, "cards.txt"))
	require.NoError(t, err)
	assert.Equal(t, "04A3F1,#112233,solid\n", string(raw))

	_, _, err = run(t, "--data-dir", dataDir, "cards", "delete", "04A3F1")
	require.NoError(t, err)
	raw, err = os.ReadFile(filepath.Join(dataDir, "cards.txt"))
	require.NoError(t, err)
	assert.Empty(t, raw)

	_, _, err = run(t, "--data-dir", dataDir, "cards", "add", "zz", "#112233", "solid")
	assert.Error(t, err)
}

func TestSQLiteStoreFlag(t *testing.T) {
	dataDir := t.TempDir()
	_, _, err := run(t, "--data-dir", dataDir, "--store", "sqlite", "cards", "add", "AA", "#010203", "blink")
	require.NoError(t, err)

	out, _, err := run(t, "--data-dir", dataDir, "--store", "sqlite", "cards", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "AA")
	assert.FileExists(t, filepath.Join(dataDir, "tapbox.db"))
}

func TestActivityCommands(t *testing.T) {
	dataDir := t.TempDir()
	line := `{"time":"2026-01-01 10:00:00","uid":"AA","status":"allowed"}` + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "activities.log"), []byte(line), 0o644))

	out, _, err := run(t, "--data-dir", dataDir, "activity", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "2026-01-01 10:00:00")
	assert.Contains(t, out, "allowed")

	_, _, err = run(t, "--data-dir", dataDir, "activity", "clear")
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(dataDir, "activities.log"))
}

func TestConfigShowYAML(t *testing.T) {
	dataDir := t.TempDir()
	doc := `{"deviceName":"Lobby","ledBrightness":"bright"}`
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "config.json"), []byte(doc), 0o644))

	out, errOut, err := run(t, "--data-dir", dataDir, "config", "show", "--yaml")
	require.NoError(t, err)
	assert.Contains(t, errOut, "ledBrightness")

	var got map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, "Lobby", got["deviceName"])
	assert.Equal(t, 255, got["ledBrightness"])
	light := got["light"].(map[string]any)
	assert.Equal(t, types.DefaultDeviceConfig().Light.KnownDefaultColor.String(), light["knownDefaultColor"])
}

func TestVersion(t *testing.T) {
	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "tapbox version dev\n", out)
}
