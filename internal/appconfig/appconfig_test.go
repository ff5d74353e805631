package appconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "firelet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
targets:
  fw1: ["10.0.0.1"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "firewall", cfg.RepoDir)
	require.Equal(t, "firelet", cfg.Username)
	require.Equal(t, ModeLive, cfg.Mode)
	require.Equal(t, []string{"10.0.0.1"}, cfg.Targets["fw1"])
}

func TestLoadRespectsExplicitValues(t *testing.T) {
	path := writeConfig(t, `
repodir: /etc/firelet/tables
username: netops
mode: mock
mock_dir: /tmp/mock-fleet
targets:
  fw1: ["10.0.0.1", "10.0.0.2"]
  fw2: ["10.0.0.3"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/etc/firelet/tables", cfg.RepoDir)
	require.Equal(t, "netops", cfg.Username)
	require.Equal(t, ModeMock, cfg.Mode)
	require.Equal(t, "/tmp/mock-fleet", cfg.MockDir)
	require.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.Targets["fw1"])
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	path := writeConfig(t, "mode: bogus\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsMockModeWithoutDir(t *testing.T) {
	path := writeConfig(t, "mode: mock\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
