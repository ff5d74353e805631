package transport

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestBuildRestoreBlock(t *testing.T) {
	block := BuildRestoreBlock("fw1", []string{"-A FORWARD -s 1.1.1.1 -j ACCEPT"})
	require.Equal(t, []string{
		"# Created by firelet for host fw1",
		"*filter",
		":INPUT ACCEPT",
		":FORWARD ACCEPT",
		":OUTPUT ACCEPT",
		"-A FORWARD -s 1.1.1.1 -j ACCEPT",
		"COMMIT",
	}, block)
}

func TestFetchAllWithMockTransport(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "iptables-save-fw1", "*filter\n:INPUT ACCEPT\n-A INPUT -s 1.1.1.1 -j ACCEPT\nCOMMIT\n")
	writeFile(t, dir, "ip-addr-show-fw1", "1: eth0: <UP> mtu 1500\n    inet 1.1.1.1/24 scope global eth0\n")

	f := NewFleet(map[string][]string{"fw1": {"fw1"}}, "firelet", &MockDialer{Dir: dir})
	results := f.FetchAll(context.Background())

	require.Contains(t, results, "fw1")
	require.Equal(t, []string{"-A INPUT -s 1.1.1.1 -j ACCEPT"}, results["fw1"].Filter)
	require.Equal(t, "1.1.1.1/24", results["fw1"].Interfaces["eth0"].IPv4)
}

func TestFetchAllIsolatesPerHostFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "iptables-save-good", "*filter\n:INPUT ACCEPT\nCOMMIT\n")
	writeFile(t, dir, "ip-addr-show-good", "")
	// "bad" host has no backing files: mock dial itself succeeds (dir
	// exists) but the fetch commands fail, same as an unreachable host.

	f := NewFleet(map[string][]string{
		"good": {"good"},
		"bad":  {"bad"},
	}, "firelet", &MockDialer{Dir: dir})

	results := f.FetchAll(context.Background())
	require.Contains(t, results, "good")
	require.NotContains(t, results, "bad")
}

func TestDeliverThenActivateAll(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ip-addr-show-fw1", "")

	f := NewFleet(map[string][]string{"fw1": {"fw1"}}, "firelet", &MockDialer{Dir: dir})

	plans := map[string][]string{"fw1": {"-A FORWARD -s 1.1.1.1 -j ACCEPT"}}
	deliverStatus := f.DeliverAll(context.Background(), plans)
	require.Equal(t, "ok", deliverStatus["fw1"])

	activateStatus := f.ActivateAll(context.Background())
	require.Equal(t, "ok", activateStatus["fw1"])

	data, err := os.ReadFile(filepath.Join(dir, "iptables-save-fw1"))
	require.NoError(t, err)
	require.Contains(t, string(data), "-A FORWARD -s 1.1.1.1 -j ACCEPT")
}

func TestDeliverAllMissingHostHasNoStatus(t *testing.T) {
	f := NewFleet(map[string][]string{
		"unreachable": nil, // no addresses configured
	}, "firelet", &MockDialer{Dir: t.TempDir()})

	status := f.DeliverAll(context.Background(), map[string][]string{})
	require.NotContains(t, status, "unreachable")
}
