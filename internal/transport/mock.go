package transport

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	ferrors "github.com/carriercomm/firelet/internal/errors"
)

// MockDialer replaces the SSH transport with file-backed stubs, so the
// full pipeline is exercisable without a real fleet. Grounded on the
// original implementation's MockSSHConnector, which reads and writes
// "iptables-save-<host>" and "ip-addr-show-<host>" files in a local
// directory instead of opening SSH sessions.
type MockDialer struct {
	Dir string
}

func (d *MockDialer) Dial(ctx context.Context, hostname, address, username string) (Executor, error) {
	if _, err := os.Stat(d.Dir); err != nil {
		return nil, ferrors.Wrapf(err, ferrors.KindUnreachable, "mock transport: repo dir %s", d.Dir)
	}
	return &mockExecutor{dir: d.Dir, hostname: hostname}, nil
}

type mockExecutor struct {
	dir      string
	hostname string
	closed   bool
}

func (e *mockExecutor) Run(ctx context.Context, cmd string) ([]string, error) {
	switch cmd {
	case "sudo /sbin/iptables-save":
		return e.readLines("iptables-save-" + e.hostname)
	case "/bin/ip addr show":
		return e.readLines("ip-addr-show-" + e.hostname)
	case "sync":
		return nil, nil
	case "/sbin/iptables-restore < iptables_current":
		return nil, nil
	default:
		if strings.HasPrefix(cmd, "/bin/ln -fs ") {
			return nil, nil
		}
		return nil, ferrors.Errorf(ferrors.KindUnreachable, "mock transport: unsupported command %q", cmd)
	}
}

func (e *mockExecutor) readLines(name string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(e.dir, name))
	if err != nil {
		return nil, ferrors.Wrapf(err, ferrors.KindUnreachable, "mock transport: read %s", name)
	}
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}

// SendBlock writes the restore block to "iptables-save-<host>" in place
// of an SSH delivery, so a subsequent fetch from the same mock directory
// observes the newly delivered configuration.
func (e *mockExecutor) SendBlock(ctx context.Context, path string, lines []string) error {
	name := filepath.Join(e.dir, "iptables-save-"+e.hostname)
	f, err := os.Create(name)
	if err != nil {
		return ferrors.Wrapf(err, ferrors.KindPersistence, "mock transport: write %s", name)
	}
	defer f.Close()
	for _, l := range lines {
		if _, err := f.WriteString(l + "\n"); err != nil {
			return ferrors.Wrapf(err, ferrors.KindPersistence, "mock transport: write %s", name)
		}
	}
	return nil
}

func (e *mockExecutor) Close() error {
	e.closed = true
	return nil
}
