// Package transport implements the concurrent remote-execution layer:
// per-host SSH sessions fanned out across the fleet, fetch/deliver/
// activate phases, and a mockable transport so the pipeline is
// exercisable without a real fleet.
package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/carriercomm/firelet/internal/dump"
	"github.com/carriercomm/firelet/internal/logging"
)

var log = logging.WithComponent("transport")

// Target is one fleet member: a host name and its management addresses,
// ordered by preference. Only the first address is used (§4.7).
type Target struct {
	Name      string
	Addresses []string
}

// Executor is a single-use remote command session. Sessions are
// three-state automata — disconnected -> authenticated -> closed, with
// error transitions from any state to closed — so this interface must
// never be reused across operations (§4.7 session policy).
type Executor interface {
	// Run executes cmd remotely and returns its output split into lines.
	Run(ctx context.Context, cmd string) ([]string, error)
	// SendBlock writes lines to path via a here-document-equivalent write.
	SendBlock(ctx context.Context, path string, lines []string) error
	// Close releases the session. Safe to call multiple times.
	Close() error
}

// Dialer opens a fresh Executor session to a single host. Implementations
// must not cache or reuse sessions (one-shot contract, reconnect each
// cycle).
type Dialer interface {
	Dial(ctx context.Context, hostname, address, username string) (Executor, error)
}

// FetchResult is one host's live configuration as read from the fleet.
type FetchResult struct {
	Filter     []string
	NAT        []string
	Interfaces map[string]dump.Interface
}

// Fleet fans out fetch/deliver/activate operations across a set of
// target hosts, one task per host, with a barrier at the end of each
// phase.
type Fleet struct {
	Targets  map[string]Target
	Username string
	Dialer   Dialer
}

// NewFleet builds a Fleet from a name->addresses mapping, per §6's
// `targets` configuration option.
func NewFleet(targets map[string][]string, username string, dialer Dialer) *Fleet {
	f := &Fleet{Targets: make(map[string]Target, len(targets)), Username: username, Dialer: dialer}
	for name, addrs := range targets {
		f.Targets[name] = Target{Name: name, Addresses: addrs}
	}
	return f
}

// sessionTimeout bounds connecting to a single host ("several seconds").
// Commands run over an open session are not bounded by it.
const sessionTimeout = 5 * time.Second

// FetchAll connects to every host in parallel, runs the fetch commands,
// and parses the results. A host that cannot be reached is simply
// absent from the returned map; the caller (orchestrator) decides
// whether that constitutes FetchIncomplete.
func (f *Fleet) FetchAll(ctx context.Context) map[string]FetchResult {
	results := make(map[string]FetchResult, len(f.Targets))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for name, target := range f.Targets {
		wg.Add(1)
		go func(name string, target Target) {
			defer wg.Done()
			r, ok := f.fetchOne(ctx, name, target)
			if !ok {
				return
			}
			mu.Lock()
			results[name] = r
			mu.Unlock()
		}(name, target)
	}
	wg.Wait()
	return results
}

func (f *Fleet) fetchOne(ctx context.Context, name string, target Target) (FetchResult, bool) {
	hlog := logging.WithHost(name)
	exec, ok := f.connect(ctx, name, target)
	if !ok {
		return FetchResult{}, false
	}
	defer exec.Close()

	filterLines, err := exec.Run(ctx, "sudo /sbin/iptables-save")
	if err != nil {
		hlog.Warn().Err(err).Msg("fetch: iptables-save failed")
		return FetchResult{}, false
	}
	ifaceLines, err := exec.Run(ctx, "/bin/ip addr show")
	if err != nil {
		hlog.Warn().Err(err).Msg("fetch: ip addr show failed")
		return FetchResult{}, false
	}

	parsed, err := dump.ParseSave(filterLines, name)
	if err != nil {
		hlog.Warn().Err(err).Msg("fetch: parse failed")
		return FetchResult{}, false
	}

	return FetchResult{
		Filter:     parsed.Filter,
		NAT:        parsed.NAT,
		Interfaces: dump.ParseInterfaces(ifaceLines),
	}, true
}

// DeliverAll writes the compiled directive block for each host in
// parallel and returns "ok" for hosts that succeeded; unreachable or
// failed hosts are simply absent from the returned map.
func (f *Fleet) DeliverAll(ctx context.Context, plans map[string][]string) map[string]string {
	status := make(map[string]string, len(f.Targets))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for name, target := range f.Targets {
		directives := plans[name]
		wg.Add(1)
		go func(name string, target Target, directives []string) {
			defer wg.Done()
			if !f.deliverOne(ctx, name, target, directives) {
				return
			}
			mu.Lock()
			status[name] = "ok"
			mu.Unlock()
		}(name, target, directives)
	}
	wg.Wait()
	return status
}

func (f *Fleet) deliverOne(ctx context.Context, name string, target Target, directives []string) bool {
	hlog := logging.WithHost(name)
	exec, ok := f.connect(ctx, name, target)
	if !ok {
		return false
	}
	defer exec.Close()

	ts := time.Now().UTC().Format("2006-01-02T15:04:05")
	path := ".iptables-" + ts
	block := BuildRestoreBlock(name, directives)

	if err := exec.SendBlock(ctx, path, block); err != nil {
		hlog.Warn().Err(err).Msg("deliver: write failed")
		return false
	}
	if _, err := exec.Run(ctx, "sync"); err != nil {
		hlog.Warn().Err(err).Msg("deliver: sync failed")
		return false
	}
	if _, err := exec.Run(ctx, fmt.Sprintf("/bin/ln -fs %s iptables_current", path)); err != nil {
		hlog.Warn().Err(err).Msg("deliver: relink failed")
		return false
	}
	return true
}

// ActivateAll runs iptables-restore on every host in parallel.
func (f *Fleet) ActivateAll(ctx context.Context) map[string]string {
	status := make(map[string]string, len(f.Targets))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for name, target := range f.Targets {
		wg.Add(1)
		go func(name string, target Target) {
			defer wg.Done()
			if !f.activateOne(ctx, name, target) {
				return
			}
			mu.Lock()
			status[name] = "ok"
			mu.Unlock()
		}(name, target)
	}
	wg.Wait()
	return status
}

func (f *Fleet) activateOne(ctx context.Context, name string, target Target) bool {
	hlog := logging.WithHost(name)
	exec, ok := f.connect(ctx, name, target)
	if !ok {
		return false
	}
	defer exec.Close()

	if _, err := exec.Run(ctx, "/sbin/iptables-restore < iptables_current"); err != nil {
		hlog.Warn().Err(err).Msg("activate: restore failed")
		return false
	}
	return true
}

// connect opens a fresh session to target's first address. Remote
// errors never cross this boundary as Go errors; they are logged and
// reduced to a boolean, per §7's policy that per-host failures must not
// raise across the concurrent barrier.
func (f *Fleet) connect(ctx context.Context, name string, target Target) (Executor, bool) {
	if len(target.Addresses) == 0 {
		log.Warn().Str("host", name).Msg("connect: no management address configured")
		return nil, false
	}
	dialCtx, cancel := context.WithTimeout(ctx, sessionTimeout)
	defer cancel()

	exec, err := f.Dialer.Dial(dialCtx, name, target.Addresses[0], f.Username)
	if err != nil {
		logging.WithHost(name).Warn().Err(err).Msg("connect: unreachable")
		return nil, false
	}
	return exec, true
}

// BuildRestoreBlock produces the *filter block an activate phase will
// load with iptables-restore, per §4.7.
func BuildRestoreBlock(host string, directives []string) []string {
	block := []string{
		fmt.Sprintf("# Created by firelet for host %s", host),
		"*filter",
		":INPUT ACCEPT",
		":FORWARD ACCEPT",
		":OUTPUT ACCEPT",
	}
	block = append(block, directives...)
	block = append(block, "COMMIT")
	return block
}
