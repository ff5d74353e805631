// Package orchestrator implements the three top-level operations —
// check, deploy, rollback — that drive the compiler, projector, and
// remote executor against the configuration store.
package orchestrator

import (
	"context"
	"sort"

	"github.com/carriercomm/firelet/internal/compiler"
	"github.com/carriercomm/firelet/internal/logging"
	"github.com/carriercomm/firelet/internal/project"
	"github.com/carriercomm/firelet/internal/store"
	"github.com/carriercomm/firelet/internal/transport"
)

var log = logging.WithComponent("orchestrator")

// Orchestrator wires the configuration store to the fleet.
type Orchestrator struct {
	Store store.Backend
	Fleet *transport.Fleet
}

// New builds an Orchestrator over a given store backend and fleet.
func New(backend store.Backend, fleet *transport.Fleet) *Orchestrator {
	return &Orchestrator{Store: backend, Fleet: fleet}
}

// HostDiff is one host's drift between expected (compiled) and live
// (fetched) directives.
type HostDiff struct {
	// Missing are directives the compiled policy expects but the host
	// does not currently enforce.
	Missing []string
	// Extra are directives the host currently enforces that the
	// compiled policy does not expect.
	Extra []string
}

// InSync reports whether the host has no drift.
func (d HostDiff) InSync() bool {
	return len(d.Missing) == 0 && len(d.Extra) == 0
}

// CheckResult is the structured outcome of a check cycle.
type CheckResult struct {
	// Diffs holds one entry per host that responded to the fetch.
	Diffs map[string]HostDiff
	// Incomplete lists hosts absent from the fetch barrier (§7
	// FetchIncomplete) — check only warns on this, it never aborts.
	Incomplete []string
}

// Check fetches live state from the fleet, compiles the authoritative
// store, projects the compiled directives per host, and diffs the two,
// per §4.8: "fetch -> parse -> compile -> project -> diff against
// parsed live state -> return structured diff".
func (o *Orchestrator) Check(ctx context.Context) (*CheckResult, error) {
	st, err := o.Store.Load()
	if err != nil {
		return nil, err
	}
	directives, err := compiler.Compile(st)
	if err != nil {
		log.Error().Err(err).Msg("check: compile failed")
		return nil, err
	}
	proj := project.Project(directives, st)
	plans := flattenProjection(proj)

	live := o.Fleet.FetchAll(ctx)

	result := &CheckResult{Diffs: make(map[string]HostDiff)}
	for name := range o.Fleet.Targets {
		fr, ok := live[name]
		if !ok {
			result.Incomplete = append(result.Incomplete, name)
			log.Warn().Str("host", name).Msg("check: host absent from fetch barrier")
			continue
		}
		result.Diffs[name] = diffDirectives(plans[name], fr.Filter)
	}
	sort.Strings(result.Incomplete)
	return result, nil
}

// Deploy compiles the authoritative store, projects it per host,
// delivers the resulting restore blocks, and activates them. Activation
// is scoped to the hosts that actually received a delivery: a host
// missing from the deliver barrier is simply excluded from activation,
// rather than aborting the whole deploy — per §8 scenario 7, a deploy
// against five hosts with one unreachable still activates the other
// four and returns four "ok" entries plus one absent entry.
func (o *Orchestrator) Deploy(ctx context.Context) (map[string]string, error) {
	st, err := o.Store.Load()
	if err != nil {
		return nil, err
	}
	directives, err := compiler.Compile(st)
	if err != nil {
		log.Error().Err(err).Msg("deploy: compile failed")
		return nil, err
	}
	proj := project.Project(directives, st)
	plans := flattenProjection(proj)

	deliverStatus := o.Fleet.DeliverAll(ctx, plans)
	if len(deliverStatus) < len(o.Fleet.Targets) {
		log.Warn().
			Int("delivered", len(deliverStatus)).
			Int("targets", len(o.Fleet.Targets)).
			Msg("deploy: some hosts missed delivery, activation limited to the rest")
	}

	activateTargets := make(map[string]transport.Target, len(deliverStatus))
	for name := range deliverStatus {
		activateTargets[name] = o.Fleet.Targets[name]
	}
	activateFleet := &transport.Fleet{
		Targets:  activateTargets,
		Username: o.Fleet.Username,
		Dialer:   o.Fleet.Dialer,
	}
	return activateFleet.ActivateAll(ctx), nil
}

// Rollback restores the n-th previous version from the store and
// redeploys it, per §4.8: "rollback(n): delegate to store, then
// deploy".
func (o *Orchestrator) Rollback(ctx context.Context, n int) (map[string]string, error) {
	if _, err := o.Store.Rollback(n); err != nil {
		return nil, err
	}
	return o.Deploy(ctx)
}

// flattenProjection collapses a per-interface Projection into one
// ordered, deduplicated directive list per host, since delivery and the
// live dump are both host-scoped, not interface-scoped.
func flattenProjection(proj project.Projection) map[string][]string {
	out := make(map[string][]string, len(proj))
	for host, byIface := range proj {
		seen := make(map[string]bool)
		var combined []string
		ifaces := make([]string, 0, len(byIface))
		for iface := range byIface {
			ifaces = append(ifaces, iface)
		}
		sort.Strings(ifaces)
		for _, iface := range ifaces {
			for _, d := range byIface[iface] {
				if seen[d] {
					continue
				}
				seen[d] = true
				combined = append(combined, d)
			}
		}
		out[host] = combined
	}
	return out
}

// diffDirectives computes missing (expected, absent live) and extra
// (live, unexpected) directives, preserving each side's own order.
func diffDirectives(expected, live []string) HostDiff {
	liveSet := make(map[string]bool, len(live))
	for _, d := range live {
		liveSet[d] = true
	}
	expectedSet := make(map[string]bool, len(expected))
	for _, d := range expected {
		expectedSet[d] = true
	}

	var diff HostDiff
	for _, d := range expected {
		if !liveSet[d] {
			diff.Missing = append(diff.Missing, d)
		}
	}
	for _, d := range live {
		if !expectedSet[d] {
			diff.Extra = append(diff.Extra, d)
		}
	}
	return diff
}
