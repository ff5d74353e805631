// Package compiler resolves symbolic rule references (host groups,
// services, networks) and compiles them into a flat, deterministically
// ordered list of packet-filter directives.
package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/carriercomm/firelet/internal/addr"
	ferrors "github.com/carriercomm/firelet/internal/errors"
	"github.com/carriercomm/firelet/internal/model"
)

// endpoint is a single resolved rule endpoint: either a wildcard ("*",
// contributing no -s/-d flag), a host address, or a network CIDR.
type endpoint struct {
	wildcard bool
	text     string
}

var ruleNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// lookups bundles the five resolution tables built once per compile.
type lookups struct {
	addr   map[string]string        // "name:iface" -> ip
	net    map[string]model.Network // name -> network
	hg     map[string][]string      // name -> raw one-level members
	hgFlat map[string][]endpoint    // name -> recursively flattened endpoints
	svc    map[string]model.Service // name -> service, including "*"
}

// Compile resolves and expands every enabled rule in st into an ordered
// list of concrete directives, per spec §4.5. Output is deterministic
// for fixed input.
func Compile(st *model.Store) ([]string, error) {
	lk, err := buildLookups(st)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, rule := range st.Rules {
		if !rule.Enabled {
			continue
		}
		directives, err := compileRule(rule, lk)
		if err != nil {
			return nil, err
		}
		out = append(out, directives...)
	}
	return out, nil
}

func buildLookups(st *model.Store) (*lookups, error) {
	lk := &lookups{
		addr: make(map[string]string),
		net:  make(map[string]model.Network),
		hg:   make(map[string][]string),
		svc:  make(map[string]model.Service),
	}

	for _, h := range st.Hosts {
		lk.addr[h.Key()] = h.Addr
	}
	for _, n := range st.Networks {
		lk.net[n.Name] = n
	}
	for _, hg := range st.HostGroups {
		lk.hg[hg.Name] = hg.Members
	}
	for _, s := range st.Services {
		lk.svc[s.Name] = s
	}
	lk.svc["*"] = model.AnyService

	lk.hgFlat = make(map[string][]endpoint, len(lk.hg))
	for name := range lk.hg {
		state := make(map[string]int)
		flat, err := flatten(name, lk, state)
		if err != nil {
			return nil, err
		}
		lk.hgFlat[name] = flat
	}

	return lk, nil
}

// gray/black DFS marking: 1 = in progress (gray), 2 = done (black).
func flatten(name string, lk *lookups, state map[string]int) ([]endpoint, error) {
	if s := state[name]; s == 1 {
		return nil, ferrors.Attr(ferrors.Errorf(ferrors.KindCycle, "compiler: host group cycle detected at %q", name), "hostgroup", name)
	} else if s == 2 {
		return lk.hgFlat[name], nil
	}
	state[name] = 1

	var out []endpoint
	for _, member := range lk.hg[name] {
		if a, ok := lk.addr[member]; ok {
			out = append(out, endpoint{text: a})
			continue
		}
		if n, ok := lk.net[member]; ok {
			out = append(out, endpoint{text: addr.CIDR(mustParse(n.Addr), n.MaskLen)})
			continue
		}
		if _, ok := lk.hg[member]; ok {
			nested, err := flatten(member, lk, state)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
			continue
		}
		return nil, ferrors.Attr(ferrors.Errorf(ferrors.KindUnresolvedRef, "compiler: host group %q references undefined member %q", name, member), "hostgroup", name)
	}

	state[name] = 2
	lk.hgFlat[name] = out
	return out, nil
}

func mustParse(ip string) uint32 {
	n, err := addr.Parse(ip)
	if err != nil {
		// Network addresses are not validated when the tables are
		// loaded; a malformed one is rendered here as 0.0.0.0.
		return 0
	}
	return n
}

// res resolves a rule endpoint name to its flattened list of endpoints.
func res(name string, lk *lookups) ([]endpoint, error) {
	if name == "*" {
		return []endpoint{{wildcard: true}}, nil
	}
	if a, ok := lk.addr[name]; ok {
		return []endpoint{{text: a}}, nil
	}
	if n, ok := lk.net[name]; ok {
		return []endpoint{{text: addr.CIDR(mustParse(n.Addr), n.MaskLen)}}, nil
	}
	if flat, ok := lk.hgFlat[name]; ok {
		return flat, nil
	}
	return nil, ferrors.Errorf(ferrors.KindUnresolvedRef, "compiler: %q is not defined", name)
}

func compileRule(rule model.Rule, lk *lookups) ([]string, error) {
	if rule.Action != model.ActionAccept && rule.Action != model.ActionDrop {
		return nil, ferrors.Attr(ferrors.Errorf(ferrors.KindInvalidRule, "compiler: invalid action %q", rule.Action), "rule", rule.Name)
	}

	srcSvc, ok := lk.svc[rule.SrcService]
	if !ok {
		return nil, ferrors.Attr(ferrors.Errorf(ferrors.KindUnresolvedRef, "compiler: unknown service %q", rule.SrcService), "rule", rule.Name)
	}
	dstSvc, ok := lk.svc[rule.DstService]
	if !ok {
		return nil, ferrors.Attr(ferrors.Errorf(ferrors.KindUnresolvedRef, "compiler: unknown service %q", rule.DstService), "rule", rule.Name)
	}
	if !validProtocol(srcSvc.Protocol) {
		return nil, ferrors.Attr(ferrors.Errorf(ferrors.KindInvalidRule, "compiler: unknown source protocol %q", srcSvc.Protocol), "rule", rule.Name)
	}
	if !validProtocol(dstSvc.Protocol) {
		return nil, ferrors.Attr(ferrors.Errorf(ferrors.KindInvalidRule, "compiler: unknown dest protocol %q", dstSvc.Protocol), "rule", rule.Name)
	}

	// Protocol reconciliation: mismatched non-empty protocols silently
	// drop the rule (an implicit null intersection), not an error.
	if srcSvc.Protocol != "" && dstSvc.Protocol != "" && srcSvc.Protocol != dstSvc.Protocol {
		return nil, nil
	}
	proto := srcSvc.Protocol
	if proto == "" {
		proto = dstSvc.Protocol
	}

	if rule.LogLevel > 0 && !ruleNamePattern.MatchString(rule.Name) {
		return nil, ferrors.Attr(ferrors.Errorf(ferrors.KindInvalidRule, "compiler: rule name %q is not a valid log prefix (must match [A-Za-z0-9_-]+)", rule.Name), "rule", rule.Name)
	}

	srcs, err := res(rule.Src, lk)
	if err != nil {
		return nil, ferrors.Attr(err, "rule", rule.Name)
	}
	dsts, err := res(rule.Dst, lk)
	if err != nil {
		return nil, ferrors.Attr(err, "rule", rule.Name)
	}

	sports := formatPorts("sport", srcSvc.Ports)
	dports := formatPorts("dport", dstSvc.Ports)

	var protoFlag string
	if proto != "" {
		protoFlag = " -p " + strings.ToLower(proto)
	}

	var out []string
	for _, s := range srcs {
		for _, d := range dsts {
			var srcFlag, dstFlag string
			if !s.wildcard {
				srcFlag = " -s " + s.text
			}
			if !d.wildcard {
				dstFlag = " -d " + d.text
			}
			predicate := protoFlag + srcFlag + sports + dstFlag + dports

			if rule.LogLevel > 0 {
				out = append(out, fmt.Sprintf("-A FORWARD%s --log-level %d --log-prefix %s -j LOG", predicate, rule.LogLevel, rule.Name))
			}
			out = append(out, fmt.Sprintf("-A FORWARD%s -j %s", predicate, rule.Action))
		}
	}
	return out, nil
}

func validProtocol(p string) bool {
	if p == "" {
		return true
	}
	for _, known := range model.Protocols {
		if p == known {
			return true
		}
	}
	return false
}

func formatPorts(flag, ports string) string {
	if ports == "" {
		return ""
	}
	if strings.Contains(ports, ",") {
		return " -m multiport --" + flag + " " + ports
	}
	return " --" + flag + " " + ports
}
