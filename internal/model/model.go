// Package model defines the five authoritative entity tables — hosts,
// networks, host groups, services, and rules — and the row-level
// operations the object model exposes over them.
package model

// Host is one (name, interface, address) triple. A host may appear more
// than once, once per interface; the uniqueness key is (Name, Iface).
type Host struct {
	Name  string
	Iface string
	Addr  string
}

// Key returns the "name:iface" form used to resolve rule endpoints.
func (h Host) Key() string {
	return h.Name + ":" + h.Iface
}

// Network is a CIDR block identified by a symbolic name.
type Network struct {
	Name    string
	Addr    string
	MaskLen int
}

// HostGroup is a named set of members, each resolvable to a Host
// interface label, a Network name, or another HostGroup name.
type HostGroup struct {
	Name    string
	Members []string
}

// Service protocol constants, per spec §3.
const (
	ProtoIP    = "IP"
	ProtoTCP   = "TCP"
	ProtoUDP   = "UDP"
	ProtoOSPF  = "OSPF"
	ProtoISIS  = "IS-IS"
	ProtoSCTP  = "SCTP"
	ProtoAH    = "AH"
	ProtoESP   = "ESP"
	ProtoEmpty = "" // sentinel: unrestricted
)

// Protocols lists every recognized non-empty protocol name.
var Protocols = []string{ProtoIP, ProtoTCP, ProtoUDP, ProtoOSPF, ProtoISIS, ProtoSCTP, ProtoAH, ProtoESP}

// Service names a protocol and a comma-separated port-range list, e.g.
// "80:443,8080". The sentinel service "*" has an empty protocol and
// empty ports, meaning "any".
type Service struct {
	Name     string
	Protocol string
	Ports    string
}

// AnyService is the built-in "*" sentinel meaning "unrestricted".
var AnyService = Service{Name: "*", Protocol: ProtoEmpty, Ports: ""}

// Rule action values.
const (
	ActionAccept = "ACCEPT"
	ActionDrop   = "DROP"
)

// Rule is one row of the authoritative policy table. Src/Dst are names
// resolving through Host/Network/HostGroup tables, or "*" for "any".
type Rule struct {
	Enabled     bool
	Name        string
	Src         string
	SrcService  string
	Dst         string
	DstService  string
	Action      string
	LogLevel    int
	Description string
}

// TableID identifies one of the five authoritative tables.
type TableID int

const (
	TableRules TableID = iota
	TableHosts
	TableHostGroups
	TableServices
	TableNetworks
)

func (t TableID) String() string {
	switch t {
	case TableRules:
		return "rules"
	case TableHosts:
		return "hosts"
	case TableHostGroups:
		return "hostgroups"
	case TableServices:
		return "services"
	case TableNetworks:
		return "networks"
	default:
		return "unknown"
	}
}

// Store is the in-memory aggregate of the five authoritative tables.
// Rows are value-semantic: mutations replace entries rather than
// aliasing them.
type Store struct {
	Rules      []Rule
	Hosts      []Host
	HostGroups []HostGroup
	Services   []Service
	Networks   []Network
}

// Clone returns a deep copy of the store, so callers can mutate a
// candidate without affecting the original.
func (s *Store) Clone() *Store {
	c := &Store{
		Rules:      make([]Rule, len(s.Rules)),
		Hosts:      make([]Host, len(s.Hosts)),
		HostGroups: make([]HostGroup, len(s.HostGroups)),
		Services:   make([]Service, len(s.Services)),
		Networks:   make([]Network, len(s.Networks)),
	}
	copy(c.Rules, s.Rules)
	copy(c.Hosts, s.Hosts)
	copy(c.Services, s.Services)
	copy(c.Networks, s.Networks)
	for i, hg := range s.HostGroups {
		members := make([]string, len(hg.Members))
		copy(members, hg.Members)
		c.HostGroups[i] = HostGroup{Name: hg.Name, Members: members}
	}
	return c
}

// Delete removes row idx from the named table. An out-of-range index is
// a no-op, never an error, per spec §4.2.
func (s *Store) Delete(table TableID, idx int) {
	switch table {
	case TableRules:
		s.Rules = deleteAt(s.Rules, idx)
	case TableHosts:
		s.Hosts = deleteAt(s.Hosts, idx)
	case TableHostGroups:
		s.HostGroups = deleteAt(s.HostGroups, idx)
	case TableServices:
		s.Services = deleteAt(s.Services, idx)
	case TableNetworks:
		s.Networks = deleteAt(s.Networks, idx)
	}
}

func deleteAt[T any](rows []T, idx int) []T {
	if idx < 0 || idx >= len(rows) {
		return rows
	}
	out := make([]T, 0, len(rows)-1)
	out = append(out, rows[:idx]...)
	out = append(out, rows[idx+1:]...)
	return out
}

// MoveRuleUp swaps rule idx with idx-1. Out-of-range indices are no-ops
// (§4.2 applies to the rule table specifically here).
func (s *Store) MoveRuleUp(idx int) {
	if idx <= 0 || idx >= len(s.Rules) {
		return
	}
	s.Rules[idx-1], s.Rules[idx] = s.Rules[idx], s.Rules[idx-1]
}

// MoveRuleDown swaps rule idx with idx+1. Out-of-range indices are no-ops.
func (s *Store) MoveRuleDown(idx int) {
	if idx < 0 || idx >= len(s.Rules)-1 {
		return
	}
	s.Rules[idx], s.Rules[idx+1] = s.Rules[idx+1], s.Rules[idx]
}
