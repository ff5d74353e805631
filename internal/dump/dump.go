// Package dump parses the two text formats read off a remote firewall:
// the packet-filter save format (iptables-save) and the interface
// listing format (ip addr show).
package dump

import (
	"strconv"
	"strings"

	ferrors "github.com/carriercomm/firelet/internal/errors"
)

// ruleChainPrefixes are the only lines kept from a *nat/*filter block;
// everything else (counters, comments, chain declarations) is discarded.
var ruleChainPrefixes = []string{
	"-A PREROUTING", "-A POSTROUTING", "-A OUTPUT", "-A INPUT", "-A FORWARD",
}

func isRuleLine(s string) bool {
	for _, p := range ruleChainPrefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// Dump is the structured result of parsing a packet-filter save dump.
type Dump struct {
	NAT    []string
	Filter []string
}

// ParseSave parses iptables-save-style output. *nat is optional (its
// absence yields an empty NAT slice); *filter terminated by COMMIT is
// mandatory, and its absence is a hard ParseError naming hostname.
func ParseSave(lines []string, hostname string) (Dump, error) {
	nat := extractBlock(lines, "*nat")

	filterStart := indexOf(lines, "*filter")
	if filterStart < 0 {
		return Dump{}, ferrors.Attr(
			ferrors.Errorf(ferrors.KindParse, "dump: missing *filter section"),
			"host", hostname,
		)
	}
	rest := lines[filterStart:]
	commitIdx := indexOf(rest, "COMMIT")
	if commitIdx < 0 {
		return Dump{}, ferrors.Attr(
			ferrors.Errorf(ferrors.KindParse, "dump: *filter section missing COMMIT"),
			"host", hostname,
		)
	}
	filter := filterRules(rest[:commitIdx])

	return Dump{NAT: nat, Filter: filter}, nil
}

// extractBlock finds the block opened by marker and closed by the next
// COMMIT, and returns its rule lines. Absence of marker yields nil,
// silently (used for the optional *nat section).
func extractBlock(lines []string, marker string) []string {
	start := indexOf(lines, marker)
	if start < 0 {
		return nil
	}
	rest := lines[start:]
	commitIdx := indexOf(rest, "COMMIT")
	if commitIdx < 0 {
		return nil
	}
	return filterRules(rest[:commitIdx])
}

func filterRules(block []string) []string {
	var out []string
	for _, l := range block {
		if isRuleLine(l) {
			out = append(out, l)
		}
	}
	return out
}

func indexOf(lines []string, s string) int {
	for i, l := range lines {
		if l == s {
			return i
		}
	}
	return -1
}

// SplitLines splits dump text into a line slice, the form ParseSave and
// ParseInterfaces both accept besides a pre-split slice.
func SplitLines(s string) []string {
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}

// Interface holds the IPv4/IPv6 addresses assigned to one interface, as
// reported by `ip addr show`. An empty string means no address of that
// family was seen.
type Interface struct {
	IPv4 string
	IPv6 string
}

// isInterfaceHeader reports whether line opens a new interface record:
// first char non-blank, >= 3 whitespace-separated fields, first two
// fields end with ':', and the first is a parseable integer index.
func isInterfaceHeader(line string) bool {
	if line == "" || line[0] == ' ' || line[0] == '\t' {
		return false
	}
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return false
	}
	f0, f1 := fields[0], fields[1]
	if !strings.HasSuffix(f0, ":") || !strings.HasSuffix(f1, ":") {
		return false
	}
	if _, err := strconv.Atoi(strings.TrimSuffix(f0, ":")); err != nil {
		return false
	}
	return true
}

// ParseInterfaces parses `ip addr show` output into iface -> addresses.
func ParseInterfaces(lines []string) map[string]Interface {
	result := make(map[string]Interface)
	var curName string
	var cur Interface
	haveCur := false

	flush := func() {
		if haveCur {
			result[curName] = cur
		}
	}

	for _, line := range lines {
		if isInterfaceHeader(line) {
			flush()
			fields := strings.Fields(line)
			curName = strings.TrimSuffix(fields[1], ":")
			cur = Interface{}
			haveCur = true
			continue
		}
		if !haveCur {
			continue
		}
		switch {
		case strings.HasPrefix(line, "    inet "):
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				cur.IPv4 = fields[1]
			}
		case strings.HasPrefix(line, "    inet6 "):
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				cur.IPv6 = fields[1]
			}
		}
	}
	flush()
	return result
}
