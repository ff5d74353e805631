// Package project implements the host projector: selecting, for each
// declared host interface, the subset of compiled directives that
// mention that host's address.
package project

import (
	"strings"

	"github.com/carriercomm/firelet/internal/model"
)

// Projection maps hostname -> iface -> the directives pertinent to that
// interface, in first-seen order.
type Projection map[string]map[string][]string

// Project applies directives against st's host table. A directive
// applies to (hostname, iface) iff the host's address appears as a
// substring of the directive text — a coarse filter that matches both
// -s and -d occurrences, per spec §4.6. This is the intentional
// semantic: every host sees every rule that mentions it in either
// direction.
func Project(directives []string, st *model.Store) Projection {
	out := make(Projection)
	for _, h := range st.Hosts {
		for _, d := range directives {
			if strings.Contains(d, h.Addr) {
				if out[h.Name] == nil {
					out[h.Name] = make(map[string][]string)
				}
				out[h.Name][h.Iface] = append(out[h.Name][h.Iface], d)
			}
		}
	}
	return out
}
