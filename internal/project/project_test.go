package project

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/carriercomm/firelet/internal/model"
)

func TestProjectCoverage(t *testing.T) {
	st := &model.Store{
		Hosts: []model.Host{
			{Name: "h1", Iface: "eth0", Addr: "1.1.1.1"},
			{Name: "h1", Iface: "eth1", Addr: "1.1.1.1"},
			{Name: "h2", Iface: "eth0", Addr: "2.2.2.2"},
		},
	}
	directives := []string{
		"-A FORWARD -s 1.1.1.1 -d 2.2.2.2 -j ACCEPT",
		"-A FORWARD -s 2.2.2.2 -d 3.3.3.3 -j DROP",
	}

	p := Project(directives, st)

	// Every directive mentioning h1's address appears for every h1 interface.
	require.Equal(t, []string{directives[0]}, p["h1"]["eth0"])
	require.Equal(t, []string{directives[0]}, p["h1"]["eth1"])

	// h2 appears in both directives.
	require.Equal(t, directives, p["h2"]["eth0"])
}

func TestProjectPreservesFirstSeenOrder(t *testing.T) {
	st := &model.Store{Hosts: []model.Host{{Name: "h1", Iface: "eth0", Addr: "9.9.9.9"}}}
	directives := []string{
		"-A FORWARD -s 9.9.9.9 -j DROP",
		"-A FORWARD -d 8.8.8.8 -j ACCEPT",
		"-A FORWARD -d 9.9.9.9 -j ACCEPT",
	}
	p := Project(directives, st)
	require.Equal(t, []string{directives[0], directives[2]}, p["h1"]["eth0"])
}
