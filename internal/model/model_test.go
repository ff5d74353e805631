package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleStore() *Store {
	return &Store{
		Rules: []Rule{
			{Enabled: true, Name: "r1"},
			{Enabled: true, Name: "r2"},
			{Enabled: true, Name: "r3"},
		},
		Hosts: []Host{{Name: "h1", Iface: "eth0", Addr: "1.1.1.1"}},
	}
}

func TestDeleteOutOfRangeIsNoop(t *testing.T) {
	s := sampleStore()
	s.Delete(TableRules, 99)
	require.Len(t, s.Rules, 3)
	s.Delete(TableRules, -1)
	require.Len(t, s.Rules, 3)
}

func TestDeleteInRange(t *testing.T) {
	s := sampleStore()
	s.Delete(TableRules, 1)
	require.Len(t, s.Rules, 2)
	require.Equal(t, "r1", s.Rules[0].Name)
	require.Equal(t, "r3", s.Rules[1].Name)
}

func TestMoveRuleUpDown(t *testing.T) {
	s := sampleStore()
	s.MoveRuleUp(1)
	require.Equal(t, []string{"r2", "r1", "r3"}, names(s.Rules))

	s = sampleStore()
	s.MoveRuleUp(0) // no-op, already at top
	require.Equal(t, []string{"r1", "r2", "r3"}, names(s.Rules))

	s = sampleStore()
	s.MoveRuleDown(1)
	require.Equal(t, []string{"r1", "r3", "r2"}, names(s.Rules))

	s = sampleStore()
	s.MoveRuleDown(2) // no-op, already at bottom
	require.Equal(t, []string{"r1", "r2", "r3"}, names(s.Rules))
}

func TestCloneIsIndependent(t *testing.T) {
	s := sampleStore()
	c := s.Clone()
	c.Rules[0].Name = "mutated"
	require.Equal(t, "r1", s.Rules[0].Name)
}

func TestHostKey(t *testing.T) {
	h := Host{Name: "h1", Iface: "eth0"}
	require.Equal(t, "h1:eth0", h.Key())
}

func names(rules []Rule) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.Name
	}
	return out
}
