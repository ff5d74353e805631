package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/carriercomm/firelet/internal/model"
)

func sampleStore() *model.Store {
	return &model.Store{
		Hosts: []model.Host{
			{Name: "h1", Iface: "eth0", Addr: "1.1.1.1"},
			{Name: "h2", Iface: "eth0", Addr: "2.2.2.2"},
		},
		Networks: []model.Network{
			{Name: "net1", Addr: "3.3.3.0", MaskLen: 30},
		},
		HostGroups: []model.HostGroup{
			{Name: "hg1", Members: []string{"h1:eth0", "h2:eth0"}},
		},
		Services: []model.Service{
			{Name: "web", Protocol: "TCP", Ports: "80,443"},
		},
		Rules: []model.Rule{
			{Enabled: true, Name: "r1", Src: "h1:eth0", SrcService: "*", Dst: "h2:eth0", DstService: "web", Action: "ACCEPT", LogLevel: 0, Description: "allow web"},
			{Enabled: false, Name: "r2", Src: "*", SrcService: "*", Dst: "*", DstService: "*", Action: "DROP", LogLevel: 3, Description: "blocked, has spaces"},
		},
	}
}

func TestSimpleSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewSimple(dir)

	st := sampleStore()
	require.NoError(t, s.MarkDirty())
	require.True(t, s.SaveNeeded())
	require.NoError(t, s.Save(st))
	require.False(t, s.SaveNeeded())

	loaded, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, st, loaded)
}

func TestSimpleMissingFilesYieldEmptyTables(t *testing.T) {
	dir := t.TempDir()
	s := NewSimple(dir)
	st, err := s.Load()
	require.NoError(t, err)
	require.Empty(t, st.Rules)
	require.Empty(t, st.Hosts)
}

func TestSimpleResetWhenCleanReloads(t *testing.T) {
	dir := t.TempDir()
	s := NewSimple(dir)
	require.NoError(t, s.Save(sampleStore()))

	// Not dirty: Reset should just reload without error.
	loaded, err := s.Reset()
	require.NoError(t, err)
	require.Equal(t, sampleStore(), loaded)
}

func TestSimpleRollbackUnsupported(t *testing.T) {
	s := NewSimple(t.TempDir())
	_, err := s.Rollback(1)
	require.Error(t, err)
}

func TestVersionedSaveAndRollback(t *testing.T) {
	dir := t.TempDir()
	v, err := NewVersioned(dir, "alice")
	require.NoError(t, err)
	defer v.Close()

	first := sampleStore()
	require.NoError(t, v.Save(first))

	second := first.Clone()
	second.Rules[0].Enabled = false
	require.NoError(t, v.Save(second))

	versions, err := v.VersionList()
	require.NoError(t, err)
	require.Len(t, versions, 2)
	require.Equal(t, "alice", versions[0].Author)

	restored, err := v.Rollback(1)
	require.NoError(t, err)
	require.Equal(t, first, restored)

	onDisk, err := v.Load()
	require.NoError(t, err)
	require.Equal(t, first, onDisk)
}

func TestVersionedRollbackOutOfRange(t *testing.T) {
	dir := t.TempDir()
	v, err := NewVersioned(dir, "")
	require.NoError(t, err)
	defer v.Close()

	require.NoError(t, v.Save(sampleStore()))
	_, err = v.Rollback(5)
	require.Error(t, err)
}

func TestWriteRecordsQuotesEmbeddedSpaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.csv")
	require.NoError(t, writeRecords(path, [][]string{{"y", "r1", "has space"}}))

	records, err := readRecords(path)
	require.NoError(t, err)
	require.Equal(t, [][]string{{"y", "r1", "has space"}}, records)
}
