// Package store implements the tabular configuration store: load/save
// of the five authoritative tables from a repository directory, dirty-bit
// tracking via a lock sentinel, and (for the Versioned backend) commit
// history with rollback.
package store

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"time"

	ferrors "github.com/carriercomm/firelet/internal/errors"
	"github.com/carriercomm/firelet/internal/model"
	"github.com/carriercomm/firelet/internal/logging"
)

var log = logging.WithComponent("store")

const lockFileName = "lock"

// tableFiles lists the five whitespace-delimited record files, in the
// fixed order every Backend loads/saves them.
var tableFiles = []string{"rules", "hosts", "hostgroups", "services", "networks"}

// Version describes one entry in a Backend's commit history.
type Version struct {
	Timestamp time.Time
	ID        string
	Author    string
	Message   string
}

// Backend is the interface both the Simple and Versioned tabular stores
// implement, so callers can pick either at construction time.
type Backend interface {
	// Load reads all five tables from the repository directory. A
	// missing individual file yields an empty table, silently.
	Load() (*model.Store, error)
	// Save persists st to disk and clears the dirty marker.
	Save(st *model.Store) error
	// Reset discards in-memory changes and reloads from disk.
	Reset() (*model.Store, error)
	// SaveNeeded reports whether there are unsaved (dirty) changes.
	SaveNeeded() bool
	// MarkDirty sets the dirty marker. The model's row-level operations
	// (Delete, MoveRuleUp, MoveRuleDown) do not call it; the caller that
	// mutates a loaded Store calls it.
	MarkDirty() error
	// VersionList returns recent versions, newest first.
	VersionList() ([]Version, error)
	// Rollback restores the n-th previous version and reloads tables.
	Rollback(n int) (*model.Store, error)
}

func lockPath(repoDir string) string {
	return filepath.Join(repoDir, lockFileName)
}

func putLock(repoDir string) error {
	f, err := os.Create(lockPath(repoDir))
	if err != nil {
		return ferrors.Wrapf(err, ferrors.KindPersistence, "store: create lock in %s", repoDir)
	}
	return f.Close()
}

func hasLock(repoDir string) bool {
	_, err := os.Stat(lockPath(repoDir))
	return err == nil
}

func clearLock(repoDir string) error {
	err := os.Remove(lockPath(repoDir))
	if err != nil && !os.IsNotExist(err) {
		return ferrors.Wrapf(err, ferrors.KindPersistence, "store: clear lock in %s", repoDir)
	}
	return nil
}

// readRecords reads a whitespace-delimited record file. A missing file
// yields an empty, silent result per spec §4.3.
func readRecords(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, ferrors.Wrapf(err, ferrors.KindPersistence, "store: open %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = ' '
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, ferrors.Wrapf(err, ferrors.KindPersistence, "store: parse %s", path)
	}
	return records, nil
}

// writeRecords writes a whitespace-delimited record file.
func writeRecords(path string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return ferrors.Wrapf(err, ferrors.KindPersistence, "store: create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = ' '
	if err := w.WriteAll(records); err != nil {
		return ferrors.Wrapf(err, ferrors.KindPersistence, "store: write %s", path)
	}
	w.Flush()
	return w.Error()
}

// loadStore reads all five tables from repoDir into a fresh model.Store.
func loadStore(repoDir string) (*model.Store, error) {
	st := &model.Store{}

	rules, err := readRecords(filepath.Join(repoDir, "rules.csv"))
	if err != nil {
		return nil, err
	}
	for _, rec := range rules {
		r, err := decodeRule(rec)
		if err != nil {
			return nil, err
		}
		st.Rules = append(st.Rules, r)
	}

	hosts, err := readRecords(filepath.Join(repoDir, "hosts.csv"))
	if err != nil {
		return nil, err
	}
	for _, rec := range hosts {
		if len(rec) < 3 {
			continue
		}
		st.Hosts = append(st.Hosts, model.Host{Name: rec[0], Iface: rec[1], Addr: rec[2]})
	}

	hgs, err := readRecords(filepath.Join(repoDir, "hostgroups.csv"))
	if err != nil {
		return nil, err
	}
	for _, rec := range hgs {
		if len(rec) < 1 {
			continue
		}
		st.HostGroups = append(st.HostGroups, model.HostGroup{Name: rec[0], Members: append([]string{}, rec[1:]...)})
	}

	svcs, err := readRecords(filepath.Join(repoDir, "services.csv"))
	if err != nil {
		return nil, err
	}
	for _, rec := range svcs {
		if len(rec) < 3 {
			continue
		}
		st.Services = append(st.Services, model.Service{Name: rec[0], Protocol: rec[1], Ports: rec[2]})
	}

	nets, err := readRecords(filepath.Join(repoDir, "networks.csv"))
	if err != nil {
		return nil, err
	}
	for _, rec := range nets {
		if len(rec) < 3 {
			continue
		}
		masklen, convErr := strconv.Atoi(rec[2])
		if convErr != nil {
			continue
		}
		st.Networks = append(st.Networks, model.Network{Name: rec[0], Addr: rec[1], MaskLen: masklen})
	}

	return st, nil
}

// saveStore writes all five tables to repoDir.
func saveStore(repoDir string, st *model.Store) error {
	if err := os.MkdirAll(repoDir, 0o755); err != nil {
		return ferrors.Wrapf(err, ferrors.KindPersistence, "store: mkdir %s", repoDir)
	}

	var ruleRecs [][]string
	for _, r := range st.Rules {
		ruleRecs = append(ruleRecs, encodeRule(r))
	}
	if err := writeRecords(filepath.Join(repoDir, "rules.csv"), ruleRecs); err != nil {
		return err
	}

	var hostRecs [][]string
	for _, h := range st.Hosts {
		hostRecs = append(hostRecs, []string{h.Name, h.Iface, h.Addr})
	}
	if err := writeRecords(filepath.Join(repoDir, "hosts.csv"), hostRecs); err != nil {
		return err
	}

	var hgRecs [][]string
	for _, hg := range st.HostGroups {
		hgRecs = append(hgRecs, append([]string{hg.Name}, hg.Members...))
	}
	if err := writeRecords(filepath.Join(repoDir, "hostgroups.csv"), hgRecs); err != nil {
		return err
	}

	var svcRecs [][]string
	for _, s := range st.Services {
		svcRecs = append(svcRecs, []string{s.Name, s.Protocol, s.Ports})
	}
	if err := writeRecords(filepath.Join(repoDir, "services.csv"), svcRecs); err != nil {
		return err
	}

	var netRecs [][]string
	for _, n := range st.Networks {
		netRecs = append(netRecs, []string{n.Name, n.Addr, strconv.Itoa(n.MaskLen)})
	}
	if err := writeRecords(filepath.Join(repoDir, "networks.csv"), netRecs); err != nil {
		return err
	}

	return nil
}

func encodeRule(r model.Rule) []string {
	ena := "n"
	if r.Enabled {
		ena = "y"
	}
	return []string{
		ena, r.Name, r.Src, r.SrcService, r.Dst, r.DstService, r.Action,
		strconv.Itoa(r.LogLevel), r.Description,
	}
}

func decodeRule(rec []string) (model.Rule, error) {
	if len(rec) < 9 {
		return model.Rule{}, ferrors.Errorf(ferrors.KindPersistence, "store: malformed rule row %v", rec)
	}
	logLevel, err := strconv.Atoi(rec[7])
	if err != nil {
		logLevel = 0
	}
	return model.Rule{
		Enabled:     rec[0] == "y",
		Name:        rec[1],
		Src:         rec[2],
		SrcService:  rec[3],
		Dst:         rec[4],
		DstService:  rec[5],
		Action:      rec[6],
		LogLevel:    logLevel,
		Description: rec[8],
	}, nil
}
