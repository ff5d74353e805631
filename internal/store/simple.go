package store

import (
	ferrors "github.com/carriercomm/firelet/internal/errors"
	"github.com/carriercomm/firelet/internal/model"
)

// Simple is the history-less tabular store backend: five record files,
// a lock sentinel for the dirty bit, and no rollback support. Grounded
// on the original implementation's DumbFireSet.
type Simple struct {
	repoDir string
}

// NewSimple returns a Simple backend rooted at repoDir.
func NewSimple(repoDir string) *Simple {
	return &Simple{repoDir: repoDir}
}

func (s *Simple) Load() (*model.Store, error) {
	return loadStore(s.repoDir)
}

func (s *Simple) Save(st *model.Store) error {
	if err := saveStore(s.repoDir, st); err != nil {
		return err
	}
	return clearLock(s.repoDir)
}

func (s *Simple) Reset() (*model.Store, error) {
	if !s.SaveNeeded() {
		return loadStore(s.repoDir)
	}
	st, err := loadStore(s.repoDir)
	if err != nil {
		return nil, err
	}
	if err := clearLock(s.repoDir); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Simple) SaveNeeded() bool {
	return hasLock(s.repoDir)
}

func (s *Simple) MarkDirty() error {
	return putLock(s.repoDir)
}

// VersionList returns a single header row, matching the original
// DumbFireSet.version_list() contract.
func (s *Simple) VersionList() ([]Version, error) {
	return []Version{{Author: "author", Message: "changelog", ID: "version id"}}, nil
}

// Rollback is unsupported on the history-less backend.
func (s *Simple) Rollback(n int) (*model.Store, error) {
	return nil, ferrors.New(ferrors.KindPersistence, "store: rollback requires the versioned backend")
}
