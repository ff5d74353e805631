package store

import (
	"encoding/binary"
	"encoding/json"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	ferrors "github.com/carriercomm/firelet/internal/errors"
	"github.com/carriercomm/firelet/internal/model"
	"github.com/google/uuid"
)

var versionsBucket = []byte("versions")

const maxVersionList = 30

// snapshot is one commit-per-save record stored in the bbolt history DB.
type snapshot struct {
	Timestamp time.Time
	ID        string
	Author    string
	Message   string
	Store     *model.Store
}

// Versioned backs the same five table files as Simple, but additionally
// writes a commit-per-save snapshot into an embedded bbolt database so
// `rollback(n)` can restore prior states. This replaces the original
// implementation's GitPython-backed GitFireSet, since no Go git library
// is available; bbolt plays the same append-only history role.
type Versioned struct {
	repoDir string
	db      *bolt.DB
	author  string
}

// NewVersioned opens (creating if necessary) the version history
// database at repoDir/versions.db.
func NewVersioned(repoDir, author string) (*Versioned, error) {
	db, err := bolt.Open(repoDir+"/versions.db", 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, ferrors.Wrap(err, ferrors.KindPersistence, "store: open version history")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(versionsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, ferrors.Wrap(err, ferrors.KindPersistence, "store: init version history")
	}
	if author == "" {
		author = "firelet"
	}
	return &Versioned{repoDir: repoDir, db: db, author: author}, nil
}

// Close releases the underlying bbolt handle.
func (v *Versioned) Close() error {
	return v.db.Close()
}

func (v *Versioned) Load() (*model.Store, error) {
	return loadStore(v.repoDir)
}

// Save persists st to the table files and appends a new version
// snapshot, then clears the dirty marker.
func (v *Versioned) Save(st *model.Store) error {
	if err := saveStore(v.repoDir, st); err != nil {
		return err
	}
	if err := v.commit(st, "save"); err != nil {
		return err
	}
	return clearLock(v.repoDir)
}

func (v *Versioned) commit(st *model.Store, message string) error {
	snap := snapshot{
		Timestamp: time.Now().UTC(),
		ID:        uuid.NewString(),
		Author:    v.author,
		Message:   message,
		Store:     st.Clone(),
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return ferrors.Wrap(err, ferrors.KindPersistence, "store: marshal version snapshot")
	}
	return v.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(versionsBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), data)
	})
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

func (v *Versioned) Reset() (*model.Store, error) {
	if !v.SaveNeeded() {
		return loadStore(v.repoDir)
	}
	st, err := loadStore(v.repoDir)
	if err != nil {
		return nil, err
	}
	if err := clearLock(v.repoDir); err != nil {
		return nil, err
	}
	return st, nil
}

func (v *Versioned) SaveNeeded() bool {
	return hasLock(v.repoDir)
}

func (v *Versioned) MarkDirty() error {
	return putLock(v.repoDir)
}

// allSnapshots returns every stored snapshot, newest first.
func (v *Versioned) allSnapshots() ([]snapshot, error) {
	var snaps []snapshot
	err := v.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(versionsBucket)
		return b.ForEach(func(k, val []byte) error {
			var s snapshot
			if err := json.Unmarshal(val, &s); err != nil {
				return err
			}
			snaps = append(snaps, s)
			return nil
		})
	})
	if err != nil {
		return nil, ferrors.Wrap(err, ferrors.KindPersistence, "store: read version history")
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Timestamp.After(snaps[j].Timestamp) })
	return snaps, nil
}

// VersionList returns up to 30 recent versions, newest first.
func (v *Versioned) VersionList() ([]Version, error) {
	snaps, err := v.allSnapshots()
	if err != nil {
		return nil, err
	}
	if len(snaps) > maxVersionList {
		snaps = snaps[:maxVersionList]
	}
	out := make([]Version, len(snaps))
	for i, s := range snaps {
		out[i] = Version{Timestamp: s.Timestamp, ID: s.ID, Author: s.Author, Message: s.Message}
	}
	return out, nil
}

// Rollback restores the n-th previous version (n=1 is the version
// immediately before the current HEAD) and reloads tables from it.
func (v *Versioned) Rollback(n int) (*model.Store, error) {
	if n <= 0 {
		return nil, ferrors.Errorf(ferrors.KindPersistence, "store: rollback index must be positive, got %d", n)
	}
	snaps, err := v.allSnapshots()
	if err != nil {
		return nil, err
	}
	if n >= len(snaps) {
		return nil, ferrors.Errorf(ferrors.KindPersistence, "store: no version %d back in history (have %d versions)", n, len(snaps))
	}
	target := snaps[n].Store
	if err := saveStore(v.repoDir, target); err != nil {
		return nil, err
	}
	if err := v.commit(target, "rollback"); err != nil {
		return nil, err
	}
	if err := clearLock(v.repoDir); err != nil {
		return nil, err
	}
	return target, nil
}
