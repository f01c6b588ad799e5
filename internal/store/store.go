// Package store keeps local snapshots of the last successful API listings.
// Snapshots let lists paint instantly on startup and stay browsable when
// the server is unreachable. The store is advisory: every failure degrades
// to a cache miss, never to an application error.
//
// Layout:
//   - projects: key = "projects" (JSON snapshot) with TTL
//   - work packages: key = "wp:<projectID>" (JSON snapshot) with TTL
package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/opterm/opterm/internal/log"
	"github.com/opterm/opterm/internal/openproject"
)

// DefaultTTL is how long a snapshot stays usable.
const DefaultTTL = 24 * time.Hour

const (
	projectsKey     = "projects"
	workPackagesKey = "wp:%d"
)

// Store is a badger-backed snapshot store.
type Store struct {
	db  *badger.DB
	ttl time.Duration
}

// snapshot wraps a value with the time it was taken, so the UI can show
// cache age.
type snapshot[T any] struct {
	StoredAt time.Time `json:"stored_at"`
	Value    T         `json:"value"`
}

// Open opens (or creates) the store under dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dir, err)
	}
	return &Store{db: db, ttl: DefaultTTL}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutProjects stores the latest project listing.
func (s *Store) PutProjects(projects []openproject.Project) error {
	return s.put(projectsKey, projects)
}

// GetProjects returns the cached project listing and when it was stored.
func (s *Store) GetProjects() ([]openproject.Project, time.Time, bool) {
	return get[[]openproject.Project](s, projectsKey)
}

// PutWorkPackages stores the latest work package listing for a project.
func (s *Store) PutWorkPackages(projectID int, wps []openproject.WorkPackage) error {
	return s.put(fmt.Sprintf(workPackagesKey, projectID), wps)
}

// GetWorkPackages returns the cached work packages for a project.
func (s *Store) GetWorkPackages(projectID int) ([]openproject.WorkPackage, time.Time, bool) {
	return get[[]openproject.WorkPackage](s, fmt.Sprintf(workPackagesKey, projectID))
}

// Purge drops all snapshots.
func (s *Store) Purge() error {
	return s.db.DropAll()
}

func (s *Store) put(key string, value any) error {
	buf, err := json.Marshal(snapshot[any]{StoredAt: time.Now().UTC(), Value: value})
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", key, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), buf).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("store: write %s: %w", key, err)
	}
	return nil
}

// get reads and decodes a snapshot. Any failure is a miss; decode errors
// are logged because they hint at a schema change needing a purge.
func get[T any](s *Store, key string) (T, time.Time, bool) {
	var snap snapshot[T]
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snap)
		})
	})
	if err != nil {
		if err != badger.ErrKeyNotFound {
			logger := log.WithComponent("store")
			logger.Warn().Err(err).Str("key", key).Msg("snapshot read failed")
		}
		var zero T
		return zero, time.Time{}, false
	}
	return snap.Value, snap.StoredAt, true
}
