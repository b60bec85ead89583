// Package storage persists inspection reports in bbolt, one bolt bucket per cache scope.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/btree"
	"go.etcd.io/bbolt"

	"github.com/yairfalse/bucketlens/pkg/report"
)

// entry is an index record: one persisted report.
type entry struct {
	scope  string
	bucket string
}

func entryLess(a, b entry) bool {
	if a.scope != b.scope {
		return a.scope < b.scope
	}
	return a.bucket < b.bucket
}

// ReportStore is a durable report tier backed by bbolt.
type ReportStore struct {
	mu sync.RWMutex

	// In-memory index for ordered listings
	index *btree.BTreeG[entry]

	db   *bbolt.DB
	path string
}

// Open opens (or creates) the report database at path.
func Open(path string) (*ReportStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open report store: %w", err)
	}

	s := &ReportStore{
		index: btree.NewG[entry](32, entryLess),
		db:    db,
		path:  path,
	}

	if err := s.rebuildIndex(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// rebuildIndex loads every persisted key into the in-memory index.
func (s *ReportStore) rebuildIndex() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(scope []byte, b *bbolt.Bucket) error {
			return b.ForEach(func(k, _ []byte) error {
				s.index.ReplaceOrInsert(entry{scope: string(scope), bucket: string(k)})
				return nil
			})
		})
	})
}

// Close closes the database.
func (s *ReportStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *ReportStore) Path() string {
	return s.path
}

// Put writes r under scope, replacing any previous report for the bucket.
func (s *ReportStore) Put(scope string, r *report.InspectionReport) error {
	if r == nil {
		return fmt.Errorf("put report: nil report")
	}

	value, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(scope))
		if err != nil {
			return err
		}
		return b.Put([]byte(r.Bucket), value)
	})
	if err != nil {
		return fmt.Errorf("put report %s/%s: %w", scope, r.Bucket, err)
	}

	s.index.ReplaceOrInsert(entry{scope: scope, bucket: r.Bucket})
	return nil
}

// Get returns the report for bucket in scope. found is false when none is stored.
func (s *ReportStore) Get(scope, bucket string) (r *report.InspectionReport, found bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.index.Get(entry{scope: scope, bucket: bucket}); !ok {
		return nil, false, nil
	}

	var data []byte
	err = s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(scope))
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(bucket)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("get report %s/%s: %w", scope, bucket, err)
	}
	if data == nil {
		return nil, false, nil
	}

	r = &report.InspectionReport{}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, false, fmt.Errorf("unmarshal report %s/%s: %w", scope, bucket, err)
	}
	if r.StorageClasses == nil {
		r.StorageClasses = map[string]uint64{}
	}
	if r.LifecycleRules == nil {
		r.LifecycleRules = []report.LifecycleRule{}
	}
	return r, true, nil
}

// Names returns the bucket names persisted under scope, sorted.
func (s *ReportStore) Names(scope string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	s.index.AscendGreaterOrEqual(entry{scope: scope}, func(e entry) bool {
		if e.scope != scope {
			return false
		}
		names = append(names, e.bucket)
		return true
	})
	return names
}

// DeleteScope drops every report persisted under scope.
func (s *ReportStore) DeleteScope(scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(scope)) == nil {
			return nil
		}
		return tx.DeleteBucket([]byte(scope))
	})
	if err != nil {
		return fmt.Errorf("delete scope %s: %w", scope, err)
	}

	var stale []entry
	s.index.AscendGreaterOrEqual(entry{scope: scope}, func(e entry) bool {
		if e.scope != scope {
			return false
		}
		stale = append(stale, e)
		return true
	})
	for _, e := range stale {
		s.index.Delete(e)
	}
	return nil
}
