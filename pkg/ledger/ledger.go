// Package ledger keeps a record of past build runs in a bbolt database so
// failures can be inspected after the console output scrolled away.
package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	bolt "go.etcd.io/bbolt"

	"github.com/ngld/rackbuild/pkg/buildsys"
)

// DefaultPath is relative to the host root
const DefaultPath = ".rackbuild/state.db"

var (
	runsBucket = []byte("runs")
	metaBucket = []byte("meta")
	lastRunKey = []byte("last")
)

// Store wraps the bbolt database
type Store struct {
	db *bolt.DB
}

// RunSummary is a short description of a recorded run
type RunSummary struct {
	RunID    string
	Started  time.Time
	Targets  int
	Failures int
	Aborted  bool
}

// Open opens (or creates) the database at path
func Open(path string) (*Store, error) {
	err := os.MkdirAll(filepath.Dir(path), 0o770)
	if err != nil {
		return nil, eris.Wrapf(err, "Failed to create directory %s", filepath.Dir(path))
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "Failed to open %s", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{runsBucket, metaBucket} {
			_, err := tx.CreateBucketIfNotExists(bucket)
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		db.Close()
		return nil, eris.Wrap(err, "Failed to initialize buckets")
	}

	return &Store{db: db}, nil
}

// Close releases the database file
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores the report and marks it as the latest run
func (s *Store) SaveRun(report *buildsys.Report) error {
	if report.RunID == "" {
		return eris.New("report has no run ID")
	}

	encoded, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "Failed to encode report")
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		err := tx.Bucket(runsBucket).Put([]byte(report.RunID), encoded)
		if err != nil {
			return err
		}

		return tx.Bucket(metaBucket).Put(lastRunKey, []byte(report.RunID))
	})
}

// Run returns the report with the given ID or nil if it doesn't exist
func (s *Store) Run(id string) (*buildsys.Report, error) {
	var report *buildsys.Report
	err := s.db.View(func(tx *bolt.Tx) error {
		item := tx.Bucket(runsBucket).Get([]byte(id))
		if item == nil {
			return nil
		}

		report = new(buildsys.Report)
		return json.Unmarshal(item, report)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "Failed to read run %s", id)
	}

	return report, nil
}

// LastRun returns the most recently saved report or nil if nothing was recorded yet
func (s *Store) LastRun() (*buildsys.Report, error) {
	var id []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(metaBucket).Get(lastRunKey)
		if value != nil {
			// bbolt values are only valid during the transaction
			id = append([]byte{}, value...)
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "Failed to read last run")
	}

	if id == nil {
		return nil, nil
	}

	return s.Run(string(id))
}

// ListRuns returns summaries of all recorded runs, newest first
func (s *Store) ListRuns() ([]RunSummary, error) {
	result := []RunSummary{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(runsBucket).ForEach(func(k, v []byte) error {
			var report buildsys.Report
			err := json.Unmarshal(v, &report)
			if err != nil {
				return eris.Wrapf(err, "Failed to decode run %s", k)
			}

			result = append(result, RunSummary{
				RunID:    report.RunID,
				Started:  report.Started,
				Targets:  len(report.Targets),
				Failures: report.Failures(),
				Aborted:  report.Aborted != "",
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Started.After(result[j].Started)
	})

	return result, nil
}
