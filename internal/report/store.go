package report

import (
	"encoding/json"
	"errors"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var bucketReports = []byte("reports")

// ErrNotFound is returned when a sender has no stored report.
var ErrNotFound = errors.New("report not found")

// Store persists the most recent report per sender, so report
// downloads survive restarts. Keyed by sender address; a new run
// overwrites the previous report.
type Store struct {
	db *bolt.DB
}

// NewStore opens the report database at path.
func NewStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open report store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketReports)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create reports bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Save stores the report as the sender's latest.
func (s *Store) Save(sender string, rec *Record) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		return tx.Bucket(bucketReports).Put([]byte(sender), data)
	})
}

// Load returns the sender's latest report.
func (s *Store) Load(sender string) (*Record, error) {
	var rec *Record

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketReports).Get([]byte(sender))
		if data == nil {
			return ErrNotFound
		}
		rec = &Record{}
		return json.Unmarshal(data, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
