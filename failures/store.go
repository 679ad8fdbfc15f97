package failures

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
)

// Record is one durable processing failure. Job records themselves live
// only in memory; the failure log survives restarts so operators can
// audit what went wrong.
type Record struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error"`
	Source    string    `json:"source"`
	Options   string    `json:"options"`
}

// Store is a pebble-backed append-mostly failure log keyed by chunk id.
type Store struct {
	db *pebble.DB
}

func Open(dbPath string) (*Store, error) {
	db, err := pebble.Open(dbPath, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open failure store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a failure under the chunk id.
func (s *Store) Record(id, source, options string, cause error) error {
	rec := Record{
		ID:        id,
		Timestamp: time.Now(),
		Error:     cause.Error(),
		Source:    source,
		Options:   options,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal failure record: %w", err)
	}
	return s.db.Set([]byte(id), data, pebble.Sync)
}

// Get returns the failure record for id, or nil if the chunk never
// failed.
func (s *Store) Get(id string) (*Record, error) {
	data, closer, err := s.db.Get([]byte(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get failure: %w", err)
	}
	defer closer.Close()

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal failure record: %w", err)
	}
	return &rec, nil
}

// Delete removes the failure record for id.
func (s *Store) Delete(id string) error {
	return s.db.Delete([]byte(id), pebble.Sync)
}

// List returns every recorded failure.
func (s *Store) List() ([]Record, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	var records []Record
	for iter.First(); iter.Valid(); iter.Next() {
		var rec Record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iteration error: %w", err)
	}
	return records, nil
}
