package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"chadserv/logger"
	"chadserv/utils"
)

const indexDirName = "index.db"

// Metadata describes one stored artifact.
type Metadata struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Path        string `json:"path"`
	CreatedAt   string `json:"created_at"`
}

// Manager owns a directory of stored artifacts plus a pebble index of
// their metadata. Files are written as "<id>_<filename>" so the index
// can be rebuilt from a bare directory.
type Manager struct {
	basePath string
	mu       sync.Mutex
	db       *pebble.DB
}

// Open prepares the storage directory, opens the metadata index and
// reconciles it with what is actually on disk: index entries whose
// files vanished are dropped, and files present without an index entry
// are adopted.
func Open(basePath string) (*Manager, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}

	db, err := pebble.Open(filepath.Join(basePath, indexDirName), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open storage index: %w", err)
	}

	m := &Manager{basePath: basePath, db: db}
	if err := m.reconcile(); err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

func (m *Manager) reconcile() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	known := make(map[string]bool)

	iter, err := m.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return fmt.Errorf("failed to iterate storage index: %w", err)
	}
	var stale []string
	for iter.First(); iter.Valid(); iter.Next() {
		var meta Metadata
		if err := json.Unmarshal(iter.Value(), &meta); err != nil {
			stale = append(stale, string(iter.Key()))
			continue
		}
		if _, err := os.Stat(meta.Path); err != nil {
			stale = append(stale, meta.ID)
			continue
		}
		known[meta.ID] = true
	}
	iter.Close()

	for _, id := range stale {
		if err := m.db.Delete([]byte(id), pebble.Sync); err != nil {
			logger.Errorf("failed to drop stale index entry %s: %v", id, err)
		}
	}

	// Adopt files that exist on disk but are missing from the index.
	entries, err := os.ReadDir(m.basePath)
	if err != nil {
		return fmt.Errorf("failed to scan storage directory: %w", err)
	}
	adopted := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id, filename, ok := strings.Cut(entry.Name(), "_")
		if !ok || known[id] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		meta := Metadata{
			ID:        id,
			Filename:  filename,
			Size:      info.Size(),
			Path:      filepath.Join(m.basePath, entry.Name()),
			CreatedAt: timestamp(),
		}
		if err := m.putLocked(meta); err != nil {
			logger.Errorf("failed to adopt file %s: %v", entry.Name(), err)
			continue
		}
		adopted++
		known[id] = true
	}

	logger.Infof("storage manager initialized with %d files (%d recovered from disk)", len(known), adopted)
	return nil
}

func (m *Manager) putLocked(meta Metadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return m.db.Set([]byte(meta.ID), data, pebble.Sync)
}

// Store writes data to a new artifact file and records its metadata.
func (m *Manager) Store(data []byte, filename, contentType string) (*Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := utils.NewID()
	path := filepath.Join(m.basePath, id+"_"+filename)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write artifact %s: %w", path, err)
	}

	meta := Metadata{
		ID:          id,
		Filename:    filename,
		ContentType: contentType,
		Size:        int64(len(data)),
		Path:        path,
		CreatedAt:   timestamp(),
	}
	if err := m.putLocked(meta); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to index artifact %s: %w", id, err)
	}

	logger.Infof("stored artifact %s (%s, %d bytes)", id, filename, meta.Size)
	return &meta, nil
}

// Adopt registers an artifact already produced at path under the given
// id, taking its size from disk.
func (m *Manager) Adopt(path, id, contentType string) (*Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot adopt %s: %w", path, err)
	}

	meta := Metadata{
		ID:          id,
		Filename:    filepath.Base(path),
		ContentType: contentType,
		Size:        info.Size(),
		Path:        path,
		CreatedAt:   timestamp(),
	}
	if err := m.putLocked(meta); err != nil {
		return nil, fmt.Errorf("failed to index artifact %s: %w", id, err)
	}
	return &meta, nil
}

// Get returns the metadata for id, or nil if unknown.
func (m *Manager) Get(id string) *Metadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(id)
}

func (m *Manager) getLocked(id string) *Metadata {
	data, closer, err := m.db.Get([]byte(id))
	if err != nil {
		return nil
	}
	defer closer.Close()

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil
	}
	return &meta
}

// Path returns the artifact path for id, or "" if unknown.
func (m *Manager) Path(id string) string {
	if meta := m.Get(id); meta != nil {
		return meta.Path
	}
	return ""
}

// Read returns the full artifact contents for id.
func (m *Manager) Read(id string) ([]byte, error) {
	meta := m.Get(id)
	if meta == nil {
		return nil, fmt.Errorf("file not found with ID: %s", id)
	}
	return os.ReadFile(meta.Path)
}

// Delete removes the artifact file and its index entry, reporting
// whether the id existed.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	meta := m.getLocked(id)
	if meta == nil {
		return false
	}

	if err := os.Remove(meta.Path); err != nil && !os.IsNotExist(err) {
		logger.Errorf("error deleting artifact file %s: %v", meta.Path, err)
		return false
	}
	if err := m.db.Delete([]byte(id), pebble.Sync); err != nil {
		logger.Errorf("error deleting index entry %s: %v", id, err)
		return false
	}
	return true
}

// List returns metadata for every stored artifact.
func (m *Manager) List() []*Metadata {
	m.mu.Lock()
	defer m.mu.Unlock()

	var files []*Metadata
	iter, err := m.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		logger.Errorf("failed to iterate storage index: %v", err)
		return nil
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var meta Metadata
		if err := json.Unmarshal(iter.Value(), &meta); err != nil {
			continue
		}
		files = append(files, &meta)
	}
	return files
}

// Close closes the metadata index.
func (m *Manager) Close() error {
	return m.db.Close()
}

func timestamp() string {
	return time.Now().Format("2006-01-02 15:04:05")
}
