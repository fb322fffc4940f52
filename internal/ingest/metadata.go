package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// SyncRecord is the stored state of one (area, source) pair at its last
// successful sync.
type SyncRecord struct {
	LastSync    time.Time `json:"last_sync"`
	DocumentIDs []string  `json:"document_ids"`
}

// MetadataStore persists per-(area, source) sync records as a JSON file,
// rewritten in full and atomically on every update.
type MetadataStore struct {
	path string

	mu      sync.RWMutex
	records map[string]SyncRecord
}

type metadataFile struct {
	Version int                   `json:"version"`
	Records map[string]SyncRecord `json:"records"`
}

// LoadMetadataStore reads the store from disk, or starts empty when the
// file does not exist.
func LoadMetadataStore(path string) (*MetadataStore, error) {
	s := &MetadataStore{
		path:    path,
		records: make(map[string]SyncRecord),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read sync metadata: %w", err)
	}

	var file metadataFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse sync metadata: %w", err)
	}
	if file.Records != nil {
		s.records = file.Records
	}

	return s, nil
}

// Get returns the sync record for an (area, source) pair.
func (s *MetadataStore) Get(area, source string) (SyncRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[recordKey(area, source)]
	return record, ok
}

// Update records a completed sync for an (area, source) pair.
func (s *MetadataStore) Update(area, source string, documentIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[recordKey(area, source)] = SyncRecord{
		LastSync:    time.Now(),
		DocumentIDs: documentIDs,
	}
	return s.save()
}

// save writes the store atomically. Caller holds the lock.
func (s *MetadataStore) save() error {
	data, err := json.MarshalIndent(metadataFile{Version: 1, Records: s.records}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sync metadata: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata temp file: %w", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename metadata file: %w", err)
	}

	return nil
}

func recordKey(area, source string) string {
	return area + "_" + source
}
