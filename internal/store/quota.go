package store

import (
	"path/filepath"
	"sync"
)

const quotaFile = "notify_counts.json"

// QuotaStore persists the lifetime notification count per chat identity as a
// single JSON document. Counts only ever grow; there is no reset mechanism.
type QuotaStore struct {
	path string
	mu   sync.Mutex
}

// NewQuotaStore creates a quota store under dir
func NewQuotaStore(dir string) *QuotaStore {
	return &QuotaStore{path: filepath.Join(dir, quotaFile)}
}

// Load returns all counts. A missing file yields an empty map.
func (s *QuotaStore) Load() (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Save persists the entire mapping
func (s *QuotaStore) Save(counts map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(s.path, counts)
}

// Count returns the notification count for a chat identity, 0 if unseen
func (s *QuotaStore) Count(chatUserID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts, err := s.load()
	if err != nil {
		return 0, err
	}
	return counts[chatUserID], nil
}

// Increment adds one to the count for a chat identity, persists the mapping
// and returns the new count.
func (s *QuotaStore) Increment(chatUserID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts, err := s.load()
	if err != nil {
		return 0, err
	}
	counts[chatUserID]++
	if err := writeJSON(s.path, counts); err != nil {
		return 0, err
	}
	return counts[chatUserID], nil
}

func (s *QuotaStore) load() (map[string]int, error) {
	counts := make(map[string]int)
	if err := readJSON(s.path, &counts); err != nil {
		return nil, err
	}
	return counts, nil
}
