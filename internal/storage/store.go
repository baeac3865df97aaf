// Package storage persists the ledger of already-notified orders.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
)

// ledgerFile is the on-disk shape: two independent dedup keys, either
// of which suppresses a repeat notification.
type ledgerFile struct {
	Events   []string `json:"events"`
	Messages []string `json:"messages"`
}

// DedupStore tracks which order IDs and rendered message hashes have
// already produced a notification. It is owned by a single run and
// mutated from one goroutine only.
type DedupStore struct {
	path     string
	events   map[string]struct{}
	messages map[string]struct{}
	logger   zerolog.Logger
}

// Load reads the ledger at path. A missing or corrupt file yields an
// empty store with a warning; starting over only risks duplicate
// notifications, never lost ones.
func Load(path string, logger zerolog.Logger) *DedupStore {
	s := &DedupStore{
		path:     path,
		events:   make(map[string]struct{}),
		messages: make(map[string]struct{}),
		logger:   logger.With().Str("component", "dedup_store").Logger(),
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("path", path).Msg("failed to read dedup ledger; starting empty")
		}
		return s
	}

	var file ledgerFile
	if err := json.Unmarshal(raw, &file); err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("dedup ledger is corrupt; starting empty")
		return s
	}

	for _, id := range file.Events {
		s.events[id] = struct{}{}
	}
	for _, hash := range file.Messages {
		s.messages[hash] = struct{}{}
	}

	s.logger.Debug().Int("events", len(s.events)).Int("messages", len(s.messages)).Msg("dedup ledger loaded")
	return s
}

// Seen reports whether either dedup key is already recorded.
func (s *DedupStore) Seen(eventID, messageHash string) bool {
	if _, ok := s.events[eventID]; ok {
		return true
	}
	_, ok := s.messages[messageHash]
	return ok
}

// Record adds both keys and rewrites the ledger synchronously. A write
// failure leaves the in-memory state ahead of disk; the caller only
// risks one duplicate notification after a crash.
func (s *DedupStore) Record(eventID, messageHash string) error {
	s.events[eventID] = struct{}{}
	s.messages[messageHash] = struct{}{}
	return s.Save()
}

// Save rewrites the full ledger via a temp file and rename so a crash
// mid-write cannot truncate previously persisted state.
func (s *DedupStore) Save() error {
	file := ledgerFile{
		Events:   sortedKeys(s.events),
		Messages: sortedKeys(s.messages),
	}

	raw, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal dedup ledger: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp ledger: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace dedup ledger: %w", err)
	}
	return nil
}

// Len returns the number of recorded event IDs.
func (s *DedupStore) Len() int {
	return len(s.events)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
