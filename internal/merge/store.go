// Package merge holds the canonical working set of raw risk records.
package merge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"RiskSentinel/internal/artifact"
	"RiskSentinel/internal/model"
)

// Store accumulates raw risk records exactly once per source identity and
// mirrors the ordered collection to the raw artifact.
type Store struct {
	mu        sync.RWMutex
	records   []model.RiskRecord
	seen      map[string]struct{}
	version   uint64
	artifacts artifact.Store
}

// NewStore creates an empty store. artifacts may be nil for an in-memory
// store.
func NewStore(artifacts artifact.Store) *Store {
	return &Store{
		seen:      make(map[string]struct{}),
		artifacts: artifacts,
	}
}

// Load seeds the store with the persisted raw artifact so later merges
// append to it. The merged-identity set stays empty: sources merged before a
// restart are merged again when they are next seen. A missing or corrupt
// artifact leaves the store empty.
func (s *Store) Load(ctx context.Context) (int, error) {
	return s.load(ctx, false)
}

// Resume is Load plus rebuilding the merged-identity set from each record's
// source, so sources merged before a restart are not merged again.
func (s *Store) Resume(ctx context.Context) (int, error) {
	return s.load(ctx, true)
}

func (s *Store) load(ctx context.Context, rebuildSeen bool) (int, error) {
	if s.artifacts == nil {
		return 0, nil
	}
	records, err := artifact.LoadCollection[model.RiskRecord](ctx, s.artifacts, artifact.KeyRaw)
	switch {
	case errors.Is(err, artifact.ErrNotFound):
		return 0, nil
	case errors.Is(err, artifact.ErrCorrupt):
		log.Printf("[WARN] raw artifact unreadable, starting empty: %v", err)
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("load raw artifact: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if r.Fields == nil {
			r.Fields = model.Fields{}
		}
		s.records = append(s.records, r)
		if !rebuildSeen || r.Source == "" {
			continue
		}
		if _, dup := s.seen[r.Source]; dup {
			log.Printf("[WARN] raw artifact repeats source %s", r.Source)
			continue
		}
		s.seen[r.Source] = struct{}{}
	}
	if len(records) > 0 {
		s.version++
	}
	return len(records), nil
}

// TryMerge appends the record when sourceID has not been merged before and
// reports whether it did. The raw artifact is replaced before the in-memory
// state changes, so a failed write leaves both untouched.
func (s *Store) TryMerge(ctx context.Context, sourceID string, fields model.Fields) (bool, error) {
	if sourceID == "" {
		return false, errors.New("merge: empty source identity")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[sourceID]; ok {
		return false, nil
	}

	rec := model.RiskRecord{Source: sourceID, Fields: fields.Clone()}
	next := make([]model.RiskRecord, len(s.records), len(s.records)+1)
	copy(next, s.records)
	next = append(next, rec)

	if s.artifacts != nil {
		if err := artifact.SaveCollection(ctx, s.artifacts, artifact.KeyRaw, next); err != nil {
			return false, fmt.Errorf("persist raw artifact: %w", err)
		}
	}

	s.records = next
	s.seen[sourceID] = struct{}{}
	s.version++
	return true, nil
}

// Seen reports whether sourceID has been merged.
func (s *Store) Seen(sourceID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[sourceID]
	return ok
}

// Snapshot returns the merged records in insertion order together with the
// store version they correspond to.
func (s *Store) Snapshot() ([]model.RiskRecord, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.RiskRecord, len(s.records))
	copy(out, s.records)
	return out, s.version
}

// Len returns the number of merged records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Version increases by one for every accepted merge.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}
