// Package statement accumulates the movements of one company across repeated
// snapshot ingestions into a single keyed ledger.
package statement

import (
	"fmt"
	"io"

	"github.com/rumor-ml/commons.systems/bankstmt/internal/domain"
	"github.com/rumor-ml/commons.systems/bankstmt/internal/snapshot"
	"github.com/rumor-ml/commons.systems/bankstmt/internal/transform"
)

// Statement is the merge store of one company. Entries are keyed by upstream
// id or synthetic key; re-ingesting a key overwrites its entry in place.
//
// A Statement is not safe for concurrent use. Each company gets its own.
type Statement struct {
	company   string
	movements map[string]domain.Movement
	// order lists keys by first insertion so iteration is reproducible.
	order []string
}

// UpdateStats summarizes one ingestion call.
type UpdateStats struct {
	Read        int // movements in the snapshot
	Inserted    int // keys not seen before
	Replaced    int // keys overwritten
	Synthesized int // keys derived from invariant fields
	Collisions  int // synthesized keys that needed a suffix
}

// New creates an empty statement for company.
func New(company string) *Statement {
	return &Statement{
		company:   company,
		movements: make(map[string]domain.Movement),
	}
}

// Company returns the company name the statement was created for.
func (s *Statement) Company() string {
	return s.company
}

// Upsert sets or overwrites the entry for key. It reports whether the key was new.
func (s *Statement) Upsert(key string, m domain.Movement) bool {
	_, exists := s.movements[key]
	if !exists {
		s.order = append(s.order, key)
	}
	s.movements[key] = m
	return !exists
}

// Update merges every movement of snap into the statement.
//
// All movements are normalized before any is stored, so a structural error
// leaves the statement untouched. Keys are resolved in array order with a
// collision set scoped to this call.
func (s *Statement) Update(snap *snapshot.Snapshot) (UpdateStats, error) {
	if snap == nil {
		return UpdateStats{}, fmt.Errorf("snapshot cannot be nil")
	}

	normalized := make([]domain.Movement, len(snap.Movements))
	for i, raw := range snap.Movements {
		m, err := transform.Normalize(raw)
		if err != nil {
			return UpdateStats{}, fmt.Errorf("movement %d of %d: %w", i+1, len(snap.Movements), err)
		}
		normalized[i] = m
	}

	stats := UpdateStats{Read: len(normalized)}
	resolver := transform.NewResolver()
	for _, m := range normalized {
		if s.Upsert(resolver.Resolve(m), m) {
			stats.Inserted++
		} else {
			stats.Replaced++
		}
	}
	stats.Synthesized = resolver.Synthesized()
	stats.Collisions = resolver.Collisions()

	return stats, nil
}

// Ingest decodes a snapshot document from r and merges it.
func (s *Statement) Ingest(r io.Reader) (UpdateStats, error) {
	snap, err := snapshot.Decode(r)
	if err != nil {
		return UpdateStats{}, err
	}
	return s.Update(snap)
}

// Len returns the number of stored movements.
func (s *Statement) Len() int {
	return len(s.movements)
}

// Get returns the movement stored under key.
func (s *Statement) Get(key string) (domain.Movement, bool) {
	m, ok := s.movements[key]
	return m, ok
}

// Keys returns a copy of the keys in first-insertion order.
func (s *Statement) Keys() []string {
	return append([]string(nil), s.order...)
}

// Entry pairs a store key with its movement.
type Entry struct {
	Key      string
	Movement domain.Movement
}

// Entries returns all entries in first-insertion order.
func (s *Statement) Entries() []Entry {
	entries := make([]Entry, len(s.order))
	for i, key := range s.order {
		entries[i] = Entry{Key: key, Movement: s.movements[key]}
	}
	return entries
}

// Movements returns all movements in first-insertion order.
func (s *Statement) Movements() []domain.Movement {
	result := make([]domain.Movement, len(s.order))
	for i, key := range s.order {
		result[i] = s.movements[key]
	}
	return result
}
