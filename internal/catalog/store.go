// internal/catalog/store.go
// Package catalog holds the master list of content items and the list produced by
// the most recent search ranking.
package catalog

import (
	"sort"
	"sync"

	"github.com/RegistryAccord/registryaccord-novatube-go/internal/model"
)

// Store keeps the master and displayed sequences.
// Both sequences hold the same multiset of items; only their order differs.
// Mutation happens only through Publish, ApplyRanking and Reset.
type Store struct {
	mu        sync.RWMutex        // Protects both sequences
	master    []model.ContentItem // Most-recent-first
	displayed []model.ContentItem // Last ranking result
}

// NewStore creates a store seeded with items in the given order.
func NewStore(seed []model.ContentItem) *Store {
	master := make([]model.ContentItem, len(seed))
	copy(master, seed)
	displayed := make([]model.ContentItem, len(seed))
	copy(displayed, seed)
	return &Store{master: master, displayed: displayed}
}

// Publish prepends item to both the master and the displayed list.
// Id uniqueness is the caller's responsibility.
func (s *Store) Publish(item model.ContentItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.master = append([]model.ContentItem{item}, s.master...)
	s.displayed = append([]model.ContentItem{item}, s.displayed...)
}

// ApplyRanking reorders the displayed list by the position of each id in orderedIDs.
// Items missing from orderedIDs sort after every ranked item and keep their master order.
// Unknown ids are ignored; a repeated id keeps its first position.
func (s *Store) ApplyRanking(orderedIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.displayed = Rank(s.master, orderedIDs)
}

// Reset restores the displayed list to the master order.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.displayed = make([]model.ContentItem, len(s.master))
	copy(s.displayed, s.master)
}

// Master returns a copy of the master list.
func (s *Store) Master() []model.ContentItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.ContentItem, len(s.master))
	copy(out, s.master)
	return out
}

// Displayed returns a copy of the displayed list.
func (s *Store) Displayed() []model.ContentItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.ContentItem, len(s.displayed))
	copy(out, s.displayed)
	return out
}

// Get looks up an item by id in the master list.
func (s *Store) Get(id string) (model.ContentItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.master {
		if item.ID == id {
			return item, true
		}
	}
	return model.ContentItem{}, false
}

// Len returns the number of items in the catalog.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.master)
}

// Rank returns a copy of items stably sorted by each id's index in orderedIDs.
// Unranked items get a sentinel rank larger than any real rank.
func Rank(items []model.ContentItem, orderedIDs []string) []model.ContentItem {
	positions := make(map[string]int, len(orderedIDs))
	for i, id := range orderedIDs {
		if _, seen := positions[id]; !seen {
			positions[id] = i
		}
	}
	unranked := len(orderedIDs) + 1

	rankOf := func(id string) int {
		if pos, ok := positions[id]; ok {
			return pos
		}
		return unranked
	}

	out := make([]model.ContentItem, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		return rankOf(out[i].ID) < rankOf(out[j].ID)
	})
	return out
}
