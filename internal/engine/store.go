package engine

import (
	"sync"

	"github.com/roach88/varsel/internal/catalog"
)

// SelectionStore holds the committed selection state of one product view.
// The Resolver is its only writer.
type SelectionStore interface {
	SelectedAttributes() catalog.Selection
	SelectedUnit() catalog.UnitID
	SetSelectedAttributes(sel catalog.Selection)
	SetSelectedUnit(unit catalog.UnitID)
	SetResolvedVariation(id catalog.VariationID)
	SetIsVariationSelected(selected bool)
}

// MemoryStore is an in-process SelectionStore.
//
// Values are copied in and out, so callers never share a map with the
// store. Reads are safe from any goroutine.
type MemoryStore struct {
	mu         sync.RWMutex
	attributes catalog.Selection
	unit       catalog.UnitID
	variation  catalog.VariationID
	selected   bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{attributes: catalog.Selection{}}
}

func (s *MemoryStore) SelectedAttributes() catalog.Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attributes.Clone()
}

func (s *MemoryStore) SelectedUnit() catalog.UnitID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unit
}

func (s *MemoryStore) SetSelectedAttributes(sel catalog.Selection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attributes = sel.Clone()
}

func (s *MemoryStore) SetSelectedUnit(unit catalog.UnitID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unit = unit
}

func (s *MemoryStore) SetResolvedVariation(id catalog.VariationID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variation = id
}

func (s *MemoryStore) SetIsVariationSelected(selected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = selected
}

// ResolvedVariation returns the last committed variation id.
func (s *MemoryStore) ResolvedVariation() catalog.VariationID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.variation
}

// IsVariationSelected reports whether the committed selection resolves.
func (s *MemoryStore) IsVariationSelected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}
