package engine

import (
	"github.com/roach88/varsel/internal/catalog"
)

// Matcher answers filter queries against one Variation Index.
// Results are cached per canonical (selection, unit, strict) key and keep
// the index order.
type Matcher struct {
	index      *catalog.Index
	variations []catalog.VariationRecord
	cache      *QueryCache
}

// NewMatcher creates a matcher with an empty cache bound to index.
func NewMatcher(index *catalog.Index) *Matcher {
	return &Matcher{
		index:      index,
		variations: index.Variations(),
		cache:      NewQueryCache(index.MustFingerprint()),
	}
}

// Index returns the index the matcher queries.
func (m *Matcher) Index() *catalog.Index {
	return m.index
}

// Cache exposes the query cache for statistics.
func (m *Matcher) Cache() *QueryCache {
	return m.cache
}

// Reset replaces the index and starts a new cache generation.
func (m *Matcher) Reset(index *catalog.Index) {
	m.index = index
	m.variations = index.Variations()
	m.cache.Reset(index.MustFingerprint())
}

// FilterVariations returns every variation of unit that is consistent with
// sel, in index order.
//
// The selection is expected to carry every known attribute. Attributes a
// variation does not declare never exclude it. With strict=false a NoValue
// in sel matches any declared value. The returned records are shared with
// the cache and must not be modified.
func (m *Matcher) FilterVariations(sel catalog.Selection, unit catalog.UnitID, strict bool) []catalog.VariationRecord {
	key := catalog.SelectionKey(sel, unit, strict)
	if cached, ok := m.cache.Get(key); ok {
		return cached
	}

	emptySelected := sel.IsEmptyOption()
	var result []catalog.VariationRecord
	for _, v := range m.variations {
		if matchVariation(v, sel, unit, strict, emptySelected) {
			result = append(result, v)
		}
	}

	m.cache.Put(key, result)
	return result
}

// ExactMatch returns the variation sel resolves to under strict matching.
// It reports false when zero or several variations match; it never guesses.
func (m *Matcher) ExactMatch(sel catalog.Selection, unit catalog.UnitID) (catalog.VariationRecord, bool) {
	matches := m.FilterVariations(sel, unit, true)
	if len(matches) != 1 {
		return catalog.VariationRecord{}, false
	}
	return matches[0], true
}

// Qualified returns the variations consistent with the changed field alone,
// ignoring every other part of the selection.
//
// For an attribute change that is every variation declaring that value, or,
// when the attribute was cleared, every variation not declaring the
// attribute. For a unit change it is every variation of that unit.
func (m *Matcher) Qualified(change Change) []catalog.VariationRecord {
	var result []catalog.VariationRecord
	for _, v := range m.variations {
		if qualifies(v, change) {
			result = append(result, v)
		}
	}
	return result
}

// matchVariation checks one variation against a filter query.
//
// The match requires:
// 1. Unit: v.UnitID equals unit
// 2. Empty option: v has no attributes exactly when sel is the empty option
// 3. Attributes: each declared value equals the selected one, except that a
//    non-strict query treats NoValue as a wildcard
func matchVariation(v catalog.VariationRecord, sel catalog.Selection, unit catalog.UnitID, strict, emptySelected bool) bool {
	if v.UnitID != unit {
		return false
	}

	if v.IsEmptyOption() != emptySelected {
		return false
	}

	for attr, selected := range sel {
		declared, ok := v.Value(attr)
		if !ok || declared == selected {
			continue
		}
		if !strict && selected == catalog.NoValue {
			continue
		}
		return false
	}

	return true
}

func qualifies(v catalog.VariationRecord, change Change) bool {
	switch change.Kind {
	case ChangeAttribute:
		declared, ok := v.Value(change.AttributeID)
		if change.ValueID == catalog.NoValue {
			return !ok
		}
		return ok && declared == change.ValueID
	case ChangeUnit:
		return v.UnitID == change.UnitID
	default:
		return false
	}
}
