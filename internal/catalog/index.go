package catalog

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Index is the enumerated, read-only set of variations of one product,
// together with the attribute and unit catalogs they reference.
//
// INVARIANTS (checked by NewIndex):
//   - attribute, value, unit and variation ids are positive and unique
//   - every variation references known attributes, values and units
//   - no two variations share a (unit, attribute-set) signature
//
// Variation order never changes after construction; matching results are
// reported in this order. Accessors hand out copies, so nothing a caller
// does to a returned record reaches the index.
type Index struct {
	productID  string
	attributes []AttributeDefinition
	units      []Unit
	variations []VariationRecord

	attrPos      map[AttributeID]int
	valuePos     map[AttributeID]map[ValueID]int
	unitPos      map[UnitID]int
	variationPos map[VariationID]int
}

// IndexError describes a violated index invariant.
type IndexError struct {
	Path    string // e.g. "variations[3].attributes[0]"
	Message string
}

// Error implements the error interface.
func (e *IndexError) Error() string {
	if e.Path == "" {
		return "invalid index: " + e.Message
	}
	return fmt.Sprintf("invalid index: %s: %s", e.Path, e.Message)
}

// NewIndex validates its inputs and builds an Index.
// The slices are copied so later mutation by the caller cannot break the
// declaration-order invariant.
func NewIndex(productID string, attrs []AttributeDefinition, units []Unit, variations []VariationRecord) (*Index, error) {
	idx := &Index{
		productID:    productID,
		attributes:   cloneAttributes(attrs),
		units:        slices.Clone(units),
		variations:   cloneVariations(variations),
		attrPos:      make(map[AttributeID]int, len(attrs)),
		valuePos:     make(map[AttributeID]map[ValueID]int, len(attrs)),
		unitPos:      make(map[UnitID]int, len(units)),
		variationPos: make(map[VariationID]int, len(variations)),
	}

	if err := idx.build(); err != nil {
		return nil, err
	}
	return idx, nil
}

// MustIndex is like NewIndex but panics on error.
// Use only in tests or for fixtures known to be valid.
func MustIndex(productID string, attrs []AttributeDefinition, units []Unit, variations []VariationRecord) *Index {
	idx, err := NewIndex(productID, attrs, units, variations)
	if err != nil {
		panic(err)
	}
	return idx
}

func (idx *Index) build() error {
	for i, a := range idx.attributes {
		path := fmt.Sprintf("attributes[%d]", i)
		if a.ID <= 0 {
			return &IndexError{Path: path, Message: fmt.Sprintf("attribute id must be positive, got %d", a.ID)}
		}
		if _, dup := idx.attrPos[a.ID]; dup {
			return &IndexError{Path: path, Message: fmt.Sprintf("duplicate attribute id %d", a.ID)}
		}
		idx.attrPos[a.ID] = i

		values := make(map[ValueID]int, len(a.Values))
		for j, v := range a.Values {
			if v.ID <= 0 {
				return &IndexError{Path: fmt.Sprintf("%s.values[%d]", path, j), Message: fmt.Sprintf("value id must be positive, got %d", v.ID)}
			}
			if _, dup := values[v.ID]; dup {
				return &IndexError{Path: fmt.Sprintf("%s.values[%d]", path, j), Message: fmt.Sprintf("duplicate value id %d", v.ID)}
			}
			values[v.ID] = j
		}
		idx.valuePos[a.ID] = values
	}

	for i, u := range idx.units {
		path := fmt.Sprintf("units[%d]", i)
		if u.ID <= 0 {
			return &IndexError{Path: path, Message: fmt.Sprintf("unit id must be positive, got %d", u.ID)}
		}
		if _, dup := idx.unitPos[u.ID]; dup {
			return &IndexError{Path: path, Message: fmt.Sprintf("duplicate unit id %d", u.ID)}
		}
		idx.unitPos[u.ID] = i
	}

	signatures := make(map[string]VariationID, len(idx.variations))
	for i, v := range idx.variations {
		path := fmt.Sprintf("variations[%d]", i)
		if v.ID <= 0 {
			return &IndexError{Path: path, Message: fmt.Sprintf("variation id must be positive, got %d", v.ID)}
		}
		if _, dup := idx.variationPos[v.ID]; dup {
			return &IndexError{Path: path, Message: fmt.Sprintf("duplicate variation id %d", v.ID)}
		}
		if _, ok := idx.unitPos[v.UnitID]; !ok {
			return &IndexError{Path: path, Message: fmt.Sprintf("unknown unit %d", v.UnitID)}
		}

		seen := make(map[AttributeID]bool, len(v.Attributes))
		for j, a := range v.Attributes {
			apath := fmt.Sprintf("%s.attributes[%d]", path, j)
			if _, ok := idx.attrPos[a.AttributeID]; !ok {
				return &IndexError{Path: apath, Message: fmt.Sprintf("unknown attribute %d", a.AttributeID)}
			}
			if !idx.HasValue(a.AttributeID, a.ValueID) {
				return &IndexError{Path: apath, Message: fmt.Sprintf("unknown value %d for attribute %d", a.ValueID, a.AttributeID)}
			}
			if seen[a.AttributeID] {
				return &IndexError{Path: apath, Message: fmt.Sprintf("attribute %d assigned twice", a.AttributeID)}
			}
			seen[a.AttributeID] = true
		}

		sig := signature(v)
		if other, dup := signatures[sig]; dup {
			return &IndexError{Path: path, Message: fmt.Sprintf("variation %d has the same unit and attributes as variation %d", v.ID, other)}
		}
		signatures[sig] = v.ID
		idx.variationPos[v.ID] = i
	}

	return nil
}

// signature renders the (unit, attribute-set) identity of a variation.
func signature(v VariationRecord) string {
	pairs := make([]string, len(v.Attributes))
	for i, a := range v.Attributes {
		pairs[i] = strconv.FormatInt(int64(a.AttributeID), 10) + "=" + strconv.FormatInt(int64(a.ValueID), 10)
	}
	slices.Sort(pairs)
	return strconv.FormatInt(int64(v.UnitID), 10) + "|" + strings.Join(pairs, ",")
}

// ProductID returns the product this index was loaded for.
func (idx *Index) ProductID() string { return idx.productID }

// Attributes returns a copy of the attribute catalog in declaration order.
func (idx *Index) Attributes() []AttributeDefinition { return cloneAttributes(idx.attributes) }

// Units returns a copy of the unit catalog in declaration order.
func (idx *Index) Units() []Unit { return slices.Clone(idx.units) }

// Variations returns a copy of all variations in index order.
func (idx *Index) Variations() []VariationRecord { return cloneVariations(idx.variations) }

// NumVariations returns the number of variations.
func (idx *Index) NumVariations() int { return len(idx.variations) }

// Attribute looks up an attribute definition.
func (idx *Index) Attribute(id AttributeID) (AttributeDefinition, bool) {
	i, ok := idx.attrPos[id]
	if !ok {
		return AttributeDefinition{}, false
	}
	a := idx.attributes[i]
	a.Values = slices.Clone(a.Values)
	return a, true
}

// HasAttribute reports whether the attribute is known.
func (idx *Index) HasAttribute(id AttributeID) bool {
	_, ok := idx.attrPos[id]
	return ok
}

// HasValue reports whether value is a declared value of the attribute.
// NoValue is not a declared value.
func (idx *Index) HasValue(attr AttributeID, value ValueID) bool {
	values, ok := idx.valuePos[attr]
	if !ok {
		return false
	}
	_, ok = values[value]
	return ok
}

// Unit looks up a unit.
func (idx *Index) Unit(id UnitID) (Unit, bool) {
	i, ok := idx.unitPos[id]
	if !ok {
		return Unit{}, false
	}
	return idx.units[i], true
}

// HasUnit reports whether the unit is known.
func (idx *Index) HasUnit(id UnitID) bool {
	_, ok := idx.unitPos[id]
	return ok
}

// Variation looks up a variation by id.
func (idx *Index) Variation(id VariationID) (VariationRecord, bool) {
	i, ok := idx.variationPos[id]
	if !ok {
		return VariationRecord{}, false
	}
	return idx.variations[i].Clone(), true
}

// HasEmptyOption reports whether any variation has no attributes.
func (idx *Index) HasEmptyOption() bool {
	for _, v := range idx.variations {
		if v.IsEmptyOption() {
			return true
		}
	}
	return false
}

// EmptySelection returns a selection with every known attribute unset.
func (idx *Index) EmptySelection() Selection {
	sel := make(Selection, len(idx.attributes))
	for _, a := range idx.attributes {
		sel[a.ID] = NoValue
	}
	return sel
}

// SelectionOf returns the full selection that describes a variation:
// its declared values, with every other known attribute unset.
func (idx *Index) SelectionOf(v VariationRecord) Selection {
	sel := idx.EmptySelection()
	for _, a := range v.Attributes {
		sel[a.AttributeID] = a.ValueID
	}
	return sel
}

func cloneAttributes(attrs []AttributeDefinition) []AttributeDefinition {
	out := make([]AttributeDefinition, len(attrs))
	for i, a := range attrs {
		a.Values = slices.Clone(a.Values)
		out[i] = a
	}
	return out
}

func cloneVariations(vars []VariationRecord) []VariationRecord {
	out := make([]VariationRecord, len(vars))
	for i, v := range vars {
		out[i] = v.Clone()
	}
	return out
}
