package engine

import (
	"github.com/roach88/varsel/internal/catalog"
)

// OverrideKind tells which kind of field a repair overrode.
type OverrideKind int

const (
	// OverrideAttribute means an attribute was reset to NoValue.
	OverrideAttribute OverrideKind = iota + 1
	// OverrideUnit means the unit was switched.
	OverrideUnit
)

// Override records one field a repair changed against the shopper's choice.
type Override struct {
	Kind        OverrideKind
	AttributeID catalog.AttributeID
	From        catalog.ValueID
	FromUnit    catalog.UnitID
	ToUnit      catalog.UnitID

	// Name is the attribute name; empty for unit overrides.
	Name string
}

// Repair is a corrected selection together with what it overrode.
type Repair struct {
	Selection catalog.Selection
	Unit      catalog.UnitID
	Overrides []Override
}

// ClosestVariation picks the qualified variation needing the fewest changes
// to sel and unit.
//
// The cost is the number of attributes whose value differs between the
// candidate and sel, counting an attribute the candidate does not declare
// as NoValue, plus one if the units differ. Only a strictly lower cost
// replaces the incumbent, so ties go to the earliest candidate in index
// order. Reports false when qualified is empty.
func ClosestVariation(qualified []catalog.VariationRecord, sel catalog.Selection, unit catalog.UnitID) (catalog.VariationRecord, bool) {
	var (
		closest catalog.VariationRecord
		best    int
		found   bool
	)
	for _, v := range qualified {
		cost := requiredChanges(v, sel, unit)
		if !found || cost < best {
			closest, best, found = v, cost, true
		}
	}
	return closest, found
}

// requiredChanges counts the fields that differ between v and (sel, unit).
func requiredChanges(v catalog.VariationRecord, sel catalog.Selection, unit catalog.UnitID) int {
	changes := 0
	if v.UnitID != unit {
		changes++
	}
	for attr, selected := range sel {
		declared, _ := v.Value(attr)
		if declared != selected {
			changes++
		}
	}
	for _, a := range v.Attributes {
		if _, ok := sel[a.AttributeID]; !ok {
			changes++
		}
	}
	return changes
}

// ApplyRepair widens sel toward closest.
//
// Every attribute holding a value that differs from closest is reset to
// NoValue; the candidate's value is never forced in, so the shopper picks
// it explicitly. Attributes already NoValue are left alone. A differing
// unit is switched to closest's unit, since a unit cannot be left open.
// Overrides follow the index's attribute order, then the unit.
func ApplyRepair(idx *catalog.Index, closest catalog.VariationRecord, sel catalog.Selection, unit catalog.UnitID) Repair {
	repaired := Repair{
		Selection: sel.Clone(),
		Unit:      unit,
	}

	for _, def := range idx.Attributes() {
		current, ok := sel[def.ID]
		if !ok || current == catalog.NoValue {
			continue
		}
		declared, _ := closest.Value(def.ID)
		if declared == current {
			continue
		}
		repaired.Selection[def.ID] = catalog.NoValue
		repaired.Overrides = append(repaired.Overrides, Override{
			Kind:        OverrideAttribute,
			AttributeID: def.ID,
			From:        current,
			Name:        def.Name,
		})
	}

	if closest.UnitID != unit {
		repaired.Unit = closest.UnitID
		repaired.Overrides = append(repaired.Overrides, Override{
			Kind:     OverrideUnit,
			FromUnit: unit,
			ToUnit:   closest.UnitID,
		})
	}

	return repaired
}
