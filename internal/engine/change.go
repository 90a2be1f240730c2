package engine

import (
	"fmt"

	"github.com/roach88/varsel/internal/catalog"
)

// ChangeKind distinguishes attribute changes from unit changes.
type ChangeKind int

const (
	// ChangeAttribute is a new value (or NoValue) for one attribute.
	ChangeAttribute ChangeKind = iota + 1
	// ChangeUnit is a new unit.
	ChangeUnit
)

// Change identifies the single field a selection mutation touched.
type Change struct {
	Kind        ChangeKind
	AttributeID catalog.AttributeID
	ValueID     catalog.ValueID
	UnitID      catalog.UnitID
}

// AttributeChange describes setting attr to value.
func AttributeChange(attr catalog.AttributeID, value catalog.ValueID) Change {
	return Change{Kind: ChangeAttribute, AttributeID: attr, ValueID: value}
}

// UnitChange describes switching to unit.
func UnitChange(unit catalog.UnitID) Change {
	return Change{Kind: ChangeUnit, UnitID: unit}
}

// String renders the change for logs and errors.
func (c Change) String() string {
	switch c.Kind {
	case ChangeAttribute:
		return fmt.Sprintf("attribute %d = %d", c.AttributeID, c.ValueID)
	case ChangeUnit:
		return fmt.Sprintf("unit = %d", c.UnitID)
	default:
		return "no change"
	}
}
