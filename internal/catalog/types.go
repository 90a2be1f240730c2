package catalog

import "slices"

// AttributeID identifies a selectable attribute type (Color, Size, ...).
type AttributeID int64

// ValueID identifies one value of an attribute (Red, XL, ...).
type ValueID int64

// UnitID identifies a unit-of-measure combination.
type UnitID int64

// VariationID identifies one purchasable variation.
type VariationID int64

// NoValue is the empty option: no value chosen for an attribute.
const NoValue ValueID = 0

// AttributeValue is one selectable value of an attribute.
type AttributeValue struct {
	ID   ValueID `json:"id"`
	Name string  `json:"name"`
}

// AttributeDefinition is an attribute type with its value catalog.
type AttributeDefinition struct {
	ID     AttributeID      `json:"attribute_id"`
	Name   string           `json:"name"`
	Values []AttributeValue `json:"values"`
}

// Unit is a unit-of-measure combination a variation is sold in.
type Unit struct {
	ID   UnitID `json:"id"`
	Name string `json:"name"`
}

// AttributeAssignment binds one attribute to one value on a variation.
type AttributeAssignment struct {
	AttributeID AttributeID `json:"attribute_id"`
	ValueID     ValueID     `json:"attribute_value_id"`
}

// Document is a piece of variation content (image, data sheet) handed to
// rendering collaborators when the variation is resolved.
type Document struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

// VariationRecord is one enumerated, valid combination.
//
// An empty Attributes slice is the "empty option" variation: it carries no
// attribute constraints and only matches a selection where nothing is chosen.
type VariationRecord struct {
	ID         VariationID           `json:"variation_id"`
	UnitID     UnitID                `json:"unit_combination_id"`
	Attributes []AttributeAssignment `json:"attributes"`
	Documents  []Document            `json:"documents,omitempty"`
}

// Value returns the value the variation declares for an attribute.
// The second result is false if the variation does not declare it.
func (v VariationRecord) Value(id AttributeID) (ValueID, bool) {
	for _, a := range v.Attributes {
		if a.AttributeID == id {
			return a.ValueID, true
		}
	}
	return NoValue, false
}

// Clone returns a copy that shares no slices with v.
func (v VariationRecord) Clone() VariationRecord {
	v.Attributes = slices.Clone(v.Attributes)
	v.Documents = slices.Clone(v.Documents)
	return v
}

// IsEmptyOption reports whether the variation has no attribute constraints.
func (v VariationRecord) IsEmptyOption() bool {
	return len(v.Attributes) == 0
}
