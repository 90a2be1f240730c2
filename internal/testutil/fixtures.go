package testutil

import (
	"strings"
	"sync"

	"github.com/roach88/varsel/internal/catalog"
)

// Ids of the PaintIndex fixture.
const (
	AttrColor catalog.AttributeID = 1
	Red       catalog.ValueID     = 11
	Blue      catalog.ValueID     = 12

	UnitA catalog.UnitID = 1
	UnitB catalog.UnitID = 2

	V1 catalog.VariationID = 101
	V2 catalog.VariationID = 102
	V3 catalog.VariationID = 103
)

// PaintIndex is the smallest index exercising both repair paths:
//
//	V1: unit A, Color=Red
//	V2: unit A, Color=Blue
//	V3: unit B, no attributes (empty option)
func PaintIndex() *catalog.Index {
	return catalog.MustIndex("paint",
		[]catalog.AttributeDefinition{
			{ID: AttrColor, Name: "Color", Values: []catalog.AttributeValue{
				{ID: Red, Name: "Red"},
				{ID: Blue, Name: "Blue"},
			}},
		},
		[]catalog.Unit{
			{ID: UnitA, Name: "1 l"},
			{ID: UnitB, Name: "5 l"},
		},
		[]catalog.VariationRecord{
			{ID: V1, UnitID: UnitA, Attributes: []catalog.AttributeAssignment{{AttributeID: AttrColor, ValueID: Red}}},
			{ID: V2, UnitID: UnitA, Attributes: []catalog.AttributeAssignment{{AttributeID: AttrColor, ValueID: Blue}},
				Documents: []catalog.Document{{Type: "image", Path: "/img/blue.png"}}},
			{ID: V3, UnitID: UnitB},
		},
	)
}

// Ids of the ShirtIndex fixture.
const (
	AttrSize catalog.AttributeID = 2
	SizeM    catalog.ValueID     = 21
	SizeL    catalog.ValueID     = 22

	UnitSingle catalog.UnitID = 3
	UnitPack   catalog.UnitID = 4
)

// ShirtIndex has two attributes, two units and gaps in the grid:
//
//	201: single, Red/M
//	202: single, Red/L
//	203: single, Blue/M
//	204: pack,   Blue/L
//	205: pack,   Size=M only
func ShirtIndex() *catalog.Index {
	assign := func(pairs ...catalog.ValueID) []catalog.AttributeAssignment {
		var out []catalog.AttributeAssignment
		for i, v := range pairs {
			if v == catalog.NoValue {
				continue
			}
			out = append(out, catalog.AttributeAssignment{AttributeID: catalog.AttributeID(i + 1), ValueID: v})
		}
		return out
	}
	return catalog.MustIndex("shirt",
		[]catalog.AttributeDefinition{
			{ID: AttrColor, Name: "Color", Values: []catalog.AttributeValue{{ID: Red, Name: "Red"}, {ID: Blue, Name: "Blue"}}},
			{ID: AttrSize, Name: "Size", Values: []catalog.AttributeValue{{ID: SizeM, Name: "M"}, {ID: SizeL, Name: "L"}}},
		},
		[]catalog.Unit{
			{ID: UnitSingle, Name: "Single"},
			{ID: UnitPack, Name: "Pack of 3"},
		},
		[]catalog.VariationRecord{
			{ID: 201, UnitID: UnitSingle, Attributes: assign(Red, SizeM)},
			{ID: 202, UnitID: UnitSingle, Attributes: assign(Red, SizeL)},
			{ID: 203, UnitID: UnitSingle, Attributes: assign(Blue, SizeM)},
			{ID: 204, UnitID: UnitPack, Attributes: assign(Blue, SizeL)},
			{ID: 205, UnitID: UnitPack, Attributes: assign(catalog.NoValue, SizeM)},
		},
	)
}

// WarningRecorder collects user-visible warnings.
// Satisfies engine.Notifier.
type WarningRecorder struct {
	mu       sync.Mutex
	warnings []string
}

// Warn records message.
func (r *WarningRecorder) Warn(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, message)
}

// Warnings returns the recorded warnings in order.
func (r *WarningRecorder) Warnings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.warnings...)
}

// EchoTranslator renders "key(name)" so tests can assert on notices
// without a message catalog. Satisfies engine.Translator.
type EchoTranslator struct{}

// Translate implements engine.Translator.
func (EchoTranslator) Translate(key string, params map[string]string) string {
	short := key[strings.LastIndex(key, ".")+1:]
	if name, ok := params["name"]; ok {
		return short + "(" + name + ")"
	}
	return short
}
