package compiler

import (
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/varsel/internal/catalog"
)

//go:embed schema.cue
var schemaSource string

// Field names of the product document, used in CompileError.Field.
const (
	FieldSchema     = "schema"
	FieldID         = "id"
	FieldAttributes = "attributes"
	FieldUnits      = "units"
	FieldVariations = "variations"
	FieldCUE        = "cue"
)

type productDoc struct {
	ID         string         `json:"id"`
	Attributes []attributeDoc `json:"attributes"`
	Units      []namedDoc     `json:"units"`
	Variations []variationDoc `json:"variations"`
}

type attributeDoc struct {
	ID     int64      `json:"id"`
	Name   string     `json:"name"`
	Values []namedDoc `json:"values"`
}

type namedDoc struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type variationDoc struct {
	ID         int64           `json:"id"`
	Unit       int64           `json:"unit"`
	Attributes []assignmentDoc `json:"attributes"`
	Documents  []documentDoc   `json:"documents"`
}

type assignmentDoc struct {
	Attribute int64 `json:"attribute"`
	Value     int64 `json:"value"`
}

type documentDoc struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

// CompileProduct turns a CUE product value into a Variation Index.
//
// The value is the product struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`product: paint: { ... }`)
//	idx, err := CompileProduct(v.LookupPath(cue.ParsePath("product.paint")))
//
// The product id defaults to the struct label. Schema violations and index
// invariant violations are reported as *CompileError with the position of
// the offending field.
func CompileProduct(v cue.Value) (*catalog.Index, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	schema := v.Context().CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("product schema: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Product")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var doc productDoc
	if err := unified.Decode(&doc); err != nil {
		return nil, formatCUEError(err)
	}

	if doc.ID == "" {
		labels := v.Path().Selectors()
		if len(labels) > 0 {
			doc.ID = labels[len(labels)-1].String()
		}
	}
	if doc.ID == "" {
		return nil, &CompileError{
			Field:   FieldID,
			Message: "product id is required when the product is not a labelled field",
			Pos:     v.Pos(),
		}
	}

	idx, err := catalog.NewIndex(doc.ID, doc.attributes(), doc.units(), doc.variations())
	if err != nil {
		var ie *catalog.IndexError
		if errors.As(err, &ie) {
			return nil, &CompileError{
				Field:   fieldOf(ie.Path),
				Message: ie.Message,
				Pos:     positionOf(v, ie.Path),
			}
		}
		return nil, err
	}
	return idx, nil
}

func (d productDoc) attributes() []catalog.AttributeDefinition {
	out := make([]catalog.AttributeDefinition, len(d.Attributes))
	for i, a := range d.Attributes {
		values := make([]catalog.AttributeValue, len(a.Values))
		for j, val := range a.Values {
			values[j] = catalog.AttributeValue{ID: catalog.ValueID(val.ID), Name: val.Name}
		}
		out[i] = catalog.AttributeDefinition{ID: catalog.AttributeID(a.ID), Name: a.Name, Values: values}
	}
	return out
}

func (d productDoc) units() []catalog.Unit {
	out := make([]catalog.Unit, len(d.Units))
	for i, u := range d.Units {
		out[i] = catalog.Unit{ID: catalog.UnitID(u.ID), Name: u.Name}
	}
	return out
}

func (d productDoc) variations() []catalog.VariationRecord {
	out := make([]catalog.VariationRecord, len(d.Variations))
	for i, v := range d.Variations {
		rec := catalog.VariationRecord{ID: catalog.VariationID(v.ID), UnitID: catalog.UnitID(v.Unit)}
		for _, a := range v.Attributes {
			rec.Attributes = append(rec.Attributes, catalog.AttributeAssignment{
				AttributeID: catalog.AttributeID(a.Attribute),
				ValueID:     catalog.ValueID(a.Value),
			})
		}
		for _, doc := range v.Documents {
			rec.Documents = append(rec.Documents, catalog.Document{Type: doc.Type, Path: doc.Path})
		}
		out[i] = rec
	}
	return out
}

// indexPathSegment matches one "name[3]" or "name" segment of an
// IndexError path.
var indexPathSegment = regexp.MustCompile(`^([a-z]+)(?:\[(\d+)\])?$`)

// fieldOf returns the top-level field of an IndexError path.
func fieldOf(path string) string {
	if path == "" {
		return FieldSchema
	}
	for i, r := range path {
		if r == '[' || r == '.' {
			return path[:i]
		}
	}
	return path
}

// positionOf resolves an IndexError path such as
// "variations[3].attributes[0]" to a source position in v.
func positionOf(v cue.Value, path string) token.Pos {
	if path == "" {
		return v.Pos()
	}

	var sels []cue.Selector
	start := 0
	for i := 0; i <= len(path); i++ {
		if i < len(path) && path[i] != '.' {
			continue
		}
		m := indexPathSegment.FindStringSubmatch(path[start:i])
		if m == nil {
			return v.Pos()
		}
		sels = append(sels, cue.Str(m[1]))
		if m[2] != "" {
			n, err := strconv.Atoi(m[2])
			if err != nil {
				return v.Pos()
			}
			sels = append(sels, cue.Index(n))
		}
		start = i + 1
	}

	field := v.LookupPath(cue.MakePath(sels...))
	if !field.Exists() || !field.Pos().IsValid() {
		return v.Pos()
	}
	return field.Pos()
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// First error with a position wins.
	first := errs[0]
	positions := cueerrors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   FieldCUE,
			Message: first.Error(),
			Pos:     positions[0],
		}
	}

	return &CompileError{Field: FieldCUE, Message: first.Error()}
}
