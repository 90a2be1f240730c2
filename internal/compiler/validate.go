package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/varsel/internal/catalog"
)

// Validation codes (E120-E129). Findings are warnings: a product that
// compiles is loadable, but a gap makes some selection changes fail with
// an inconsistent-index error at runtime.
const (
	ErrNoVariations      = "E120" // product has no variations
	ErrUnusedValue       = "E121" // attribute value used by no variation
	ErrUnusedUnit        = "E122" // unit used by no variation
	ErrAttributeNoValues = "E123" // attribute declares no values
	ErrDuplicateName     = "E124" // two attributes, values or units share a name
	ErrAmbiguous         = "E125" // a variation's own selection matches another variation too
)

// ValidationError represents one finding about a compiled product.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate reports coverage gaps and naming problems of a product.
// Returns all findings (does not fail-fast), in declaration order.
func Validate(idx *catalog.Index) []ValidationError {
	var errs []ValidationError

	if len(idx.Variations()) == 0 {
		errs = append(errs, ValidationError{
			Field:   FieldVariations,
			Message: "product has no variations",
			Code:    ErrNoVariations,
		})
	}

	usedValues := make(map[catalog.AttributeID]map[catalog.ValueID]bool)
	usedUnits := make(map[catalog.UnitID]bool)
	for _, v := range idx.Variations() {
		usedUnits[v.UnitID] = true
		for _, a := range v.Attributes {
			if usedValues[a.AttributeID] == nil {
				usedValues[a.AttributeID] = make(map[catalog.ValueID]bool)
			}
			usedValues[a.AttributeID][a.ValueID] = true
		}
	}

	attrNames := make(map[string]bool)
	for i, a := range idx.Attributes() {
		field := fmt.Sprintf("attributes[%d]", i)
		errs = append(errs, checkName(attrNames, field, "attribute", a.Name)...)

		if len(a.Values) == 0 {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("attribute %q declares no values", a.Name),
				Code:    ErrAttributeNoValues,
			})
		}

		valueNames := make(map[string]bool)
		for j, val := range a.Values {
			vfield := fmt.Sprintf("%s.values[%d]", field, j)
			errs = append(errs, checkName(valueNames, vfield, "value", val.Name)...)
			if !usedValues[a.ID][val.ID] {
				errs = append(errs, ValidationError{
					Field:   vfield,
					Message: fmt.Sprintf("value %q of attribute %q is not used by any variation", val.Name, a.Name),
					Code:    ErrUnusedValue,
				})
			}
		}
	}

	unitNames := make(map[string]bool)
	for i, u := range idx.Units() {
		field := fmt.Sprintf("units[%d]", i)
		errs = append(errs, checkName(unitNames, field, "unit", u.Name)...)
		if !usedUnits[u.ID] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("unit %q is not used by any variation", u.Name),
				Code:    ErrUnusedUnit,
			})
		}
	}

	errs = append(errs, checkAmbiguous(idx.Variations())...)

	return errs
}

// checkAmbiguous reports variations whose own full selection also matches
// a variation of the same unit that declares a subset of their values,
// e.g. {Red} next to {Red, M}. Selecting such a variation is ambiguous.
func checkAmbiguous(vars []catalog.VariationRecord) []ValidationError {
	var errs []ValidationError
	for i, v := range vars {
		if v.IsEmptyOption() {
			continue
		}
		for _, w := range vars {
			if w.ID == v.ID || w.UnitID != v.UnitID || w.IsEmptyOption() || !declaresSubset(w, v) {
				continue
			}
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("variations[%d]", i),
				Message: fmt.Sprintf("variation %d does not resolve uniquely: variation %d also matches its selection", v.ID, w.ID),
				Code:    ErrAmbiguous,
			})
			break
		}
	}
	return errs
}

// declaresSubset reports whether every value sub declares is declared by sup.
func declaresSubset(sub, sup catalog.VariationRecord) bool {
	for _, a := range sub.Attributes {
		if v, ok := sup.Value(a.AttributeID); !ok || v != a.ValueID {
			return false
		}
	}
	return true
}

func checkName(seen map[string]bool, field, kind, name string) []ValidationError {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil
	}
	if seen[key] {
		return []ValidationError{{
			Field:   field,
			Message: fmt.Sprintf("%s name %q is used twice", kind, name),
			Code:    ErrDuplicateName,
		}}
	}
	seen[key] = true
	return nil
}
