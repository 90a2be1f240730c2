// Package querysql compiles variation filter queries to parameterized SQL
// over the catalog schema of package store.
//
// Every compiled query has a deterministic ORDER BY (index position, then
// id) and binds every value as a parameter; no value is interpolated into
// the SQL text.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/varsel/internal/catalog"
)

// Filter selects the variations of one product matching a selection.
// It has the semantics of engine.Matcher.FilterVariations.
type Filter struct {
	ProductID string
	Selection catalog.Selection
	Unit      catalog.UnitID
	Strict    bool
}

// predicate is one compiled WHERE fragment with its parameters.
type predicate struct {
	sql    string
	params []any
}

const assignmentsOf = `SELECT 1 FROM variation_attributes va WHERE va.product_id = v.product_id AND va.variation_id = v.id`

// Compile converts a Filter to (sql, params). The query returns one column,
// the variation id, in index order.
//
// The WHERE clause requires:
//  1. product and unit equality
//  2. assignments exist exactly when the selection is not the empty option
//  3. per selected attribute, no assignment with a different value; a
//     non-strict filter skips attributes selected as NoValue
func Compile(f Filter) (string, []any) {
	preds := []predicate{
		{sql: "v.product_id = ?", params: []any{f.ProductID}},
		{sql: "v.unit_id = ?", params: []any{int64(f.Unit)}},
	}

	if f.Selection.IsEmptyOption() {
		preds = append(preds, predicate{sql: "NOT EXISTS (" + assignmentsOf + ")"})
	} else {
		preds = append(preds, predicate{sql: "EXISTS (" + assignmentsOf + ")"})
	}

	for _, attr := range f.Selection.SortedIDs() {
		value := f.Selection[attr]
		if !f.Strict && value == catalog.NoValue {
			continue
		}
		preds = append(preds, predicate{
			sql:    "NOT EXISTS (" + assignmentsOf + " AND va.attribute_id = ? AND va.value_id <> ?)",
			params: []any{int64(attr), int64(value)},
		})
	}

	where := compileAnd(preds)
	sql := fmt.Sprintf("SELECT v.id FROM variations v WHERE %s ORDER BY %s", where.sql, stableOrderKey())
	return sql, where.params
}

// compileAnd joins predicates with AND, concatenating their parameters in
// order.
func compileAnd(preds []predicate) predicate {
	if len(preds) == 0 {
		return predicate{sql: "1 = 1"}
	}
	parts := make([]string, len(preds))
	var params []any
	for i, p := range preds {
		parts[i] = p.sql
		params = append(params, p.params...)
	}
	return predicate{sql: strings.Join(parts, " AND "), params: params}
}

// stableOrderKey is the ORDER BY of every variation query.
func stableOrderKey() string {
	return "v.position ASC, v.id ASC"
}
