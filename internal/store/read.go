package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/varsel/internal/catalog"
)

// ErrProductNotFound is returned when a product id has no stored index.
var ErrProductNotFound = errors.New("product not found")

// ProductSummary describes one stored product.
type ProductSummary struct {
	ID          string `json:"id"`
	Fingerprint string `json:"fingerprint"`
	Variations  int    `json:"variations"`
}

// ListProducts returns every stored product ordered by id.
//
// Returns an empty slice (not nil) if the catalog is empty.
func (s *Store) ListProducts(ctx context.Context) ([]ProductSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.fingerprint, COUNT(v.id)
		FROM products p
		LEFT JOIN variations v ON v.product_id = p.id
		GROUP BY p.id, p.fingerprint
		ORDER BY p.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	out := []ProductSummary{}
	for rows.Next() {
		var p ProductSummary
		if err := rows.Scan(&p.ID, &p.Fingerprint, &p.Variations); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return out, nil
}

// ReadIndex rebuilds a product's index from the catalog.
// Returns ErrProductNotFound (wrapped) if the product is not stored.
//
// The rebuilt index is checked against the stored fingerprint, so a
// catalog edited behind the store's back is reported instead of served.
func (s *Store) ReadIndex(ctx context.Context, productID string) (*catalog.Index, error) {
	var fingerprint string
	err := s.db.QueryRowContext(ctx, `SELECT fingerprint FROM products WHERE id = ?`, productID).Scan(&fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read index %s: %w", productID, ErrProductNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read index %s: %w", productID, err)
	}

	attrs, err := s.readAttributes(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("read index %s: %w", productID, err)
	}
	units, err := s.readUnits(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("read index %s: %w", productID, err)
	}
	vars, err := s.readVariations(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("read index %s: %w", productID, err)
	}

	idx, err := catalog.NewIndex(productID, attrs, units, vars)
	if err != nil {
		return nil, fmt.Errorf("read index %s: %w", productID, err)
	}

	got, err := idx.Fingerprint()
	if err != nil {
		return nil, fmt.Errorf("read index %s: %w", productID, err)
	}
	if got != fingerprint {
		return nil, fmt.Errorf("read index %s: fingerprint mismatch: stored %s, rebuilt %s", productID, fingerprint, got)
	}
	return idx, nil
}

func (s *Store) readAttributes(ctx context.Context, productID string) ([]catalog.AttributeDefinition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name FROM attributes
		WHERE product_id = ?
		ORDER BY position ASC
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("query attributes: %w", err)
	}
	defer rows.Close()

	var attrs []catalog.AttributeDefinition
	pos := make(map[catalog.AttributeID]int)
	for rows.Next() {
		var a catalog.AttributeDefinition
		if err := rows.Scan(&a.ID, &a.Name); err != nil {
			return nil, fmt.Errorf("scan attribute: %w", err)
		}
		pos[a.ID] = len(attrs)
		attrs = append(attrs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attributes: %w", err)
	}

	vrows, err := s.db.QueryContext(ctx, `
		SELECT attribute_id, id, name FROM attribute_values
		WHERE product_id = ?
		ORDER BY attribute_id ASC, position ASC
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("query attribute values: %w", err)
	}
	defer vrows.Close()

	for vrows.Next() {
		var (
			attrID catalog.AttributeID
			v      catalog.AttributeValue
		)
		if err := vrows.Scan(&attrID, &v.ID, &v.Name); err != nil {
			return nil, fmt.Errorf("scan attribute value: %w", err)
		}
		i, ok := pos[attrID]
		if !ok {
			return nil, fmt.Errorf("value %d references unknown attribute %d", v.ID, attrID)
		}
		attrs[i].Values = append(attrs[i].Values, v)
	}
	if err := vrows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attribute values: %w", err)
	}
	return attrs, nil
}

func (s *Store) readUnits(ctx context.Context, productID string) ([]catalog.Unit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name FROM units
		WHERE product_id = ?
		ORDER BY position ASC
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("query units: %w", err)
	}
	defer rows.Close()

	var units []catalog.Unit
	for rows.Next() {
		var u catalog.Unit
		if err := rows.Scan(&u.ID, &u.Name); err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate units: %w", err)
	}
	return units, nil
}

func (s *Store) readVariations(ctx context.Context, productID string) ([]catalog.VariationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, unit_id, documents FROM variations
		WHERE product_id = ?
		ORDER BY position ASC
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("query variations: %w", err)
	}
	defer rows.Close()

	var vars []catalog.VariationRecord
	pos := make(map[catalog.VariationID]int)
	for rows.Next() {
		v, err := scanVariation(rows)
		if err != nil {
			return nil, err
		}
		pos[v.ID] = len(vars)
		vars = append(vars, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variations: %w", err)
	}

	arows, err := s.db.QueryContext(ctx, `
		SELECT variation_id, attribute_id, value_id FROM variation_attributes
		WHERE product_id = ?
		ORDER BY variation_id ASC, position ASC
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("query assignments: %w", err)
	}
	defer arows.Close()

	for arows.Next() {
		var (
			varID catalog.VariationID
			a     catalog.AttributeAssignment
		)
		if err := arows.Scan(&varID, &a.AttributeID, &a.ValueID); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		i, ok := pos[varID]
		if !ok {
			return nil, fmt.Errorf("assignment references unknown variation %d", varID)
		}
		vars[i].Attributes = append(vars[i].Attributes, a)
	}
	if err := arows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignments: %w", err)
	}
	return vars, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanVariation(row rowScanner) (catalog.VariationRecord, error) {
	var (
		v    catalog.VariationRecord
		docs string
	)
	if err := row.Scan(&v.ID, &v.UnitID, &docs); err != nil {
		return catalog.VariationRecord{}, fmt.Errorf("scan variation: %w", err)
	}
	documents, err := unmarshalDocuments(docs)
	if err != nil {
		return catalog.VariationRecord{}, fmt.Errorf("variation %d: %w", v.ID, err)
	}
	v.Documents = documents
	return v, nil
}
