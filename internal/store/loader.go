package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/varsel/internal/catalog"
	"github.com/roach88/varsel/internal/engine"
)

// DetailLoader serves variation details from the catalog database.
// It implements engine.DetailLoader for one product.
type DetailLoader struct {
	store     *Store
	productID string
}

// NewDetailLoader returns a loader for the given product.
func (s *Store) NewDetailLoader(productID string) *DetailLoader {
	return &DetailLoader{store: s, productID: productID}
}

// LoadVariation implements engine.DetailLoader.
func (l *DetailLoader) LoadVariation(ctx context.Context, id catalog.VariationID) (engine.VariationDetail, error) {
	row := l.store.db.QueryRowContext(ctx, `
		SELECT v.id, v.unit_id, v.documents, u.name
		FROM variations v
		JOIN units u ON u.product_id = v.product_id AND u.id = v.unit_id
		WHERE v.product_id = ? AND v.id = ?
	`, l.productID, int64(id))

	var (
		d        engine.VariationDetail
		docs     string
		unitName string
	)
	err := row.Scan(&d.VariationID, &d.UnitID, &docs, &unitName)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.VariationDetail{}, fmt.Errorf("variation %d not found in product %s", id, l.productID)
	}
	if err != nil {
		return engine.VariationDetail{}, fmt.Errorf("load variation %d: %w", id, err)
	}

	d.Documents, err = unmarshalDocuments(docs)
	if err != nil {
		return engine.VariationDetail{}, fmt.Errorf("load variation %d: %w", id, err)
	}

	rows, err := l.store.db.QueryContext(ctx, `
		SELECT attribute_id, value_id FROM variation_attributes
		WHERE product_id = ? AND variation_id = ?
		ORDER BY position ASC
	`, l.productID, int64(id))
	if err != nil {
		return engine.VariationDetail{}, fmt.Errorf("load variation %d: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var a catalog.AttributeAssignment
		if err := rows.Scan(&a.AttributeID, &a.ValueID); err != nil {
			return engine.VariationDetail{}, fmt.Errorf("load variation %d: %w", id, err)
		}
		d.Attributes = append(d.Attributes, a)
	}
	if err := rows.Err(); err != nil {
		return engine.VariationDetail{}, fmt.Errorf("load variation %d: %w", id, err)
	}

	d.Properties = map[string]string{
		"product": l.productID,
		"unit":    unitName,
	}
	return d, nil
}
