package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/varsel/internal/catalog"
)

// WriteIndex stores a product's index, replacing any rows previously
// written for the same product id. The write happens in one transaction:
// readers see either the old index or the new one.
func (s *Store) WriteIndex(ctx context.Context, idx *catalog.Index) error {
	fingerprint, err := idx.Fingerprint()
	if err != nil {
		return fmt.Errorf("write index %s: %w", idx.ProductID(), err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write index %s: begin tx: %w", idx.ProductID(), err)
	}
	defer tx.Rollback() // No-op if committed

	if err := writeIndexTx(ctx, tx, idx, fingerprint); err != nil {
		return fmt.Errorf("write index %s: %w", idx.ProductID(), err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write index %s: commit: %w", idx.ProductID(), err)
	}
	return nil
}

func writeIndexTx(ctx context.Context, tx *sql.Tx, idx *catalog.Index, fingerprint string) error {
	product := idx.ProductID()

	// Child rows go with the product via ON DELETE CASCADE.
	if _, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, product); err != nil {
		return fmt.Errorf("delete previous: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO products (id, fingerprint) VALUES (?, ?)
	`, product, fingerprint); err != nil {
		return fmt.Errorf("insert product: %w", err)
	}

	for i, a := range idx.Attributes() {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO attributes (product_id, id, name, position) VALUES (?, ?, ?, ?)
		`, product, int64(a.ID), a.Name, i); err != nil {
			return fmt.Errorf("insert attribute %d: %w", a.ID, err)
		}
		for j, v := range a.Values {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO attribute_values (product_id, attribute_id, id, name, position)
				VALUES (?, ?, ?, ?, ?)
			`, product, int64(a.ID), int64(v.ID), v.Name, j); err != nil {
				return fmt.Errorf("insert value %d of attribute %d: %w", v.ID, a.ID, err)
			}
		}
	}

	for i, u := range idx.Units() {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO units (product_id, id, name, position) VALUES (?, ?, ?, ?)
		`, product, int64(u.ID), u.Name, i); err != nil {
			return fmt.Errorf("insert unit %d: %w", u.ID, err)
		}
	}

	for i, v := range idx.Variations() {
		docs, err := marshalDocuments(v.Documents)
		if err != nil {
			return fmt.Errorf("variation %d: %w", v.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO variations (product_id, id, unit_id, position, documents)
			VALUES (?, ?, ?, ?, ?)
		`, product, int64(v.ID), int64(v.UnitID), i, docs); err != nil {
			return fmt.Errorf("insert variation %d: %w", v.ID, err)
		}
		for j, a := range v.Attributes {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO variation_attributes (product_id, variation_id, attribute_id, value_id, position)
				VALUES (?, ?, ?, ?, ?)
			`, product, int64(v.ID), int64(a.AttributeID), int64(a.ValueID), j); err != nil {
				return fmt.Errorf("insert assignment %d=%d of variation %d: %w", a.AttributeID, a.ValueID, v.ID, err)
			}
		}
	}

	return nil
}

// DeleteProduct removes a product and all its catalog rows.
// Returns false if the product was not stored.
func (s *Store) DeleteProduct(ctx context.Context, productID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, productID)
	if err != nil {
		return false, fmt.Errorf("delete product %s: %w", productID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete product %s: rows affected: %w", productID, err)
	}
	return n > 0, nil
}
