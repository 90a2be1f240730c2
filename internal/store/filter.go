package store

import (
	"context"
	"fmt"

	"github.com/roach88/varsel/internal/catalog"
	"github.com/roach88/varsel/internal/querysql"
)

// FilterVariations runs a variation filter query against the catalog and
// returns the matching variation ids in index order.
//
// It answers the same question as engine.Matcher.FilterVariations without
// loading the index, for callers that only need ids (catalog tooling,
// availability checks on stored products).
func (s *Store) FilterVariations(ctx context.Context, productID string, sel catalog.Selection, unit catalog.UnitID, strict bool) ([]catalog.VariationID, error) {
	query, params := querysql.Compile(querysql.Filter{
		ProductID: productID,
		Selection: sel,
		Unit:      unit,
		Strict:    strict,
	})

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("filter variations of %s: %w", productID, err)
	}
	defer rows.Close()

	ids := []catalog.VariationID{}
	for rows.Next() {
		var id catalog.VariationID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan variation id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variations: %w", err)
	}
	return ids, nil
}
