package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/varsel/internal/catalog"
	tu "github.com/roach88/varsel/internal/testutil"
)

func countRows(t *testing.T, s *Store, table, productID string) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM "+table+" WHERE product_id = ?", productID).Scan(&n))
	return n
}

func TestWriteIndex_Rows(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteIndex(ctx, tu.ShirtIndex()))

	assert.Equal(t, 2, countRows(t, s, "attributes", "shirt"))
	assert.Equal(t, 4, countRows(t, s, "attribute_values", "shirt"))
	assert.Equal(t, 2, countRows(t, s, "units", "shirt"))
	assert.Equal(t, 5, countRows(t, s, "variations", "shirt"))
	assert.Equal(t, 9, countRows(t, s, "variation_attributes", "shirt"))
}

func TestWriteIndex_ReplacesProduct(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteIndex(ctx, tu.PaintIndex()))

	smaller := catalog.MustIndex("paint", nil,
		[]catalog.Unit{{ID: 1, Name: "1 l"}},
		[]catalog.VariationRecord{{ID: 101, UnitID: 1}},
	)
	require.NoError(t, s.WriteIndex(ctx, smaller))

	assert.Equal(t, 0, countRows(t, s, "attributes", "paint"))
	assert.Equal(t, 0, countRows(t, s, "attribute_values", "paint"))
	assert.Equal(t, 1, countRows(t, s, "variations", "paint"))
	assert.Equal(t, 0, countRows(t, s, "variation_attributes", "paint"))

	products, err := s.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, smaller.MustFingerprint(), products[0].Fingerprint)
}

func TestWriteIndex_ProductsAreIsolated(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteIndex(ctx, tu.PaintIndex()))
	require.NoError(t, s.WriteIndex(ctx, tu.ShirtIndex()))

	// Both products use attribute id 1 and value ids 11/12.
	assert.Equal(t, 1, countRows(t, s, "attributes", "paint"))
	assert.Equal(t, 2, countRows(t, s, "attributes", "shirt"))
}

func TestWriteIndex_CancelledContext(t *testing.T) {
	s := createTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.WriteIndex(ctx, tu.PaintIndex())
	assert.Error(t, err)

	products, err := s.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestDeleteProduct(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteIndex(ctx, tu.PaintIndex()))

	deleted, err := s.DeleteProduct(ctx, "paint")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, 0, countRows(t, s, "variations", "paint"))
	assert.Equal(t, 0, countRows(t, s, "attribute_values", "paint"))

	deleted, err = s.DeleteProduct(ctx, "paint")
	require.NoError(t, err)
	assert.False(t, deleted)
}
