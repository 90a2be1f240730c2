package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/varsel/internal/store"
)

func execRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func importProducts(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "catalog.db")
	out, err := execRoot(t, "import", productsDir, "--db", db)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ Imported 2 product(s) into "+db)
	return db
}

func TestImport_WritesCatalog(t *testing.T) {
	db := importProducts(t)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	products, err := st.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "paint", products[0].ID)
	assert.Equal(t, 3, products[0].Variations)
	assert.Equal(t, "shirt", products[1].ID)
	assert.Equal(t, 5, products[1].Variations)
}

func TestImport_IsRepeatable(t *testing.T) {
	db := importProducts(t)

	out, err := execRoot(t, "--format", "json", "import", productsDir, "--db", db)
	require.NoError(t, err)

	var resp struct {
		Data ImportResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Len(t, resp.Data.Products, 2)
}

func TestImport_BrokenProductsWriteNothing(t *testing.T) {
	dir := writeCUE(t, `package products

product: bad: {units: [{id: 1, name: "Piece"}], variations: [{id: 1, unit: 2}]}
`)
	db := filepath.Join(t.TempDir(), "catalog.db")

	_, err := execRoot(t, "import", dir, "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestProducts_ListAndDelete(t *testing.T) {
	db := importProducts(t)

	out, err := execRoot(t, "products", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "paint\t3 variation(s)\t")
	assert.Contains(t, out, "shirt\t5 variation(s)\t")

	out, err = execRoot(t, "--format", "json", "products", "--db", db, "--delete", "paint")
	require.NoError(t, err)

	var resp struct {
		Data []store.ProductSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "shirt", resp.Data[0].ID)

	out, err = execRoot(t, "products", "--db", db, "--delete", "paint")
	require.Error(t, err)
	assert.Contains(t, out, `product "paint" not found`)
}

func TestProducts_EmptyCatalog(t *testing.T) {
	out, err := execRoot(t, "products", "--db", filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	assert.Contains(t, out, "No products stored.")
}

func TestResolve_FromCatalog(t *testing.T) {
	db := importProducts(t)

	out, err := execRoot(t, "--format", "json", "resolve", "--db", db, "--product", "paint", "--select", "unit=2")
	require.NoError(t, err, out)

	var resp struct {
		Data ResolveResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, int64(103), resp.Data.Final.Variation)
	assert.Equal(t, map[string]string{"product": "paint", "unit": "5 l"}, resp.Data.Detail)
}

func TestResolve_FromCatalogNeedsProduct(t *testing.T) {
	db := importProducts(t)

	out, err := execRoot(t, "resolve", "--db", db)
	require.Error(t, err)
	assert.Contains(t, out, "2 products stored, select one with --product")

	out, err = execRoot(t, "resolve", "--db", db, "--product", "chair")
	require.Error(t, err)
	assert.Contains(t, out, `product "chair" not found in `+db)
}

func TestOptions_FromCatalog(t *testing.T) {
	db := importProducts(t)

	out, err := execRoot(t, "products", "--db", db, "--delete", "shirt")
	require.NoError(t, err, out)

	out, err = execRoot(t, "options", "--db", db)
	require.NoError(t, err, out)
	assert.Contains(t, out, "paint (variation 101)")
}
