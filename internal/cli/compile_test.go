package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/varsel/internal/compiler"
)

const productsDir = "../../testdata/products"

func runCompileCmd(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func writeCUE(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "p.cue"), []byte(src), 0644))
	return dir
}

func TestCompileValidProducts(t *testing.T) {
	out, err := runCompileCmd(t, "text", productsDir)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Compiled 2 product(s)")
	assert.Contains(t, out, "paint: 1 attribute(s), 2 unit(s), 3 variation(s)")
	assert.Contains(t, out, "shirt: 2 attribute(s), 2 unit(s), 5 variation(s)")
	assert.NotContains(t, out, "warning")
}

func TestCompileValidProductsJSON(t *testing.T) {
	out, err := runCompileCmd(t, "json", productsDir)
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Products, 2)

	paint := resp.Data.Products[0]
	assert.Equal(t, "paint", paint.ID)
	assert.Len(t, paint.Fingerprint, 64)
	require.Len(t, paint.Variations, 3)
	assert.Equal(t, "/img/blue.png", paint.Variations[1].Documents[0].Path)
}

func TestCompileOutputToFile(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "compiled.json")

	out, err := runCompileCmd(t, "text", productsDir, "--output", outputFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote compiled products to "+outputFile)

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	var result CompilationResult
	require.NoError(t, json.Unmarshal(data, &result))
	require.Len(t, result.Products, 2)
	assert.Equal(t, "shirt", result.Products[1].ID)
}

func TestCompileSingleFile(t *testing.T) {
	out, err := runCompileCmd(t, "text", filepath.Join(productsDir, "paint.cue"))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Compiled 1 product(s)")
}

func TestCompileNonExistentPath(t *testing.T) {
	out, err := runCompileCmd(t, "text", "/nonexistent/products")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNotFound)
	assert.Contains(t, out, "products path not found")
}

func TestCompileEmptyDirectory(t *testing.T) {
	out, err := runCompileCmd(t, "text", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, out, ErrCodeNoFiles)
}

func TestCompileSyntaxError(t *testing.T) {
	dir := writeCUE(t, "package products\nproduct: {{{\n")

	out, err := runCompileCmd(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeLoadFailed)
}

func TestCompileBrokenProducts(t *testing.T) {
	dir := writeCUE(t, `package products

product: good: {units: [{id: 1, name: "Piece"}], variations: [{id: 1, unit: 1}]}
product: bad1: {units: [{id: 1, name: "Piece"}], variations: [{id: 1, unit: 2}]}
product: bad2: {units: [{id: 1, name: "Piece"}], variations: [{id: -1, unit: 1}]}
`)

	out, err := runCompileCmd(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, "compilation failed with 2 error(s)", err.Error())

	assert.Contains(t, out, "✗ Compilation failed")
	assert.Contains(t, out, ErrCodeVariations+": product bad1: unknown unit 2")
	assert.Contains(t, out, ErrCodeSchema+": product bad2:")
	assert.Contains(t, out, "p.cue:4:")
}

func TestCompileBrokenProductsJSON(t *testing.T) {
	dir := writeCUE(t, `package products

product: bad1: {units: [{id: 1, name: "Piece"}], variations: [{id: 1, unit: 2}]}
`)

	out, err := runCompileCmd(t, "json", dir)
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeVariations, resp.Error.Code)
}

func TestCompileReportsFindings(t *testing.T) {
	dir := writeCUE(t, `package products

product: box: {
	units: [{id: 1, name: "Piece"}, {id: 2, name: "Crate"}]
	variations: [{id: 1, unit: 1}]
}
`)

	out, err := runCompileCmd(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "warning ["+compiler.ErrUnusedUnit+"] units[1]")
}

func TestCompileVerboseGoesToStderr(t *testing.T) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "json", Verbose: true})
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs([]string{productsDir})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, stderr.String(), "Found 2 CUE file(s)")
	assert.Contains(t, stderr.String(), "Compiled product paint")

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &resp))
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := map[string]string{
		compiler.FieldSchema:     ErrCodeSchema,
		compiler.FieldCUE:        ErrCodeSchema,
		compiler.FieldID:         ErrCodeProductID,
		compiler.FieldAttributes: ErrCodeAttributes,
		compiler.FieldUnits:      ErrCodeUnits,
		compiler.FieldVariations: ErrCodeVariations,
		compiler.ProductsPath:    ErrCodeBuildFailed,
		"unknown":                ErrCodeGeneric,
	}
	for field, want := range tests {
		assert.Equal(t, want, MapFieldToErrorCode(field), field)
	}
}

func TestLoadProduct(t *testing.T) {
	idx, err := LoadProduct(productsDir, "shirt")
	require.NoError(t, err)
	assert.Equal(t, "shirt", idx.ProductID())

	_, err = LoadProduct(productsDir, "")
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeNotFound, le.Code)
	assert.Contains(t, le.Message, "2 products defined")
}
