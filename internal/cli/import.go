package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/varsel/internal/store"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	DBPath string
}

// ImportResult lists the products written to the catalog.
type ImportResult struct {
	Database string                 `json:"database"`
	Products []store.ProductSummary `json:"products"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions, defaultDB string) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <products>",
		Short: "Compile products and store their indexes in the catalog database",
		Long: `Compile CUE product definitions and write each product's variation
index to a SQLite catalog. A product already in the catalog is replaced.

Examples:
  varsel import ./products --db catalog.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", defaultDB, "catalog database path")

	return cmd
}

func runImport(ctx context.Context, opts *ImportOptions, path string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	loadResult, loadErrors := LoadProducts(path, LoadModeFailFast)
	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	st, err := store.Open(opts.DBPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, err.Error(), nil)
	}
	defer st.Close()

	for _, idx := range loadResult.Products {
		if err := st.WriteIndex(ctx, idx); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeDatabase, err.Error(), nil)
		}
		formatter.VerboseLog("Imported product %s (%d variation(s))", idx.ProductID(), len(idx.Variations()))
	}

	products, err := st.ListProducts(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, err.Error(), nil)
	}

	result := ImportResult{Database: opts.DBPath, Products: products}
	if formatter.IsJSON() {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Imported %d product(s) into %s\n", len(loadResult.Products), opts.DBPath)
	return nil
}
