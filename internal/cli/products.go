package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/varsel/internal/store"
)

// ProductsOptions holds flags for the products command.
type ProductsOptions struct {
	*RootOptions
	DBPath string
	Delete string
}

// NewProductsCommand creates the products command.
func NewProductsCommand(rootOpts *RootOptions, defaultDB string) *cobra.Command {
	opts := &ProductsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "products",
		Short: "List or remove products stored in the catalog database",
		Long: `List the products of a catalog database with their fingerprints and
variation counts, or remove one with --delete.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProducts(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", defaultDB, "catalog database path")
	cmd.Flags().StringVar(&opts.Delete, "delete", "", "remove the product with this id")

	return cmd
}

func runProducts(ctx context.Context, opts *ProductsOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	st, err := store.Open(opts.DBPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, err.Error(), nil)
	}
	defer st.Close()

	if opts.Delete != "" {
		deleted, err := st.DeleteProduct(ctx, opts.Delete)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeDatabase, err.Error(), nil)
		}
		if !deleted {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("product %q not found", opts.Delete), nil)
		}
		formatter.VerboseLog("Deleted product %s", opts.Delete)
	}

	products, err := st.ListProducts(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, err.Error(), nil)
	}

	if formatter.IsJSON() {
		return formatter.Success(products)
	}

	if len(products) == 0 {
		fmt.Fprintln(formatter.Writer, "No products stored.")
		return nil
	}
	for _, p := range products {
		fmt.Fprintf(formatter.Writer, "%s\t%d variation(s)\t%s\n", p.ID, p.Variations, p.Fingerprint)
	}
	return nil
}
