package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/varsel/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Locale  string

	// Logger receives the resolver's structured logs. Commands fall back
	// to a discarding logger when nil.
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command with built-in defaults.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWithConfig(config.Config{
		DBPath: config.DefaultDB,
		Locale: config.DefaultLocale,
	}, nil)
}

// NewRootCommandWithConfig creates the root command. cfg supplies the
// defaults of the --db and --locale flags.
func NewRootCommandWithConfig(cfg config.Config, logger *slog.Logger) *cobra.Command {
	opts := &RootOptions{Logger: logger}

	cmd := &cobra.Command{
		Use:   "varsel",
		Short: "varsel - variation selection for configurable products",
		Long: `Resolve attribute and unit selections of a configurable product to
exactly one variation, repairing the selection when a change leaves no
matching variation.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Locale, "locale", cfg.Locale, "language of repair notices")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewImportCommand(opts, cfg.DBPath))
	cmd.AddCommand(NewProductsCommand(opts, cfg.DBPath))
	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewOptionsCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

func (o *RootOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
