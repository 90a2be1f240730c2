package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/varsel/internal/catalog"
	"github.com/roach88/varsel/internal/compiler"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompiledProduct is the serialized form of one compiled index.
type CompiledProduct struct {
	ID          string                        `json:"product"`
	Fingerprint string                        `json:"fingerprint"`
	Attributes  []catalog.AttributeDefinition `json:"attributes"`
	Units       []catalog.Unit                `json:"units"`
	Variations  []catalog.VariationRecord     `json:"variations"`
	Findings    []compiler.ValidationError    `json:"findings,omitempty"`
}

// CompilationResult holds every compiled product.
type CompilationResult struct {
	Products []CompiledProduct `json:"products"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <products>",
		Short: "Compile CUE product definitions into variation indexes",
		Long: `Compile CUE product definitions and check them.

The compiler validates each product against the product schema, builds its
variation index and reports coverage gaps (unused values or units) as
warnings. <products> is a .cue file or a directory of them.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the compiled products as JSON to this file")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loadResult, loadErrors := LoadProducts(path, LoadModeCollectAll)
	if loadResult == nil {
		return outputCompileErrors(formatter, loadErrors)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, path)

	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	result := &CompilationResult{Products: make([]CompiledProduct, 0, len(loadResult.Products))}
	for _, idx := range loadResult.Products {
		fp, err := idx.Fingerprint()
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
		}
		formatter.VerboseLog("Compiled product %s (%s)", idx.ProductID(), fp)
		result.Products = append(result.Products, CompiledProduct{
			ID:          idx.ProductID(),
			Fingerprint: fp,
			Attributes:  idx.Attributes(),
			Units:       idx.Units(),
			Variations:  idx.Variations(),
			Findings:    compiler.Validate(idx),
		})
	}

	if opts.Output != "" {
		if err := writeCompiled(result, opts.Output); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.IsJSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d product(s)\n\n", len(result.Products))

	for _, p := range result.Products {
		fmt.Fprintf(w, "  %s: %d attribute(s), %d unit(s), %d variation(s)\n",
			p.ID, len(p.Attributes), len(p.Units), len(p.Variations))
		for _, f := range p.Findings {
			fmt.Fprintf(w, "    warning %s\n", f.Error())
		}
	}
	fmt.Fprintln(w)

	if outputFile != "" {
		fmt.Fprintf(w, "Wrote compiled products to %s\n", outputFile)
	}
	return nil
}

func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	cliErrors := make([]CLIError, len(errs))
	for i, err := range errs {
		code, message := parseLoadError(err)
		cliErrors[i] = CLIError{Code: code, Message: message}
	}
	exit := NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))

	if formatter.IsJSON() {
		if err := formatter.encode(CLIResponse{Status: "error", Error: &cliErrors[0], Data: cliErrors}); err != nil {
			return err
		}
		return exit
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)
	for i, err := range errs {
		var le *LoadError
		if errors.As(err, &le) && le.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n", le.Pos.Filename(), le.Pos.Line(), le.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", cliErrors[i].Code, cliErrors[i].Message)
	}
	return exit
}

// parseLoadError extracts error code and message from an error.
func parseLoadError(err error) (string, string) {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code, le.Message
	}
	return ErrCodeGeneric, err.Error()
}

func writeCompiled(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling products: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
