package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/varsel/internal/catalog"
)

// OptionsOptions holds flags for the options command.
type OptionsOptions struct {
	*RootOptions
	SessionOptions
}

// OptionValue is one selectable value or unit and whether choosing it
// would leave a matching variation.
type OptionValue struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Current bool   `json:"current,omitempty"`
	Valid   bool   `json:"valid"`
}

// AttributeOptions lists the values of one attribute.
type AttributeOptions struct {
	ID     int64         `json:"attribute_id"`
	Name   string        `json:"name"`
	Values []OptionValue `json:"values"`
}

// OptionsResult is the output of the options command.
type OptionsResult struct {
	Product    string             `json:"product"`
	Final      SelectionState     `json:"final"`
	Attributes []AttributeOptions `json:"attributes"`
	Units      []OptionValue      `json:"units"`

	// ProbedBy is "catalog" when validity came from the database, "index"
	// when it came from the in-memory matcher.
	ProbedBy string `json:"probed_by"`
}

// NewOptionsCommand creates the options command.
func NewOptionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OptionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "options [products]",
		Short: "Show which attribute values and units can be selected",
		Long: `Initialize a product view, apply the --select changes and probe every
attribute value and unit: a value is valid when selecting it would still
leave at least one matching variation. Probing never changes the selection.

Examples:
  varsel options ./products --product shirt --initial 202
  varsel options --db catalog.db --product paint --select unit=2`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			products := ""
			if len(args) == 1 {
				products = args[0]
			}
			return runOptions(cmd.Context(), opts, products, cmd)
		},
	}

	opts.addFlags(cmd)

	return cmd
}

func runOptions(ctx context.Context, opts *OptionsOptions, products string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	changes, err := parseChanges(opts.Selects)
	if err != nil {
		return failLoad(formatter, err)
	}

	s, err := openSession(ctx, opts.RootOptions, opts.SessionOptions, products)
	if err != nil {
		return failLoad(formatter, err)
	}
	defer s.close()

	for _, c := range changes {
		if _, err := s.apply(ctx, c); err != nil {
			return formatter.Fail(ExitFailure, resolveCode(err), err.Error(), c.String())
		}
	}

	result, err := probeOptions(ctx, s, proberFor(s))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, err.Error(), nil)
	}
	formatter.VerboseLog("Probed %s options through the %s", result.Product, result.ProbedBy)

	if formatter.IsJSON() {
		return formatter.Success(result)
	}
	writeOptionsText(formatter, result)
	return nil
}

func probeOptions(ctx context.Context, s *session, p optionProber) (OptionsResult, error) {
	idx := s.index
	sel, unit := s.resolver.Selection()
	attrs, units := idx.Attributes(), idx.Units()

	result := OptionsResult{
		Product:    idx.ProductID(),
		Final:      stateOf(s),
		Attributes: make([]AttributeOptions, 0, len(attrs)),
		Units:      make([]OptionValue, 0, len(units)),
		ProbedBy:   p.source(),
	}

	for _, a := range attrs {
		ao := AttributeOptions{ID: int64(a.ID), Name: a.Name}
		values := a.Values
		if idx.HasEmptyOption() {
			values = append(values, catalog.AttributeValue{ID: catalog.NoValue, Name: "none"})
		}
		for _, v := range values {
			valid, err := p.attributeValid(ctx, a.ID, v.ID)
			if err != nil {
				return OptionsResult{}, err
			}
			ao.Values = append(ao.Values, OptionValue{
				ID:      int64(v.ID),
				Name:    v.Name,
				Current: sel[a.ID] == v.ID,
				Valid:   valid,
			})
		}
		result.Attributes = append(result.Attributes, ao)
	}

	for _, u := range units {
		valid, err := p.unitValid(ctx, u.ID)
		if err != nil {
			return OptionsResult{}, err
		}
		result.Units = append(result.Units, OptionValue{
			ID:      int64(u.ID),
			Name:    u.Name,
			Current: u.ID == unit,
			Valid:   valid,
		})
	}
	return result, nil
}

func writeOptionsText(formatter *OutputFormatter, result OptionsResult) {
	w := formatter.Writer
	fmt.Fprintf(w, "%s (variation %d)\n", result.Product, result.Final.Variation)

	for _, a := range result.Attributes {
		fmt.Fprintf(w, "\n%s [%d]\n", a.Name, a.ID)
		for _, v := range a.Values {
			writeOptionLine(w, v)
		}
	}

	fmt.Fprintln(w, "\nUnits")
	for _, u := range result.Units {
		writeOptionLine(w, u)
	}
}

func writeOptionLine(w io.Writer, v OptionValue) {
	mark := " "
	switch {
	case v.Current:
		mark = "*"
	case !v.Valid:
		mark = "✗"
	}
	fmt.Fprintf(w, "  %s %-10s %d\n", mark, v.Name, v.ID)
}
