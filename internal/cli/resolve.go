package cli

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	SessionOptions
}

// StepResult is the outcome of one --select change.
type StepResult struct {
	Change    string   `json:"change"`
	Variation int64    `json:"variation,omitempty"`
	Resolved  bool     `json:"resolved"`
	Repaired  bool     `json:"repaired,omitempty"`
	Notices   []string `json:"notices,omitempty"`
	Error     string   `json:"error,omitempty"`
	Message   string   `json:"message,omitempty"`
}

// ResolveResult is the output of the resolve command.
type ResolveResult struct {
	Product string            `json:"product"`
	Initial int64             `json:"initial"`
	Steps   []StepResult      `json:"steps"`
	Final   SelectionState    `json:"final"`
	Detail  map[string]string `json:"detail,omitempty"`
}

// Failed counts the rejected steps.
func (r ResolveResult) Failed() int {
	n := 0
	for _, s := range r.Steps {
		if s.Error != "" {
			n++
		}
	}
	return n
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve [products]",
		Short: "Apply selection changes to a product and show the resolved variation",
		Long: `Initialize a product view, apply each --select change in order and
report the variation every change resolves to, including repairs and the
notices they raise.

Exit codes:
  0 - Every change resolved (directly or by repair)
  1 - At least one change was rejected
  2 - Command error (bad paths, unknown product, etc.)

Examples:
  varsel resolve ./products --product shirt --initial 202 --select unit=4
  varsel resolve --db catalog.db --product paint --select 1=12 --select unit=2
  varsel resolve ./products/shirt.cue --select 2=none --partial-repair`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			products := ""
			if len(args) == 1 {
				products = args[0]
			}
			return runResolve(cmd.Context(), opts, products, cmd)
		},
	}

	opts.addFlags(cmd)

	return cmd
}

func runResolve(ctx context.Context, opts *ResolveOptions, products string, cmd *cobra.Command) error {
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

	current, _ := s.resolver.Current()
	result := ResolveResult{
		Product: s.index.ProductID(),
		Initial: int64(current.ID),
		Steps:   make([]StepResult, 0, len(changes)),
	}
	formatter.VerboseLog("Initialized %s at variation %d", result.Product, result.Initial)

	for _, c := range changes {
		out, err := s.apply(ctx, c)
		step := StepResult{Change: c.String()}
		if err != nil {
			step.Error = resolveCode(err)
			step.Message = err.Error()
		} else {
			step.Variation = int64(out.Variation.ID)
			step.Resolved = out.Resolved
			step.Repaired = out.Repaired
			step.Notices = out.Notices
		}
		result.Steps = append(result.Steps, step)
	}

	result.Final = stateOf(s)
	if d, ok := s.lastLoaded(); ok {
		result.Detail = d.Properties
	}

	if formatter.IsJSON() {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		writeResolveText(formatter, result)
	}

	if n := result.Failed(); n > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d change(s) rejected", n))
	}
	return nil
}

func writeResolveText(formatter *OutputFormatter, result ResolveResult) {
	w := formatter.Writer
	fmt.Fprintf(w, "%s: initial variation %d\n", result.Product, result.Initial)

	for i, s := range result.Steps {
		switch {
		case s.Error != "":
			fmt.Fprintf(w, "%d. %s ✗ %s\n", i+1, s.Change, s.Message)
		case !s.Resolved:
			fmt.Fprintf(w, "%d. %s → unresolved (repaired)\n", i+1, s.Change)
		case s.Repaired:
			fmt.Fprintf(w, "%d. %s → variation %d (repaired)\n", i+1, s.Change, s.Variation)
		default:
			fmt.Fprintf(w, "%d. %s → variation %d\n", i+1, s.Change, s.Variation)
		}
		for _, n := range s.Notices {
			fmt.Fprintf(w, "   ! %s\n", n)
		}
	}

	fmt.Fprintln(w)
	if result.Final.Selected {
		fmt.Fprintf(w, "Selected variation %d (unit %d)\n", result.Final.Variation, result.Final.Unit)
	} else {
		fmt.Fprintf(w, "No variation selected (unit %d)\n", result.Final.Unit)
	}
	if len(result.Detail) > 0 {
		pairs := make([]string, 0, len(result.Detail))
		for _, k := range slices.Sorted(maps.Keys(result.Detail)) {
			pairs = append(pairs, k+"="+result.Detail[k])
		}
		fmt.Fprintf(w, "Detail: %s\n", strings.Join(pairs, " "))
	}
}

// failLoad reports a session or argument error.
func failLoad(formatter *OutputFormatter, err error) error {
	code, message := parseLoadError(err)
	return formatter.Fail(ExitCommandError, code, message, nil)
}
