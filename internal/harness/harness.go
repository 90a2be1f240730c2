package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/varsel/internal/catalog"
	"github.com/roach88/varsel/internal/compiler"
	"github.com/roach88/varsel/internal/engine"
	"github.com/roach88/varsel/internal/i18n"
	"github.com/roach88/varsel/internal/testutil"
)

// Harness is the test execution engine.
// It runs one scenario against one resolver with a deterministic clock and
// view token.
type Harness struct {
	resolver *engine.Resolver
	store    *engine.MemoryStore
	warnings *testutil.WarningRecorder
	clock    *testutil.DeterministicClock
	logger   *slog.Logger

	result *Result
	step   int
	seen   int // warnings already copied into the trace
}

// Run executes a test scenario and returns the result.
//
// Execution flow:
// 1. Load and compile the product definition
// 2. Create a resolver with deterministic helpers
// 3. Initialize the selection from the initial variation
// 4. Execute steps with expect validation
// 5. Evaluate assertions and return the result
//
// Run returns an error only when the scenario cannot be executed at all
// (unloadable product, failed initialization). Mismatches are reported in
// Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	idx, err := compiler.LoadProduct(scenario.Product, scenario.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	return RunIndex(scenario, idx)
}

// RunIndex executes a scenario against an already built index.
// scenario.Product is ignored.
func RunIndex(scenario *Scenario, idx *catalog.Index) (*Result, error) {
	h := &Harness{
		store:    engine.NewMemoryStore(),
		warnings: &testutil.WarningRecorder{},
		clock:    testutil.NewDeterministicClock(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		result:   NewResult(),
	}

	opts := []engine.ResolverOption{
		engine.WithTranslator(i18n.New(scenario.Locale)),
		engine.WithNotifier(h.warnings),
		engine.WithDetailLoader(engine.IndexLoader{Index: idx}),
		engine.WithLogger(h.logger),
		engine.WithClock(h.clock),
		engine.WithViewTokens(testutil.NewFixedViewGenerator(scenario.ViewToken)),
	}
	if scenario.PartialRepair {
		opts = append(opts, engine.WithPartialRepair())
	}

	h.resolver = engine.New(idx, h.store, opts...)
	h.resolver.OnVariationChanged(h.onChanged)
	h.resolver.OnVariationLoaded(h.onLoaded)

	ctx := context.Background()

	out, err := h.resolver.Initialize(ctx, catalog.VariationID(scenario.InitialVariation))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}
	h.result.AddTrace(TraceEvent{
		Type:      EventInitialize,
		Variation: int64(out.Variation.ID),
		Unit:      int64(out.Variation.UnitID),
		Resolved:  true,
	})
	h.resolver.Drain()

	for i, step := range scenario.Steps {
		h.step = i + 1
		h.executeStep(ctx, step)
		h.resolver.Drain()
	}

	h.result.Final = h.finalState()

	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}

	h.logger.Info("scenario completed",
		"scenario", scenario.Name,
		"steps", len(scenario.Steps),
		"pass", h.result.Pass,
	)
	return h.result, nil
}

func (h *Harness) onChanged(ev engine.VariationChanged) {
	h.result.AddTrace(TraceEvent{
		Type:      EventChanged,
		Step:      h.step,
		Variation: int64(ev.VariationID),
		Unit:      int64(ev.UnitID),
		Seq:       ev.Seq,
	})
}

func (h *Harness) onLoaded(ev engine.VariationLoaded) {
	h.result.AddTrace(TraceEvent{
		Type:      EventLoaded,
		Step:      h.step,
		Variation: int64(ev.Detail.VariationID),
		Unit:      int64(ev.Detail.UnitID),
		Seq:       ev.Seq,
	})
}

// flushWarnings copies warnings raised since the last flush into the trace.
func (h *Harness) flushWarnings() {
	all := h.warnings.Warnings()
	for _, w := range all[h.seen:] {
		h.result.AddTrace(TraceEvent{Type: EventWarning, Step: h.step, Message: w})
	}
	h.seen = len(all)
}

// executeStep runs one step, records it and validates its expect clause.
func (h *Harness) executeStep(ctx context.Context, step Step) {
	ev := TraceEvent{Type: EventStep, Step: h.step, Action: step.Kind()}

	var (
		out   engine.Outcome
		err   error
		valid bool
	)
	switch ev.Action {
	case StepSelectAttribute:
		t := step.SelectAttribute
		ev.Attribute, ev.Value = t.Attribute, t.Value
		out, err = h.resolver.SelectAttribute(ctx, catalog.AttributeID(t.Attribute), catalog.ValueID(t.Value))
	case StepSelectUnit:
		ev.Unit = *step.SelectUnit
		out, err = h.resolver.SelectUnit(ctx, catalog.UnitID(*step.SelectUnit))
	case StepProbeAttribute:
		t := step.ProbeAttribute
		ev.Attribute, ev.Value = t.Attribute, t.Value
		valid = h.resolver.IsAttributeSelectionValid(catalog.AttributeID(t.Attribute), catalog.ValueID(t.Value))
		ev.Valid = &valid
	case StepProbeUnit:
		ev.Unit = *step.ProbeUnit
		valid = h.resolver.IsUnitSelectionValid(catalog.UnitID(*step.ProbeUnit))
		ev.Valid = &valid
	}

	if !step.IsProbe() {
		if err != nil {
			ev.Error = string(engine.ErrorCode(err))
			if ev.Error == "" {
				ev.Error = err.Error()
			}
		} else {
			ev.Variation = int64(out.Variation.ID)
			ev.Resolved = out.Resolved
			ev.Repaired = out.Repaired
			ev.Notices = out.Notices
		}
	}

	h.flushWarnings()
	h.result.AddTrace(ev)

	h.logger.Info("step completed",
		"step", h.step,
		"action", ev.Action,
		"variation_id", ev.Variation,
		"error", ev.Error,
	)

	if step.Expect != nil {
		for _, msg := range h.checkExpect(step.Expect, ev) {
			h.result.AddError(fmt.Sprintf("step %d (%s): %s", h.step, ev.Action, msg))
		}
	} else if ev.Error != "" {
		h.result.AddError(fmt.Sprintf("step %d (%s): unexpected error %s", h.step, ev.Action, ev.Error))
	}
}

// checkExpect compares a recorded step with its expect clause.
func (h *Harness) checkExpect(e *ExpectClause, ev TraceEvent) []string {
	var errs []string
	mismatch := func(field string, want, got any) {
		errs = append(errs, fmt.Sprintf("%s: expected %v, got %v", field, want, got))
	}

	if e.Error != "" || ev.Error != "" {
		if e.Error != ev.Error {
			mismatch("error", orNone(e.Error), orNone(ev.Error))
		}
	}
	if e.Variation != nil && *e.Variation != ev.Variation {
		mismatch("variation", *e.Variation, ev.Variation)
	}
	if e.Resolved != nil && *e.Resolved != ev.Resolved {
		mismatch("resolved", *e.Resolved, ev.Resolved)
	}
	if e.Repaired != nil && *e.Repaired != ev.Repaired {
		mismatch("repaired", *e.Repaired, ev.Repaired)
	}
	if e.Notices != nil && !slices.Equal(e.Notices, ev.Notices) {
		mismatch("notices", e.Notices, ev.Notices)
	}
	if e.Valid != nil && ev.Valid != nil && *e.Valid != *ev.Valid {
		mismatch("valid", *e.Valid, *ev.Valid)
	}

	sel, unit := h.resolver.Selection()
	for attr, want := range e.Selection {
		got := int64(sel.Value(catalog.AttributeID(attr)))
		if got != want {
			mismatch(fmt.Sprintf("selection[%d]", attr), want, got)
		}
	}
	if e.Unit != nil && *e.Unit != int64(unit) {
		mismatch("unit", *e.Unit, int64(unit))
	}

	slices.Sort(errs)
	return errs
}

func (h *Harness) finalState() FinalState {
	sel, unit := h.resolver.Selection()
	out := FinalState{
		Selection: make(map[int64]int64, len(sel)),
		Unit:      int64(unit),
		Variation: int64(h.store.ResolvedVariation()),
		Selected:  h.store.IsVariationSelected(),
	}
	for attr, v := range sel {
		out.Selection[int64(attr)] = int64(v)
	}
	return out
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
