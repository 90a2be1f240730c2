package engine

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/roach88/varsel/internal/catalog"
)

// Message keys of the two repair notices.
const (
	KeySingleItemNotAvailable = "Ceres::Template.singleItemNotAvailable"
	KeySingleItemContent      = "Ceres::Template.singleItemContent"
)

// NoticeSeparator joins the notices of one repair into a single warning.
const NoticeSeparator = "<br>"

// Outcome reports what a selection change led to.
type Outcome struct {
	// Variation is the resolved variation; zero when Resolved is false.
	Variation catalog.VariationRecord

	// Resolved is false only for a partial repair (see WithPartialRepair).
	Resolved bool

	// Repaired is true when the change did not resolve directly.
	Repaired bool

	// Overrides lists the fields the repair widened or switched.
	Overrides []Override

	// Notices holds one translated message per override.
	Notices []string

	// Warning is Notices joined with NoticeSeparator; empty without repair.
	Warning string
}

// Resolver owns the selection pipeline of one product view.
//
// Thread-safety model:
//   - Initialize, SelectAttribute, SelectUnit: one goroutine at a time
//   - IsAttributeSelectionValid, IsUnitSelectionValid, Current: same goroutine
//     as the selection calls, since they share the query cache
//   - Run: exactly one goroutine, delivers detail loads
//
// INVARIANTS:
//   - a failed change leaves the store as it was before the change
//   - every commit emits exactly one VariationChanged event
//   - probes never write to the store
type Resolver struct {
	matcher    *Matcher
	store      SelectionStore
	translator Translator
	notifier   Notifier
	loader     DetailLoader
	logger     *slog.Logger
	clock      LogicalClock
	viewGen    ViewTokenGenerator
	view       string
	queue      *eventQueue

	partialRepair bool

	changed []func(VariationChanged)
	loaded  []func(VariationLoaded)

	// latest is the seq of the last commit; older loads are stale.
	latest  atomic.Int64
	loading sync.WaitGroup
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithTranslator sets the localization collaborator for repair notices.
func WithTranslator(t Translator) ResolverOption {
	return func(r *Resolver) {
		r.translator = t
	}
}

// WithNotifier sets the collaborator that shows repair warnings.
// Default: the warning is logged.
func WithNotifier(n Notifier) ResolverOption {
	return func(r *Resolver) {
		r.notifier = n
	}
}

// WithDetailLoader sets the collaborator that loads resolved variations.
// Without one, no VariationLoaded events are produced.
func WithDetailLoader(l DetailLoader) ResolverOption {
	return func(r *Resolver) {
		r.loader = l
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = l
	}
}

// WithClock sets the logical clock stamping events.
func WithClock(c LogicalClock) ResolverOption {
	return func(r *Resolver) {
		r.clock = c
	}
}

// WithViewTokens sets the generator of the product view token.
// Default: UUIDv7Generator.
func WithViewTokens(g ViewTokenGenerator) ResolverOption {
	return func(r *Resolver) {
		r.viewGen = g
	}
}

// WithPartialRepair lets a repair that does not resolve uniquely commit its
// widened selection with no variation selected, instead of failing with an
// inconsistent-index error. The shopper then completes the selection.
func WithPartialRepair() ResolverOption {
	return func(r *Resolver) {
		r.partialRepair = true
	}
}

// New creates a Resolver for index writing to store.
func New(index *catalog.Index, store SelectionStore, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		matcher:    NewMatcher(index),
		store:      store,
		translator: keyTranslator{},
		clock:      NewClock(),
		viewGen:    UUIDv7Generator{},
		queue:      newEventQueue(),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.notifier == nil {
		r.notifier = logNotifier{logger: r.logger}
	}
	r.view = r.viewGen.Generate()
	r.logger = r.logger.With("view", r.view, "product", index.ProductID())

	return r
}

// View returns the product view token.
func (r *Resolver) View() string {
	return r.view
}

// Index returns the Variation Index the resolver works on.
func (r *Resolver) Index() *catalog.Index {
	return r.matcher.Index()
}

// CacheStats returns the query cache counters.
func (r *Resolver) CacheStats() CacheStats {
	return r.matcher.Cache().Stats()
}

// OnVariationChanged registers an observer for commits.
// Observers run synchronously inside the selection call.
func (r *Resolver) OnVariationChanged(fn func(VariationChanged)) {
	r.changed = append(r.changed, fn)
}

// OnVariationLoaded registers an observer for detail loads.
// Observers run on the goroutine calling Run.
func (r *Resolver) OnVariationLoaded(fn func(VariationLoaded)) {
	r.loaded = append(r.loaded, fn)
}

// ReplaceIndex switches to a new index for the same view, discarding the
// query cache, and re-initializes from initial.
//
// The initial variation is checked against the new index first; on error
// the resolver keeps its index and the store is untouched.
func (r *Resolver) ReplaceIndex(ctx context.Context, index *catalog.Index, initial catalog.VariationID) (Outcome, error) {
	if _, err := resolveInitial(NewMatcher(index), initial); err != nil {
		return Outcome{}, err
	}
	r.matcher.Reset(index)
	r.logger.Info("index replaced", "fingerprint", r.matcher.Cache().Generation())
	return r.Initialize(ctx, initial)
}

// Initialize establishes the default selection from a variation and
// commits it. Zero picks the first variation of the index.
func (r *Resolver) Initialize(ctx context.Context, initial catalog.VariationID) (Outcome, error) {
	v, err := resolveInitial(r.matcher, initial)
	if err != nil {
		return Outcome{}, err
	}

	r.store.SetSelectedAttributes(r.matcher.Index().SelectionOf(v))
	r.store.SetSelectedUnit(v.UnitID)

	r.logger.Info("selection initialized", "variation_id", v.ID, "unit_id", v.UnitID)
	r.commit(ctx, v)
	return Outcome{Variation: v.Clone(), Resolved: true}, nil
}

// resolveInitial picks the initial variation of m's index and checks that
// its own selection resolves back to it.
func resolveInitial(m *Matcher, initial catalog.VariationID) (catalog.VariationRecord, error) {
	idx := m.Index()
	if idx.NumVariations() == 0 {
		return catalog.VariationRecord{}, &ResolveError{
			Code:    ErrCodeInconsistentIndex,
			Message: "index has no variations",
		}
	}

	var v catalog.VariationRecord
	if initial == 0 {
		v = idx.Variations()[0]
	} else {
		var ok bool
		v, ok = idx.Variation(initial)
		if !ok {
			return catalog.VariationRecord{}, NewUnknownVariationError(initial)
		}
	}

	resolved, ok := m.ExactMatch(idx.SelectionOf(v), v.UnitID)
	if !ok || resolved.ID != v.ID {
		return catalog.VariationRecord{}, &ResolveError{
			Code:    ErrCodeInconsistentIndex,
			Message: "initial variation does not resolve to itself",
			Details: map[string]string{"variation_id": strconv.FormatInt(int64(v.ID), 10)},
		}
	}
	return resolved, nil
}

// SelectAttribute sets one attribute (NoValue clears it) and resolves.
//
// Unknown attributes and values are rejected with ErrCodeInvalidTarget
// before anything is written.
func (r *Resolver) SelectAttribute(ctx context.Context, attr catalog.AttributeID, value catalog.ValueID) (Outcome, error) {
	idx := r.matcher.Index()
	if !idx.HasAttribute(attr) {
		return Outcome{}, NewInvalidAttributeError(attr, value, false)
	}
	if value != catalog.NoValue && !idx.HasValue(attr, value) {
		return Outcome{}, NewInvalidAttributeError(attr, value, true)
	}

	prevSel, prevUnit := r.snapshot()
	r.store.SetSelectedAttributes(prevSel.With(attr, value))

	r.logger.Debug("attribute selected", "attribute_id", attr, "value_id", value)
	return r.onSelectionChange(ctx, AttributeChange(attr, value), prevSel, prevUnit)
}

// SelectUnit switches the unit and resolves.
func (r *Resolver) SelectUnit(ctx context.Context, unit catalog.UnitID) (Outcome, error) {
	if !r.matcher.Index().HasUnit(unit) {
		return Outcome{}, NewInvalidUnitError(unit)
	}

	prevSel, prevUnit := r.snapshot()
	r.store.SetSelectedUnit(unit)

	r.logger.Debug("unit selected", "unit_id", unit)
	return r.onSelectionChange(ctx, UnitChange(unit), prevSel, prevUnit)
}

// IsAttributeSelectionValid reports whether setting attr to value would
// leave at least one variation under non-strict matching.
// The current value is always valid.
func (r *Resolver) IsAttributeSelectionValid(attr catalog.AttributeID, value catalog.ValueID) bool {
	idx := r.matcher.Index()
	if !idx.HasAttribute(attr) || (value != catalog.NoValue && !idx.HasValue(attr, value)) {
		return false
	}

	sel, unit := r.snapshot()
	if sel[attr] == value {
		return true
	}
	return len(r.matcher.FilterVariations(sel.With(attr, value), unit, false)) > 0
}

// IsUnitSelectionValid reports whether switching to unit would leave at
// least one variation under non-strict matching.
// The current unit is always valid.
func (r *Resolver) IsUnitSelectionValid(unit catalog.UnitID) bool {
	if !r.matcher.Index().HasUnit(unit) {
		return false
	}

	sel, current := r.snapshot()
	if current == unit {
		return true
	}
	return len(r.matcher.FilterVariations(sel, unit, false)) > 0
}

// Current returns the variation the committed selection resolves to.
func (r *Resolver) Current() (catalog.VariationRecord, bool) {
	sel, unit := r.snapshot()
	v, ok := r.matcher.ExactMatch(sel, unit)
	return v.Clone(), ok
}

// Selection returns a copy of the committed selection and unit.
func (r *Resolver) Selection() (catalog.Selection, catalog.UnitID) {
	return r.snapshot()
}

// snapshot reads the store, normalized to exactly the index's attributes.
func (r *Resolver) snapshot() (catalog.Selection, catalog.UnitID) {
	stored := r.store.SelectedAttributes()
	sel := r.matcher.Index().EmptySelection()
	for attr := range sel {
		if v, ok := stored[attr]; ok {
			sel[attr] = v
		}
	}
	return sel, r.store.SelectedUnit()
}

// onSelectionChange runs the change pipeline after the store was written.
func (r *Resolver) onSelectionChange(ctx context.Context, change Change, prevSel catalog.Selection, prevUnit catalog.UnitID) (Outcome, error) {
	sel, unit := r.snapshot()

	if v, ok := r.matcher.ExactMatch(sel, unit); ok {
		r.commit(ctx, v)
		return Outcome{Variation: v.Clone(), Resolved: true}, nil
	}

	out, err := r.repair(ctx, change, sel, unit)
	if err != nil {
		r.store.SetSelectedAttributes(prevSel)
		r.store.SetSelectedUnit(prevUnit)
		r.logger.Error("selection change failed",
			"change", change.String(),
			"error", err,
		)
		return Outcome{}, err
	}
	return out, nil
}

// repair moves an unresolvable selection to the closest qualified variation.
func (r *Resolver) repair(ctx context.Context, change Change, sel catalog.Selection, unit catalog.UnitID) (Outcome, error) {
	qualified := r.matcher.Qualified(change)
	closest, ok := ClosestVariation(qualified, sel, unit)
	if !ok {
		return Outcome{}, NewEmptyQualifiedSetError(change)
	}

	fix := ApplyRepair(r.matcher.Index(), closest, sel, unit)
	matches := r.matcher.FilterVariations(fix.Selection, fix.Unit, true)

	out := Outcome{
		Repaired:  true,
		Overrides: fix.Overrides,
		Notices:   r.notices(fix.Overrides),
	}
	out.Warning = strings.Join(out.Notices, NoticeSeparator)

	if len(matches) != 1 {
		if !r.partialRepair {
			return Outcome{}, NewUnresolvedRepairError(change, closest.ID, len(matches))
		}
		r.store.SetSelectedAttributes(fix.Selection)
		r.store.SetSelectedUnit(fix.Unit)
		r.store.SetIsVariationSelected(false)
		r.logger.Info("selection repaired partially",
			"change", change.String(),
			"closest_variation_id", closest.ID,
			"overrides", len(fix.Overrides),
		)
		r.warn(out.Warning)
		return out, nil
	}

	r.store.SetSelectedAttributes(fix.Selection)
	r.store.SetSelectedUnit(fix.Unit)
	out.Variation = matches[0].Clone()
	out.Resolved = true

	r.logger.Info("selection repaired",
		"change", change.String(),
		"variation_id", out.Variation.ID,
		"overrides", len(fix.Overrides),
	)
	r.commit(ctx, out.Variation)
	r.warn(out.Warning)
	return out, nil
}

func (r *Resolver) notices(overrides []Override) []string {
	notices := make([]string, 0, len(overrides))
	for _, o := range overrides {
		name := o.Name
		if o.Kind == OverrideUnit {
			name = r.translator.Translate(KeySingleItemContent, nil)
		}
		notices = append(notices, r.translator.Translate(KeySingleItemNotAvailable, map[string]string{"name": name}))
	}
	return notices
}

func (r *Resolver) warn(message string) {
	if message == "" {
		return
	}
	r.notifier.Warn(message)
}

// commit records v as resolved, notifies observers and schedules loading.
func (r *Resolver) commit(ctx context.Context, v catalog.VariationRecord) {
	r.store.SetResolvedVariation(v.ID)
	r.store.SetIsVariationSelected(true)

	seq := r.clock.Next()
	r.latest.Store(seq)

	ev := VariationChanged{
		Seq:         seq,
		View:        r.view,
		VariationID: v.ID,
		UnitID:      v.UnitID,
		Attributes:  slices.Clone(v.Attributes),
		Documents:   slices.Clone(v.Documents),
	}
	for _, fn := range r.changed {
		fn(ev)
	}

	r.logger.Debug("variation committed", "variation_id", v.ID, "seq", seq)

	if r.loader != nil {
		r.loading.Add(1)
		go r.load(context.WithoutCancel(ctx), seq, v.ID)
	}
}

// load runs one detail load and hands the result to the event queue.
func (r *Resolver) load(ctx context.Context, seq int64, id catalog.VariationID) {
	defer r.loading.Done()

	detail, err := r.loader.LoadVariation(ctx, id)
	ev := Event{Type: EventTypeLoaded, Seq: seq, VariationID: id}
	if err != nil {
		ev.Type = EventTypeLoadFailed
		ev.Err = err
	} else {
		ev.Detail = &detail
	}

	if !r.queue.Enqueue(ev) {
		r.logger.Debug("detail load dropped: resolver stopped", "variation_id", id)
	}
}

// Run delivers completed detail loads to observers.
// Blocks until ctx is cancelled or Stop is called.
// Must be called from exactly one goroutine.
func (r *Resolver) Run(ctx context.Context) error {
	r.logger.Debug("resolver event loop starting")

	for {
		if ev, ok := r.queue.TryDequeue(); ok {
			r.deliver(ev)
			continue
		}

		select {
		case <-ctx.Done():
			r.logger.Debug("resolver event loop stopping: context cancelled")
			return ctx.Err()
		case _, ok := <-r.queue.Wait():
			if !ok {
				// Closed: drain what is left, then stop.
				for {
					ev, ok := r.queue.TryDequeue()
					if !ok {
						return nil
					}
					r.deliver(ev)
				}
			}
		}
	}
}

// Drain waits for in-flight loads and delivers every queued event on the
// calling goroutine. Used by the CLI and harness instead of Run.
func (r *Resolver) Drain() {
	r.loading.Wait()
	for {
		ev, ok := r.queue.TryDequeue()
		if !ok {
			return
		}
		r.deliver(ev)
	}
}

// Stop waits for in-flight loads, then makes Run return after delivering
// what is queued.
func (r *Resolver) Stop() {
	r.loading.Wait()
	r.queue.Close()
}

// Pending returns the number of loads waiting for delivery.
func (r *Resolver) Pending() int {
	return r.queue.Len()
}

func (r *Resolver) deliver(ev Event) {
	switch ev.Type {
	case EventTypeLoadFailed:
		r.logger.Error("variation detail load failed",
			"variation_id", ev.VariationID,
			"seq", ev.Seq,
			"error", ev.Err,
		)
	case EventTypeLoaded:
		if ev.Seq < r.latest.Load() {
			r.logger.Debug("stale variation detail dropped",
				"variation_id", ev.VariationID,
				"seq", ev.Seq,
			)
			return
		}
		loaded := VariationLoaded{Seq: ev.Seq, View: r.view, Detail: *ev.Detail}
		for _, fn := range r.loaded {
			fn(loaded)
		}
	default:
		r.logger.Error("unknown event type", "type", ev.Type)
	}
}
