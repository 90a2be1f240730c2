package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/varsel/internal/catalog"
	"github.com/roach88/varsel/internal/engine"
	"github.com/roach88/varsel/internal/i18n"
	"github.com/roach88/varsel/internal/store"
)

// ErrCodeBadArgument marks a malformed --select value.
const ErrCodeBadArgument = "E009"

// SessionOptions selects the product a command resolves against and the
// changes it applies.
type SessionOptions struct {
	DBPath        string
	ProductID     string
	Initial       int64
	Selects       []string // "attr=value", "attr=none" or "unit=id", applied in order
	PartialRepair bool
}

func (o *SessionOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.DBPath, "db", "", "read the product from this catalog database instead of CUE files")
	cmd.Flags().StringVar(&o.ProductID, "product", "", "product id (optional when only one product is defined)")
	cmd.Flags().Int64Var(&o.Initial, "initial", 0, "initial variation id (default: first variation)")
	cmd.Flags().StringArrayVar(&o.Selects, "select", nil, "selection change attr=value, attr=none or unit=id (repeatable)")
	cmd.Flags().BoolVar(&o.PartialRepair, "partial-repair", false, "keep an unresolved repaired selection instead of failing")
}

// session is one resolver bound to a product, plus what it emitted.
type session struct {
	resolver *engine.Resolver
	store    *engine.MemoryStore
	index    *catalog.Index
	notices  *noticeCollector

	// catalog is the database the product was read from; nil for CUE input.
	catalog *store.Store

	loaded []engine.VariationLoaded
	close  func() error
}

// noticeCollector is the session's engine.Notifier.
type noticeCollector struct {
	warnings []string
}

func (n *noticeCollector) Warn(message string) {
	n.warnings = append(n.warnings, message)
}

// openSession loads the product from the CUE path or the catalog database
// and initializes a resolver on it. Load failures are *LoadError.
func openSession(ctx context.Context, root *RootOptions, so SessionOptions, products string) (*session, error) {
	s := &session{
		store:   engine.NewMemoryStore(),
		notices: &noticeCollector{},
		close:   func() error { return nil },
	}

	var loader engine.DetailLoader
	switch {
	case so.DBPath != "":
		st, err := store.Open(so.DBPath)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeDatabase, Message: err.Error()}
		}
		s.close = st.Close
		s.catalog = st

		id := so.ProductID
		if id == "" {
			id, err = onlyStoredProduct(ctx, st)
			if err != nil {
				st.Close()
				return nil, err
			}
		}
		s.index, err = st.ReadIndex(ctx, id)
		if errors.Is(err, store.ErrProductNotFound) {
			st.Close()
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("product %q not found in %s", id, so.DBPath)}
		}
		if err != nil {
			st.Close()
			return nil, &LoadError{Code: ErrCodeDatabase, Message: err.Error()}
		}
		loader = st.NewDetailLoader(id)
	case products != "":
		idx, err := LoadProduct(products, so.ProductID)
		if err != nil {
			return nil, err
		}
		s.index = idx
		loader = engine.IndexLoader{Index: idx}
	default:
		return nil, &LoadError{Code: ErrCodeBadArgument, Message: "a products path or --db is required"}
	}

	opts := []engine.ResolverOption{
		engine.WithTranslator(i18n.New(root.Locale)),
		engine.WithNotifier(s.notices),
		engine.WithDetailLoader(loader),
		engine.WithLogger(root.logger()),
	}
	if so.PartialRepair {
		opts = append(opts, engine.WithPartialRepair())
	}
	s.resolver = engine.New(s.index, s.store, opts...)
	s.resolver.OnVariationLoaded(func(ev engine.VariationLoaded) {
		s.loaded = append(s.loaded, ev)
	})

	if _, err := s.resolver.Initialize(ctx, catalog.VariationID(so.Initial)); err != nil {
		s.close()
		return nil, &LoadError{Code: resolveCode(err), Message: err.Error()}
	}
	s.resolver.Drain()
	return s, nil
}

func onlyStoredProduct(ctx context.Context, st *store.Store) (string, error) {
	products, err := st.ListProducts(ctx)
	if err != nil {
		return "", &LoadError{Code: ErrCodeDatabase, Message: err.Error()}
	}
	if len(products) != 1 {
		return "", &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("%d products stored, select one with --product", len(products))}
	}
	return products[0].ID, nil
}

// apply runs one change through the resolver and waits for its detail load.
func (s *session) apply(ctx context.Context, c engine.Change) (engine.Outcome, error) {
	var (
		out engine.Outcome
		err error
	)
	switch c.Kind {
	case engine.ChangeUnit:
		out, err = s.resolver.SelectUnit(ctx, c.UnitID)
	default:
		out, err = s.resolver.SelectAttribute(ctx, c.AttributeID, c.ValueID)
	}
	s.resolver.Drain()
	return out, err
}

// lastLoaded returns the detail of the most recent load, if any.
func (s *session) lastLoaded() (engine.VariationDetail, bool) {
	if len(s.loaded) == 0 {
		return engine.VariationDetail{}, false
	}
	return s.loaded[len(s.loaded)-1].Detail, true
}

// parseChanges parses every --select value up front so a typo fails the
// command before anything is resolved.
func parseChanges(selects []string) ([]engine.Change, error) {
	changes := make([]engine.Change, 0, len(selects))
	for _, s := range selects {
		c, err := parseChange(s)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeBadArgument, Message: err.Error()}
		}
		changes = append(changes, c)
	}
	return changes, nil
}

func parseChange(s string) (engine.Change, error) {
	key, value, ok := strings.Cut(s, "=")
	if !ok {
		return engine.Change{}, fmt.Errorf("invalid selection %q: want attr=value or unit=id", s)
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	if key == "unit" {
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return engine.Change{}, fmt.Errorf("invalid unit in %q: %w", s, err)
		}
		return engine.UnitChange(catalog.UnitID(id)), nil
	}

	attr, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return engine.Change{}, fmt.Errorf("invalid attribute in %q: %w", s, err)
	}
	if value == "none" || value == "" {
		return engine.AttributeChange(catalog.AttributeID(attr), catalog.NoValue), nil
	}
	val, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return engine.Change{}, fmt.Errorf("invalid value in %q: %w", s, err)
	}
	return engine.AttributeChange(catalog.AttributeID(attr), catalog.ValueID(val)), nil
}

// stateOf renders the committed selection with string keys for JSON.
func stateOf(s *session) SelectionState {
	sel, unit := s.resolver.Selection()
	state := SelectionState{
		Selection: make(map[string]int64, len(sel)),
		Unit:      int64(unit),
		Variation: int64(s.store.ResolvedVariation()),
		Selected:  s.store.IsVariationSelected(),
	}
	for attr, v := range sel {
		state.Selection[strconv.FormatInt(int64(attr), 10)] = int64(v)
	}
	return state
}

// SelectionState is the committed selection after a command.
type SelectionState struct {
	Selection map[string]int64 `json:"selection"`
	Unit      int64            `json:"unit"`
	Variation int64            `json:"variation"`
	Selected  bool             `json:"selected"`
}

// resolveCode returns the resolve error code of err, or ErrCodeGeneric.
func resolveCode(err error) string {
	if code := engine.ErrorCode(err); code != "" {
		return string(code)
	}
	return ErrCodeGeneric
}
