package cli

import (
	"context"

	"github.com/roach88/varsel/internal/catalog"
	"github.com/roach88/varsel/internal/engine"
	"github.com/roach88/varsel/internal/store"
)

// Probe sources reported by the options command.
const (
	ProbedByIndex   = "index"
	ProbedByCatalog = "catalog"
)

// optionProber answers "would this choice still match a variation?"
// for the committed selection of a session.
type optionProber interface {
	attributeValid(ctx context.Context, attr catalog.AttributeID, value catalog.ValueID) (bool, error)
	unitValid(ctx context.Context, unit catalog.UnitID) (bool, error)
	source() string
}

// proberFor probes through the catalog database when the session has one,
// otherwise through the resolver's in-memory matcher.
func proberFor(s *session) optionProber {
	if s.catalog != nil {
		return catalogProber{st: s.catalog, productID: s.index.ProductID(), resolver: s.resolver}
	}
	return resolverProber{resolver: s.resolver}
}

type resolverProber struct {
	resolver *engine.Resolver
}

func (p resolverProber) attributeValid(_ context.Context, attr catalog.AttributeID, value catalog.ValueID) (bool, error) {
	return p.resolver.IsAttributeSelectionValid(attr, value), nil
}

func (p resolverProber) unitValid(_ context.Context, unit catalog.UnitID) (bool, error) {
	return p.resolver.IsUnitSelectionValid(unit), nil
}

func (resolverProber) source() string { return ProbedByIndex }

// catalogProber runs the non-strict filter query in SQL. It applies the
// same rules as the resolver's probes: the current choice is always valid
// and anything else is valid when at least one variation still matches.
type catalogProber struct {
	st        *store.Store
	productID string
	resolver  *engine.Resolver
}

func (p catalogProber) attributeValid(ctx context.Context, attr catalog.AttributeID, value catalog.ValueID) (bool, error) {
	sel, unit := p.resolver.Selection()
	if sel[attr] == value {
		return true, nil
	}
	return p.matches(ctx, sel.With(attr, value), unit)
}

func (p catalogProber) unitValid(ctx context.Context, unit catalog.UnitID) (bool, error) {
	sel, current := p.resolver.Selection()
	if current == unit {
		return true, nil
	}
	return p.matches(ctx, sel, unit)
}

func (p catalogProber) matches(ctx context.Context, sel catalog.Selection, unit catalog.UnitID) (bool, error) {
	ids, err := p.st.FilterVariations(ctx, p.productID, sel, unit, false)
	if err != nil {
		return false, err
	}
	return len(ids) > 0, nil
}

func (catalogProber) source() string { return ProbedByCatalog }
