package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/varsel/internal/catalog"
	tu "github.com/roach88/varsel/internal/testutil"
)

type testResolver struct {
	*Resolver
	store    *MemoryStore
	warnings *tu.WarningRecorder
	changed  []VariationChanged
}

func newTestResolver(t *testing.T, idx *catalog.Index, opts ...ResolverOption) *testResolver {
	t.Helper()

	tr := &testResolver{
		store:    NewMemoryStore(),
		warnings: &tu.WarningRecorder{},
	}
	base := []ResolverOption{
		WithTranslator(tu.EchoTranslator{}),
		WithNotifier(tr.warnings),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithViewTokens(NewFixedGenerator("view-1")),
	}
	tr.Resolver = New(idx, tr.store, append(base, opts...)...)
	tr.OnVariationChanged(func(ev VariationChanged) {
		tr.changed = append(tr.changed, ev)
	})
	return tr
}

func initialized(t *testing.T, idx *catalog.Index, initial catalog.VariationID, opts ...ResolverOption) *testResolver {
	t.Helper()
	tr := newTestResolver(t, idx, opts...)
	_, err := tr.Initialize(context.Background(), initial)
	require.NoError(t, err)
	return tr
}

// paintWithOrphanUnit is PaintIndex plus a unit no variation uses.
func paintWithOrphanUnit() *catalog.Index {
	p := tu.PaintIndex()
	units := append([]catalog.Unit{}, p.Units()...)
	units = append(units, catalog.Unit{ID: 9, Name: "orphan"})
	return catalog.MustIndex("paint", p.Attributes(), units, p.Variations())
}

func TestResolver_Initialize(t *testing.T) {
	tr := newTestResolver(t, tu.PaintIndex())

	out, err := tr.Initialize(context.Background(), tu.V2)
	require.NoError(t, err)

	assert.Equal(t, tu.V2, out.Variation.ID)
	assert.True(t, out.Resolved)
	assert.False(t, out.Repaired)
	assert.Equal(t, catalog.Selection{tu.AttrColor: tu.Blue}, tr.store.SelectedAttributes())
	assert.Equal(t, tu.UnitA, tr.store.SelectedUnit())
	assert.Equal(t, tu.V2, tr.store.ResolvedVariation())
	assert.True(t, tr.store.IsVariationSelected())

	require.Len(t, tr.changed, 1)
	assert.Equal(t, VariationChanged{
		Seq:         1,
		View:        "view-1",
		VariationID: tu.V2,
		UnitID:      tu.UnitA,
		Attributes:  []catalog.AttributeAssignment{{AttributeID: tu.AttrColor, ValueID: tu.Blue}},
		Documents:   []catalog.Document{{Type: "image", Path: "/img/blue.png"}},
	}, tr.changed[0])
}

func TestResolver_Initialize_DefaultsToFirstVariation(t *testing.T) {
	tr := newTestResolver(t, tu.ShirtIndex())

	out, err := tr.Initialize(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, catalog.VariationID(201), out.Variation.ID)
}

func TestResolver_Initialize_Errors(t *testing.T) {
	t.Run("unknown variation", func(t *testing.T) {
		tr := newTestResolver(t, tu.PaintIndex())
		_, err := tr.Initialize(context.Background(), 999)
		assert.True(t, IsInvalidTarget(err))
		assert.Empty(t, tr.changed)
	})

	t.Run("empty index", func(t *testing.T) {
		empty := catalog.MustIndex("empty", nil, nil, nil)
		tr := newTestResolver(t, empty)
		_, err := tr.Initialize(context.Background(), 0)
		assert.True(t, IsInconsistentIndex(err))
	})
}

func TestResolver_SelectAttribute_DirectMatch(t *testing.T) {
	tr := initialized(t, tu.PaintIndex(), tu.V1)

	out, err := tr.SelectAttribute(context.Background(), tu.AttrColor, tu.Blue)
	require.NoError(t, err)

	assert.Equal(t, tu.V2, out.Variation.ID)
	assert.False(t, out.Repaired)
	assert.Empty(t, out.Notices)
	assert.Empty(t, out.Warning)
	assert.Empty(t, tr.warnings.Warnings())
	assert.Equal(t, tu.V2, tr.store.ResolvedVariation())
	assert.Len(t, tr.changed, 2)
}

func TestResolver_SelectUnit_RepairsToEmptyOption(t *testing.T) {
	tr := initialized(t, tu.PaintIndex(), tu.V1)

	out, err := tr.SelectUnit(context.Background(), tu.UnitB)
	require.NoError(t, err)

	assert.Equal(t, tu.V3, out.Variation.ID)
	assert.True(t, out.Repaired)
	assert.True(t, out.Resolved)
	assert.Equal(t, []string{"singleItemNotAvailable(Color)"}, out.Notices)
	assert.Equal(t, "singleItemNotAvailable(Color)", out.Warning)
	assert.Equal(t, []string{"singleItemNotAvailable(Color)"}, tr.warnings.Warnings())

	assert.Equal(t, catalog.Selection{tu.AttrColor: catalog.NoValue}, tr.store.SelectedAttributes())
	assert.Equal(t, tu.UnitB, tr.store.SelectedUnit())
	assert.Equal(t, tu.V3, tr.store.ResolvedVariation())

	current, ok := tr.Current()
	require.True(t, ok)
	assert.Equal(t, tu.V3, current.ID)
}

func TestResolver_SelectAttribute_RepairSwitchesUnit(t *testing.T) {
	tr := initialized(t, tu.PaintIndex(), tu.V3)

	out, err := tr.SelectAttribute(context.Background(), tu.AttrColor, tu.Red)
	require.NoError(t, err)

	assert.Equal(t, tu.V1, out.Variation.ID)
	assert.Equal(t, []string{"singleItemNotAvailable(singleItemContent)"}, out.Notices)
	assert.Equal(t, tu.UnitA, tr.store.SelectedUnit())
	assert.Equal(t, catalog.Selection{tu.AttrColor: tu.Red}, tr.store.SelectedAttributes())
}

func TestResolver_RepairSwitchesUnitOnly(t *testing.T) {
	tr := initialized(t, tu.ShirtIndex(), 204) // Blue/L pack

	out, err := tr.SelectAttribute(context.Background(), tu.AttrColor, tu.Red)
	require.NoError(t, err)

	// Qualified: 201 Red/M single, 202 Red/L single. 202 is closer.
	assert.Equal(t, catalog.VariationID(202), out.Variation.ID)
	assert.Equal(t, []string{"singleItemNotAvailable(singleItemContent)"}, out.Notices)
	assert.Equal(t, tu.UnitSingle, tr.store.SelectedUnit())
}

func TestResolver_WarningJoinsNotices(t *testing.T) {
	idx := catalog.MustIndex("lamp",
		[]catalog.AttributeDefinition{
			{ID: 1, Name: "Color", Values: []catalog.AttributeValue{{ID: 11, Name: "Red"}}},
			{ID: 2, Name: "Size", Values: []catalog.AttributeValue{{ID: 21, Name: "S"}}},
		},
		[]catalog.Unit{{ID: 1, Name: "Piece"}, {ID: 2, Name: "Set"}},
		[]catalog.VariationRecord{
			{ID: 1, UnitID: 1, Attributes: []catalog.AttributeAssignment{{AttributeID: 1, ValueID: 11}, {AttributeID: 2, ValueID: 21}}},
			{ID: 2, UnitID: 2},
		},
	)
	tr := initialized(t, idx, 1)

	out, err := tr.SelectUnit(context.Background(), 2)
	require.NoError(t, err)

	assert.Equal(t, catalog.VariationID(2), out.Variation.ID)
	assert.Equal(t, []string{"singleItemNotAvailable(Color)", "singleItemNotAvailable(Size)"}, out.Notices)
	assert.Equal(t, "singleItemNotAvailable(Color)<br>singleItemNotAvailable(Size)", out.Warning)
	assert.Equal(t, []string{out.Warning}, tr.warnings.Warnings(), "one aggregated warning per repair")
}

func TestResolver_EmptyQualifiedSet_RollsBack(t *testing.T) {
	tr := initialized(t, paintWithOrphanUnit(), tu.V1)

	out, err := tr.SelectUnit(context.Background(), 9)
	require.Error(t, err)

	assert.True(t, IsInconsistentIndex(err))
	assert.Equal(t, Outcome{}, out)
	assert.Equal(t, catalog.Selection{tu.AttrColor: tu.Red}, tr.store.SelectedAttributes())
	assert.Equal(t, tu.UnitA, tr.store.SelectedUnit())
	assert.Equal(t, tu.V1, tr.store.ResolvedVariation())
	assert.Empty(t, tr.warnings.Warnings())
	assert.Len(t, tr.changed, 1, "no commit after the failed change")
}

func TestResolver_UnresolvedRepair(t *testing.T) {
	// Red/L single -> pack: closest is Blue/L, widening Color leaves
	// {Color: none, Size: L} which no pack variation matches strictly.
	t.Run("fails and rolls back by default", func(t *testing.T) {
		tr := initialized(t, tu.ShirtIndex(), 202)

		_, err := tr.SelectUnit(context.Background(), tu.UnitPack)
		require.Error(t, err)

		var re *ResolveError
		require.True(t, errors.As(err, &re))
		assert.Equal(t, ErrCodeInconsistentIndex, re.Code)
		assert.Equal(t, "204", re.Details["closest_variation_id"])
		assert.Equal(t, tu.UnitSingle, tr.store.SelectedUnit())
		assert.Equal(t, catalog.Selection{tu.AttrColor: tu.Red, tu.AttrSize: tu.SizeL}, tr.store.SelectedAttributes())
		assert.Empty(t, tr.warnings.Warnings())
	})

	t.Run("commits widened selection with partial repair", func(t *testing.T) {
		tr := initialized(t, tu.ShirtIndex(), 202, WithPartialRepair())

		out, err := tr.SelectUnit(context.Background(), tu.UnitPack)
		require.NoError(t, err)

		assert.True(t, out.Repaired)
		assert.False(t, out.Resolved)
		assert.Equal(t, []string{"singleItemNotAvailable(Color)"}, out.Notices)
		assert.Equal(t, catalog.Selection{tu.AttrColor: catalog.NoValue, tu.AttrSize: tu.SizeL}, tr.store.SelectedAttributes())
		assert.Equal(t, tu.UnitPack, tr.store.SelectedUnit())
		assert.False(t, tr.store.IsVariationSelected())
		assert.Len(t, tr.changed, 1)

		// Completing the selection resolves.
		out, err = tr.SelectAttribute(context.Background(), tu.AttrColor, tu.Blue)
		require.NoError(t, err)
		assert.Equal(t, catalog.VariationID(204), out.Variation.ID)
		assert.False(t, out.Repaired)
		assert.True(t, tr.store.IsVariationSelected())
	})
}

func TestResolver_InvalidTargets(t *testing.T) {
	tests := []struct {
		name string
		call func(r *Resolver) error
	}{
		{"unknown attribute", func(r *Resolver) error {
			_, err := r.SelectAttribute(context.Background(), 77, tu.Red)
			return err
		}},
		{"unknown value", func(r *Resolver) error {
			_, err := r.SelectAttribute(context.Background(), tu.AttrColor, 99)
			return err
		}},
		{"value of another attribute", func(r *Resolver) error {
			_, err := r.SelectAttribute(context.Background(), tu.AttrColor, tu.SizeM)
			return err
		}},
		{"unknown unit", func(r *Resolver) error {
			_, err := r.SelectUnit(context.Background(), 42)
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := initialized(t, tu.PaintIndex(), tu.V1)

			err := tt.call(tr.Resolver)

			require.Error(t, err)
			assert.True(t, IsInvalidTarget(err))
			assert.Equal(t, catalog.Selection{tu.AttrColor: tu.Red}, tr.store.SelectedAttributes())
			assert.Equal(t, tu.UnitA, tr.store.SelectedUnit())
			assert.Len(t, tr.changed, 1)
		})
	}
}

func TestResolver_ClearAttributeToEmptyOption(t *testing.T) {
	// A single-attribute index with an empty option in the same unit.
	idx := catalog.MustIndex("bulb",
		[]catalog.AttributeDefinition{{ID: 1, Name: "Color", Values: []catalog.AttributeValue{{ID: 11, Name: "Warm"}}}},
		[]catalog.Unit{{ID: 1, Name: "Piece"}},
		[]catalog.VariationRecord{
			{ID: 1, UnitID: 1, Attributes: []catalog.AttributeAssignment{{AttributeID: 1, ValueID: 11}}},
			{ID: 2, UnitID: 1},
		},
	)
	tr := initialized(t, idx, 1)

	out, err := tr.SelectAttribute(context.Background(), 1, catalog.NoValue)
	require.NoError(t, err)
	assert.Equal(t, catalog.VariationID(2), out.Variation.ID)
	assert.False(t, out.Repaired)
}

func TestResolver_Probes(t *testing.T) {
	tr := initialized(t, tu.ShirtIndex(), 202) // Red/L single

	tests := []struct {
		name string
		got  bool
		want bool
	}{
		{"current value", tr.IsAttributeSelectionValid(tu.AttrColor, tu.Red), true},
		{"blue has no L in single", tr.IsAttributeSelectionValid(tu.AttrColor, tu.Blue), false},
		{"size M exists", tr.IsAttributeSelectionValid(tu.AttrSize, tu.SizeM), true},
		{"clearing color", tr.IsAttributeSelectionValid(tu.AttrColor, catalog.NoValue), true},
		{"unknown attribute", tr.IsAttributeSelectionValid(77, tu.Red), false},
		{"unknown value", tr.IsAttributeSelectionValid(tu.AttrColor, 99), false},
		{"current unit", tr.IsUnitSelectionValid(tu.UnitSingle), true},
		{"pack has no Red/L", tr.IsUnitSelectionValid(tu.UnitPack), false},
		{"unknown unit", tr.IsUnitSelectionValid(42), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}

	// Probes never touch the committed state.
	assert.Equal(t, catalog.Selection{tu.AttrColor: tu.Red, tu.AttrSize: tu.SizeL}, tr.store.SelectedAttributes())
	assert.Equal(t, tu.UnitSingle, tr.store.SelectedUnit())
	assert.Len(t, tr.changed, 1)
}

func TestResolver_Probes_EmptyIndex(t *testing.T) {
	empty := catalog.MustIndex("empty",
		[]catalog.AttributeDefinition{{ID: 1, Name: "Color", Values: []catalog.AttributeValue{{ID: 11, Name: "Red"}}}},
		[]catalog.Unit{{ID: 1, Name: "Piece"}},
		nil,
	)
	tr := newTestResolver(t, empty)

	assert.False(t, tr.IsAttributeSelectionValid(1, 11))
	assert.False(t, tr.IsUnitSelectionValid(1))
}

func TestResolver_SelectionIsNormalized(t *testing.T) {
	tr := initialized(t, tu.PaintIndex(), tu.V1)

	// A foreign key in the store never reaches matching or commits.
	tr.store.SetSelectedAttributes(catalog.Selection{tu.AttrColor: tu.Red, 77: 5})

	sel, unit := tr.Selection()
	assert.Equal(t, catalog.Selection{tu.AttrColor: tu.Red}, sel)
	assert.Equal(t, tu.UnitA, unit)

	current, ok := tr.Current()
	require.True(t, ok)
	assert.Equal(t, tu.V1, current.ID)
}

func TestResolver_CacheReusedAcrossProbes(t *testing.T) {
	tr := initialized(t, tu.ShirtIndex(), 201)

	tr.IsUnitSelectionValid(tu.UnitPack)
	misses := tr.CacheStats().Misses
	tr.IsUnitSelectionValid(tu.UnitPack)

	stats := tr.CacheStats()
	assert.Equal(t, misses, stats.Misses)
	assert.GreaterOrEqual(t, stats.Hits, 1)
}

func TestResolver_ReplaceIndex(t *testing.T) {
	tr := initialized(t, tu.PaintIndex(), tu.V1)
	before := tr.CacheStats().Generation

	out, err := tr.ReplaceIndex(context.Background(), tu.ShirtIndex(), 203)
	require.NoError(t, err)

	assert.Equal(t, catalog.VariationID(203), out.Variation.ID)
	assert.NotEqual(t, before, tr.CacheStats().Generation)
	assert.Equal(t, "shirt", tr.Index().ProductID())
}

func TestResolver_ReplaceIndex_FailureKeepsState(t *testing.T) {
	empty := catalog.MustIndex("empty",
		[]catalog.AttributeDefinition{{ID: 1, Name: "Color", Values: []catalog.AttributeValue{{ID: 11, Name: "Red"}}}},
		[]catalog.Unit{{ID: 1, Name: "Piece"}},
		nil,
	)

	tests := []struct {
		name    string
		index   *catalog.Index
		initial catalog.VariationID
		code    ResolveErrorCode
	}{
		{"unknown initial variation", tu.ShirtIndex(), 999, ErrCodeInvalidTarget},
		{"index without variations", empty, 0, ErrCodeInconsistentIndex},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := initialized(t, tu.PaintIndex(), tu.V1)
			generation := tr.CacheStats().Generation

			_, err := tr.ReplaceIndex(context.Background(), tt.index, tt.initial)
			require.Error(t, err)
			assert.Equal(t, tt.code, ErrorCode(err))

			assert.Equal(t, "paint", tr.Index().ProductID())
			assert.Equal(t, generation, tr.CacheStats().Generation)
			sel, unit := tr.Selection()
			assert.Equal(t, catalog.Selection{tu.AttrColor: tu.Red}, sel)
			assert.Equal(t, tu.UnitA, unit)
			assert.Equal(t, tu.V1, tr.store.ResolvedVariation())

			current, ok := tr.Current()
			require.True(t, ok)
			assert.Equal(t, tu.V1, current.ID)
			assert.Len(t, tr.changed, 1)
		})
	}
}

func TestResolver_ObserverCannotModifyIndex(t *testing.T) {
	idx := tu.PaintIndex()
	fingerprint := idx.MustFingerprint()

	tr := newTestResolver(t, idx)
	tr.OnVariationChanged(func(ev VariationChanged) {
		for i := range ev.Attributes {
			ev.Attributes[i].ValueID = tu.Blue
		}
		for i := range ev.Documents {
			ev.Documents[i].Path = "/img/changed.png"
		}
	})

	out, err := tr.Initialize(context.Background(), tu.V1)
	require.NoError(t, err)
	out.Variation.Attributes[0].ValueID = tu.Blue

	v1, _ := idx.Variation(tu.V1)
	assert.Equal(t, tu.Red, v1.Attributes[0].ValueID)
	assert.Equal(t, fingerprint, idx.MustFingerprint())

	current, ok := tr.Current()
	require.True(t, ok)
	assert.Equal(t, tu.Red, current.Attributes[0].ValueID)

	out, err = tr.SelectAttribute(context.Background(), tu.AttrColor, tu.Blue)
	require.NoError(t, err)
	assert.Equal(t, tu.V2, out.Variation.ID)
	assert.False(t, out.Repaired)

	v2, _ := idx.Variation(tu.V2)
	assert.Equal(t, "/img/blue.png", v2.Documents[0].Path)
}

func TestResolver_ClearedAttributeProbeCanStillFail(t *testing.T) {
	// At Red/L single, clearing Color is a valid probe because Red/L still
	// matches non-strictly. The change itself only qualifies variations
	// without a Color (205, pack, Size=M), and widening toward it leaves
	// the empty option in pack, which 205 does not match.
	tr := initialized(t, tu.ShirtIndex(), 202)

	assert.True(t, tr.IsAttributeSelectionValid(tu.AttrColor, catalog.NoValue))

	_, err := tr.SelectAttribute(context.Background(), tu.AttrColor, catalog.NoValue)
	require.Error(t, err)
	assert.True(t, IsInconsistentIndex(err))

	assert.Equal(t, catalog.Selection{tu.AttrColor: tu.Red, tu.AttrSize: tu.SizeL}, tr.store.SelectedAttributes())
	assert.Equal(t, tu.UnitSingle, tr.store.SelectedUnit())
	assert.Equal(t, catalog.VariationID(202), tr.store.ResolvedVariation())
}

func TestResolver_Drain_DeliversLatestDetail(t *testing.T) {
	idx := tu.PaintIndex()
	tr := initialized(t, idx, tu.V1, WithDetailLoader(IndexLoader{Index: idx}))

	var loaded []VariationLoaded
	tr.OnVariationLoaded(func(ev VariationLoaded) {
		loaded = append(loaded, ev)
	})

	_, err := tr.SelectAttribute(context.Background(), tu.AttrColor, tu.Blue)
	require.NoError(t, err)

	tr.Drain()

	// The load for V1 (seq 1) is stale once V2 (seq 2) is committed.
	require.Len(t, loaded, 1)
	assert.Equal(t, int64(2), loaded[0].Seq)
	assert.Equal(t, "view-1", loaded[0].View)
	assert.Equal(t, tu.V2, loaded[0].Detail.VariationID)
	assert.Equal(t, "1 l", loaded[0].Detail.Properties["unit"])
	assert.Equal(t, 0, tr.Pending())
}

type failingLoader struct{}

func (failingLoader) LoadVariation(context.Context, catalog.VariationID) (VariationDetail, error) {
	return VariationDetail{}, errors.New("backend unavailable")
}

func TestResolver_LoadFailureIsNotDelivered(t *testing.T) {
	tr := initialized(t, tu.PaintIndex(), tu.V1, WithDetailLoader(failingLoader{}))

	called := false
	tr.OnVariationLoaded(func(VariationLoaded) { called = true })

	tr.Drain()
	assert.False(t, called)
	assert.Equal(t, tu.V1, tr.store.ResolvedVariation())
}

func TestResolver_Run(t *testing.T) {
	idx := tu.PaintIndex()
	tr := newTestResolver(t, idx, WithDetailLoader(IndexLoader{Index: idx}))

	got := make(chan VariationLoaded, 1)
	tr.OnVariationLoaded(func(ev VariationLoaded) { got <- ev })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	var runErr error
	go func() {
		defer wg.Done()
		runErr = tr.Run(ctx)
	}()

	_, err := tr.Initialize(ctx, tu.V3)
	require.NoError(t, err)

	select {
	case ev := <-got:
		assert.Equal(t, tu.V3, ev.Detail.VariationID)
	case <-time.After(2 * time.Second):
		t.Fatal("detail was not delivered")
	}

	tr.Stop()
	wg.Wait()
	assert.NoError(t, runErr)
}

func TestResolver_Run_ContextCancelled(t *testing.T) {
	tr := newTestResolver(t, tu.PaintIndex())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tr.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolver_DefaultsWithoutOptions(t *testing.T) {
	r := New(tu.PaintIndex(), NewMemoryStore(), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	assert.Len(t, r.View(), 36, "default view token is a UUID")

	_, err := r.Initialize(context.Background(), tu.V1)
	require.NoError(t, err)

	out, err := r.SelectUnit(context.Background(), tu.UnitB)
	require.NoError(t, err)
	assert.Equal(t, []string{KeySingleItemNotAvailable + ": Color"}, out.Notices)
}
