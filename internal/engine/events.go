package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/varsel/internal/catalog"
)

// VariationChanged is emitted synchronously when a selection resolves.
type VariationChanged struct {
	Seq         int64
	View        string
	VariationID catalog.VariationID
	UnitID      catalog.UnitID
	Attributes  []catalog.AttributeAssignment
	Documents   []catalog.Document
}

// VariationDetail is the full data of one variation, as returned by a
// DetailLoader.
type VariationDetail struct {
	VariationID catalog.VariationID
	UnitID      catalog.UnitID
	Attributes  []catalog.AttributeAssignment
	Documents   []catalog.Document
	Properties  map[string]string
}

// VariationLoaded is delivered by Run once a detail load completes.
// Seq matches the VariationChanged event that scheduled the load.
type VariationLoaded struct {
	Seq    int64
	View   string
	Detail VariationDetail
}

// Translator renders a localized message template.
type Translator interface {
	Translate(key string, params map[string]string) string
}

// Notifier shows a user-visible warning.
type Notifier interface {
	Warn(message string)
}

// DetailLoader fetches the full data of a resolved variation.
// Failures are the loader's concern: the resolver logs them and never retries.
type DetailLoader interface {
	LoadVariation(ctx context.Context, id catalog.VariationID) (VariationDetail, error)
}

// IndexLoader serves variation details straight from the index.
type IndexLoader struct {
	Index *catalog.Index
}

// LoadVariation implements DetailLoader.
func (l IndexLoader) LoadVariation(ctx context.Context, id catalog.VariationID) (VariationDetail, error) {
	if err := ctx.Err(); err != nil {
		return VariationDetail{}, err
	}
	v, ok := l.Index.Variation(id)
	if !ok {
		return VariationDetail{}, fmt.Errorf("variation %d not found in product %s", id, l.Index.ProductID())
	}
	unitName := ""
	if u, ok := l.Index.Unit(v.UnitID); ok {
		unitName = u.Name
	}
	return VariationDetail{
		VariationID: v.ID,
		UnitID:      v.UnitID,
		Attributes:  v.Attributes,
		Documents:   v.Documents,
		Properties: map[string]string{
			"product": l.Index.ProductID(),
			"unit":    unitName,
		},
	}, nil
}

// keyTranslator renders the key followed by its parameters.
// Used when no Translator is configured.
type keyTranslator struct{}

func (keyTranslator) Translate(key string, params map[string]string) string {
	if name, ok := params["name"]; ok {
		return key + ": " + name
	}
	return key
}

// logNotifier writes warnings to the resolver's logger.
type logNotifier struct {
	logger *slog.Logger
}

func (n logNotifier) Warn(message string) {
	n.logger.Warn("selection repaired", "warning", message)
}
