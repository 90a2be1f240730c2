package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// DomainIndex separates index fingerprints from any other hash of the same
// bytes. The version suffix allows migrating the canonical form.
const DomainIndex = "varsel/index/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint returns a content hash of the index.
// Two indexes with equal catalogs and variations in the same order have the
// same fingerprint; any change to either yields a new one.
func (idx *Index) Fingerprint() (string, error) {
	canonical, err := MarshalCanonical(idx.canonicalMap())
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hashWithDomain(DomainIndex, canonical), nil
}

// MustFingerprint is like Fingerprint but panics on error.
func (idx *Index) MustFingerprint() string {
	fp, err := idx.Fingerprint()
	if err != nil {
		panic(err)
	}
	return fp
}

func (idx *Index) canonicalMap() map[string]any {
	attrs := make([]any, len(idx.attributes))
	for i, a := range idx.attributes {
		values := make([]any, len(a.Values))
		for j, v := range a.Values {
			values[j] = map[string]any{"id": int64(v.ID), "name": v.Name}
		}
		attrs[i] = map[string]any{"id": int64(a.ID), "name": a.Name, "values": values}
	}

	units := make([]any, len(idx.units))
	for i, u := range idx.units {
		units[i] = map[string]any{"id": int64(u.ID), "name": u.Name}
	}

	vars := make([]any, len(idx.variations))
	for i, v := range idx.variations {
		assigned := make([]any, len(v.Attributes))
		for j, a := range v.Attributes {
			assigned[j] = map[string]any{"attribute": int64(a.AttributeID), "value": int64(a.ValueID)}
		}
		docs := make([]any, len(v.Documents))
		for j, d := range v.Documents {
			docs[j] = map[string]any{"type": d.Type, "path": d.Path}
		}
		vars[i] = map[string]any{
			"id":         int64(v.ID),
			"unit":       int64(v.UnitID),
			"attributes": assigned,
			"documents":  docs,
		}
	}

	return map[string]any{
		"product":    idx.productID,
		"attributes": attrs,
		"units":      units,
		"variations": vars,
	}
}

// SelectionKey renders the canonical cache key of a filter query.
//
// The key is independent of map iteration order, distinguishes strict from
// non-strict queries and renders NoValue as null:
//
//	{"attributes":{"1":10,"2":null},"strict":true,"unit":3}
func SelectionKey(sel Selection, unit UnitID, strict bool) string {
	attrs := make(map[string]any, len(sel))
	for id, v := range sel {
		key := strconv.FormatInt(int64(id), 10)
		if v == NoValue {
			attrs[key] = nil
		} else {
			attrs[key] = int64(v)
		}
	}

	// Only ints, nil, bools and maps reach the encoder; it cannot fail.
	data, err := MarshalCanonical(map[string]any{
		"attributes": attrs,
		"strict":     strict,
		"unit":       int64(unit),
	})
	if err != nil {
		panic(fmt.Sprintf("selection key: %v", err))
	}
	return string(data)
}
