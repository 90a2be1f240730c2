package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/varsel/internal/catalog"
)

// marshalDocuments converts variation documents to canonical JSON TEXT.
func marshalDocuments(docs []catalog.Document) (string, error) {
	items := make([]any, len(docs))
	for i, d := range docs {
		items[i] = map[string]any{"type": d.Type, "path": d.Path}
	}
	data, err := catalog.MarshalCanonical(items)
	if err != nil {
		return "", fmt.Errorf("marshal documents: %w", err)
	}
	return string(data), nil
}

// unmarshalDocuments parses a documents column. An empty list yields nil,
// which is how the compiler represents a variation without documents.
func unmarshalDocuments(data string) ([]catalog.Document, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var docs []catalog.Document
	if err := json.Unmarshal([]byte(data), &docs); err != nil {
		return nil, fmt.Errorf("unmarshal documents: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs, nil
}
