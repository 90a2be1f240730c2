package engine

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ViewTokenGenerator produces the token that identifies one product view.
// Every event a Resolver emits carries its token, which lets a page with
// several selectors route events to the right widget.
type ViewTokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 view tokens.
//
// Safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
// Panics if UUID generation fails.
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined view tokens for testing.
// Golden traces depend on these tokens being stable.
type FixedGenerator struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewFixedGenerator creates a generator that returns tokens in order.
//
//	gen := NewFixedGenerator("view-1", "view-2")
//	gen.Generate() // "view-1"
func NewFixedGenerator(tokens ...string) *FixedGenerator {
	return &FixedGenerator{tokens: tokens}
}

// Generate returns the next token. Panics when the tokens run out.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.tokens) {
		panic(fmt.Sprintf("FixedGenerator: exhausted after %d tokens", len(g.tokens)))
	}
	token := g.tokens[g.idx]
	g.idx++
	return token
}

// Reset rewinds the generator to its first token.
func (g *FixedGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.idx = 0
}
