package testutil

// FixedViewGenerator generates the same view token every time.
//
// Unlike engine.FixedGenerator which returns tokens in sequence, this
// generator always returns the same token, so every resolver a scenario
// builds tags its events identically and golden traces stay byte-identical.
type FixedViewGenerator struct {
	token string
}

// NewFixedViewGenerator creates a fixed view token generator.
//
// The token is typically set in the scenario YAML:
//
//	view_token: "test-view-00000000-0000-0000-0000-000000000001"
//
// If token is empty, Generate() returns "test-view-default".
func NewFixedViewGenerator(token string) *FixedViewGenerator {
	if token == "" {
		token = "test-view-default"
	}
	return &FixedViewGenerator{token: token}
}

// Generate returns the fixed view token.
// Implements engine.ViewTokenGenerator.
func (g *FixedViewGenerator) Generate() string {
	return g.token
}
