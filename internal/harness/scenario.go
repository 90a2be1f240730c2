package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Product is the path to the CUE product definition.
	// Relative paths are resolved against the scenario file's directory.
	Product string `yaml:"product"`

	// ProductID selects a product when the file defines more than one.
	ProductID string `yaml:"product_id,omitempty"`

	// InitialVariation establishes the default selection.
	// Zero selects the first variation of the index.
	InitialVariation int64 `yaml:"initial_variation,omitempty"`

	// ViewToken is an optional fixed view token.
	// If empty, defaults to "test-view-default".
	ViewToken string `yaml:"view_token,omitempty"`

	// PartialRepair commits widened selections that do not resolve
	// instead of failing the change.
	PartialRepair bool `yaml:"partial_repair,omitempty"`

	// Locale of the message catalog used for notices. Default: English.
	Locale string `yaml:"locale,omitempty"`

	// Steps are executed in order against one resolver.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and final state. Optional.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// AttributeTarget names an attribute value. Value 0 clears the attribute.
type AttributeTarget struct {
	Attribute int64 `yaml:"attribute"`
	Value     int64 `yaml:"value"`
}

// Step is one selection change or probe. Exactly one action field is set.
type Step struct {
	SelectAttribute *AttributeTarget `yaml:"select_attribute,omitempty"`
	SelectUnit      *int64           `yaml:"select_unit,omitempty"`
	ProbeAttribute  *AttributeTarget `yaml:"probe_attribute,omitempty"`
	ProbeUnit       *int64           `yaml:"probe_unit,omitempty"`

	// Expect specifies the expected outcome.
	// If nil, a selection step only has to succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// Step kinds, as recorded in the trace.
const (
	StepSelectAttribute = "select_attribute"
	StepSelectUnit      = "select_unit"
	StepProbeAttribute  = "probe_attribute"
	StepProbeUnit       = "probe_unit"
)

// Kind returns the step's action name, or "" if none or several are set.
func (s Step) Kind() string {
	var kinds []string
	if s.SelectAttribute != nil {
		kinds = append(kinds, StepSelectAttribute)
	}
	if s.SelectUnit != nil {
		kinds = append(kinds, StepSelectUnit)
	}
	if s.ProbeAttribute != nil {
		kinds = append(kinds, StepProbeAttribute)
	}
	if s.ProbeUnit != nil {
		kinds = append(kinds, StepProbeUnit)
	}
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// IsProbe reports whether the step is a validity probe.
func (s Step) IsProbe() bool {
	k := s.Kind()
	return k == StepProbeAttribute || k == StepProbeUnit
}

// ExpectClause specifies expected step behavior.
// Unset fields are not checked.
type ExpectClause struct {
	// Variation is the expected resolved variation id.
	Variation *int64 `yaml:"variation,omitempty"`

	// Resolved is false for a partial repair.
	Resolved *bool `yaml:"resolved,omitempty"`

	Repaired *bool `yaml:"repaired,omitempty"`

	// Notices are compared in order. An empty list expects no notices.
	Notices []string `yaml:"notices,omitempty"`

	// Error is the expected resolver error code, e.g. INCONSISTENT_INDEX.
	Error string `yaml:"error,omitempty"`

	// Valid is the expected probe result.
	Valid *bool `yaml:"valid,omitempty"`

	// Selection is checked against the store after the step
	// (attribute id → value id, 0 for cleared). Subset match.
	Selection map[int64]int64 `yaml:"selection,omitempty"`

	// Unit is checked against the store after the step.
	Unit *int64 `yaml:"unit,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "warning_contains": some warning contains Text
	// - "variation_order": Variations were committed in this order
	// - "commit_count": Count commits (of Variation, if set)
	// - "final_state": store holds Selection and Unit
	Type string `yaml:"type"`

	Text       string          `yaml:"text,omitempty"`
	Variations []int64         `yaml:"variations,omitempty"`
	Variation  int64           `yaml:"variation,omitempty"`
	Count      int             `yaml:"count,omitempty"`
	Selection  map[int64]int64 `yaml:"selection,omitempty"`
	Unit       int64           `yaml:"unit,omitempty"`

	// Selected is the expected "is variation selected" flag.
	Selected *bool `yaml:"selected,omitempty"`
}

// Assertion type constants.
const (
	AssertWarningContains = "warning_contains"
	AssertVariationOrder  = "variation_order"
	AssertCommitCount     = "commit_count"
	AssertFinalState      = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// The product path is resolved relative to the scenario file.
//
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the product path relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Product != "" && !filepath.IsAbs(scenario.Product) && basePath != "" {
		scenario.Product = filepath.Join(basePath, scenario.Product)
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if _, err := os.Stat(scenario.Product); err != nil {
		return nil, fmt.Errorf("invalid scenario: product file not found: %s", scenario.Product)
	}

	return scenario, nil
}

// ParseScenario decodes a scenario without touching the file system.
// Unknown fields are rejected.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Product == "" {
		return fmt.Errorf("product is required")
	}
	if s.InitialVariation < 0 {
		return fmt.Errorf("initial_variation must be non-negative")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, step Step) error {
	if step.Kind() == "" {
		return fmt.Errorf("steps[%d]: exactly one of select_attribute, select_unit, probe_attribute, probe_unit is required", i)
	}

	e := step.Expect
	if step.IsProbe() {
		if e == nil || e.Valid == nil {
			return fmt.Errorf("steps[%d]: probes require expect.valid", i)
		}
		if e.Variation != nil || e.Repaired != nil || e.Resolved != nil || e.Notices != nil || e.Error != "" {
			return fmt.Errorf("steps[%d]: probes only support expect.valid, selection and unit", i)
		}
		return nil
	}

	if e != nil && e.Valid != nil {
		return fmt.Errorf("steps[%d]: expect.valid is only supported on probes", i)
	}
	if e != nil && e.Error != "" && (e.Variation != nil || e.Repaired != nil || e.Resolved != nil || e.Notices != nil) {
		return fmt.Errorf("steps[%d]: expect.error excludes variation, resolved, repaired and notices", i)
	}
	return nil
}

func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertWarningContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for warning_contains", index)
		}
	case AssertVariationOrder:
		if len(a.Variations) == 0 {
			return fmt.Errorf("assertions[%d]: variations list is required for variation_order", index)
		}
	case AssertCommitCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for commit_count", index)
		}
	case AssertFinalState:
		if a.Selection == nil && a.Unit == 0 && a.Selected == nil {
			return fmt.Errorf("assertions[%d]: final_state requires selection, unit or selected", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
