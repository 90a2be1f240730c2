package harness

import (
	"strconv"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/varsel/internal/catalog"
)

// GoldenDir is where golden traces live, relative to the test's package.
const GoldenDir = "testdata/golden"

// TraceSnapshot captures the complete trace for a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	ViewToken    string       `json:"view_token,omitempty"`
	Trace        []TraceEvent `json:"trace"`
	Final        FinalState   `json:"final"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical
// JSON serialization. Zero-valued event fields are omitted.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"type": ev.Type,
			"step": ev.Step,
		}
		putString(m, "action", ev.Action)
		putInt(m, "attribute", ev.Attribute)
		putInt(m, "value", ev.Value)
		putInt(m, "unit", ev.Unit)
		putInt(m, "variation", ev.Variation)
		putInt(m, "seq", ev.Seq)
		if ev.Resolved {
			m["resolved"] = true
		}
		if ev.Repaired {
			m["repaired"] = true
		}
		if len(ev.Notices) > 0 {
			notices := make([]any, len(ev.Notices))
			for j, n := range ev.Notices {
				notices[j] = n
			}
			m["notices"] = notices
		}
		putString(m, "message", ev.Message)
		putString(m, "error", ev.Error)
		if ev.Valid != nil {
			m["valid"] = *ev.Valid
		}
		traceList[i] = m
	}

	selection := make(map[string]any, len(s.Final.Selection))
	for attr, v := range s.Final.Selection {
		selection[strconv.FormatInt(attr, 10)] = v
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
		"final": map[string]any{
			"selection": selection,
			"unit":      s.Final.Unit,
			"variation": s.Final.Variation,
			"selected":  s.Final.Selected,
		},
	}
	if s.ViewToken != "" {
		result["view_token"] = s.ViewToken
	}
	return result
}

// MarshalTrace renders a result as the canonical JSON stored in golden files.
func MarshalTrace(name, viewToken string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: name,
		ViewToken:    viewToken,
		Trace:        result.Trace,
		Final:        result.Final,
	}
	return catalog.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	traceJSON, err := MarshalTrace(scenario.Name, scenario.ViewToken, result)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)

	return result, nil
}

// AssertGolden compares an existing result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(scenarioName, "", result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}

func putString(m map[string]any, key, v string) {
	if v != "" {
		m[key] = v
	}
}

func putInt(m map[string]any, key string, v int64) {
	if v != 0 {
		m[key] = v
	}
}
