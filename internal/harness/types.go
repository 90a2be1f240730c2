package harness

// Trace event types.
const (
	EventInitialize = "initialize"
	EventChanged    = "variation_changed"
	EventLoaded     = "variation_loaded"
	EventWarning    = "warning"
	EventStep       = "step"
)

// TraceEvent is one entry of a scenario trace.
// Fields that do not apply to the event type are left zero.
type TraceEvent struct {
	Type string `json:"type"`

	// Step is the 1-based scenario step; 0 for initialization.
	Step int `json:"step"`

	// Action is the step kind for EventStep.
	Action string `json:"action,omitempty"`

	Attribute int64 `json:"attribute,omitempty"`
	Value     int64 `json:"value,omitempty"`
	Unit      int64 `json:"unit,omitempty"`
	Variation int64 `json:"variation,omitempty"`
	Seq       int64 `json:"seq,omitempty"`

	Resolved bool     `json:"resolved,omitempty"`
	Repaired bool     `json:"repaired,omitempty"`
	Notices  []string `json:"notices,omitempty"`
	Message  string   `json:"message,omitempty"`
	Error    string   `json:"error,omitempty"`
	Valid    *bool    `json:"valid,omitempty"`
}

// FinalState is the selection store after the last step.
type FinalState struct {
	Selection map[int64]int64 `json:"selection"`
	Unit      int64           `json:"unit"`
	Variation int64           `json:"variation"`
	Selected  bool            `json:"selected"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion matched.
	Pass bool `json:"pass"`

	// Trace contains step outcomes and resolver events in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the store state after the last step.
	Final FinalState `json:"final"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an event to the trace.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}

// Commits returns the variation ids of all variation_changed events.
func (r *Result) Commits() []int64 {
	var out []int64
	for _, ev := range r.Trace {
		if ev.Type == EventChanged {
			out = append(out, ev.Variation)
		}
	}
	return out
}

// Warnings returns the messages of all warning events.
func (r *Result) Warnings() []string {
	var out []string
	for _, ev := range r.Trace {
		if ev.Type == EventWarning {
			out = append(out, ev.Message)
		}
	}
	return out
}
