package harness

import (
	"github.com/roach88/flagsweep/internal/ir"
	"github.com/roach88/flagsweep/internal/pipeline"
)

// Trace event types.
const (
	EventStage = "stage"
	EventSweep = "sweep"
)

// TraceEvent is one entry of a scenario trace: either a perception stage
// call or a journaled owner flush. Events appear in the order they
// happened, so the stages a perception apply ran precede its sweep event.
type TraceEvent struct {
	Type string `json:"type"`
	Tick int64  `json:"tick"`

	// Stage events.
	Stage  string `json:"stage,omitempty"`
	FadeMS int64  `json:"fade_ms,omitempty"`

	// Sweep events.
	Seq      int64    `json:"seq,omitempty"`
	Priority string   `json:"priority,omitempty"`
	Owner    string   `json:"owner,omitempty"`
	Flags    []string `json:"flags,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace holds stage calls and sweeps in execution order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds failed expectations. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Pending lists the owners still pending at the end, in sweep order.
	Pending []string `json:"pending"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Errors:  []string{},
		Pending: []string{},
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStageTrace appends a perception stage call.
func (r *Result) AddStageTrace(tick int64, call pipeline.StageCall) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:   EventStage,
		Tick:   tick,
		Stage:  call.Stage,
		FadeMS: call.Fade.Milliseconds(),
	})
}

// AddSweepTrace appends a journaled owner flush.
func (r *Result) AddSweepTrace(rec ir.SweepRecord) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:     EventSweep,
		Tick:     rec.Tick,
		Seq:      rec.Seq,
		Priority: rec.Priority.String(),
		Owner:    rec.OwnerID,
		Flags:    append([]string{}, rec.Flags...),
	})
}

// Stages returns the stage names of the trace, optionally limited to one
// tick.
func (r *Result) Stages(tick *int64) []string {
	var out []string
	for _, ev := range r.Trace {
		if ev.Type != EventStage || (tick != nil && ev.Tick != *tick) {
			continue
		}
		out = append(out, ev.Stage)
	}
	return out
}
