package pipeline

import (
	"context"
	"time"
)

// Stages are the external subsystem operations the coordinator triggers.
//
// The coordinator never inspects what a stage did, only whether it returned
// an error. Each method corresponds to the flag of the same name.
type Stages interface {
	InitializeLightSources(ctx context.Context) error
	RefreshEdges(ctx context.Context) error
	InitializeVisionModes(ctx context.Context) error
	InitializeVision(ctx context.Context) error
	InitializeSounds(ctx context.Context) error
	RefreshLighting(ctx context.Context) error
	RefreshVision(ctx context.Context) error
	RefreshPrimary(ctx context.Context) error
	RefreshLightSources(ctx context.Context) error
	RefreshVisionSources(ctx context.Context) error
	RefreshOcclusionStates(ctx context.Context) error
	RefreshOcclusionMask(ctx context.Context) error

	// RefreshSounds refreshes ambient sound; fade is zero for an immediate
	// change.
	RefreshSounds(ctx context.Context, fade time.Duration) error
}

// StageCall is one recorded stage invocation.
type StageCall struct {
	Stage string        `json:"stage" yaml:"stage"`
	Fade  time.Duration `json:"fade,omitempty" yaml:"fade,omitempty"`
}

// Recorder is a Stages implementation that records every call in order.
//
// Used by the harness, the CLI run command and tests. FailOn makes the named
// stage return the given error instead of recording success. OnCall, when
// set, observes every call as it is recorded.
type Recorder struct {
	Calls  []StageCall
	FailOn map[string]error
	OnCall func(StageCall)
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Stages returns the recorded stage names in call order.
func (r *Recorder) Stages() []string {
	out := make([]string, len(r.Calls))
	for i, c := range r.Calls {
		out[i] = c.Stage
	}
	return out
}

// Count returns how often stage was invoked.
func (r *Recorder) Count(stage string) int {
	n := 0
	for _, c := range r.Calls {
		if c.Stage == stage {
			n++
		}
	}
	return n
}

// Reset forgets every recorded call.
func (r *Recorder) Reset() {
	r.Calls = nil
}

func (r *Recorder) record(stage string, fade time.Duration) error {
	call := StageCall{Stage: stage, Fade: fade}
	r.Calls = append(r.Calls, call)
	if r.OnCall != nil {
		r.OnCall(call)
	}
	if err, ok := r.FailOn[stage]; ok {
		return err
	}
	return nil
}

func (r *Recorder) InitializeLightSources(context.Context) error {
	return r.record(FlagInitializeLightSources, 0)
}

func (r *Recorder) RefreshEdges(context.Context) error { return r.record(FlagRefreshEdges, 0) }

func (r *Recorder) InitializeVisionModes(context.Context) error {
	return r.record(FlagInitializeVisionModes, 0)
}

func (r *Recorder) InitializeVision(context.Context) error { return r.record(FlagInitializeVision, 0) }
func (r *Recorder) InitializeSounds(context.Context) error { return r.record(FlagInitializeSounds, 0) }
func (r *Recorder) RefreshLighting(context.Context) error  { return r.record(FlagRefreshLighting, 0) }
func (r *Recorder) RefreshVision(context.Context) error    { return r.record(FlagRefreshVision, 0) }
func (r *Recorder) RefreshPrimary(context.Context) error   { return r.record(FlagRefreshPrimary, 0) }

func (r *Recorder) RefreshLightSources(context.Context) error {
	return r.record(FlagRefreshLightSources, 0)
}

func (r *Recorder) RefreshVisionSources(context.Context) error {
	return r.record(FlagRefreshVisionSources, 0)
}

func (r *Recorder) RefreshOcclusionStates(context.Context) error {
	return r.record(FlagRefreshOcclusionStates, 0)
}

func (r *Recorder) RefreshOcclusionMask(context.Context) error {
	return r.record(FlagRefreshOcclusionMask, 0)
}

func (r *Recorder) RefreshSounds(_ context.Context, fade time.Duration) error {
	return r.record(FlagRefreshSounds, fade)
}

var _ Stages = (*Recorder)(nil)
