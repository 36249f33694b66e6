package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/roach88/flagsweep/internal/compiler"
	"github.com/roach88/flagsweep/internal/config"
	"github.com/roach88/flagsweep/internal/engine"
	"github.com/roach88/flagsweep/internal/ir"
	"github.com/roach88/flagsweep/internal/pipeline"
	"github.com/roach88/flagsweep/internal/scene"
	"github.com/roach88/flagsweep/internal/store"
	"github.com/roach88/flagsweep/internal/testutil"
)

// errInjected is returned by a stage armed with fail_stage.
var errInjected = errors.New("injected stage failure")

// Harness executes one scenario against a fresh scene.
//
// It is the scheduler's journal: every flushed owner is written to an
// in-memory SQLite store and appended to the trace.
type Harness struct {
	store    *store.Store
	scene    *scene.Scene
	recorder *pipeline.Recorder
	order    []ir.Priority
	result   *Result
}

var _ engine.Journal = (*Harness)(nil)

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database with a deterministic
// clock and sequential sweep ids, so the same scenario always produces
// the same trace.
//
// Execution flow:
//  1. Apply the inline config over the defaults
//  2. Compile the scenario's schema files
//  3. Build the scene on a recording stage implementation
//  4. Execute steps, checking expect_error and measure expectations
//  5. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	cfg := config.Default()
	if scenario.Config != "" {
		var err error
		if cfg, err = config.Decode(scenario.Config); err != nil {
			return nil, fmt.Errorf("scenario config: %w", err)
		}
	}
	order, err := cfg.Order()
	if err != nil {
		return nil, err
	}

	specs, err := compiler.LoadFiles(scenario.Schemas...)
	if err != nil {
		return nil, fmt.Errorf("failed to load schemas: %w", err)
	}

	st, err := store.Open(store.MemoryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:    st,
		recorder: pipeline.NewRecorder(),
		order:    order,
		result:   NewResult(),
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sc, err := scene.New(h.recorder,
		scene.WithSchedulerOptions(
			engine.WithOrder(order),
			engine.WithJournal(h),
			engine.WithClock(testutil.NewDeterministicClock()),
			engine.WithIDGenerator(testutil.NewSequentialIDGenerator("")),
			engine.WithLogger(logger),
		),
		scene.WithFadeDuration(cfg.Perception.FadeDuration),
		scene.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	h.scene = sc
	h.recorder.OnCall = func(call pipeline.StageCall) {
		h.result.AddStageTrace(sc.Scheduler().Ticks(), call)
	}

	ctx := context.Background()
	for _, spec := range specs {
		if _, err := sc.RegisterSchema(spec); err != nil {
			return nil, err
		}
		if _, err := st.WriteSchema(ctx, spec); err != nil {
			return nil, err
		}
	}

	for i, step := range scenario.Steps {
		err := h.executeStep(ctx, step)
		switch {
		case step.ExpectError != "" && err == nil:
			h.result.AddError(fmt.Sprintf("steps[%d]: expected error containing %q, got none", i, step.ExpectError))
		case step.ExpectError != "" && !strings.Contains(err.Error(), step.ExpectError):
			h.result.AddError(fmt.Sprintf("steps[%d]: expected error containing %q, got %q", i, step.ExpectError, err))
		case step.ExpectError == "" && err != nil:
			return nil, fmt.Errorf("steps[%d] (%s): %w", i, strings.Join(step.actions(), ""), err)
		}
	}

	for _, p := range order {
		h.result.Pending = append(h.result.Pending, sc.Registry().PendingIDs(p)...)
	}

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions, actx) {
		h.result.AddError(msg)
	}

	return h.result, nil
}

// WriteSweep implements engine.Journal.
func (h *Harness) WriteSweep(ctx context.Context, rec ir.SweepRecord) error {
	if err := h.store.WriteSweep(ctx, rec); err != nil {
		return err
	}
	h.result.AddSweepTrace(rec)
	return nil
}

func (h *Harness) executeStep(ctx context.Context, step Step) error {
	sc := h.scene
	switch {
	case step.Activate:
		return sc.Activate(ctx)
	case step.Teardown:
		sc.Teardown()
		return nil
	case step.AddWall != nil:
		_, err := sc.AddWall(step.AddWall.ID, point(step.AddWall.From), point(step.AddWall.To))
		return err
	case step.AddLight != nil:
		_, err := sc.AddLight(step.AddLight.ID, point(step.AddLight.At), step.AddLight.Radius)
		return err
	case step.AddRuler != nil:
		r, err := sc.AddRuler(step.AddRuler.ID)
		if err != nil || len(step.AddRuler.Waypoints) == 0 {
			return err
		}
		return r.SetWaypoints(points(step.AddRuler.Waypoints)...)
	case step.AddGeneric != nil:
		_, err := sc.AddGeneric(step.AddGeneric.ID, step.AddGeneric.Schema)
		return err
	case step.MoveWall != nil:
		w, err := placeable[*scene.Wall](sc, step.MoveWall.ID)
		if err != nil {
			return err
		}
		return w.Move(point(step.MoveWall.From), point(step.MoveWall.To))
	case step.MoveLight != nil:
		l, err := placeable[*scene.Light](sc, step.MoveLight.ID)
		if err != nil {
			return err
		}
		if step.MoveLight.Radius != 0 {
			if err := l.SetRadius(step.MoveLight.Radius); err != nil {
				return err
			}
		}
		return l.MoveTo(point(step.MoveLight.At))
	case step.SetWaypoints != nil:
		r, err := placeable[*scene.Ruler](sc, step.SetWaypoints.ID)
		if err != nil {
			return err
		}
		return r.SetWaypoints(points(step.SetWaypoints.Waypoints)...)
	case step.Measure != nil:
		return h.measure(step.Measure)
	case step.Set != nil:
		o, err := sc.Owner(step.Set.Owner)
		if err != nil {
			return err
		}
		return o.RenderFlags().Set(step.Set.Flags)
	case step.UpdatePerception != nil:
		return sc.UpdatePerception(step.UpdatePerception)
	case step.Remove != "":
		return sc.Remove(step.Remove)
	case step.Tick > 0:
		for i := 0; i < step.Tick; i++ {
			if err := sc.Tick(ctx); err != nil {
				return err
			}
		}
		return nil
	case step.FailStage != "":
		if h.recorder.FailOn == nil {
			h.recorder.FailOn = make(map[string]error)
		}
		h.recorder.FailOn[step.FailStage] = errInjected
		return nil
	case step.Heal:
		h.recorder.FailOn = nil
		return nil
	}
	return fmt.Errorf("no operation")
}

func (h *Harness) measure(m *MeasureStep) error {
	r, err := placeable[*scene.Ruler](h.scene, m.Ruler)
	if err != nil {
		return err
	}
	got, err := r.Measure()
	if err != nil {
		return err
	}
	if m.Expect != nil && math.Abs(got-*m.Expect) > 1e-9 {
		h.result.AddError(fmt.Sprintf("measure %s: expected %g, got %g", m.Ruler, *m.Expect, got))
	}
	return nil
}

// placeable looks up id and checks its concrete kind.
func placeable[T scene.Placeable](sc *scene.Scene, id string) (T, error) {
	var zero T
	p, ok := sc.Placeable(id)
	if !ok {
		return zero, fmt.Errorf("%w: %s", scene.ErrUnknownPlaceable, id)
	}
	t, ok := p.(T)
	if !ok {
		return zero, fmt.Errorf("%s is a %s", id, p.Kind())
	}
	return t, nil
}

func point(xy XY) scene.Point {
	return scene.Point{X: xy[0], Y: xy[1]}
}

func points(xys []XY) []scene.Point {
	out := make([]scene.Point, len(xys))
	for i, xy := range xys {
		out[i] = point(xy)
	}
	return out
}
