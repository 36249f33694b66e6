package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/flagsweep/internal/flags"
)

// OwnerID is the registry id of the perception coordinator.
const OwnerID = "perception"

// DefaultFadeDuration is the sound fade applied when soundFadeDuration is set.
const DefaultFadeDuration = 250 * time.Millisecond

// Coordinator is the perception manager: the flags.Owner for the
// perception priority.
//
// INVARIANTS:
//   - stages run in stageOrder, regardless of the order flags were asserted
//   - each stage runs at most once per ApplyRenderFlags
//   - a stage error aborts the remaining stages of that apply
type Coordinator struct {
	flags  *flags.FlagSet
	stages Stages
	fade   time.Duration
	logger *slog.Logger
}

// Option configures a Coordinator.
type Option func(*options)

type options struct {
	fade       time.Duration
	deprecated *flags.DeprecationLogger
	logger     *slog.Logger
}

// WithFadeDuration sets the fade passed to RefreshSounds when
// soundFadeDuration is active. Default: DefaultFadeDuration.
func WithFadeDuration(d time.Duration) Option {
	return func(o *options) {
		o.fade = d
	}
}

// WithDeprecationLogger shares a deprecation logger with other schemas so a
// legacy flag warns once per scene rather than once per coordinator.
func WithDeprecationLogger(d *flags.DeprecationLogger) Option {
	return func(o *options) {
		o.deprecated = d
	}
}

// WithLogger sets the coordinator logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// NewCoordinator creates a coordinator registering with reg and driving
// stages.
func NewCoordinator(reg flags.Registrar, stages Stages, opts ...Option) (*Coordinator, error) {
	o := options{fade: DefaultFadeDuration, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.fade < 0 {
		return nil, fmt.Errorf("fade duration must not be negative, got %s", o.fade)
	}

	var schemaOpts []flags.SchemaOption
	if o.deprecated != nil {
		schemaOpts = append(schemaOpts, flags.WithDeprecationLogger(o.deprecated))
	}
	schema, err := flags.NewSchema(PerceptionSpec(), schemaOpts...)
	if err != nil {
		return nil, fmt.Errorf("compile perception schema: %w", err)
	}

	c := &Coordinator{
		stages: stages,
		fade:   o.fade,
		logger: o.logger,
	}
	c.flags = flags.NewFlagSet(schema, c, reg)
	return c, nil
}

// OwnerID implements flags.Owner.
func (c *Coordinator) OwnerID() string { return OwnerID }

// RenderFlags implements flags.Owner.
func (c *Coordinator) RenderFlags() *flags.FlagSet { return c.flags }

// Update asserts perception flags. Unknown names are a configuration error
// and leave the coordinator untouched.
func (c *Coordinator) Update(changes map[string]bool) error {
	return c.flags.Set(changes)
}

// Initialize asserts the top-level flags that force a full recomputation.
// Called on scene activation.
func (c *Coordinator) Initialize() error {
	return c.flags.SetFlags(InitializeFlags()...)
}

// stage pairs a trigger flag with the operation it runs.
type stage struct {
	flag string
	run  func(ctx context.Context, c *Coordinator, f map[string]bool) error
}

// stageOrder is a manual topological sort of PerceptionSpec, except that
// vision modes are initialized before vision itself. A stage may assume every
// stage before it has observed this sweep's state.
var stageOrder = []stage{
	{FlagInitializeLightSources, func(ctx context.Context, c *Coordinator, _ map[string]bool) error {
		return c.stages.InitializeLightSources(ctx)
	}},
	{FlagRefreshEdges, func(ctx context.Context, c *Coordinator, _ map[string]bool) error {
		return c.stages.RefreshEdges(ctx)
	}},
	{FlagInitializeVisionModes, func(ctx context.Context, c *Coordinator, _ map[string]bool) error {
		return c.stages.InitializeVisionModes(ctx)
	}},
	{FlagInitializeVision, func(ctx context.Context, c *Coordinator, _ map[string]bool) error {
		return c.stages.InitializeVision(ctx)
	}},
	{FlagInitializeSounds, func(ctx context.Context, c *Coordinator, _ map[string]bool) error {
		return c.stages.InitializeSounds(ctx)
	}},
	{FlagRefreshLighting, func(ctx context.Context, c *Coordinator, _ map[string]bool) error {
		return c.stages.RefreshLighting(ctx)
	}},
	{FlagRefreshVision, func(ctx context.Context, c *Coordinator, _ map[string]bool) error {
		return c.stages.RefreshVision(ctx)
	}},
	{FlagRefreshPrimary, func(ctx context.Context, c *Coordinator, _ map[string]bool) error {
		return c.stages.RefreshPrimary(ctx)
	}},
	{FlagRefreshLightSources, func(ctx context.Context, c *Coordinator, _ map[string]bool) error {
		return c.stages.RefreshLightSources(ctx)
	}},
	{FlagRefreshVisionSources, func(ctx context.Context, c *Coordinator, _ map[string]bool) error {
		return c.stages.RefreshVisionSources(ctx)
	}},
	{FlagRefreshOcclusionStates, func(ctx context.Context, c *Coordinator, _ map[string]bool) error {
		return c.stages.RefreshOcclusionStates(ctx)
	}},
	{FlagRefreshOcclusionMask, func(ctx context.Context, c *Coordinator, _ map[string]bool) error {
		return c.stages.RefreshOcclusionMask(ctx)
	}},
	{FlagRefreshSounds, func(ctx context.Context, c *Coordinator, f map[string]bool) error {
		var fade time.Duration
		if f[FlagSoundFadeDuration] {
			fade = c.fade
		}
		return c.stages.RefreshSounds(ctx, fade)
	}},
}

// StageOrder returns the stage names in execution order.
func StageOrder() []string {
	out := make([]string, len(stageOrder))
	for i, s := range stageOrder {
		out[i] = s.flag
	}
	return out
}

// ApplyRenderFlags implements flags.Owner. It runs every stage whose flag is
// in the snapshot, in stage order.
func (c *Coordinator) ApplyRenderFlags(ctx context.Context, f map[string]bool) error {
	ran := 0
	for _, s := range stageOrder {
		if !f[s.flag] {
			continue
		}
		if err := s.run(ctx, c, f); err != nil {
			return fmt.Errorf("stage %s: %w", s.flag, err)
		}
		ran++
	}
	c.logger.Debug("perception applied",
		"flags", len(f),
		"stages", ran,
		"event", "perception_applied",
	)
	return nil
}

var _ flags.Owner = (*Coordinator)(nil)
