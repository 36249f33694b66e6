package scene

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/flagsweep/internal/engine"
	"github.com/roach88/flagsweep/internal/flags"
	"github.com/roach88/flagsweep/internal/ir"
	"github.com/roach88/flagsweep/internal/pipeline"
)

var (
	// ErrDuplicateID is returned when a placeable id is already in use.
	ErrDuplicateID = errors.New("placeable id already in use")

	// ErrUnknownPlaceable is returned for an id the scene does not hold.
	ErrUnknownPlaceable = errors.New("unknown placeable")

	// ErrUnknownSchema is returned by AddGeneric for an unregistered schema.
	ErrUnknownSchema = errors.New("unknown schema")
)

// Scene owns one registry, one scheduler, the perception coordinator and the
// placeables.
//
// Built-in schemas are compiled once per scene and share one deprecation
// logger, so each legacy flag warns once per scene.
//
// Not safe for concurrent use; drive it from the scheduler goroutine.
type Scene struct {
	registry   *engine.Registry
	scheduler  *engine.Scheduler
	stages     pipeline.Stages
	perception *pipeline.Coordinator
	warner     *flags.DeprecationLogger
	logger     *slog.Logger
	fade       time.Duration

	schemas    map[string]*flags.Schema
	placeables map[string]Placeable
	order      []string // placeable ids in insertion order
}

// Option configures a Scene.
type Option func(*config)

type config struct {
	schedulerOpts []engine.SchedulerOption
	fade          time.Duration
	logger        *slog.Logger
	warner        *flags.DeprecationLogger
}

// WithSchedulerOptions passes options through to engine.NewScheduler.
func WithSchedulerOptions(opts ...engine.SchedulerOption) Option {
	return func(c *config) {
		c.schedulerOpts = append(c.schedulerOpts, opts...)
	}
}

// WithFadeDuration sets the perception sound fade.
func WithFadeDuration(d time.Duration) Option {
	return func(c *config) {
		c.fade = d
	}
}

// WithLogger sets the scene logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithDeprecationLogger sets the deprecation logger shared by every schema
// of the scene. Default: one over the scene logger.
func WithDeprecationLogger(d *flags.DeprecationLogger) Option {
	return func(c *config) {
		c.warner = d
	}
}

// New creates an inactive scene whose perception work runs on stages.
func New(stages pipeline.Stages, opts ...Option) (*Scene, error) {
	cfg := config{fade: pipeline.DefaultFadeDuration, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.warner == nil {
		cfg.warner = flags.NewDeprecationLogger(cfg.logger)
	}

	reg := engine.NewRegistry()
	sched, err := engine.NewScheduler(reg, cfg.schedulerOpts...)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	s := &Scene{
		registry:   reg,
		scheduler:  sched,
		stages:     stages,
		warner:     cfg.warner,
		logger:     cfg.logger,
		fade:       cfg.fade,
		schemas:    make(map[string]*flags.Schema),
		placeables: make(map[string]Placeable),
	}
	for _, spec := range []ir.SchemaSpec{WallSpec(), LightSpec(), RulerSpec()} {
		if _, err := s.RegisterSchema(spec); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// RegisterSchema compiles spec for use by AddGeneric. Registering a name a
// second time replaces the earlier schema for new owners only.
func (s *Scene) RegisterSchema(spec ir.SchemaSpec) (*flags.Schema, error) {
	schema, err := flags.NewSchema(spec, flags.WithDeprecationLogger(s.warner))
	if err != nil {
		return nil, fmt.Errorf("register schema %s: %w", spec.Name, err)
	}
	s.schemas[spec.Name] = schema
	return schema, nil
}

// Schema returns a registered schema by name.
func (s *Scene) Schema(name string) (*flags.Schema, bool) {
	schema, ok := s.schemas[name]
	return schema, ok
}

// Registry returns the scene's pending registry.
func (s *Scene) Registry() *engine.Registry { return s.registry }

// Scheduler returns the scene's scheduler.
func (s *Scene) Scheduler() *engine.Scheduler { return s.scheduler }

// Perception returns the active coordinator, or nil before Activate.
func (s *Scene) Perception() *pipeline.Coordinator { return s.perception }

// Active reports whether the scene has been activated.
func (s *Scene) Active() bool { return s.perception != nil }

// Activate creates a fresh perception coordinator, asserts its initialize
// flags and schedules a redraw of every placeable. The work happens on the
// next tick.
func (s *Scene) Activate(_ context.Context) error {
	if s.perception != nil {
		s.perception.RenderFlags().Clear()
	}
	c, err := pipeline.NewCoordinator(s.registry, s.stages,
		pipeline.WithFadeDuration(s.fade),
		pipeline.WithDeprecationLogger(s.warner),
		pipeline.WithLogger(s.logger),
	)
	if err != nil {
		return err
	}
	s.perception = c
	if err := c.Initialize(); err != nil {
		return fmt.Errorf("initialize perception: %w", err)
	}

	for _, id := range s.order {
		p := s.placeables[id]
		if p.RenderFlags().Schema().Has(FlagRedraw) {
			if err := p.RenderFlags().SetFlags(FlagRedraw); err != nil {
				return fmt.Errorf("redraw %s: %w", id, err)
			}
		}
	}

	s.logger.Info("scene activated",
		"placeables", len(s.order),
		"event", "scene_activated",
	)
	return nil
}

// Teardown clears every owner so nothing remains pending, and drops the
// coordinator. Placeables stay in the scene for a later Activate.
func (s *Scene) Teardown() {
	for _, id := range s.order {
		s.placeables[id].RenderFlags().Clear()
	}
	if s.perception != nil {
		s.perception.RenderFlags().Clear()
		s.perception = nil
	}
	s.logger.Info("scene torn down",
		"placeables", len(s.order),
		"event", "scene_teardown",
	)
}

// UpdatePerception implements Perception. Before activation it is a no-op:
// Activate initializes perception in full.
func (s *Scene) UpdatePerception(changes map[string]bool) error {
	if s.perception == nil {
		return nil
	}
	return s.perception.Update(changes)
}

// Tick runs one scheduler tick.
func (s *Scene) Tick(ctx context.Context) error {
	return s.scheduler.Tick(ctx)
}

func (s *Scene) add(p Placeable) error {
	if _, dup := s.placeables[p.OwnerID()]; dup || p.OwnerID() == pipeline.OwnerID {
		return fmt.Errorf("%w: %s", ErrDuplicateID, p.OwnerID())
	}
	s.placeables[p.OwnerID()] = p
	s.order = append(s.order, p.OwnerID())
	if p.RenderFlags().Schema().Has(FlagRedraw) {
		return p.RenderFlags().SetFlags(FlagRedraw)
	}
	return nil
}

// AddWall places a wall from a to b. The wall is drawn on the next tick.
func (s *Scene) AddWall(id string, a, b Point) (*Wall, error) {
	w := newWall(id, a, b, s.schemas["Wall"], s.registry, s)
	if err := s.add(w); err != nil {
		return nil, err
	}
	return w, nil
}

// AddLight places an ambient light.
func (s *Scene) AddLight(id string, pos Point, radius float64) (*Light, error) {
	l := newLight(id, pos, radius, s.schemas["AmbientLight"], s.registry, s)
	if err := s.add(l); err != nil {
		return nil, err
	}
	return l, nil
}

// AddRuler places a ruler.
func (s *Scene) AddRuler(id string) (*Ruler, error) {
	r := newRuler(id, s.schemas["Ruler"], s.registry)
	if err := s.add(r); err != nil {
		return nil, err
	}
	return r, nil
}

// AddGeneric places an owner of a registered schema.
func (s *Scene) AddGeneric(id, schemaName string) (*Generic, error) {
	schema, ok := s.schemas[schemaName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSchema, schemaName)
	}
	if schema.Priority() != ir.PriorityObjects {
		return nil, fmt.Errorf("schema %s has priority %s; placeables must be %s",
			schemaName, schema.Priority(), ir.PriorityObjects)
	}
	g := newGeneric(id, schema, s.registry)
	if err := s.add(g); err != nil {
		return nil, err
	}
	return g, nil
}

// Placeable returns the placeable with id.
func (s *Scene) Placeable(id string) (Placeable, bool) {
	p, ok := s.placeables[id]
	return p, ok
}

// Placeables returns every placeable in insertion order.
func (s *Scene) Placeables() []Placeable {
	out := make([]Placeable, len(s.order))
	for i, id := range s.order {
		out[i] = s.placeables[id]
	}
	return out
}

// Owner resolves id to any owner of the scene, including the coordinator.
func (s *Scene) Owner(id string) (flags.Owner, error) {
	if id == pipeline.OwnerID {
		if s.perception == nil {
			return nil, fmt.Errorf("%w: %s (scene not active)", ErrUnknownPlaceable, id)
		}
		return s.perception, nil
	}
	p, ok := s.placeables[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlaceable, id)
	}
	return p, nil
}

// Remove deletes a placeable. Its pending flags are discarded; removing a
// wall or light asks perception for the same work moving it would.
func (s *Scene) Remove(id string) error {
	p, ok := s.placeables[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlaceable, id)
	}
	p.RenderFlags().Clear()

	var changes map[string]bool
	switch p.(type) {
	case *Wall:
		changes = wallPerceptionChanges()
	case *Light:
		changes = map[string]bool{pipeline.FlagInitializeLighting: true}
	}
	if changes != nil {
		if err := s.UpdatePerception(changes); err != nil {
			return err
		}
	}

	delete(s.placeables, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = slices.Delete(s.order, i, i+1)
			break
		}
	}
	return nil
}
