package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/flagsweep/internal/compiler"
	"github.com/roach88/flagsweep/internal/config"
	"github.com/roach88/flagsweep/internal/engine"
	"github.com/roach88/flagsweep/internal/pipeline"
	"github.com/roach88/flagsweep/internal/scene"
	"github.com/roach88/flagsweep/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config   string
	Database string
	Ticks    int // -1 = use the config value
	Walls    int
	Lights   int
	Animate  bool
	Metrics  bool

	// IDGenerator overrides the sweep id generator (for testing).
	// If nil, the scheduler's UUIDv7 default is used.
	IDGenerator engine.IDGenerator
}

// RunSummary reports what one run did.
type RunSummary struct {
	Journal    string             `json:"journal"`
	FirstTick  int64              `json:"first_tick"`
	LastTick   int64              `json:"last_tick"`
	Sweeps     int                `json:"sweeps"`
	StageCalls int                `json:"stage_calls"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive a scene on the sweep scheduler",
		Long: `Build a scene of walls and ambient lights, activate perception and run
the priority sweep scheduler. Every flushed owner is appended to the SQLite
sweep journal; a run on an existing journal continues its tick and sequence
numbering.

With --ticks N (or engine.ticks in the config) the scene is ticked N times
and a summary is printed. With 0 the scheduler ticks every
engine.tick_interval until interrupted.

Examples:
  flagsweep run --ticks 10 --walls 3 --animate
  flagsweep run --config flagsweep.toml --db sweeps.db
  flagsweep run --ticks 5 --metrics --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScene(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to TOML run configuration")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (overrides journal.path; empty = in-memory)")
	cmd.Flags().IntVar(&opts.Ticks, "ticks", -1, "ticks to run (0 = until interrupted; default from config)")
	cmd.Flags().IntVar(&opts.Walls, "walls", 1, "walls to place")
	cmd.Flags().IntVar(&opts.Lights, "lights", 1, "ambient lights to place")
	cmd.Flags().BoolVar(&opts.Animate, "animate", false, "move every wall and light between ticks")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "include scheduler metrics in the summary")

	return cmd
}

func runScene(opts *RunOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadRunConfig(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	logger, err := newLogger(cfg, opts.Verbose, cmd.ErrOrStderr())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid logging config", err)
	}
	order, err := cfg.Order()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}
	ticks := cfg.Engine.Ticks
	if opts.Ticks >= 0 {
		ticks = opts.Ticks
	}
	if opts.Walls < 0 || opts.Lights < 0 {
		return NewExitError(ExitCommandError, "--walls and --lights must not be negative")
	}

	specs, err := compiler.LoadFiles(cfg.Schemas.Files...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load schemas", err)
	}

	journal := cfg.Journal.Path
	if opts.Database != "" {
		journal = opts.Database
	}
	if journal == "" {
		journal = store.MemoryPath
	}
	logger.Info("opening journal", "path", journal, "event", "journal_open")
	st, err := store.Open(journal)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing journal", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	lastSeq, err := st.MaxSeq(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}
	lastTick, err := st.MaxTick(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}
	sweepsBefore, err := st.CountSweeps(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	reg := prometheus.NewRegistry()
	metrics, err := engine.NewMetrics(reg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to register metrics", err)
	}

	stageCalls := 0
	recorder := pipeline.NewRecorder()
	recorder.OnCall = func(call pipeline.StageCall) {
		stageCalls++
		logger.Debug("stage", "stage", call.Stage, "fade", call.Fade, "event", "stage_call")
	}

	schedOpts := []engine.SchedulerOption{
		engine.WithOrder(order),
		engine.WithJournal(st),
		engine.WithMetrics(metrics),
		engine.WithClock(engine.NewClockAt(lastSeq)),
		engine.WithStartTick(lastTick),
		engine.WithLogger(logger),
	}
	if opts.IDGenerator != nil {
		schedOpts = append(schedOpts, engine.WithIDGenerator(opts.IDGenerator))
	}
	sc, err := scene.New(recorder,
		scene.WithSchedulerOptions(schedOpts...),
		scene.WithFadeDuration(cfg.Perception.FadeDuration),
		scene.WithLogger(logger),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create scene", err)
	}

	for _, spec := range specs {
		if _, err := sc.RegisterSchema(spec); err != nil {
			return WrapExitError(ExitCommandError, "failed to register schema", err)
		}
	}
	for _, spec := range append(BuiltinSpecs(), specs...) {
		if _, err := st.WriteSchema(ctx, spec); err != nil {
			return WrapExitError(ExitCommandError, "failed to journal schema", err)
		}
	}

	layout, err := placeLayout(sc, opts.Walls, opts.Lights)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to place scene", err)
	}
	if err := sc.Activate(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to activate scene", err)
	}
	defer sc.Teardown()

	if ticks > 0 {
		for i := 0; i < ticks; i++ {
			if i > 0 && opts.Animate {
				if err := layout.step(); err != nil {
					return WrapExitError(ExitFailure, "animation failed", err)
				}
			}
			if err := sc.Tick(ctx); err != nil {
				return WrapExitError(ExitFailure, "tick failed", err)
			}
		}
	} else {
		var animate func() error
		if opts.Animate {
			animate = layout.step
		}
		if err := runUntilInterrupted(ctx, sc, cfg.Engine.TickInterval, animate, logger, formatter); err != nil {
			return WrapExitError(ExitFailure, "scheduler error", err)
		}
	}

	sweepsAfter, err := st.CountSweeps(context.Background())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}
	summary := RunSummary{
		Journal:    journal,
		FirstTick:  lastTick + 1,
		LastTick:   sc.Scheduler().Ticks(),
		Sweeps:     sweepsAfter - sweepsBefore,
		StageCalls: stageCalls,
	}
	if opts.Metrics {
		if summary.Metrics, err = gatherMetrics(reg); err != nil {
			return WrapExitError(ExitCommandError, "failed to gather metrics", err)
		}
	}
	return outputRunSummary(formatter, summary)
}

// loadRunConfig reads --config (or the defaults). Schema paths in a config
// file are relative to the file.
func loadRunConfig(opts *RunOptions) (*config.Config, error) {
	if opts.Config == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, err
	}
	base := filepath.Dir(opts.Config)
	for i, p := range cfg.Schemas.Files {
		if !filepath.IsAbs(p) {
			cfg.Schemas.Files[i] = filepath.Join(base, p)
		}
	}
	return cfg, nil
}

// newLogger builds the run logger from the logging section; --verbose
// forces debug.
func newLogger(cfg *config.Config, verbose bool, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}
	if cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	}
	return slog.New(slog.NewTextHandler(w, hopts)), nil
}

// runUntilInterrupted ticks on interval until ctx ends or a signal arrives.
// A signal stops the scheduler, which finishes queued commands first. When
// animate is set it is posted to the scheduler goroutine once per interval.
func runUntilInterrupted(ctx context.Context, sc *scene.Scene, interval time.Duration, animate func() error, logger *slog.Logger, formatter *OutputFormatter) error {
	sched := sc.Scheduler()
	done := make(chan struct{})
	defer close(done)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			sched.Stop()
		case <-done:
		}
	}()

	if animate != nil {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if !sched.Do(func(context.Context) error { return animate() }) {
						return
					}
				case <-done:
					return
				}
			}
		}()
	}

	if !formatter.JSON() {
		fmt.Fprintln(formatter.Writer, "Scheduler started. Press Ctrl-C to stop.")
	}
	err := sched.Run(ctx, interval)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// gatherMetrics flattens the registry: counters and gauges by value,
// histograms by sample count. Labelled series are summed per family.
func gatherMetrics(reg *prometheus.Registry) (map[string]float64, error) {
	families, err := reg.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(families))
	for _, mf := range families {
		var total float64
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				total += float64(m.GetHistogram().GetSampleCount())
			}
		}
		out[mf.GetName()] = total
	}
	return out, nil
}

func outputRunSummary(formatter *OutputFormatter, s RunSummary) error {
	if formatter.JSON() {
		return formatter.Success(s)
	}

	w := formatter.Writer
	if s.LastTick < s.FirstTick {
		fmt.Fprintln(w, "✓ No ticks run")
	} else {
		fmt.Fprintf(w, "✓ Ran ticks %d-%d\n", s.FirstTick, s.LastTick)
	}
	fmt.Fprintf(w, "  sweeps journaled: %d\n", s.Sweeps)
	fmt.Fprintf(w, "  stage calls:      %d\n", s.StageCalls)
	fmt.Fprintf(w, "  journal:          %s\n", s.Journal)

	if len(s.Metrics) > 0 {
		names := make([]string, 0, len(s.Metrics))
		for name := range s.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintln(w, "\nMetrics:")
		for _, name := range names {
			fmt.Fprintf(w, "  %s %g\n", name, s.Metrics[name])
		}
	}
	return nil
}

// layout is the generated scene: walls in a row with a light beside each.
type layout struct {
	walls  []*scene.Wall
	lights []*scene.Light
}

func placeLayout(sc *scene.Scene, walls, lights int) (*layout, error) {
	l := &layout{}
	for i := 0; i < walls; i++ {
		x := float64(i * 10)
		w, err := sc.AddWall(fmt.Sprintf("wall-%d", i+1), scene.Point{X: x, Y: 0}, scene.Point{X: x, Y: 10})
		if err != nil {
			return nil, err
		}
		l.walls = append(l.walls, w)
	}
	for i := 0; i < lights; i++ {
		lt, err := sc.AddLight(fmt.Sprintf("light-%d", i+1), scene.Point{X: float64(i*10) + 5, Y: 5}, 20)
		if err != nil {
			return nil, err
		}
		l.lights = append(l.lights, lt)
	}
	return l, nil
}

// step shifts every wall one unit right and every light one unit up.
func (l *layout) step() error {
	for _, w := range l.walls {
		a, b := w.Endpoints()
		if err := w.Move(scene.Point{X: a.X + 1, Y: a.Y}, scene.Point{X: b.X + 1, Y: b.Y}); err != nil {
			return err
		}
	}
	for _, lt := range l.lights {
		p := lt.Position()
		if err := lt.MoveTo(scene.Point{X: p.X, Y: p.Y + 1}); err != nil {
			return err
		}
	}
	return nil
}
