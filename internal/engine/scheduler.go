package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/flagsweep/internal/ir"
)

// Scheduler drains the pending registry once per tick, one sweep per
// priority in a fixed order.
//
// A sweep takes a snapshot of the owners pending under its priority and, for
// each, calls Clear on the flag set and then ApplyRenderFlags with the
// returned snapshot. Clear removes the owner from the registry before apply
// runs, so flags the owner re-asserts from inside ApplyRenderFlags wait for a
// later sweep. Flags asserted on an owner of a later priority are flushed by
// that priority's sweep in the same tick.
//
// CRITICAL: Tick, Sweep and every flag mutation must happen on one
// goroutine. Other goroutines hand work to that goroutine with Do while Run
// is active.
//
// INVARIANTS:
//   - order is a permutation of ir.AllPriorities()
//   - an owner is flushed at most once per sweep
//   - records are journaled in flush order with strictly increasing seq
type Scheduler struct {
	registry *Registry
	order    []ir.Priority
	journal  Journal
	metrics  *Metrics
	ids      IDGenerator
	clock    SeqSource
	logger   *slog.Logger
	inbox    *mailbox

	tick int64
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithOrder sets the global sweep order.
// Default: ir.DefaultPriorityOrder (objects before perception).
func WithOrder(order []ir.Priority) SchedulerOption {
	return func(s *Scheduler) {
		s.order = append([]ir.Priority(nil), order...)
	}
}

// WithJournal records every flushed owner to j.
func WithJournal(j Journal) SchedulerOption {
	return func(s *Scheduler) {
		s.journal = j
	}
}

// WithMetrics exports sweep activity through m.
func WithMetrics(m *Metrics) SchedulerOption {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// WithIDGenerator sets the sweep record id source.
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) SchedulerOption {
	return func(s *Scheduler) {
		s.ids = g
	}
}

// WithClock sets the sequence source for sweep records.
// Default: a fresh Clock.
func WithClock(c SeqSource) SchedulerOption {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithStartTick makes the first Tick number start+1. A run appending to an
// existing journal passes the journal's last tick.
func WithStartTick(start int64) SchedulerOption {
	return func(s *Scheduler) {
		s.tick = start
	}
}

// WithLogger sets the scheduler logger. Default: slog.Default().
func WithLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// NewScheduler creates a scheduler draining reg.
//
// Returns a *RuntimeError with ErrCodeInvalidOrder if the configured order
// omits or repeats a priority: owners of a missing priority would never be
// flushed.
func NewScheduler(reg *Registry, opts ...SchedulerOption) (*Scheduler, error) {
	s := &Scheduler{
		registry: reg,
		order:    append([]ir.Priority(nil), ir.DefaultPriorityOrder...),
		ids:      UUIDv7Generator{},
		clock:    NewClock(),
		logger:   slog.Default(),
		inbox:    newMailbox(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := validateOrder(s.order); err != nil {
		return nil, err
	}
	return s, nil
}

func validateOrder(order []ir.Priority) error {
	seen := make(map[ir.Priority]bool, len(order))
	for _, p := range order {
		if !p.Valid() {
			return &RuntimeError{Code: ErrCodeInvalidOrder, Message: fmt.Sprintf("unknown priority %s", p)}
		}
		if seen[p] {
			return &RuntimeError{Code: ErrCodeInvalidOrder, Message: fmt.Sprintf("priority %s listed twice", p)}
		}
		seen[p] = true
	}
	for _, p := range ir.AllPriorities() {
		if !seen[p] {
			return &RuntimeError{Code: ErrCodeInvalidOrder, Message: fmt.Sprintf("priority %s missing from order", p)}
		}
	}
	return nil
}

// Registry returns the registry this scheduler drains.
func (s *Scheduler) Registry() *Registry { return s.registry }

// Order returns a copy of the sweep order.
func (s *Scheduler) Order() []ir.Priority {
	return append([]ir.Priority(nil), s.order...)
}

// Ticks returns the number of the most recent tick (0 before the first).
func (s *Scheduler) Ticks() int64 { return s.tick }

// Sweep flushes every owner pending under p and returns how many were
// flushed.
//
// Owners are taken from a snapshot of the registry. An owner whose set was
// emptied by an earlier owner in the same sweep is skipped. The first
// ApplyRenderFlags or journal error stops the sweep; owners not yet reached
// stay pending for the next sweep of p.
func (s *Scheduler) Sweep(ctx context.Context, p ir.Priority) (int, error) {
	start := time.Now()
	owners := s.registry.Pending(p)
	flushed := 0

	for _, o := range owners {
		fs := o.RenderFlags()
		if fs.Empty() {
			continue
		}

		names := fs.Active()
		snapshot := fs.Clear()

		if err := o.ApplyRenderFlags(ctx, snapshot); err != nil {
			s.metrics.observeError(p, ErrCodeApplyFailed)
			return flushed, applyError(p, o.OwnerID(), s.tick, err)
		}
		flushed++
		s.metrics.observeFlush(p, len(snapshot))

		rec := ir.SweepRecord{
			ID:       s.ids.Generate(),
			Seq:      s.clock.Next(),
			Tick:     s.tick,
			Priority: p,
			OwnerID:  o.OwnerID(),
			Flags:    names,
		}
		if s.journal != nil {
			if err := s.journal.WriteSweep(ctx, rec); err != nil {
				s.metrics.observeError(p, ErrCodeJournalFailed)
				return flushed, journalError(p, o.OwnerID(), s.tick, err)
			}
		}

		s.logger.Debug("owner flushed",
			"priority", p.String(),
			"owner", o.OwnerID(),
			"flags", names,
			"seq", rec.Seq,
			"tick", s.tick,
			"event", "owner_flushed",
		)
	}

	s.metrics.observeSweep(p, time.Since(start))
	return flushed, nil
}

// Tick runs one sweep per priority in order. The first error aborts the
// remaining sweeps of this tick.
func (s *Scheduler) Tick(ctx context.Context) error {
	s.tick++
	s.metrics.observeTick()
	defer s.metrics.observePending(s.registry, s.order)

	for _, p := range s.order {
		if _, err := s.Sweep(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Do queues cmd for execution on the scheduler goroutine.
// Returns false once the scheduler has been stopped.
func (s *Scheduler) Do(cmd Command) bool {
	return s.inbox.Post(cmd)
}

// Stop makes Run return after executing already queued commands.
func (s *Scheduler) Stop() {
	s.inbox.Close()
}

// RunCommands executes queued commands in FIFO order on the caller's
// goroutine. Command errors are logged and do not stop the remaining
// commands. Returns the number of commands executed.
func (s *Scheduler) RunCommands(ctx context.Context) int {
	cmds := s.inbox.TakeAll()
	for _, c := range cmds {
		if err := c(ctx); err != nil {
			s.logger.Error("command failed",
				"error", err,
				"tick", s.tick,
				"event", "command_failed",
			)
		}
	}
	return len(cmds)
}

// Run ticks every interval until ctx is cancelled or Stop is called.
//
// Queued commands run before each tick and as soon as they arrive. A tick
// error is logged with the failing owner and the loop continues; the owners
// the failed sweep did not reach are retried on the next tick.
//
// Blocks; must be called from exactly one goroutine.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("scheduler starting",
		"interval", interval,
		"order", priorityNames(s.order),
		"event", "scheduler_start",
	)

	for {
		select {
		case <-ctx.Done():
			s.inbox.Close()
			s.logger.Info("scheduler stopping: context cancelled", "ticks", s.tick)
			return ctx.Err()

		case _, open := <-s.inbox.Wait():
			s.RunCommands(ctx)
			if !open {
				s.logger.Info("scheduler stopping: stopped", "ticks", s.tick)
				return nil
			}

		case <-ticker.C:
			s.RunCommands(ctx)
			if err := s.Tick(ctx); err != nil {
				logTickError(s.logger, s.tick, err)
			}
		}
	}
}

func logTickError(l *slog.Logger, tick int64, err error) {
	attrs := []any{"tick", tick, "error", err, "event", "tick_failed"}
	var re *RuntimeError
	if errors.As(err, &re) {
		attrs = append(attrs, "code", string(re.Code), "priority", re.Priority.String(), "owner", re.OwnerID)
	}
	l.Error("tick failed", attrs...)
}

func priorityNames(order []ir.Priority) []string {
	out := make([]string, len(order))
	for i, p := range order {
		out[i] = p.String()
	}
	return out
}
