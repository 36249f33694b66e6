package engine

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flagsweep/internal/ir"
)

func newTestScheduler(t *testing.T, reg *Registry, opts ...SchedulerOption) *Scheduler {
	t.Helper()
	base := []SchedulerOption{
		WithIDGenerator(NewFixedGenerator("s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8")),
		WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))),
	}
	s, err := NewScheduler(reg, append(base, opts...)...)
	require.NoError(t, err)
	return s
}

func TestScheduler_TickFlushesAndDeregisters(t *testing.T) {
	reg := NewRegistry()
	wall := newStubOwner("wall-1", objectSchema, reg)
	s := newTestScheduler(t, reg)

	require.NoError(t, wall.flags.SetFlags("redraw"))
	require.NoError(t, s.Tick(context.Background()))

	require.Len(t, wall.applied, 1)
	assert.Equal(t, map[string]bool{"redraw": true, "refreshState": true}, wall.applied[0])
	assert.Equal(t, 0, reg.Total())
	assert.Equal(t, int64(1), s.Ticks())
}

func TestScheduler_CrossPriorityHandOffInSameTick(t *testing.T) {
	reg := NewRegistry()
	perception := newStubOwner("perception", perceptionSchema, reg)
	wall := newStubOwner("wall-1", objectSchema, reg)
	wall.onApply = func(_ context.Context, f map[string]bool) error {
		if f["refreshLine"] {
			return perception.flags.SetFlags("refreshEdges")
		}
		return nil
	}
	s := newTestScheduler(t, reg)

	require.NoError(t, wall.flags.SetFlags("refreshLine"))
	require.NoError(t, s.Tick(context.Background()))

	require.Len(t, perception.applied, 1)
	assert.Equal(t, map[string]bool{"refreshEdges": true}, perception.applied[0])
	assert.Equal(t, 0, reg.Total())
}

func TestScheduler_ReverseOrderDefersHandOff(t *testing.T) {
	reg := NewRegistry()
	perception := newStubOwner("perception", perceptionSchema, reg)
	wall := newStubOwner("wall-1", objectSchema, reg)
	wall.onApply = func(context.Context, map[string]bool) error {
		return perception.flags.SetFlags("refreshEdges")
	}
	s := newTestScheduler(t, reg, WithOrder([]ir.Priority{ir.PriorityPerception, ir.PriorityObjects}))

	require.NoError(t, wall.flags.SetFlags("redraw"))
	require.NoError(t, s.Tick(context.Background()))
	assert.Empty(t, perception.applied)
	assert.True(t, reg.Contains(ir.PriorityPerception, "perception"))

	require.NoError(t, s.Tick(context.Background()))
	assert.Len(t, perception.applied, 1)
}

func TestScheduler_ReassertDuringApplyIsDeferred(t *testing.T) {
	reg := NewRegistry()
	wall := newStubOwner("wall-1", objectSchema, reg)
	calls := 0
	wall.onApply = func(context.Context, map[string]bool) error {
		calls++
		if calls == 1 {
			return wall.flags.SetFlags("refreshLine")
		}
		return nil
	}
	s := newTestScheduler(t, reg)

	require.NoError(t, wall.flags.SetFlags("redraw"))
	n, err := s.Sweep(context.Background(), ir.PriorityObjects)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, calls)
	assert.True(t, reg.Contains(ir.PriorityObjects, "wall-1"))

	n, err = s.Sweep(context.Background(), ir.PriorityObjects)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, map[string]bool{"refreshLine": true}, wall.applied[1])
	assert.Equal(t, 0, reg.Total())
}

func TestScheduler_OwnerAddedMidSweepWaits(t *testing.T) {
	reg := NewRegistry()
	a := newStubOwner("a", objectSchema, reg)
	b := newStubOwner("b", objectSchema, reg)
	a.onApply = func(context.Context, map[string]bool) error {
		return b.flags.SetFlags("refreshLine")
	}
	s := newTestScheduler(t, reg)

	require.NoError(t, a.flags.SetFlags("redraw"))
	n, err := s.Sweep(context.Background(), ir.PriorityObjects)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, b.applied)
	assert.Equal(t, []string{"b"}, reg.PendingIDs(ir.PriorityObjects))
}

func TestScheduler_SkipsOwnerEmptiedEarlierInSweep(t *testing.T) {
	reg := NewRegistry()
	a := newStubOwner("a", objectSchema, reg)
	b := newStubOwner("b", objectSchema, reg)
	a.onApply = func(context.Context, map[string]bool) error {
		_, err := b.flags.Handle("refreshLine")
		return err
	}
	s := newTestScheduler(t, reg)

	require.NoError(t, a.flags.SetFlags("redraw"))
	require.NoError(t, b.flags.SetFlags("refreshLine"))

	n, err := s.Sweep(context.Background(), ir.PriorityObjects)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, b.applied)
}

func TestScheduler_ApplyErrorKeepsLaterOwnersPending(t *testing.T) {
	reg := NewRegistry()
	boom := errors.New("stage failed")
	a := newStubOwner("a", objectSchema, reg)
	b := newStubOwner("b", objectSchema, reg)
	c := newStubOwner("c", objectSchema, reg)
	perception := newStubOwner("perception", perceptionSchema, reg)
	b.onApply = func(context.Context, map[string]bool) error { return boom }
	s := newTestScheduler(t, reg)

	for _, o := range []*stubOwner{a, b, c} {
		require.NoError(t, o.flags.SetFlags("redraw"))
	}
	require.NoError(t, perception.flags.SetFlags("refreshLighting"))

	err := s.Tick(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, IsApplyError(err))

	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "b", re.OwnerID)
	assert.Equal(t, ir.PriorityObjects, re.Priority)
	assert.Equal(t, int64(1), re.Tick)

	assert.Len(t, a.applied, 1)
	assert.Len(t, b.applied, 1)
	assert.Empty(t, c.applied)
	assert.Empty(t, perception.applied)
	assert.Equal(t, []string{"c"}, reg.PendingIDs(ir.PriorityObjects))
	assert.True(t, reg.Contains(ir.PriorityPerception, "perception"))

	b.onApply = nil
	require.NoError(t, s.Tick(context.Background()))
	assert.Len(t, c.applied, 1)
	assert.Len(t, perception.applied, 1)
	assert.Equal(t, 0, reg.Total())
}

func TestScheduler_JournalsInFlushOrder(t *testing.T) {
	reg := NewRegistry()
	journal := NewMemoryJournal()
	perception := newStubOwner("perception", perceptionSchema, reg)
	wall := newStubOwner("wall-1", objectSchema, reg)
	s := newTestScheduler(t, reg, WithJournal(journal), WithClock(NewClockAt(10)))

	require.NoError(t, perception.flags.SetFlags("refreshLighting", "refreshEdges"))
	require.NoError(t, wall.flags.SetFlags("redraw"))
	require.NoError(t, s.Tick(context.Background()))

	assert.Equal(t, []ir.SweepRecord{
		{ID: "s1", Seq: 11, Tick: 1, Priority: ir.PriorityObjects, OwnerID: "wall-1", Flags: []string{"redraw", "refreshState"}},
		{ID: "s2", Seq: 12, Tick: 1, Priority: ir.PriorityPerception, OwnerID: "perception", Flags: []string{"refreshEdges", "refreshLighting"}},
	}, journal.Records())
}

func TestScheduler_StartTickContinuesNumbering(t *testing.T) {
	reg := NewRegistry()
	journal := NewMemoryJournal()
	wall := newStubOwner("wall-1", objectSchema, reg)
	s := newTestScheduler(t, reg, WithJournal(journal), WithStartTick(41))

	require.NoError(t, wall.flags.SetFlags("redraw"))
	require.NoError(t, s.Tick(context.Background()))

	assert.Equal(t, int64(42), s.Ticks())
	require.Equal(t, 1, journal.Len())
	assert.Equal(t, int64(42), journal.Records()[0].Tick)
}

func TestScheduler_JournalErrorStopsSweep(t *testing.T) {
	reg := NewRegistry()
	boom := errors.New("disk full")
	a := newStubOwner("a", objectSchema, reg)
	b := newStubOwner("b", objectSchema, reg)
	s := newTestScheduler(t, reg, WithJournal(failingJournal{err: boom}))

	require.NoError(t, a.flags.SetFlags("redraw"))
	require.NoError(t, b.flags.SetFlags("redraw"))

	n, err := s.Sweep(context.Background(), ir.PriorityObjects)
	assert.Equal(t, 1, n)
	assert.True(t, IsJournalError(err))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"b"}, reg.PendingIDs(ir.PriorityObjects))
}

func TestNewScheduler_InvalidOrder(t *testing.T) {
	tests := []struct {
		name  string
		order []ir.Priority
	}{
		{"missing priority", []ir.Priority{ir.PriorityObjects}},
		{"duplicate priority", []ir.Priority{ir.PriorityObjects, ir.PriorityObjects, ir.PriorityPerception}},
		{"unknown priority", []ir.Priority{ir.PriorityObjects, ir.PriorityPerception, ir.Priority(7)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewScheduler(NewRegistry(), WithOrder(tt.order))
			var re *RuntimeError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, ErrCodeInvalidOrder, re.Code)
		})
	}
}

func TestScheduler_Metrics(t *testing.T) {
	reg := NewRegistry()
	promReg := prometheus.NewRegistry()
	m, err := NewMetrics(promReg)
	require.NoError(t, err)

	a := newStubOwner("a", objectSchema, reg)
	b := newStubOwner("b", objectSchema, reg)
	s := newTestScheduler(t, reg, WithMetrics(m))

	require.NoError(t, a.flags.SetFlags("redraw"))
	require.NoError(t, b.flags.SetFlags("refreshLine"))
	require.NoError(t, s.Tick(context.Background()))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ticks))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.sweeps.WithLabelValues("objects")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.sweeps.WithLabelValues("perception")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ownersFlushed.WithLabelValues("objects")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.flagsApplied.WithLabelValues("objects")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.pending.WithLabelValues("objects")))

	_, err = NewMetrics(promReg)
	assert.Error(t, err, "second registration on the same registry must fail")
}

func TestScheduler_NilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.observeTick()
		m.observeFlush(ir.PriorityObjects, 3)
		m.observeError(ir.PriorityObjects, ErrCodeApplyFailed)
	})
}

func TestScheduler_RunExecutesCommandsAndTicks(t *testing.T) {
	reg := NewRegistry()
	wall := newStubOwner("wall-1", objectSchema, reg)
	flushed := make(chan map[string]bool, 1)
	wall.onApply = func(_ context.Context, f map[string]bool) error {
		flushed <- f
		return nil
	}
	s := newTestScheduler(t, reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, 5*time.Millisecond) }()

	require.True(t, s.Do(func(context.Context) error {
		return wall.flags.SetFlags("refreshLine")
	}))

	select {
	case f := <-flushed:
		assert.Equal(t, map[string]bool{"refreshLine": true}, f)
	case <-time.After(2 * time.Second):
		t.Fatal("owner was never flushed")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, s.Do(func(context.Context) error { return nil }))
}

func TestScheduler_StopReturnsNil(t *testing.T) {
	s := newTestScheduler(t, NewRegistry())
	ran := false
	s.Do(func(context.Context) error {
		ran = true
		return nil
	})
	s.Stop()

	err := s.Run(context.Background(), time.Hour)
	assert.NoError(t, err)
	assert.True(t, ran)
}

func TestScheduler_RunRejectsNonPositiveInterval(t *testing.T) {
	s := newTestScheduler(t, NewRegistry())
	assert.Error(t, s.Run(context.Background(), 0))
}

func TestScheduler_RunCommandsLogsErrors(t *testing.T) {
	var buf bytes.Buffer
	s, err := NewScheduler(NewRegistry(), WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	require.NoError(t, err)

	s.Do(func(context.Context) error { return errors.New("bad flag") })
	s.Do(func(context.Context) error { return nil })

	assert.Equal(t, 2, s.RunCommands(context.Background()))
	assert.Contains(t, buf.String(), "event=command_failed")
	assert.Contains(t, buf.String(), "bad flag")
}
