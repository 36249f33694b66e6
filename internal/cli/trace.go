package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/flagsweep/internal/ir"
	"github.com/roach88/flagsweep/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Tick     int64
	Owner    string
	Priority string
	Limit    int
	hasTick  bool
}

// TraceSweep is one journaled sweep in the timeline.
type TraceSweep struct {
	Seq      int64    `json:"seq"`
	Tick     int64    `json:"tick"`
	Priority string   `json:"priority"`
	Owner    string   `json:"owner"`
	Flags    []string `json:"flags"`
	ID       string   `json:"id"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Sweeps           int `json:"sweeps"`
	Ticks            int `json:"ticks"`
	Owners           int `json:"owners"`
	ObjectSweeps     int `json:"object_sweeps"`
	PerceptionSweeps int `json:"perception_sweeps"`
}

// TraceSchema is a schema recorded in the journal.
type TraceSchema struct {
	Name     string `json:"name"`
	Priority string `json:"priority"`
	Hash     string `json:"hash"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Journal  string        `json:"journal"`
	Timeline []TraceSweep  `json:"timeline"`
	Schemas  []TraceSchema `json:"schemas"`
	Stats    TraceStats    `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect the sweep journal",
		Long: `Print the sweeps a run journaled, grouped by tick in sequence order.

Each line shows which owner was swept at which priority and the flags
that were set when the sweep took its snapshot.

Examples:
  flagsweep trace --db ./flagsweep.db
  flagsweep trace --db ./flagsweep.db --tick 3
  flagsweep trace --db ./flagsweep.db --owner wall-1 --priority objects
  flagsweep trace --db ./flagsweep.db --limit 20 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.hasTick = cmd.Flags().Changed("tick")
			return runTrace(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().Int64Var(&opts.Tick, "tick", 0, "show a single tick")
	cmd.Flags().StringVar(&opts.Owner, "owner", "", "filter to one owner id")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "filter to one priority (objects|perception)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum sweeps to show (0 = all)")

	return cmd
}

func runTrace(ctx context.Context, opts *TraceOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	filter, err := opts.filter()
	if err != nil {
		return NewExitError(ExitCommandError, err.Error())
	}

	// store.Open would create a fresh journal for a missing path.
	if _, err := os.Stat(opts.Database); err != nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("journal not found: %s", opts.Database))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer st.Close()

	records, err := st.ReadSweeps(ctx, filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read sweeps", err)
	}
	schemas, err := st.ListSchemas(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read schemas", err)
	}

	result := buildTrace(opts.Database, records, schemas)

	if formatter.JSON() {
		return formatter.Encode(CLIResponse{Status: "ok", Data: result})
	}
	outputTraceText(formatter.Writer, result, opts.Verbose)
	return nil
}

func (o *TraceOptions) filter() (store.SweepFilter, error) {
	var f store.SweepFilter
	if o.hasTick {
		if o.Tick < 0 {
			return f, fmt.Errorf("--tick must be >= 0, got %d", o.Tick)
		}
		tick := o.Tick
		f.Tick = &tick
	}
	if o.Limit < 0 {
		return f, fmt.Errorf("--limit must be >= 0, got %d", o.Limit)
	}
	if o.Priority != "" {
		p, err := ir.ParsePriority(o.Priority)
		if err != nil {
			return f, err
		}
		f.Priority = p
	}
	f.OwnerID = o.Owner
	f.Limit = o.Limit
	return f, nil
}

// buildTrace converts journal rows to the trace result.
func buildTrace(journal string, records []ir.SweepRecord, schemas []store.SchemaRow) TraceResult {
	result := TraceResult{
		Journal:  journal,
		Timeline: make([]TraceSweep, 0, len(records)),
		Schemas:  make([]TraceSchema, 0, len(schemas)),
	}

	ticks := make(map[int64]bool)
	owners := make(map[string]bool)
	for _, rec := range records {
		result.Timeline = append(result.Timeline, TraceSweep{
			Seq:      rec.Seq,
			Tick:     rec.Tick,
			Priority: rec.Priority.String(),
			Owner:    rec.OwnerID,
			Flags:    rec.Flags,
			ID:       rec.ID,
		})
		ticks[rec.Tick] = true
		owners[rec.OwnerID] = true
		switch rec.Priority {
		case ir.PriorityObjects:
			result.Stats.ObjectSweeps++
		case ir.PriorityPerception:
			result.Stats.PerceptionSweeps++
		}
	}
	for _, s := range schemas {
		result.Schemas = append(result.Schemas, TraceSchema{
			Name:     s.Name,
			Priority: s.Priority.String(),
			Hash:     s.Hash,
		})
	}

	result.Stats.Sweeps = len(records)
	result.Stats.Ticks = len(ticks)
	result.Stats.Owners = len(owners)
	return result
}

// outputTraceText prints the timeline grouped by tick.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	fmt.Fprintf(w, "Journal: %s\n", result.Journal)
	fmt.Fprintln(w)

	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no sweeps)")
	}

	tick := int64(-1)
	for _, s := range result.Timeline {
		if s.Tick != tick {
			tick = s.Tick
			fmt.Fprintf(w, "=== Tick %d ===\n", tick)
		}
		fmt.Fprintf(w, "  [%d] %-10s %-20s %s\n", s.Seq, s.Priority, s.Owner, formatFlags(s.Flags))
		if verbose {
			fmt.Fprintf(w, "       ID: %s\n", truncateID(s.ID))
		}
	}
	fmt.Fprintln(w)

	if verbose && len(result.Schemas) > 0 {
		fmt.Fprintln(w, "=== Schemas ===")
		for _, s := range result.Schemas {
			fmt.Fprintf(w, "  %s (%s) %s\n", s.Name, s.Priority, truncateID(s.Hash))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Sweeps:     %d\n", result.Stats.Sweeps)
	fmt.Fprintf(w, "  Ticks:      %d\n", result.Stats.Ticks)
	fmt.Fprintf(w, "  Owners:     %d\n", result.Stats.Owners)
	fmt.Fprintf(w, "  Objects:    %d\n", result.Stats.ObjectSweeps)
	fmt.Fprintf(w, "  Perception: %d\n", result.Stats.PerceptionSweeps)
}

func formatFlags(flags []string) string {
	if len(flags) == 0 {
		return "(none)"
	}
	return strings.Join(flags, ", ")
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
