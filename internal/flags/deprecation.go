package flags

import (
	"log/slog"

	"github.com/roach88/flagsweep/internal/ir"
)

// DeprecationLogger emits compatibility warnings for deprecated flags.
//
// Each (schema, flag) pair is reported at most once per logger; later
// assertions of the same flag are silent. Share one logger between schemas
// to deduplicate across a whole scene.
type DeprecationLogger struct {
	logger *slog.Logger
	seen   map[string]bool
}

// NewDeprecationLogger creates a logger writing through l.
// A nil l uses slog.Default() at warning time.
func NewDeprecationLogger(l *slog.Logger) *DeprecationLogger {
	return &DeprecationLogger{
		logger: l,
		seen:   make(map[string]bool),
	}
}

// Warn reports a deprecated flag. Returns true if a warning was emitted,
// false if this (schema, flag) pair was already reported.
func (d *DeprecationLogger) Warn(schema, flag string, dep ir.Deprecation) bool {
	key := schema + "." + flag
	if d.seen[key] {
		return false
	}
	d.seen[key] = true

	l := d.logger
	if l == nil {
		l = slog.Default()
	}
	l.Warn("deprecated render flag",
		"schema", schema,
		"flag", flag,
		"message", dep.String(),
		"event", "flag_deprecated",
	)
	return true
}

// Reported returns the number of distinct flags warned about so far.
func (d *DeprecationLogger) Reported() int {
	return len(d.seen)
}
