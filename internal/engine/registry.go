package engine

import (
	"github.com/roach88/flagsweep/internal/flags"
	"github.com/roach88/flagsweep/internal/ir"
)

// Registry answers "who needs flushing" for each priority.
//
// It is the pending-owner registry shared by every FlagSet of a scene.
// Owners are keyed by OwnerID and iterated in the order they were added; an
// owner removed and added again moves to the end.
//
// INVARIANTS:
//   - an owner appears at most once per priority
//   - Add and Remove are idempotent
//   - the registry performs no recomputation; it only tracks membership
//
// Not safe for concurrent use. All flag mutation happens on the goroutine
// that drives the Scheduler.
type Registry struct {
	buckets map[ir.Priority]*bucket
}

// bucket is one insertion-ordered owner collection.
type bucket struct {
	order []flags.Owner
	index map[string]int // owner id -> position in order
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{buckets: make(map[ir.Priority]*bucket)}
}

func (r *Registry) bucket(p ir.Priority) *bucket {
	b, ok := r.buckets[p]
	if !ok {
		b = &bucket{index: make(map[string]int)}
		r.buckets[p] = b
	}
	return b
}

// Add marks o as pending under p. Adding an owner already pending is a no-op.
func (r *Registry) Add(p ir.Priority, o flags.Owner) {
	b := r.bucket(p)
	if _, ok := b.index[o.OwnerID()]; ok {
		return
	}
	b.index[o.OwnerID()] = len(b.order)
	b.order = append(b.order, o)
}

// Remove clears o from p. Removing an absent owner is a no-op.
func (r *Registry) Remove(p ir.Priority, o flags.Owner) {
	b, ok := r.buckets[p]
	if !ok {
		return
	}
	pos, ok := b.index[o.OwnerID()]
	if !ok {
		return
	}
	delete(b.index, o.OwnerID())
	copy(b.order[pos:], b.order[pos+1:])
	b.order[len(b.order)-1] = nil
	b.order = b.order[:len(b.order)-1]
	for i := pos; i < len(b.order); i++ {
		b.index[b.order[i].OwnerID()] = i
	}
}

// Pending returns a snapshot of the owners pending under p, in insertion
// order. The snapshot is not affected by later Add/Remove calls.
func (r *Registry) Pending(p ir.Priority) []flags.Owner {
	b, ok := r.buckets[p]
	if !ok || len(b.order) == 0 {
		return nil
	}
	out := make([]flags.Owner, len(b.order))
	copy(out, b.order)
	return out
}

// Contains reports whether the owner with id is pending under p.
func (r *Registry) Contains(p ir.Priority, id string) bool {
	b, ok := r.buckets[p]
	if !ok {
		return false
	}
	_, ok = b.index[id]
	return ok
}

// Len returns the number of owners pending under p.
func (r *Registry) Len(p ir.Priority) int {
	if b, ok := r.buckets[p]; ok {
		return len(b.order)
	}
	return 0
}

// Total returns the number of pending entries across all priorities.
func (r *Registry) Total() int {
	n := 0
	for _, b := range r.buckets {
		n += len(b.order)
	}
	return n
}

// PendingIDs returns the ids pending under p in iteration order.
func (r *Registry) PendingIDs(p ir.Priority) []string {
	b, ok := r.buckets[p]
	if !ok {
		return nil
	}
	ids := make([]string, len(b.order))
	for i, o := range b.order {
		ids[i] = o.OwnerID()
	}
	return ids
}

// compile-time check
var _ flags.Registrar = (*Registry)(nil)
