package engine

import (
	"context"
	"sync"
)

// Command is a unit of work executed on the scheduler goroutine.
//
// Commands are how other goroutines mutate flag state while Run is active:
// the FlagSet and Registry are not locked, so every Set must happen on the
// goroutine that sweeps.
type Command func(ctx context.Context) error

// mailbox is a thread-safe FIFO of commands.
//
// Unbounded so a caller never blocks behind a slow tick. The signal channel
// (buffer 1) coalesces wakeups for context-aware waiting in Run.
type mailbox struct {
	mu       sync.Mutex
	commands []Command
	closed   bool
	signal   chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{
		commands: make([]Command, 0, 16),
		signal:   make(chan struct{}, 1),
	}
}

// Post appends a command. Returns false if the mailbox is closed.
func (m *mailbox) Post(c Command) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	m.commands = append(m.commands, c)

	select {
	case m.signal <- struct{}{}:
	default:
	}
	return true
}

// TakeAll removes and returns every queued command in FIFO order.
func (m *mailbox) TakeAll() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.commands) == 0 {
		return nil
	}
	out := m.commands
	m.commands = make([]Command, 0, cap(out))
	return out
}

// Wait returns a channel that fires when commands may be available.
// Closed when the mailbox is closed.
func (m *mailbox) Wait() <-chan struct{} {
	return m.signal
}

// Len returns the number of queued commands.
func (m *mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.commands)
}

// Close rejects further posts and wakes any waiter.
func (m *mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	close(m.signal)
}
