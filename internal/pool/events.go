package pool

import "time"

// EventKind names a pool membership change.
type EventKind string

// Pool event kinds.
const (
	EventOpened    EventKind = "opened"    // a physical connection was opened and registered
	EventEvicted   EventKind = "evicted"   // an idle connection failed its liveness check
	EventDiscarded EventKind = "discarded" // a connection was dropped after a failed rollback
	EventExhausted EventKind = "exhausted" // Acquire failed at the pool ceiling
	EventShutdown  EventKind = "shutdown"  // a connection was closed by Shutdown
)

// Event describes a pool membership change.
type Event struct {
	Pool   string
	Kind   EventKind
	ConnID uint64
	Busy   bool
	Err    error
	Time   time.Time
}

// Observer receives pool events. Implementations must not block and must not
// call back into the Manager.
type Observer interface {
	PoolEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// PoolEvent implements Observer.
func (f ObserverFunc) PoolEvent(e Event) { f(e) }

// MultiObserver forwards each event to every observer in order.
type MultiObserver []Observer

// PoolEvent implements Observer.
func (m MultiObserver) PoolEvent(e Event) {
	for _, o := range m {
		if o != nil {
			o.PoolEvent(e)
		}
	}
}

// Logger defines the logging interface used by the pool.
// *logging.Logger and *slog.Logger both satisfy it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
