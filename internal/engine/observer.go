package engine

import "time"

// Statement kinds reported in StatementEvent.
const (
	KindQuery = "query"
	KindExec  = "exec"
)

// StatementEvent describes one executed statement.
type StatementEvent struct {
	Pool    string
	ConnID  uint64
	Dialect string
	Kind    string
	SQL     string
	Elapsed time.Duration

	// Rows is the affected row count of an exec, or -1 for a query.
	Rows int64

	// Slow is set when Elapsed exceeded the slow statement threshold.
	Slow bool
	Err  error
	Time time.Time
}

// Observer receives an event for every executed statement. Implementations
// must be safe for concurrent use and must not block.
type Observer interface {
	Statement(StatementEvent)
}

// MultiObserver fans an event out to several observers.
type MultiObserver []Observer

// Statement implements Observer.
func (m MultiObserver) Statement(ev StatementEvent) {
	for _, o := range m {
		if o != nil {
			o.Statement(ev)
		}
	}
}

// Logger defines the logging interface used by the engine.
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
