package types

// Action identifies what a list-cache synchronization event asks peers to do.
type Action string

const (
	// Warm means the snapshot was rebuilt; peers drop their local copy and
	// reload it from Redis on the next read.
	Warm Action = "warm"
	// Invalidate means the snapshot was removed from Redis.
	Invalidate Action = "invalidate"
	// Clear means every snapshot was removed.
	Clear Action = "clear"
)

// InvalidationEvent represents a list cache synchronization event.
// It is broadcast to every pod so local snapshot copies never outlive the
// shared one.
type InvalidationEvent struct {
	Key    string `json:"key"`
	Sender string `json:"sender"`
	Action Action `json:"action"`
}

// Logger defines the logging surface used across the module.
// *slog.Logger satisfies it.
type Logger interface {
	// Debug logs a debug message.
	Debug(msg string, args ...any)

	// Info logs an info message.
	Info(msg string, args ...any)

	// Warn logs a warning message.
	Warn(msg string, args ...any)

	// Error logs an error message.
	Error(msg string, args ...any)
}

// NoOpLogger is a logger that does nothing.
type NoOpLogger struct{}

func (NoOpLogger) Debug(msg string, args ...any) {}
func (NoOpLogger) Info(msg string, args ...any)  {}
func (NoOpLogger) Warn(msg string, args ...any)  {}
func (NoOpLogger) Error(msg string, args ...any) {}

// OrNoOp returns l, or a NoOpLogger when l is nil.
func OrNoOp(l Logger) Logger {
	if l == nil {
		return NoOpLogger{}
	}
	return l
}
