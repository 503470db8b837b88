package log

// Logger is the interface applications implement to receive device events.
// Pass NoopLogger to disable logging.
type Logger interface {
	// Log records a device event. Implementations must be safe for concurrent use.
	Log(event Event)
}

// NoopLogger discards all events.
// NoopLogger is safe for concurrent use and usable as a zero value.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// Compile-time interface satisfaction check.
var _ Logger = NoopLogger{}
