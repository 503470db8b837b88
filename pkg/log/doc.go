// Package log provides the structured device event log for PowerHint runs.
//
// Every adb invocation, scene state transition and value check made during a
// device run can be captured as an Event. The event log is separate from
// operational logging (zerolog): it is a complete machine-readable trace of
// what was sent to the device and what came back, for debugging runs after
// the fact.
//
// # Basic Usage
//
//	// Console only, at debug level
//	cfg.EventLogger = log.NewZerologAdapter(zlog.Logger)
//
//	// Binary file next to the report
//	cfg.EventLogger, _ = log.NewFileLogger("PowerHint-test-XXXX/events.plog")
//
//	// Both
//	cfg.EventLogger = log.NewMultiLogger(
//	    log.NewZerologAdapter(zlog.Logger),
//	    fileLogger,
//	)
//
// # Event Types
//
//   - Command: one adb invocation with its output (CommandEvent)
//   - State: a scene moving through the verification states (StateChangeEvent)
//   - Check: one live value compared against an expected value (CheckEvent)
//   - Error: a failure that did not abort the run (ErrorEventData)
//
// # File Format
//
// Log files are a stream of CBOR-encoded events with the .plog extension.
// The powerhint-log tool views, summarises and exports them.
package log
