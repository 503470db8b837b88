package log

import (
	"time"
)

// MaxOutputSize caps the command output kept in a CommandEvent.
const MaxOutputSize = 4096

// Event is one entry of the device event log.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// RunID identifies one device run (UUID).
	RunID string `cbor:"2,keyasint"`

	// Serial is the adb serial of the device under test.
	Serial string `cbor:"3,keyasint,omitempty"`

	// Category classifies the event type.
	Category Category `cbor:"4,keyasint"`

	// Scene is the scene being verified, if any.
	Scene string `cbor:"5,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Command     *CommandEvent     `cbor:"10,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"11,keyasint,omitempty"`
	Check       *CheckEvent       `cbor:"12,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"`
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryCommand is an adb invocation.
	CategoryCommand Category = 0
	// CategoryState is a scene state transition.
	CategoryState Category = 1
	// CategoryCheck is a live value comparison.
	CategoryCheck Category = 2
	// CategoryError is a non-fatal error.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryCommand:
		return "COMMAND"
	case CategoryState:
		return "STATE"
	case CategoryCheck:
		return "CHECK"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// CommandEvent captures one adb invocation.
type CommandEvent struct {
	// Args are the adb arguments, without the adb binary itself.
	Args []string `cbor:"1,keyasint" json:"args"`

	// Output is the combined command output (may be truncated).
	Output string `cbor:"2,keyasint,omitempty" json:"output,omitempty"`

	// Truncated indicates if Output was cut at MaxOutputSize.
	Truncated bool `cbor:"3,keyasint,omitempty" json:"truncated,omitempty"`

	// Duration is the wall time of the invocation.
	Duration time.Duration `cbor:"4,keyasint" json:"duration_ns"`

	// ExitError is the error text if the command failed.
	ExitError string `cbor:"5,keyasint,omitempty" json:"exit_error,omitempty"`
}

// NewCommandEvent builds a CommandEvent, truncating output to MaxOutputSize.
func NewCommandEvent(args []string, output []byte, d time.Duration, err error) *CommandEvent {
	ce := &CommandEvent{
		Args:     append([]string(nil), args...),
		Duration: d,
	}
	if len(output) > MaxOutputSize {
		ce.Output = string(output[:MaxOutputSize])
		ce.Truncated = true
	} else {
		ce.Output = string(output)
	}
	if err != nil {
		ce.ExitError = err.Error()
	}
	return ce
}

// StateChangeEvent captures a scene moving between verification states.
type StateChangeEvent struct {
	// OldState is the previous state (may be empty).
	OldState string `cbor:"1,keyasint,omitempty" json:"old_state,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"2,keyasint" json:"new_state"`

	// Reason for the change (if available).
	Reason string `cbor:"3,keyasint,omitempty" json:"reason,omitempty"`
}

// CheckPhase says which verification step a check belongs to.
type CheckPhase uint8

const (
	// PhaseBaseline is the device-wide default value check.
	PhaseBaseline CheckPhase = 0
	// PhaseApplied checks a scene tunable after the scene was enabled.
	PhaseApplied CheckPhase = 1
	// PhaseRestored checks a tunable against its baseline after the scene was disabled.
	PhaseRestored CheckPhase = 2
)

// String returns the phase name.
func (p CheckPhase) String() string {
	switch p {
	case PhaseBaseline:
		return "BASELINE"
	case PhaseApplied:
		return "APPLIED"
	case PhaseRestored:
		return "RESTORED"
	default:
		return "UNKNOWN"
	}
}

// CheckEvent captures one value comparison.
type CheckEvent struct {
	Phase    CheckPhase `cbor:"1,keyasint"`
	Path     string     `cbor:"2,keyasint"`
	Expected string     `cbor:"3,keyasint"`
	Actual   string     `cbor:"4,keyasint"`
	Passed   bool       `cbor:"5,keyasint"`
	// Skipped is set when the expected value is unconstrained ("FF").
	Skipped bool `cbor:"6,keyasint,omitempty"`
}

// ErrorEventData captures an error that did not abort the run.
type ErrorEventData struct {
	// Message is the error message.
	Message string `cbor:"1,keyasint" json:"message"`

	// Context describes what operation was being performed.
	Context string `cbor:"2,keyasint,omitempty" json:"context,omitempty"`
}
