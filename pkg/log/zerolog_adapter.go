package log

import (
	"github.com/rs/zerolog"
)

// ZerologAdapter mirrors device events onto a zerolog.Logger at debug level.
type ZerologAdapter struct {
	logger zerolog.Logger
}

// NewZerologAdapter creates a ZerologAdapter writing to logger.
func NewZerologAdapter(logger zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{logger: logger}
}

// Log writes the event to the zerolog logger.
func (a *ZerologAdapter) Log(event Event) {
	e := a.logger.Debug().
		Str("run_id", event.RunID).
		Str("category", event.Category.String())
	if event.Serial != "" {
		e = e.Str("serial", event.Serial)
	}
	if event.Scene != "" {
		e = e.Str("scene", event.Scene)
	}

	switch {
	case event.Command != nil:
		e = e.Strs("args", event.Command.Args).
			Dur("duration", event.Command.Duration).
			Int("output_size", len(event.Command.Output))
		if event.Command.ExitError != "" {
			e = e.Str("exit_error", event.Command.ExitError)
		}
	case event.StateChange != nil:
		e = e.Str("old_state", event.StateChange.OldState).
			Str("new_state", event.StateChange.NewState)
		if event.StateChange.Reason != "" {
			e = e.Str("reason", event.StateChange.Reason)
		}
	case event.Check != nil:
		e = e.Str("phase", event.Check.Phase.String()).
			Str("path", event.Check.Path).
			Str("expected", event.Check.Expected).
			Str("actual", event.Check.Actual).
			Bool("passed", event.Check.Passed)
	case event.Error != nil:
		e = e.Str("error_msg", event.Error.Message).
			Str("error_context", event.Error.Context)
	}

	e.Msg("device event")
}

var _ Logger = (*ZerologAdapter)(nil)
