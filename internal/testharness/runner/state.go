package runner

import (
	"context"
	"time"

	plog "github.com/Kscope-Devices/android-device-duoqin-qin2pro/pkg/log"
)

// State is a step of the scene verification.
type State string

const (
	StateIdle             State = "Idle"
	StateActivating       State = "Activating"
	StateCheckingApplied  State = "CheckingApplied"
	StateDeactivating     State = "Deactivating"
	StateCheckingRestored State = "CheckingRestored"
	StateDone             State = "Done"
)

// transition records the move from one state to the next and returns the
// new state.
func (s *Session) transition(ctx context.Context, from, to State, reason string) State {
	s.events.Log(plog.Event{
		Timestamp: time.Now(),
		RunID:     s.runID,
		Serial:    s.transport.Serial(),
		Category:  plog.CategoryState,
		Scene:     plog.SceneFrom(ctx),
		StateChange: &plog.StateChangeEvent{
			OldState: string(from),
			NewState: string(to),
			Reason:   reason,
		},
	})
	return to
}
