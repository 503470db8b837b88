package reporter

import (
	"time"

	"github.com/Kscope-Devices/android-device-duoqin-qin2pro/internal/device"
)

// Finding is one value mismatch.
type Finding struct {
	// Phase is "baseline", "applied" or "restored".
	Phase    string `json:"phase"`
	Path     string `json:"path"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// SceneResult is the outcome of verifying one scene.
type SceneResult struct {
	Name     string        `json:"name"`
	ID       string        `json:"id"`
	Result   device.Result `json:"result"`
	Tunables int           `json:"tunables"`
	Findings []Finding     `json:"findings,omitempty"`

	// Error is set when the scene could not be toggled.
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"-"`
}

// Passed reports whether the scene verified successfully.
func (s *SceneResult) Passed() bool {
	return s.Result == device.Success
}

// DeviceResult is the outcome of one device run.
type DeviceResult struct {
	Identity  device.Identity
	RunID     string
	ReportDir string
	Duration  time.Duration

	// Baseline holds the device-wide default value mismatches. They never
	// fail a scene.
	Baseline []Finding
	Scenes   []*SceneResult

	// Err is set when the run was aborted.
	Err error
}

// PassCount returns the number of successful scenes.
func (r *DeviceResult) PassCount() int {
	n := 0
	for _, s := range r.Scenes {
		if s.Passed() {
			n++
		}
	}
	return n
}

// FailCount returns the number of failed scenes.
func (r *DeviceResult) FailCount() int {
	return len(r.Scenes) - r.PassCount()
}

// PassRate returns the share of successful scenes in percent.
func (r *DeviceResult) PassRate() float64 {
	if len(r.Scenes) == 0 {
		return 0
	}
	return float64(r.PassCount()) / float64(len(r.Scenes)) * 100
}
