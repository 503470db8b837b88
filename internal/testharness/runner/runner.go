// Package runner verifies PowerHint scenes on real Android devices.
//
// For every attached device the runner prepares the vendor log, pulls the
// PowerHint configuration, checks the default value of every tunable and
// then enables and disables each scene in turn, comparing live sysfs values
// against the configuration. Devices and scenes are processed strictly one
// after another.
package runner

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Kscope-Devices/android-device-duoqin-qin2pro/internal/config"
	"github.com/Kscope-Devices/android-device-duoqin-qin2pro/internal/device"
	"github.com/Kscope-Devices/android-device-duoqin-qin2pro/internal/testharness/loader"
	"github.com/Kscope-Devices/android-device-duoqin-qin2pro/internal/testharness/reporter"
	plog "github.com/Kscope-Devices/android-device-duoqin-qin2pro/pkg/log"
)

// Transport is the device connection the runner drives.
type Transport interface {
	// Serial returns the serial of the device.
	Serial() string

	// Root restarts the device daemon with root permissions.
	Root(ctx context.Context) error

	// Pull copies a remote file or directory to a local path.
	Pull(ctx context.Context, remote, local string) error

	// Shell runs a command in the device shell and returns its output.
	Shell(ctx context.Context, args ...string) (string, error)

	// SetProperty sets a system property.
	SetProperty(ctx context.Context, name, value string) error

	// RebootAndWait reboots the device and returns once it is reachable.
	RebootAndWait(ctx context.Context) error
}

// DeviceLister finds attached devices.
type DeviceLister interface {
	WaitForDevice(ctx context.Context, attempts int, interval time.Duration) ([]device.Identity, error)
}

// TransportFunc opens the transport for a device. runID tags the events the
// transport records.
type TransportFunc func(serial, runID string) Transport

// Config configures the runner.
type Config struct {
	// ConfigDir is the device directory holding the configuration documents.
	ConfigDir string
	Files     loader.FileNames

	// WorkDir receives the pulled documents; they are removed after each device.
	WorkDir string

	// ReportRoot is the parent of the per-device report directories.
	ReportRoot string

	DiscoveryAttempts int
	DiscoveryInterval time.Duration

	// Fixed settle delays.
	SceneSettle  time.Duration
	RootSettle   time.Duration
	RebootSettle time.Duration

	// Ylog preparation. When YlogEnabled is false the device is neither
	// rebooted nor are logs pulled.
	YlogEnabled  bool
	YlogProperty string
	YlogDir      string

	// PowerService and PowerCode form the binder call that toggles a scene:
	// service call <PowerService> <PowerCode> i32 <id> i32 <1|0>.
	PowerService string
	PowerCode    int

	// SceneFilter selects the scenes to verify. nil verifies all.
	SceneFilter *regexp.Regexp

	// EventLogger receives state and check events. nil disables them.
	EventLogger plog.Logger
}

// ConfigFrom derives the runner configuration from the tool configuration.
func ConfigFrom(c *config.Config) (Config, error) {
	rc := Config{
		ConfigDir:         c.ConfigDir,
		Files:             c.Files,
		WorkDir:           c.WorkDir,
		ReportRoot:        c.ReportRoot,
		DiscoveryAttempts: c.Discovery.Attempts,
		DiscoveryInterval: c.Discovery.Interval.Duration(),
		SceneSettle:       c.Settle.Scene.Duration(),
		RootSettle:        c.Settle.Root.Duration(),
		RebootSettle:      c.Settle.Reboot.Duration(),
		YlogEnabled:       c.Ylog.Enabled,
		YlogProperty:      c.Ylog.Property,
		YlogDir:           c.Ylog.Dir,
		PowerService:      c.PowerService.Name,
		PowerCode:         c.PowerService.Code,
	}
	if c.Scenes != "" {
		re, err := regexp.Compile(c.Scenes)
		if err != nil {
			return Config{}, fmt.Errorf("scene filter: %w", err)
		}
		rc.SceneFilter = re
	}
	return rc, nil
}

// Runner verifies every attached device.
type Runner struct {
	config   Config
	devices  DeviceLister
	open     TransportFunc
	reporter reporter.Reporter
	events   plog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
}

// New creates a runner. rep may be nil if no console summary is wanted.
func New(cfg Config, devices DeviceLister, open TransportFunc, rep reporter.Reporter) *Runner {
	events := cfg.EventLogger
	if events == nil {
		events = plog.NoopLogger{}
	}
	return &Runner{
		config:   cfg,
		devices:  devices,
		open:     open,
		reporter: rep,
		events:   events,
		sleep:    contextSleep,
		now:      time.Now,
	}
}

// RunAll waits for a device to be attached and then verifies every listed
// device in turn. Only discovery failures and cancellation are returned as
// errors; a failed device run is recorded in its result.
func (r *Runner) RunAll(ctx context.Context) ([]*reporter.DeviceResult, error) {
	ids, err := r.devices.WaitForDevice(ctx, r.config.DiscoveryAttempts, r.config.DiscoveryInterval)
	if err != nil {
		return nil, err
	}

	var results []*reporter.DeviceResult
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := r.RunDevice(ctx, id)
		if r.reporter != nil {
			r.reporter.ReportDevice(res)
		}
		results = append(results, res)
	}
	return results, nil
}

// RunDevice performs the complete verification of one device.
func (r *Runner) RunDevice(ctx context.Context, id device.Identity) *reporter.DeviceResult {
	runID := uuid.NewString()
	log.Info().Str("serial", id.Serial).Str("product", id.Product).Str("run_id", runID).Msg("Testing device")

	s := r.newSession(r.open(id.Serial, runID), id, runID)
	start := r.now()
	s.run(ctx, start)
	s.result.Duration = r.now().Sub(start)

	if s.result.Err != nil {
		log.Error().Err(s.result.Err).Str("serial", id.Serial).Msg("Device run aborted")
	}
	return s.result
}

func (r *Runner) newSession(t Transport, id device.Identity, runID string) *Session {
	s := NewSession(r.config, t, id, runID, nil)
	s.events = r.events
	s.sleep = r.sleep
	return s
}

// contextSleep waits for d or until ctx is done.
func contextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
