// Package adb drives Android devices through the adb binary.
//
// A Client lists and discovers devices; a Device runs the commands the
// verification driver needs against one serial. Every invocation is recorded
// as a Command event on the device event log.
package adb

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	plog "github.com/Kscope-Devices/android-device-duoqin-qin2pro/pkg/log"
)

// ErrDiscoveryTimeout is returned when no device shows up within the
// configured number of attempts.
var ErrDiscoveryTimeout = errors.New("no device found")

// CommandRunner executes an external command and returns its combined output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements CommandRunner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// TransportError is a failed adb invocation.
type TransportError struct {
	Args   []string
	Output string
	Err    error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("adb %s: %v", strings.Join(e.Args, " "), e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Client wraps the adb binary.
type Client struct {
	binary string
	runner CommandRunner
	events plog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithCommandRunner replaces the os/exec runner, e.g. with a fake in tests.
func WithCommandRunner(r CommandRunner) Option {
	return func(c *Client) { c.runner = r }
}

// WithEventLogger sets the device event log that receives Command events.
func WithEventLogger(l plog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.events = l
		}
	}
}

// NewClient creates a client for the adb binary at binary ("adb" if empty).
func NewClient(binary string, opts ...Option) *Client {
	if binary == "" {
		binary = "adb"
	}
	c := &Client{
		binary: binary,
		runner: ExecRunner{},
		events: plog.NoopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Device returns a handle on the device with the given serial. Events it
// records carry runID.
func (c *Client) Device(serial, runID string) *Device {
	return &Device{client: c, serial: serial, runID: runID}
}

// run invokes adb and records the invocation. serial may be empty for
// host-side commands.
func (c *Client) run(ctx context.Context, serial, runID string, args ...string) (string, error) {
	full := args
	if serial != "" {
		full = append([]string{"-s", serial}, args...)
	}

	start := time.Now()
	out, err := c.runner.Run(ctx, c.binary, full...)
	elapsed := time.Since(start)

	c.events.Log(plog.Event{
		Timestamp: start,
		RunID:     runID,
		Serial:    serial,
		Category:  plog.CategoryCommand,
		Scene:     plog.SceneFrom(ctx),
		Command:   plog.NewCommandEvent(full, out, elapsed, err),
	})

	if err != nil {
		log.Debug().Err(err).Strs("args", full).Msg("adb command failed")
		return string(out), &TransportError{Args: full, Output: string(out), Err: err}
	}
	return string(out), nil
}

// Connect asks the adb server to connect to a wireless debugging endpoint.
func (c *Client) Connect(ctx context.Context, addr string) error {
	out, err := c.run(ctx, "", "", "connect", addr)
	if err != nil {
		return err
	}
	// adb connect exits 0 even when it could not reach the device.
	if !strings.Contains(out, "connected to") {
		return &TransportError{Args: []string{"connect", addr}, Output: out, Err: errors.New("connection refused")}
	}
	return nil
}
