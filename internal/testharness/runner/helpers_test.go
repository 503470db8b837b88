package runner

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Kscope-Devices/android-device-duoqin-qin2pro/internal/device"
	"github.com/Kscope-Devices/android-device-duoqin-qin2pro/internal/testharness/loader"
	"github.com/Kscope-Devices/android-device-duoqin-qin2pro/internal/testharness/reporter"
	plog "github.com/Kscope-Devices/android-device-duoqin-qin2pro/pkg/log"
)

const parcelOK = "Result: Parcel(00000000    '....')\n"

// ---------------------------------------------------------------------------
// stubTransport
// ---------------------------------------------------------------------------

type stubTransport struct {
	mock.Mock
	serial string
}

func newStubTransport(serial string) *stubTransport {
	return &stubTransport{serial: serial}
}

func (t *stubTransport) Serial() string                          { return t.serial }
func (t *stubTransport) Root(ctx context.Context) error          { return t.Called(ctx).Error(0) }
func (t *stubTransport) RebootAndWait(ctx context.Context) error { return t.Called(ctx).Error(0) }
func (t *stubTransport) Pull(ctx context.Context, remote, local string) error {
	return t.Called(ctx, remote, local).Error(0)
}
func (t *stubTransport) SetProperty(ctx context.Context, name, value string) error {
	return t.Called(ctx, name, value).Error(0)
}
func (t *stubTransport) Shell(ctx context.Context, args ...string) (string, error) {
	ret := t.Called(ctx, args)
	return ret.String(0), ret.Error(1)
}

// onRead expects one read of path returning value.
func (t *stubTransport) onRead(path, value string) *mock.Call {
	return t.On("Shell", mock.Anything, []string{"cat", path}).Return(value, nil).Once()
}

// onToggle expects the power service call for a scene id.
func (t *stubTransport) onToggle(id string, enable bool) *mock.Call {
	flag := "0"
	if enable {
		flag = "1"
	}
	return t.On("Shell", mock.Anything, []string{"service", "call", "power", "5", "i32", id, "i32", flag}).Return(parcelOK, nil).Once()
}

// ---------------------------------------------------------------------------
// recordingLogger
// ---------------------------------------------------------------------------

type recordingLogger struct {
	mu     sync.Mutex
	events []plog.Event
}

func (r *recordingLogger) Log(e plog.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingLogger) byCategory(c plog.Category) []plog.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []plog.Event
	for _, e := range r.events {
		if e.Category == c {
			out = append(out, e)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// fixtures
// ---------------------------------------------------------------------------

var testIdentity = device.Identity{
	Serial:  "SER1",
	USB:     "1-1",
	Product: "s9863a1h10",
	Model:   "QIN_2_Pro",
	Name:    "s9863a1h10",
}

func testConfig() Config {
	return Config{
		ConfigDir:         "/vendor/etc",
		Files:             loader.DefaultFileNames,
		WorkDir:           ".",
		ReportRoot:        ".",
		DiscoveryAttempts: 3,
		YlogProperty:      "persist.ylog.enabled",
		YlogDir:           "/storage/emulated/0/ylog",
		PowerService:      "power",
		PowerCode:         5,
	}
}

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// newTestSession returns a session writing its report to buf.
func newTestSession(t *testing.T, tr Transport, events plog.Logger) (*Session, *bytes.Buffer) {
	t.Helper()
	cfg := testConfig()
	cfg.EventLogger = events
	buf := &bytes.Buffer{}
	s := NewSession(cfg, tr, testIdentity, "run-1", reporter.NewReportWriter(buf))
	s.sleep = noSleep
	return s, buf
}

// flushReport closes the session report and returns its text.
func flushReport(t *testing.T, s *Session, buf *bytes.Buffer) string {
	t.Helper()
	require.NoError(t, s.report.Close())
	return buf.String()
}

func scene(name, id string, tunables ...device.Tunable) *device.Scene {
	s := device.NewScene(name)
	s.ID = id
	for _, tun := range tunables {
		s.AddTunable(tun.Path, tun.Value)
	}
	if len(tunables) > 0 {
		s.ConfigQuantity = len(tunables)
	}
	return s
}
