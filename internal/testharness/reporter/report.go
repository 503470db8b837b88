package reporter

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Kscope-Devices/android-device-duoqin-qin2pro/internal/device"
)

// ReportFile is the name of the report inside a device report directory.
const ReportFile = "report.txt"

// ReportDirName returns the per-device report directory name,
// PowerHint-test-<serial>_<product>_<YYYY-MM-DD-HH-MM-SS>.
func ReportDirName(id device.Identity, at time.Time) string {
	return fmt.Sprintf("PowerHint-test-%s_%s_%s", id.Serial, id.Product, at.Format("2006-01-02-15-04-05"))
}

// ReportWriter writes the plain-text device report. The first write error
// is kept and returned by Close; later writes are dropped.
type ReportWriter struct {
	w      *bufio.Writer
	closer io.Closer
	err    error
	closed bool
}

// NewReportWriter writes the report to w. If w is an io.Closer it is closed
// by Close.
func NewReportWriter(w io.Writer) *ReportWriter {
	rw := &ReportWriter{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		rw.closer = c
	}
	return rw
}

// CreateReport creates dir and the report file in it.
func CreateReport(dir string) (*ReportWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, ReportFile))
	if err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	return NewReportWriter(f), nil
}

func (r *ReportWriter) printf(format string, args ...any) {
	if r.err != nil || r.closed {
		return
	}
	_, r.err = fmt.Fprintf(r.w, format, args...)
}

// Header writes the device information line.
func (r *ReportWriter) Header(id device.Identity) {
	r.printf("Test device information device_id: %s, device_product: %s, device_model: %s, device_name: %s\n\n",
		id.Serial, id.Product, id.Model, id.Name)
}

// BaselineMismatch records a tunable whose live value differs from its
// declared default.
func (r *ReportWriter) BaselineMismatch(path, setting, current string) {
	r.printf("Resource default value %s setting fail!!!\n", path)
	r.printf("Path: %s\n", path)
	r.printf("Setting value: %s\n", setting)
	r.printf("Current value: %s\n", current)
}

// SceneStart opens a scene block.
func (r *ReportWriter) SceneStart(scene string) {
	r.printf("Scene %s test start!!!\n", scene)
}

// EnterScene marks the scene as activated.
func (r *ReportWriter) EnterScene(scene string) {
	r.printf("Enter scene %s!!!\n", scene)
}

// AppliedMismatch records a tunable that does not hold the scene value.
func (r *ReportWriter) AppliedMismatch(path, setting, current string) {
	r.printf("Path: %s fail!!!\n", path)
	r.printf("Setting value: %s\n", setting)
	r.printf("Current value: %s\n", current)
}

// ExitScene marks the scene as deactivated.
func (r *ReportWriter) ExitScene(scene string) {
	r.printf("Exit scene %s!!!\n", scene)
}

// RestoredMismatch records a tunable that did not return to its baseline.
func (r *ReportWriter) RestoredMismatch(path, def, current string) {
	r.printf("Path: %s fail!!!\n", path)
	r.printf("Default value: %s\n", def)
	r.printf("Current value: %s\n", current)
}

// CallFailed records a scene enable or disable call that did not go through.
func (r *ReportWriter) CallFailed(scene, action string, err error) {
	r.printf("Scene %s %s call fail!!!\n", scene, action)
	r.printf("Error: %v\n", err)
}

// SceneEnd closes a scene block.
func (r *ReportWriter) SceneEnd(scene string) {
	r.printf("Scene %s test end!!!\n\n", scene)
}

// Results writes the closing result section.
func (r *ReportWriter) Results(scenes []*device.Scene) {
	r.printf("Test results:\n")
	for _, s := range scenes {
		r.printf("%s: %s\n", s.Name, s.Result)
	}
}

// Flush writes buffered lines to the underlying writer.
func (r *ReportWriter) Flush() error {
	if r.err == nil && !r.closed {
		r.err = r.w.Flush()
	}
	return r.err
}

// Close flushes and closes the report. Calling it again is a no-op.
func (r *ReportWriter) Close() error {
	if r.closed {
		return r.err
	}
	if r.err == nil {
		r.err = r.w.Flush()
	}
	r.closed = true
	if f, ok := r.closer.(interface{ Sync() error }); ok && r.err == nil {
		r.err = f.Sync()
	}
	if r.closer != nil {
		if err := r.closer.Close(); err != nil && r.err == nil {
			r.err = err
		}
	}
	return r.err
}
