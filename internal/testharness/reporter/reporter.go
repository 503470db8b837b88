// Package reporter writes verification results: the per-device report.txt
// and console summaries in text, JSON or JUnit form.
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Reporter formats and outputs device results.
type Reporter interface {
	// ReportDevice reports the results of one device run.
	ReportDevice(result *DeviceResult)
}

// New returns the reporter for format ("text", "json" or "junit").
func New(format string, w io.Writer, verbose bool) (Reporter, error) {
	switch format {
	case "", "text":
		return NewTextReporter(w, verbose), nil
	case "json":
		return NewJSONReporter(w, verbose), nil
	case "junit":
		return NewJUnitReporter(w), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// TextReporter outputs human-readable text reports.
type TextReporter struct {
	writer  io.Writer
	verbose bool
}

// NewTextReporter creates a new text reporter.
func NewTextReporter(w io.Writer, verbose bool) *TextReporter {
	return &TextReporter{
		writer:  w,
		verbose: verbose,
	}
}

// ReportDevice reports device results in text format.
func (r *TextReporter) ReportDevice(result *DeviceResult) {
	id := result.Identity
	fmt.Fprintf(r.writer, "\n=== Device: %s (%s %s) ===\n", id.Serial, id.Product, id.Model)
	fmt.Fprintf(r.writer, "Duration: %s\n", result.Duration.Round(time.Millisecond))
	if result.ReportDir != "" {
		fmt.Fprintf(r.writer, "Report:   %s\n", result.ReportDir)
	}
	fmt.Fprintf(r.writer, "\n")

	if len(result.Baseline) > 0 {
		fmt.Fprintf(r.writer, "Baseline mismatches: %d\n", len(result.Baseline))
		if r.verbose {
			for _, f := range result.Baseline {
				fmt.Fprintf(r.writer, "    %s: expected %q, got %q\n", f.Path, f.Expected, f.Actual)
			}
		}
	}

	for _, sr := range result.Scenes {
		status := "PASS"
		if !sr.Passed() {
			status = "FAIL"
		}
		fmt.Fprintf(r.writer, "[%s] %s (%s, %d tunables)\n", status, sr.Name, sr.ID, sr.Tunables)
		if sr.Error != "" {
			fmt.Fprintf(r.writer, "       Error: %s\n", sr.Error)
		}
		if r.verbose {
			for _, f := range sr.Findings {
				fmt.Fprintf(r.writer, "       [%s] %s: expected %q, got %q\n", f.Phase, f.Path, f.Expected, f.Actual)
			}
		}
	}

	if result.Err != nil {
		fmt.Fprintf(r.writer, "\nAborted: %v\n", result.Err)
	}

	// Summary
	fmt.Fprintf(r.writer, "\n--- Summary ---\n")
	fmt.Fprintf(r.writer, "Total:   %d\n", len(result.Scenes))
	fmt.Fprintf(r.writer, "Passed:  %d\n", result.PassCount())
	fmt.Fprintf(r.writer, "Failed:  %d\n", result.FailCount())
	if len(result.Scenes) > 0 {
		fmt.Fprintf(r.writer, "Pass Rate: %.1f%%\n", result.PassRate())
	}
}

// JSONReporter outputs JSON-formatted reports.
type JSONReporter struct {
	writer io.Writer
	pretty bool
}

// NewJSONReporter creates a new JSON reporter.
func NewJSONReporter(w io.Writer, pretty bool) *JSONReporter {
	return &JSONReporter{
		writer: w,
		pretty: pretty,
	}
}

// JSONDeviceResult is the JSON representation of a device run.
type JSONDeviceResult struct {
	Serial    string         `json:"serial"`
	Product   string         `json:"product"`
	Model     string         `json:"model"`
	RunID     string         `json:"run_id"`
	ReportDir string         `json:"report_dir,omitempty"`
	Duration  string         `json:"duration"`
	Total     int            `json:"total"`
	Passed    int            `json:"passed"`
	Failed    int            `json:"failed"`
	PassRate  float64        `json:"pass_rate"`
	Baseline  []Finding      `json:"baseline,omitempty"`
	Scenes    []*SceneResult `json:"scenes"`
	Error     string         `json:"error,omitempty"`
}

// ReportDevice reports device results in JSON format.
func (r *JSONReporter) ReportDevice(result *DeviceResult) {
	jr := JSONDeviceResult{
		Serial:    result.Identity.Serial,
		Product:   result.Identity.Product,
		Model:     result.Identity.Model,
		RunID:     result.RunID,
		ReportDir: result.ReportDir,
		Duration:  result.Duration.Round(time.Millisecond).String(),
		Total:     len(result.Scenes),
		Passed:    result.PassCount(),
		Failed:    result.FailCount(),
		PassRate:  result.PassRate(),
		Baseline:  result.Baseline,
		Scenes:    result.Scenes,
	}
	if jr.Scenes == nil {
		jr.Scenes = []*SceneResult{}
	}
	if result.Err != nil {
		jr.Error = result.Err.Error()
	}
	r.writeJSON(jr)
}

func (r *JSONReporter) writeJSON(v any) {
	var data []byte
	var err error

	if r.pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		fmt.Fprintf(r.writer, `{"error": "failed to marshal: %s"}`, err)
		return
	}

	fmt.Fprintln(r.writer, string(data))
}

// JUnitReporter outputs JUnit XML for CI integration: one testsuite per
// device, one testcase per scene.
type JUnitReporter struct {
	writer io.Writer
}

// NewJUnitReporter creates a new JUnit reporter.
func NewJUnitReporter(w io.Writer) *JUnitReporter {
	return &JUnitReporter{writer: w}
}

// ReportDevice reports device results in JUnit XML format.
func (r *JUnitReporter) ReportDevice(result *DeviceResult) {
	var b strings.Builder

	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString("\n")

	name := "PowerHint " + result.Identity.Serial
	fmt.Fprintf(&b, `<testsuite name="%s" tests="%d" failures="%d" time="%.3f">`,
		escapeXML(name),
		len(result.Scenes),
		result.FailCount(),
		result.Duration.Seconds())
	b.WriteString("\n")

	for _, sr := range result.Scenes {
		fmt.Fprintf(&b, `  <testcase name="%s" classname="%s" time="%.3f">`,
			escapeXML(sr.Name),
			escapeXML(result.Identity.Product),
			sr.Duration.Seconds())
		b.WriteString("\n")

		if !sr.Passed() {
			msg := sr.Error
			if msg == "" {
				msg = fmt.Sprintf("%d mismatches", len(sr.Findings))
			}
			fmt.Fprintf(&b, `    <failure message="%s">`, escapeXML(msg))
			b.WriteString("\n")

			b.WriteString("      <![CDATA[")
			for _, f := range sr.Findings {
				fmt.Fprintf(&b, "%s %s: expected %s, got %s\n", f.Phase, f.Path, f.Expected, f.Actual)
			}
			b.WriteString("]]>\n")
			b.WriteString("    </failure>\n")
		}

		b.WriteString("  </testcase>\n")
	}

	b.WriteString("</testsuite>\n")

	fmt.Fprint(r.writer, b.String())
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}
