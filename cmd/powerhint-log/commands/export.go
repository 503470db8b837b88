package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Kscope-Devices/android-device-duoqin-qin2pro/pkg/log"
)

// jsonEvent is the JSONL form of an event. Category and phase are written
// by name.
type jsonEvent struct {
	Timestamp   string                `json:"timestamp"`
	RunID       string                `json:"run_id"`
	Serial      string                `json:"serial,omitempty"`
	Category    string                `json:"category"`
	Scene       string                `json:"scene,omitempty"`
	Command     *log.CommandEvent     `json:"command,omitempty"`
	StateChange *log.StateChangeEvent `json:"state_change,omitempty"`
	Check       *jsonCheck            `json:"check,omitempty"`
	Error       *log.ErrorEventData   `json:"error,omitempty"`
}

type jsonCheck struct {
	Phase    string `json:"phase"`
	Path     string `json:"path"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Passed   bool   `json:"passed"`
	Skipped  bool   `json:"skipped,omitempty"`
}

func toJSONEvent(e log.Event) jsonEvent {
	je := jsonEvent{
		Timestamp:   e.Timestamp.UTC().Format(timeLayout),
		RunID:       e.RunID,
		Serial:      e.Serial,
		Category:    e.Category.String(),
		Scene:       e.Scene,
		Command:     e.Command,
		StateChange: e.StateChange,
		Error:       e.Error,
	}
	if c := e.Check; c != nil {
		je.Check = &jsonCheck{
			Phase:    c.Phase.String(),
			Path:     c.Path,
			Expected: c.Expected,
			Actual:   c.Actual,
			Passed:   c.Passed,
			Skipped:  c.Skipped,
		}
	}
	return je
}

// RunExport writes the events of path to w in the given format.
func RunExport(path, format string, w io.Writer) error {
	if format != "jsonl" && format != "csv" {
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}

	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	if format == "jsonl" {
		return exportJSONL(reader, w)
	}
	return exportCSV(reader, w)
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(toJSONEvent(event)); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)

	header := []string{"timestamp", "run_id", "serial", "category", "scene", "detail", "duration_ms", "result"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		detail, duration, result := csvColumns(event)
		row := []string{
			event.Timestamp.UTC().Format(timeLayout),
			event.RunID,
			event.Serial,
			event.Category.String(),
			event.Scene,
			detail,
			duration,
			result,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// csvColumns flattens the type-specific payload.
func csvColumns(e log.Event) (detail, duration, result string) {
	switch {
	case e.Command != nil:
		detail = strings.Join(e.Command.Args, " ")
		duration = strconv.FormatFloat(float64(e.Command.Duration.Microseconds())/1000, 'f', 3, 64)
		result = "ok"
		if e.Command.ExitError != "" {
			result = e.Command.ExitError
		}
	case e.StateChange != nil:
		detail = e.StateChange.OldState + "->" + e.StateChange.NewState
		result = e.StateChange.Reason
	case e.Check != nil:
		detail = e.Check.Phase.String() + " " + e.Check.Path
		switch {
		case e.Check.Skipped:
			result = "skip"
		case e.Check.Passed:
			result = "pass"
		default:
			result = fmt.Sprintf("fail expected=%s actual=%s", e.Check.Expected, e.Check.Actual)
		}
	case e.Error != nil:
		detail = e.Error.Context
		result = e.Error.Message
	}
	return detail, duration, result
}
