// Package commands implements the powerhint-log CLI commands.
package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Kscope-Devices/android-device-duoqin-qin2pro/pkg/log"
)

const timeLayout = "2006-01-02T15:04:05.000000Z"

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format(timeLayout)
	fmt.Fprintf(w, "%s [run:%s] %s %-7s %s\n", ts, shortenRunID(event.RunID), event.Serial, event.Category, eventLabel(event))

	switch {
	case event.Command != nil:
		formatCommandDetails(w, event.Command)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Check != nil:
		formatCheckDetails(w, event.Check)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

// eventLabel is the scene name, or the adb sub command for events outside
// a scene.
func eventLabel(event log.Event) string {
	if event.Scene != "" {
		return event.Scene
	}
	if event.Command != nil {
		for i, a := range event.Command.Args {
			if a == "-s" {
				continue
			}
			if i > 0 && event.Command.Args[i-1] == "-s" {
				continue
			}
			return a
		}
	}
	return "-"
}

// shortenRunID returns the first 8 characters of the run ID.
func shortenRunID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatCommandDetails(w io.Writer, cmd *log.CommandEvent) {
	fmt.Fprintf(w, "  adb %s\n", strings.Join(cmd.Args, " "))
	fmt.Fprintf(w, "  Duration: %s\n", formatDuration(cmd.Duration))
	if out := strings.TrimSpace(cmd.Output); out != "" {
		fmt.Fprintf(w, "  Output: %s", out)
		if cmd.Truncated {
			fmt.Fprint(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
	if cmd.ExitError != "" {
		fmt.Fprintf(w, "  Error: %s\n", cmd.ExitError)
	}
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatCheckDetails(w io.Writer, c *log.CheckEvent) {
	verdict := "FAIL"
	switch {
	case c.Skipped:
		verdict = "SKIP"
	case c.Passed:
		verdict = "PASS"
	}
	fmt.Fprintf(w, "  %s %s %s\n", c.Phase, verdict, c.Path)
	fmt.Fprintf(w, "  Expected: %s  Actual: %s\n", c.Expected, c.Actual)
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// ParseCategoryFlag parses a category string from a command-line flag
// (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "command":
		return log.CategoryCommand, nil
	case "state":
		return log.CategoryState, nil
	case "check":
		return log.CategoryCheck, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be command, state, check, or error)", s)
	}
}

// RunView writes every event matching filter to output.
func RunView(path string, filter log.Filter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}

	return nil
}
