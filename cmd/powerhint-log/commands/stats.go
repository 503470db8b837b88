package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/Kscope-Devices/android-device-duoqin-qin2pro/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents      int
	EventsByCategory map[log.Category]int
	Runs             map[string]*DeviceRunStats
	Commands         int
	CommandTime      time.Duration
	FailedCommands   int
	Errors           int
	TimeRange        struct {
		Start time.Time
		End   time.Time
	}
}

// DeviceRunStats holds statistics for a single device run.
type DeviceRunStats struct {
	Serial    string
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Scenes    map[string]*SceneStats
}

// SceneStats counts the checks made while a scene was verified.
type SceneStats struct {
	Passed  int
	Failed  int
	Skipped int
}

func newStats() *Stats {
	return &Stats{
		EventsByCategory: make(map[log.Category]int),
		Runs:             make(map[string]*DeviceRunStats),
	}
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByCategory[event.Category]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	run, ok := s.Runs[event.RunID]
	if !ok {
		run = &DeviceRunStats{
			FirstSeen: event.Timestamp,
			LastSeen:  event.Timestamp,
			Scenes:    make(map[string]*SceneStats),
		}
		s.Runs[event.RunID] = run
	}
	run.Events++
	if event.Timestamp.After(run.LastSeen) {
		run.LastSeen = event.Timestamp
	}
	if run.Serial == "" {
		run.Serial = event.Serial
	}

	switch {
	case event.Command != nil:
		s.Commands++
		s.CommandTime += event.Command.Duration
		if event.Command.ExitError != "" {
			s.FailedCommands++
		}
	case event.Check != nil:
		name := event.Scene
		if name == "" {
			name = "(baseline)"
		}
		sc, ok := run.Scenes[name]
		if !ok {
			sc = &SceneStats{}
			run.Scenes[name] = sc
		}
		switch {
		case event.Check.Skipped:
			sc.Skipped++
		case event.Check.Passed:
			sc.Passed++
		default:
			sc.Failed++
		}
	case event.Error != nil:
		s.Errors++
	}
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := newStats()
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}

	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== PowerHint Event Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryCommand, log.CategoryState, log.CategoryCheck, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if stats.Commands > 0 {
		fmt.Fprintf(w, "Commands: %d (%d failed), total time %s\n",
			stats.Commands, stats.FailedCommands, stats.CommandTime.Round(time.Millisecond))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Runs: %d\n", len(stats.Runs))
	if len(stats.Runs) > 0 {
		type runInfo struct {
			id    string
			stats *DeviceRunStats
		}
		runs := make([]runInfo, 0, len(stats.Runs))
		for id, rs := range stats.Runs {
			runs = append(runs, runInfo{id, rs})
		}
		sort.Slice(runs, func(i, j int) bool {
			return runs[i].stats.FirstSeen.Before(runs[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, r := range runs {
			duration := r.stats.LastSeen.Sub(r.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %s %d events, duration %s\n", shortenRunID(r.id), r.stats.Serial, r.stats.Events, duration)

			names := make([]string, 0, len(r.stats.Scenes))
			for name := range r.stats.Scenes {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				sc := r.stats.Scenes[name]
				fmt.Fprintf(w, "           %-32s pass %d  fail %d  skip %d\n", name, sc.Passed, sc.Failed, sc.Skipped)
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
