package log

import (
	"io"
	"path/filepath"
	"testing"
	"time"
)

func createTestLogFile(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.plog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create test log: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

func readAll(t *testing.T, r *Reader) []Event {
	t.Helper()
	var read []Event
	for {
		event, err := r.Next()
		if err == io.EOF {
			return read
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		read = append(read, event)
	}
}

func TestReaderIteratesEvents(t *testing.T) {
	now := time.Now()
	events := []Event{
		{Timestamp: now, RunID: "run-1", Category: CategoryCommand},
		{Timestamp: now, RunID: "run-1", Category: CategoryState, Scene: "launch"},
		{Timestamp: now, RunID: "run-1", Category: CategoryCheck, Scene: "launch"},
	}

	reader, err := NewReader(createTestLogFile(t, events))
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	read := readAll(t, reader)
	if len(read) != 3 {
		t.Fatalf("got %d events, want 3", len(read))
	}
	if read[0].Category != CategoryCommand || read[2].Category != CategoryCheck {
		t.Errorf("events out of order: %v, %v", read[0].Category, read[2].Category)
	}
}

func TestReaderFilters(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []Event{
		{Timestamp: base, RunID: "run-1", Serial: "A", Category: CategoryCommand},
		{Timestamp: base.Add(time.Second), RunID: "run-1", Serial: "A", Category: CategoryCheck, Scene: "launch"},
		{Timestamp: base.Add(2 * time.Second), RunID: "run-2", Serial: "B", Category: CategoryCheck, Scene: "video"},
		{Timestamp: base.Add(3 * time.Second), RunID: "run-2", Serial: "B", Category: CategoryError},
	}
	path := createTestLogFile(t, events)

	check := CategoryCheck
	start := base.Add(time.Second)
	end := base.Add(3 * time.Second)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 4},
		{"run", Filter{RunID: "run-2"}, 2},
		{"serial", Filter{Serial: "A"}, 2},
		{"scene", Filter{Scene: "launch"}, 1},
		{"category", Filter{Category: &check}, 2},
		{"time window", Filter{TimeStart: &start, TimeEnd: &end}, 2},
		{"combined", Filter{Serial: "B", Category: &check}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader, err := NewFilteredReader(path, tt.filter)
			if err != nil {
				t.Fatalf("NewFilteredReader failed: %v", err)
			}
			defer reader.Close()

			if got := len(readAll(t, reader)); got != tt.want {
				t.Errorf("got %d events, want %d", got, tt.want)
			}
		})
	}
}

func TestReaderMissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "missing.plog")); err == nil {
		t.Error("expected error for missing file")
	}
}
