package cmd

import (
	"testing"
	"time"
)

func TestRootCommandTree(t *testing.T) {
	root := NewRootCmd()

	want := []string{"agents", "ingest", "ask", "sessions", "usage", "migrate", "version"}
	for _, name := range want {
		found := false
		for _, c := range root.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestParseAgentID(t *testing.T) {
	id, err := parseAgentID("42")
	if err != nil {
		t.Fatalf("parseAgentID(42) error: %v", err)
	}
	if id != 42 {
		t.Errorf("id = %d, want 42", id)
	}

	if _, err := parseAgentID("not-a-number"); err == nil {
		t.Error("parseAgentID accepted garbage")
	}
}

func TestMimeTypeOf(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"notes.txt", "text/plain; charset=utf-8"},
		{"paper.pdf", "application/pdf"},
		{"data.json", "application/json"},
		{"no-extension", "text/plain"},
	}
	for _, tt := range tests {
		if got := mimeTypeOf(tt.path); got != tt.want {
			t.Errorf("mimeTypeOf(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestFormatTime(t *testing.T) {
	now := time.Now()

	if got := formatTime(now); got != "just now" {
		t.Errorf("formatTime(now) = %q", got)
	}
	if got := formatTime(now.Add(-5 * time.Minute)); got != "5 minutes ago" {
		t.Errorf("formatTime(-5m) = %q", got)
	}
	old := time.Date(2024, 3, 1, 9, 30, 0, 0, time.Local)
	if got := formatTime(old); got != "2024-03-01 09:30" {
		t.Errorf("formatTime(old) = %q", got)
	}
}
