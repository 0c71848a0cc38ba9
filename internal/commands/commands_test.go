package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"evently/internal/auth"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	doc := "timezone: UTC\n" +
		"data_dir: " + filepath.Join(dir, "data") + "\n" +
		"catalog:\n  default_year: 2024\n  refresh: \"off\"\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	old := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = old })

	cmd := New()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestEventsCommand(t *testing.T) {
	cfg := writeConfig(t)

	tests := []struct {
		name    string
		args    []string
		want    []string
		notWant []string
	}{
		{
			name:    "free by date",
			args:    []string{"events", "--price", "free", "--sort", "date"},
			want:    []string{"Events - 2 events", "Founder Workshop: GTM", "City Hackathon"},
			notWant: []string{"AI Leaders Summit"},
		},
		{
			name:    "category and page size",
			args:    []string{"events", "--category", "business", "--page-size", "1", "--page", "2", "--sort", "date"},
			want:    []string{"Events - 2 events", "B2B Networking Night", "page 2 of 2"},
			notWant: []string{"Founder Workshop"},
		},
		{
			name: "date range",
			args: []string{"events", "--from", "Sep 15", "--to", "2024-09-30", "--sort", "date"},
			want: []string{"Modern Art Expo", "City Hackathon"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, "", append(tt.args, "--config", cfg)...)
			if err != nil {
				t.Fatalf("events: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(out, w) {
					t.Errorf("output unexpectedly contains %q:\n%s", w, out)
				}
			}
		})
	}

	if _, err := run(t, "", "events", "--config", cfg, "--from", "someday"); err == nil {
		t.Error("expected error for bad --from")
	}
}

func TestEventCommand(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, "", "event", "2", "--config", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Sunset Sounds Festival") || !strings.Contains(out, "$75") {
		t.Errorf("event output:\n%s", out)
	}

	if _, err := run(t, "", "event", "99", "--config", cfg); err == nil {
		t.Error("expected error for unknown event")
	}
}

func TestCalendarCommand(t *testing.T) {
	cfg := writeConfig(t)
	old := timeNow
	timeNow = func() time.Time { return time.Date(2024, 9, 12, 10, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { timeNow = old })

	out, err := run(t, "", "calendar", "--config", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "September 2024") || !strings.Contains(out, "29 30") {
		t.Errorf("calendar output:\n%s", out)
	}

	out, err = run(t, "", "calendar", "--config", cfg, "--year", "2024", "--month", "10", "--day", "3")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "1 event(s) on October 3, 2024") || !strings.Contains(out, "Sunset Sounds Festival") {
		t.Errorf("day output:\n%s", out)
	}

	for _, args := range [][]string{
		{"calendar", "--config", cfg, "--month", "13"},
		{"calendar", "--config", cfg, "--month", "2", "--day", "30"},
	} {
		if _, err := run(t, "", args...); err == nil {
			t.Errorf("expected error for %v", args)
		}
	}
}

func TestHashPasswordCommand(t *testing.T) {
	out, err := run(t, "hunter22\nhunter22\n", "hash-password")
	if err != nil {
		t.Fatal(err)
	}
	hash := strings.TrimSpace(out)
	ok, err := auth.VerifyPassword("hunter22", hash)
	if err != nil || !ok {
		t.Errorf("VerifyPassword(%q) = %v, %v", hash, ok, err)
	}

	tests := []struct {
		name  string
		stdin string
	}{
		{name: "mismatch", stdin: "hunter22\nhunter23\n"},
		{name: "empty", stdin: "\n\n"},
		{name: "one line", stdin: "hunter22\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, tt.stdin, "hash-password"); err == nil {
				t.Error("expected error")
			}
		})
	}
}
