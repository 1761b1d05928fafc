package livetree

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	config := DefaultConfig()
	if err := config.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if config.asyncLane() != LaneLow {
		t.Errorf("default async lane = %s, want low", config.asyncLane())
	}
	if config.FrameBudget != 16*time.Millisecond {
		t.Errorf("default frame budget = %s", config.FrameBudget)
	}
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
		want Config
	}{
		{
			name: "yaml",
			file: "livetree.yaml",
			body: "debug: true\nasync_lane: medium\nmax_renders_per_pass: 8\nframe_budget: 8ms\n",
			want: Config{Debug: true, AsyncLane: "medium", InitialCapacity: 64, MaxRendersPerPass: 8, FrameBudget: 8 * time.Millisecond},
		},
		{
			name: "toml",
			file: "livetree.toml",
			body: "async_lane = \"high\"\ninitial_capacity = 128\nlog_verbosity = 2\n",
			want: Config{AsyncLane: "high", InitialCapacity: 128, FrameBudget: 16 * time.Millisecond, LogVerbosity: 2},
		},
		{
			name: "empty yaml keeps defaults",
			file: "empty.yml",
			body: "",
			want: *DefaultConfig(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := LoadConfig(writeConfig(t, tt.file, tt.body))
			if err != nil {
				t.Fatalf("LoadConfig: %v", err)
			}
			if *config != tt.want {
				t.Errorf("config = %+v, want %+v", *config, tt.want)
			}
		})
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		field   string
		message string
	}{
		{name: "unknown lane", file: "c.yaml", body: "async_lane: urgent\n", field: "asynclane"},
		{name: "negative capacity", file: "c.toml", body: "initial_capacity = -1\n", field: "initialcapacity"},
		{name: "verbosity too high", file: "c.yaml", body: "log_verbosity: 9\n", field: "logverbosity"},
		{name: "unsupported format", file: "c.json", body: "{}", message: "unsupported config format"},
		{name: "malformed yaml", file: "c.yaml", body: "debug: [\n", message: "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.file, tt.body))
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.message != "" && !strings.Contains(err.Error(), tt.message) {
				t.Errorf("error %q does not contain %q", err, tt.message)
			}
			if tt.field == "" {
				return
			}
			var multi MultiError
			if !errors.As(err, &multi) {
				t.Fatalf("error %T is not a MultiError", err)
			}
			if len(multi) != 1 || multi[0].Field != tt.field {
				t.Errorf("field errors = %v, want one for %s", multi, tt.field)
			}
		})
	}
}

func TestWithConfigValidates(t *testing.T) {
	config := DefaultConfig()
	config.MaxRendersPerPass = -1
	_, err := NewApp("app", func(cx *Scope) *VNode { return nil }, WithConfig(config))
	if err == nil || !strings.Contains(err.Error(), "maxrendersperpass") {
		t.Errorf("NewApp error = %v, want a maxrendersperpass field error", err)
	}

	if _, err := NewApp("app", func(cx *Scope) *VNode { return nil }, WithConfig(nil)); err == nil {
		t.Error("nil config accepted")
	}
}
