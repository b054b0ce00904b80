package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	doc := `
reader:
  name: uTrust
  poll_interval: 100ms
  share_mode: exclusive
log:
  level: debug
  format: json
session:
  verify_timeout: 3s
`
	cfg, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := &Config{
		Reader:  ReaderConfig{Name: "uTrust", PollInterval: 100 * time.Millisecond, ShareMode: "exclusive"},
		Log:     LogConfig{Level: "debug", Format: "json"},
		Session: SessionConfig{VerifyTimeout: 3 * time.Second},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Config mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_DefaultsKept(t *testing.T) {
	cfg, err := Parse(strings.NewReader("reader:\n  index: 2\n"))
	if err != nil {
		t.Fatal(err)
	}
	want := Default()
	want.Reader.Index = 2
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Config mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Config mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"Unknown key", "reader:\n  speed: 3\n", "field speed not found"},
		{"Negative index", "reader:\n  index: -1\n", "config.reader.index"},
		{"Zero poll", "reader:\n  poll_interval: 0s\n", "config.reader.poll_interval"},
		{"Bad share mode", "reader:\n  share_mode: direct\n", "config.reader.share_mode"},
		{"Bad level", "log:\n  level: trace\n", "config.log.level"},
		{"Bad format", "log:\n  format: xml\n", "config.log.format"},
		{"Negative timeout", "session:\n  verify_timeout: -1s\n", "config.session.verify_timeout"},
		{"Bad duration", "session:\n  verify_timeout: soon\n", "parse config yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_ResolvesAnchorsDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "anchors"), 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "nbt.yaml")
	if err := os.WriteFile(path, []byte("trust:\n  anchors_dir: anchors\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if want := filepath.Join(dir, "anchors"); cfg.Trust.AnchorsDir != want {
		t.Errorf("AnchorsDir = %q, want %q", cfg.Trust.AnchorsDir, want)
	}
}

func TestLoad_MissingAnchorsDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nbt.yaml")
	if err := os.WriteFile(path, []byte("trust:\n  anchors_dir: missing\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "config.trust.anchors_dir") {
		t.Errorf("Load() error = %v", err)
	}
}

func TestLoad_NoPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Config mismatch (-want +got):\n%s", diff)
	}
}
