package deps

import (
	"os"
	"path/filepath"
	"testing"

	"storyreel/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}
}

func TestRequirementsUseConfiguredBinaries(t *testing.T) {
	cfg := config.Default()
	cfg.Media.FFmpeg = "/opt/media/ffmpeg"
	cfg.Media.FFprobe = "/opt/media/ffprobe"

	reqs := Requirements(&cfg)
	if len(reqs) != 2 {
		t.Fatalf("expected 2 requirements, got %d", len(reqs))
	}
	if reqs[0].Command != "/opt/media/ffmpeg" {
		t.Errorf("unexpected ffmpeg command %q", reqs[0].Command)
	}
	if reqs[1].Command != "/opt/media/ffprobe" {
		t.Errorf("unexpected ffprobe command %q", reqs[1].Command)
	}
}

func TestRequirementsDefaults(t *testing.T) {
	reqs := Requirements(nil)
	if reqs[0].Command != "ffmpeg" || reqs[1].Command != "ffprobe" {
		t.Errorf("expected PATH defaults, got %q and %q", reqs[0].Command, reqs[1].Command)
	}
}

func TestMissingRequired(t *testing.T) {
	statuses := []Status{
		{Name: "FFmpeg", Available: false},
		{Name: "FFprobe", Available: true},
		{Name: "Extra", Available: false, Optional: true},
	}
	missing := MissingRequired(statuses)
	if len(missing) != 1 || missing[0] != "FFmpeg" {
		t.Errorf("unexpected missing list %v", missing)
	}
}
