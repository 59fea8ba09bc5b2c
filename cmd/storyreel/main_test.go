package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"storyreel/internal/config"
	"storyreel/internal/run"
	"storyreel/internal/testsupport"
)

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func writeTestConfig(t *testing.T) (string, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return testsupport.WriteConfigFile(t, cfg), cfg
}

func seedRun(t *testing.T, cfg *config.Config, id, inputText string) {
	t.Helper()
	st := testsupport.OpenStore(t, cfg)
	state := run.NewState(id, inputText, "")
	if err := st.CreateRun(context.Background(), state); err != nil {
		t.Fatalf("seed run: %v", err)
	}
}

func TestRootShowsHelp(t *testing.T) {
	out, err := executeCommand(t, "--help")
	if err != nil {
		t.Fatalf("help returned error: %v", err)
	}
	for _, sub := range []string{"run", "serve", "status", "show", "config", "deps"} {
		if !strings.Contains(out, sub) {
			t.Fatalf("help output missing %q:\n%s", sub, out)
		}
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	out, err := executeCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("expected target path in output, got:\n%s", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config not written: %v", err)
	}

	if _, err := executeCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config already exists")
	}
}

func TestStatusListsRuns(t *testing.T) {
	cfgPath, cfg := writeTestConfig(t)
	seedRun(t, cfg, "11112222-3333-4444-5555-666677778888", "a fox crossing a frozen lake")

	out, err := executeCommand(t, "--config", cfgPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "11112222") {
		t.Fatalf("expected short run id in output:\n%s", out)
	}
	if !strings.Contains(out, "pending") {
		t.Fatalf("expected pending status in output:\n%s", out)
	}
}

func TestStatusEmptyStore(t *testing.T) {
	cfgPath, _ := writeTestConfig(t)
	out, err := executeCommand(t, "--config", cfgPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "No runs recorded") {
		t.Fatalf("expected empty-store message, got:\n%s", out)
	}
}

func TestShowResolvesPrefix(t *testing.T) {
	cfgPath, cfg := writeTestConfig(t)
	seedRun(t, cfg, "aaaa1111-0000-0000-0000-000000000000", "first")
	seedRun(t, cfg, "bbbb2222-0000-0000-0000-000000000000", "second")

	out, err := executeCommand(t, "--config", cfgPath, "show", "bbbb")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "bbbb2222-0000-0000-0000-000000000000") {
		t.Fatalf("expected full run id in output:\n%s", out)
	}
	if !strings.Contains(out, "second") {
		t.Fatalf("expected input text in output:\n%s", out)
	}
}

func TestShowUnknownRun(t *testing.T) {
	cfgPath, _ := writeTestConfig(t)
	if _, err := executeCommand(t, "--config", cfgPath, "show", "zzzz"); err == nil {
		t.Fatal("expected error for unknown run id")
	}
}

func TestStageLabel(t *testing.T) {
	if got := stageLabel(run.StageParse); got != "Parse" {
		t.Fatalf("stageLabel(parse) = %q", got)
	}
	if got := stageLabel(""); got != "-" {
		t.Fatalf("stageLabel(empty) = %q", got)
	}
}
