package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	doc := `
media_root = "` + filepath.Join(dir, "media") + `"
log_level = "error"

[database]
path = "` + filepath.Join(dir, "records.db") + `"

[artifacts]
backend = "fs"
dir = "` + filepath.Join(dir, "artifacts") + `"

[[pipelines]]
name = "thumbnail"

[[pipelines.steps]]
processor = "thumbnail"
width = 64
height = 64
`
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPipelinesCommand(t *testing.T) {
	cfgPath := writeTestConfig(t)
	out, err := runCommand(t, "--config", cfgPath, "pipelines")
	if err != nil {
		t.Fatalf("pipelines command: %v", err)
	}
	if !strings.Contains(out, "thumbnail") {
		t.Errorf("output missing pipeline name:\n%s", out)
	}
}

func TestProcessCommandEmptyStore(t *testing.T) {
	cfgPath := writeTestConfig(t)
	out, err := runCommand(t, "--config", cfgPath, "process", "--all")
	if err != nil {
		t.Fatalf("process command: %v", err)
	}
	if !strings.Contains(out, "processed 0 records") {
		t.Errorf("unexpected report:\n%s", out)
	}
}

func TestProcessCommandRejectsUnknownPolicy(t *testing.T) {
	cfgPath := writeTestConfig(t)
	if _, err := runCommand(t, "--config", cfgPath, "process", "--housekeep", "shred"); err == nil {
		t.Fatal("expected error for unknown housekeeping policy")
	}
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if _, err := runCommand(t, "--config", path, "config", "init"); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	// Running init again refuses to overwrite.
	if _, err := runCommand(t, "--config", path, "config", "init"); err == nil {
		t.Fatal("expected error when config already exists")
	}

	out, err := runCommand(t, "--config", path, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "media_root") {
		t.Errorf("config show output missing keys:\n%s", out)
	}
}
