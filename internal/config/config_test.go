package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if len(cfg.Pipelines) == 0 {
		t.Fatal("default config has no pipelines")
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Artifacts.Backend != "fs" {
		t.Errorf("backend %q, want fs", cfg.Artifacts.Backend)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	doc := `
media_root = "/srv/media"
log_level = "debug"

[artifacts]
backend = "fs"
dir = "/srv/artifacts"

[[pipelines]]
name = "tiny"

[[pipelines.steps]]
processor = "thumbnail"
width = 32
height = 32
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MediaRoot != "/srv/media" {
		t.Errorf("media root %q", cfg.MediaRoot)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level %q", cfg.LogLevel)
	}
	if cfg.Artifacts.Dir != "/srv/artifacts" {
		t.Errorf("artifacts dir %q", cfg.Artifacts.Dir)
	}
	if len(cfg.Pipelines) != 1 || cfg.Pipelines[0].Name != "tiny" {
		t.Errorf("pipelines = %+v", cfg.Pipelines)
	}
}

func TestLoadRejectsBadBackend(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	doc := `
[artifacts]
backend = "carrier-pigeon"

[[pipelines]]
name = "tiny"

[[pipelines.steps]]
processor = "thumbnail"
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestSpecsConversion(t *testing.T) {
	cfg := Config{
		Pipelines: []Pipeline{
			{
				Name: "square-webp",
				Steps: []Step{
					{Processor: "crop", Width: 300, Height: 300},
					{Processor: "convert", Format: "webp", Quality: 85, Lossless: true},
				},
			},
		},
	}
	specs := cfg.Specs()
	if len(specs) != 1 {
		t.Fatalf("got %d specs, want 1", len(specs))
	}
	spec := specs[0]
	if spec.Name != "square-webp" || len(spec.Steps) != 2 {
		t.Fatalf("unexpected spec %+v", spec)
	}
	if spec.Steps[0].Name != "crop" || spec.Steps[0].Params.Width != 300 {
		t.Errorf("step 0 = %+v", spec.Steps[0])
	}
	if spec.Steps[1].Params.Format != "webp" || !spec.Steps[1].Params.Lossless {
		t.Errorf("step 1 = %+v", spec.Steps[1])
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandPath("~/x"); got != filepath.Join(home, "x") {
		t.Errorf("expandPath(~/x) = %q", got)
	}
	if got := expandPath("/abs/path"); got != "/abs/path" {
		t.Errorf("expandPath(/abs/path) = %q", got)
	}
}
