// Package config loads and validates the TOML configuration: media and
// artifact locations, the record database path, logging, and the named
// pipeline definitions.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/degerli/imagefield/pkg/pipeline"
	"github.com/degerli/imagefield/pkg/processor"
)

// Database holds record store configuration.
type Database struct {
	Path string `toml:"path"`
}

// S3 holds object-store backend configuration.
type S3 struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Region    string `toml:"region"`
	UseSSL    bool   `toml:"use_ssl"`
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix"`
}

// Artifacts selects and configures the artifact store backend.
type Artifacts struct {
	Backend string `toml:"backend"`
	Dir     string `toml:"dir"`
	LockDir string `toml:"lock_dir"`
	S3      S3     `toml:"s3"`
}

// Step is one pipeline step as written in configuration.
type Step struct {
	Processor string `toml:"processor"`
	Width     int    `toml:"width"`
	Height    int    `toml:"height"`
	Format    string `toml:"format"`
	Quality   int    `toml:"quality"`
	Lossless  bool   `toml:"lossless"`
	Stretch   bool   `toml:"stretch"`
}

// Pipeline is one named derivation as written in configuration.
type Pipeline struct {
	Name  string `toml:"name"`
	Steps []Step `toml:"steps"`
}

// Config is the root configuration document.
type Config struct {
	MediaRoot string     `toml:"media_root"`
	LogLevel  string     `toml:"log_level"`
	LogFormat string     `toml:"log_format"`
	Language  string     `toml:"language"`
	Database  Database   `toml:"database"`
	Artifacts Artifacts  `toml:"artifacts"`
	Pipelines []Pipeline `toml:"pipelines"`
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		MediaRoot: "~/.local/share/imagefield/media",
		LogLevel:  "info",
		LogFormat: "console",
		Language:  "en",
		Database: Database{
			Path: "~/.local/share/imagefield/records.db",
		},
		Artifacts: Artifacts{
			Backend: "fs",
			Dir:     "~/.local/share/imagefield/artifacts",
		},
		Pipelines: []Pipeline{
			{
				Name: "thumbnail",
				Steps: []Step{
					{Processor: "thumbnail", Width: 200, Height: 200},
				},
			},
			{
				Name: "admin-preview",
				Steps: []Step{
					{Processor: "crop", Width: 120, Height: 120},
					{Processor: "convert", Format: "png"},
				},
			},
		},
	}
}

// Load reads the config at path, layering it over defaults. A missing file
// yields the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg.normalize()
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.MediaRoot = expandPath(c.MediaRoot)
	c.Database.Path = expandPath(c.Database.Path)
	c.Artifacts.Dir = expandPath(c.Artifacts.Dir)
	c.Artifacts.LockDir = expandPath(c.Artifacts.LockDir)
	if c.Artifacts.Backend == "" {
		c.Artifacts.Backend = "fs"
	}
}

// Validate rejects configurations that would only fail later at run time.
func (c *Config) Validate() error {
	switch c.Artifacts.Backend {
	case "fs":
		if strings.TrimSpace(c.Artifacts.Dir) == "" {
			return errors.New("artifacts.dir is required for the fs backend")
		}
	case "s3":
	default:
		return fmt.Errorf("unknown artifacts backend %q", c.Artifacts.Backend)
	}
	if len(c.Pipelines) == 0 {
		return errors.New("at least one pipeline must be configured")
	}
	return nil
}

// Specs converts the configured pipelines to their runtime form.
func (c *Config) Specs() []pipeline.Spec {
	specs := make([]pipeline.Spec, 0, len(c.Pipelines))
	for _, p := range c.Pipelines {
		steps := make([]pipeline.Step, 0, len(p.Steps))
		for _, s := range p.Steps {
			steps = append(steps, pipeline.Step{
				Name: s.Processor,
				Params: processor.Params{
					Width:    s.Width,
					Height:   s.Height,
					Format:   s.Format,
					Quality:  s.Quality,
					Lossless: s.Lossless,
					Stretch:  s.Stretch,
				},
			})
		}
		specs = append(specs, pipeline.Spec{Name: p.Name, Steps: steps})
	}
	return specs
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./imagefield.toml"
	}
	return filepath.Join(home, ".config", "imagefield", "config.toml")
}

func expandPath(path string) string {
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
