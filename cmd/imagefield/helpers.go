package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/degerli/imagefield/internal/config"
	"github.com/degerli/imagefield/internal/logging"
	"github.com/degerli/imagefield/pkg/artifact"
	"github.com/degerli/imagefield/pkg/cache"
	"github.com/degerli/imagefield/pkg/pipeline"
	"github.com/degerli/imagefield/pkg/processor"
)

func loadConfig(configFlag string) (config.Config, error) {
	path := configFlag
	if path == "" {
		path = config.DefaultPath()
	}
	return config.Load(path)
}

func newLogger(cfg config.Config) (*slog.Logger, error) {
	return logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
}

func newPrinter(cfg config.Config) *message.Printer {
	tag, err := language.Parse(cfg.Language)
	if err != nil {
		tag = language.English
	}
	return message.NewPrinter(tag)
}

// newPipelineRegistry resolves the configured pipelines against the
// built-in processors. Failures here are configuration faults.
func newPipelineRegistry(cfg config.Config) (*processor.Registry, *pipeline.Registry, error) {
	processors := processor.NewRegistry()
	pipelines, err := pipeline.NewRegistry(processors, cfg.Specs())
	if err != nil {
		return nil, nil, err
	}
	return processors, pipelines, nil
}

func newArtifactStore(cfg config.Config) (artifact.Store, []cache.Option, error) {
	switch cfg.Artifacts.Backend {
	case "fs":
		store, err := artifact.NewFSStore(cfg.Artifacts.Dir)
		if err != nil {
			return nil, nil, err
		}
		lockDir := cfg.Artifacts.LockDir
		if lockDir == "" {
			// Keep lock files out of the artifact tree.
			lockDir = filepath.Join(cfg.Artifacts.Dir, ".locks")
		}
		return store, []cache.Option{cache.WithLockDir(lockDir)}, nil
	case "s3":
		store, err := artifact.NewS3Store(artifact.S3Config{
			Endpoint:  cfg.Artifacts.S3.Endpoint,
			AccessKey: cfg.Artifacts.S3.AccessKey,
			SecretKey: cfg.Artifacts.S3.SecretKey,
			Region:    cfg.Artifacts.S3.Region,
			UseSSL:    cfg.Artifacts.S3.UseSSL,
			Bucket:    cfg.Artifacts.S3.Bucket,
			Prefix:    cfg.Artifacts.S3.Prefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown artifacts backend %q", cfg.Artifacts.Backend)
	}
}
