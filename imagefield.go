// Package imagefield derives processed image artifacts (thumbnails, crops,
// format conversions) from source images, deterministically and
// idempotently.
//
// Named pipelines compose a small set of processing primitives: a
// point-of-interest aware crop, a bounded thumbnail resize, and a format
// re-encode. Every derivation is fingerprinted over everything that
// influences its output, and the artifact cache only regenerates when that
// fingerprint has no stored artifact yet.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//
//		"github.com/degerli/imagefield"
//		"github.com/degerli/imagefield/pkg/pipeline"
//		"github.com/degerli/imagefield/pkg/ppoi"
//		"github.com/degerli/imagefield/pkg/processor"
//	)
//
//	func main() {
//		svc, err := imagefield.New("./artifacts", []pipeline.Spec{{
//			Name: "thumbnail",
//			Steps: []pipeline.Step{
//				{Name: "thumbnail", Params: processor.Params{Width: 200, Height: 200}},
//			},
//		}})
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		res, err := svc.DeriveFile(context.Background(), "photo.jpg", "thumbnail", ppoi.Center)
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Printf("%s: %dx%d (generated=%v)\n", res.Key, res.Artifact.Width, res.Artifact.Height, res.Generated)
//	}
//
// The batch driver in pkg/batch walks a whole record collection through
// the same cache; this facade covers single-image use.
package imagefield

import (
	"context"
	"fmt"
	"os"

	"github.com/degerli/imagefield/pkg/artifact"
	"github.com/degerli/imagefield/pkg/cache"
	"github.com/degerli/imagefield/pkg/pipeline"
	"github.com/degerli/imagefield/pkg/ppoi"
	"github.com/degerli/imagefield/pkg/processor"
)

// Version of the imagefield library.
const Version = "1.0.0"

// Service bundles the processor registry, pipeline registry, and artifact
// cache behind a single entry point.
type Service struct {
	processors *processor.Registry
	pipelines  *pipeline.Registry
	cache      *cache.Cache
}

// New wires a service over a filesystem artifact store rooted at
// artifactDir with the given pipeline definitions.
func New(artifactDir string, specs []pipeline.Spec) (*Service, error) {
	store, err := artifact.NewFSStore(artifactDir)
	if err != nil {
		return nil, err
	}
	return NewWithStore(store, specs)
}

// NewWithStore wires a service over any artifact store.
func NewWithStore(store artifact.Store, specs []pipeline.Spec) (*Service, error) {
	processors := processor.NewRegistry()
	pipelines, err := pipeline.NewRegistry(processors, specs)
	if err != nil {
		return nil, err
	}
	return &Service{
		processors: processors,
		pipelines:  pipelines,
		cache:      cache.New(store, pipeline.NewRunner(processors), pipelines),
	}, nil
}

// Pipelines lists the registered pipeline names.
func (s *Service) Pipelines() []string {
	return s.pipelines.Names()
}

// Derive ensures the named derivation of the given source exists and
// returns it. Signature should change whenever the source content changes;
// pass the payload's own hash or modification marker.
func (s *Service) Derive(ctx context.Context, src pipeline.Source, signature, pipelineName string, focal ppoi.Point) (cache.Result, error) {
	spec, err := s.pipelines.Resolve(pipelineName)
	if err != nil {
		return cache.Result{}, err
	}
	return s.cache.Ensure(ctx, cache.Request{
		Source:    src,
		Signature: signature,
		Spec:      spec,
		Focal:     focal,
	})
}

// DeriveFile is a convenience wrapper that reads the source from disk and
// uses its modification time and size as the content signature.
func (s *Service) DeriveFile(ctx context.Context, path, pipelineName string, focal ppoi.Point) (cache.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cache.Result{}, fmt.Errorf("read source %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return cache.Result{}, fmt.Errorf("stat source %s: %w", path, err)
	}
	signature := fmt.Sprintf("%d-%d", info.ModTime().UnixNano(), info.Size())
	return s.Derive(ctx, pipeline.Source{Key: path, Data: data}, signature, pipelineName, focal)
}
