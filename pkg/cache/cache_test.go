package cache_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/degerli/imagefield/internal/testsupport"
	"github.com/degerli/imagefield/pkg/artifact"
	"github.com/degerli/imagefield/pkg/cache"
	"github.com/degerli/imagefield/pkg/pipeline"
	"github.com/degerli/imagefield/pkg/ppoi"
	"github.com/degerli/imagefield/pkg/processor"
)

func newTestCache(t *testing.T) (*cache.Cache, *pipeline.Registry) {
	t.Helper()
	processors := processor.NewRegistry()
	pipelines, err := pipeline.NewRegistry(processors, []pipeline.Spec{
		{
			Name: "thumbnail",
			Steps: []pipeline.Step{
				{Name: "thumbnail", Params: processor.Params{Width: 100, Height: 100}},
			},
		},
		{
			Name: "square",
			Steps: []pipeline.Step{
				{Name: "crop", Params: processor.Params{Width: 64, Height: 64}},
			},
		},
	})
	if err != nil {
		t.Fatalf("pipeline registry: %v", err)
	}
	store, err := artifact.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("artifact store: %v", err)
	}
	return cache.New(store, pipeline.NewRunner(processors), pipelines), pipelines
}

func testRequest(t *testing.T, pipelines *pipeline.Registry, name string) cache.Request {
	t.Helper()
	spec, err := pipelines.Resolve(name)
	if err != nil {
		t.Fatalf("resolve %q: %v", name, err)
	}
	return cache.Request{
		Source: pipeline.Source{
			Key:  "media/fixture.jpg",
			Data: testsupport.EncodeJPEG(t, testsupport.NewImage(320, 240)),
		},
		Signature: "sig-1",
		Spec:      spec,
		Focal:     ppoi.Center,
	}
}

func TestEnsureGeneratesOnce(t *testing.T) {
	c, pipelines := newTestCache(t)
	ctx := context.Background()
	req := testRequest(t, pipelines, "thumbnail")

	first, err := c.Ensure(ctx, req)
	if err != nil {
		t.Fatalf("first Ensure: %v", err)
	}
	if !first.Generated {
		t.Error("first call should generate")
	}

	second, err := c.Ensure(ctx, req)
	if err != nil {
		t.Fatalf("second Ensure: %v", err)
	}
	if second.Generated {
		t.Error("second call should hit the cache")
	}
	if !bytes.Equal(first.Artifact.Data, second.Artifact.Data) {
		t.Error("cached artifact differs from generated artifact")
	}
	if second.Artifact.Width != first.Artifact.Width || second.Artifact.Height != first.Artifact.Height {
		t.Errorf("cached dimensions %dx%d differ from generated %dx%d",
			second.Artifact.Width, second.Artifact.Height,
			first.Artifact.Width, first.Artifact.Height)
	}
}

func TestEnsureForceRegenerates(t *testing.T) {
	c, pipelines := newTestCache(t)
	ctx := context.Background()
	req := testRequest(t, pipelines, "thumbnail")

	if _, err := c.Ensure(ctx, req); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	req.Force = true
	res, err := c.Ensure(ctx, req)
	if err != nil {
		t.Fatalf("forced Ensure: %v", err)
	}
	if !res.Generated {
		t.Error("forced call should regenerate")
	}
}

func TestKeyChangesWithSignature(t *testing.T) {
	c, pipelines := newTestCache(t)
	req := testRequest(t, pipelines, "thumbnail")

	key1, _ := c.Key(req)
	req.Signature = "sig-2"
	key2, _ := c.Key(req)
	if key1 == key2 {
		t.Error("key unchanged although the source signature changed")
	}
}

func TestKeyIgnoresFocalForNonCropPipelines(t *testing.T) {
	c, pipelines := newTestCache(t)

	req := testRequest(t, pipelines, "thumbnail")
	key1, _ := c.Key(req)
	req.Focal = ppoi.Point{X: 0.1, Y: 0.9}
	key2, _ := c.Key(req)
	if key1 != key2 {
		t.Error("thumbnail key changed with the focal point although no step consumes it")
	}

	req = testRequest(t, pipelines, "square")
	key1, _ = c.Key(req)
	req.Focal = ppoi.Point{X: 0.1, Y: 0.9}
	key2, _ = c.Key(req)
	if key1 == key2 {
		t.Error("crop key unchanged although the focal point moved")
	}
}

func TestEnsureConcurrentSameFingerprint(t *testing.T) {
	c, pipelines := newTestCache(t)
	ctx := context.Background()
	req := testRequest(t, pipelines, "thumbnail")

	const callers = 8
	results := make([]cache.Result, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Ensure(ctx, req)
		}(i)
	}
	wg.Wait()

	generated := 0
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if results[i].Generated {
			generated++
		}
		if !bytes.Equal(results[i].Artifact.Data, results[0].Artifact.Data) {
			t.Errorf("caller %d received different artifact bytes", i)
		}
	}
	if generated != 1 {
		t.Errorf("generation happened %d times, want exactly once", generated)
	}
}

// failingStore reports emptiness and rejects every write.
type failingStore struct {
	writeErr error
}

func (s *failingStore) Exists(ctx context.Context, key string) (bool, error) { return false, nil }
func (s *failingStore) Read(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("not stored")
}
func (s *failingStore) Write(ctx context.Context, key string, data []byte) error {
	return s.writeErr
}

func TestEnsureWrapsStoreWriteFailure(t *testing.T) {
	processors := processor.NewRegistry()
	pipelines, err := pipeline.NewRegistry(processors, []pipeline.Spec{
		{
			Name: "thumbnail",
			Steps: []pipeline.Step{
				{Name: "thumbnail", Params: processor.Params{Width: 100, Height: 100}},
			},
		},
	})
	if err != nil {
		t.Fatalf("pipeline registry: %v", err)
	}
	cause := errors.New("disk full")
	c := cache.New(&failingStore{writeErr: cause}, pipeline.NewRunner(processors), pipelines)
	req := testRequest(t, pipelines, "thumbnail")

	_, err = c.Ensure(context.Background(), req)
	var persistErr *cache.PersistenceError
	if !errors.As(err, &persistErr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if persistErr.Key == "" {
		t.Error("persistence error does not name the artifact key")
	}
	if !errors.Is(err, cause) {
		t.Error("persistence error does not wrap the store failure")
	}
}

func TestLockFilesStayOutOfArtifactDir(t *testing.T) {
	processors := processor.NewRegistry()
	pipelines, err := pipeline.NewRegistry(processors, []pipeline.Spec{
		{
			Name: "thumbnail",
			Steps: []pipeline.Step{
				{Name: "thumbnail", Params: processor.Params{Width: 100, Height: 100}},
			},
		},
	})
	if err != nil {
		t.Fatalf("pipeline registry: %v", err)
	}
	artifactDir := t.TempDir()
	lockDir := filepath.Join(t.TempDir(), "locks")
	store, err := artifact.NewFSStore(artifactDir)
	if err != nil {
		t.Fatalf("artifact store: %v", err)
	}
	c := cache.New(store, pipeline.NewRunner(processors), pipelines, cache.WithLockDir(lockDir))
	req := testRequest(t, pipelines, "thumbnail")

	if _, err := c.Ensure(context.Background(), req); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	locks, err := os.ReadDir(lockDir)
	if err != nil {
		t.Fatalf("read lock dir: %v", err)
	}
	found := false
	for _, entry := range locks {
		if strings.HasSuffix(entry.Name(), ".lock") {
			found = true
		}
	}
	if !found {
		t.Error("no lock file created in the lock directory")
	}

	artifacts, err := os.ReadDir(artifactDir)
	if err != nil {
		t.Fatalf("read artifact dir: %v", err)
	}
	for _, entry := range artifacts {
		if strings.HasSuffix(entry.Name(), ".lock") {
			t.Errorf("lock file %s leaked into the artifact directory", entry.Name())
		}
	}
}

func TestEnsureDecodeFailurePropagates(t *testing.T) {
	c, pipelines := newTestCache(t)
	req := testRequest(t, pipelines, "thumbnail")
	req.Source.Data = []byte("corrupt")

	_, err := c.Ensure(context.Background(), req)
	if err == nil {
		t.Fatal("expected decode failure")
	}
}
