package imagefield

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/degerli/imagefield/internal/testsupport"
	"github.com/degerli/imagefield/pkg/pipeline"
	"github.com/degerli/imagefield/pkg/ppoi"
	"github.com/degerli/imagefield/pkg/processor"
)

func testService(t *testing.T) *Service {
	t.Helper()
	svc, err := New(t.TempDir(), []pipeline.Spec{
		{
			Name: "thumbnail",
			Steps: []pipeline.Step{
				{Name: "thumbnail", Params: processor.Params{Width: 150, Height: 150}},
			},
		},
		{
			Name: "square-webp",
			Steps: []pipeline.Step{
				{Name: "crop", Params: processor.Params{Width: 80, Height: 80}},
				{Name: "convert", Params: processor.Params{Format: "webp"}},
			},
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc
}

func TestServicePipelines(t *testing.T) {
	svc := testService(t)
	names := svc.Pipelines()
	if len(names) != 2 || names[0] != "square-webp" || names[1] != "thumbnail" {
		t.Errorf("Pipelines() = %v", names)
	}
}

func TestDeriveIsIdempotent(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()
	src := pipeline.Source{
		Key:  "media/photo.jpg",
		Data: testsupport.EncodeJPEG(t, testsupport.NewImage(300, 200)),
	}

	first, err := svc.Derive(ctx, src, "sig", "thumbnail", ppoi.Center)
	if err != nil {
		t.Fatalf("first Derive: %v", err)
	}
	if !first.Generated {
		t.Error("first call should generate")
	}
	second, err := svc.Derive(ctx, src, "sig", "thumbnail", ppoi.Center)
	if err != nil {
		t.Fatalf("second Derive: %v", err)
	}
	if second.Generated {
		t.Error("second call should hit the cache")
	}
}

func TestDeriveUnknownPipeline(t *testing.T) {
	svc := testService(t)
	src := pipeline.Source{Key: "x.jpg", Data: testsupport.EncodeJPEG(t, testsupport.NewImage(10, 10))}

	_, err := svc.Derive(context.Background(), src, "sig", "missing", ppoi.Center)
	var unknownErr *pipeline.UnknownPipelineError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("expected UnknownPipelineError, got %v", err)
	}
}

func TestDeriveFile(t *testing.T) {
	svc := testService(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpg")
	if err := imaging.Save(testsupport.NewImage(300, 200), path); err != nil {
		t.Fatalf("save fixture: %v", err)
	}

	res, err := svc.DeriveFile(context.Background(), path, "square-webp", ppoi.Normalize(0.25, 0.25))
	if err != nil {
		t.Fatalf("DeriveFile: %v", err)
	}
	if res.Artifact.Width != 80 || res.Artifact.Height != 80 {
		t.Errorf("artifact %dx%d, want 80x80", res.Artifact.Width, res.Artifact.Height)
	}
	if res.Artifact.Format != "webp" {
		t.Errorf("artifact format %q, want webp", res.Artifact.Format)
	}

	if _, err := svc.DeriveFile(context.Background(), filepath.Join(dir, "missing.jpg"), "thumbnail", ppoi.Center); err == nil {
		t.Error("expected error for missing source file")
	}
	_ = os.Remove(path)
}
