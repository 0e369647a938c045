// Package testsupport provides shared fixtures for package tests.
package testsupport

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/degerli/imagefield/internal/records"
)

// NewImage creates a test image with a bright central region.
func NewImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > width/3 && x < 2*width/3 && y > height/3 && y < 2*height/3 {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				img.Set(x, y, color.RGBA{64, 64, 64, 255})
			}
		}
	}
	return img
}

// EncodeJPEG encodes an image to JPEG bytes.
func EncodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

// Env is a record store rooted in temp directories, cleaned up with the test.
type Env struct {
	Store     *records.Store
	MediaRoot string
}

// NewEnv opens a fresh record store over a temp database and media root.
func NewEnv(t *testing.T) *Env {
	t.Helper()
	dir := t.TempDir()
	mediaRoot := filepath.Join(dir, "media")
	if err := os.MkdirAll(mediaRoot, 0o755); err != nil {
		t.Fatalf("create media root: %v", err)
	}
	store, err := records.Open(filepath.Join(dir, "records.db"), mediaRoot)
	if err != nil {
		t.Fatalf("open record store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return &Env{Store: store, MediaRoot: mediaRoot}
}

// WriteSource places a source payload under the media root at key.
func (e *Env) WriteSource(t *testing.T, key string, data []byte) {
	t.Helper()
	path := filepath.Join(e.MediaRoot, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create source directory: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write source %s: %v", key, err)
	}
}
