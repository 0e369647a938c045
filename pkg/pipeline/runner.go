package pipeline

import (
	"fmt"
	"image"

	"github.com/degerli/imagefield/pkg/ppoi"
	"github.com/degerli/imagefield/pkg/processor"
)

// Source is an opaque image payload identified by a stable key. The key is
// only used for error reporting and artifact naming; ownership of the bytes
// stays with the caller.
type Source struct {
	Key  string
	Data []byte
}

// Artifact is the output of one pipeline run: the encoded bytes, their
// dimensions, and the encoding format. Immutable once produced.
type Artifact struct {
	Data   []byte
	Width  int
	Height int
	Format string
}

// Runner applies specs to sources. It never decides whether work can be
// skipped; that is the cache's call.
type Runner struct {
	processors *processor.Registry
}

// NewRunner returns a runner dispatching to the given processor registry.
func NewRunner(processors *processor.Registry) *Runner {
	return &Runner{processors: processors}
}

// Run decodes the source, threads it through every step of the spec in
// order, and encodes the result. The focal point is passed unchanged to
// every step; steps that do not consume it ignore it.
func (r *Runner) Run(src Source, spec Spec, focal ppoi.Point) (Artifact, error) {
	img, format, err := processor.Decode(src.Key, src.Data)
	if err != nil {
		return Artifact{}, err
	}

	pc := &processor.Context{
		Focal:   focal,
		Format:  format,
		Quality: processor.DefaultQuality,
	}

	for _, step := range spec.Steps {
		proc, err := r.processors.Lookup(step.Name)
		if err != nil {
			return Artifact{}, fmt.Errorf("pipeline %q: %w", spec.Name, err)
		}
		img, err = proc.Apply(img, step.Params, pc)
		if err != nil {
			return Artifact{}, fmt.Errorf("pipeline %q step %q: %w", spec.Name, step.Name, err)
		}
	}

	data, err := processor.Encode(img, pc.Format, pc.Quality, pc.Lossless)
	if err != nil {
		return Artifact{}, fmt.Errorf("pipeline %q: encode %s: %w", spec.Name, pc.Format, err)
	}

	bounds := img.Bounds()
	return Artifact{
		Data:   data,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Format: pc.Format,
	}, nil
}

// Probe decodes just enough of the source to report its dimensions and
// format without running any steps.
func Probe(src Source) (width, height int, format string, err error) {
	var img image.Image
	img, format, err = processor.Decode(src.Key, src.Data)
	if err != nil {
		return 0, 0, "", err
	}
	bounds := img.Bounds()
	return bounds.Dx(), bounds.Dy(), format, nil
}
