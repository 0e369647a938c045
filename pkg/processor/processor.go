// Package processor implements the individual image transforms that
// pipelines compose: point-of-interest aware cropping, bounded thumbnail
// resizing, and format re-encoding. Every transform is a pure function of
// its inputs so pipeline output stays byte-identical across runs.
package processor

import (
	"fmt"
	"image"
	"sort"
	"strconv"
	"strings"

	"github.com/degerli/imagefield/pkg/ppoi"
)

// Params carries the resolved parameters of one pipeline step.
type Params struct {
	Width    int
	Height   int
	Format   string
	Quality  int
	Lossless bool
	Stretch  bool
}

// Canonical renders the parameter set in a stable form for fingerprinting.
// Every field participates so that any parameter change alters the result.
func (p Params) Canonical() string {
	fields := []string{
		"format=" + strings.ToLower(p.Format),
		"height=" + strconv.Itoa(p.Height),
		"lossless=" + strconv.FormatBool(p.Lossless),
		"quality=" + strconv.Itoa(p.Quality),
		"stretch=" + strconv.FormatBool(p.Stretch),
		"width=" + strconv.Itoa(p.Width),
	}
	return strings.Join(fields, ",")
}

// Context threads per-derivation state through the step chain, the same
// way the focal point and encoder options travel alongside the image.
// Format starts as the decoded source format; a convert step overrides it.
type Context struct {
	Focal    ppoi.Point
	Format   string
	Quality  int
	Lossless bool
}

// Processor is one named transform. Apply never mutates its input image.
type Processor interface {
	Name() string
	// UsesPPOI reports whether the transform reads the focal point; the
	// fingerprint only incorporates the point when some step consumes it.
	UsesPPOI() bool
	Apply(img image.Image, params Params, pc *Context) (image.Image, error)
}

// Registry maps symbolic step names to transforms. It is populated once at
// process start and read-only afterwards.
type Registry struct {
	byName map[string]Processor
}

// NewRegistry returns a registry with the built-in transforms registered.
func NewRegistry() *Registry {
	r := &Registry{byName: make(map[string]Processor)}
	r.Register(cropProcessor{})
	r.Register(thumbnailProcessor{})
	r.Register(convertProcessor{})
	return r
}

// Register adds a transform, replacing any previous one of the same name.
func (r *Registry) Register(p Processor) {
	r.byName[p.Name()] = p
}

// Lookup resolves a symbolic step name.
func (r *Registry) Lookup(name string) (Processor, error) {
	p, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown processor %q", name)
	}
	return p, nil
}

// Names lists the registered transform names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
