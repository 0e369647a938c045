// Package cache decides whether a derivation needs to run. It computes the
// artifact fingerprint, returns an existing artifact untouched on a hit,
// and otherwise runs the pipeline and persists the result under the
// fingerprint-derived key. Decode and encode are the expensive steps, so a
// hit is the system's primary performance win.
package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/degerli/imagefield/pkg/artifact"
	"github.com/degerli/imagefield/pkg/fingerprint"
	"github.com/degerli/imagefield/pkg/pipeline"
	"github.com/degerli/imagefield/pkg/ppoi"
	"github.com/degerli/imagefield/pkg/processor"
)

// PersistenceError reports a failed artifact read or write. Per-record
// fault: the source and record remain in their prior state.
type PersistenceError struct {
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist artifact %s: %v", e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Request identifies one derivation.
type Request struct {
	Source pipeline.Source
	// Signature changes whenever the source content changes.
	Signature string
	Spec      pipeline.Spec
	Focal     ppoi.Point
	// Force regenerates even when the artifact already exists.
	Force bool
}

// Result is the ensured artifact and how it was obtained.
type Result struct {
	Key         string
	Fingerprint fingerprint.Fingerprint
	Artifact    pipeline.Artifact
	// Generated is true when this call ran the pipeline, false when the
	// artifact was already present.
	Generated bool
}

// Cache wires the fingerprint, the artifact store, and the pipeline runner.
type Cache struct {
	store     artifact.Store
	runner    *pipeline.Runner
	pipelines *pipeline.Registry
	version   string

	// lockDir enables a cross-process file lock per fingerprint during
	// generation. Empty disables it (e.g. object-store backends, where
	// redundant regeneration writes identical bytes anyway). The directory
	// is created on first use and must not live inside the artifact store.
	lockDir string

	mu    sync.Mutex
	locks map[string]*lockEntry
}

// lockEntry reference-counts waiters so the per-fingerprint mutex map
// shrinks back once generation settles.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Option configures a Cache.
type Option func(*Cache)

// WithLockDir enables cross-process generation locks in the given directory.
func WithLockDir(dir string) Option {
	return func(c *Cache) { c.lockDir = dir }
}

// New builds a cache over the given store, runner, and pipeline registry.
func New(store artifact.Store, runner *pipeline.Runner, pipelines *pipeline.Registry, opts ...Option) *Cache {
	c := &Cache{
		store:     store,
		runner:    runner,
		pipelines: pipelines,
		version:   pipeline.Version,
		locks:     make(map[string]*lockEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the storage key a request resolves to, without doing any work.
func (c *Cache) Key(req Request) (string, fingerprint.Fingerprint) {
	fp := fingerprint.Compute(fingerprint.Inputs{
		SourceKey:       req.Source.Key,
		SourceSignature: req.Signature,
		Spec:            req.Spec,
		Focal:           req.Focal,
		UsesPPOI:        c.pipelines.UsesPPOI(req.Spec),
		Version:         c.version,
	})
	ext := processor.Extension(c.pipelines.OutputFormat(req.Spec, keyFormat(req.Source.Key)))
	return fingerprint.Key(req.Source.Key, req.Spec.Name, fp, ext), fp
}

// Ensure returns the artifact for the request, generating it only when it
// is not already present. Safe for concurrent invocation with the same
// fingerprint: at most one caller generates at a time, and any redundant
// regeneration writes content-identical bytes.
func (c *Cache) Ensure(ctx context.Context, req Request) (Result, error) {
	key, fp := c.Key(req)

	if !req.Force {
		if res, ok, err := c.lookup(ctx, key, fp); err != nil {
			return Result{}, err
		} else if ok {
			return res, nil
		}
	}

	unlock, err := c.lock(ctx, fp.Short)
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	// A concurrent generator may have won the lock first.
	if !req.Force {
		if res, ok, err := c.lookup(ctx, key, fp); err != nil {
			return Result{}, err
		} else if ok {
			return res, nil
		}
	}

	art, err := c.runner.Run(req.Source, req.Spec, req.Focal)
	if err != nil {
		return Result{}, err
	}
	if err := c.store.Write(ctx, key, art.Data); err != nil {
		return Result{}, &PersistenceError{Key: key, Err: err}
	}

	return Result{Key: key, Fingerprint: fp, Artifact: art, Generated: true}, nil
}

// lookup returns the existing artifact at key, if any, with dimensions read
// from the encoded header rather than a full decode.
func (c *Cache) lookup(ctx context.Context, key string, fp fingerprint.Fingerprint) (Result, bool, error) {
	exists, err := c.store.Exists(ctx, key)
	if err != nil {
		return Result{}, false, &PersistenceError{Key: key, Err: err}
	}
	if !exists {
		return Result{}, false, nil
	}
	data, err := c.store.Read(ctx, key)
	if err != nil {
		return Result{}, false, &PersistenceError{Key: key, Err: err}
	}
	w, h, format, err := processor.Dimensions(key, data)
	if err != nil {
		// Unreadable cached artifact; regenerate instead of failing.
		return Result{}, false, nil
	}
	return Result{
		Key:         key,
		Fingerprint: fp,
		Artifact:    pipeline.Artifact{Data: data, Width: w, Height: h, Format: format},
	}, true, nil
}

// lock serializes generation per fingerprint, in-process always and across
// processes when a lock directory is configured.
func (c *Cache) lock(ctx context.Context, short string) (func(), error) {
	c.mu.Lock()
	e, ok := c.locks[short]
	if !ok {
		e = &lockEntry{}
		c.locks[short] = e
	}
	e.refs++
	c.mu.Unlock()
	e.mu.Lock()

	release := func() {
		e.mu.Unlock()
		c.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(c.locks, short)
		}
		c.mu.Unlock()
	}

	if c.lockDir == "" {
		return release, nil
	}

	if err := os.MkdirAll(c.lockDir, 0o755); err != nil {
		release()
		return nil, fmt.Errorf("ensure lock directory: %w", err)
	}
	fl := flock.New(filepath.Join(c.lockDir, short+".lock"))
	locked, err := fl.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil || !locked {
		release()
		if err == nil {
			err = fmt.Errorf("generation lock unavailable for %s", short)
		}
		return nil, err
	}
	return func() {
		_ = fl.Unlock()
		release()
	}, nil
}

func keyFormat(sourceKey string) string {
	ext := filepath.Ext(sourceKey)
	if ext == "" {
		return "jpeg"
	}
	return ext[1:]
}
