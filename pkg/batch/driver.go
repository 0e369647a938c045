// Package batch walks every record bound to the configured image fields
// and ensures their derived artifacts exist, with per-record failure
// isolation: one corrupt upload never aborts the run. Iteration order is
// deterministic (bindings alphabetically, records by identity) so two runs
// over the same data visit the same sequence.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/text/message"

	"github.com/degerli/imagefield/internal/logging"
	"github.com/degerli/imagefield/internal/records"
	"github.com/degerli/imagefield/pkg/cache"
	"github.com/degerli/imagefield/pkg/pipeline"
	"github.com/degerli/imagefield/pkg/ppoi"
	"github.com/degerli/imagefield/pkg/processor"
)

// State is the terminal disposition of one record.
type State string

const (
	// StatePersisted means at least one artifact was generated.
	StatePersisted State = "persisted"
	// StateSkipped means every configured artifact was already cached.
	StateSkipped State = "skipped"
	StateFailed    State = "failed"
	StateHousekept State = "housekept"
)

// Options configure one batch run.
type Options struct {
	// All processes every binding; false restricts the run to bindings
	// flagged for automatic generation.
	All bool
	// Fields is an allowlist of binding names; empty allows all.
	Fields []string
	// Housekeep is applied to records whose derivation fails.
	Housekeep Policy
	// Force regenerates artifacts even when cached.
	Force bool
}

// Failure identifies one failed record and its message.
type Failure struct {
	Field    string
	RecordID string
	Message  string
}

// Report aggregates the outcome of a run.
type Report struct {
	Processed int
	Generated int
	Skipped   int
	Failed    int
	Housekept int
	Failures  []Failure
}

// Driver wires the record store, the pipeline registry, and the artifact
// cache into the batch walk.
type Driver struct {
	store     *records.Store
	pipelines *pipeline.Registry
	cache     *cache.Cache
	logger    *slog.Logger
	printer   *message.Printer
}

// New constructs a driver. The printer localizes user-facing failure
// messages; the logger carries structured progress.
func New(store *records.Store, pipelines *pipeline.Registry, artifactCache *cache.Cache, logger *slog.Logger, printer *message.Printer) *Driver {
	return &Driver{
		store:     store,
		pipelines: pipelines,
		cache:     artifactCache,
		logger:    logger,
		printer:   printer,
	}
}

// ProcessAll runs every configured pipeline for every record of every
// matching binding. Configuration faults (unknown pipeline or policy)
// surface as errors before any record is touched; per-record faults are
// isolated into the report. Cancelling the context stops the run between
// records without corrupting state.
func (d *Driver) ProcessAll(ctx context.Context, opts Options) (Report, error) {
	if _, err := ParsePolicy(string(opts.Housekeep)); err != nil {
		return Report{}, err
	}

	bindings, err := d.store.Bindings(ctx, records.Filter{
		OnlyAutoGenerate: !opts.All,
		Fields:           opts.Fields,
	})
	if err != nil {
		return Report{}, err
	}

	// Resolve every configured pipeline up front so a bad name aborts the
	// run instead of failing record by record.
	specs := make(map[string]pipeline.Spec)
	for _, binding := range bindings {
		for _, name := range binding.Pipelines {
			if _, ok := specs[name]; ok {
				continue
			}
			spec, err := d.pipelines.Resolve(name)
			if err != nil {
				return Report{}, fmt.Errorf("binding %s: %w", binding.Name, err)
			}
			specs[name] = spec
		}
	}

	var report Report
	for _, binding := range bindings {
		if err := d.processBinding(ctx, binding, specs, opts, &report); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (d *Driver) processBinding(ctx context.Context, binding records.FieldBinding, specs map[string]pipeline.Spec, opts Options, report *Report) error {
	log := d.logger.With(slog.String(logging.FieldField, binding.Name))
	log.Info("processing field binding", slog.Int("pipelines", len(binding.Pipelines)))

	cursor, err := d.store.Records(ctx, binding.Name)
	if err != nil {
		return err
	}
	defer cursor.Close()

	for cursor.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec := cursor.Record()
		if rec.Blank() {
			continue
		}

		state, procErr := d.processRecord(ctx, binding, rec, specs, opts)
		if procErr != nil && (errors.Is(procErr, context.Canceled) || errors.Is(procErr, context.DeadlineExceeded)) {
			return procErr
		}
		report.Processed++
		switch state {
		case StatePersisted, StateSkipped:
			if state == StatePersisted {
				report.Generated++
			} else {
				report.Skipped++
			}
			log.Info("record processed",
				slog.String(logging.FieldRecordID, rec.ID),
				slog.String("state", string(state)))
		case StateFailed, StateHousekept:
			report.Failed++
			msg := d.localize(procErr)
			report.Failures = append(report.Failures, Failure{
				Field:    binding.Name,
				RecordID: rec.ID,
				Message:  msg,
			})
			if state == StateHousekept {
				report.Housekept++
			}
			log.Warn("record failed",
				slog.String(logging.FieldRecordID, rec.ID),
				slog.String("error", msg),
				slog.String("state", string(state)))
		}
	}
	return cursor.Err()
}

// processRecord runs every configured pipeline for one record and persists
// the resulting dimensions. Every failure stays inside the per-record
// isolation boundary except cancellation; configuration faults were
// rejected before the walk started.
func (d *Driver) processRecord(ctx context.Context, binding records.FieldBinding, rec records.Record, specs map[string]pipeline.Spec, opts Options) (State, error) {
	data, signature, err := d.store.ReadSource(ctx, rec)
	if err != nil {
		return d.housekeep(ctx, rec, opts, fmt.Errorf("source unavailable: %w", err))
	}

	focal := ppoi.Parse(rec.PPOI)
	source := pipeline.Source{Key: rec.SourceKey, Data: data}

	generatedAny := false
	var width, height int
	for _, name := range binding.Pipelines {
		res, err := d.cache.Ensure(ctx, cache.Request{
			Source:    source,
			Signature: signature,
			Spec:      specs[name],
			Focal:     focal,
			Force:     opts.Force,
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return StateFailed, err
			}
			return d.housekeep(ctx, rec, opts, err)
		}
		generatedAny = generatedAny || res.Generated
		// The companion attributes mirror the first configured pipeline,
		// matching how the primary derivation's size is displayed.
		if width == 0 && height == 0 {
			width, height = res.Artifact.Width, res.Artifact.Height
		}
	}

	// Dimensions are only mirrored when the binding names companion
	// attributes to receive them.
	if width > 0 && height > 0 && binding.WidthAttr != "" && binding.HeightAttr != "" {
		if err := d.store.SaveDimensions(ctx, rec.Field, rec.ID, width, height); err != nil {
			return d.housekeep(ctx, rec, opts, err)
		}
	}
	if generatedAny {
		return StatePersisted, nil
	}
	return StateSkipped, nil
}

// housekeep applies the configured failure policy and reports the terminal
// state reached.
func (d *Driver) housekeep(ctx context.Context, rec records.Record, opts Options, cause error) (State, error) {
	if opts.Housekeep != PolicyBlankOnFailure {
		return StateFailed, cause
	}
	if err := d.store.BlankField(ctx, rec.Field, rec.ID); err != nil {
		// Housekeeping failed; the original cause still drives the report.
		d.logger.Warn("housekeeping failed",
			slog.String(logging.FieldField, rec.Field),
			slog.String(logging.FieldRecordID, rec.ID),
			slog.String("error", err.Error()))
		return StateFailed, cause
	}
	return StateHousekept, cause
}

func (d *Driver) localize(err error) string {
	if err == nil {
		return ""
	}
	var decodeErr *processor.DecodeError
	var paramErr *processor.ParameterError
	var persistErr *cache.PersistenceError
	switch {
	case errors.As(err, &decodeErr):
		return d.printer.Sprintf("image could not be decoded: %v", decodeErr.Unwrap())
	case errors.As(err, &paramErr):
		return d.printer.Sprintf("invalid processing parameters: %s", paramErr.Reason)
	case errors.As(err, &persistErr):
		return d.printer.Sprintf("artifact could not be stored: %v", persistErr.Unwrap())
	default:
		return d.printer.Sprintf("processing failed: %v", err)
	}
}
