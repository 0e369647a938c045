package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/degerli/imagefield/pkg/batch"
	"github.com/degerli/imagefield/pkg/cache"
	"github.com/degerli/imagefield/pkg/pipeline"

	"github.com/degerli/imagefield/internal/records"
)

func newProcessCommand(configFlag *string) *cobra.Command {
	var all bool
	var fields []string
	var housekeep string
	var force bool

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Generate derived artifacts for every configured image field",
		Long: "Walks the record store binding by binding and ensures every " +
			"configured derivation exists, regenerating only what the " +
			"fingerprint cache reports as stale. Individual record failures " +
			"are reported at the end without aborting the run.",
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := batch.ParsePolicy(housekeep)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(*configFlag)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			printer := newPrinter(cfg)

			processors, pipelines, err := newPipelineRegistry(cfg)
			if err != nil {
				return err
			}
			store, cacheOpts, err := newArtifactStore(cfg)
			if err != nil {
				return err
			}
			artifactCache := cache.New(store, pipeline.NewRunner(processors), pipelines, cacheOpts...)

			recordStore, err := records.Open(cfg.Database.Path, cfg.MediaRoot)
			if err != nil {
				return err
			}
			defer recordStore.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			driver := batch.New(recordStore, pipelines, artifactCache, logger, printer)
			report, err := driver.ProcessAll(ctx, batch.Options{
				All:       all,
				Fields:    fields,
				Housekeep: policy,
				Force:     force,
			})
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), report.Render(printer))
			// Per-record failures are reported, not fatal.
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Process all bindings, not only autogeneration-eligible ones")
	cmd.Flags().StringArrayVar(&fields, "field", nil, "Restrict the run to the named field bindings (repeatable)")
	cmd.Flags().StringVar(&housekeep, "housekeep", string(batch.PolicyNone), "Housekeeping policy on failure: none|blank-on-failure")
	cmd.Flags().BoolVar(&force, "force", false, "Regenerate artifacts even when cached")

	return cmd
}
