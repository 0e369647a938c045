package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newPipelinesCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "pipelines",
		Short: "List the configured derivation pipelines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configFlag)
			if err != nil {
				return err
			}
			_, pipelines, err := newPipelineRegistry(cfg)
			if err != nil {
				return err
			}

			tw := table.NewWriter()
			tw.SetStyle(table.StyleRounded)
			tw.AppendHeader(table.Row{"Pipeline", "Steps"})
			for _, name := range pipelines.Names() {
				spec, err := pipelines.Resolve(name)
				if err != nil {
					return err
				}
				steps := ""
				for i, step := range spec.Steps {
					if i > 0 {
						steps += " > "
					}
					steps += step.Name
				}
				tw.AppendRow(table.Row{name, steps})
			}
			fmt.Fprintln(cmd.OutOrStdout(), tw.Render())
			return nil
		},
	}
}
