package main

import (
	"github.com/spf13/cobra"
)

const (
	groupPipeline = "pipeline"
	groupInspect  = "inspect"
)

func newRootCommand() *cobra.Command {
	var configPath string
	ctx := newCommandContext(&configPath)

	root := &cobra.Command{
		Use:   "agbprep",
		Short: "Prepare forest inventory plots and acquire matching satellite bands",
		Long: "agbprep turns a raw subplot inventory into plot-level biomass, circular plot\n" +
			"geometries and per-band rasters. Each stage can run alone; reruns only\n" +
			"download what is missing.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file path")

	root.AddGroup(
		&cobra.Group{ID: groupPipeline, Title: "Pipeline stages:"},
		&cobra.Group{ID: groupInspect, Title: "Inspection:"},
	)
	for _, cmd := range newStageCommands(ctx) {
		cmd.GroupID = groupPipeline
		root.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{newStatusCommand(ctx), newHistoryCommand(ctx), newDoctorCommand(ctx)} {
		cmd.GroupID = groupInspect
		root.AddCommand(cmd)
	}
	root.AddCommand(newConfigCommand(ctx))
	return root
}
