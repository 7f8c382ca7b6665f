package main

import (
	"github.com/spf13/cobra"
)

type stageView struct {
	Written     []string `yaml:"written,omitempty"`
	Unchanged   []string `yaml:"unchanged,omitempty"`
	Removed     []string `yaml:"removed,omitempty"`
	Interrupted []string `yaml:"interrupted,omitempty"`
	MountErrors []string `yaml:"mount_errors,omitempty"`
}

func (c *CLI) newStageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stage",
		Short: "Stage bootstrap files and remove strays from the bootstrap directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, _, err := c.runtime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			report, err := rt.Start(cmd.Context())
			if err != nil {
				return err
			}
			view := stageView{
				Written:     report.Written,
				Unchanged:   report.Unchanged,
				Removed:     report.Removed,
				Interrupted: report.Interrupted,
			}
			for _, e := range rt.MountErrors() {
				view.MountErrors = append(view.MountErrors, e.Error())
			}
			return writeYAML(cmd.OutOrStdout(), view)
		},
	}
}
