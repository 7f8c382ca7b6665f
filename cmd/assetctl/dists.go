package main

import (
	"github.com/spf13/cobra"

	"github.com/meigma/assetimport/metadata"
)

type distView struct {
	Name     string   `yaml:"name"`
	Version  string   `yaml:"version"`
	Author   string   `yaml:"author,omitempty"`
	Requires []string `yaml:"requires,omitempty"`
	Location string   `yaml:"location"`
}

func (c *CLI) newDistsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dists [NAME]",
		Short: "List installed distributions visible in the namespace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, _, err := c.runtime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			var dists []metadata.Distribution
			if len(args) == 1 {
				d, err := rt.Metadata().Get(args[0])
				if err != nil {
					return err
				}
				dists = append(dists, d)
			} else if dists, err = rt.Metadata().List(); err != nil {
				return err
			}

			out := make([]distView, 0, len(dists))
			for _, d := range dists {
				out = append(out, distView{
					Name:     d.Name,
					Version:  d.Version,
					Author:   d.Author,
					Requires: d.Requires,
					Location: d.Location,
				})
			}
			return writeYAML(cmd.OutOrStdout(), out)
		},
	}
}
