package main

import (
	"github.com/spf13/cobra"
)

type specView struct {
	Name            string   `yaml:"name"`
	Kind            string   `yaml:"kind"`
	Origin          string   `yaml:"origin"`
	File            string   `yaml:"file,omitempty"`
	Package         bool     `yaml:"package,omitempty"`
	SearchLocations []string `yaml:"search_locations,omitempty"`
}

type libraryView struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

func (c *CLI) newResolveCmd() *cobra.Command {
	var library bool
	cmd := &cobra.Command{
		Use:   "resolve NAME...",
		Short: "Show where modules or native libraries resolve to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, _, err := c.runtime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			if library {
				var out []libraryView
				for _, name := range args {
					p, err := rt.Resolver().FindLibrary(name)
					if err != nil {
						return err
					}
					out = append(out, libraryView{Name: name, Path: p})
				}
				return writeYAML(cmd.OutOrStdout(), out)
			}

			var out []specView
			for _, name := range args {
				spec, err := rt.Resolver().Resolve(name)
				if err != nil {
					return err
				}
				out = append(out, specView{
					Name:            spec.Name,
					Kind:            spec.Kind.String(),
					Origin:          spec.Origin,
					File:            spec.File,
					Package:         spec.IsPackage,
					SearchLocations: spec.SearchLocations,
				})
			}
			return writeYAML(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().BoolVarP(&library, "library", "L", false, "resolve native library names instead of modules")
	return cmd
}
