package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/meigma/assetimport/archive"
	"github.com/meigma/assetimport/internal/pathutil"
)

type entryView struct {
	Path           string `yaml:"path"`
	Kind           string `yaml:"kind"`
	Size           uint64 `yaml:"size"`
	CompressedSize uint64 `yaml:"compressed_size"`
	Method         uint16 `yaml:"method"`
	ModTime        string `yaml:"mtime"`
}

func (c *CLI) newLsCmd() *cobra.Command {
	var long, asYAML bool
	var glob string
	cmd := &cobra.Command{
		Use:   "ls ARCHIVE [DIR]",
		Short: "List the entries of an archive",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := archive.OpenFile(args[0])
			if err != nil {
				return err
			}
			defer src.Close()

			id := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			idx, err := archive.Open(id, src, archive.WithLogger(c.logger(cmd.ErrOrStderr())))
			if err != nil {
				return err
			}
			dir := ""
			if len(args) == 2 {
				dir = pathutil.Normalize(args[1])
				if dir == "." {
					dir = ""
				}
				if !idx.IsDir(dir) {
					return fmt.Errorf("%s: %w", args[1], archive.ErrNotFound)
				}
			}

			if glob != "" && !doublestar.ValidatePattern(glob) {
				return fmt.Errorf("invalid glob %q", glob)
			}
			if !long && !asYAML && glob == "" {
				for _, ch := range idx.ListChildren(dir) {
					name := ch.Name
					if ch.IsDir {
						name += "/"
					}
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}

			var views []entryView
			for e := range idx.EntriesWithPrefix(pathutil.DirPrefix(dir)) {
				if glob != "" {
					if ok, _ := doublestar.Match(glob, e.Path); !ok {
						continue
					}
				}
				views = append(views, entryView{
					Path:           e.Path,
					Kind:           e.Kind.String(),
					Size:           e.RawSize,
					CompressedSize: e.CompressedSize,
					Method:         uint16(e.Method),
					ModTime:        e.ModTime.Format(time.RFC3339),
				})
			}
			if asYAML {
				return writeYAML(cmd.OutOrStdout(), views)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, v := range views {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", v.Kind, v.Size, v.ModTime, v.Path)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVarP(&long, "long", "l", false, "list every entry below DIR with kind, size and mtime")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "print entries as YAML")
	cmd.Flags().StringVarP(&glob, "glob", "g", "", "only list entries matching a ** glob, such as '**/*.so'")
	return cmd
}
