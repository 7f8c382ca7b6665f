package main

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"

	"github.com/meigma/assetimport"
	"github.com/meigma/assetimport/internal/config"
)

// CLI is the assetctl command tree.
type CLI struct {
	rootCmd *cobra.Command

	configPath string
	verbose    bool
	tag        string
	logFile    string

	fileLog *lumberjack.Logger
}

// NewCLI builds the command tree.
func NewCLI() *CLI {
	c := &CLI{}
	rootCmd := &cobra.Command{
		Use:           "assetctl",
		Short:         "Inspect archive roots and manage assetimport caches",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default ./assetimport.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log debug output")
	rootCmd.PersistentFlags().StringVar(&c.tag, "tag", "assetctl", "interpreter tag used for compiled cache names")
	rootCmd.PersistentFlags().StringVar(&c.logFile, "log-file", "", "also write logs to this file, rotated at 10 MB")
	rootCmd.PersistentPostRunE = func(*cobra.Command, []string) error {
		if c.fileLog == nil {
			return nil
		}
		return c.fileLog.Close()
	}

	rootCmd.AddCommand(c.newLsCmd())
	rootCmd.AddCommand(c.newStageCmd())
	rootCmd.AddCommand(c.newResolveCmd())
	rootCmd.AddCommand(c.newDistsCmd())
	rootCmd.AddCommand(c.newConfigCmd())
	c.rootCmd = rootCmd
	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

func (c *CLI) logger(w io.Writer) *slog.Logger {
	level := log.InfoLevel
	if c.verbose {
		level = log.DebugLevel
	}
	if c.logFile != "" {
		if c.fileLog == nil {
			c.fileLog = &lumberjack.Logger{
				Filename:   c.logFile,
				MaxSize:    10,
				MaxBackups: 3,
			}
		}
		w = io.MultiWriter(w, c.fileLog)
	}
	return slog.New(log.NewWithOptions(w, log.Options{
		Prefix: "assetctl",
		Level:  level,
	}))
}

// runtime loads the configuration and builds a runtime from it. Roots that
// fail to mount are reported as warnings.
func (c *CLI) runtime(cmd *cobra.Command) (*assetimport.Runtime, assetimport.Config, error) {
	cfg, _, err := config.Load(c.configPath)
	if err != nil {
		return nil, cfg, err
	}
	rt, err := assetimport.New(cfg, inspectCompiler{tag: c.tag},
		assetimport.WithLogger(c.logger(cmd.ErrOrStderr())),
	)
	if err != nil {
		return nil, cfg, err
	}
	return rt, cfg, nil
}

// inspectCompiler names a runtime identity but cannot compile. assetctl
// resolves and extracts; it never executes code.
type inspectCompiler struct {
	tag string
}

var errNoCompiler = errors.New("assetctl cannot compile source")

func (inspectCompiler) Magic() [4]byte { return [4]byte{0, 0, '\r', '\n'} }

func (c inspectCompiler) Tag() string { return c.tag }

func (inspectCompiler) Compile([]byte, string) ([]byte, error) {
	return nil, errNoCompiler
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
