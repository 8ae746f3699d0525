// Package cmd wires the siteaudit CLI.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seolens/siteaudit/internal/config"
	"github.com/seolens/siteaudit/internal/logging"
)

var (
	cfgFile string
	devLog  bool
)

var rootCmd = &cobra.Command{
	Use:   "siteaudit",
	Short: "Technical site audit engine",
	Long: `siteaudit crawls a website through a headless browser, runs a set of
technical checks over the rendered pages, and produces an issue report.
It can run as an HTTP service with live progress streaming, or audit a
single site from the command line.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVar(&devLog, "dev", false, "human-readable development logging")
}

// setup loads configuration and builds the logger shared by all
// subcommands.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Logging.Development || devLog)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
