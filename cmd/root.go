// Package cmd wires tracecore's CLI using cobra: a single root command
// (this process runs to completion over input_sources rather than
// persisting as a daemon), a mandatory -c/--config, and an -l/--log
// flag overriding the config file's log mode.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/packetloom/tracecore/internal/config"
	"github.com/packetloom/tracecore/internal/log"
	"github.com/packetloom/tracecore/internal/metrics"
	"github.com/packetloom/tracecore/internal/supervisor"
)

var (
	configFile string
	logMode    string
)

var rootCmd = &cobra.Command{
	Use:           "tracecore",
	Short:         "tracecore runs the parallel packet-analysis core over a sequence of input sources",
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "config file path (required)")
	rootCmd.Flags().StringVarP(&logMode, "log", "l", "", "log mode: stderr|terminal (default), file, syslog, disabled|off|none")
	rootCmd.MarkFlagRequired("config")

	// -h/--help prints usage and exits 1, not cobra's default 0; this
	// process has no interactive help-and-continue mode.
	rootCmd.SetHelpFunc(func(c *cobra.Command, args []string) {
		c.Usage()
		os.Exit(1)
	})
}

// Execute runs the root command. Called once by main.main.
func Execute() error {
	return rootCmd.Execute()
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if logMode != "" {
		cfg.Log.Mode = logMode
	}

	logger, err := log.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}

	ctx := cmd.Context()
	metricsServer, err := metrics.Serve(ctx, cfg.Metrics, logger)
	if err != nil {
		return fmt.Errorf("starting metrics endpoint: %w", err)
	}
	if metricsServer != nil {
		defer metricsServer.Stop(context.Background())
	}

	sup := supervisor.New(cfg, logger)
	return sup.Run(ctx)
}
