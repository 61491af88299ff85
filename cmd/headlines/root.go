package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pders01/headlines/internal/app"
	"github.com/pders01/headlines/internal/config"
)

type globalFlags struct {
	configPath string
	dbPath     string
}

// load reads the configuration and applies command-line overrides.
func (g *globalFlags) load() (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if g.dbPath != "" {
		cfg.Database.Path = g.dbPath
	}
	if err := app.SetupLogging(cfg.Log); err != nil {
		return nil, fmt.Errorf("setting up logging: %w", err)
	}
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "headlines",
		Short:         "News aggregation service",
		Long:          "headlines fetches top stories from several news providers, merges and personalizes them, and serves them over HTTP or in a terminal browser.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "path to configuration file")
	root.PersistentFlags().StringVar(&g.dbPath, "db", "", "path to database file (overrides config)")

	root.AddCommand(
		newServeCmd(g),
		newFetchCmd(g),
		newBrowseCmd(g),
		newConfigCmd(),
		newUserCmd(g),
		newOpenCmd(g),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "headlines %s\n", Version)
			fmt.Fprintln(out, "News aggregator")
			fmt.Fprintln(out, "github.com/pders01/headlines")
		},
	}
}
