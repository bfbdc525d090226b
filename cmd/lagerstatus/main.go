package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lagerstatus/internal/app"
	"lagerstatus/internal/config"
)

type cli struct {
	configPath string
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:          "lagerstatus",
		Short:        "Inventory reservation sweeper and dashboard API",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", os.Getenv("LAGERSTATUS_CONFIG"), "path to config.yaml")

	root.AddCommand(newServeCommand(c), newSweepCommand(c), newExportCommand(c))
	return root
}

// load reads the config and builds the app for one command.
func (c *cli) load(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return a, nil
}
