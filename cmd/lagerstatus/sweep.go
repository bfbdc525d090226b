package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"lagerstatus/internal/export"
)

func newSweepCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one sweep and print the result as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := c.load(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			runCtx, cancel := context.WithTimeout(ctx, a.Config.RunTimeout())
			defer cancel()

			res, err := a.Sweeper.Run(runCtx, a.Config.Server.AuthKey)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
}

func newExportCommand(c *cli) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the current reservations to an xlsx file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.load(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.Sweeper.List(cmd.Context())
			if err != nil {
				return err
			}

			wb, err := export.Reservations(entries)
			if err != nil {
				return err
			}
			defer wb.Close()

			if err := wb.SaveToFile(output); err != nil {
				return fmt.Errorf("save %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d reservations to %s\n", len(entries), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "reservationer.xlsx", "output file")
	return cmd
}
