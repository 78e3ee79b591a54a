package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rollq/internal/queue"
	"rollq/internal/rolling"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the queue database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(cmd, func(_ *rolling.Manager, store *queue.Store) error {
				out := cmd.OutOrStdout()

				check, err := store.CheckHealth(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Database:  %s\n", check.DBPath)
				fmt.Fprintf(out, "Readable:  %s\n", yesNo(check.DatabaseReadable))
				fmt.Fprintf(out, "Schema:    %s\n", yesNo(check.TableExists))
				fmt.Fprintf(out, "Integrity: %s\n", yesNo(check.IntegrityCheck))

				summary, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Total: %d\nWaiting: %d\nIn progress: %d\nCompleted: %d\nCancelled: %d\n",
					summary.Total,
					summary.Waiting,
					summary.InProgress,
					summary.Completed,
					summary.Cancelled,
				)
				return nil
			})
		},
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
