package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rollq/internal/queue"
	"rollq/internal/rolling"
)

func newAssignCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "assign <associateID> <campus>",
		Short: "Assign an associate to a campus",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(cmd, func(_ *rolling.Manager, store *queue.Store) error {
				if err := store.Assign(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Assigned %s to %s\n", args[0], args[1])
				return nil
			})
		},
	}
}

func newUnassignCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "unassign <associateID> <campus>",
		Short: "Remove an associate's campus assignment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(cmd, func(_ *rolling.Manager, store *queue.Store) error {
				removed, err := store.Unassign(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				if !removed {
					fmt.Fprintf(cmd.OutOrStdout(), "%s was not assigned to %s\n", args[0], args[1])
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Unassigned %s from %s\n", args[0], args[1])
				return nil
			})
		},
	}
}
