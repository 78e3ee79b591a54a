package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rollq/internal/queue"
	"rollq/internal/rolling"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var campus string

	cmd := &cobra.Command{
		Use:   "stats [associateID]",
		Short: "Show queue statistics",
		Long: `Show queue statistics for one associate, for every associate assigned
to a campus (--campus), or for every associate with queue entries.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if campus != "" && len(args) > 0 {
				return fmt.Errorf("specify an associate or --campus, not both")
			}
			return ctx.withManager(cmd, func(m *rolling.Manager, store *queue.Store) error {
				out := cmd.OutOrStdout()

				if len(args) == 1 {
					stats, err := m.GetStats(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					writeStats(out, []queue.Stats{stats})
					return nil
				}

				if campus != "" {
					stats, err := m.GetStatsByCampus(cmd.Context(), campus)
					if err != nil {
						return err
					}
					if len(stats) == 0 {
						fmt.Fprintf(out, "No associates assigned to %s\n", campus)
						return nil
					}
					writeStats(out, stats)
					return nil
				}

				associateIDs, err := store.Associates(cmd.Context())
				if err != nil {
					return err
				}
				if len(associateIDs) == 0 {
					fmt.Fprintln(out, "No queues yet")
					return nil
				}
				all := make([]queue.Stats, 0, len(associateIDs))
				for _, associateID := range associateIDs {
					stats, err := m.GetStats(cmd.Context(), associateID)
					if err != nil {
						return err
					}
					all = append(all, stats)
				}
				writeStats(out, all)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&campus, "campus", "", "Aggregate every associate assigned to this campus")
	return cmd
}
