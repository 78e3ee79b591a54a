package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"rollq/internal/queue"
	"rollq/internal/rolling"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage associate queues",
	}

	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueNextCommand(ctx))
	queueCmd.AddCommand(newQueueCurrentCommand(ctx))
	queueCmd.AddCommand(newQueueAdvanceCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueCancelCommand(ctx))
	queueCmd.AddCommand(newQueueMoveCommand(ctx))
	queueCmd.AddCommand(newQueueRequeueCommand(ctx))
	queueCmd.AddCommand(newQueueNotesCommand(ctx))
	queueCmd.AddCommand(newQueueClearCompletedCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))

	return queueCmd
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var campus string
	var priority string

	cmd := &cobra.Command{
		Use:   "add <associateID> <studentID> <sessionRef>",
		Short: "Append a session to the end of an associate's queue",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parsePriorityFlag(ctx, priority)
			if err != nil {
				return err
			}
			return ctx.withLockedManager(cmd, func(m *rolling.Manager, _ *queue.Store) error {
				id, err := m.CreateEntry(cmd.Context(), args[0], args[1], args[2], campus, parsed)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added entry %s\n", id)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&campus, "campus", "", "Campus the session belongs to")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "Entry priority (low, medium, high, urgent)")
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list <associateID>",
		Short: "List an associate's queue in position order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(cmd, func(m *rolling.Manager, store *queue.Store) error {
				var entries []*queue.Entry
				var err error
				if statusFilter != "" {
					status, ok := queue.ParseStatus(statusFilter)
					if !ok {
						return fmt.Errorf("unknown status %q", statusFilter)
					}
					entries, err = store.ListByAssociateAndStatus(cmd.Context(), args[0], status)
				} else {
					entries, err = m.ListQueue(cmd.Context(), args[0])
				}
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				writeEntries(cmd.OutOrStdout(), entries)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&statusFilter, "status", "s", "", "Filter by status")
	return cmd
}

func newQueueNextCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "next <associateID>",
		Short: "Show the next waiting session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(cmd, func(m *rolling.Manager, _ *queue.Store) error {
				entry, err := m.GetNext(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if entry == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "No waiting sessions")
					return nil
				}
				writeEntryDetail(cmd.OutOrStdout(), entry)
				return nil
			})
		},
	}
}

func newQueueCurrentCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "current <associateID>",
		Short: "Show the session in progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(cmd, func(m *rolling.Manager, _ *queue.Store) error {
				entry, err := m.GetCurrent(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if entry == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "No session in progress")
					return nil
				}
				writeEntryDetail(cmd.OutOrStdout(), entry)
				return nil
			})
		},
	}
}

func newQueueAdvanceCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "advance <sessionRef>",
		Short: "Complete a session and start the next one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLockedManager(cmd, func(m *rolling.Manager, _ *queue.Store) error {
				if err := m.Advance(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Advanced past session %s\n", args[0])
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <entryID>",
		Short: "Delete an entry and close the gap it leaves",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLockedManager(cmd, func(m *rolling.Manager, _ *queue.Store) error {
				if err := m.Remove(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed entry %s\n", args[0])
				return nil
			})
		},
	}
}

func newQueueCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <entryID>",
		Short: "Cancel an entry without renumbering the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLockedManager(cmd, func(m *rolling.Manager, _ *queue.Store) error {
				if err := m.Cancel(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancelled entry %s\n", args[0])
				return nil
			})
		},
	}
}

func newQueueMoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "move <entryID> <position>",
		Short: "Move an entry to a new position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			position, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid position %q", args[1])
			}
			return ctx.withLockedManager(cmd, func(m *rolling.Manager, _ *queue.Store) error {
				if err := m.Reorder(cmd.Context(), args[0], position); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Moved entry %s to position %d\n", args[0], position)
				return nil
			})
		},
	}
}

func newQueueRequeueCommand(ctx *commandContext) *cobra.Command {
	var campus string
	var priority string
	var top bool

	cmd := &cobra.Command{
		Use:   "requeue <associateID> <studentID> <sessionRef>",
		Short: "Put a session back into an associate's queue",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parsePriorityFlag(ctx, priority)
			if err != nil {
				return err
			}
			return ctx.withLockedManager(cmd, func(m *rolling.Manager, _ *queue.Store) error {
				id, err := m.Requeue(cmd.Context(), args[2], args[1], args[0], campus, rolling.RequeueOptions{
					Priority:    parsed,
					InsertAtTop: top,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued as entry %s\n", id)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&campus, "campus", "", "Campus the session belongs to")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "Entry priority (low, medium, high, urgent)")
	cmd.Flags().BoolVar(&top, "top", false, "Insert behind the in-progress session instead of appending")
	return cmd
}

func newQueueNotesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "notes <entryID> <text>",
		Short: "Replace the notes on an entry",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			notes := strings.Join(args[1:], " ")
			return ctx.withLockedManager(cmd, func(m *rolling.Manager, _ *queue.Store) error {
				if err := m.UpdateNotes(cmd.Context(), args[0], notes); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated notes on entry %s\n", args[0])
				return nil
			})
		},
	}
}

func newQueueClearCompletedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-completed <associateID>",
		Short: "Remove completed entries and renumber the survivors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLockedManager(cmd, func(m *rolling.Manager, _ *queue.Store) error {
				removed, err := m.ClearCompleted(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d completed entries\n", removed)
				return nil
			})
		},
	}
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <entryID>",
		Short: "Show one entry in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(cmd, func(_ *rolling.Manager, store *queue.Store) error {
				entry, err := store.GetByID(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if entry == nil {
					return fmt.Errorf("entry %s not found", args[0])
				}
				writeEntryDetail(cmd.OutOrStdout(), entry)
				return nil
			})
		},
	}
}

func parsePriorityFlag(ctx *commandContext, value string) (queue.Priority, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		cfg, err := ctx.ensureConfig()
		if err != nil {
			return "", err
		}
		return queue.Priority(cfg.Queue.DefaultPriority), nil
	}
	priority, ok := queue.ParsePriority(value)
	if !ok {
		return "", fmt.Errorf("unknown priority %q", value)
	}
	return priority, nil
}
