package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"notely/internal/api"
	"notely/internal/queueaccess"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the upload queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueStatsCommand(ctx))
	queueCmd.AddCommand(newQueueETACommand(ctx))
	queueCmd.AddCommand(newQueueHistoryCommand(ctx))
	queueCmd.AddCommand(newAddCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueReorderCommand(ctx))
	queueCmd.AddCommand(newQueueMoveCommand(ctx, true))
	queueCmd.AddCommand(newQueueMoveCommand(ctx, false))
	queueCmd.AddCommand(newQueuePriorityCommand(ctx))
	queueCmd.AddCommand(newQueueRefreshCommand(ctx))
	queueCmd.AddCommand(newQueueWatchCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued uploads in upload order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd.Context(), func(session queueaccess.Session) error {
				var view api.QueueView
				if len(statuses) > 0 {
					jobs, err := session.Access.List(cmd.Context(), statuses)
					if err != nil {
						return err
					}
					view.Jobs = jobs
				} else {
					var err error
					if view, err = session.Access.View(cmd.Context()); err != nil {
						return err
					}
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, view)
				}

				out := cmd.OutOrStdout()
				if len(view.Jobs) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprint(out, renderTable(queueListHeaders, buildQueueListRows(view.Jobs), queueListAligns))
				if len(statuses) == 0 {
					fmt.Fprintf(out, "Speed %s, queue ETA %s\n",
						formatSpeed(view.GlobalSpeed),
						formatDuration(secondsDuration(view.AggregateETASeconds)))
				}
				if !session.Remote() {
					fmt.Fprintln(out, "Daemon not running: showing the stored queue")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (pending, processing, error, failed)")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one queued upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd.Context(), func(session queueaccess.Session) error {
				job, err := session.Access.Describe(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, job)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:        %s\n", job.ID)
				fmt.Fprintf(out, "Name:      %s\n", job.Name)
				fmt.Fprintf(out, "Note:      %s\n", job.ParentID)
				fmt.Fprintf(out, "Type:      %s\n", job.MimeType)
				fmt.Fprintf(out, "Size:      %s\n", formatBytes(job.SizeBytes))
				fmt.Fprintf(out, "Status:    %s\n", titleCase(job.Status))
				fmt.Fprintf(out, "Priority:  %d\n", job.Priority)
				fmt.Fprintf(out, "Attempts:  %d\n", job.Attempts)
				fmt.Fprintf(out, "Queued:    %s\n", formatAge(job.CreatedAt))
				if job.Progress != nil {
					fmt.Fprintf(out, "Progress:  %s (%s of %s)\n",
						formatJobProgress(job),
						formatBytes(job.Progress.BytesTransferred),
						formatBytes(job.Progress.TotalBytes))
				}
				if eta := jobETA(job); eta != nil {
					fmt.Fprintf(out, "ETA:       %s\n", formatETA(eta))
				}
				if job.LastError != "" {
					fmt.Fprintf(out, "Error:     %s\n", job.LastError)
				}
				return nil
			})
		},
	}
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show job counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd.Context(), func(session queueaccess.Session) error {
				stats, err := session.Access.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, stats)
				}
				out := cmd.OutOrStdout()
				rows := buildQueueStatusRows(stats.Counts)
				if len(rows) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprint(out, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				fmt.Fprintf(out, "Waiting to upload: %s\n", formatBytes(stats.PendingBytes))
				return nil
			})
		},
	}
}

func newQueueETACommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "eta",
		Short: "Estimate how long until the queue drains",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd.Context(), func(session queueaccess.Session) error {
				view, err := session.Access.View(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, map[string]any{
						"globalSpeed":         view.GlobalSpeed,
						"aggregateEtaSeconds": view.AggregateETASeconds,
						"jobs":                len(view.Jobs),
					})
				}
				out := cmd.OutOrStdout()
				if len(view.Jobs) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				if view.GlobalSpeed <= 0 {
					fmt.Fprintf(out, "%d uploads queued; no transfer speed measured yet\n", len(view.Jobs))
					return nil
				}
				fmt.Fprintf(out, "%d uploads queued at %s; drains in about %s\n",
					len(view.Jobs),
					formatSpeed(view.GlobalSpeed),
					formatDuration(secondsDuration(view.AggregateETASeconds)))
				return nil
			})
		},
	}
}

func newQueueHistoryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "history <id>",
		Short: "Show recorded transfer speed for an upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd.Context(), func(session queueaccess.Session) error {
				history, err := session.Access.History(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, history)
				}
				out := cmd.OutOrStdout()
				if len(history.Samples) == 0 {
					fmt.Fprintln(out, "No speed samples recorded")
					return nil
				}
				last := history.Samples[len(history.Samples)-1]
				fmt.Fprintf(out, "%s  %s (%d samples)\n", sparkline(history.Samples), formatSpeed(last.Speed), len(history.Samples))
				return nil
			})
		},
	}
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	var parentID, name, mimeType string
	var priority int

	cmd := &cobra.Command{
		Use:   "add <file>",
		Short: "Queue a file for upload as a note attachment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := strings.TrimSpace(args[0])
			payload, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			upload := queueaccess.Upload{
				ParentID: strings.TrimSpace(parentID),
				OwnerID:  cfg.Storage.OwnerID,
				Name:     strings.TrimSpace(name),
				MimeType: strings.TrimSpace(mimeType),
				Priority: priority,
				Payload:  payload,
			}
			if upload.Name == "" {
				upload.Name = filepath.Base(path)
			}
			return ctx.withQueue(cmd.Context(), func(session queueaccess.Session) error {
				id, err := session.Access.Enqueue(cmd.Context(), upload)
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, api.EnqueueResponse{ID: id})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Queued %s (%s) as %s\n", upload.Name, formatBytes(int64(len(payload))), id)
				if !session.Remote() {
					fmt.Fprintln(out, "Daemon not running: the upload starts once it is")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&parentID, "note", "n", "", "Note the attachment belongs to")
	cmd.Flags().StringVar(&name, "name", "", "Attachment name (defaults to the file name)")
	cmd.Flags().StringVar(&mimeType, "mime", "", "MIME type (detected from content when empty)")
	cmd.Flags().IntVarP(&priority, "priority", "p", 0, "Upload priority; higher uploads first")
	_ = cmd.MarkFlagRequired("note")
	return cmd
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>...",
		Aliases: []string{"rm", "cancel"},
		Short:   "Remove uploads from the queue, cancelling active transfers",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd.Context(), func(session queueaccess.Session) error {
				out := cmd.OutOrStdout()
				for _, id := range args {
					id = strings.TrimSpace(id)
					if err := session.Access.Remove(cmd.Context(), id); err != nil {
						return fmt.Errorf("remove %s: %w", id, err)
					}
					fmt.Fprintf(out, "Removed %s\n", id)
				}
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "retry [id...]",
		Short: "Retry errored or failed uploads",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return errors.New("specify job ids or --all")
			}
			return ctx.withQueue(cmd.Context(), func(session queueaccess.Session) error {
				out := cmd.OutOrStdout()
				if all {
					ids, err := session.Access.RetryAll(cmd.Context())
					if err != nil {
						return err
					}
					if ctx.jsonMode() {
						return writeJSON(cmd, api.RetryAllResponse{IDs: ids})
					}
					if len(ids) == 0 {
						fmt.Fprintln(out, "No failed uploads to retry")
						return nil
					}
					fmt.Fprintf(out, "Retrying %d uploads\n", len(ids))
					return nil
				}
				for _, id := range args {
					id = strings.TrimSpace(id)
					if err := session.Access.Retry(cmd.Context(), id); err != nil {
						return fmt.Errorf("retry %s: %w", id, err)
					}
					fmt.Fprintf(out, "Retrying %s\n", id)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Retry every errored or failed upload")
	return cmd
}

func newQueueReorderCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <id>...",
		Short: "Put the listed uploads first, in the given order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd.Context(), func(session queueaccess.Session) error {
				if err := session.Access.Reorder(cmd.Context(), args); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reordered %d uploads\n", len(args))
				return nil
			})
		},
	}
}

func newQueueMoveCommand(ctx *commandContext, up bool) *cobra.Command {
	use, short := "down <id>", "Move an upload one place later"
	if up {
		use, short = "up <id>", "Move an upload one place earlier"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd.Context(), func(session queueaccess.Session) error {
				id := strings.TrimSpace(args[0])
				if err := session.Access.Move(cmd.Context(), id, up); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Moved %s\n", id)
				return nil
			})
		},
	}
}

func newQueuePriorityCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "priority <id> <value>",
		Short: "Set an upload's priority",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			priority, err := strconv.Atoi(strings.TrimSpace(args[1]))
			if err != nil {
				return fmt.Errorf("invalid priority %q", args[1])
			}
			return ctx.withQueue(cmd.Context(), func(session queueaccess.Session) error {
				id := strings.TrimSpace(args[0])
				if err := session.Access.SetPriority(cmd.Context(), id, priority); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Set priority of %s to %d\n", id, priority)
				return nil
			})
		},
	}
}

func newQueueRefreshCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Re-read the queue and notify watchers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd.Context(), func(session queueaccess.Session) error {
				view, err := session.Access.Refresh(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, view)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queue refreshed (%d uploads)\n", len(view.Jobs))
				return nil
			})
		},
	}
}

func newQueueWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow live queue events from the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd.Context(), func(client *queueaccess.Client) error {
				out := cmd.OutOrStdout()
				return client.Watch(cmd.Context(), func(msg api.StreamMessage) {
					if ctx.jsonMode() {
						_ = writeJSON(cmd, msg)
						return
					}
					switch {
					case msg.View != nil:
						fmt.Fprintf(out, "%d uploads queued, speed %s\n", len(msg.View.Jobs), formatSpeed(msg.View.GlobalSpeed))
					case msg.Event != nil:
						fmt.Fprintf(out, "%s %s\n", msg.Event.Action, msg.Event.JobID)
					}
				})
			})
		},
	}
}
