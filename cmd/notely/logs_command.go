package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"notely/internal/api"
	"notely/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var component, jobID, level string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show daemon logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			client, err := logs.NewStreamClient(cfg.Paths.APIBind, cfg.Paths.APIToken)
			if err != nil {
				return fmt.Errorf("daemon api address: %w", err)
			}
			if client != nil {
				query := logs.StreamQuery{
					Limit:     lines,
					Follow:    follow,
					Tail:      true,
					Component: component,
					JobID:     jobID,
					Level:     level,
				}
				err := client.Stream(cmd.Context(), query, func(evt api.LogEvent) {
					if ctx.jsonMode() {
						_ = writeJSON(cmd, evt)
						return
					}
					printLogEvent(out, evt)
				})
				if err == nil || !logs.IsAPIUnavailable(err) {
					return err
				}
			}

			// Daemon unreachable: read the log file it left behind.
			if component != "" || jobID != "" || level != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "Daemon not running: filters ignored, showing the raw log file")
			}
			return logs.TailFile(cmd.Context(), cfg.DaemonLogPath(), logs.TailOptions{
				Lines:  lines,
				Follow: follow,
				Poll:   500 * time.Millisecond,
			}, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of recent lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new log lines")
	cmd.Flags().StringVar(&component, "component", "", "Only show one component (e.g. upload-pool)")
	cmd.Flags().StringVar(&jobID, "job", "", "Only show lines for one upload")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level (debug, info, warn, error)")
	return cmd
}

func printLogEvent(out io.Writer, evt api.LogEvent) {
	ts := evt.Timestamp
	if t, ok := api.ParseTime(evt.Timestamp); ok {
		ts = t.Local().Format("2006-01-02 15:04:05")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-5s", ts, strings.ToUpper(evt.Level))
	if evt.Component != "" {
		fmt.Fprintf(&b, " [%s]", evt.Component)
	}
	b.WriteString(" ")
	b.WriteString(evt.Message)
	if evt.JobID != "" {
		fmt.Fprintf(&b, " job=%s", evt.JobID)
	}
	keys := make([]string, 0, len(evt.Fields))
	for k := range evt.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, evt.Fields[k])
	}
	fmt.Fprintln(out, b.String())
}
