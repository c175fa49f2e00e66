package main

import (
	"fmt"
	"strconv"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/CondeArmand/gamemate-backend/internal/app"
	"github.com/CondeArmand/gamemate-backend/internal/version"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the task queue",
	}
	queueCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show per-queue task counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app.App) error {
				queues, err := a.Queue.Stats()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderQueueStats(queues))
				return nil
			})
		},
	})
	return queueCmd
}

var queueStatsColumns = []column{
	{title: "Queue"},
	{title: "Pending", count: true},
	{title: "Active", count: true},
	{title: "Retry", count: true},
	{title: "Archived", count: true},
	{title: "Processed", count: true},
	{title: "Failed", count: true},
}

func renderQueueStats(queues []*asynq.QueueInfo) string {
	rows := make([][]string, 0, len(queues))
	for _, q := range queues {
		rows = append(rows, []string{
			q.Queue,
			strconv.Itoa(q.Pending),
			strconv.Itoa(q.Active),
			strconv.Itoa(q.Retry),
			strconv.Itoa(q.Archived),
			strconv.Itoa(q.Processed),
			strconv.Itoa(q.Failed),
		})
	}
	return renderTable(queueStatsColumns, rows)
}

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app.App) error {
				if err := a.DB.Migrate(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
				return nil
			})
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print build information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()
			fmt.Fprintf(cmd.OutOrStdout(), "gamematectl %s (commit %s, %s)\n", info.Version, info.Commit, info.GoVersion)
			return nil
		},
	}
}
