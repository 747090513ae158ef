package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/dashboard-baker/baker/jobs"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Trigger and inspect background jobs",
}

var jobsTriggerCmd = &cobra.Command{
	Use:   "trigger <job>",
	Short: "Enqueue a job now (warmup)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer func() { _ = client.Close() }()
		return runTrigger(cmd.Context(), cmd.OutOrStdout(), client, args[0])
	},
}

var jobsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the default queue counters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer func() { _ = inspector.Close() }()
		return runStats(cmd.OutOrStdout(), inspector)
	},
}

func init() {
	jobsCmd.AddCommand(jobsTriggerCmd, jobsStatsCmd)
}

type enqueuer interface {
	Enqueue(ctx context.Context, name string) (*asynq.TaskInfo, error)
}

func runTrigger(ctx context.Context, w io.Writer, client enqueuer, name string) error {
	info, err := client.Enqueue(ctx, name)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s %s id=%s queue=%s\n", colorGreen.Sprint("enfileirado:"), info.Type, info.ID, info.Queue)
	return err
}

func runStats(w io.Writer, inspector jobs.QueueInspector) error {
	info, err := inspector.GetQueueInfo(jobs.QueueDefault)
	if errors.Is(err, asynq.ErrQueueNotFound) {
		_, err = fmt.Fprintln(w, colorFaint.Sprint("fila vazia: nenhum job enfileirado ainda"))
		return err
	}
	if err != nil {
		return err
	}
	failed := fmt.Sprint(info.Failed)
	if info.Failed > 0 {
		failed = colorRed.Sprint(info.Failed)
	}
	_, err = fmt.Fprintf(w, "%s pending=%d active=%d scheduled=%d retry=%d processed_today=%d failed_today=%s\n",
		colorBold.Sprint(info.Queue), info.Pending, info.Active, info.Scheduled, info.Retry, info.Processed, failed)
	return err
}
