package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

// JobsQueue is the part of the job queue the CLI drives.
type JobsQueue interface {
	Trigger(ctx context.Context, name string, fix bool) (string, error)
	InspectQueue(ctx context.Context) (QueueStats, error)
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *jobs.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) *JobsCLI {
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	return &JobsCLI{client: jobs.NewClient(opts), inspector: asynq.NewInspector(opts)}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var errs []error
	if c.inspector != nil {
		errs = append(errs, c.inspector.Close())
	}
	if c.client != nil {
		errs = append(errs, c.client.Close())
	}
	return errors.Join(errs...)
}

// Trigger enqueues a ledger job by task type and returns the task id.
func (c *JobsCLI) Trigger(ctx context.Context, name string, fix bool) (string, error) {
	if c == nil || c.client == nil {
		return "", errors.New("jobs cli: client not configured")
	}
	task, err := jobs.NewTask(name, fix)
	if err != nil {
		return "", err
	}
	info, err := c.client.Enqueue(ctx, task)
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
	Failed    int
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Failed = info.Failed
	}
	return stats, nil
}

func newJobsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Trigger and inspect background ledger jobs",
	}

	var fix bool
	trigger := &cobra.Command{
		Use:   "trigger TASK",
		Short: "Enqueue a ledger job now",
		Long:  "Enqueue one of " + strings.Join(jobs.TaskNames, ", ") + ".",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, err := jobsQueue(cmd)
			if err != nil {
				return err
			}
			id, err := queue.Trigger(cmd.Context(), args[0], fix)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s as %s\n", args[0], id)
			return nil
		},
	}
	trigger.Flags().BoolVar(&fix, "fix", false, "repair inconsistent masters when triggering reconciliation")

	inspect := &cobra.Command{
		Use:   "inspect",
		Short: "Show the default queue depth",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, err := jobsQueue(cmd)
			if err != nil {
				return err
			}
			stats, err := queue.InspectQueue(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queue=%s pending=%d active=%d scheduled=%d retry=%d failed=%d\n",
				stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Failed)
			return nil
		},
	}

	cmd.AddCommand(trigger, inspect)
	return cmd
}

func jobsQueue(cmd *cobra.Command) (JobsQueue, error) {
	env := envFrom(cmd)
	if env == nil || env.Jobs == nil {
		return nil, errors.New("jobs: queue not configured")
	}
	return env.Jobs, nil
}
