package main

import (
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/geoapp/geoapp-api/jobs"
)

func redisOpts(e *env) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: e.cfg.RedisAddr, Password: e.cfg.RedisPassword, DB: e.cfg.RedisDB}
}

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage background jobs.",
	}
	cmd.AddCommand(&cobra.Command{
		Use:     "provision [userId]",
		Short:   "Enqueue time-series bucket provisioning for a user.",
		Example: "geoctl jobs provision 6f1c1e1a-8a39-4c4e-9d7a-3a8c1f3b2e10",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			client := jobs.NewClient(redisOpts(e))
			defer client.Close()
			if err := client.EnqueueProvisionBucket(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s for %s\n", jobs.TaskProvisionBucket, args[0])
			return nil
		},
	}, &cobra.Command{
		Use:   "reconcile",
		Short: "Enqueue a sweep that provisions every missing bucket.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			client := jobs.NewClient(redisOpts(e))
			defer client.Close()
			if err := client.EnqueueReconcileBuckets(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s\n", jobs.TaskReconcileBuckets)
			return nil
		},
	}, &cobra.Command{
		Use:   "stats",
		Short: "Report the default queue state.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			inspector := asynq.NewInspector(redisOpts(e))
			defer inspector.Close()
			info, err := inspector.GetQueueInfo(jobs.QueueDefault)
			if errors.Is(err, asynq.ErrQueueNotFound) {
				fmt.Fprintf(cmd.OutOrStdout(), "queue=%s empty\n", jobs.QueueDefault)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
				info.Queue, info.Pending, info.Active, info.Scheduled, info.Retry, info.Archived)
			return nil
		},
	})
	return cmd
}
