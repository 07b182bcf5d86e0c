package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/example/machine-booker/internal/civil"
	"github.com/example/machine-booker/internal/config"
	"github.com/example/machine-booker/internal/jobs"
	"github.com/example/machine-booker/internal/logging"
)

func newJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Manage auto-booking jobs (non-UI)",
	}
	cmd.AddCommand(newJobCreateCmd())
	cmd.AddCommand(newJobListCmd())
	cmd.AddCommand(newJobStatusCmd("pause", "Pause a job", jobs.StatusPaused))
	cmd.AddCommand(newJobStatusCmd("resume", "Resume a paused job", jobs.StatusActive))
	cmd.AddCommand(newJobDeleteCmd())
	return cmd
}

// errFileStoreWrite is returned for job changes against the file store. A
// running server holds the file in memory and would overwrite them.
var errFileStoreWrite = errors.New("job changes need the running server when JOB_STORE=file; use the HTTP API at /api/automation/jobs")

// withJobs opens the configured store and hands a job service to fn. Commands
// that change jobs pass mutates and are refused for the file store.
func withJobs(mutates bool, fn func(ctx context.Context, svc *jobs.Service) error) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if mutates && cfg.JobStore == config.StoreFile {
		return errFileStoreWrite
	}
	schedule, err := cfg.Schedule()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.LogLevel)

	ctx := context.Background()
	store, closeStore, err := openJobStore(ctx, cfg, true, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	return fn(ctx, jobs.NewService(store, schedule, logger))
}

func newJobCreateCmd() *cobra.Command {
	var (
		startDate string
		startTime string
		endTime   string
		paused    bool
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Create a weekly job booking start-end on the weekday of --start-date",
		RunE: func(cmd *cobra.Command, args []string) error {
			sd, err := civil.ParseDate(startDate)
			if err != nil {
				return fmt.Errorf("invalid --start-date (want YYYY-MM-DD)")
			}
			st, err := civil.ParseTimeOfDay(startTime)
			if err != nil {
				return fmt.Errorf("invalid --start (want HH:MM): %w", err)
			}
			et, err := civil.ParseTimeOfDay(endTime)
			if err != nil {
				return fmt.Errorf("invalid --end (want HH:MM): %w", err)
			}
			status := jobs.StatusActive
			if paused {
				status = jobs.StatusPaused
			}

			return withJobs(true, func(ctx context.Context, svc *jobs.Service) error {
				j, err := svc.Create(ctx, jobs.CreateRequest{StartDate: &sd, StartTime: &st, EndTime: &et, Status: status})
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "created job id=%s day=%s %s-%s\n", j.ID, j.DayOfWeek, j.StartTime, j.EndTime)
				return nil
			})
		},
	}

	c.Flags().StringVar(&startDate, "start-date", "", "first date to book, YYYY-MM-DD; its weekday repeats weekly")
	c.Flags().StringVar(&startTime, "start", "", "start time HH:MM")
	c.Flags().StringVar(&endTime, "end", "", "end time HH:MM")
	c.Flags().BoolVar(&paused, "paused", false, "create the job paused")

	_ = c.MarkFlagRequired("start-date")
	_ = c.MarkFlagRequired("start")
	_ = c.MarkFlagRequired("end")
	return c
}

func newJobListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJobs(false, func(ctx context.Context, svc *jobs.Service) error {
				printJobs(os.Stdout, svc.List(ctx))
				return nil
			})
		},
	}
}

func printJobs(w io.Writer, js []jobs.Job) {
	for _, j := range js {
		last := "-"
		if j.LastAttemptAt != nil {
			last = j.LastAttemptAt.Format(time.RFC3339)
		}
		booked := "-"
		if j.LastBookedDate != nil {
			booked = j.LastBookedDate.String()
		}
		fmt.Fprintf(w, "id=%s status=%s day=%s time=%s-%s from=%s last_attempt=%s last_booked=%s\n",
			j.ID, j.Status, j.DayOfWeek, j.StartTime, j.EndTime, j.StartDate, last, booked)
	}
}

func newJobStatusCmd(use, short string, status jobs.Status) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <job-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid job id: %w", err)
			}
			return withJobs(true, func(ctx context.Context, svc *jobs.Service) error {
				j, err := svc.UpdateStatus(ctx, id, status)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "job %s is %s\n", j.ID, j.Status)
				return nil
			})
		},
	}
}

func newJobDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <job-id>",
		Short: "Delete a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid job id: %w", err)
			}
			return withJobs(true, func(ctx context.Context, svc *jobs.Service) error {
				if err := svc.Delete(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "deleted job %s\n", id)
				return nil
			})
		},
	}
}
