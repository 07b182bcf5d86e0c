package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/machine-booker/internal/attempts"
	"github.com/example/machine-booker/internal/auth"
	"github.com/example/machine-booker/internal/booking"
	"github.com/example/machine-booker/internal/config"
	"github.com/example/machine-booker/internal/credentials"
	"github.com/example/machine-booker/internal/jobs"
	"github.com/example/machine-booker/internal/logging"
	"github.com/example/machine-booker/internal/scheduler"
	"github.com/example/machine-booker/internal/upstream"
	"github.com/example/machine-booker/internal/web"
)

func newServerCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the JSON API + auto-booking scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if err := cfg.ValidateServer(); err != nil {
				return err
			}
			logger := logging.New(cfg.LogLevel)
			slog.SetDefault(logger)

			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			schedule, err := cfg.Schedule()
			if err != nil {
				return err
			}
			hashKey, blockKey, err := cfg.CookieKeys()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			store, closeStore, err := openJobStore(ctx, cfg, migrateUp, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			// upstream + token lifecycle
			client := upstream.New(upstream.Config{
				BaseURL:        cfg.UpstreamBaseURL,
				Timeout:        cfg.UpstreamTimeout,
				BreakerTimeout: cfg.UpstreamBreakerTimeout,
			}, logger)
			tokens := credentials.New(client, cfg.Fallback(), credentials.WithLogger(logger))
			platform := client.WithTokenSource(tokens)

			// booking pipeline
			resource := cfg.Resource()
			calendar := booking.NewCalendar(loc, schedule)
			gateway := booking.NewGateway(platform, resource, calendar)
			booker := booking.NewBooker(
				booking.NewValidator(gateway, calendar),
				booking.NewPreviewer(platform, resource),
				booking.NewSubmitter(platform, resource),
				tokens,
				logger,
			)

			// automation
			jobService := jobs.NewService(store, schedule, logger)
			feed := attempts.NewLog(cfg.FeedSize)
			s := &scheduler.Scheduler{
				Jobs:            jobService,
				Booker:          booker,
				Attempts:        feed,
				Calendar:        calendar,
				Logger:          logger,
				Delay:           cfg.SchedulerDelay,
				AttemptInterval: cfg.AttemptInterval,
			}
			schedDone := make(chan struct{})
			go func() {
				defer close(schedDone)
				_ = s.Run(ctx)
			}()

			// web
			ws := &web.Server{
				Credentials:  tokens,
				Breaker:      client,
				Sessions:     auth.NewSessions(hashKey, blockKey),
				Operator:     auth.Operator{Username: cfg.OperatorUsername, PasswordHash: cfg.OperatorPasswordBcrypt},
				Availability: gateway,
				Booker:       booker,
				Bookings:     booking.NewBookings(platform, calendar),
				Jobs:         jobService,
				Attempts:     feed,
				Logger:       logger,
			}
			logger.Info("starting machinebook",
				slog.String("version", Version),
				slog.String("base_url", cfg.BaseURL),
				slog.String("time_zone", loc.String()),
				slog.String("work_hours", schedule.Describe()),
				slog.String("job_store", cfg.JobStore))
			err = web.Start(ctx, cfg.ListenAddr, ws.Routes(), logger)
			// the scheduler must be idle before the token is dropped and the store closed
			cancel()
			<-schedDone

			logoutCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			tokens.Logout(logoutCtx)
			return err
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup (postgres job store)")

	cmd.Flags().Lookup("migrate").NoOptDefVal = "true"
	return cmd
}
