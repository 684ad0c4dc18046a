package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"faulty-asset-tracker/internal/config"
	"faulty-asset-tracker/internal/database"
	"faulty-asset-tracker/internal/events"
	"faulty-asset-tracker/internal/logging"
	"faulty-asset-tracker/internal/metrics"
	"faulty-asset-tracker/internal/server"
	"faulty-asset-tracker/internal/telemetry"
	"faulty-asset-tracker/internal/users"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const serviceName = "faulty-asset-tracker"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Faulty asset tracking API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newCreateUserCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and seed the default roles",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, log, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			db, err := openDatabase(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer database.Close(db)
			log.Info().Msg("migrations applied")
			return nil
		},
	}
}

func newCreateUserCommand() *cobra.Command {
	var in users.CreateUserInput

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a platform user",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, log, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			db, err := openDatabase(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer database.Close(db)

			user, err := users.NewService(db, log).CreateUser(ctx, in)
			if err != nil {
				return err
			}
			log.Info().Uint("id", user.ID).Str("email", user.Email).Strs("roles", user.RoleNames()).Msg("user created")
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Email, "email", "", "Login email")
	cmd.Flags().StringVar(&in.Password, "password", "", "Initial password (min 8 characters)")
	cmd.Flags().StringVar(&in.Name, "name", "", "Display name, defaults to the email")
	cmd.Flags().StringVar(&in.Role, "role", "", "Admin or Employee, defaults to Employee")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func bootstrap(ctx context.Context) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logging.Setup(cfg.LogLevel, cfg.LogFormat), nil
}

func openDatabase(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*gorm.DB, error) {
	db, err := database.Open(ctx, database.Options{Driver: cfg.DatabaseDriver, DSN: cfg.DatabaseDSN, Log: log})
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db, cfg.DatabaseDriver, log); err != nil {
		_ = database.Close(db)
		return nil, err
	}
	if err := database.Seed(ctx, db); err != nil {
		_ = database.Close(db)
		return nil, err
	}
	return db, nil
}

func runServe(ctx context.Context) error {
	cfg, log, err := bootstrap(ctx)
	if err != nil {
		return err
	}

	shutdownTracing, err := telemetry.Init(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn().Err(err).Msg("tracer shutdown")
		}
	}()

	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer database.Close(db)

	var publisher events.Publisher = events.Nop{}
	if cfg.NATSURL != "" {
		np, err := events.NewNATSPublisher(cfg.NATSURL, nats.Name(serviceName))
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer np.Close()
		publisher = np
		log.Info().Str("url", cfg.NATSURL).Msg("publishing asset events to NATS")
	}

	app := server.New(server.Deps{
		Config:  cfg,
		DB:      db,
		Log:     log,
		Metrics: metrics.New(),
		Events:  publisher,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Str("env", cfg.AppEnv).Msg("server listening")
		errCh <- app.Listen(":" + cfg.HTTPPort)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.ShutdownWithContext(sctx)
}
