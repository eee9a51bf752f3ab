package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/campus-rooms/internal/application"
	"github.com/example/campus-rooms/internal/config"
	"github.com/example/campus-rooms/internal/logging"
	"github.com/example/campus-rooms/internal/persistence/sqlstore"
)

// environment is what every subcommand needs before doing its work.
type environment struct {
	cfg    config.Config
	logger *slog.Logger
}

func loadEnvironment(cmd *cobra.Command) (environment, error) {
	cfg, err := config.Load()
	if err != nil {
		return environment{}, err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return environment{}, err
	}
	return environment{cfg: cfg, logger: logger.With("service", "roombook")}, nil
}

// openStore connects to the configured database and applies pending migrations.
func openStore(ctx context.Context, env environment) (*sqlstore.Store, error) {
	store, err := sqlstore.Open(ctx, sqlstore.Dialect(env.cfg.DatabaseDriver), env.cfg.DatabaseDSN, env.logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	applied, err := store.Migrate(ctx)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	env.logger.InfoContext(ctx, "database ready", "driver", env.cfg.DatabaseDriver, "migrations_applied", applied)
	return store, nil
}

func closeStore(env environment, store *sqlstore.Store) {
	if err := store.Close(); err != nil {
		env.logger.Error("failed to close storage", "error", err)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "roombook",
		Short:         "University room booking service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newUsersCmd(),
		newBookingsCmd(),
	)
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the booking completion sweeper",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := loadEnvironment(cmd)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), env)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := loadEnvironment(cmd)
			if err != nil {
				return err
			}
			store, err := sqlstore.Open(cmd.Context(), sqlstore.Dialect(env.cfg.DatabaseDriver), env.cfg.DatabaseDSN, env.logger)
			if err != nil {
				return fmt.Errorf("open storage: %w", err)
			}
			defer closeStore(env, store)

			applied, err := store.Migrate(cmd.Context())
			if err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", applied)
			return nil
		},
	}
}

func newUsersCmd() *cobra.Command {
	users := &cobra.Command{
		Use:   "users",
		Short: "Manage accounts",
	}

	var input application.UserInput
	createAdmin := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if input.Password == "" {
				input.Password = os.Getenv("ROOMBOOK_ADMIN_PASSWORD")
			}
			env, err := loadEnvironment(cmd)
			if err != nil {
				return err
			}
			store, err := openStore(cmd.Context(), env)
			if err != nil {
				return err
			}
			defer closeStore(env, store)

			user, err := application.NewUserService(store, nil, nil).Bootstrap(cmd.Context(), input)
			if err != nil {
				return fmt.Errorf("create administrator: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created administrator %s (id %d)\n", user.Email, user.ID)
			return nil
		},
	}
	createAdmin.Flags().StringVar(&input.Email, "email", "", "administrator email address")
	createAdmin.Flags().StringVar(&input.Name, "name", "Administrator", "display name")
	createAdmin.Flags().StringVar(&input.Password, "password", "", "initial password (default $ROOMBOOK_ADMIN_PASSWORD)")
	_ = createAdmin.MarkFlagRequired("email")

	users.AddCommand(createAdmin)
	return users
}

func newBookingsCmd() *cobra.Command {
	bookings := &cobra.Command{
		Use:   "bookings",
		Short: "Booking maintenance tasks",
	}
	bookings.AddCommand(&cobra.Command{
		Use:   "complete",
		Short: "Mark confirmed bookings whose end time has passed as completed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := loadEnvironment(cmd)
			if err != nil {
				return err
			}
			store, err := openStore(cmd.Context(), env)
			if err != nil {
				return err
			}
			defer closeStore(env, store)

			service := application.NewBookingServiceWithLogger(store, store, nil, nil, env.logger)
			n, err := service.CompleteElapsedBookings(cmd.Context())
			if err != nil {
				return fmt.Errorf("complete bookings: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "completed %d booking(s)\n", n)
			return nil
		},
	})
	return bookings
}
