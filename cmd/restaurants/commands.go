package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"restaurant_reviews/pkg/circuitbreaker"
	"restaurant_reviews/pkg/config"
	"restaurant_reviews/pkg/database"
	"restaurant_reviews/pkg/logging"
	"restaurant_reviews/pkg/seed"
	"restaurant_reviews/pkg/store"
	"restaurant_reviews/pkg/views"

	"github.com/fatih/color"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
}

// bootstrap loads configuration, builds the logger and connects to the database.
func bootstrap() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Production, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if !cfg.EnvFileLoaded {
		logger.Info("No .env file found, using environment variables")
	}
	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, db: db}, nil
}

func (a *app) close() {
	if err := database.Close(a.db); err != nil {
		a.logger.Warn("Failed to close database connection", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func (a *app) store() *store.Store {
	breaker := circuitbreaker.New(a.cfg.BreakerMaxFailures, a.cfg.BreakerCooldown,
		circuitbreaker.WithFailureFilter(store.CountsAsFailure))
	return store.New(a.db, breaker)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "restaurants",
		Short: "Restaurant review web application",
		Long: `restaurants serves the restaurant review site and manages its database.

Examples:

  restaurants serve
  restaurants migrate
  restaurants seed --file fixtures.yaml
`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newDropCmd())
	root.AddCommand(newSeedCmd())
	root.AddCommand(newHealthCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Create missing tables and start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	if err := database.Migrate(a.db); err != nil {
		return err
	}

	tmpl, err := views.Templates(a.cfg.Production)
	if err != nil {
		return err
	}

	if a.cfg.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(newServer(a.store(), a.logger), tmpl)

	srv := &http.Server{
		Addr:         a.cfg.Addr(),
		Handler:      router,
		ReadTimeout:  a.cfg.RequestTimeout,
		WriteTimeout: a.cfg.RequestTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Restaurant review service starting", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the restaurant and review tables if they do not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			if err := database.Migrate(a.db); err != nil {
				return err
			}
			color.Green("✅ Tables restaurant and review are in place")
			return nil
		},
	}
}

func newDropCmd() *cobra.Command {
	var confirmed bool
	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Drop the review and restaurant tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return errors.New("refusing to drop tables without --yes")
			}
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			if err := database.Drop(a.db); err != nil {
				return err
			}
			color.Yellow("🗑️  Dropped tables review and restaurant")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&confirmed, "yes", "y", false, "Confirm dropping all data")
	return cmd
}

func newSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create tables and load sample restaurants and reviews",
		Long: `seed creates any missing tables and inserts the fixtures in a single
transaction. If any insert fails nothing is written. Running it twice inserts
the fixtures twice.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fixtures, err := loadFixtures(file)
			if err != nil {
				return err
			}

			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			if err := database.Migrate(a.db); err != nil {
				return err
			}
			res, err := seed.ApplyInTransaction(cmd.Context(), a.store(), fixtures, time.Now())
			if err != nil {
				return err
			}
			color.Green("✅ Seeded %d restaurants and %d reviews", res.Restaurants, res.Reviews)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML fixture file (defaults to the built-in sample data)")
	return cmd
}

func loadFixtures(file string) (*seed.Fixtures, error) {
	if file == "" {
		return seed.Default()
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("open fixtures: %w", err)
	}
	defer f.Close()
	return seed.Load(f)
}

func newHealthCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check database connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			if err := database.Ping(ctx, a.db); err != nil {
				return err
			}
			for _, table := range []string{"restaurant", "review"} {
				if !a.db.Migrator().HasTable(table) {
					color.Yellow("⚠️  Database is reachable but table %s is missing, run 'restaurants migrate'", table)
					return nil
				}
			}
			color.Green("✅ Database is healthy and accessible")
			return nil
		},
	}
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 5*time.Second, "Timeout for health check")
	return cmd
}
