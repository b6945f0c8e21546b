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

	"github.com/isdelr/ender-feed-be/internal/api"
	"github.com/isdelr/ender-feed-be/internal/cache"
	"github.com/isdelr/ender-feed-be/internal/config"
	"github.com/isdelr/ender-feed-be/internal/database"
	"github.com/isdelr/ender-feed-be/internal/events"
	"github.com/isdelr/ender-feed-be/internal/logger"
	"github.com/isdelr/ender-feed-be/internal/monitoring"
	"github.com/isdelr/ender-feed-be/internal/services"
	"github.com/isdelr/ender-feed-be/internal/tracing"
	"github.com/isdelr/ender-feed-be/internal/websocket"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg *config.Config

	root := &cobra.Command{
		Use:           "ender-feed",
		Short:         "Social graph and chronological feed server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if cfg, err = config.Load(); err != nil {
				return report(fmt.Errorf("load configuration: %w", err))
			}
			logger.Init(cfg.LogLevel, cfg.LogPretty)
			return nil
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE:  func(cmd *cobra.Command, args []string) error { return report(serve(cmd.Context(), cfg)) },
	}
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(cmd.Context(), cfg)
			if err != nil {
				return report(err)
			}
			defer db.Close()
			log.Info().Str("driver", cfg.DatabaseDriver).Msg("Database schema is up to date")
			return nil
		},
	}
	reconcileCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Repair asymmetric follow edges once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(cmd.Context(), cfg)
			if err != nil {
				return report(err)
			}
			defer db.Close()

			users := services.NewUserService(db, nil)
			graph := services.NewGraphService(db, users, services.NewEventService(db, nil), graphOptions(cfg))
			result, err := graph.Reconcile(cmd.Context())
			if err != nil {
				return report(err)
			}
			log.Info().Int("missing_followers", result.MissingFollowers).Int("orphan_followers", result.OrphanFollowers).Msg("Graph reconcile complete")
			return nil
		},
	}

	root.RunE = serveCmd.RunE
	root.AddCommand(serveCmd, migrateCmd, reconcileCmd)
	return root
}

// report logs err through zerolog so failures share the service's log format.
func report(err error) error {
	if err != nil {
		log.Error().Err(err).Msg("Command failed")
	}
	return err
}

func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.New(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply database migrations: %w", err)
	}
	return db, nil
}

func graphOptions(cfg *config.Config) services.GraphOptions {
	return services.GraphOptions{
		WriteRetries:  cfg.GraphWriteRetries,
		RetryInterval: cfg.GraphRetryInterval,
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		return fmt.Errorf("initialize tracing: %w", err)
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(c); err != nil {
			log.Warn().Err(err).Msg("Failed to flush traces")
		}
	}()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// Activity events go to Kafka only when brokers are configured.
	var publisher services.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		publisher = kp
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("Publishing activity events to Kafka")
	}

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()
	defer hub.Stop()

	// Set up services
	eventService := services.NewEventService(db, publisher)
	userService := services.NewUserService(db, eventService)

	var names services.NameResolver = userService
	if cfg.RedisAddr != "" {
		rdb := cache.NewClient(cfg.RedisAddr)
		defer rdb.Close()
		names = cache.NewNameCache(rdb, userService, cfg.NameCacheTTL)
		log.Info().Str("addr", cfg.RedisAddr).Msg("Caching user names in Redis")
	}

	graphService := services.NewGraphService(db, userService, eventService, graphOptions(cfg))
	contentService := services.NewContentService(db, userService, eventService, websocket.NewFollowerNotifier(graphService, hub))
	engagementService := services.NewEngagementService(names)
	feedService := services.NewFeedService(userService, graphService, contentService, engagementService, cfg.FeedFanOut)

	// Set up and run the background reconcile scheduler
	scheduler, err := monitoring.NewScheduler(graphService, cfg.ReconcileSchedule)
	if err != nil {
		return err
	}
	scheduler.Run()
	defer scheduler.Stop()

	router := api.NewRouter(hub, api.Services{
		Users:      userService,
		Graph:      graphService,
		Content:    contentService,
		Engagement: engagementService,
		Feed:       feedService,
		Events:     eventService,
	}, api.Options{
		CORSOrigins: cfg.CORSOrigins,
		FeedTimeout: cfg.FeedTimeout,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.ServerPort).Msg("Server starting")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("Server exiting")
	return nil
}
