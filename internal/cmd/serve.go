package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/medicaldate/clinic-portal/internal/api"
	"github.com/medicaldate/clinic-portal/internal/api/session"
	"github.com/medicaldate/clinic-portal/internal/core/ports"
	"github.com/medicaldate/clinic-portal/internal/core/service"
	"github.com/medicaldate/clinic-portal/internal/infrastructure/cookie"
	mongodb "github.com/medicaldate/clinic-portal/internal/infrastructure/db/mongo"
	redisdb "github.com/medicaldate/clinic-portal/internal/infrastructure/db/redis"
	"github.com/medicaldate/clinic-portal/internal/infrastructure/events"
	"github.com/medicaldate/clinic-portal/internal/infrastructure/queue"
	"github.com/medicaldate/clinic-portal/internal/infrastructure/upstream"
	"github.com/medicaldate/clinic-portal/internal/pkg/config"
	"github.com/medicaldate/clinic-portal/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the portal gateway",
	Long: `Start the HTTP gateway. MongoDB, Redis and RabbitMQ are optional unless
USE_MOCK_AUTH is set, in which case MongoDB holds the mock backend users.

The server shuts down gracefully on SIGTERM or SIGINT.`,
	RunE: runServe,
}

var serveShutdownTimeout time.Duration

func init() {
	serveCmd.Flags().DurationVar(&serveShutdownTimeout, "shutdown-timeout", 15*time.Second, "Maximum time to wait for connections to drain during shutdown")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, log, err := setup(ctx)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// --- Storage ---
	var db *mongo.Database
	if cfg.UseMockAuth || cfg.Audit.Enabled {
		client, database, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		switch {
		case err != nil && cfg.UseMockAuth:
			return err
		case err != nil:
			log.Warn().Err(err).Msg("mongodb unavailable, audit events will not be stored")
		default:
			defer client.Disconnect(context.Background())
			db = database
		}
	}

	rdb, err := redisdb.Connect(ctx, redisdb.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, sessions will not be cached")
	} else {
		defer rdb.Close()
	}

	// --- Audit trail ---
	recorder, stopAudit := startAudit(ctx, cfg, db, log)
	defer stopAudit()

	// --- Mock backend ---
	apiURL := cfg.APIURL
	var mock ports.MockAuthService
	if cfg.UseMockAuth {
		users := mongodb.NewUserRepository(db)
		tokens := mongodb.NewRefreshTokenRepository(db)
		if err := mongodb.EnsureIndexes(ctx, users, tokens); err != nil {
			return err
		}
		mock = service.NewMockAuthService(users, tokens, service.MockAuthConfig{
			Secret:     cfg.Mock.JWTSecret,
			AccessTTL:  cfg.Mock.AccessTTL,
			RefreshTTL: cfg.Mock.RefreshTTL,
		})
		apiURL = fmt.Sprintf("http://127.0.0.1:%s/mock-api", cfg.Port)
		log.Info().Str("api_url", apiURL).Msg("mock auth backend enabled")
	}

	// --- Session protocol ---
	transport := upstream.New(apiURL, nil, cfg.RequestTimeout)
	backend := service.NewBackendClient(transport)

	opts := service.RefreshOptions{Grace: cfg.Session.RefreshGrace}
	var persister session.PersisterSource
	if rdb != nil {
		opts.Cache = redisdb.NewRefreshCache(rdb)
		persister = redisdb.NewSessionCache(rdb, cfg.Session.CacheTTL)
	}
	coordinator := service.NewRefreshCoordinator(backend, opts, logger.Component("refresh"))
	fetcher := service.NewFetcher(transport, coordinator, cfg.RequestTimeout, logger.Component("fetcher"))

	sessions := session.NewFactory(cookie.Policy{
		Secure:        cfg.IsProduction(),
		Domain:        cfg.Cookie.Domain,
		AccessMaxAge:  cfg.Cookie.AccessMaxAge,
		RefreshMaxAge: cfg.Cookie.RefreshMaxAge,
	}, fetcher, coordinator, persister, logger.Component("session"))

	e := api.NewRouter(api.Deps{
		Log:          log,
		Sessions:     sessions,
		Backend:      backend,
		Refresher:    coordinator,
		Fetcher:      fetcher,
		Audit:        recorder,
		CheckTimeout: cfg.Session.CheckTimeout,

		Watcher:       sessions,
		WatchInterval: cfg.Session.WatchInterval,

		Mock:  mock,
		Mongo: db,
		Redis: rdb,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("portal gateway listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), serveShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// startAudit starts the audit dispatcher over the configured sinks. The
// returned recorder is nil when auditing is disabled.
func startAudit(ctx context.Context, cfg *config.Config, db *mongo.Database, log zerolog.Logger) (ports.AuditRecorder, func()) {
	if !cfg.Audit.Enabled {
		return nil, func() {}
	}

	var (
		sinks   []ports.AuditSink
		closers []func()
	)
	if db != nil {
		repo := mongodb.NewAuditRepository(db)
		if err := repo.EnsureIndexes(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to create audit indexes")
		}
		sinks = append(sinks, repo)
	}
	if cfg.Audit.AMQPURI != "" {
		publisher, err := events.NewPublisher(cfg.Audit.AMQPURI, cfg.Audit.Exchange)
		if err != nil {
			log.Warn().Err(err).Msg("rabbitmq unavailable, audit events will not be published")
		} else {
			sinks = append(sinks, publisher)
			closers = append(closers, func() { _ = publisher.Close() })
		}
	}

	auditLog := logger.Component("audit")
	dispatcher := queue.NewDispatcher(cfg.Audit.Workers, service.NewAuditService(auditLog, sinks...), auditLog)
	dispatcher.Start(context.WithoutCancel(ctx))

	stop := func() {
		dispatcher.Stop()
		for _, c := range closers {
			c()
		}
	}
	return dispatcher, stop
}
