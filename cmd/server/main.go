package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Onebillie/parsetastic/api"
	"github.com/Onebillie/parsetastic/internal/ai"
	"github.com/Onebillie/parsetastic/internal/auth"
	"github.com/Onebillie/parsetastic/internal/config"
	"github.com/Onebillie/parsetastic/internal/db"
	"github.com/Onebillie/parsetastic/internal/events"
	"github.com/Onebillie/parsetastic/internal/export"
	"github.com/Onebillie/parsetastic/internal/learning"
	"github.com/Onebillie/parsetastic/internal/logging"
	"github.com/Onebillie/parsetastic/internal/metrics"
	"github.com/Onebillie/parsetastic/internal/onebill"
	"github.com/Onebillie/parsetastic/internal/pipeline"
	"github.com/Onebillie/parsetastic/internal/resilience"
	"github.com/Onebillie/parsetastic/internal/services"
	"github.com/Onebillie/parsetastic/internal/storage"
)

const serviceName = "parsetastic"

func main() {
	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	syncLogs, err := logging.Init(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer syncLogs()

	if err := run(cfg); err != nil {
		zap.L().Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(serviceName)
	exec := resilience.NewExecutor(cfg.Resilience)

	// Database is required: every pipeline persists.
	pool, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		return err
	}
	store := db.NewStore(pool)

	deps := pipeline.Deps{
		Store:    store,
		Biller:   onebill.NewClient(cfg.OneBill.BaseURL, cfg.OneBill.APIKey, cfg.OneBill.Timeout, exec),
		Recorder: m,
	}

	var files *storage.Store
	if files, err = storage.New(ctx, cfg.Storage); err != nil {
		zap.L().Warn("MinIO storage not available, files will not be stored", zap.Error(err))
		files = nil
	} else {
		deps.Files = files
		zap.L().Info("MinIO storage initialized", zap.String("bucket", cfg.Storage.Bucket))
	}

	provider, err := ai.NewProvider(ctx, cfg.AI.DefaultProvider, cfg.AI.OpenAI, cfg.AI.Gemini)
	if err != nil {
		return err
	}
	if c, ok := provider.(io.Closer); ok {
		defer c.Close()
	}
	deps.Extractor = ai.NewExtractor(provider, exec, cfg.AI.ExtractionTimeout)
	deps.Validator = services.NewValidationEngine(cfg.Thresholds,
		ai.NewValidationOracle(provider, exec, cfg.AI.ValidationTimeout), m)
	deps.Learner = learning.NewTemplateLearner(store,
		ai.NewPatternOracle(provider, exec, cfg.AI.LearningTimeout))

	var bus *events.NATSPublisher
	if cfg.Events.NATSURL != "" {
		if bus, err = events.ConnectNATS(cfg.Events.NATSURL, cfg.Events.SubjectPrefix, exec); err != nil {
			zap.L().Warn("NATS not available, events go to webhooks only", zap.Error(err))
			bus = nil
		} else {
			defer bus.Close()
		}
	}
	sinks := []events.Sink{events.NewWebhookSender(store, cfg.Events.WebhookTimeout, cfg.Events.WebhookRatePerSecond)}
	if bus != nil {
		sinks = append(sinks, bus)
	}
	dispatcher := events.NewDispatcher(sinks...)

	var issuer *auth.Issuer
	if cfg.Auth.Enabled {
		if issuer, err = auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL); err != nil {
			return err
		}
	} else {
		zap.L().Warn("authentication disabled, every route is public")
	}

	opts := api.Options{
		Pipeline:         pipeline.New(deps, cfg.Thresholds),
		Store:            store,
		Exporter:         export.NewService(store),
		Events:           dispatcher,
		Login:            auth.LoginHandler(store, issuer),
		Metrics:          m.Handler(),
		MaxUploadBytes:   cfg.Server.MaxUploadMB * 1024 * 1024,
		DefaultAutopilot: cfg.Autopilot,
		AIProvider:       provider.Name(),
		Checks: []api.HealthCheck{
			{Name: "database", Critical: true, Check: store.Ping},
		},
	}
	if files != nil {
		opts.Files = files
		opts.Checks = append(opts.Checks, api.HealthCheck{Name: "storage", Check: func(ctx context.Context) error {
			if !files.Available(ctx) {
				return eris.New("bucket not reachable")
			}
			return nil
		}})
	}
	if bus != nil {
		opts.Checks = append(opts.Checks, api.HealthCheck{Name: "nats", Check: bus.Ping})
	}

	handler := api.NewHandler(opts)
	router := handler.SetupRoutes()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           m.Middleware(serviceName, auth.Middleware(issuer)(router)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      3 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server",
			zap.String("addr", srv.Addr),
			zap.String("version", api.Version),
			zap.String("ai_provider", provider.Name()),
			zap.Bool("storage", files != nil),
			zap.Bool("nats", bus != nil),
			zap.Bool("auth", issuer != nil),
			zap.Bool("autopilot", cfg.Autopilot),
		)
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

	zap.L().Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("graceful shutdown failed", zap.Error(err))
	}
	handler.Wait()
	return nil
}
