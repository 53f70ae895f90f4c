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

	"consultation_backend/internal/classifier"
	"consultation_backend/internal/consultations"
	"consultation_backend/internal/consultations/service"
	"consultation_backend/internal/events"
	apphttp "consultation_backend/internal/http"
	"consultation_backend/internal/http/router"
	"consultation_backend/internal/notification"
	"consultation_backend/internal/realtime"
	"consultation_backend/internal/scheduler"
	"consultation_backend/internal/users"
	"consultation_backend/migrations"
	"consultation_backend/platform/config"
	"consultation_backend/platform/db"
	"consultation_backend/platform/logger"
	"consultation_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	val := validator.New()
	if err := classifier.RegisterValidation(val); err != nil {
		panic("failed to register category validation: " + err.Error())
	}

	policy, err := service.ParseQuotaPolicy(cfg.GetFreeQuotaPolicy())
	if err != nil {
		panic("invalid free quota policy: " + err.Error())
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	usersModule := users.NewModule(pool, val)

	notificationModule := notification.New(pool, eventBus, log)
	mailQueue, closeMailQueue := initMailQueue(cfg, log)
	if closeMailQueue != nil {
		defer closeMailQueue()
		notificationModule.SetMailQueue(mailQueue)
	}

	consultationsModule := consultations.NewModule(pool, eventBus, val, consultations.Dependencies{
		Notifier:   notificationModule.InAppService(),
		Directory:  usersModule.Directory(),
		Classifier: initClassifier(ctx, cfg, log),
		Policy:     policy,
	}, log)

	hub := realtime.NewHub(cfg.GetRealtimeBufferSize(), log)
	defer hub.Close()
	if closeRelay := initRelay(ctx, cfg, hub, log); closeRelay != nil {
		defer closeRelay()
	}
	realtimeModule := realtime.NewModule(hub, consultationsModule.Service(), eventBus, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   pool,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			usersModule,
			consultationsModule,
			notificationModule,
			realtimeModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// Open SSE streams only end when the hub closes their channels.
		hub.Close()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		panic("server error: " + err.Error())
	}
	eventBus.Wait()
}

func initClassifier(ctx context.Context, cfg config.ClassifierConfig, log *logger.Logger) service.Classifier {
	if !cfg.IsLLMClassifierEnabled() {
		log.Info("GEMINI_API_KEY not configured; using keyword classifier")
		return classifier.NewKeywordClassifier()
	}
	llm, err := classifier.NewGemini(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize gemini classifier; using keyword classifier", "error", err)
		return classifier.NewKeywordClassifier()
	}
	log.Info("gemini classifier initialized", "model", cfg.GetClassifierModel())
	return llm
}

func initMailQueue(cfg config.SchedulerConfig, log *logger.Logger) (*scheduler.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; notification e-mails disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize mail queue client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func initRelay(ctx context.Context, cfg *config.Config, hub *realtime.Hub, log *logger.Logger) func() {
	if cfg.GetRedisURL() == "" {
		log.Info("REDIS_URL not configured; realtime events stay on this instance")
		return nil
	}

	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		log.Error("invalid REDIS_URL; realtime relay disabled", "error", err)
		return nil
	}
	client := redis.NewClient(opt)

	relay := realtime.NewRedisRelay(client, cfg.GetRealtimeRedisChannel(), log)
	if err := hub.AttachRelay(ctx, relay); err != nil {
		log.Error("failed to attach realtime relay", "error", err)
		_ = client.Close()
		return nil
	}
	log.Info("realtime relay attached", "channel", cfg.GetRealtimeRedisChannel())

	return func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
