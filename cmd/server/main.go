package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/trialbase/trialbase/modules/account"
	"github.com/trialbase/trialbase/modules/auth"
	"github.com/trialbase/trialbase/modules/billing"
	subscriptionmod "github.com/trialbase/trialbase/modules/subscription"
	"github.com/trialbase/trialbase/pkg/cache"
	"github.com/trialbase/trialbase/pkg/config"
	"github.com/trialbase/trialbase/pkg/httpserver"
	"github.com/trialbase/trialbase/pkg/jwt"
	"github.com/trialbase/trialbase/pkg/logger"
	"github.com/trialbase/trialbase/pkg/mailer"
	"github.com/trialbase/trialbase/pkg/pg"
	"github.com/trialbase/trialbase/pkg/queue"
	redisconn "github.com/trialbase/trialbase/pkg/redis"
	"github.com/trialbase/trialbase/storage/postgres"
	accountsvc "github.com/trialbase/trialbase/svc/account"
	"github.com/trialbase/trialbase/svc/activity"
	authsvc "github.com/trialbase/trialbase/svc/auth"
	billingsvc "github.com/trialbase/trialbase/svc/billing"
	subscriptionsvc "github.com/trialbase/trialbase/svc/subscription"
	"github.com/trialbase/trialbase/svc/trial"
)

type appConfig struct {
	AppEnv string `env:"APP_ENV" envDefault:"development"`

	JWTSigningKey string `env:"JWT_SIGNING_KEY,required"`
	JWTIssuer     string `env:"JWT_ISSUER" envDefault:"trialbase"`

	StripeAPIKey          string `env:"STRIPE_API_KEY"`
	StripePriceFree       string `env:"STRIPE_PRICE_FREE"`
	StripePricePro        string `env:"STRIPE_PRICE_PRO"`
	StripePriceEnterprise string `env:"STRIPE_PRICE_ENTERPRISE"`

	PaymentProvider string `env:"PAYMENT_PROVIDER" envDefault:"local"`

	WorkerConcurrency int           `env:"WORKER_CONCURRENCY" envDefault:"5"`
	WorkerPullEvery   time.Duration `env:"WORKER_PULL_INTERVAL" envDefault:"1s"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	var appCfg appConfig
	config.MustLoad(&appCfg)
	var pgCfg pg.Config
	config.MustLoad(&pgCfg)
	var redisCfg redisconn.Config
	config.MustLoad(&redisCfg)
	var mailCfg mailer.Config
	config.MustLoad(&mailCfg)
	var httpCfg httpserver.Config
	config.MustLoad(&httpCfg)

	log := logger.New(logger.WithEnvironment(appCfg.AppEnv, "trialbase"))
	logger.SetAsDefault(log)

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Redis is optional infrastructure; without it the subscription cache
	// degrades to in-process memory.
	var subscriptionCache cache.Cache = cache.NewMemoryCache()
	redisHealth := func(context.Context) error { return nil }
	redisClient, err := redisconn.Connect(ctx, redisCfg)
	if err != nil {
		log.Warn("redis unavailable, using in-memory cache", logger.Error(err))
	} else {
		defer redisClient.Close() //nolint:errcheck
		subscriptionCache = cache.NewRedisCache(redisClient, log)
		redisHealth = redisconn.Healthcheck(redisClient)
	}

	mail, err := buildMailSender(appCfg.AppEnv, mailCfg)
	if err != nil {
		return fmt.Errorf("failed to build mail sender: %w", err)
	}

	tokens, err := jwt.NewFromString(appCfg.JWTSigningKey)
	if err != nil {
		return fmt.Errorf("failed to create token service: %w", err)
	}

	registry := subscriptionsvc.NewRegistry()
	registry.Register(subscriptionsvc.NewLocalProvider())
	if appCfg.StripeAPIKey != "" {
		registry.Register(subscriptionsvc.NewStripeProvider(appCfg.StripeAPIKey, subscriptionsvc.StripePlanPrices{
			accountsvc.PlanFree:       appCfg.StripePriceFree,
			accountsvc.PlanPro:        appCfg.StripePricePro,
			accountsvc.PlanEnterprise: appCfg.StripePriceEnterprise,
		}))
	}

	queueStore := postgres.NewQueueStore(pool)
	enqueuer, err := queue.NewEnqueuer(queueStore)
	if err != nil {
		return fmt.Errorf("failed to create enqueuer: %w", err)
	}

	activities := activity.NewLogger(postgres.NewActivityStore(pool), activity.WithLogger(log))
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := activities.Close(shutdownCtx); err != nil {
			log.Warn("activity logger shutdown incomplete", logger.Error(err))
		}
	}()

	accounts := accountsvc.NewService(postgres.NewAccountStore(pool), accountsvc.WithLogger(log))
	subscriptions := subscriptionsvc.NewService(postgres.NewSubscriptionStore(pool), registry,
		subscriptionsvc.WithCache(subscriptionCache),
		subscriptionsvc.WithLogger(log),
	)

	trials, err := trial.NewScheduler(enqueuer)
	if err != nil {
		return fmt.Errorf("failed to create trial scheduler: %w", err)
	}
	expiration, err := trial.NewExpirationHandler(trials, accounts, subscriptions, activities,
		trial.WithHandlerLogger(log))
	if err != nil {
		return fmt.Errorf("failed to create trial expiration handler: %w", err)
	}

	authn := authsvc.NewService(postgres.NewUserStore(pool), accounts, subscriptions, trials, activities, tokens, mail,
		authsvc.WithLogger(log),
		authsvc.WithIssuer(appCfg.JWTIssuer),
		authsvc.WithPaymentProvider(appCfg.PaymentProvider),
	)
	invoices := billingsvc.NewService(postgres.NewInvoiceStore(pool), subscriptions, registry, activities,
		billingsvc.WithLogger(log))

	worker, err := queue.NewWorker(queueStore,
		queue.WithQueues(trial.QueueName, queue.DefaultQueueName),
		queue.WithMaxConcurrentTasks(appCfg.WorkerConcurrency),
		queue.WithPullInterval(appCfg.WorkerPullEvery),
		queue.WithWorkerLogger(log),
	)
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}
	if err := worker.RegisterHandler(expiration.QueueHandler()); err != nil {
		return fmt.Errorf("failed to register queue handlers: %w", err)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Get("/health", httpserver.HealthCheckHandler(ctx, log, pg.Healthcheck(pool), redisHealth))
	router.Mount("/auth", auth.NewModule(authn, tokens, log).Handle())
	router.Mount("/account", account.NewModule(accounts, tokens, log).Handle())
	router.Mount("/subscriptions", subscriptionmod.NewModule(subscriptions, trials, tokens, log).Handle())
	router.Mount("/invoices", billing.NewModule(invoices, tokens, log).Handle())

	server := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(worker.Run(gctx))
	g.Go(func() error {
		return server.Run(gctx, router)
	})

	log.Info("application started",
		slog.String("addr", httpCfg.Addr),
		slog.String("env", appCfg.AppEnv))

	if err := g.Wait(); err != nil {
		return fmt.Errorf("application stopped: %w", err)
	}
	return nil
}

// buildMailSender routes email through Postmark when tokens are configured,
// and through the filesystem sender otherwise. Production requires Postmark.
func buildMailSender(env string, cfg mailer.Config) (mailer.Sender, error) {
	if cfg.PostmarkServerToken != "" && cfg.PostmarkAccountToken != "" {
		return mailer.NewPostmarkSender(cfg)
	}
	if env == "production" {
		return nil, fmt.Errorf("postmark tokens are required in production")
	}
	return mailer.NewDevSender(cfg.DevOutputDir), nil
}
