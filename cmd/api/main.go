package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/tasi-app/auth-service/internal/api/http"
	"github.com/tasi-app/auth-service/internal/api/http/handlers"
	"github.com/tasi-app/auth-service/internal/auth"
	"github.com/tasi-app/auth-service/internal/config"
	"github.com/tasi-app/auth-service/internal/delivery"
	"github.com/tasi-app/auth-service/internal/events"
	"github.com/tasi-app/auth-service/internal/observability"
	"github.com/tasi-app/auth-service/internal/persistence"
	"github.com/tasi-app/auth-service/internal/repository"
	"github.com/tasi-app/auth-service/internal/service"
	"github.com/tasi-app/auth-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mongoStore, err := persistence.NewMongo(ctx, cfg.Mongo, logger)
	if err != nil {
		logger.Fatal("failed to connect mongo", zap.Error(err))
	}
	defer mongoStore.Close(context.Background())

	if err := mongoStore.EnsureIndexes(ctx, cfg.OTP.Retention(), logger); err != nil {
		logger.Fatal("failed to ensure mongo indexes", zap.Error(err))
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations && pg.Enabled() {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), persistence.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis, err := persistence.NewRedis(ctx, cfg.Redis, cfg.App.Name, logger)
	if err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redis.Close()

	policyFile, fromFile, err := auth.LoadPolicyFile(cfg.Policy.File)
	if err != nil {
		logger.Fatal("failed to load policy file", zap.String("path", cfg.Policy.File), zap.Error(err))
	}
	if !fromFile {
		logger.Warn("policy file not found; using built-in policy", zap.String("path", cfg.Policy.File))
	}
	policy, err := auth.NewPolicyChecker(policyFile.Policies)
	if err != nil {
		logger.Fatal("failed to build policy checker", zap.Error(err))
	}

	hasher, err := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	if err != nil {
		logger.Fatal("failed to init password hasher", zap.Error(err))
	}
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.App.Name, cfg.Auth.SessionTTL())

	dispatcher := events.NewInMemoryDispatcher()
	var sink events.Sink
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			logger.Fatal("failed to init kafka publisher", zap.Error(err))
		}
		defer publisher.Close() //nolint:errcheck
		sink = publisher
		logger.Info("publishing auth events", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	} else {
		logger.Warn("KAFKA_BROKERS not provided; auth events are only logged")
	}
	var relay *worker.EventRelay
	var forwarder service.EventForwarder
	if sink != nil {
		relay = worker.NewEventRelay(sink, logger, cfg.Kafka.BufferSize)
		relay.Start()
		forwarder = relay
	}
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, forwarder, logger))

	accountRepo := repository.NewAccountRepository(mongoStore.DB)
	codeRepo := repository.NewOneTimeCodeRepository(mongoStore.DB)
	attemptRepo := repository.NewLoginAttemptRepository(pg.PoolHandle())
	throttle := repository.NewOTPThrottle(redis.Client)

	credentialService := service.NewCredentialService(service.CredentialDependencies{
		Accounts:   accountRepo,
		Attempts:   attemptRepo,
		Hasher:     hasher,
		Tokens:     tokens,
		Dispatcher: dispatcher,
	}, logger)
	otpService := service.NewOTPService(cfg.OTP, service.OTPDependencies{
		Accounts:   accountRepo,
		Codes:      codeRepo,
		Throttle:   throttle,
		Attempts:   attemptRepo,
		SMS:        delivery.NewSMSSender(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber, logger),
		Tokens:     tokens,
		Dispatcher: dispatcher,
	}, logger)
	accountService := service.NewAccountService(accountRepo, hasher, dispatcher, logger)

	if created, err := accountService.EnsureSeedAdmin(ctx, cfg.Seed.AdminEmail, cfg.Seed.AdminPassword, cfg.Seed.AdminName); err != nil {
		logger.Fatal("failed to seed admin account", zap.Error(err))
	} else if created {
		logger.Info("seeded admin account", zap.String("email", cfg.Seed.AdminEmail))
	}

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler(logger),
		ReadTimeout:  cfg.App.RequestTimeout(),
		WriteTimeout: cfg.App.RequestTimeout(),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	var pgCheck handlers.Pinger
	if pg.Enabled() {
		pgCheck = pg
	}
	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, metrics,
		handlers.Dependency{Name: "mongo", Pinger: mongoStore},
		handlers.Dependency{Name: "redis", Pinger: redis},
		handlers.Dependency{Name: "postgres", Pinger: pgCheck},
	)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:  healthHandler,
		Auth:    handlers.NewAuthHandler(credentialService, otpService, handlers.CookieSettings{Name: cfg.Auth.CookieName, Secure: cfg.Auth.CookieSecure}),
		Admin:   handlers.NewAdminHandler(accountService),
		Carrier: handlers.NewCarrierHandler(accountService),
		Gate:    auth.NewSessionGate(policyFile.Gate, tokens, policy, cfg.Auth.CookieName, logger),
	})

	go func() {
		var err error
		if cfg.App.TLSEnabled() {
			logger.Info("listening with TLS", zap.String("addr", cfg.App.Addr()))
			err = app.ListenTLS(cfg.App.Addr(), cfg.App.TLSCertFile, cfg.App.TLSKeyFile)
		} else {
			logger.Info("listening", zap.String("addr", cfg.App.Addr()))
			err = app.Listen(cfg.App.Addr())
		}
		if err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
	if relay != nil {
		drainCtx, drainCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer drainCancel()
		if err := relay.Stop(drainCtx); err != nil {
			logger.Warn("event relay did not drain", zap.Error(err))
		}
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
