// Package main provides the entry point for the TapTag tag activation service
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/taptag/app/handlers"
	"github.com/amirphl/taptag/app/middleware"
	"github.com/amirphl/taptag/app/router"
	"github.com/amirphl/taptag/app/scheduler"
	"github.com/amirphl/taptag/app/services"
	businessflow "github.com/amirphl/taptag/business_flow"
	"github.com/amirphl/taptag/config"
	"github.com/amirphl/taptag/migrations"
	"github.com/amirphl/taptag/repository"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router     *router.FiberRouter
	config     *config.ProductionConfig
	server     *fiber.App
	logger     *log.Logger
	stopFuncs  []func()
	closeFuncs []func()
}

// @title TapTag API
// @version 1.0
// @description Tag activation, owner contact and affiliate sales service
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.
func main() {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := newLogger(cfg.Logging)
	log.SetOutput(logger.Writer())
	logger.Printf("Starting TapTag %s (%s)...", cfg.Deployment.Version, cfg.Deployment.Environment)

	app, err := initializeApplication(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		logger.Printf("Server starting on %s", address)

		if err := app.server.Listen(address, fiber.ListenConfig{DisableStartupMessage: cfg.IsProduction()}); err != nil {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	logger.Println("Shutting down gracefully...")

	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Printf("Error during shutdown: %v", err)
	}

	for _, fn := range app.closeFuncs {
		fn()
	}

	logger.Println("Server stopped")
}

// newLogger builds the process logger. File output rotates through lumberjack.
func newLogger(cfg config.LoggingConfig) *log.Logger {
	var out io.Writer = os.Stdout
	if cfg.Output == "file" || cfg.Output == "both" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		if cfg.Output == "file" {
			out = rotating
		} else {
			out = io.MultiWriter(os.Stdout, rotating)
		}
	}
	return log.New(out, "", log.LstdFlags|log.Lmicroseconds|log.LUTC)
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, logger *log.Logger) (*gorm.DB, *sql.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.New(logger, gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	if cfg.AutoMigrate {
		migrateCtx, migrateCancel := context.WithTimeout(context.Background(), time.Minute)
		defer migrateCancel()
		if err := migrations.Apply(migrateCtx, sqlDB); err != nil {
			return nil, nil, err
		}
		logger.Println("Database migrations applied")
	}

	return db, sqlDB, nil
}

// initializeCache initializes the Redis client and verifies connectivity.
// A nil client means the cache is disabled.
func initializeCache(cfg config.CacheConfig, logger *log.Logger) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Printf("Redis connection established (db=%d)", opt.DB)
	return rc, nil
}

// startCacheHealthMonitor periodically pings Redis and logs failures.
// The returned function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration, logger *log.Logger) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(monitorCtx, 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					logger.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeNotificationService picks the SMS provider from configuration
func initializeNotificationService(cfg *config.ProductionConfig) services.NotificationService {
	var smsService services.SMSService
	switch cfg.SMS.ProviderDomain {
	case "", "mock":
		smsService = services.NewMockSMSService()
	default:
		smsService = services.NewSMSService(&cfg.SMS)
	}
	return services.NewNotificationService(smsService)
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig, logger *log.Logger) (*Application, error) {
	var stopFuncs []func()

	db, sqlDB, err := initializeDatabase(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache, logger)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, 30*time.Second, logger))
	}

	// Repositories
	tagRepo := repository.NewTagRepository(db)
	ownerRepo := repository.NewTagOwnerRepository(db)
	userRepo := repository.NewUserRepository(db)
	saleRepo := repository.NewSaleRepository(db)
	walletRepo := repository.NewWalletTransactionRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	challengeRepo := repository.NewOTPChallengeRepository(db)
	txManager := repository.NewTxManager(db)

	// Services
	tokenService, err := services.NewTokenService(
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.UseRSAKeys,
		cfg.JWT.PublicKey,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	logger.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	hasher, err := services.NewOTPHasher(cfg.Security.OTPPepper, cfg.Security.OTPBcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize otp hasher: %w", err)
	}

	cipher, err := services.NewPhoneCipher(cfg.Security.PhoneEncryptionSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize phone cipher: %w", err)
	}

	var captchaStore services.CaptchaStore = services.NewMemoryCaptchaStore()
	var cooldown services.CooldownLimiter
	if rc != nil {
		captchaStore = services.NewRedisCaptchaStore(rc, cfg.Cache.RedisPrefix)
		cooldown = services.NewRedisCooldownLimiter(rc, cfg.Cache.RedisPrefix)
	}
	captchaSvc, err := services.NewCaptchaServiceRotate(captchaStore, cfg.Captcha.TTL, cfg.Captcha.Padding, cfg.Captcha.ImageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize captcha service: %w", err)
	}

	notificationService := initializeNotificationService(cfg)
	qrService := services.NewQRService(cfg.Tags.QRSizePx)

	// Flows
	otpChallenge := businessflow.NewOTPChallenge(challengeRepo, hasher, cfg.OTP.TTL, cfg.OTP.MaxAttempts)

	activationFlow := businessflow.NewActivationFlow(
		tagRepo,
		ownerRepo,
		userRepo,
		saleRepo,
		auditRepo,
		txManager,
		otpChallenge,
		notificationService,
		captchaSvc,
		cooldown,
		cipher,
		cfg,
		logger,
	)

	tagFlow := businessflow.NewTagFlow(
		tagRepo,
		ownerRepo,
		userRepo,
		saleRepo,
		auditRepo,
		txManager,
		qrService,
		cfg,
		logger,
	)

	saleFlow := businessflow.NewSaleFlow(saleRepo, tagRepo, userRepo, auditRepo, txManager, cfg, logger)

	walletFlow := businessflow.NewWalletFlow(userRepo, saleRepo, walletRepo, auditRepo, txManager, cfg, logger)

	// Handlers
	activationHandler := handlers.NewActivationHandler(activationFlow, logger)
	tagHandler := handlers.NewTagHandler(tagFlow, logger)
	saleHandler := handlers.NewSaleHandler(saleFlow, logger)
	walletHandler := handlers.NewWalletHandler(walletFlow, logger)

	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	healthChecks := map[string]router.HealthCheck{
		"database": sqlDB.PingContext,
	}
	if rc != nil {
		healthChecks["redis"] = func(ctx context.Context) error {
			return rc.Ping(ctx).Err()
		}
	}

	appRouter := router.NewFiberRouter(
		cfg,
		logger,
		activationHandler,
		tagHandler,
		saleHandler,
		walletHandler,
		authMiddleware,
		healthChecks,
	)

	if cfg.Scheduler.OTPReaperEnabled {
		reaper := scheduler.NewOTPReaper(challengeRepo, logger, cfg.Scheduler.OTPReaperInterval, cfg.Scheduler.OTPReaperBatchSize)
		stopFuncs = append(stopFuncs, reaper.Start(context.Background()))
	}

	fiberRouter := appRouter.(*router.FiberRouter)
	return &Application{
		router:     fiberRouter,
		config:     cfg,
		server:     fiberRouter.GetApp(),
		logger:     logger,
		stopFuncs:  stopFuncs,
		closeFuncs: []func(){
			func() {
				if rc != nil {
					_ = rc.Close()
				}
			},
			func() { _ = sqlDB.Close() },
		},
	}, nil
}
