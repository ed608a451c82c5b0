// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/amirphl/taptag/app/dto"
	"github.com/amirphl/taptag/app/handlers"
	"github.com/amirphl/taptag/app/middleware"
	"github.com/amirphl/taptag/config"
	_ "github.com/amirphl/taptag/docs"
	"github.com/amirphl/taptag/models"
	"github.com/amirphl/taptag/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggo/swag"
)

// HealthCheck reports the state of one dependency; a nil error means healthy
type HealthCheck func(ctx context.Context) error

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app               *fiber.App
	cfg               *config.ProductionConfig
	logger            *log.Logger
	activationHandler handlers.ActivationHandlerInterface
	tagHandler        handlers.TagHandlerInterface
	saleHandler       handlers.SaleHandlerInterface
	walletHandler     handlers.WalletHandlerInterface
	authMiddleware    *middleware.AuthMiddleware
	healthChecks      map[string]HealthCheck
}

func NewFiberRouter(
	cfg *config.ProductionConfig,
	logger *log.Logger,
	activationHandler handlers.ActivationHandlerInterface,
	tagHandler handlers.TagHandlerInterface,
	saleHandler handlers.SaleHandlerInterface,
	walletHandler handlers.WalletHandlerInterface,
	authMiddleware *middleware.AuthMiddleware,
	healthChecks map[string]HealthCheck,
) Router {
	app := fiber.New(fiber.Config{
		AppName:      "TapTag API",
		ServerHeader: "TapTag",
		ErrorHandler: errorHandler(logger),
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		TrustProxy:   len(cfg.Server.TrustedProxies) > 0,
		TrustProxyConfig: fiber.TrustProxyConfig{
			Proxies: cfg.Server.TrustedProxies,
		},
		ProxyHeader: cfg.Server.ProxyHeader,
	})

	return &FiberRouter{
		app:               app,
		cfg:               cfg,
		logger:            logger,
		activationHandler: activationHandler,
		tagHandler:        tagHandler,
		saleHandler:       saleHandler,
		walletHandler:     walletHandler,
		authMiddleware:    authMiddleware,
		healthChecks:      healthChecks,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	r.logger.Println("Setting up routes...")

	r.setupMiddleware()

	r.app.Get("/health", r.healthCheck)
	if r.cfg.Metrics.Enabled {
		r.app.Get(r.cfg.Metrics.Path, adaptor.HTTPHandler(promhttp.Handler()))
	}
	r.app.Get("/swagger/doc.json", r.serveSwaggerJSON)

	// Public scan landing
	r.app.Get("/r/:shortCode", r.tagHandler.PublicScan)

	api := r.app.Group("/api/v1")
	api.Use(r.rateLimiter(r.cfg.Security.GlobalRateLimit))

	authenticate := r.authMiddleware.Authenticate()
	affiliateOrAdmin := middleware.RequireRoles(
		models.UserRoleAffiliate, models.UserRoleSupportAdmin, models.UserRoleAdmin, models.UserRoleSuperAdmin)
	affiliateOnly := middleware.RequireRoles(models.UserRoleAffiliate)

	activation := api.Group("/activation")
	activation.Get("/captcha", r.activationHandler.GetCaptcha)
	activation.Post("/request-otp", r.rateLimiter(r.cfg.Security.OTPRateLimit), r.activationHandler.RequestOTP)
	activation.Post("/confirm", authenticate, affiliateOrAdmin, r.activationHandler.ConfirmActivation)

	wallet := api.Group("/wallet", authenticate, affiliateOnly)
	wallet.Get("/", r.walletHandler.GetMyWallet)
	wallet.Post("/withdrawals", r.walletHandler.RequestWithdrawal)

	sales := api.Group("/sales", authenticate, affiliateOrAdmin)
	sales.Get("/", r.saleHandler.ListSales)
	sales.Get("/verify-tag/:shortCode", r.tagHandler.VerifyTagForSale)
	sales.Get("/:id", r.saleHandler.GetSale)

	admin := api.Group("/admin", authenticate, middleware.RequireAdmin())

	adminTags := admin.Group("/tags")
	adminTags.Post("/bulk", r.tagHandler.BulkGenerate)
	adminTags.Get("/", r.tagHandler.ListTags)
	adminTags.Get("/summary", r.tagHandler.Summary)
	adminTags.Post("/assign", r.tagHandler.AssignTags)
	adminTags.Post("/:shortCode/archive", r.tagHandler.ArchiveTag)
	adminTags.Get("/:shortCode/qr", r.tagHandler.StickerQR)

	adminSales := admin.Group("/sales")
	adminSales.Post("/", r.saleHandler.CreateSale)
	adminSales.Get("/export", r.saleHandler.ExportSales)
	adminSales.Patch("/:id/status", r.saleHandler.UpdateStatus)
	adminSales.Post("/:id/messages", r.saleHandler.AppendMessage)

	adminWallet := admin.Group("/wallet")
	adminWallet.Get("/users/:id", r.walletHandler.GetUserWallet)
	adminWallet.Patch("/transactions/:id", r.walletHandler.UpdateTransactionStatus)
	adminWallet.Post("/credits", r.walletHandler.CreateManualCredit)

	r.app.Use(r.notFoundHandler)

	r.logger.Println("Routes configured successfully")
}

func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header:    "X-Request-ID",
		Generator: uuid.NewString,
	}))

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: !r.cfg.IsProduction(),
		StackTraceHandler: func(c fiber.Ctx, e any) {
			r.logger.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"panic","error":"%v","path":"%s","method":"%s"}`,
				utils.UTCNow().Format(time.RFC3339), requestid.FromContext(c), e, c.Path(), c.Method())
		},
	}))

	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             r.cfg.Security.XFrameOptions,
		HSTSMaxAge:                31536000,
		ReferrerPolicy:            r.cfg.Security.ReferrerPolicy,
		CrossOriginResourcePolicy: "cross-origin",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	r.app.Use(cors.New(cors.Config{
		AllowOrigins:     r.cfg.Security.AllowedOrigins,
		AllowMethods:     r.cfg.Security.AllowedMethods,
		AllowHeaders:     r.cfg.Security.AllowedHeaders,
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: r.cfg.Security.AllowCredentials,
		MaxAge:           r.cfg.Security.CORSMaxAge,
	}))

	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.LevelBestSpeed,
			Next: func(c fiber.Ctx) bool {
				return strings.HasSuffix(c.Path(), "/qr")
			},
		}))
	}

	r.app.Use(middleware.Metrics())

	if r.cfg.Logging.EnableAccessLog {
		r.app.Use(logger.New(logger.Config{
			Format:     `{"time":"${time}","request_id":"${respHeader:X-Request-ID}","level":"info","method":"${method}","path":"${path}","ip":"${ip}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent}}` + "\n",
			TimeFormat: time.RFC3339,
			TimeZone:   "UTC",
			Stream:     r.logger.Writer(),
			Next: func(c fiber.Ctx) bool {
				return c.Path() == "/health" || c.Path() == r.cfg.Metrics.Path
			},
		}))
	}
}

func (r *FiberRouter) rateLimiter(perWindow int) fiber.Handler {
	if perWindow <= 0 {
		perWindow = 60
	}
	return limiter.New(limiter.Config{
		Max:        perWindow,
		Expiration: r.cfg.Security.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code:      "RATE_LIMIT_EXCEEDED",
					Retryable: true,
				},
			})
		},
	})
}

func (r *FiberRouter) Start(address string) error {
	r.logger.Printf("Starting server on %s", address)
	return r.app.Listen(address)
}

func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// healthCheck pings every dependency and answers 503 when one of them is down
func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	status := fiber.StatusOK
	checks := make(fiber.Map, len(r.healthChecks))
	for name, check := range r.healthChecks {
		if err := check(ctx); err != nil {
			status = fiber.StatusServiceUnavailable
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	return c.Status(status).JSON(dto.APIResponse{
		Success: status == fiber.StatusOK,
		Message: "Service health",
		Data: fiber.Map{
			"checks":    checks,
			"timestamp": utils.UTCNow().Unix(),
			"version":   r.cfg.Deployment.Version,
			"service":   "taptag-api",
		},
	})
}

func (r *FiberRouter) serveSwaggerJSON(c fiber.Ctx) error {
	doc, err := swag.ReadDoc()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.APIResponse{
			Success: false,
			Message: "Failed to load Swagger documentation",
			Error:   dto.ErrorDetail{Code: "SWAGGER_LOAD_ERROR"},
		})
	}
	c.Set("Content-Type", "application/json")
	return c.SendString(doc)
}

func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

func errorHandler(logger *log.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}
		logger.Printf("Error %d on %s %s: %v", code, c.Method(), c.Path(), err)

		return c.Status(code).JSON(dto.APIResponse{
			Success: false,
			Message: "An internal server error occurred",
			Error: dto.ErrorDetail{
				Code: "INTERNAL_ERROR",
				Details: fiber.Map{
					"timestamp":  utils.UTCNow().Unix(),
					"request_id": requestid.FromContext(c),
				},
			},
		})
	}
}
