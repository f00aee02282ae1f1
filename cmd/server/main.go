package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	creditsapp "github.com/auton8n/backend/internal/application/credits"
	workflowapp "github.com/auton8n/backend/internal/application/workflow"
	domainshared "github.com/auton8n/backend/internal/domain/shared"
	"github.com/auton8n/backend/internal/infrastructure/ai"
	"github.com/auton8n/backend/internal/infrastructure/auth"
	"github.com/auton8n/backend/internal/infrastructure/billing"
	"github.com/auton8n/backend/internal/infrastructure/cache"
	"github.com/auton8n/backend/internal/infrastructure/config"
	"github.com/auton8n/backend/internal/infrastructure/event"
	"github.com/auton8n/backend/internal/infrastructure/logger"
	"github.com/auton8n/backend/internal/infrastructure/n8n"
	"github.com/auton8n/backend/internal/infrastructure/persistence"
	"github.com/auton8n/backend/internal/infrastructure/telemetry"
	"github.com/auton8n/backend/internal/interfaces/http/handler"
	"github.com/auton8n/backend/internal/interfaces/http/middleware"
	"github.com/auton8n/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting AutoN8n Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Tracing
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		SlowQueryThresh: 200 * time.Millisecond,
		DBSystem:        "postgresql",
	}, log)
	if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	// Repositories
	accountRepo := persistence.NewGormCreditAccountRepository(db.DB)
	transactionRepo := persistence.NewGormCreditTransactionRepository(db.DB)
	purchaseRepo := persistence.NewGormPurchaseRepository(db.DB)
	workflowRepo := persistence.NewGormWorkflowRepository(db.DB)

	// Webhook idempotency store. Redis is preferred; without it the
	// in-memory store still dedupes within a single process, and
	// settlement stays idempotent either way.
	var idempotencyStore domainshared.IdempotencyStore
	redisStore, err := cache.NewRedisIdempotencyStore(cache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Warn("Redis unavailable, using in-memory idempotency store", zap.Error(err))
		memStore := cache.NewInMemoryIdempotencyStore()
		defer func() {
			_ = memStore.Close()
		}()
		idempotencyStore = memStore
	} else {
		defer func() {
			_ = redisStore.Close()
		}()
		idempotencyStore = redisStore
	}

	// Event bus
	eventBus := event.NewInMemoryEventBus(log)
	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Stripe
	stripeConfig := &billing.StripeConfig{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		IsTestMode:    strings.HasPrefix(cfg.Stripe.SecretKey, "sk_test"),
		SuccessURL:    cfg.Stripe.SuccessURL,
		CancelURL:     cfg.Stripe.CancelURL,
	}
	checkoutAdapter, err := billing.NewCheckoutAdapter(stripeConfig, log)
	if err != nil {
		log.Fatal("Failed to initialize Stripe", zap.Error(err))
	}

	// Gemini
	geminiClient, err := ai.NewGeminiClient(context.Background(), ai.Config{
		APIKey:    cfg.Gemini.APIKey,
		Model:     cfg.Gemini.Model,
		MaxTokens: cfg.Gemini.MaxTokens,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize Gemini client", zap.Error(err))
	}
	defer func() {
		_ = geminiClient.Close()
	}()

	// n8n
	n8nClient, err := n8n.NewClient(n8n.Config{
		BaseURL: cfg.N8n.BaseURL,
		APIKey:  cfg.N8n.APIKey,
		Timeout: cfg.N8n.Timeout,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize n8n client", zap.Error(err))
	}

	// Application services
	ledgerService := creditsapp.NewLedgerService(accountRepo, transactionRepo, eventBus, log)
	checkoutService := creditsapp.NewCheckoutService(purchaseRepo, accountRepo, checkoutAdapter, eventBus, log)
	webhookService := creditsapp.NewStripeWebhookService(creditsapp.StripeWebhookServiceConfig{
		Config:      stripeConfig,
		Checkout:    checkoutService,
		Idempotency: idempotencyStore,
		IdemConfig:  domainshared.DefaultIdempotencyConfig(),
		Logger:      log,
	})
	workflowService := workflowapp.NewService(workflowRepo, ledgerService, log)
	generationService := workflowapp.NewGenerationService(workflowRepo, geminiClient, ledgerService, eventBus, log)
	deploymentService := workflowapp.NewDeploymentService(workflowRepo, n8nClient, ledgerService, eventBus, log)

	// JWT verification
	verifier := auth.NewVerifier(cfg.JWT)

	// Handlers
	healthHandler := handler.NewHealthHandler(db.DB)
	creditsHandler := handler.NewCreditsHandler(ledgerService, checkoutService)
	checkoutHandler := handler.NewCheckoutHandler(checkoutService)
	webhookHandler := handler.NewStripeWebhookHandler(webhookService)
	workflowHandler := handler.NewWorkflowHandler(workflowService, generationService, deploymentService)

	// Balance SSE: subscribe to balance change events and fan out
	sseHandler := handler.NewBalanceSSEHandler(handler.WithSSELogger(log))
	if err := sseHandler.Start(); err != nil {
		log.Fatal("Failed to start SSE handler", zap.Error(err))
	}
	defer sseHandler.Stop()
	eventBus.Subscribe(sseHandler)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health probes stay outside API versioning and authentication
	engine.GET("/health", healthHandler.Health)
	engine.GET("/ready", healthHandler.Ready)

	// Stripe calls this directly; the signature header is the credential
	engine.POST("/api/v1/payment/callback/stripe", webhookHandler.HandleStripeWebhook)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Use(middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
		Verifier: verifier,
		Logger:   log,
	}))
	r.Use(middleware.TracingAttributeInjector())

	creditsRoutes := router.NewDomainGroup("credits", "/credits")
	creditsRoutes.GET("/balance", creditsHandler.GetBalance)
	creditsRoutes.GET("/stream", sseHandler.Stream)
	creditsRoutes.GET("/packages", creditsHandler.ListPackages)
	creditsRoutes.GET("/transactions", creditsHandler.ListTransactions)
	creditsRoutes.GET("/purchases", creditsHandler.ListPurchases)
	creditsRoutes.POST("/checkout", checkoutHandler.CreateCheckout)
	creditsRoutes.POST("/checkout/verify", checkoutHandler.VerifyCheckout)

	workflowRoutes := router.NewDomainGroup("workflows", "/workflows")
	workflowRoutes.POST("", workflowHandler.Create)
	workflowRoutes.GET("", workflowHandler.List)
	workflowRoutes.POST("/generate", workflowHandler.Generate)
	workflowRoutes.GET("/:id", workflowHandler.Get)
	workflowRoutes.PUT("/:id", workflowHandler.Update)
	workflowRoutes.DELETE("/:id", workflowHandler.Delete)
	workflowRoutes.POST("/:id/enhance", workflowHandler.Enhance)
	workflowRoutes.POST("/:id/deploy", workflowHandler.Deploy)
	workflowRoutes.POST("/:id/activate", workflowHandler.Activate)
	workflowRoutes.POST("/:id/deactivate", workflowHandler.Deactivate)
	workflowRoutes.GET("/:id/executions", workflowHandler.ListExecutions)

	r.Register(creditsRoutes).Register(workflowRoutes)
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
