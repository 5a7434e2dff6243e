package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/campus-idv-api/api/swagger"
	"github.com/noah-isme/campus-idv-api/internal/handler"
	"github.com/noah-isme/campus-idv-api/internal/middleware"
	"github.com/noah-isme/campus-idv-api/internal/models"
	"github.com/noah-isme/campus-idv-api/internal/repository"
	"github.com/noah-isme/campus-idv-api/internal/service"
	"github.com/noah-isme/campus-idv-api/pkg/cache"
	"github.com/noah-isme/campus-idv-api/pkg/config"
	"github.com/noah-isme/campus-idv-api/pkg/database"
	"github.com/noah-isme/campus-idv-api/pkg/logger"
	"github.com/noah-isme/campus-idv-api/pkg/mail"
	corsmiddleware "github.com/noah-isme/campus-idv-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/campus-idv-api/pkg/middleware/requestid"
	"github.com/noah-isme/campus-idv-api/pkg/ratelimit"
	"github.com/noah-isme/campus-idv-api/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	if cfg.Database.Migrate {
		if err := database.Migrate(db); err != nil {
			logr.Sugar().Fatalw("failed to run migrations", "error", err)
		}
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	metricsSvc := service.NewMetricsService()
	limiter := service.NewInstrumentedLimiter(ratelimit.NewLimiter(redisClient, cfg.RateLimit.KeyPrefix), metricsSvc)
	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	requestRepo := repository.NewValidationRequestRepository(db)
	qrRepo := repository.NewQRCodeRepository(db)
	offenseRepo := repository.NewOffenseRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)

	mailer := mail.NewSendGridMailer(cfg.Mail.SendGridKey, cfg.Mail.FromName, cfg.Mail.FromEmail)
	dispatcher := mail.NewDispatcher(outboxRepo, mailer, mail.DispatcherConfig{
		Workers:    cfg.Mail.Workers,
		MaxRetries: cfg.Mail.MaxRetries,
		RetryDelay: cfg.Mail.RetryDelay,
		Logger:     logr,
		OnResult:   metricsSvc.RecordMailDelivery,
		OnBacklog:  metricsSvc.SetOutboxBacklog,
	})

	authSvc := service.NewAuthService(userRepo, limiter, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		LoginPerMinute:     cfg.RateLimit.LoginPerMinute,
	})
	validationSvc := service.NewValidationService(
		requestRepo, offenseRepo, settingsRepo, studentRepo, userRepo,
		limiter, storage.NewURLValidator(cfg.Storage.BaseURL), dispatcher, validate, logr,
		service.ValidationServiceConfig{
			DefaultExpiryDays: cfg.QR.DefaultExpiryDays,
			MinExpiryDays:     cfg.QR.MinExpiryDays,
			MaxExpiryDays:     cfg.QR.MaxExpiryDays,
			QRImageSize:       cfg.QR.ImageSize,
			SubmitPerHour:     cfg.RateLimit.SubmitPerHour,
			AcceptPerMinute:   cfg.RateLimit.AcceptPerMinute,
			ResendPerHour:     cfg.RateLimit.ResendPerHour,
		})
	scanSvc := service.NewScanService(qrRepo, studentRepo, settingsRepo, userRepo, limiter, validate, logr, service.ScanServiceConfig{
		VerifyPerMinute:   cfg.RateLimit.VerifyPerMinute,
		CompletePerMinute: cfg.RateLimit.CompletePerMin,
	})
	offenseSvc := service.NewOffenseService(offenseRepo, userRepo, validate, logr)
	settingsSvc := service.NewSettingsService(settingsRepo, userRepo, validate, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	validationHandler := handler.NewValidationHandler(validationSvc, metricsSvc)
	scanHandler := handler.NewScanHandler(scanSvc, metricsSvc)
	offenseHandler := handler.NewOffenseHandler(offenseSvc)
	settingsHandler := handler.NewSettingsHandler(settingsSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
			return
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "redis unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)
	r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	}

	// Students poll this before logging in, so it stays public.
	api.GET("/validation/period/status", settingsHandler.PeriodStatus)

	validation := api.Group("/validation", middleware.JWT(authSvc))
	{
		validation.POST("/requests", middleware.RequireRoles(models.RoleStudent), validationHandler.Submit)
		validation.GET("/requests/me", middleware.RequireRoles(models.RoleStudent), validationHandler.Status)
		validation.GET("/requests",
			middleware.RequireRoles(models.RoleAdmin, models.RoleOSA),
			middleware.Audit(userRepo, "LIST_VALIDATION_REQUESTS", "validation_request"),
			validationHandler.List)
		validation.GET("/requests/export", middleware.RequireRoles(models.RoleAdmin, models.RoleOSA), validationHandler.Export)
		validation.POST("/requests/:studentNumber/decision", middleware.RequireRoles(models.RoleAdmin, models.RoleOSA), validationHandler.Decide)
		validation.POST("/requests/:studentNumber/resend", middleware.RequireRoles(models.RoleAdmin), validationHandler.Resend)
	}

	scan := api.Group("/scan", middleware.JWT(authSvc))
	{
		scan.POST("/verify", middleware.RequireRoles(models.RoleAdmin, models.RoleOSA), scanHandler.Verify)
		scan.POST("/complete", middleware.RequireRoles(models.RoleOSA), scanHandler.Complete)
		scan.GET("/history/:studentNumber", middleware.RequireRoles(models.RoleAdmin, models.RoleOSA), scanHandler.History)
	}

	offenses := api.Group("/offenses", middleware.JWT(authSvc))
	{
		offenses.GET("/catalog", offenseHandler.Catalog)
		offenses.POST("", middleware.RequireRoles(models.RoleOSA), offenseHandler.File)
		offenses.POST("/:id/resolve", middleware.RequireRoles(models.RoleOSA), offenseHandler.Resolve)
		offenses.POST("/:id/reopen", middleware.RequireRoles(models.RoleOSA), offenseHandler.Reopen)
		offenses.GET("/student/:studentNumber", offenseHandler.ListByStudent)
	}

	settings := api.Group("/settings", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin))
	{
		settings.GET("/period", settingsHandler.Period)
		settings.PUT("/period", settingsHandler.SetPeriod)
		settings.GET("/semester", settingsHandler.CurrentSemester)
		settings.POST("/semester", settingsHandler.StartSemester)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcher.Start(rootCtx)
	defer dispatcher.Stop()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
