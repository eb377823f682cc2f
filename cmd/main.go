package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"pharmacy-service/internal/handler"
	"pharmacy-service/internal/middleware"
	"pharmacy-service/internal/repository"
	"pharmacy-service/internal/service"
	"pharmacy-service/pkg/config"
	"pharmacy-service/pkg/database"
	"pharmacy-service/pkg/jwtutil"
	"pharmacy-service/pkg/logger"
	"pharmacy-service/pkg/response"
	"pharmacy-service/pkg/storage"
	"pharmacy-service/prometheus"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	if err := logger.InitLogger(&logger.LogConfig{
		Level:       cfg.Log.Level,
		Environment: cfg.Server.Env,
		ServiceName: cfg.ServiceName,
	}); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	defer log.Sync()
	log.Info("Starting pharmacy service...", cfg.LogConfig()...)

	// Initialize Prometheus metrics
	prometheus.InitMetrics(cfg.Metrics.Prefix, nil)
	log.Info("Prometheus metrics initialized")

	// Initialize storage backend
	var (
		repos *repository.Repositories
		ping  func(ctx context.Context) error
	)
	switch cfg.DB.Driver {
	case "memory":
		repos = repository.NewMemoryRepositories()
		log.Warn("Using in-memory storage, data is lost on restart")
	default:
		db, err := database.InitDB(&cfg.DB)
		if err != nil {
			log.Fatal("Failed to initialize database", zap.Error(err))
		}
		defer database.Close(db)
		if err := database.Migrate(db); err != nil {
			log.Fatal("Failed to migrate database", zap.Error(err))
		}
		log.Info("Database connection established")
		repos = repository.NewGormRepositories(db)
		ping = func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}

	uploader, err := storage.New(&cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize prescription storage", zap.Error(err))
	}

	jwtUtil := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{
		AccessSecret:     cfg.JWT.AccessSecret,
		AccessExpiresIn:  cfg.JWT.AccessExpiresIn,
		RefreshSecret:    cfg.JWT.RefreshSecret,
		RefreshExpiresIn: cfg.JWT.RefreshExpiresIn,
	})

	// Services
	authService := service.NewAuthService(repos.Users, jwtUtil, log)
	userService := service.NewUserService(repos.Users, log)
	productService := service.NewProductService(repos.Products, log)
	cartService := service.NewCartService(repos.Products)
	orderService := service.NewOrderService(repos, uploader, log)
	dashboardService := service.NewDashboardService(repos)

	if cfg.Seed.AdminEmail != "" {
		if err := userService.EnsureAdmin(context.Background(), cfg.Seed.AdminEmail, cfg.Seed.AdminPassword); err != nil {
			log.Fatal("Failed to seed admin account", zap.Error(err))
		}
	}

	monitor := service.NewInventoryMonitor(repos.Products, cfg.Inventory.LowStockThreshold, cfg.Inventory.ExpiringWithin, log)
	if err := monitor.Start(cfg.Inventory.CronSpec); err != nil {
		log.Fatal("Failed to start inventory monitor", zap.Error(err))
	}
	defer monitor.Stop()

	authLimiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	limiterDone := make(chan struct{})
	defer close(limiterDone)
	authLimiter.StartCleanup(5*time.Minute, limiterDone)

	// Initialize Echo framework
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = response.ErrorHandler
	e.Validator = middleware.NewValidator()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(middleware.MetricsMiddleware)

	e.GET("/metrics", echo.WrapHandler(prometheus.Handler()))
	if cfg.Storage.Driver == "" || cfg.Storage.Driver == "local" {
		handler.RegisterUploads(e, cfg.Storage.LocalDir, jwtUtil, repos.Users)
	}

	handler.RegisterRoutes(e, handler.Handlers{
		Auth:      handler.NewAuthHandler(authService, cfg.Server.Env == "production", cfg.JWT.RefreshExpiresIn),
		User:      handler.NewUserHandler(userService),
		Product:   handler.NewProductHandler(productService),
		Cart:      handler.NewCartHandler(cartService),
		Order:     handler.NewOrderHandler(orderService),
		Dashboard: handler.NewDashboardHandler(dashboardService),
		Health:    handler.NewHealthHandler(cfg.ServiceName, ping),
	}, jwtUtil, repos.Users, authLimiter)

	// Start server
	port := cfg.Server.Port
	go func() {
		log.Info("Starting server", zap.String("port", port))
		if err := e.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
}
