package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"douniyaconnect/internal/config"
	"douniyaconnect/internal/handler"
	"douniyaconnect/internal/middleware"
	"douniyaconnect/internal/repository"
	"douniyaconnect/internal/service"
	"douniyaconnect/internal/ws"
	"douniyaconnect/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(cfg.Log.Level)

	if err := runMigrations(cfg); err != nil {
		appLogger.Fatal("Failed to run migrations", "error", err)
	}
	appLogger.Info("Migrations applied")

	dbPool, err := pgxpool.New(context.Background(), cfg.Database.DSN)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", "error", err)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(context.Background()); err != nil {
		appLogger.Fatal("Failed to ping database", "error", err)
	}
	appLogger.Info("Database connection established")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		appLogger.Fatal("Failed to connect to Redis", "error", err)
	}
	appLogger.Info("Redis connection established")

	hub := ws.NewHub(appLogger)

	repos := repository.NewRepositories(dbPool, rdb, appLogger)
	services := service.NewServices(repos, hub, cfg, appLogger)

	authMiddleware := middleware.NewAuthMiddleware(services.Auth, appLogger)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(services.RateLimit, appLogger)

	handlers := handler.NewHandlers(services, repos, hub, cfg, appLogger)

	router := setupRouter(handlers, authMiddleware, rateLimitMiddleware, cfg, appLogger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		appLogger.Info("Starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Fatal("Server forced to shutdown", "error", err)
	}

	appLogger.Info("Server exited")
}

func runMigrations(cfg *config.Config) error {
	// migrate's pgx/v5 driver registers the pgx5 scheme.
	dsn := strings.Replace(cfg.Database.DSN, "postgres://", "pgx5://", 1)

	m, err := migrate.New(cfg.Database.MigrationsDir, dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func setupRouter(
	handlers *handler.Handlers,
	authMiddleware *middleware.AuthMiddleware,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	cfg *config.Config,
	log logger.Logger,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.ErrorHandler())

	router.GET("/health", handlers.Health.Check)

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register/enterprise", rateLimitMiddleware.Limit(), handlers.Auth.RegisterEnterprise)
			auth.POST("/register/individual", rateLimitMiddleware.Limit(), handlers.Auth.RegisterIndividual)
			auth.POST("/login", rateLimitMiddleware.Limit(), handlers.Auth.Login)
			auth.POST("/refresh", rateLimitMiddleware.Limit(), handlers.Auth.RefreshToken)
			auth.POST("/invitations/accept", rateLimitMiddleware.Limit(), handlers.Auth.AcceptInvitation)
		}

		protected := v1.Group("")
		protected.Use(authMiddleware.RequireAuth())
		{
			protected.GET("/users/me", handlers.User.Me)
			protected.GET("/users", handlers.User.Search)
			protected.POST("/employees", handlers.User.CreateEmployee)

			chat := protected.Group("/chat")
			{
				chat.POST("/conversations", handlers.Chat.CreateConversation)
				chat.GET("/conversations", handlers.Chat.GetConversations)
				chat.GET("/conversations/search", handlers.Chat.SearchConversations)
				chat.GET("/conversations/:id/messages", handlers.Chat.GetMessages)
				chat.POST("/conversations/:id/messages", handlers.Chat.SendMessage)
				chat.POST("/conversations/:id/read", handlers.Chat.MarkAsRead)
			}

			meetings := protected.Group("/meetings")
			{
				meetings.POST("", handlers.Meeting.Create)
				meetings.GET("", handlers.Meeting.List)
				meetings.POST("/:id/respond", handlers.Meeting.Respond)
				meetings.POST("/:id/token", handlers.Meeting.JoinToken)
			}
		}
	}

	// Token auth happens inside the handler; the upgrade request carries it
	// in the query string.
	router.GET("/ws", handlers.WebSocket.Connect)

	return router
}
