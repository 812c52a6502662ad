package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskboard/internal/auth"
	"taskboard/internal/config"
	"taskboard/internal/handler"
	"taskboard/internal/middleware"
	"taskboard/internal/migrations"
	"taskboard/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Server struct {
	Engine *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client
	Config *config.Config
}

func Init(cfg *config.Config) (*Server, error) {
	cfg.ConfigureLogging()

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("❌ failed to connect to DB: %w", err)
	}
	log.Info("✅ Connected to database")

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("❌ failed to get sql.DB: %w", err)
	}
	if err := migrations.Run(sqlDB); err != nil {
		return nil, fmt.Errorf("❌ %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("❌ invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		// the cache falls back to the database, so a missing Redis is survivable
		log.WithError(err).Warn("⚠️  Redis unavailable, snapshots will be served uncached")
	} else {
		log.Info("✅ Connected to Redis")
	}

	return &Server{
		Engine: newRouter(cfg, db, rdb),
		DB:     db,
		Redis:  rdb,
		Config: cfg,
	}, nil
}

func newRouter(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *gin.Engine {
	r := gin.Default()

	userRepo := repository.NewUserRepository(db)
	boardRepo := repository.NewBoardRepository(db)
	memberRepo := repository.NewMemberRepository(db)
	columnRepo := repository.NewColumnRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	snapshots := repository.NewSnapshotRepository(boardRepo, columnRepo, taskRepo)
	cache := repository.NewSnapshotCache(snapshots, rdb, cfg.SnapshotCacheTTL, log.WithField("component", "snapshot-cache"))
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpiry)

	userHandler := handler.NewUserHandler(userRepo, tokens)
	boardHandler := handler.NewBoardHandler(boardRepo, memberRepo, cache)
	columnHandler := handler.NewColumnHandler(columnRepo, memberRepo, cache)
	taskHandler := handler.NewTaskHandler(taskRepo, memberRepo, cache)

	// Public routes
	r.POST("/register", userHandler.Register)
	r.POST("/login", userHandler.Login)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Protected routes - require authentication
	authorized := r.Group("/")
	authorized.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
	{
		authorized.POST("/boards", boardHandler.Create)
		authorized.GET("/boards", boardHandler.GetAll)
		authorized.POST("/boards/join", boardHandler.Join)
		authorized.GET("/boards/:id", boardHandler.GetByID)
		authorized.PUT("/boards/:id", boardHandler.Update)
		authorized.DELETE("/boards/:id", boardHandler.Delete)
		authorized.GET("/boards/:id/members", boardHandler.Members)

		authorized.PUT("/boards/:id/columns/:column_id", columnHandler.Update)

		authorized.POST("/boards/:id/tasks", taskHandler.Create)
		authorized.PUT("/boards/:id/tasks/:task_id", taskHandler.Update)
		authorized.DELETE("/boards/:id/tasks/:task_id", taskHandler.Delete)
	}
	return r
}

func (s *Server) Run() {
	srv := &http.Server{
		Addr:    ":" + s.Config.ServerPort,
		Handler: s.Engine,
	}

	go func() {
		log.Infof("🚀 Server running on port %s", s.Config.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("❌ Failed to listen: %s", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %s", err)
	}

	if err := s.Redis.Close(); err != nil {
		log.WithError(err).Warn("⚠️  Redis close failed")
	}
	if sqlDB, err := s.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}

	log.Info("✅ Server exited properly")
}
