package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/gogotex/gonotes/internal/config"
	"github.com/gogotex/gonotes/internal/database"
	"github.com/gogotex/gonotes/internal/identity"
	"github.com/gogotex/gonotes/internal/note/handler"
	"github.com/gogotex/gonotes/internal/note/repository"
	"github.com/gogotex/gonotes/internal/note/service"
	"github.com/gogotex/gonotes/internal/storage"
	"github.com/gogotex/gonotes/internal/tags"
	"github.com/gogotex/gonotes/pkg/logger"
	"github.com/gogotex/gonotes/pkg/metrics"
	"github.com/gogotex/gonotes/pkg/middleware"
)

var startTime = time.Now()

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel)
	logger.Infof("config loaded: keycloak=%v mongo=%v redis=%v minio=%v",
		cfg.Keycloak.URL != "", cfg.MongoDB.URI != "", cfg.Redis.Addr() != "", cfg.MinIO.Endpoint != "")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	if addr := cfg.Redis.Addr(); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s): %v", addr, err)
			_ = rdb.Close()
			rdb = nil
		} else {
			logger.Infof("connected to Redis: %s", addr)
			defer rdb.Close()
		}
	}

	svc, backend := buildService(ctx, cfg, rdb)
	logger.Infof("note storage backend: %s", backend)

	var drafts storage.DraftArchiver
	if cfg.MinIO.Endpoint != "" {
		archive, err := storage.NewMinIOArchive(ctx, cfg.MinIO)
		if err != nil {
			logger.Warnf("rejected drafts will not be archived: %v", err)
		} else {
			drafts = archive
		}
	}

	verifier := buildVerifier(ctx, cfg)

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", func(c *gin.Context) {
		deps := gin.H{"storage": backend, "drafts": drafts != nil, "auth": verifier != nil}
		if cfg.Redis.Addr() != "" && cfg.RateLimit.UseRedis && rdb == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "deps": deps, "uptime": time.Since(startTime).String()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "deps": deps, "uptime": time.Since(startTime).String()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handler.RegisterSwagger(r)

	api := r.Group("/")
	if verifier != nil {
		api.Use(middleware.AuthMiddleware(verifier))
	}
	// after auth so limits are per editor
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && rdb != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			api.Use(middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			api.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}
	handler.RegisterNoteRoutes(api, svc, drafts)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("gonotes listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("graceful shutdown failed: %v", err)
	}
}

// buildService prefers MongoDB, then Redis, then memory.
func buildService(ctx context.Context, cfg *config.Config, rdb *redis.Client) (service.Service, string) {
	if cfg.MongoDB.URI != "" {
		client, err := database.ConnectWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5)
		if err != nil {
			logger.Warnf("%v; falling back", err)
		} else {
			notesCol, tagsCol := database.Collections(client, cfg.MongoDB.Database)
			repo, err := repository.NewMongoRepo(ctx, notesCol)
			if err != nil {
				logger.Warnf("failed to prepare notes collection: %v", err)
			} else if resolver, err := tags.NewMongoResolver(ctx, tagsCol); err != nil {
				logger.Warnf("failed to prepare tags collection: %v", err)
			} else {
				return service.New(repo, resolver), "mongodb"
			}
		}
	}
	if rdb != nil {
		return service.New(repository.NewRedisRepo(rdb, "note:"), tags.NewRedisResolver(rdb, "tags")), "redis"
	}
	return service.NewMemoryService(), "memory"
}

// buildVerifier returns nil when no identity provider is configured.
func buildVerifier(ctx context.Context, cfg *config.Config) middleware.Verifier {
	if cfg.Keycloak.URL != "" && cfg.Keycloak.ClientID != "" {
		ver, err := identity.NewOIDCVerifier(ctx, cfg.Keycloak.Issuer(), cfg.Keycloak.ClientID)
		if err == nil {
			return ver
		}
		logger.Warnf("failed to initialize OIDC verifier: %v", err)
	}
	if cfg.JWT.Secret != "" {
		ver, err := identity.NewHMACVerifier(cfg.JWT.Secret)
		if err == nil {
			return ver
		}
		logger.Warnf("failed to initialize HMAC verifier: %v", err)
	}
	return nil
}
