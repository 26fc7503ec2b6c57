package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"botarena/internal/arena/build"
	"botarena/internal/arena/match"
	"botarena/internal/arena/repository"
	"botarena/internal/arena/runner"
	"botarena/internal/arena/worker"
	"botarena/internal/arena/workspace"
	"botarena/internal/common/db"
	commonmw "botarena/internal/common/http/middleware"
	"botarena/internal/common/queue"
	"botarena/pkg/utils/logger"
	"botarena/pkg/utils/response"
)

const defaultConfigPath = "configs/match-runner.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	pool, err := db.Open(appCfg.Database)
	if err != nil {
		logger.Error(context.Background(), "init database failed", zap.Error(err))
		return
	}
	defer func() {
		_ = pool.Close()
	}()

	redisQueue, err := queue.NewRedisQueueWithConfig(&appCfg.Redis)
	if err != nil {
		logger.Error(context.Background(), "init redis failed", zap.Error(err))
		return
	}
	defer func() {
		_ = redisQueue.Close()
	}()

	bots := repository.NewBotRepository(pool)
	matches := repository.NewMatchRepository(pool)
	games := repository.NewGameRepository(pool)
	users := repository.NewUserRepository(pool)

	systemUser, err := users.GetByUsername(context.Background(), appCfg.Arena.SystemUsername)
	if err != nil {
		logger.Error(context.Background(), "resolve system user failed",
			zap.String("username", appCfg.Arena.SystemUsername), zap.Error(err))
		return
	}

	buildCache := build.NewCache(runner.New(appCfg.Worker.BuildTimeout))
	layout := workspace.NewLayout(appCfg.Arena.WorkRoot)

	executor, err := match.NewExecutor(match.Config{
		Matches:      matches,
		Bots:         bots,
		Games:        games,
		Users:        users,
		Cache:        buildCache,
		Runner:       runner.New(appCfg.Worker.MatchTimeout),
		Layout:       layout,
		SystemUserID: systemUser.ID,
	})
	if err != nil {
		logger.Error(context.Background(), "init match executor failed", zap.Error(err))
		return
	}

	matchSvc, err := match.NewService(executor, matches, redisQueue, appCfg.Worker.PollTimeout)
	if err != nil {
		logger.Error(context.Background(), "init match service failed", zap.Error(err))
		return
	}

	httpServer := buildHTTPServer(appCfg.Server, matches, redisQueue, pool)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpErrCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "match runner http server started", zap.String("addr", appCfg.Server.Addr))
		httpErrCh <- httpServer.Serve(listener)
	}()

	workerErrCh := make(chan error, 1)
	go func() {
		supervisor := worker.Supervisor{
			MaxRestarts: appCfg.Worker.MaxRestarts,
			BaseDelay:   appCfg.Worker.RestartBaseDelay,
			MaxDelay:    appCfg.Worker.RestartMaxDelay,
		}
		logger.Info(context.Background(), "match runner worker started")
		workerErrCh <- supervisor.Run(shutdownCtx, "match-runner", matchSvc.Loop())
	}()

	select {
	case err := <-httpErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case err := <-workerErrCh:
		if err != nil {
			logger.Error(context.Background(), "worker loop stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
}

func buildHTTPServer(cfg ServerConfig, matches repository.MatchRepository, q queue.Queue, pool *sql.DB) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := q.Ping(ctx); err != nil {
			response.Error(c, err)
			return
		}
		if err := pool.PingContext(ctx); err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	api.GET("/matches/:id/status", func(c *gin.Context) {
		mtch, err := matches.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			response.Error(c, err)
			return
		}
		payload := gin.H{
			"matchId": mtch.ID,
			"stage":   mtch.RunStatus.Stage,
			"log":     mtch.RunStatus.Log,
		}
		if mtch.ScoreJSON != nil {
			payload["scoreJson"] = *mtch.ScoreJSON
		}
		response.Success(c, payload)
	})

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		logger.Info(
			c.Request.Context(),
			"request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
