// Package app wires configuration, storage, the Telegram fleet and the HTTP
// API into a runnable server.
package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/visorry/flash-invite-sub001/internal/broadcast"
	"github.com/visorry/flash-invite-sub001/internal/cache"
	"github.com/visorry/flash-invite-sub001/internal/config"
	"github.com/visorry/flash-invite-sub001/internal/db"
	"github.com/visorry/flash-invite-sub001/internal/http/api/admin"
	"github.com/visorry/flash-invite-sub001/internal/http/api/dashboard"
	"github.com/visorry/flash-invite-sub001/internal/logging"
	"github.com/visorry/flash-invite-sub001/internal/scheduler"
	"github.com/visorry/flash-invite-sub001/internal/settings"
	"github.com/visorry/flash-invite-sub001/internal/telegram"
)

// shutdownTimeout bounds graceful HTTP drain on exit.
const shutdownTimeout = 10 * time.Second

// App holds the wired server components.
type App struct {
	cfg     *config.File
	conn    *gorm.DB
	cache   *cache.Cache
	manager *telegram.Manager
	engine  *gin.Engine
}

// New loads config from path and wires every component. The database is
// opened, migrated and its settings snapshot refreshed before returning.
func New(path string) (*App, error) {
	cfg, errLoad := config.Load(config.ResolveConfigPath(path))
	if errLoad != nil {
		return nil, errLoad
	}
	logging.Setup(cfg.Log)

	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return nil, errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return nil, errMigrate
	}
	if errRefresh := settings.RefreshDBConfigSnapshot(context.Background(), conn); errRefresh != nil {
		log.WithError(errRefresh).Warn("settings snapshot refresh failed, using defaults")
	}

	cacheClient := cache.New(cfg.Redis)
	manager := telegram.NewManager(nil)
	dispatcher := broadcast.NewDispatcher(conn, manager)

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	admin.RegisterAdminRoutes(engine, conn, cfg.JWT, manager, cacheClient)
	dashboard.RegisterDashboardRoutes(engine, conn, cfg.JWT, manager, cacheClient, dispatcher)

	return &App{
		cfg:     cfg,
		conn:    conn,
		cache:   cacheClient,
		manager: manager,
		engine:  engine,
	}, nil
}

// Run starts the health poller, the scheduler and the HTTP listener, then
// blocks until the context is cancelled or SIGINT/SIGTERM arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go telegram.NewHealthPoller(a.conn, a.manager).Start(ctx)
	go scheduler.New(a.conn, a.manager).Start(ctx)
	go scheduler.NewPump(a.conn, a.manager).Start(ctx)

	srv := &http.Server{Addr: a.cfg.Server.Addr, Handler: a.engine}
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", a.cfg.Server.Addr).Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case errServe := <-errCh:
		if errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			return errServe
		}
	case <-ctx.Done():
		log.Info("shutting down")
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := srv.Shutdown(drainCtx); errShutdown != nil {
			log.WithError(errShutdown).Warn("http shutdown incomplete")
		}
	}

	if errClose := a.cache.Close(); errClose != nil {
		log.WithError(errClose).Warn("cache close failed")
	}
	return nil
}

// requestLogger logs one line per request at debug level with method, path,
// status and latency.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("request")
	}
}
