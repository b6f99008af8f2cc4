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
	apirest "github.com/kasuganosora/bossarena/api/rest"
	"github.com/kasuganosora/bossarena/api/sse"
	"github.com/kasuganosora/bossarena/api/ws"
	"github.com/kasuganosora/bossarena/cache"
	"github.com/kasuganosora/bossarena/config"
	dbadapter "github.com/kasuganosora/bossarena/db"
	"github.com/kasuganosora/bossarena/game/arena"
	"github.com/kasuganosora/bossarena/journal"
	mw "github.com/kasuganosora/bossarena/middleware"
	"github.com/kasuganosora/bossarena/model"
	"github.com/kasuganosora/bossarena/plugin/hook"
	"github.com/kasuganosora/bossarena/scheduler"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	watcher, err := config.Open(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	cfg := watcher.Current()

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized", zap.String("mode", cfg.Database.Mode))

	// ---- Cache / PubSub ----
	cacheConfig := cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	c, err := cache.NewCache(cacheConfig)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	pubsub, err := cache.NewPubSub(cacheConfig)
	if err != nil {
		log.Fatalf("pubsub: %v", err)
	}
	logger.Info("Cache initialized", zap.Bool("redis", cfg.Cache.RedisAddr != ""))

	// ---- Services ----
	sched := scheduler.New(logger)
	hooks := hook.NewHookCenter()
	journalSvc := journal.New(db, journal.Options{}, logger)
	stage := arena.NewStageAdvancer(db, c, hooks, logger)

	layouts, err := arena.LoadLayouts(cfg.Arena.LayoutsDir)
	if err != nil {
		logger.Warn("arena layouts not loaded, using the built-in field", zap.Error(err))
	}

	mgr := arena.NewManager(settingsFrom(cfg), withBuiltin(layouts), arena.Deps{
		Scheduler: sched,
		Stage:     stage,
		Journal:   journalSvc,
		Cache:     c,
		PubSub:    pubsub,
		Hooks:     hooks,
		Logger:    logger,
	})
	mgr.Start()
	logger.Info("Arena ready", zap.Strings("layouts", mgr.LayoutNames()))

	// ---- Hot reload ----
	if lw, err := arena.WatchLayouts(cfg.Arena.LayoutsDir, func(l map[string]*arena.Layout) {
		mgr.SetLayouts(withBuiltin(l))
	}, logger); err != nil {
		logger.Warn("layout watch disabled", zap.Error(err))
	} else {
		defer lw.Close()
	}
	watcher.Watch(func(next *config.Config) {
		mgr.SetSettings(settingsFrom(next))
	}, func(err error) {
		logger.Warn("config reload failed", zap.Error(err))
	})

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok", "encounters": mgr.Count()})
	})

	authH := apirest.NewAuthHandler(db, c, cfg.Security, logger)
	encH := apirest.NewEncounterHandler(mgr, journalSvc, db, logger)
	recH := apirest.NewRecordsHandler(db, stage, logger)
	adminH := apirest.NewAdminHandler(mgr, sched, journalSvc, logger)

	api := r.Group("/api")
	api.Use(mw.RateLimit(ctx, rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))
	{
		authG := api.Group("/auth")
		authG.POST("/login", authH.Login)
		authG.POST("/logout", mw.Auth(cfg.Security, c), authH.Logout)
		authG.POST("/refresh", mw.Auth(cfg.Security, c), authH.Refresh)

		encG := api.Group("/encounters")
		encG.Use(mw.Auth(cfg.Security, c))
		encG.POST("", encH.Create)
		encG.GET("", encH.List)
		encG.GET("/:id", encH.Get)
		encG.DELETE("/:id", encH.Delete)
		encG.POST("/:id/damage", encH.Damage)
		encG.POST("/:id/heal", encH.Heal)
		encG.POST("/:id/player", encH.Player)
		encG.GET("/:id/gizmos", encH.Gizmos)
		encG.GET("/:id/events", encH.Events)
		encG.GET("/:id/journal", encH.Journal)

		authed := api.Group("")
		authed.Use(mw.Auth(cfg.Security, c))
		authed.GET("/records", recH.List)
		authed.GET("/records/:id", recH.Get)
		authed.GET("/leaderboard", recH.Leaderboard)
		authed.GET("/stage", recH.Stage)
	}

	adminG := r.Group("/admin")
	adminG.Use(mw.IPWhitelist(cfg.Server.AdminIPs), apirest.AdminAuth(cfg.Server.AdminKey))
	{
		adminG.GET("/metrics", adminH.Metrics)
		adminG.GET("/tickers", adminH.Tickers)
		adminG.GET("/tuning", adminH.Tuning)
		adminG.GET("/encounters", adminH.Encounters)
		adminG.POST("/encounters/:id/step", adminH.Step)
		adminG.DELETE("/encounters/:id", adminH.CloseEncounter)
	}

	// ---- SSE ----
	sseH := sse.NewHandler(mgr, pubsub, c, cfg.Security, logger)
	r.GET("/sse/encounters/:id", sseH.ServeEncounter)

	// ---- WebSocket ----
	wsRouter := ws.NewRouter(logger)
	ws.RegisterEncounterHandlers(wsRouter, mgr)
	wsH := ws.NewHandler(mgr, pubsub, c, cfg.Security, wsRouter, logger)
	r.GET("/ws/encounters/:id", wsH.ServeEncounter)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		logger.Info("Server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	// Abandoned fights are recorded before the journal and scheduler go away.
	mgr.Stop(shutdownCtx)
	journalSvc.Stop(shutdownCtx)
	sched.Stop()
}

// settingsFrom maps the arena and boss config sections onto manager settings.
func settingsFrom(cfg *config.Config) arena.Settings {
	return arena.Settings{
		Tuning:           cfg.Boss,
		DefaultLayout:    cfg.Arena.DefaultLayout,
		MaxEncounters:    cfg.Arena.MaxEncounters,
		DefaultMaxHealth: cfg.Arena.DefaultMaxHealth,
		ProjectileTTL:    cfg.Arena.ProjectileTTL,
		ProjectileRadius: cfg.Arena.ProjectileRadius,
		RecentEvents:     cfg.Arena.RecentEvents,
		TickInterval:     cfg.Arena.TickInterval(),
		IdleTimeout:      cfg.Arena.IdleTimeout,
	}
}

// withBuiltin adds the open field unless a file already took its name.
func withBuiltin(layouts map[string]*arena.Layout) map[string]*arena.Layout {
	out := make(map[string]*arena.Layout, len(layouts)+1)
	for name, l := range layouts {
		out[name] = l
	}
	def := arena.DefaultLayout()
	if _, ok := out[def.Name]; !ok {
		out[def.Name] = def
	}
	return out
}
