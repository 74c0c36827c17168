package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mircoferri/taskhub/internal/auth"
	"github.com/mircoferri/taskhub/internal/cache"
	"github.com/mircoferri/taskhub/internal/config"
	"github.com/mircoferri/taskhub/internal/directory"
	"github.com/mircoferri/taskhub/internal/httpapi"
	"github.com/mircoferri/taskhub/internal/hub"
	"github.com/mircoferri/taskhub/internal/identity"
	"github.com/mircoferri/taskhub/internal/observability"
	"github.com/mircoferri/taskhub/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()

	var idstore identity.Store
	var taskStore tasks.Store
	if cfg.DatabaseURL != "" {
		pgIdentity, err := identity.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("identity store init failed: %v", err)
		}
		pgTasks, err := tasks.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("task store init failed: %v", err)
		}
		idstore = pgIdentity
		taskStore = pgTasks
		log.Printf("storage backend: postgres")
	} else {
		mem := identity.NewMemoryStore()
		if cfg.SeedFile != "" {
			if err := mem.SeedFromFile(cfg.SeedFile); err != nil {
				log.Fatalf("seed file load failed: %v", err)
			}
			log.Printf("seeded identities from %s", cfg.SeedFile)
		}
		idstore = mem
		taskStore = tasks.NewMemoryStore()
		log.Printf("storage backend: in-memory (set DATABASE_URL for postgres)")
	}
	defer idstore.Close()
	defer taskStore.Close()

	var store cache.Cache
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis init failed: %v", err)
		}
		store = redisCache
		log.Printf("cache backend: redis")
	} else {
		mem := cache.NewMemory()
		mem.StartJanitor(runCtx, 30*time.Second)
		store = mem
		log.Printf("cache backend: in-memory (set REDIS_URL for redis)")
	}
	defer store.Close()

	h := hub.New()
	resolver := auth.NewResolver(idstore)
	dir := directory.New(idstore, store, cfg.DirectoryCacheTTL, metrics)
	taskSvc := tasks.NewService(taskStore, idstore, store, tasks.NewDispatcher(h, metrics), metrics)

	api := httpapi.New(cfg, resolver, taskSvc, dir, h, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
