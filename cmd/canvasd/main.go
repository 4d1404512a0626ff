package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/opencanvas/canvasd/internal/canvas"
	"github.com/opencanvas/canvasd/internal/httpapi"
	"github.com/opencanvas/canvasd/internal/planner"
	"github.com/opencanvas/canvasd/internal/runner"
	"github.com/opencanvas/canvasd/internal/vectorsync"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	addr := os.Getenv("CANVASD_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	workspaceRoot := os.Getenv("CANVASD_WORKSPACE_DIR")
	if workspaceRoot == "" {
		workspaceRoot = "workspace"
	}

	lock, err := canvas.AcquireProcessLock(workspaceRoot)
	if err != nil {
		log.Fatal("workspace already in use", zap.String("dir", workspaceRoot), zap.Error(err))
	}
	defer lock.Release()

	stateDSN := strings.TrimSpace(os.Getenv("CANVASD_STATE_DSN"))
	if stateDSN == "" {
		stateDSN = workspaceRoot
	}
	backend, err := canvas.BuildStateBackendFromDSN(stateDSN)
	if err != nil {
		log.Fatal("failed to initialize state backend", zap.Error(err))
	}

	store, err := canvas.NewStore(workspaceRoot, backend, log)
	if err != nil {
		log.Fatal("failed to open workspace", zap.String("dir", workspaceRoot), zap.Error(err))
	}
	report, err := store.Reconcile()
	if err != nil {
		log.Fatal("workspace reconcile failed", zap.Error(err))
	}
	log.Info("workspace ready",
		zap.String("dir", store.WorkspaceRoot()),
		zap.Int("files", report.Files),
		zap.Int("folders", report.Folders),
		zap.Int("orphans", len(report.Orphans)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := canvas.NewWatcher(store, log)
	if err != nil {
		log.Fatal("failed to start workspace watcher", zap.Error(err))
	}
	go func() {
		if err := watcher.Run(ctx); err != nil {
			log.Warn("workspace watcher stopped", zap.Error(err))
		}
	}()

	var plan httpapi.Planner
	if apiKey := openAIKeyFromEnv(); apiKey != "" {
		p, err := planner.New(apiKey, os.Getenv("CANVASD_OPENAI_MODEL"), log)
		if err != nil {
			log.Fatal("failed to initialize planner", zap.Error(err))
		}
		plan = p
	} else {
		log.Info("no OpenAI key configured, plan generation uses the scaffold fallback")
	}

	if weaviateURL := strings.TrimSpace(os.Getenv("CANVASD_WEAVIATE_URL")); weaviateURL != "" {
		syncer, err := vectorsync.New(weaviateURL, store, log)
		if err != nil {
			log.Fatal("failed to initialize weaviate sync", zap.Error(err))
		}
		go runVectorSync(ctx, syncer, durationEnv("CANVASD_SYNC_INTERVAL", 5*time.Minute, log), log)
	}

	run := runner.New(store, durationEnv("CANVASD_RUN_TIMEOUT", 0, log), log)

	server := httpapi.NewServer(store, plan, run, log, httpapi.ServerConfig{
		MaxBodyBytes: int64Env("CANVASD_MAX_BODY_BYTES", 0, log),
	})
	httpServer := &http.Server{Addr: addr, Handler: server.Router()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("shutdown incomplete", zap.Error(err))
		}
	}()

	log.Info("canvasd listening", zap.String("addr", addr))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server failed", zap.Error(err))
	}
}

func openAIKeyFromEnv() string {
	if key := strings.TrimSpace(os.Getenv("CANVASD_OPENAI_API_KEY")); key != "" {
		return key
	}
	return strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
}

// runVectorSync mirrors the canvas into Weaviate on an interval, waiting for
// the instance to report ready first.
func runVectorSync(ctx context.Context, syncer *vectorsync.Syncer, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if syncer.Ready(ctx) {
			if _, err := syncer.SyncAll(ctx); err != nil {
				log.Warn("weaviate sync failed", zap.Error(err))
			}
		} else {
			log.Warn("weaviate not ready, skipping sync")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func int64Env(name string, fallback int64, log *zap.Logger) int64 {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Warn("invalid env value, using fallback",
			zap.String("name", name), zap.String("value", raw), zap.Int64("fallback", fallback))
		return fallback
	}
	return value
}

func durationEnv(name string, fallback time.Duration, log *zap.Logger) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		log.Warn("invalid env value, using fallback",
			zap.String("name", name), zap.String("value", raw), zap.Duration("fallback", fallback))
		return fallback
	}
	return value
}
