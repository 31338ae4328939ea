package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sp14green/chessarena/internal/ai"
	"github.com/sp14green/chessarena/internal/archive"
	appcfg "github.com/sp14green/chessarena/internal/config"
	"github.com/sp14green/chessarena/internal/obslog"
	"github.com/sp14green/chessarena/internal/room"
	"github.com/sp14green/chessarena/internal/server"
	"github.com/sp14green/chessarena/internal/store"
	"github.com/sp14green/chessarena/internal/uci"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()

	// Snapshot store: redis when configured, local files otherwise.
	var snapStore store.Store
	if strings.TrimSpace(cfg.RedisURL) != "" {
		rs, err := store.NewRedisStore(cfg.RedisURL, 0)
		if err != nil {
			logger.Fatal("redis_store_init_failed", zap.Error(err))
		}
		defer rs.Close()
		snapStore = rs
	} else {
		fs, err := store.NewFileStore(cfg.SnapshotDir)
		if err != nil {
			logger.Fatal("file_store_init_failed", zap.Error(err))
		}
		snapStore = fs
	}

	book, err := ai.LoadBook(cfg.OpeningBookPath)
	if err != nil {
		logger.Fatal("opening_book_load_failed", zap.Error(err))
	}
	if book != nil {
		logger.Info("opening_book_loaded", zap.Int("positions", book.Len()))
	}

	var engine ai.EngineClient
	if strings.TrimSpace(cfg.EngineBinaryPath) != "" {
		eng, err := uci.NewEngine(cfg.EngineBinaryPath, uci.Options{
			Threads: cfg.EngineThreads,
			HashMB:  cfg.EngineHashMB,
		})
		if err != nil {
			logger.Fatal("engine_init_failed", zap.Error(err))
		}
		defer eng.Close()
		engine = eng
	}
	selector := ai.NewSelector(book, cfg.SearchDepth, engine, cfg.EngineMoveTime())

	managerOpts := []room.ManagerOption{
		room.WithIdleTTL(cfg.SessionIdleTTL()),
		room.WithReapInterval(cfg.ReapInterval()),
	}
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		repo, err := archive.NewRepository(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("archive_init_failed", zap.Error(err))
		}
		defer repo.Close()
		schemaCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := repo.EnsureSchema(schemaCtx); err != nil {
			cancel()
			logger.Fatal("archive_schema_failed", zap.Error(err))
		}
		cancel()
		managerOpts = append(managerOpts, room.WithArchive(repo))
	}
	manager := room.NewManager(snapStore, managerOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go manager.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.New(manager, selector).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("server_listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server_failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown_incomplete", zap.Error(err))
		os.Exit(1)
	}
}
