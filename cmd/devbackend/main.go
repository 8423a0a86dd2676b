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

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/taporibrain/internal/backend"
	"github.com/zhouzirui/taporibrain/internal/client"
	"github.com/zhouzirui/taporibrain/internal/config"
	"github.com/zhouzirui/taporibrain/internal/logging"
	"github.com/zhouzirui/taporibrain/internal/model/agent"
)

const version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	agents := agent.NewMemoryStore(agent.Seed())

	modelName := "echo"
	var responder backend.Responder = backend.EchoResponder{}
	if cfg.AI.Enabled() {
		chatModel, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			logger.Warn("failed to initialize chat model, falling back to echo replies", zap.Error(err))
		} else if mr, err := backend.NewModelResponder(ctx, chatModel, logger); err != nil {
			logger.Warn("failed to build reply chain, falling back to echo replies", zap.Error(err))
		} else {
			responder = mr
			modelName = cfg.AI.Model
			logger.Info("model responder initialized", zap.String("model", modelName))
		}
	} else {
		logger.Info("Ark 凭证未配置，使用回声回复")
	}

	state := backend.NewState(cfg.Backend.Environment, client.ModelInfo{Name: modelName, Version: version})
	h := backend.New(agents, responder, state, backend.NewHistory(), logger)

	srv := &http.Server{
		Addr:              cfg.Backend.Addr,
		Handler:           backend.NewRouter(h),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("TaporiBrain dev backend listening",
		zap.String("addr", cfg.Backend.Addr),
		zap.String("environment", cfg.Backend.Environment),
	)
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
