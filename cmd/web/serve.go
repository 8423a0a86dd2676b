package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/taporibrain/internal/appearance"
	"github.com/zhouzirui/taporibrain/internal/client"
	"github.com/zhouzirui/taporibrain/internal/handler"
	adminhandler "github.com/zhouzirui/taporibrain/internal/handler/admin"
	chathandler "github.com/zhouzirui/taporibrain/internal/handler/chat"
	"github.com/zhouzirui/taporibrain/internal/handler/live"
	"github.com/zhouzirui/taporibrain/internal/handler/site"
	"github.com/zhouzirui/taporibrain/internal/handler/view"
	"github.com/zhouzirui/taporibrain/internal/media"
	adminservice "github.com/zhouzirui/taporibrain/internal/service/admin"
	chatservice "github.com/zhouzirui/taporibrain/internal/service/chat"
	"github.com/zhouzirui/taporibrain/internal/service/composer"
	"github.com/zhouzirui/taporibrain/internal/service/notify"
	"github.com/zhouzirui/taporibrain/internal/service/session"
	"github.com/zhouzirui/taporibrain/internal/service/theme"
	"github.com/zhouzirui/taporibrain/internal/storage/kv"
)

func (a *app) serve(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	store, err := kv.OpenSQLite(ctx, cfg.Client.StateDB)
	if err != nil {
		return err
	}
	defer store.Close()

	// 没有外观文件时，由浏览器通过 WebSocket 上报系统明暗模式
	var (
		source   appearance.Source
		switcher *appearance.Switch
	)
	if cfg.Client.AppearanceFile != "" {
		source = appearance.NewFile(cfg.Client.AppearanceFile, logger)
	} else {
		switcher = appearance.NewSwitch(appearance.Terminal().Dark())
		source = switcher
	}

	themes, err := theme.New(ctx, store, source, logger)
	if err != nil {
		return err
	}
	defer themes.Close()

	previews := media.NewPreviewRegistry()
	toasts := notify.NewFeed(0)
	sessions := session.NewStore()
	api := client.New(cfg.Client.BackendURL,
		client.WithTimeout(cfg.Client.APITimeout),
		client.WithLogger(logger),
	)

	var chatSvc *chatservice.Service
	comp := composer.New(composer.Config{
		Previews: previews,
		OnVoice: func(ctx context.Context, audio media.Audio) {
			chatSvc.SendVoice(ctx, audio)
		},
		Logger: logger,
	})
	defer comp.Close()

	chatSvc = chatservice.NewService(chatservice.Config{
		Sessions: sessions,
		Composer: comp,
		Backend:  api,
		Toasts:   toasts,
		Previews: previews,
		Logger:   logger,
	})
	defer chatSvc.Close()

	adminSvc := adminservice.NewService(api, toasts, logger)

	views, err := view.NewRenderer(themes, logger)
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}

	liveHandler := live.New(live.Config{
		Sessions:   sessions,
		Composer:   comp,
		Themes:     themes,
		Toasts:     toasts,
		Appearance: switcher,
		Logger:     logger,
	})
	defer liveHandler.Close()

	router := handler.NewRouter(handler.Handlers{
		Chat:  chathandler.New(sessions, comp, chatSvc, previews, views, logger),
		Admin: adminhandler.New(adminSvc, views, logger),
		Site:  site.New(themes, views, logger),
		Live:  liveHandler,
	}, logger)

	srv := &http.Server{
		Addr:              cfg.Client.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("TaporiBrain client listening",
		zap.String("addr", cfg.Client.Addr),
		zap.String("backend", cfg.Client.BackendURL),
	)
	return runServer(ctx, srv)
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
