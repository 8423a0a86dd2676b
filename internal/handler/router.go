package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/taporibrain/internal/handler/admin"
	"github.com/zhouzirui/taporibrain/internal/handler/chat"
	"github.com/zhouzirui/taporibrain/internal/handler/live"
	"github.com/zhouzirui/taporibrain/internal/handler/site"
	"github.com/zhouzirui/taporibrain/internal/handler/view"
)

// Handlers groups the page and websocket handlers mounted by NewRouter.
type Handlers struct {
	Chat  *chat.Handler
	Admin *admin.Handler
	Site  *site.Handler
	Live  *live.Handler
}

// NewRouter wires HTTP routes to the client's handlers.
func NewRouter(h Handlers, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Handle("/static/*", view.Static())

	h.Site.RegisterRoutes(r)
	h.Chat.RegisterRoutes(r)
	h.Admin.RegisterRoutes(r)
	h.Live.RegisterRoutes(r)

	return r
}

// requestLogger 用zap记录每个请求
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Debug("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
