package admin

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/taporibrain/internal/handler/view"
	adminservice "github.com/zhouzirui/taporibrain/internal/service/admin"
	"github.com/zhouzirui/taporibrain/pkg/utils"
)

// Handler 管理面板的HTTP处理器
type Handler struct {
	svc    *adminservice.Service
	views  *view.Renderer
	logger *zap.Logger
}

// New 创建管理面板处理器
func New(svc *adminservice.Service, views *view.Renderer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, views: views, logger: logger}
}

// RegisterRoutes 注册管理面板路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/admin", func(ar chi.Router) {
		ar.Get("/", h.handlePage)
		ar.Post("/config", h.handleUpdateConfig)
		ar.Post("/features", h.handleUpdateFeature)
		ar.Post("/refresh", h.handleRefresh)
	})
}

// Content 管理页面的模板数据
type Content struct {
	Dashboard adminservice.Dashboard
	Loaded    bool
	Error     string
}

// handlePage 渲染管理面板，首次打开时加载数据
func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	dashboard, loaded := h.svc.Dashboard()
	content := Content{Dashboard: dashboard, Loaded: loaded}
	if !loaded {
		d, err := h.svc.Load(r.Context())
		if err != nil {
			content.Error = err.Error()
		} else {
			content.Dashboard, content.Loaded = d, true
		}
	}

	h.views.Render(w, r, http.StatusOK, view.PageAdmin, view.Page{
		Title:   "Admin",
		Content: content,
	})
}

// handleRefresh 重新拉取配置、统计与功能开关
func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Load(r.Context())
	if err != nil {
		utils.Fail(w, r, http.StatusBadGateway, "failed to load admin data")
		return
	}
	utils.Finish(w, r, http.StatusOK, d)
}

// handleUpdateConfig 更新一项配置，type 字段决定值的类型（number、bool，默认字符串）
func (h *Handler) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.FormValue("key"))
	if key == "" {
		utils.Fail(w, r, http.StatusBadRequest, "key is required")
		return
	}

	value, err := parseValue(r.FormValue("type"), r.FormValue("value"))
	if err != nil {
		utils.Fail(w, r, http.StatusBadRequest, "invalid value for "+key)
		return
	}

	if err := h.svc.UpdateConfig(r.Context(), key, value); err != nil {
		utils.Fail(w, r, http.StatusBadGateway, "failed to update configuration")
		return
	}
	utils.Finish(w, r, http.StatusOK, map[string]any{"key": key, "value": value})
}

// handleUpdateFeature 切换一个功能开关
func (h *Handler) handleUpdateFeature(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.FormValue("key"))
	if key == "" {
		utils.Fail(w, r, http.StatusBadRequest, "key is required")
		return
	}
	enabled, err := strconv.ParseBool(r.FormValue("value"))
	if err != nil {
		utils.Fail(w, r, http.StatusBadRequest, "value must be a boolean")
		return
	}

	if err := h.svc.UpdateFeature(r.Context(), key, enabled); err != nil {
		utils.Fail(w, r, http.StatusBadGateway, "failed to update feature flag")
		return
	}
	utils.Finish(w, r, http.StatusOK, map[string]any{"key": key, "value": enabled})
}

func parseValue(kind, raw string) (any, error) {
	switch kind {
	case "number":
		return strconv.ParseFloat(strings.TrimSpace(raw), 64)
	case "bool":
		return strconv.ParseBool(raw)
	default:
		return raw, nil
	}
}
