package site

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/taporibrain/internal/handler/view"
	"github.com/zhouzirui/taporibrain/internal/service/theme"
	"github.com/zhouzirui/taporibrain/pkg/utils"
)

// Handler 处理路线图、主题切换与404页面
type Handler struct {
	themes *theme.Store
	views  *view.Renderer
	logger *zap.Logger
}

// New 创建站点处理器
func New(themes *theme.Store, views *view.Renderer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{themes: themes, views: views, logger: logger}
}

// RegisterRoutes 注册站点路由，并接管未匹配的路径
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/roadmap", h.handleRoadmap)
	r.Get("/theme", h.handleTheme)
	r.Post("/theme", h.handleSetTheme)
	r.NotFound(h.handleNotFound)
}

// RoadmapContent 路线图页面的模板数据
type RoadmapContent struct {
	Sections []Section
}

func (h *Handler) handleRoadmap(w http.ResponseWriter, r *http.Request) {
	h.views.Render(w, r, http.StatusOK, view.PageRoadmap, view.Page{
		Title:   "Roadmap",
		Content: RoadmapContent{Sections: Roadmap()},
	})
}

// handleTheme 返回当前主题偏好与实际生效的主题
func (h *Handler) handleTheme(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.themes.State())
}

// handleSetTheme 设置主题偏好；带 toggle 字段时在明暗之间切换
func (h *Handler) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	var err error
	if r.FormValue("toggle") != "" {
		err = h.themes.Toggle(r.Context())
	} else {
		var pref theme.Preference
		pref, err = theme.ParsePreference(r.FormValue("preference"))
		if err == nil {
			err = h.themes.Set(r.Context(), pref)
		}
	}

	switch {
	case err == nil:
		utils.Finish(w, r, http.StatusOK, h.themes.State())
	case errors.Is(err, theme.ErrInvalidPreference):
		utils.Fail(w, r, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("failed to save theme", zap.Error(err))
		utils.Fail(w, r, http.StatusInternalServerError, "failed to save theme")
	}
}

// handleNotFound 记录访问不存在路径的请求并渲染404页面
func (h *Handler) handleNotFound(w http.ResponseWriter, r *http.Request) {
	h.logger.Warn("404 Error: User attempted to access non-existent route", zap.String("path", r.URL.Path))
	h.views.Render(w, r, http.StatusNotFound, view.PageNotFound, view.Page{Title: "Not Found"})
}
