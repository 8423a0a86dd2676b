package chat

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/taporibrain/internal/export"
	"github.com/zhouzirui/taporibrain/internal/handler/view"
	"github.com/zhouzirui/taporibrain/internal/media"
	"github.com/zhouzirui/taporibrain/internal/model/chat"
	chatservice "github.com/zhouzirui/taporibrain/internal/service/chat"
	"github.com/zhouzirui/taporibrain/internal/service/composer"
	"github.com/zhouzirui/taporibrain/internal/service/session"
	"github.com/zhouzirui/taporibrain/pkg/utils"
)

// maxUploadSize 附件表单的内存上限
const maxUploadSize = 32 << 20

// Handler 聊天页面及其会话、输入框操作的HTTP处理器
type Handler struct {
	sessions *session.Store
	composer *composer.Composer
	chatSvc  *chatservice.Service
	previews *media.PreviewRegistry
	views    *view.Renderer
	logger   *zap.Logger
}

// New 创建聊天处理器
func New(sessions *session.Store, comp *composer.Composer, chatSvc *chatservice.Service, previews *media.PreviewRegistry, views *view.Renderer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		sessions: sessions,
		composer: comp,
		chatSvc:  chatSvc,
		previews: previews,
		views:    views,
		logger:   logger,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleChatPage)
	r.Get("/state", h.handleState)

	r.Route("/sessions", func(sr chi.Router) {
		sr.Post("/", h.handleCreateSession)
		sr.Post("/{sessionID}/select", h.handleSelectSession)
		sr.Post("/{sessionID}/rename", h.handleRenameSession)
		sr.Post("/{sessionID}/delete", h.handleDeleteSession)
		sr.Get("/{sessionID}/export", h.handleExportSession)
	})

	r.Route("/composer", func(cr chi.Router) {
		cr.Post("/text", h.handleSetText)
		cr.Post("/attachments", h.handleAddAttachments)
		cr.Post("/attachments/{index}/remove", h.handleRemoveAttachment)
		cr.Post("/send", h.handleSend)
	})

	r.Get(media.PreviewPathPrefix+"{previewID}", h.handlePreview)
}

// SessionItem 侧边栏中的一项
type SessionItem struct {
	ID      string
	Title   string
	Count   int
	Current bool
}

// Content 聊天页面的模板数据
type Content struct {
	Sessions      []SessionItem
	Current       *chat.Session
	Loading       bool
	Composer      composer.View
	ExportFormats []string
}

// StateResponse 是 GET /state 的响应体
type StateResponse struct {
	session.Snapshot
	Composer composer.View `json:"composer"`
}

// handleChatPage 渲染聊天页面，首次访问时自动创建欢迎会话
func (h *Handler) handleChatPage(w http.ResponseWriter, r *http.Request) {
	h.chatSvc.EnsureSession()
	h.views.Render(w, r, http.StatusOK, view.PageChat, view.Page{
		Title:   "Chat",
		Content: h.content(),
	})
}

func (h *Handler) content() Content {
	snap := h.sessions.Snapshot()
	items := make([]SessionItem, 0, len(snap.Sessions))
	for _, s := range snap.Sessions {
		items = append(items, SessionItem{
			ID:      s.ID,
			Title:   s.Title,
			Count:   len(s.Messages),
			Current: s.ID == snap.CurrentID,
		})
	}

	c := Content{
		Sessions:      items,
		Loading:       snap.Loading,
		Composer:      h.composer.View(),
		ExportFormats: export.Formats,
	}
	if current, ok := snap.Current(); ok {
		c.Current = &current
	}
	return c
}

// handleState 返回会话与输入框的完整快照
func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, StateResponse{
		Snapshot: h.sessions.Snapshot(),
		Composer: h.composer.View(),
	})
}

// handleCreateSession 新建会话
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id := h.sessions.CreateSession(r.FormValue("title"))
	utils.Finish(w, r, http.StatusCreated, map[string]string{"id": id})
}

// handleSelectSession 切换当前会话
func (h *Handler) handleSelectSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := h.sessions.SetCurrentSession(id); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			utils.Fail(w, r, http.StatusNotFound, err.Error())
			return
		}
		utils.Fail(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	utils.Finish(w, r, http.StatusOK, map[string]string{"currentSessionId": id})
}

// handleRenameSession 重命名会话，空标题或未知会话静默忽略
func (h *Handler) handleRenameSession(w http.ResponseWriter, r *http.Request) {
	applied := h.sessions.RenameSession(chi.URLParam(r, "sessionID"), r.FormValue("title"))
	utils.Finish(w, r, http.StatusOK, map[string]bool{"ok": applied})
}

// handleDeleteSession 删除会话并释放其附件预览
func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	removed := h.chatSvc.DeleteSession(chi.URLParam(r, "sessionID"))
	utils.Finish(w, r, http.StatusOK, map[string]bool{"ok": removed})
}

// handleExportSession 下载会话记录
func (h *Handler) handleExportSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessions.Session(chi.URLParam(r, "sessionID"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, session.ErrSessionNotFound.Error())
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "md"
	}
	exporter, err := export.NewExporter(format)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", exporter.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(sess, exporter)+`"`)
	if err := exporter.Export(sess, w); err != nil {
		h.logger.Error("failed to export session", zap.String("session_id", sess.ID), zap.Error(err))
	}
}

// handleSetText 同步输入框文本
func (h *Handler) handleSetText(w http.ResponseWriter, r *http.Request) {
	h.composer.SetText(r.FormValue("text"))
	utils.Finish(w, r, http.StatusOK, map[string]bool{"canSend": h.composer.CanSend()})
}

// handleAddAttachments 接收一个或多个附件
func (h *Handler) handleAddAttachments(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		utils.Fail(w, r, http.StatusBadRequest, "failed to parse multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		utils.Fail(w, r, http.StatusBadRequest, "files field is required")
		return
	}

	added := make([]composer.AttachmentView, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			utils.Fail(w, r, http.StatusBadRequest, "failed to read "+header.Filename)
			return
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			utils.Fail(w, r, http.StatusBadRequest, "failed to read "+header.Filename)
			return
		}

		contentType := header.Header.Get("Content-Type")
		if contentType == "" {
			contentType = http.DetectContentType(data)
		}
		added = append(added, h.composer.AddFile(header.Filename, contentType, data))
	}

	h.logger.Debug("attachments added", zap.Int("count", len(added)))
	utils.Finish(w, r, http.StatusCreated, added)
}

// handleRemoveAttachment 移除一个附件
func (h *Handler) handleRemoveAttachment(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		utils.Fail(w, r, http.StatusBadRequest, "invalid attachment index")
		return
	}
	if err := h.composer.RemoveAttachment(index); err != nil {
		utils.Fail(w, r, http.StatusNotFound, err.Error())
		return
	}
	utils.Finish(w, r, http.StatusOK, map[string]bool{"ok": true})
}

// handleSend 发送输入框内容并等待后端回复
func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		utils.Fail(w, r, http.StatusBadRequest, "invalid form")
		return
	}
	if _, ok := r.PostForm["message"]; ok {
		h.composer.SetText(r.PostForm.Get("message"))
	}

	// 浏览器离开页面时回复仍需写入会话
	ctx := context.WithoutCancel(r.Context())
	err := h.chatSvc.Submit(ctx)
	switch {
	case err == nil:
		utils.Finish(w, r, http.StatusOK, map[string]bool{"ok": true})
	case errors.Is(err, chatservice.ErrNoCurrentSession):
		utils.Fail(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, chatservice.ErrNothingToSend):
		utils.Fail(w, r, http.StatusBadRequest, err.Error())
	default:
		utils.Fail(w, r, http.StatusBadGateway, "failed to send message")
	}
}

// handlePreview 提供附件的本地预览
func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	blob, err := h.previews.Open(chi.URLParam(r, "previewID"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	contentType := blob.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	// 上传内容不可信：禁止嗅探并放入沙箱，非图片一律作为下载
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "sandbox")
	if !inlinePreview(contentType) {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": blob.Name}))
	}
	_, _ = w.Write(blob.Data)
}

// inlinePreview 只有位图可以内联显示，SVG可携带脚本
func inlinePreview(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "image/") && mediaType != "image/svg+xml"
}
