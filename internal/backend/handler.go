// Package backend is a development implementation of the remote /api
// contract the web client talks to.
package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/taporibrain/internal/analysis/emotion"
	"github.com/zhouzirui/taporibrain/internal/client"
	"github.com/zhouzirui/taporibrain/internal/model/agent"
	"github.com/zhouzirui/taporibrain/internal/model/chat"
	"github.com/zhouzirui/taporibrain/pkg/utils"
)

const (
	maxUploadSize = 32 << 20
	// activeWindow 最近这段时间内发过消息的客户端算作活跃会话
	activeWindow = 30 * time.Minute
	maxEmotions  = 2
)

// Handler 开发后端的HTTP处理器
type Handler struct {
	agents    agent.Store
	responder Responder
	state     *State
	history   *History
	logger    *zap.Logger
}

// New 创建开发后端处理器
func New(agents agent.Store, responder Responder, state *State, history *History, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if history == nil {
		history = NewHistory()
	}
	return &Handler{
		agents:    agents,
		responder: responder,
		state:     state,
		history:   history,
		logger:    logger,
	}
}

// RegisterRoutes 注册 /api 下的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(api chi.Router) {
		api.Post("/chat/send", h.handleSend)
		api.Post("/chat/voice", h.handleVoice)

		api.Get("/admin/config", h.handleGetConfig)
		api.Post("/admin/config", h.handleSetConfig)
		api.Get("/admin/stats", h.handleStats)
		api.Get("/admin/features", h.handleGetFeatures)
		api.Post("/admin/features", h.handleSetFeature)
		api.Get("/agents", h.handleListAgents)
	})
}

// handleSend 处理文本消息及其附件
func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to parse multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	message := strings.TrimSpace(r.FormValue("message"))
	attachments := collectAttachments(r.MultipartForm)
	if message == "" && len(attachments) == 0 {
		utils.RespondError(w, http.StatusBadRequest, "message or attachment is required")
		return
	}
	if len(attachments) > 0 && !h.state.Feature("file_upload") {
		utils.RespondError(w, http.StatusForbidden, "file uploads are disabled")
		return
	}

	clientKey := clientKey(r)
	selected := h.agents.Select(message, h.state.AgentSwitching())
	reply, err := h.responder.Respond(r.Context(), Request{
		Agent:       selected,
		History:     h.history.Transcript(clientKey),
		Message:     message,
		Attachments: attachments,
	})
	if err != nil {
		h.logger.Error("failed to generate reply", zap.String("agent", selected.ID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to generate reply")
		return
	}

	h.history.Append(clientKey, chat.Message{Role: chat.RoleUser, Content: message})
	h.history.Append(clientKey, chat.Message{Role: chat.RoleAssistant, Content: reply, Agent: selected.Name})

	h.logger.Info("chat reply",
		zap.String("client", clientKey),
		zap.String("agent", selected.ID),
		zap.Int("attachments", len(attachments)),
	)
	utils.RespondJSON(w, http.StatusOK, client.ChatResponse{
		Agent:    selected.Name,
		Response: reply,
		Emotions: emotion.Tags(message, reply, maxEmotions),
	})
}

// handleVoice 接收语音消息，开发后端只做确认
func (h *Handler) handleVoice(w http.ResponseWriter, r *http.Request) {
	if !h.state.Feature("voice_input") {
		utils.RespondError(w, http.StatusForbidden, "voice input is disabled")
		return
	}
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to parse multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		utils.RespondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	audio := headers[0]
	contentType := audio.Header.Get("Content-Type")

	h.history.Append(clientKey(r), chat.Message{Role: chat.RoleUser, Content: "[voice message: " + audio.Filename + "]"})
	h.logger.Info("voice message received",
		zap.String("name", audio.Filename),
		zap.String("content_type", contentType),
		zap.Int64("bytes", audio.Size),
	)
	utils.RespondJSON(w, http.StatusOK, client.VoiceAck{
		OK:      true,
		Message: fmt.Sprintf("Received %d bytes of %s", audio.Size, contentType),
	})
}

type keyValueRequest struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

func decodeKeyValue(r *http.Request) (keyValueRequest, error) {
	var req keyValueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, fmt.Errorf("invalid request body: %w", err)
	}
	req.Key = strings.TrimSpace(req.Key)
	if req.Key == "" {
		return req, errors.New("key is required")
	}
	if len(req.Value) == 0 {
		return req, errors.New("value is required")
	}
	return req, nil
}

func (h *Handler) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.state.Config())
}

// handleSetConfig 更新一项配置
func (h *Handler) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	req, err := decodeKeyValue(r)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var value any
	if err := json.Unmarshal(req.Value, &value); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid value")
		return
	}
	if err := h.state.SetConfig(req.Key, value); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Info("config updated", zap.String("key", req.Key), zap.Any("value", value))
	utils.RespondJSON(w, http.StatusOK, client.Ack{OK: true})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.state.Stats(h.history.Active(activeWindow)))
}

func (h *Handler) handleGetFeatures(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.state.Features())
}

// handleSetFeature 切换功能开关
func (h *Handler) handleSetFeature(w http.ResponseWriter, r *http.Request) {
	req, err := decodeKeyValue(r)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	enabled, err := strconv.ParseBool(strings.Trim(string(req.Value), `"`))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "value must be a boolean")
		return
	}
	h.state.SetFeature(req.Key, enabled)

	h.logger.Info("feature updated", zap.String("key", req.Key), zap.Bool("enabled", enabled))
	utils.RespondJSON(w, http.StatusOK, client.Ack{OK: true})
}

// handleListAgents 列出可路由的助手
func (h *Handler) handleListAgents(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.agents.List())
}

// collectAttachments 按 attachment_0..N 的顺序读取附件元数据
func collectAttachments(form *multipart.Form) []Attachment {
	if form == nil {
		return nil
	}

	fields := make([]string, 0, len(form.File))
	for field := range form.File {
		if strings.HasPrefix(field, "attachment_") {
			fields = append(fields, field)
		}
	}
	sort.Slice(fields, func(i, j int) bool {
		return attachmentIndex(fields[i]) < attachmentIndex(fields[j])
	})

	attachments := make([]Attachment, 0, len(fields))
	for _, field := range fields {
		for _, header := range form.File[field] {
			attachments = append(attachments, Attachment{
				Name:        header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Size:        header.Size,
			})
		}
	}
	return attachments
}

func attachmentIndex(field string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(field, "attachment_"))
	if err != nil {
		return -1
	}
	return n
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
