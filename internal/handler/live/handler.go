package live

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/taporibrain/internal/appearance"
	"github.com/zhouzirui/taporibrain/internal/media"
	"github.com/zhouzirui/taporibrain/internal/service/composer"
	"github.com/zhouzirui/taporibrain/internal/service/notify"
	"github.com/zhouzirui/taporibrain/internal/service/session"
	"github.com/zhouzirui/taporibrain/internal/service/theme"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 1 << 20

	// 重连时补发最近这段时间内的提示
	toastReplayWindow = 4 * time.Second
)

// Config 实时通道依赖的各个存储
type Config struct {
	Hub        *Hub
	Sessions   *session.Store
	Composer   *composer.Composer
	Themes     *theme.Store
	Toasts     *notify.Feed
	Appearance *appearance.Switch
	Logger     *zap.Logger
}

// Handler WebSocket处理器
type Handler struct {
	hub        *Hub
	sessions   *session.Store
	composer   *composer.Composer
	themes     *theme.Store
	toasts     *notify.Feed
	appearance *appearance.Switch
	logger     *zap.Logger
	upgrader   websocket.Upgrader

	unsubscribe []func()
}

// New 创建处理器并开始把存储变化广播给浏览器
func New(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Hub == nil {
		cfg.Hub = NewHub(cfg.Logger)
	}
	h := &Handler{
		hub:        cfg.Hub,
		sessions:   cfg.Sessions,
		composer:   cfg.Composer,
		themes:     cfg.Themes,
		toasts:     cfg.Toasts,
		appearance: cfg.Appearance,
		logger:     cfg.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	h.follow()
	return h
}

// stateEvent 只携带浏览器判断是否需要刷新的字段
type stateEvent struct {
	Version   uint64 `json:"version"`
	CurrentID string `json:"currentSessionId"`
	Loading   bool   `json:"isLoading"`
}

func (h *Handler) follow() {
	if h.sessions != nil {
		h.unsubscribe = append(h.unsubscribe, h.sessions.Subscribe(func(s session.Snapshot) {
			h.hub.Broadcast(Event{Type: EventState, Data: stateEvent{Version: s.Version, CurrentID: s.CurrentID, Loading: s.Loading}})
		}))
	}
	if h.composer != nil {
		h.unsubscribe = append(h.unsubscribe, h.composer.Subscribe(func(v composer.View) {
			h.hub.Broadcast(Event{Type: EventComposer, Data: v})
		}))
	}
	if h.themes != nil {
		h.unsubscribe = append(h.unsubscribe, h.themes.Subscribe(func(s theme.State) {
			h.hub.Broadcast(Event{Type: EventTheme, Data: s})
		}))
	}
	if h.toasts != nil {
		h.unsubscribe = append(h.unsubscribe, h.toasts.Subscribe(func(t notify.Toast) {
			h.hub.Broadcast(Event{Type: EventToast, Data: t})
		}))
	}
}

// Close 停止广播
func (h *Handler) Close() {
	for _, fn := range h.unsubscribe {
		fn()
	}
	h.unsubscribe = nil
}

// Hub 返回广播中心
func (h *Handler) Hub() *Hub {
	return h.hub
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type    string   `json:"type"`
	Granted bool     `json:"granted"`
	Formats []string `json:"formats"`
	Error   string   `json:"error"`
	Dark    *bool    `json:"dark"`
}

// connection 单个浏览器连接的录音状态，只在读循环中访问
type connection struct {
	peer   *peer
	stream *media.ChunkStream
}

// handleWebSocket 处理WebSocket连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &connection{peer: newPeer()}
	h.hub.add(c.peer)
	defer func() {
		h.hub.remove(c.peer)
		if c.stream != nil && !c.stream.Closed() {
			h.composer.CancelRecording()
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(ctx, conn, c.peer)
	}()
	defer func() {
		cancel()
		<-done
	}()

	h.greet(c.peer)
	h.logger.Debug("websocket connected", zap.String("remote", r.RemoteAddr))

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		if kind == websocket.BinaryMessage {
			if c.stream != nil {
				c.stream.Push(data)
			}
			continue
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Warn("invalid websocket message", zap.Error(err))
			continue
		}
		h.handleMessage(ctx, c, msg)
	}
}

// greet 新连接先收到当前主题与尚未过期的提示
func (h *Handler) greet(p *peer) {
	if h.themes != nil {
		h.hub.sendTo(p, Event{Type: EventTheme, Data: h.themes.State()})
	}
	if h.toasts == nil {
		return
	}
	cutoff := time.Now().Add(-toastReplayWindow)
	for _, t := range h.toasts.Recent() {
		if t.CreatedAt.After(cutoff) {
			h.hub.sendTo(p, Event{Type: EventToast, Data: t})
		}
	}
}

func (h *Handler) handleMessage(ctx context.Context, c *connection, msg inboundMessage) {
	switch msg.Type {
	case "record.start":
		h.startRecording(ctx, c, msg)
	case "record.stop":
		h.stopRecording(ctx, c)
	case "appearance":
		if h.appearance != nil && msg.Dark != nil {
			h.appearance.Set(*msg.Dark)
		}
	default:
		h.logger.Debug("unknown websocket message", zap.String("type", msg.Type))
	}
}

// startRecording 浏览器已完成麦克风授权请求，这里协商录音格式
func (h *Handler) startRecording(ctx context.Context, c *connection, msg inboundMessage) {
	if c.stream != nil && !c.stream.Closed() {
		return
	}

	stream := media.NewChunkStream(msg.Formats, nil)
	device := media.DeviceFunc(func(context.Context) (media.Stream, error) {
		if !msg.Granted {
			return nil, fmt.Errorf("%w: %s", media.ErrPermissionDenied, msg.Error)
		}
		return stream, nil
	})

	if !h.composer.StartRecording(ctx, device) {
		_ = stream.Close()
		h.hub.sendTo(c.peer, Event{Type: EventRecordFailed})
		return
	}
	c.stream = stream
	h.hub.sendTo(c.peer, Event{Type: EventRecordStarted, Data: map[string]string{"mimeType": stream.MimeType()}})
}

// stopRecording 松开录音键；上传语音可能较慢，放到独立的goroutine中
func (h *Handler) stopRecording(ctx context.Context, c *connection) {
	stream := c.stream
	c.stream = nil
	if stream == nil || stream.Closed() {
		return
	}

	stopCtx := context.WithoutCancel(ctx)
	go h.composer.StopRecording(stopCtx)
}

// writePump 连接上唯一的写入者，同时负责定期发送ping
func (h *Handler) writePump(ctx context.Context, conn *websocket.Conn, p *peer) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case payload, ok := <-p.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
