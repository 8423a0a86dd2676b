// Package live pushes store changes to connected browsers over a websocket
// and receives microphone chunks and appearance changes from them.
package live

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Event types sent to the browser.
const (
	EventState         = "state"
	EventComposer      = "composer"
	EventTheme         = "theme"
	EventToast         = "toast"
	EventRecordStarted = "record.started"
	EventRecordFailed  = "record.failed"
)

// Event is one outbound websocket message.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// sendBuffer bounds how far a client may fall behind before it is dropped.
const sendBuffer = 64

type peer struct {
	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newPeer() *peer {
	return &peer{send: make(chan []byte, sendBuffer)}
}

// push queues payload without blocking. It reports false once the peer is
// closed, including when this push found its buffer full.
func (p *peer) push(payload []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.send <- payload:
		return true
	default:
		p.closed = true
		close(p.send)
		return false
	}
}

func (p *peer) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.send)
	}
}

// Hub fans events out to every connected peer.
type Hub struct {
	mu     sync.RWMutex
	peers  map[*peer]struct{}
	logger *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{peers: make(map[*peer]struct{}), logger: logger}
}

// Broadcast sends ev to all peers. Peers whose buffers are full are dropped.
func (h *Hub) Broadcast(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to encode event", zap.String("type", ev.Type), zap.Error(err))
		return
	}

	h.mu.RLock()
	peers := make([]*peer, 0, len(h.peers))
	for p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.RUnlock()

	for _, p := range peers {
		if !p.push(payload) {
			h.logger.Warn("dropping slow websocket client", zap.String("event", ev.Type))
			h.remove(p)
		}
	}
}

// Clients reports how many peers are connected.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

func (h *Hub) add(p *peer) {
	h.mu.Lock()
	h.peers[p] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(p *peer) {
	h.mu.Lock()
	delete(h.peers, p)
	h.mu.Unlock()
	p.close()
}

func (h *Hub) sendTo(p *peer, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to encode event", zap.String("type", ev.Type), zap.Error(err))
		return
	}
	if !p.push(payload) {
		h.remove(p)
	}
}
