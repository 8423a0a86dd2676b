package backend

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/taporibrain/internal/model/chat"
)

// historyLimit caps how many messages are kept per conversation.
const historyLimit = 50

type conversation struct {
	messages []chat.Message
	lastSeen time.Time
}

// History keeps a rolling transcript per client. The /api contract carries
// no session identifier, so a conversation is keyed by the caller's address.
type History struct {
	mu            sync.RWMutex
	conversations map[string]*conversation
	now           func() time.Time
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{
		conversations: make(map[string]*conversation),
		now:           time.Now,
	}
}

// Append stores message for client, filling in id and timestamp.
func (h *History) Append(client string, message chat.Message) chat.Message {
	now := h.now()
	message.ID = uuid.NewString()
	if message.Timestamp.IsZero() {
		message.Timestamp = now
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	conv, ok := h.conversations[client]
	if !ok {
		conv = &conversation{messages: make([]chat.Message, 0, 16)}
		h.conversations[client] = conv
	}
	conv.messages = append(conv.messages, message)
	if len(conv.messages) > historyLimit {
		conv.messages = append([]chat.Message(nil), conv.messages[len(conv.messages)-historyLimit:]...)
	}
	conv.lastSeen = now
	return message
}

// Transcript returns a copy of the messages stored for client.
func (h *History) Transcript(client string) []chat.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conv, ok := h.conversations[client]
	if !ok {
		return nil
	}
	copied := make([]chat.Message, len(conv.messages))
	copy(copied, conv.messages)
	return copied
}

// Active counts clients seen within window.
func (h *History) Active(window time.Duration) int {
	cutoff := h.now().Add(-window)

	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, conv := range h.conversations {
		if conv.lastSeen.After(cutoff) {
			count++
		}
	}
	return count
}
