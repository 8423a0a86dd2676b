// Package notify carries transient user notifications (toasts).
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Variant selects how a toast is styled.
type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Toast is one transient notification.
type Toast struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Variant     Variant   `json:"variant"`
	CreatedAt   time.Time `json:"createdAt"`
}

const defaultHistory = 20

// Feed fans toasts out to subscribers and keeps a short history for
// clients that connect late.
type Feed struct {
	mu          sync.Mutex
	recent      []Toast
	limit       int
	subscribers map[int]func(Toast)
	next        int
}

// NewFeed returns a feed remembering the last limit toasts.
func NewFeed(limit int) *Feed {
	if limit <= 0 {
		limit = defaultHistory
	}
	return &Feed{limit: limit, subscribers: make(map[int]func(Toast))}
}

// Info publishes a default toast.
func (f *Feed) Info(title, description string) Toast {
	return f.Push(Toast{Title: title, Description: description, Variant: VariantDefault})
}

// Error publishes a destructive toast.
func (f *Feed) Error(title, description string) Toast {
	return f.Push(Toast{Title: title, Description: description, Variant: VariantDestructive})
}

// Push fills in id and time, records and publishes t.
func (f *Feed) Push(t Toast) Toast {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if t.Variant == "" {
		t.Variant = VariantDefault
	}

	f.mu.Lock()
	f.recent = append(f.recent, t)
	if len(f.recent) > f.limit {
		f.recent = f.recent[len(f.recent)-f.limit:]
	}
	subscribers := make([]func(Toast), 0, len(f.subscribers))
	for _, fn := range f.subscribers {
		subscribers = append(subscribers, fn)
	}
	f.mu.Unlock()

	for _, fn := range subscribers {
		fn(t)
	}
	return t
}

// Recent returns the remembered toasts, oldest first.
func (f *Feed) Recent() []Toast {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Toast(nil), f.recent...)
}

// Subscribe registers fn and returns its remover.
func (f *Feed) Subscribe(fn func(Toast)) func() {
	f.mu.Lock()
	id := f.next
	f.next++
	f.subscribers[id] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.subscribers, id)
		f.mu.Unlock()
	}
}
