package media

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// PreviewPathPrefix is the URL path under which previews are served.
const PreviewPathPrefix = "/previews/"

var ErrPreviewReleased = errors.New("preview released")

// Blob is a retained in-memory file body.
type Blob struct {
	Name        string
	ContentType string
	Data        []byte
}

// PreviewRegistry hands out short-lived local URLs for in-memory file bodies,
// the way a browser hands out object URLs. Every acquired Preview must be
// released; released ids stop resolving.
type PreviewRegistry struct {
	mu    sync.RWMutex
	blobs map[string]Blob
}

// NewPreviewRegistry returns an empty registry.
func NewPreviewRegistry() *PreviewRegistry {
	return &PreviewRegistry{blobs: make(map[string]Blob)}
}

// Acquire registers blob and returns the handle owning it.
func (r *PreviewRegistry) Acquire(blob Blob) *Preview {
	id := uuid.NewString()

	r.mu.Lock()
	r.blobs[id] = blob
	r.mu.Unlock()

	return &Preview{id: id, registry: r}
}

// Open resolves a preview id.
func (r *PreviewRegistry) Open(id string) (Blob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	blob, ok := r.blobs[id]
	if !ok {
		return Blob{}, ErrPreviewReleased
	}
	return blob, nil
}

// Live reports how many previews are currently held.
func (r *PreviewRegistry) Live() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.blobs)
}

func (r *PreviewRegistry) release(id string) {
	r.mu.Lock()
	delete(r.blobs, id)
	r.mu.Unlock()
}

// Preview is a handle on one registered blob.
type Preview struct {
	id       string
	registry *PreviewRegistry
	once     sync.Once
}

// ID returns the registry key.
func (p *Preview) ID() string {
	return p.id
}

// URL returns the local path the blob is served from.
func (p *Preview) URL() string {
	return PreviewPathPrefix + p.id
}

// Release drops the blob. Safe to call more than once.
func (p *Preview) Release() {
	if p == nil {
		return
	}
	p.once.Do(func() {
		p.registry.release(p.id)
	})
}

// ReleaseAll releases every handle in previews.
func ReleaseAll(previews []*Preview) {
	for _, p := range previews {
		p.Release()
	}
}
