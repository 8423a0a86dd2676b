package session

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/taporibrain/internal/model/chat"
)

const (
	// DefaultTitle names sessions created without an explicit title.
	DefaultTitle = "New Chat"
	// WelcomeTitle names the session created when the chat page opens empty.
	WelcomeTitle = "Welcome Chat"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrMessageNotFound = errors.New("message not found")
)

// Snapshot is an immutable view of the store handed to observers.
type Snapshot struct {
	Sessions  []chat.Session `json:"sessions"`
	CurrentID string         `json:"currentSessionId"`
	Loading   bool           `json:"isLoading"`
	Version   uint64         `json:"version"`
}

// Current returns the selected session of the snapshot.
func (s Snapshot) Current() (chat.Session, bool) {
	for _, item := range s.Sessions {
		if item.ID == s.CurrentID {
			return item, true
		}
	}
	return chat.Session{}, false
}

// Observer receives a snapshot after every mutation.
type Observer func(Snapshot)

// Store owns every chat session and the current selection. Sessions are kept
// newest first and live only in memory.
type Store struct {
	mu        sync.RWMutex
	sessions  []*chat.Session
	currentID string
	loading   bool
	version   uint64

	now       func() time.Time
	observers map[int]Observer
	nextObs   int
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		now:       time.Now,
		observers: make(map[int]Observer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn Observer) func() {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

// CreateSession inserts a new session at the front and selects it.
func (s *Store) CreateSession(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultTitle
	}

	now := s.now()
	created := &chat.Session{
		ID:        uuid.NewString(),
		Title:     title,
		Messages:  make([]chat.Message, 0, 16),
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.sessions = append([]*chat.Session{created}, s.sessions...)
	s.currentID = created.ID
	s.commitLocked()
	return created.ID
}

// EnsureSession creates a session titled title when the store is empty and
// reports the current session id either way.
func (s *Store) EnsureSession(title string) string {
	s.mu.RLock()
	empty := len(s.sessions) == 0
	current := s.currentID
	s.mu.RUnlock()

	if empty {
		return s.CreateSession(title)
	}
	return current
}

// DeleteSession removes the session if present. Deleting the current session
// selects the first remaining one, or nothing when the store becomes empty.
func (s *Store) DeleteSession(id string) bool {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}

	s.sessions = slices.Delete(s.sessions, idx, idx+1)
	if s.currentID == id {
		s.currentID = ""
		if len(s.sessions) > 0 {
			s.currentID = s.sessions[0].ID
		}
	}
	s.commitLocked()
	return true
}

// RenameSession sets a new title. Blank titles and unknown ids are ignored.
func (s *Store) RenameSession(id, title string) bool {
	title = strings.TrimSpace(title)
	if title == "" {
		return false
	}

	s.mu.Lock()
	target := s.findLocked(id)
	if target == nil {
		s.mu.Unlock()
		return false
	}
	target.Title = title
	s.touchLocked(target)
	s.commitLocked()
	return true
}

// SetCurrentSession selects an existing session.
func (s *Store) SetCurrentSession(id string) error {
	s.mu.Lock()
	if s.findLocked(id) == nil {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	s.currentID = id
	s.commitLocked()
	return nil
}

// AddMessage appends a message built from draft to the session.
func (s *Store) AddMessage(sessionID string, draft chat.Draft) (chat.Message, error) {
	s.mu.Lock()
	target := s.findLocked(sessionID)
	if target == nil {
		s.mu.Unlock()
		return chat.Message{}, ErrSessionNotFound
	}

	msg := chat.Message{
		ID:          uuid.NewString(),
		Role:        draft.Role,
		Content:     draft.Content,
		Timestamp:   s.now(),
		Attachments: draft.Attachments,
		Emotions:    draft.Emotions,
		Agent:       draft.Agent,
	}.Clone()

	target.Messages = append(target.Messages, msg)
	s.touchLocked(target)
	s.commitLocked()
	return msg.Clone(), nil
}

// UpdateMessage merges patch into an existing message.
func (s *Store) UpdateMessage(sessionID, messageID string, patch chat.Patch) error {
	s.mu.Lock()
	target := s.findLocked(sessionID)
	if target == nil {
		s.mu.Unlock()
		return ErrSessionNotFound
	}

	for i := range target.Messages {
		if target.Messages[i].ID != messageID {
			continue
		}
		patch.Apply(&target.Messages[i])
		s.touchLocked(target)
		s.commitLocked()
		return nil
	}

	s.mu.Unlock()
	return ErrMessageNotFound
}

// SetLoading toggles the page level busy flag.
func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	if s.loading == loading {
		s.mu.Unlock()
		return
	}
	s.loading = loading
	s.commitLocked()
}

// Loading reports the busy flag.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// CurrentID returns the selected session id, empty when nothing is selected.
func (s *Store) CurrentID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentID
}

// CurrentSession returns a copy of the selected session.
func (s *Store) CurrentSession() (chat.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentID == "" {
		return chat.Session{}, false
	}
	target := s.findLocked(s.currentID)
	if target == nil {
		return chat.Session{}, false
	}
	return target.Clone(), true
}

// Session returns a copy of the session with the given id.
func (s *Store) Session(id string) (chat.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	target := s.findLocked(id)
	if target == nil {
		return chat.Session{}, false
	}
	return target.Clone(), true
}

// Sessions returns copies of all sessions, newest first.
func (s *Store) Sessions() []chat.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cloneLocked()
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) indexLocked(id string) int {
	for i, item := range s.sessions {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) findLocked(id string) *chat.Session {
	if idx := s.indexLocked(id); idx >= 0 {
		return s.sessions[idx]
	}
	return nil
}

// touchLocked bumps UpdatedAt without ever moving it backwards.
func (s *Store) touchLocked(target *chat.Session) {
	now := s.now()
	if now.Before(target.UpdatedAt) {
		return
	}
	target.UpdatedAt = now
}

func (s *Store) cloneLocked() []chat.Session {
	out := make([]chat.Session, len(s.sessions))
	for i, item := range s.sessions {
		out[i] = item.Clone()
	}
	return out
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Sessions:  s.cloneLocked(),
		CurrentID: s.currentID,
		Loading:   s.loading,
		Version:   s.version,
	}
}

// commitLocked bumps the version, releases the lock and notifies observers
// with the state produced by the mutation.
func (s *Store) commitLocked() {
	s.version++
	snap := s.snapshotLocked()
	observers := make([]Observer, 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
}
