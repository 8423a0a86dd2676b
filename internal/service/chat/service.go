package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/zhouzirui/taporibrain/internal/client"
	"github.com/zhouzirui/taporibrain/internal/media"
	"github.com/zhouzirui/taporibrain/internal/model/chat"
	"github.com/zhouzirui/taporibrain/internal/service/composer"
	"github.com/zhouzirui/taporibrain/internal/service/notify"
	"github.com/zhouzirui/taporibrain/internal/service/session"
)

// Assistant message written when the backend cannot answer.
const (
	ApologyContent = "Sorry, I encountered an error while processing your message. Please try again."
	SystemAgent    = "System"
)

var (
	ErrNoCurrentSession = errors.New("no current session")
	ErrNothingToSend    = errors.New("nothing to send")
)

// Backend is the part of the API client the chat page needs.
type Backend interface {
	SendMessage(ctx context.Context, message string, attachments []client.Upload) (*client.ChatResponse, error)
	SendVoice(ctx context.Context, audio client.Upload) (*client.VoiceAck, error)
}

// Config wires the service's collaborators.
type Config struct {
	Sessions *session.Store
	Composer *composer.Composer
	Backend  Backend
	Toasts   *notify.Feed
	Previews *media.PreviewRegistry
	Logger   *zap.Logger
}

// Service drives the chat page: it turns composer drafts into backend calls
// and records both sides of the exchange in the session store.
type Service struct {
	sessions *session.Store
	composer *composer.Composer
	backend  Backend
	toasts   *notify.Feed
	previews *media.PreviewRegistry
	logger   *zap.Logger

	// previews of sent attachments, released with their session
	mu    sync.Mutex
	owned map[string][]*media.Preview
}

// NewService builds the chat service.
func NewService(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Toasts == nil {
		cfg.Toasts = notify.NewFeed(0)
	}
	if cfg.Previews == nil {
		cfg.Previews = media.NewPreviewRegistry()
	}
	return &Service{
		sessions: cfg.Sessions,
		composer: cfg.Composer,
		backend:  cfg.Backend,
		toasts:   cfg.Toasts,
		previews: cfg.Previews,
		logger:   cfg.Logger,
		owned:    make(map[string][]*media.Preview),
	}
}

// EnsureSession creates the welcome session when none exists yet.
func (s *Service) EnsureSession() string {
	return s.sessions.EnsureSession(session.WelcomeTitle)
}

// Submit sends whatever the composer holds.
func (s *Service) Submit(ctx context.Context) error {
	if s.sessions.CurrentID() == "" {
		return ErrNoCurrentSession
	}
	draft, ok := s.composer.Send()
	if !ok {
		return ErrNothingToSend
	}
	err := s.SendMessage(ctx, draft)
	if errors.Is(err, session.ErrSessionNotFound) {
		// nothing was recorded, hand the draft back to the composer
		s.composer.SetText(draft.Text)
		for _, f := range draft.Files {
			s.composer.AddFile(f.Name, f.ContentType, f.Data)
		}
	}
	return err
}

// SendMessage records the user's message, asks the backend and records the
// reply. Backend failures become an apology message and an error toast; the
// loading flag is reset on every path.
func (s *Service) SendMessage(ctx context.Context, draft composer.Draft) error {
	sessionID := s.sessions.CurrentID()
	if sessionID == "" {
		return ErrNoCurrentSession
	}

	s.sessions.SetLoading(true)
	s.composer.SetDisabled(true)
	defer func() {
		s.sessions.SetLoading(false)
		s.composer.SetDisabled(false)
	}()

	attachments, uploads, previews := s.prepareAttachments(draft.Files)
	if _, err := s.sessions.AddMessage(sessionID, chat.Draft{
		Role:        chat.RoleUser,
		Content:     draft.Text,
		Attachments: attachments,
	}); err != nil {
		media.ReleaseAll(previews)
		return fmt.Errorf("record user message: %w", err)
	}
	s.adopt(sessionID, previews)

	resp, err := s.backend.SendMessage(ctx, draft.Text, uploads)
	if err != nil {
		s.logger.Error("failed to send message",
			zap.String("session_id", sessionID),
			zap.Int("attachments", len(uploads)),
			zap.Error(err),
		)
		s.record(sessionID, chat.Draft{Role: chat.RoleAssistant, Content: ApologyContent, Agent: SystemAgent})
		s.toasts.Error("Error", "Failed to send message. Please try again.")
		return err
	}

	s.record(sessionID, chat.Draft{
		Role:     chat.RoleAssistant,
		Content:  resp.Response,
		Agent:    resp.Agent,
		Emotions: resp.Emotions,
	})
	s.toasts.Info("Message sent", fmt.Sprintf("%s responded successfully", resp.Agent))
	return nil
}

// SendVoice uploads a finished recording. It matches composer.VoiceHandler.
func (s *Service) SendVoice(ctx context.Context, audio media.Audio) {
	ack, err := s.backend.SendVoice(ctx, client.Upload{
		Name:        audio.Name,
		ContentType: audio.ContentType,
		Data:        audio.Data,
	})
	if err != nil {
		s.logger.Error("failed to send voice message", zap.Int64("bytes", audio.Size()), zap.Error(err))
		s.toasts.Error("Error", "Failed to send voice message")
		return
	}
	if ack.OK {
		s.toasts.Info("Voice message sent", "Your voice message has been processed")
	}
}

// DeleteSession removes a session and releases its attachment previews.
func (s *Service) DeleteSession(id string) bool {
	if !s.sessions.DeleteSession(id) {
		return false
	}
	s.mu.Lock()
	previews := s.owned[id]
	delete(s.owned, id)
	s.mu.Unlock()

	media.ReleaseAll(previews)
	return true
}

// Close releases every preview held for sent attachments.
func (s *Service) Close() {
	s.mu.Lock()
	owned := s.owned
	s.owned = make(map[string][]*media.Preview)
	s.mu.Unlock()

	for _, previews := range owned {
		media.ReleaseAll(previews)
	}
}

func (s *Service) record(sessionID string, draft chat.Draft) {
	if _, err := s.sessions.AddMessage(sessionID, draft); err != nil {
		// the session was deleted while the request was in flight
		s.logger.Warn("dropping reply", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func (s *Service) prepareAttachments(files []composer.File) ([]chat.Attachment, []client.Upload, []*media.Preview) {
	if len(files) == 0 {
		return nil, nil, nil
	}

	attachments := make([]chat.Attachment, 0, len(files))
	uploads := make([]client.Upload, 0, len(files))
	previews := make([]*media.Preview, 0, len(files))
	for _, f := range files {
		preview := s.previews.Acquire(media.Blob{Name: f.Name, ContentType: f.ContentType, Data: f.Data})
		previews = append(previews, preview)
		attachments = append(attachments, chat.Attachment{
			Kind: chat.KindForContentType(f.ContentType),
			Name: f.Name,
			URL:  preview.URL(),
			Size: int64(len(f.Data)),
		})
		uploads = append(uploads, client.Upload{Name: f.Name, ContentType: f.ContentType, Data: f.Data})
	}
	return attachments, uploads, previews
}

// adopt files previews under their session so DeleteSession frees them. A
// session already gone from the store releases them right away.
func (s *Service) adopt(sessionID string, previews []*media.Preview) {
	if len(previews) == 0 {
		return
	}
	s.mu.Lock()
	if _, ok := s.sessions.Session(sessionID); !ok {
		s.mu.Unlock()
		media.ReleaseAll(previews)
		return
	}
	s.owned[sessionID] = append(s.owned[sessionID], previews...)
	s.mu.Unlock()
}
