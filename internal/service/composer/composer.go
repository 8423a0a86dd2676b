package composer

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/zhouzirui/taporibrain/internal/media"
	"github.com/zhouzirui/taporibrain/internal/model/chat"
)

var ErrAttachmentIndex = errors.New("attachment index out of range")

// State is the recording sub-state.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
)

// File is one attachment body handed to the caller on send.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Draft is a finished message collected by the composer.
type Draft struct {
	Text  string
	Files []File
}

// VoiceHandler receives a finished recording.
type VoiceHandler func(ctx context.Context, audio media.Audio)

// AttachmentView describes a pending attachment for rendering.
type AttachmentView struct {
	Index      int                 `json:"index"`
	Name       string              `json:"name"`
	Kind       chat.AttachmentKind `json:"type"`
	Size       int64               `json:"size"`
	PreviewURL string              `json:"preview,omitempty"`
}

// View is the composer state exposed to the UI.
type View struct {
	Text        string           `json:"text"`
	Attachments []AttachmentView `json:"attachments"`
	Recording   State            `json:"recording"`
	Disabled    bool             `json:"disabled"`
	CanSend     bool             `json:"canSend"`
}

type attachment struct {
	file    File
	kind    chat.AttachmentKind
	preview *media.Preview
}

// Config wires the composer's collaborators.
type Config struct {
	Previews *media.PreviewRegistry
	OnVoice  VoiceHandler
	Formats  media.FormatPreference
	Logger   *zap.Logger
}

// Composer buffers text, attachments and an in-progress voice recording
// until the user sends them.
type Composer struct {
	mu          sync.Mutex
	text        string
	attachments []*attachment
	disabled    bool
	state       State
	stream      media.Stream
	mimeType    string

	chunkMu sync.Mutex
	chunks  [][]byte
	take    uint64

	previews *media.PreviewRegistry
	onVoice  VoiceHandler
	formats  media.FormatPreference
	logger   *zap.Logger

	obsMu     sync.Mutex
	observers map[int]func(View)
	nextObs   int
}

// New creates an idle, empty composer.
func New(cfg Config) *Composer {
	if cfg.Previews == nil {
		cfg.Previews = media.NewPreviewRegistry()
	}
	if cfg.Formats.Default == "" {
		cfg.Formats = media.DefaultFormats
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Composer{
		state:     StateIdle,
		previews:  cfg.Previews,
		onVoice:   cfg.OnVoice,
		formats:   cfg.Formats,
		logger:    cfg.Logger,
		observers: make(map[int]func(View)),
	}
}

// Subscribe registers fn for view changes and returns its remover.
func (c *Composer) Subscribe(fn func(View)) func() {
	c.obsMu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.obsMu.Unlock()

	return func() {
		c.obsMu.Lock()
		delete(c.observers, id)
		c.obsMu.Unlock()
	}
}

// SetText replaces the text buffer.
func (c *Composer) SetText(text string) {
	c.mu.Lock()
	c.text = text
	c.mu.Unlock()
	c.notify()
}

// Text returns the raw text buffer.
func (c *Composer) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// SetDisabled marks the composer as externally disabled, e.g. while a send
// is in flight.
func (c *Composer) SetDisabled(disabled bool) {
	c.mu.Lock()
	if c.disabled == disabled {
		c.mu.Unlock()
		return
	}
	c.disabled = disabled
	c.mu.Unlock()
	c.notify()
}

// AddFile appends an attachment. Images get a preview handle immediately.
func (c *Composer) AddFile(name, contentType string, data []byte) AttachmentView {
	att := &attachment{
		file: File{Name: name, ContentType: contentType, Data: data},
		kind: chat.KindForContentType(contentType),
	}
	if att.kind == chat.AttachmentImage {
		att.preview = c.previews.Acquire(media.Blob{Name: name, ContentType: contentType, Data: data})
	}

	c.mu.Lock()
	c.attachments = append(c.attachments, att)
	view := viewOf(len(c.attachments)-1, att)
	c.mu.Unlock()

	c.notify()
	return view
}

// RemoveAttachment drops the attachment at index and releases its preview.
func (c *Composer) RemoveAttachment(index int) error {
	c.mu.Lock()
	if index < 0 || index >= len(c.attachments) {
		c.mu.Unlock()
		return ErrAttachmentIndex
	}
	removed := c.attachments[index]
	c.attachments = append(c.attachments[:index], c.attachments[index+1:]...)
	c.mu.Unlock()

	removed.preview.Release()
	c.notify()
	return nil
}

// Attachments lists the pending attachments in order.
func (c *Composer) Attachments() []AttachmentView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attachmentViewsLocked()
}

// CanSend reports whether Send would produce a draft.
func (c *Composer) CanSend() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canSendLocked()
}

// Send hands back the trimmed text and files, then clears the buffers and
// releases every preview.
func (c *Composer) Send() (Draft, bool) {
	c.mu.Lock()
	if !c.canSendLocked() {
		c.mu.Unlock()
		return Draft{}, false
	}

	draft := Draft{Text: strings.TrimSpace(c.text)}
	previews := make([]*media.Preview, 0, len(c.attachments))
	for _, att := range c.attachments {
		draft.Files = append(draft.Files, att.file)
		previews = append(previews, att.preview)
	}
	c.text = ""
	c.attachments = nil
	c.mu.Unlock()

	media.ReleaseAll(previews)
	c.notify()
	return draft, true
}

// Recording returns the recording sub-state.
func (c *Composer) Recording() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// StartRecording is the press half of press-and-hold. It requests the
// microphone from device, picks a container format and starts buffering.
// Failures are logged and leave the composer idle.
func (c *Composer) StartRecording(ctx context.Context, device media.Device) bool {
	c.mu.Lock()
	if c.state == StateRecording || c.disabled {
		c.mu.Unlock()
		return false
	}
	c.mu.Unlock()

	stream, err := device.Open(ctx)
	if err != nil {
		c.logger.Warn("failed to start recording", zap.Error(err))
		return false
	}

	mimeType := media.Negotiate(c.formats, stream.Supports)
	take := c.resetChunks()
	sink := func(chunk []byte) {
		c.chunkMu.Lock()
		defer c.chunkMu.Unlock()
		if c.take == take {
			c.chunks = append(c.chunks, chunk)
		}
	}

	if err := stream.Start(mimeType, sink); err != nil {
		c.logger.Warn("failed to start recording", zap.Error(err))
		_ = stream.Close()
		return false
	}

	c.mu.Lock()
	if c.state == StateRecording {
		c.mu.Unlock()
		_ = stream.Close()
		return false
	}
	c.state = StateRecording
	c.stream = stream
	c.mimeType = mimeType
	c.mu.Unlock()

	c.logger.Debug("recording started", zap.String("mime_type", mimeType))
	c.notify()
	return true
}

// StopRecording is the release half of press-and-hold. The microphone is
// released on every path; the assembled audio goes to the voice handler.
func (c *Composer) StopRecording(ctx context.Context) {
	audio, ok := c.finishRecording()
	if !ok {
		return
	}
	c.notify()

	c.logger.Debug("recording finished",
		zap.String("name", audio.Name),
		zap.Int64("bytes", audio.Size()),
	)
	if c.onVoice != nil {
		c.onVoice(ctx, audio)
	}
}

// CancelRecording releases the microphone and discards whatever was captured.
func (c *Composer) CancelRecording() {
	if _, ok := c.finishRecording(); ok {
		c.logger.Debug("recording cancelled")
		c.notify()
	}
}

// Close releases every held resource without emitting a recording.
func (c *Composer) Close() {
	_, _ = c.finishRecording()

	c.mu.Lock()
	previews := make([]*media.Preview, 0, len(c.attachments))
	for _, att := range c.attachments {
		previews = append(previews, att.preview)
	}
	c.attachments = nil
	c.text = ""
	c.mu.Unlock()

	media.ReleaseAll(previews)
	c.notify()
}

// View returns the current composer view.
func (c *Composer) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return View{
		Text:        c.text,
		Attachments: c.attachmentViewsLocked(),
		Recording:   c.state,
		Disabled:    c.disabled,
		CanSend:     c.canSendLocked(),
	}
}

func (c *Composer) finishRecording() (media.Audio, bool) {
	c.mu.Lock()
	if c.state != StateRecording {
		c.mu.Unlock()
		return media.Audio{}, false
	}
	stream := c.stream
	mimeType := c.mimeType
	c.state = StateIdle
	c.stream = nil
	c.mimeType = ""
	c.mu.Unlock()

	defer func() {
		if err := stream.Close(); err != nil {
			c.logger.Warn("failed to release microphone", zap.Error(err))
		}
	}()
	if err := stream.Stop(); err != nil {
		c.logger.Warn("failed to stop recording", zap.Error(err))
	}

	chunks := c.drainChunks()
	return media.Assemble(mimeType, chunks), true
}

func (c *Composer) resetChunks() uint64 {
	c.chunkMu.Lock()
	defer c.chunkMu.Unlock()
	c.take++
	c.chunks = nil
	return c.take
}

func (c *Composer) drainChunks() [][]byte {
	c.chunkMu.Lock()
	defer c.chunkMu.Unlock()
	chunks := c.chunks
	c.chunks = nil
	c.take++
	return chunks
}

func (c *Composer) canSendLocked() bool {
	hasContent := strings.TrimSpace(c.text) != "" || len(c.attachments) > 0
	return hasContent && !c.disabled
}

func (c *Composer) attachmentViewsLocked() []AttachmentView {
	views := make([]AttachmentView, len(c.attachments))
	for i, att := range c.attachments {
		views[i] = viewOf(i, att)
	}
	return views
}

func viewOf(index int, att *attachment) AttachmentView {
	view := AttachmentView{
		Index: index,
		Name:  att.file.Name,
		Kind:  att.kind,
		Size:  int64(len(att.file.Data)),
	}
	if att.preview != nil {
		view.PreviewURL = att.preview.URL()
	}
	return view
}

func (c *Composer) notify() {
	view := c.View()

	c.obsMu.Lock()
	observers := make([]func(View), 0, len(c.observers))
	for _, fn := range c.observers {
		observers = append(observers, fn)
	}
	c.obsMu.Unlock()

	for _, fn := range observers {
		fn(view)
	}
}
