package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrPermissionDenied = errors.New("microphone permission denied")
	ErrStreamClosed     = errors.New("audio stream closed")
)

// Device grants access to a microphone.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// DeviceFunc adapts a function to Device.
type DeviceFunc func(ctx context.Context) (Stream, error)

// Open implements Device.
func (f DeviceFunc) Open(ctx context.Context) (Stream, error) {
	return f(ctx)
}

// Stream is an open microphone capture. Close must always be called and
// releases the microphone.
type Stream interface {
	Supports(mimeType string) bool
	Start(mimeType string, sink func(chunk []byte)) error
	Stop() error
	Close() error
}

// Audio is a finished recording ready for upload.
type Audio struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size returns the number of audio bytes.
func (a Audio) Size() int64 {
	return int64(len(a.Data))
}

// Assemble concatenates chunks into one named recording.
func Assemble(mimeType string, chunks [][]byte) Audio {
	var buf bytes.Buffer
	for _, chunk := range chunks {
		buf.Write(chunk)
	}
	return Audio{
		Name:        fmt.Sprintf("voice-message.%s", Extension(mimeType)),
		ContentType: mimeType,
		Data:        buf.Bytes(),
	}
}

// ChunkStream is a Stream fed from outside the process, for instance by a
// browser pushing MediaRecorder chunks over a websocket.
type ChunkStream struct {
	mu        sync.Mutex
	formats   map[string]bool
	sink      func([]byte)
	mimeType  string
	recording bool
	closed    bool
	onClose   func()
}

// NewChunkStream declares the formats the remote recorder supports. onClose
// runs once when the stream is closed and may be nil.
func NewChunkStream(formats []string, onClose func()) *ChunkStream {
	set := make(map[string]bool, len(formats))
	for _, f := range formats {
		set[f] = true
	}
	return &ChunkStream{formats: set, onClose: onClose}
}

// Supports implements Stream.
func (s *ChunkStream) Supports(mimeType string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.formats[mimeType]
}

// Start implements Stream.
func (s *ChunkStream) Start(mimeType string, sink func([]byte)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	s.mimeType = mimeType
	s.sink = sink
	s.recording = true
	return nil
}

// MimeType returns the format the stream was started with.
func (s *ChunkStream) MimeType() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mimeType
}

// Push delivers a chunk while recording; empty chunks are dropped.
func (s *ChunkStream) Push(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	s.mu.Lock()
	sink := s.sink
	recording := s.recording
	s.mu.Unlock()

	if !recording || sink == nil {
		return
	}
	sink(append([]byte(nil), chunk...))
}

// Stop implements Stream.
func (s *ChunkStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recording = false
	return nil
}

// Close implements Stream.
func (s *ChunkStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.recording = false
	onClose := s.onClose
	s.mu.Unlock()

	if onClose != nil {
		onClose()
	}
	return nil
}

// Closed reports whether the microphone has been released.
func (s *ChunkStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
