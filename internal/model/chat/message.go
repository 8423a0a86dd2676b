package chat

import (
	"strings"
	"time"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// AttachmentKind separates inline-previewable images from other files.
type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentFile  AttachmentKind = "file"
)

// KindForContentType classifies an upload by its declared media type.
func KindForContentType(contentType string) AttachmentKind {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/") {
		return AttachmentImage
	}
	return AttachmentFile
}

// Attachment references a file carried by a message.
type Attachment struct {
	Kind AttachmentKind `json:"type" yaml:"type"`
	Name string         `json:"name" yaml:"name"`
	URL  string         `json:"url" yaml:"url"`
	Size int64          `json:"size,omitempty" yaml:"size,omitempty"`
}

// Message is one turn of a conversation.
type Message struct {
	ID          string       `json:"id" yaml:"id"`
	Role        Role         `json:"role" yaml:"role"`
	Content     string       `json:"content" yaml:"content"`
	Timestamp   time.Time    `json:"timestamp" yaml:"timestamp"`
	Attachments []Attachment `json:"attachments,omitempty" yaml:"attachments,omitempty"`
	Emotions    []string     `json:"emotions,omitempty" yaml:"emotions,omitempty"`
	Agent       string       `json:"agent,omitempty" yaml:"agent,omitempty"`
}

// Draft carries the caller supplied fields of a message; the store fills in
// the identifier and timestamp on append.
type Draft struct {
	Role        Role
	Content     string
	Attachments []Attachment
	Emotions    []string
	Agent       string
}

// Patch lists the fields UpdateMessage may overwrite. Nil fields are kept.
type Patch struct {
	Content     *string
	Attachments []Attachment
	Emotions    []string
	Agent       *string
}

// Apply merges the non-nil patch fields into m.
func (p Patch) Apply(m *Message) {
	if p.Content != nil {
		m.Content = *p.Content
	}
	if p.Attachments != nil {
		m.Attachments = append([]Attachment(nil), p.Attachments...)
	}
	if p.Emotions != nil {
		m.Emotions = append([]string(nil), p.Emotions...)
	}
	if p.Agent != nil {
		m.Agent = *p.Agent
	}
}

// Clone returns a deep copy so snapshots never alias store state.
func (m Message) Clone() Message {
	if m.Attachments != nil {
		m.Attachments = append([]Attachment(nil), m.Attachments...)
	}
	if m.Emotions != nil {
		m.Emotions = append([]string(nil), m.Emotions...)
	}
	return m
}
