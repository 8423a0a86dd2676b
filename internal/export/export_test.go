package export_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/zhouzirui/taporibrain/internal/export"
	"github.com/zhouzirui/taporibrain/internal/model/chat"
)

func sampleSession() chat.Session {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return chat.Session{
		ID:        "s1",
		Title:     "Trip Plans!",
		CreatedAt: at,
		UpdatedAt: at,
		Messages: []chat.Message{
			{ID: "m1", Role: chat.RoleUser, Content: "hi", Timestamp: at,
				Attachments: []chat.Attachment{{Kind: chat.AttachmentFile, Name: "plan.pdf", URL: "/previews/x", Size: 10}}},
			{ID: "m2", Role: chat.RoleAssistant, Content: "hello", Agent: "Core", Timestamp: at.Add(time.Second)},
		},
	}
}

func TestNewExporter(t *testing.T) {
	tests := []struct {
		format  string
		wantExt string
		wantErr bool
	}{
		{format: "md", wantExt: "md"},
		{format: "markdown", wantExt: "md"},
		{format: "json", wantExt: "json"},
		{format: "jsonl", wantExt: "jsonl"},
		{format: "YAML", wantExt: "yaml"},
		{format: "csv", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			e, err := export.NewExporter(tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantExt, e.Extension())
		})
	}
}

func TestMarkdownExport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.MarkdownExporter{}.Export(sampleSession(), &buf))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "# Trip Plans!\n"))
	assert.Contains(t, out, "**Messages:** 2")
	assert.Contains(t, out, "**You**")
	assert.Contains(t, out, "**Core**")
	assert.Contains(t, out, "plan.pdf")
	assert.Less(t, strings.Index(out, "hi"), strings.Index(out, "hello"))
}

func TestJSONExport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.JSONExporter{}.Export(sampleSession(), &buf))

	var decoded chat.Session
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "Trip Plans!", decoded.Title)
	require.Len(t, decoded.Messages, 2)
	assert.Equal(t, "Core", decoded.Messages[1].Agent)
}

func TestJSONLExport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.JSONLExporter{}.Export(sampleSession(), &buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
}

func TestYAMLExport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.YAMLExporter{}.Export(sampleSession(), &buf))

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "Trip Plans!", decoded["title"])
}

func TestFilename(t *testing.T) {
	e := export.MarkdownExporter{}
	assert.Equal(t, "trip-plans.md", export.Filename(sampleSession(), e))
	assert.Equal(t, "session.md", export.Filename(chat.Session{Title: "!!!"}, e))
}
