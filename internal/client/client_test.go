package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/taporibrain/internal/client"
)

func newServer(t *testing.T, register func(r chi.Router)) *client.Client {
	t.Helper()
	r := chi.NewRouter()
	r.Route("/api", register)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return client.New(srv.URL + "/")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestSendMessageMultipart(t *testing.T) {
	c := newServer(t, func(r chi.Router) {
		r.Post("/chat/send", func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseMultipartForm(32<<20))
			assert.Equal(t, "hello", r.FormValue("message"))

			file, header, err := r.FormFile("attachment_0")
			require.NoError(t, err)
			defer file.Close()
			data, _ := io.ReadAll(file)
			assert.Equal(t, "cat.png", header.Filename)
			assert.Equal(t, "image/png", header.Header.Get("Content-Type"))
			assert.Equal(t, []byte("png"), data)

			_, header, err = r.FormFile("attachment_1")
			require.NoError(t, err)
			assert.Equal(t, "notes.txt", header.Filename)

			writeJSON(w, http.StatusOK, map[string]any{
				"agent": "Core", "response": "hi there", "emotions": []string{"happy"},
			})
		})
	})

	resp, err := c.SendMessage(context.Background(), "hello", []client.Upload{
		{Name: "cat.png", ContentType: "image/png", Data: []byte("png")},
		{Name: "notes.txt", ContentType: "text/plain", Data: []byte("txt")},
	})
	require.NoError(t, err)
	assert.Equal(t, &client.ChatResponse{Agent: "Core", Response: "hi there", Emotions: []string{"happy"}}, resp)
}

func TestSendVoice(t *testing.T) {
	c := newServer(t, func(r chi.Router) {
		r.Post("/chat/voice", func(w http.ResponseWriter, r *http.Request) {
			_, header, err := r.FormFile("file")
			require.NoError(t, err)
			assert.Equal(t, "voice-message.webm", header.Filename)
			writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "received"})
		})
	})

	ack, err := c.SendVoice(context.Background(), client.Upload{Name: "voice-message.webm", ContentType: "audio/webm", Data: []byte("a")})
	require.NoError(t, err)
	assert.True(t, ack.OK)
	assert.Equal(t, "received", ack.Message)
}

func TestAdminEndpoints(t *testing.T) {
	var posted map[string]any
	c := newServer(t, func(r chi.Router) {
		r.Get("/admin/config", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"model": "gpt", "temperature": 0.7, "streaming": true, "agent_switching": false, "extra": "x",
			})
		})
		r.Post("/admin/config", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
			writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		})
		r.Get("/admin/stats", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"environment": "development",
				"model_info":  map[string]string{"name": "echo", "version": "1"},
				"uptime":      "1m",
				"active_sessions": 2,
			})
		})
		r.Get("/admin/features", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]bool{"voice": true})
		})
		r.Post("/admin/features", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		})
	})
	ctx := context.Background()

	cfg, err := c.GetAdminConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "gpt", cfg.Model())
	assert.InDelta(t, 0.7, cfg.Temperature(), 1e-9)
	assert.True(t, cfg.Streaming())
	assert.False(t, cfg.AgentSwitching())
	assert.Equal(t, "x", cfg["extra"])

	ack, err := c.UpdateAdminConfig(ctx, "temperature", 0.2)
	require.NoError(t, err)
	assert.True(t, ack.OK)
	assert.Equal(t, map[string]any{"key": "temperature", "value": 0.2}, posted)

	stats, err := c.GetAdminStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "echo", stats.ModelInfo.Name)
	assert.Equal(t, 2, stats.ActiveSessions)
	assert.Empty(t, stats.CPUUsage)

	flags, err := c.GetFeatureFlags(ctx)
	require.NoError(t, err)
	assert.True(t, flags["voice"])

	ack, err = c.UpdateFeatureFlag(ctx, "voice", false)
	require.NoError(t, err)
	assert.True(t, ack.OK)
}

func TestStatusError(t *testing.T) {
	c := newServer(t, func(r chi.Router) {
		r.Post("/chat/send", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "model offline"})
		})
	})

	_, err := c.SendMessage(context.Background(), "hello", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrRequestFailed)

	var statusErr *client.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Equal(t, "model offline", statusErr.Message)
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	r := chi.NewRouter()
	r.Get("/api/admin/stats", func(w http.ResponseWriter, r *http.Request) {
		<-release
	})
	srv := httptest.NewServer(r)
	defer srv.Close()
	defer close(release)

	c := client.New(srv.URL, client.WithTimeout(50*time.Millisecond))
	_, err := c.GetAdminStats(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrRequestFailed)
}

func TestUnreachableBackend(t *testing.T) {
	c := client.New("http://127.0.0.1:1")
	_, err := c.GetFeatureFlags(context.Background())
	assert.ErrorIs(t, err, client.ErrRequestFailed)
}
