// Package client talks to the TaporiBrain HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultTimeout  = 30 * time.Second
	JSONContentType = "application/json"
)

// ErrRequestFailed matches every error returned by Client.
var ErrRequestFailed = errors.New("api request failed")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api request failed: status %d: %s", e.StatusCode, e.Message)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrRequestFailed
}

type transportError struct {
	op  string
	err error
}

func (e *transportError) Error() string { return e.op + ": " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }
func (e *transportError) Is(target error) bool {
	return target == ErrRequestFailed
}

// Client is a stateless wrapper over the backend API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a client for the API served under backendURL + "/api".
func New(backendURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(backendURL, "/") + "/api",
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendMessage posts text and attachments as multipart fields "message" and
// "attachment_<i>".
func (c *Client) SendMessage(ctx context.Context, message string, attachments []Upload) (*ChatResponse, error) {
	body, contentType, err := buildMultipart(func(w *multipart.Writer) error {
		if err := w.WriteField("message", message); err != nil {
			return err
		}
		for i, att := range attachments {
			if err := writeFile(w, fmt.Sprintf("attachment_%d", i), att); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, &transportError{op: "send message", err: err}
	}

	var resp ChatResponse
	if err := c.do(ctx, "send message", http.MethodPost, "/chat/send", contentType, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendVoice posts a recording as multipart field "file".
func (c *Client) SendVoice(ctx context.Context, audio Upload) (*VoiceAck, error) {
	body, contentType, err := buildMultipart(func(w *multipart.Writer) error {
		return writeFile(w, "file", audio)
	})
	if err != nil {
		return nil, &transportError{op: "send voice", err: err}
	}

	var ack VoiceAck
	if err := c.do(ctx, "send voice", http.MethodPost, "/chat/voice", contentType, body, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

func (c *Client) GetAdminConfig(ctx context.Context) (AdminConfig, error) {
	cfg := AdminConfig{}
	if err := c.do(ctx, "get admin config", http.MethodGet, "/admin/config", "", nil, &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Client) UpdateAdminConfig(ctx context.Context, key string, value any) (*Ack, error) {
	return c.postKeyValue(ctx, "update admin config", "/admin/config", key, value)
}

func (c *Client) GetAdminStats(ctx context.Context) (*AdminStats, error) {
	var stats AdminStats
	if err := c.do(ctx, "get admin stats", http.MethodGet, "/admin/stats", "", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) GetFeatureFlags(ctx context.Context) (FeatureFlags, error) {
	flags := FeatureFlags{}
	if err := c.do(ctx, "get feature flags", http.MethodGet, "/admin/features", "", nil, &flags); err != nil {
		return nil, err
	}
	return flags, nil
}

func (c *Client) UpdateFeatureFlag(ctx context.Context, key string, value bool) (*Ack, error) {
	return c.postKeyValue(ctx, "update feature flag", "/admin/features", key, value)
}

func (c *Client) postKeyValue(ctx context.Context, op, path, key string, value any) (*Ack, error) {
	payload, err := json.Marshal(keyValue{Key: key, Value: value})
	if err != nil {
		return nil, &transportError{op: op, err: err}
	}
	var ack Ack
	if err := c.do(ctx, op, http.MethodPost, path, JSONContentType, bytes.NewReader(payload), &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

func (c *Client) do(ctx context.Context, op, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &transportError{op: op, err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", JSONContentType)

	started := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("api request failed", zap.String("op", op), zap.Error(err))
		return &transportError{op: op, err: err}
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return &transportError{op: op, err: fmt.Errorf("read response body: %w", err)}
	}

	c.logger.Debug("api request",
		zap.String("op", op),
		zap.Int("status", res.StatusCode),
		zap.Duration("elapsed", time.Since(started)),
	)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &StatusError{StatusCode: res.StatusCode, Message: errorMessage(data)}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &transportError{op: op, err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func errorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return strings.TrimSpace(string(body))
}

func buildMultipart(fill func(*multipart.Writer) error) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := fill(w); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeFile(w *multipart.Writer, field string, file Upload) error {
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(file.Name)))
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(file.Data)
	return err
}
