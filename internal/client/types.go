package client

// Upload is one file sent as a multipart part.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// ChatResponse is the backend's answer to a text message.
type ChatResponse struct {
	Agent    string   `json:"agent"`
	Response string   `json:"response"`
	Emotions []string `json:"emotions,omitempty"`
}

// VoiceAck acknowledges an uploaded recording.
type VoiceAck struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// Ack acknowledges a write.
type Ack struct {
	OK bool `json:"ok"`
}

// Well-known admin config keys.
const (
	ConfigModel          = "model"
	ConfigTemperature    = "temperature"
	ConfigStreaming      = "streaming"
	ConfigAgentSwitching = "agent_switching"
)

// AdminConfig is the backend's flat configuration map. Keys beyond the
// well-known ones are passed through untouched.
type AdminConfig map[string]any

func (c AdminConfig) Model() string {
	s, _ := c[ConfigModel].(string)
	return s
}

func (c AdminConfig) Temperature() float64 {
	switch v := c[ConfigTemperature].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func (c AdminConfig) Streaming() bool {
	b, _ := c[ConfigStreaming].(bool)
	return b
}

func (c AdminConfig) AgentSwitching() bool {
	b, _ := c[ConfigAgentSwitching].(bool)
	return b
}

// ModelInfo describes the model behind the backend.
type ModelInfo struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	Parameters string `json:"parameters,omitempty"`
}

// AdminStats is the backend's runtime summary.
type AdminStats struct {
	Environment    string    `json:"environment"`
	ModelInfo      ModelInfo `json:"model_info"`
	Uptime         string    `json:"uptime"`
	MemoryUsage    string    `json:"memory_usage,omitempty"`
	CPUUsage       string    `json:"cpu_usage,omitempty"`
	ActiveSessions int       `json:"active_sessions"`
}

// FeatureFlags maps flag names to their state.
type FeatureFlags map[string]bool

type keyValue struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}
