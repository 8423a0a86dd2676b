package backend

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/zhouzirui/taporibrain/internal/client"
)

var ErrInvalidConfigValue = errors.New("invalid config value")

// DefaultFeatures are the flags the dev backend starts with.
func DefaultFeatures() client.FeatureFlags {
	return client.FeatureFlags{
		"voice_input":    true,
		"file_upload":    true,
		"markdown":       true,
		"slash_commands": false,
		"tts_replies":    false,
	}
}

// State holds the mutable admin settings of the dev backend.
type State struct {
	mu       sync.RWMutex
	config   client.AdminConfig
	features client.FeatureFlags

	environment string
	model       client.ModelInfo
	started     time.Time
	now         func() time.Time
}

// NewState seeds the admin config for the given environment and model.
func NewState(environment string, model client.ModelInfo) *State {
	return &State{
		config: client.AdminConfig{
			client.ConfigModel:          model.Name,
			client.ConfigTemperature:    0.7,
			client.ConfigStreaming:      false,
			client.ConfigAgentSwitching: true,
		},
		features:    DefaultFeatures(),
		environment: environment,
		model:       model,
		started:     time.Now(),
		now:         time.Now,
	}
}

// Config returns a copy of the admin config.
func (s *State) Config() client.AdminConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(client.AdminConfig, len(s.config))
	for k, v := range s.config {
		out[k] = v
	}
	return out
}

// AgentSwitching reports whether messages may be routed to specialised agents.
func (s *State) AgentSwitching() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.AgentSwitching()
}

// SetConfig validates the well-known keys and stores value.
func (s *State) SetConfig(key string, value any) error {
	switch key {
	case client.ConfigModel:
		name, ok := value.(string)
		if !ok || name == "" {
			return fmt.Errorf("%w: %s must be a non-empty string", ErrInvalidConfigValue, key)
		}
	case client.ConfigTemperature:
		t, ok := value.(float64)
		if !ok || t < 0 || t > 2 {
			return fmt.Errorf("%w: %s must be a number between 0 and 2", ErrInvalidConfigValue, key)
		}
	case client.ConfigStreaming, client.ConfigAgentSwitching:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%w: %s must be a boolean", ErrInvalidConfigValue, key)
		}
	}

	s.mu.Lock()
	s.config[key] = value
	s.mu.Unlock()
	return nil
}

// Features returns a copy of the feature flags.
func (s *State) Features() client.FeatureFlags {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(client.FeatureFlags, len(s.features))
	for k, v := range s.features {
		out[k] = v
	}
	return out
}

// SetFeature stores one flag.
func (s *State) SetFeature(key string, value bool) {
	s.mu.Lock()
	s.features[key] = value
	s.mu.Unlock()
}

// Feature reports one flag, false when unknown.
func (s *State) Feature(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.features[key]
}

// Stats summarises the running process.
func (s *State) Stats(activeSessions int) client.AdminStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	s.mu.RLock()
	model := s.model
	if name := s.config.Model(); name != "" {
		model.Name = name
	}
	s.mu.RUnlock()

	return client.AdminStats{
		Environment:    s.environment,
		ModelInfo:      model,
		Uptime:         s.now().Sub(s.started).Round(time.Second).String(),
		MemoryUsage:    fmt.Sprintf("%.1f MB", float64(mem.Alloc)/(1024*1024)),
		ActiveSessions: activeSessions,
	}
}
