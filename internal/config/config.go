package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// FileEnv 指定可选的 TOML 配置文件路径。
const FileEnv = "TAPORI_CONFIG"

// Config 聚合客户端与开发后端的配置项。
type Config struct {
	Client  ClientConfig
	Backend BackendConfig
	Log     LogConfig
	AI      AIConfig
}

// ClientConfig 描述 Web 客户端进程。
type ClientConfig struct {
	Addr           string
	BackendURL     string
	APITimeout     time.Duration
	StateDB        string
	AppearanceFile string
}

// BackendConfig 描述开发后端。
type BackendConfig struct {
	Addr        string
	Environment string
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level       string
	Development bool
}

// Load 先读取可选的 TOML 文件，再用环境变量覆盖。
func Load() (*Config, error) {
	l, err := newLoader(strings.TrimSpace(os.Getenv(FileEnv)))
	if err != nil {
		return nil, err
	}

	client, err := l.loadClientConfig()
	if err != nil {
		return nil, err
	}

	backend, err := l.loadBackendConfig()
	if err != nil {
		return nil, err
	}

	logCfg, err := l.loadLogConfig()
	if err != nil {
		return nil, err
	}

	ai, err := l.loadAIConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Client: client, Backend: backend, Log: logCfg, AI: ai}, nil
}

// fileConfig 是 TOML 文件的结构，字段与环境变量一一对应。
type fileConfig struct {
	Port           string `toml:"port"`
	BackendURL     string `toml:"backend_url"`
	APITimeout     *int   `toml:"api_timeout"`
	StateDB        string `toml:"state_db"`
	AppearanceFile string `toml:"appearance_file"`

	Log struct {
		Level       string `toml:"level"`
		Development *bool  `toml:"development"`
	} `toml:"log"`

	DevBackend struct {
		Port        string `toml:"port"`
		Environment string `toml:"environment"`
	} `toml:"dev_backend"`

	Ark struct {
		Model       string   `toml:"model"`
		BaseURL     string   `toml:"base_url"`
		Region      string   `toml:"region"`
		Temperature *float64 `toml:"temperature"`
		TopP        *float64 `toml:"top_p"`
		MaxTokens   *int     `toml:"max_tokens"`
	} `toml:"ark"`
}

func (f fileConfig) values() map[string]string {
	values := map[string]string{
		"PORT":             f.Port,
		"BACKEND_URL":      f.BackendURL,
		"STATE_DB":         f.StateDB,
		"APPEARANCE_FILE":  f.AppearanceFile,
		"LOG_LEVEL":        f.Log.Level,
		"DEV_BACKEND_PORT": f.DevBackend.Port,
		"APP_ENV":          f.DevBackend.Environment,
		"Model":            f.Ark.Model,
		"ARK_BASE_URL":     f.Ark.BaseURL,
		"ARK_REGION":       f.Ark.Region,
	}
	if f.APITimeout != nil {
		values["API_TIMEOUT"] = strconv.Itoa(*f.APITimeout)
	}
	if f.Log.Development != nil {
		values["LOG_DEV"] = strconv.FormatBool(*f.Log.Development)
	}
	if f.Ark.Temperature != nil {
		values["ARK_TEMPERATURE"] = strconv.FormatFloat(*f.Ark.Temperature, 'f', -1, 64)
	}
	if f.Ark.TopP != nil {
		values["ARK_TOP_P"] = strconv.FormatFloat(*f.Ark.TopP, 'f', -1, 64)
	}
	if f.Ark.MaxTokens != nil {
		values["ARK_MAX_TOKENS"] = strconv.Itoa(*f.Ark.MaxTokens)
	}
	return values
}

// loader 按“环境变量 > 配置文件 > 默认值”的顺序取值。
type loader struct {
	file map[string]string
}

func newLoader(path string) (*loader, error) {
	l := &loader{file: map[string]string{}}
	if path == "" {
		return l, nil
	}

	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	l.file = fc.values()
	return l, nil
}

func (l *loader) lookup(key string) (string, bool) {
	if raw, ok := os.LookupEnv(key); ok && strings.TrimSpace(raw) != "" {
		return strings.TrimSpace(raw), true
	}
	if value := strings.TrimSpace(l.file[key]); value != "" {
		return value, true
	}
	return "", false
}

func (l *loader) loadClientConfig() (ClientConfig, error) {
	addr, err := l.parseAddr("PORT", "3000")
	if err != nil {
		return ClientConfig{}, err
	}

	timeout := 30
	if override, err := l.parseOptionalInt("API_TIMEOUT"); err != nil {
		return ClientConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return ClientConfig{}, fmt.Errorf("invalid API_TIMEOUT value %d: must be positive", *override)
		}
		timeout = *override
	}

	return ClientConfig{
		Addr:           addr,
		BackendURL:     strings.TrimRight(l.getOrDefault("BACKEND_URL", "http://localhost:8080"), "/"),
		APITimeout:     time.Duration(timeout) * time.Second,
		StateDB:        l.getOrDefault("STATE_DB", "taporibrain.db"),
		AppearanceFile: l.getOrDefault("APPEARANCE_FILE", ""),
	}, nil
}

func (l *loader) loadBackendConfig() (BackendConfig, error) {
	addr, err := l.parseAddr("DEV_BACKEND_PORT", "8080")
	if err != nil {
		return BackendConfig{}, err
	}
	return BackendConfig{
		Addr:        addr,
		Environment: l.getOrDefault("APP_ENV", "development"),
	}, nil
}

func (l *loader) loadLogConfig() (LogConfig, error) {
	dev, err := l.parseBool("LOG_DEV", false)
	if err != nil {
		return LogConfig{}, err
	}
	return LogConfig{
		Level:       strings.ToLower(l.getOrDefault("LOG_LEVEL", "info")),
		Development: dev,
	}, nil
}

// parseAddr 解析监听地址，允许 "8080"、":8080" 或 "127.0.0.1:8080"。
func (l *loader) parseAddr(key, defaultPort string) (string, error) {
	port := l.getOrDefault(key, defaultPort)

	if strings.Contains(port, ":") {
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid %s value: %q", key, port)
	}

	return ":" + port, nil
}

// AIConfig 描述开发后端可选的大模型配置。
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: set ARK_API_KEY + Model or an AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func (l *loader) loadAIConfig() (AIConfig, error) {
	temperature, err := l.parseOptionalFloat("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := l.parseOptionalFloat("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := l.parseOptionalInt("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      l.getOrDefault("ARK_API_KEY", ""),
		AccessKey:   l.getOrDefault("ARK_ACCESS_KEY", ""),
		SecretKey:   l.getOrDefault("ARK_SECRET_KEY", ""),
		Model:       l.getOrDefault("Model", ""),
		BaseURL:     l.getOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      l.getOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

func (l *loader) getOrDefault(key, defaultValue string) string {
	if value, ok := l.lookup(key); ok {
		return value
	}
	return defaultValue
}

func (l *loader) parseBool(key string, defaultValue bool) (bool, error) {
	raw, ok := l.lookup(key)
	if !ok {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func (l *loader) parseOptionalFloat(key string) (*float64, error) {
	value, ok := l.lookup(key)
	if !ok {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func (l *loader) parseOptionalInt(key string) (*int, error) {
	value, ok := l.lookup(key)
	if !ok {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
