package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server   ServerConfig
	Relay    RelayConfig
	AI       AIConfig
	Recorder RecorderConfig
	Hooks    HooksConfig
	LogLevel slog.Level
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	relay, err := loadRelayConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	recorder, err := loadRecorderConfig()
	if err != nil {
		return nil, err
	}

	hooks, err := loadHooksConfig()
	if err != nil {
		return nil, err
	}

	level, err := parseLogLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		Relay:    relay,
		AI:       ai,
		Recorder: recorder,
		Hooks:    hooks,
		LogLevel: level,
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// RelayConfig 描述会话路由相关配置。
type RelayConfig struct {
	OperatorPassword string
	SliceSize        int
	// MaxHistorySize 非空时覆盖提示词文件中的 max_history_size。
	MaxHistorySize *int
	PromptFile     string
}

func loadRelayConfig() (RelayConfig, error) {
	sliceSize := 10
	if override, err := parseOptionalIntEnv("SLICE_SIZE"); err != nil {
		return RelayConfig{}, err
	} else if override != nil {
		sliceSize = *override
	}

	maxHistory, err := parseOptionalIntEnv("MAX_HISTORY_SIZE")
	if err != nil {
		return RelayConfig{}, err
	}
	if maxHistory != nil && *maxHistory < 0 {
		return RelayConfig{}, fmt.Errorf("invalid MAX_HISTORY_SIZE value %d: must not be negative", *maxHistory)
	}

	return RelayConfig{
		OperatorPassword: os.Getenv("OPERATOR_PASSWORD"),
		SliceSize:        sliceSize,
		MaxHistorySize:   maxHistory,
		PromptFile:       strings.TrimSpace(os.Getenv("PROMPT_FILE")),
	}, nil
}

// 支持的 LLM_PROVIDER 取值。
const (
	ProviderArk    = "ark"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider string
	Ark      ArkConfig
	OpenAI   OpenAIConfig
	Gemini   GeminiConfig

	Temperature    *float64
	TopP           *float64
	MaxTokens      *int
	StreamResponse bool
	// SystemRole 为 false 时 system 消息会以 user 角色发送，默认值取决于提供方。
	SystemRole bool
}

// ArkConfig 火山方舟凭证。
type ArkConfig struct {
	APIKey    string
	AccessKey string
	SecretKey string
	Model     string
	BaseURL   string
	Region    string
}

// OpenAIConfig OpenAI 兼容接口配置。
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// GeminiConfig Google Gemini 配置。
type GeminiConfig struct {
	APIKey string
	Model  string
}

// defaultSystemRole 返回各提供方是否接受 system 角色。
func defaultSystemRole(provider string) bool {
	return provider != ProviderGemini
}

// Model 返回当前提供方使用的模型名。
func (c AIConfig) Model() string {
	switch c.Provider {
	case ProviderOpenAI:
		return c.OpenAI.Model
	case ProviderGemini:
		return c.Gemini.Model
	default:
		return c.Ark.Model
	}
}

// Enabled 表示当前提供方是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case ProviderArk:
		return c.Ark.Model != "" && (c.Ark.APIKey != "" || (c.Ark.AccessKey != "" && c.Ark.SecretKey != ""))
	case ProviderOpenAI:
		return c.OpenAI.APIKey != "" && c.OpenAI.Model != ""
	case ProviderGemini:
		return c.Gemini.APIKey != "" && c.Gemini.Model != ""
	default:
		return false
	}
}

// NewChatModel 使用配置创建当前提供方的模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("%s 凭证或模型配置缺失", c.Provider)
	}

	temperature, topP := c.sampling()

	switch c.Provider {
	case ProviderArk:
		return ark.NewChatModel(ctx, &ark.ChatModelConfig{
			BaseURL:     c.Ark.BaseURL,
			Region:      c.Ark.Region,
			APIKey:      c.Ark.APIKey,
			AccessKey:   c.Ark.AccessKey,
			SecretKey:   c.Ark.SecretKey,
			Model:       c.Ark.Model,
			MaxTokens:   c.MaxTokens,
			Temperature: temperature,
			TopP:        topP,
		})
	case ProviderOpenAI:
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:      c.OpenAI.APIKey,
			BaseURL:     c.OpenAI.BaseURL,
			Model:       c.OpenAI.Model,
			MaxTokens:   c.MaxTokens,
			Temperature: temperature,
			TopP:        topP,
		})
	case ProviderGemini:
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  c.Gemini.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("创建 Gemini 客户端失败: %w", err)
		}
		return gemini.NewChatModel(ctx, &gemini.Config{
			Client:      client,
			Model:       c.Gemini.Model,
			MaxTokens:   c.MaxTokens,
			Temperature: temperature,
			TopP:        topP,
		})
	default:
		return nil, fmt.Errorf("不支持的 LLM_PROVIDER: %q", c.Provider)
	}
}

func (c AIConfig) sampling() (temperature, topP *float32) {
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}
	return temperature, topP
}

func loadAIConfig() (AIConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("LLM_PROVIDER", ProviderArk))
	switch provider {
	case ProviderArk, ProviderOpenAI, ProviderGemini:
	default:
		return AIConfig{}, fmt.Errorf("invalid LLM_PROVIDER value %q", provider)
	}

	temperature, err := parseOptionalFloatEnv("LLM_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("LLM_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("LLM_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	stream, err := parseBoolEnv("LLM_STREAM", true)
	if err != nil {
		return AIConfig{}, err
	}

	systemRole, err := parseBoolEnv("LLM_SYSTEM_ROLE", defaultSystemRole(provider))
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		Provider: provider,
		Ark: ArkConfig{
			APIKey:    strings.TrimSpace(os.Getenv("ARK_API_KEY")),
			AccessKey: strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
			SecretKey: strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
			Model:     strings.TrimSpace(os.Getenv("ARK_MODEL")),
			BaseURL:   getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
			Region:    getEnvOrDefault("ARK_REGION", "cn-beijing"),
		},
		OpenAI: OpenAIConfig{
			APIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
			Model:   getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
			BaseURL: getEnvOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		},
		Gemini: GeminiConfig{
			APIKey: strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
			Model:  getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		},
		Temperature:    temperature,
		TopP:           topP,
		MaxTokens:      maxTokens,
		StreamResponse: stream,
		SystemRole:     systemRole,
	}, nil
}

// RECORDER 支持的取值。
const (
	RecorderNone   = "none"
	RecorderFile   = "file"
	RecorderRedis  = "redis"
	RecorderSQLite = "sqlite"
)

// RecorderConfig 描述会话记录落地方式。
type RecorderConfig struct {
	Kind       string
	FileDir    string
	RedisURL   string
	RedisTTL   time.Duration
	SQLitePath string
}

func loadRecorderConfig() (RecorderConfig, error) {
	kind := strings.ToLower(getEnvOrDefault("RECORDER", RecorderNone))
	switch kind {
	case RecorderNone, RecorderFile, RecorderRedis, RecorderSQLite:
	default:
		return RecorderConfig{}, fmt.Errorf("invalid RECORDER value %q", kind)
	}

	ttl, err := parseDurationEnv("REDIS_TTL", 24*time.Hour)
	if err != nil {
		return RecorderConfig{}, err
	}

	cfg := RecorderConfig{
		Kind:       kind,
		FileDir:    getEnvOrDefault("RECORDER_FILE_DIR", "transcripts"),
		RedisURL:   getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		RedisTTL:   ttl,
		SQLitePath: getEnvOrDefault("SQLITE_PATH", "data/transcripts.db"),
	}
	return cfg, nil
}

// HooksConfig 控制内置回调。
type HooksConfig struct {
	WikiSearch  bool
	WikiAPIURL  string
	ClientIDLog bool
}

func loadHooksConfig() (HooksConfig, error) {
	wiki, err := parseBoolEnv("WIKI_SEARCH_ENABLED", false)
	if err != nil {
		return HooksConfig{}, err
	}

	clientLog, err := parseBoolEnv("CLIENT_ID_LOG_ENABLED", false)
	if err != nil {
		return HooksConfig{}, err
	}

	return HooksConfig{
		WikiSearch:  wiki,
		WikiAPIURL:  getEnvOrDefault("WIKI_API_URL", "https://en.wikipedia.org/w/api.php"),
		ClientIDLog: clientLog,
	}, nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL value %q: %w", raw, err)
	}
	return level, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
