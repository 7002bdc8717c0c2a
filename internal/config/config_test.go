package config

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "SLICE_SIZE", "MAX_HISTORY_SIZE", "LLM_PROVIDER", "LLM_STREAM", "LLM_SYSTEM_ROLE", "RECORDER", "REDIS_TTL", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}
	if cfg.Relay.SliceSize != 10 {
		t.Fatalf("unexpected slice size: %d", cfg.Relay.SliceSize)
	}
	if cfg.Relay.MaxHistorySize != nil {
		t.Fatalf("expected no max history override, got %d", *cfg.Relay.MaxHistorySize)
	}
	if cfg.AI.Provider != ProviderArk || !cfg.AI.StreamResponse || !cfg.AI.SystemRole {
		t.Fatalf("unexpected AI defaults: %+v", cfg.AI)
	}
	if cfg.Recorder.Kind != RecorderNone || cfg.Recorder.RedisTTL != 24*time.Hour {
		t.Fatalf("unexpected recorder defaults: %+v", cfg.Recorder)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("unexpected log level: %v", cfg.LogLevel)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("OPERATOR_PASSWORD", "hunter2")
	t.Setenv("SLICE_SIZE", "6")
	t.Setenv("MAX_HISTORY_SIZE", "30")
	t.Setenv("LLM_SYSTEM_ROLE", "false")
	t.Setenv("RECORDER", "SQLite")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}
	if cfg.Relay.OperatorPassword != "hunter2" || cfg.Relay.SliceSize != 6 {
		t.Fatalf("unexpected relay config: %+v", cfg.Relay)
	}
	if cfg.Relay.MaxHistorySize == nil || *cfg.Relay.MaxHistorySize != 30 {
		t.Fatalf("expected max history override 30")
	}
	if cfg.AI.SystemRole {
		t.Fatal("expected system role disabled")
	}
	if cfg.Recorder.Kind != RecorderSQLite {
		t.Fatalf("unexpected recorder kind: %s", cfg.Recorder.Kind)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("unexpected log level: %v", cfg.LogLevel)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":             "80 80",
		"SLICE_SIZE":       "ten",
		"MAX_HISTORY_SIZE": "-1",
		"LLM_STREAM":       "maybe",
		"LLM_PROVIDER":     "llama",
		"RECORDER":         "postgres",
		"REDIS_TTL":        "a day",
		"LOG_LEVEL":        "loud",
	}

	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", key, value)
			}
		})
	}
}

func TestAIConfigEnabled(t *testing.T) {
	cases := []struct {
		name string
		cfg  AIConfig
		want bool
	}{
		{"ark without credentials", AIConfig{Provider: ProviderArk, Ark: ArkConfig{Model: "m"}}, false},
		{"ark with api key", AIConfig{Provider: ProviderArk, Ark: ArkConfig{Model: "m", APIKey: "k"}}, true},
		{"ark with AK/SK", AIConfig{Provider: ProviderArk, Ark: ArkConfig{Model: "m", AccessKey: "a", SecretKey: "s"}}, true},
		{"openai with key", AIConfig{Provider: ProviderOpenAI, OpenAI: OpenAIConfig{Model: "gpt", APIKey: "k"}}, true},
		{"openai without key", AIConfig{Provider: ProviderOpenAI, OpenAI: OpenAIConfig{Model: "gpt"}}, false},
		{"gemini with key", AIConfig{Provider: ProviderGemini, Gemini: GeminiConfig{Model: "g", APIKey: "k"}}, true},
		{"gemini without key", AIConfig{Provider: ProviderGemini, Gemini: GeminiConfig{Model: "g"}}, false},
		{"unknown provider", AIConfig{Provider: "llama", Ark: ArkConfig{Model: "m", APIKey: "k"}}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cfg.Enabled(); got != tc.want {
				t.Fatalf("Enabled() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestLoadProviderBranches(t *testing.T) {
	cases := []struct {
		provider   string
		env        map[string]string
		model      string
		systemRole bool
	}{
		{ProviderArk, map[string]string{"ARK_API_KEY": "k", "ARK_MODEL": "doubao"}, "doubao", true},
		{ProviderOpenAI, map[string]string{"OPENAI_API_KEY": "k", "OPENAI_MODEL": "gpt-4o"}, "gpt-4o", true},
		{ProviderGemini, map[string]string{"GEMINI_API_KEY": "k", "GEMINI_MODEL": "gemini-2.0-flash"}, "gemini-2.0-flash", false},
	}

	for _, tc := range cases {
		t.Run(tc.provider, func(t *testing.T) {
			t.Setenv("LLM_PROVIDER", strings.ToUpper(tc.provider))
			t.Setenv("LLM_SYSTEM_ROLE", "")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load err: %v", err)
			}
			if cfg.AI.Provider != tc.provider {
				t.Fatalf("unexpected provider: %s", cfg.AI.Provider)
			}
			if cfg.AI.Model() != tc.model {
				t.Fatalf("unexpected model: %s", cfg.AI.Model())
			}
			if !cfg.AI.Enabled() {
				t.Fatal("expected provider to be enabled")
			}
			if cfg.AI.SystemRole != tc.systemRole {
				t.Fatalf("unexpected system role default: %v", cfg.AI.SystemRole)
			}
		})
	}
}

func TestSystemRoleOverride(t *testing.T) {
	t.Setenv("LLM_PROVIDER", ProviderGemini)
	t.Setenv("LLM_SYSTEM_ROLE", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if !cfg.AI.SystemRole {
		t.Fatal("expected explicit LLM_SYSTEM_ROLE to win over the provider default")
	}
}

func TestNewChatModelRejectsMissingCredentials(t *testing.T) {
	for _, provider := range []string{ProviderArk, ProviderOpenAI, ProviderGemini} {
		cfg := AIConfig{Provider: provider}
		if _, err := cfg.NewChatModel(context.Background()); err == nil {
			t.Fatalf("expected error for %s without credentials", provider)
		}
	}
}

func TestNewChatModelOpenAI(t *testing.T) {
	cfg := AIConfig{Provider: ProviderOpenAI, OpenAI: OpenAIConfig{APIKey: "k", Model: "gpt-4o-mini", BaseURL: "http://127.0.0.1:1/v1"}}
	m, err := cfg.NewChatModel(context.Background())
	if err != nil {
		t.Fatalf("NewChatModel err: %v", err)
	}
	if m == nil {
		t.Fatal("expected a chat model")
	}
}
