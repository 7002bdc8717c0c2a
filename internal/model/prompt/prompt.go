// Package prompt loads the conversation preamble: the system message every
// session starts with, the scripted questions asked before the model takes
// over, and the history cap.
package prompt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DefaultMaxHistorySize applies when neither the file nor the environment set a cap.
const DefaultMaxHistorySize = 20

var ErrUnsupportedFormat = errors.New("prompt file must be .toml, .yaml or .yml")

// Config mirrors the prompt file layout.
type Config struct {
	Basic         Basic         `toml:"basic" yaml:"basic"`
	Configuration Configuration `toml:"configuration" yaml:"configuration"`
}

type Basic struct {
	SystemMessage    string   `toml:"system_message" yaml:"system_message"`
	InitialQuestions []string `toml:"initial_questions" yaml:"initial_questions"`
}

type Configuration struct {
	MaxHistorySize int `toml:"max_history_size" yaml:"max_history_size"`
}

// Default is used when no prompt file is configured.
func Default() Config {
	return Config{
		Basic: Basic{SystemMessage: "You are a helpful assistant."},
		Configuration: Configuration{
			MaxHistorySize: DefaultMaxHistorySize,
		},
	}
}

// Load reads a prompt file, choosing the decoder by extension. An empty path
// yields Default.
func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read prompt file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return Config{}, fmt.Errorf("decode %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode %s: %w", path, err)
		}
	default:
		return Config{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	if cfg.Configuration.MaxHistorySize == 0 {
		cfg.Configuration.MaxHistorySize = DefaultMaxHistorySize
	}
	if cfg.Configuration.MaxHistorySize < 0 {
		return Config{}, fmt.Errorf("max_history_size must not be negative, got %d", cfg.Configuration.MaxHistorySize)
	}
	return cfg, nil
}

// ScriptedPrompts returns the non-blank initial questions in file order.
func (c Config) ScriptedPrompts() []string {
	out := make([]string, 0, len(c.Basic.InitialQuestions))
	for _, q := range c.Basic.InitialQuestions {
		if strings.TrimSpace(q) != "" {
			out = append(out, q)
		}
	}
	return out
}

// WithMaxHistorySize returns c with the cap replaced when override is set.
func (c Config) WithMaxHistorySize(override *int) Config {
	if override != nil {
		c.Configuration.MaxHistorySize = *override
	}
	return c
}
