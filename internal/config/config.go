// Package config reads the environment variables the broker recognizes
// (spec §6). Loading the settings-rule file itself belongs to
// internal/permission; this package only covers the flat env surface.
package config

import (
	"os"
	"strconv"
)

// Config is a snapshot of the recognized environment at process start.
type Config struct {
	AnthropicBaseURL       string
	AnthropicAPIKey        string
	AnthropicAuthToken     string
	AnthropicModel         string
	AnthropicSmallFastModel string
	MaxThinkingTokens      int
	OTELExporterOTLPEndpoint string
	LogLevel               string
}

// Load reads Config from the process environment.
func Load() Config {
	cfg := Config{
		AnthropicBaseURL:         os.Getenv("ANTHROPIC_BASE_URL"),
		AnthropicAPIKey:          os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicAuthToken:       os.Getenv("ANTHROPIC_AUTH_TOKEN"),
		AnthropicModel:           os.Getenv("ANTHROPIC_MODEL"),
		AnthropicSmallFastModel:  os.Getenv("ANTHROPIC_SMALL_FAST_MODEL"),
		OTELExporterOTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		LogLevel:                 os.Getenv("RUST_LOG"),
	}
	if v := os.Getenv("MAX_THINKING_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxThinkingTokens = n
		}
	}
	return cfg
}
