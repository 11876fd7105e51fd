package config

import (
	"errors"
	"testing"
)

// validConfig returns a config that passes Validate with provider ollama,
// which needs no API key in the environment.
func validConfig() *Config {
	return &Config{
		Provider:         ProviderOllama,
		ModelName:        "llama3.3",
		Temperature:      0.7,
		MaxTokens:        4096,
		OllamaHost:       "http://localhost:11434",
		PostgresHost:     "localhost",
		PostgresPort:     5432,
		PostgresUser:     "ferrite",
		PostgresPassword: "a_long_enough_password",
		PostgresDBName:   "ferrite",
		PostgresSSLMode:  "disable",
		UpstreamAddr:     "localhost:11434",
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidateNil(t *testing.T) {
	var cfg *Config
	if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("expected ErrConfigNil, got %v", err)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Provider = "anthropic-cloud" },
			wantErr: ErrInvalidProvider,
		},
		{
			name:    "empty model name",
			mutate:  func(c *Config) { c.ModelName = "" },
			wantErr: ErrInvalidModelName,
		},
		{
			name:    "temperature too high",
			mutate:  func(c *Config) { c.Temperature = 2.5 },
			wantErr: ErrInvalidTemperature,
		},
		{
			name:    "negative temperature",
			mutate:  func(c *Config) { c.Temperature = -0.1 },
			wantErr: ErrInvalidTemperature,
		},
		{
			name:    "zero max tokens",
			mutate:  func(c *Config) { c.MaxTokens = 0 },
			wantErr: ErrInvalidMaxTokens,
		},
		{
			name:    "empty postgres host",
			mutate:  func(c *Config) { c.PostgresHost = "" },
			wantErr: ErrInvalidPostgresHost,
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.PostgresPort = 70000 },
			wantErr: ErrInvalidPostgresPort,
		},
		{
			name:    "empty database name",
			mutate:  func(c *Config) { c.PostgresDBName = "" },
			wantErr: ErrInvalidPostgresDBName,
		},
		{
			name:    "short password",
			mutate:  func(c *Config) { c.PostgresPassword = "short" },
			wantErr: ErrInvalidPostgresPassword,
		},
		{
			name:    "deprecated ssl mode",
			mutate:  func(c *Config) { c.PostgresSSLMode = "prefer" },
			wantErr: ErrInvalidPostgresSSLMode,
		},
		{
			name:    "upstream addr without port",
			mutate:  func(c *Config) { c.UpstreamAddr = "localhost" },
			wantErr: ErrInvalidUpstreamAddr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateAPIKeyByProvider(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	cfg := validConfig()
	cfg.Provider = ProviderGemini
	cfg.ModelName = "gemini-2.5-flash"
	if err := cfg.Validate(); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey without GEMINI_API_KEY, got %v", err)
	}

	t.Setenv("GEMINI_API_KEY", "test-key")
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config with GEMINI_API_KEY set, got %v", err)
	}
}

func TestNormalizeMaxHistoryMessages(t *testing.T) {
	tests := []struct {
		in   int32
		want int32
	}{
		{0, DefaultMaxHistoryMessages},
		{-5, DefaultMaxHistoryMessages},
		{5, MinHistoryMessages},
		{50, 50},
		{999999, MaxAllowedHistoryMessages},
	}

	for _, tt := range tests {
		if got := NormalizeMaxHistoryMessages(tt.in); got != tt.want {
			t.Errorf("NormalizeMaxHistoryMessages(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
