package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "AI_PROVIDER", "AI_TIMEOUT", "MAX_STATUS_VALUE", "MAX_CHAT_HISTORY",
		"MAX_HISTORY_CHARS", "RECOVERY_WAKE_INTERVAL", "MOOD_ADJUST_INTERVAL", "LOG_FORMAT",
		"DB_PATH", "OPENAI_BASE_URL", "INITIAL_STAMINA", "CORS_ORIGINS",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.Server.Addr != ":7862" {
		t.Errorf("Addr: got %q", cfg.Server.Addr)
	}
	if cfg.AI.Provider != ProviderOpenAI || cfg.AI.OpenAIBaseURL != "http://localhost:11434/v1" {
		t.Errorf("unexpected AI defaults: %+v", cfg.AI)
	}
	if cfg.AI.Timeout != 60*time.Second {
		t.Errorf("Timeout: got %s", cfg.AI.Timeout)
	}
	if cfg.Status.Max != 100 || cfg.Status.InitialStamina != 100 || cfg.Status.InitialMood != 50 {
		t.Errorf("unexpected status defaults: %+v", cfg.Status)
	}
	if cfg.History.MaxEntries != 8 || cfg.History.MaxChars != 10000 {
		t.Errorf("unexpected history defaults: %+v", cfg.History)
	}
	if cfg.Recovery.WakeInterval != 10*time.Minute || cfg.Recovery.MoodInterval != time.Hour {
		t.Errorf("unexpected recovery defaults: %+v", cfg.Recovery)
	}
	if cfg.Store.Path != "catmaid.db" {
		t.Errorf("DB path: got %q", cfg.Store.Path)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "*" {
		t.Errorf("CORS origins: got %v", cfg.Server.CORSOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("AI_PROVIDER", "ARK")
	t.Setenv("AI_TIMEOUT", "15")
	t.Setenv("STAMINA_RECOVERY_INTERVAL", "5m")
	t.Setenv("MAX_STATUS_VALUE", "200")
	t.Setenv("INITIAL_STAMINA", "150")
	t.Setenv("CORS_ORIGINS", "http://a.example, http://b.example")
	t.Setenv("AI_TEMPERATURE", "0.7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("Addr: got %q", cfg.Server.Addr)
	}
	if cfg.AI.Provider != ProviderArk {
		t.Errorf("Provider: got %q", cfg.AI.Provider)
	}
	if cfg.AI.Timeout != 15*time.Second {
		t.Errorf("Timeout: got %s", cfg.AI.Timeout)
	}
	if cfg.Recovery.StaminaInterval != 5*time.Minute {
		t.Errorf("StaminaInterval: got %s", cfg.Recovery.StaminaInterval)
	}
	if cfg.Status.InitialStamina != 150 {
		t.Errorf("InitialStamina: got %d", cfg.Status.InitialStamina)
	}
	if cfg.AI.Temperature == nil || *cfg.AI.Temperature != 0.7 {
		t.Errorf("Temperature: got %v", cfg.AI.Temperature)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "http://b.example" {
		t.Errorf("CORS origins: got %v", cfg.Server.CORSOrigins)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"PORT", "80 80", "invalid PORT"},
		{"MAX_CHAT_HISTORY", "eight", "invalid MAX_CHAT_HISTORY"},
		{"INITIAL_MOOD", "101", "INITIAL_MOOD must be within"},
		{"MOOD_ADJUST_INTERVAL", "0", "MOOD_ADJUST_INTERVAL must be positive"},
		{"AI_PROVIDER", "bard", "AI_PROVIDER must be"},
		{"LOG_FORMAT", "xml", "LOG_FORMAT must be"},
		{"AI_TIMEOUT", "soon", "invalid AI_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			if err == nil {
				t.Fatalf("expected error for %s=%q", tt.key, tt.value)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestAIConfigEnabled(t *testing.T) {
	if (AIConfig{Provider: ProviderArk, Model: "ep-1"}).Enabled() {
		t.Fatal("ark without credentials must be disabled")
	}
	if !(AIConfig{Provider: ProviderArk, Model: "ep-1", APIKey: "k"}).Enabled() {
		t.Fatal("ark with api key should be enabled")
	}
	if !(AIConfig{Provider: ProviderOpenAI, OpenAIModel: "qwen3"}).Enabled() {
		t.Fatal("openai with model should be enabled")
	}
}
