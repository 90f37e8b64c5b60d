package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.HistoryTTL != 24*time.Hour {
		t.Errorf("expected history TTL 24h, got %s", cfg.HistoryTTL)
	}
	if cfg.SweepInterval != 30*time.Second {
		t.Errorf("expected sweep interval 30s, got %s", cfg.SweepInterval)
	}
	if cfg.LeadRatePerMinute != 5 {
		t.Errorf("expected lead rate 5/min, got %d", cfg.LeadRatePerMinute)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SWEEP_INTERVAL", "10s")
	t.Setenv("HISTORY_TTL", "1h")
	t.Setenv("EVOLUTION_API_URL", "https://evo.example.com/")
	t.Setenv("ALLOWED_PHONES", "5511999990000, 5511999990001")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://painel.example.com")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Port)
	}
	if cfg.SweepInterval != 10*time.Second {
		t.Errorf("expected sweep interval 10s, got %s", cfg.SweepInterval)
	}
	if cfg.HistoryTTL != time.Hour {
		t.Errorf("expected history TTL 1h, got %s", cfg.HistoryTTL)
	}
	if cfg.EvolutionAPIURL != "https://evo.example.com" {
		t.Errorf("expected trailing slash trimmed, got %s", cfg.EvolutionAPIURL)
	}
	if len(cfg.AllowedPhones) != 2 || cfg.AllowedPhones[1] != "5511999990001" {
		t.Errorf("unexpected allowed phones: %v", cfg.AllowedPhones)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "https://painel.example.com" {
		t.Errorf("unexpected CORS origins: %v", cfg.CORSAllowedOrigins)
	}
}

func TestValidate_MissingKeys(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for empty config")
	}
	for _, key := range []string{"DATABASE_URL", "EVOLUTION_API_URL", "EVOLUTION_API_KEY", "OPENAI_API_KEY"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("expected %s in error, got: %v", key, err)
		}
	}
}

func TestValidate_Complete(t *testing.T) {
	cfg := &Config{
		DatabaseURL:     "postgres://localhost/osbot",
		EvolutionAPIURL: "https://evo.example.com",
		EvolutionAPIKey: "key",
		OpenAIAPIKey:    "sk-test",
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIsProduction(t *testing.T) {
	if (&Config{Env: "development"}).IsProduction() {
		t.Error("development reported as production")
	}
	if !(&Config{Env: "Production"}).IsProduction() {
		t.Error("case-insensitive production check failed")
	}
}
