package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("WS_PONG_WAIT", "")

	cfg := Load()
	if cfg.StoreBackend != "memory" {
		t.Fatalf("expected memory backend, got %q", cfg.StoreBackend)
	}
	if cfg.PongWait != 60*time.Second {
		t.Fatalf("unexpected pong wait %v", cfg.PongWait)
	}
	if cfg.TokenTTL != 7*24*time.Hour {
		t.Fatalf("unexpected token ttl %v", cfg.TokenTTL)
	}
	if !cfg.IsDevelopment() {
		t.Fatal("expected development mode")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("WS_PING_PERIOD", "5s")
	t.Setenv("WS_SEND_BUFFER", "16")
	t.Setenv("RATE_LIMIT_WHITELIST", "10.0.0.1, 192.168.0.0/16,,")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com")

	cfg := Load()
	if cfg.StoreBackend != "sqlite" || cfg.PingPeriod != 5*time.Second || cfg.SendBuffer != 16 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if len(cfg.RateLimitWhitelist) != 2 || cfg.RateLimitWhitelist[1] != "192.168.0.0/16" {
		t.Fatalf("unexpected whitelist %v", cfg.RateLimitWhitelist)
	}
	if len(cfg.AllowedOrigins) != 1 {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
}

func TestLoadInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("WS_WRITE_WAIT", "soon")
	t.Setenv("WS_SEND_BUFFER", "-3")

	cfg := Load()
	if cfg.WriteWait != 10*time.Second || cfg.SendBuffer != 64 {
		t.Fatalf("expected defaults, got %v and %d", cfg.WriteWait, cfg.SendBuffer)
	}
}

func TestProductionRequiresSecret(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("STORE_BACKEND", "sqlite")

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic without JWT_SECRET")
		}
	}()
	Load()
}
