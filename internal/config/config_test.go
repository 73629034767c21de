package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.ServerPort == "" {
		t.Fatalf("expected default server port")
	}
	if cfg.PostgresURL == "" {
		t.Fatalf("expected default postgres url")
	}
	if cfg.RouteProvider != ProviderHaversine {
		t.Fatalf("expected haversine provider by default, got %q", cfg.RouteProvider)
	}
	if cfg.RouteTimeout != 5*time.Second {
		t.Fatalf("expected 5s route timeout, got %s", cfg.RouteTimeout)
	}
	if cfg.RouteCacheSize != 1024 || cfg.RouteCacheTTL != 24*time.Hour {
		t.Fatalf("unexpected cache defaults %d %s", cfg.RouteCacheSize, cfg.RouteCacheTTL)
	}
	if cfg.NATSSubject != "rewards.sessions.finalized" {
		t.Fatalf("unexpected nats subject %q", cfg.NATSSubject)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9000")
	t.Setenv("POSTGRES_URL", "postgres://example")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_PASSWORD", "hunter2")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("NATS_URL", "nats://nats:4222")
	t.Setenv("ROUTE_PROVIDER", "google")
	t.Setenv("GOOGLE_MAPS_API_KEY", "key")
	t.Setenv("ROUTE_TIMEOUT", "750ms")
	t.Setenv("ROUTE_CACHE_SIZE", "16")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Load()
	if cfg.ServerPort != ":9000" {
		t.Fatalf("expected override port")
	}
	if cfg.PostgresURL != "postgres://example" {
		t.Fatalf("expected override postgres")
	}
	if cfg.RedisAddr != "redis:6379" || cfg.RedisPassword != "hunter2" {
		t.Fatalf("expected override redis")
	}
	if cfg.JWTSecret != "secret" {
		t.Fatalf("expected override secret")
	}
	if cfg.NATSURL != "nats://nats:4222" {
		t.Fatalf("expected override nats url")
	}
	if cfg.RouteProvider != ProviderGoogle || cfg.GoogleMapsAPIKey != "key" {
		t.Fatalf("expected google provider override")
	}
	if cfg.RouteTimeout != 750*time.Millisecond {
		t.Fatalf("expected 750ms timeout, got %s", cfg.RouteTimeout)
	}
	if cfg.RouteCacheSize != 16 {
		t.Fatalf("expected cache size 16, got %d", cfg.RouteCacheSize)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected debug log level")
	}
}
