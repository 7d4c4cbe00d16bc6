package config

import (
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "kagra", SSLMode: ""},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Supabase: SupabaseConfig{
			URL:       "https://example.supabase.co",
			AnonKey:   "anon",
			JWTSecret: "secret",
		},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validConfig()
	c.App.Env = "production"
	c.Supabase.ServiceRoleKey = "service"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaultsSSLMode(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
}

func TestValidate_AppliesAuthDefaults(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Auth.PermissionCheckTimeout != 15*time.Second {
		t.Fatalf("expected 15s permission check timeout default, got %v", c.Auth.PermissionCheckTimeout)
	}
	if c.Auth.SessionCacheTTL != time.Hour {
		t.Fatalf("expected 1h session cache TTL default, got %v", c.Auth.SessionCacheTTL)
	}
}

func TestValidate_RequiresSupabase(t *testing.T) {
	c := validConfig()
	c.Supabase.URL = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for missing SUPABASE_URL")
	}
}

func TestSplitOrigins(t *testing.T) {
	got := splitOrigins("https://kagra.space, https://system.kagra.space ,")
	if len(got) != 2 || got[0] != "https://kagra.space" || got[1] != "https://system.kagra.space" {
		t.Fatalf("unexpected origins: %#v", got)
	}
	if splitOrigins("  ") != nil {
		t.Fatalf("expected nil for blank input")
	}
}
