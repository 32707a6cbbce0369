package config

import (
	"os"
	"testing"
)

func TestConfigLoad_Defaults(t *testing.T) {
	_ = os.Unsetenv("CHAT_DB_DRIVER")
	_ = os.Unsetenv("CHAT_HTTP_PORT")
	_ = os.Unsetenv("CHAT_DEFAULT_USER_ID")

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.HTTPPort != 8080 || cfg.DBDriver != "sqlite" || cfg.DefaultUserID != "user-1" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.SQLitePath == "" {
		t.Fatalf("sqlite path should be derived when empty")
	}
}

func TestConfigLoad_EnvOverride(t *testing.T) {
	_ = os.Setenv("CHAT_ORACLE_MODEL", "test-model")
	defer func() { _ = os.Unsetenv("CHAT_ORACLE_MODEL") }()

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.OracleModel != "test-model" {
		t.Fatalf("oracle model env override failed, got %s", cfg.OracleModel)
	}
}

func TestResolveDefaults_RejectsUnknownDriver(t *testing.T) {
	cfg := &Config{DBDriver: "mongodb"}
	if err := cfg.ResolveDefaults(); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestResolveDefaults_PostgresRequiresDSN(t *testing.T) {
	cfg := &Config{DBDriver: "postgres"}
	if err := cfg.ResolveDefaults(); err == nil {
		t.Fatalf("expected error when POSTGRES_DSN is missing")
	}
}
