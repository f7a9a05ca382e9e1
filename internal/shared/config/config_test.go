package config

import (
	"os"
	"testing"
	"time"
)

func withBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("AGGREGATOR_CLIENT_ID", "client-id")
	t.Setenv("AGGREGATOR_CLIENT_SECRET", "client-secret")
	t.Setenv("AUTH_PROVIDER", "jwt")
	t.Setenv("JWT_SECRET", "test-jwt-secret-key")
}

func TestLoad_Success(t *testing.T) {
	withBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Auth.JWTSecret != "test-jwt-secret-key" {
		t.Errorf("Auth.JWTSecret = %q, want %q", cfg.Auth.JWTSecret, "test-jwt-secret-key")
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want %q", cfg.Server.Port, "8080")
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("Database.Port = %d, want %d", cfg.Database.Port, 5432)
	}
	if cfg.Sync.RunTimeout != 2*time.Minute {
		t.Errorf("Sync.RunTimeout = %v, want 2m", cfg.Sync.RunTimeout)
	}
	if cfg.Sync.Queue != SyncQueuePool {
		t.Errorf("Sync.Queue = %q, want %q", cfg.Sync.Queue, SyncQueuePool)
	}
	if cfg.Summary.BalancePolicy != BalancePolicyAll {
		t.Errorf("Summary.BalancePolicy = %q, want %q", cfg.Summary.BalancePolicy, BalancePolicyAll)
	}
}

func TestLoad_MissingAggregatorCredentials(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{name: "client id", key: "AGGREGATOR_CLIENT_ID"},
		{name: "client secret", key: "AGGREGATOR_CLIENT_SECRET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withBaseEnv(t)
			t.Setenv(tt.key, "")
			os.Unsetenv(tt.key)

			if _, err := Load(); err == nil {
				t.Errorf("Load() = nil error, want failure for missing %s", tt.key)
			}
		})
	}
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	withBaseEnv(t)
	t.Setenv("JWT_SECRET", "")
	os.Unsetenv("JWT_SECRET")

	_, err := Load()
	if err == nil {
		t.Error("Load() = nil error, want failure for missing JWT_SECRET")
	}
}

func TestLoad_FirebaseProviderRequiresCredentials(t *testing.T) {
	withBaseEnv(t)
	t.Setenv("AUTH_PROVIDER", "firebase")
	t.Setenv("FIREBASE_CREDENTIALS_FILE", "")

	if _, err := Load(); err == nil {
		t.Error("Load() = nil error, want failure for firebase provider without credentials")
	}

	t.Setenv("FIREBASE_CREDENTIALS_FILE", "/etc/firebase.json")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.Provider != AuthProviderFirebase {
		t.Errorf("Auth.Provider = %q, want %q", cfg.Auth.Provider, AuthProviderFirebase)
	}
}

func TestLoad_InvalidChoices(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "auth provider", key: "AUTH_PROVIDER", value: "saml"},
		{name: "sync queue", key: "SYNC_QUEUE", value: "kafka"},
		{name: "balance policy", key: "SUMMARY_BALANCE_POLICY", value: "newest"},
		{name: "page size", key: "SYNC_PAGE_SIZE", value: "0"},
		{name: "run timeout", key: "SYNC_RUN_TIMEOUT", value: "soon"},
		{name: "db port", key: "DB_PORT", value: "not-a-number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withBaseEnv(t)
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Errorf("Load() = nil error, want failure for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_ConnectedOnlyPolicy(t *testing.T) {
	withBaseEnv(t)
	t.Setenv("SUMMARY_BALANCE_POLICY", "CONNECTED_ONLY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Summary.BalancePolicy != BalancePolicyConnectedOnly {
		t.Errorf("Summary.BalancePolicy = %q, want %q", cfg.Summary.BalancePolicy, BalancePolicyConnectedOnly)
	}
}

func TestLoad_TLSValidation(t *testing.T) {
	withBaseEnv(t)
	t.Setenv("TLS_ENABLED", "true")
	t.Setenv("TLS_CERT_PATH", "")
	t.Setenv("TLS_KEY_PATH", "")

	_, err := Load()
	if err == nil {
		t.Error("Load() = nil error, want failure for TLS enabled without cert path")
	}
}

func TestLoad_AllowedHosts(t *testing.T) {
	withBaseEnv(t)
	t.Setenv("ALLOWED_HOSTS", "example.com, api.example.com, localhost:3000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.Server.AllowedHosts) != 3 {
		t.Errorf("AllowedHosts length = %d, want 3", len(cfg.Server.AllowedHosts))
	}
}

func TestLoad_SchedulerConfig(t *testing.T) {
	withBaseEnv(t)
	t.Setenv("SCHEDULER_ENABLED", "false")
	t.Setenv("SCHEDULER_WORKERS", "10")
	t.Setenv("SCHEDULER_TIMES", "05:00, 17:30")
	t.Setenv("SCHEDULER_RUN_ON_STARTUP", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Scheduler.Enabled {
		t.Error("Scheduler.Enabled should be false")
	}
	if cfg.Scheduler.WorkerCount != 10 {
		t.Errorf("Scheduler.WorkerCount = %d, want 10", cfg.Scheduler.WorkerCount)
	}
	if len(cfg.Scheduler.ScheduleTimes) != 2 || cfg.Scheduler.ScheduleTimes[1] != "17:30" {
		t.Errorf("Scheduler.ScheduleTimes = %v, want [05:00 17:30]", cfg.Scheduler.ScheduleTimes)
	}
	if !cfg.Scheduler.RunOnStartup {
		t.Error("Scheduler.RunOnStartup should be true")
	}
}

func TestGetBoolEnv(t *testing.T) {
	const key = "OFSYNC_TEST_FLAG"

	for _, raw := range []string{"true", "TRUE", "1", "yes"} {
		t.Setenv(key, raw)
		if !getBoolEnv(key, false) {
			t.Errorf("getBoolEnv(%q) = false, want true", raw)
		}
	}
	for _, raw := range []string{"false", "0", "no"} {
		t.Setenv(key, raw)
		if getBoolEnv(key, true) {
			t.Errorf("getBoolEnv(%q) = true, want false", raw)
		}
	}

	t.Setenv(key, "maybe")
	if !getBoolEnv(key, true) || getBoolEnv(key, false) {
		t.Error("unparseable value should fall back to the default")
	}
	os.Unsetenv(key)
	if !getBoolEnv(key, true) {
		t.Error("unset value should fall back to the default")
	}
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	cfg := DatabaseConfig{Host: "pg.internal", Port: 5432, User: "ofsync", Password: "pw", DBName: "ofsync", SSLMode: "verify-full"}

	want := "host=pg.internal port=5432 user=ofsync password=pw dbname=ofsync sslmode=verify-full"
	if got := cfg.ConnectionString(); got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}
}

func TestDatabaseConfig_URL(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db",
		Port:     5433,
		User:     "svc",
		Password: "p@ss",
		DBName:   "ofsync",
		SSLMode:  "require",
	}

	expected := "postgres://svc:p%40ss@db:5433/ofsync?sslmode=require"
	if got := cfg.URL(); got != expected {
		t.Errorf("URL() = %q, want %q", got, expected)
	}
}
