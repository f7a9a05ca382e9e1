package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	AuthProviderJWT      = "jwt"
	AuthProviderFirebase = "firebase"

	SyncQueuePool   = "pool"
	SyncQueueNotify = "notify"

	BalancePolicyAll           = "all"
	BalancePolicyConnectedOnly = "connected_only"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Auth       AuthConfig
	Aggregator AggregatorConfig
	Sync       SyncConfig
	Summary    SummaryConfig
	Scheduler  SchedulerConfig
	TLS        TLSConfig
	Firebase   FirebaseConfig
	Telemetry  TelemetryConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	AllowedHosts []string
}

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	AutoMigrate bool
}

type AuthConfig struct {
	Provider       string
	JWTSecret      string
	ServiceKeyHash string
}

// AggregatorConfig holds the process-wide service credentials used against
// the banking-data aggregator. End-user credentials never pass through here.
type AggregatorConfig struct {
	ProviderName  string
	BaseURL       string
	ClientID      string
	ClientSecret  string
	ConnectURL    string
	WebhookURL    string
	WebhookSecret string
	Timeout       time.Duration
}

type SyncConfig struct {
	RunTimeout  time.Duration
	PageSize    int
	MaxPages    int
	Concurrency int
	Queue       string
}

type SummaryConfig struct {
	BalancePolicy string
}

type SchedulerConfig struct {
	Enabled       bool
	ScheduleTimes []string
	WorkerCount   int
	JobDelay      time.Duration
	QueueSize     int
	RunOnStartup  bool
}

type TLSConfig struct {
	Enabled      bool
	CertPath     string
	KeyPath      string
	RedirectHTTP bool
}

type FirebaseConfig struct {
	CredentialsFile string
}

type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	Environment  string
	OTLPEndpoint string
	MetricsPort  string
}

type LogConfig struct {
	Env   string
	Level string
}

func Load() (*Config, error) {
	// A missing .env file is fine; real deployments inject the environment.
	_ = godotenv.Load()

	dbPort, err := getIntEnv("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}

	aggregatorTimeout, err := getDurationEnv("AGGREGATOR_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}

	syncRunTimeout, err := getDurationEnv("SYNC_RUN_TIMEOUT", 2*time.Minute)
	if err != nil {
		return nil, err
	}
	syncPageSize, err := getIntEnv("SYNC_PAGE_SIZE", 100)
	if err != nil {
		return nil, err
	}
	syncMaxPages, err := getIntEnv("SYNC_MAX_PAGES", 1000)
	if err != nil {
		return nil, err
	}
	syncConcurrency, err := getIntEnv("SYNC_CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}

	schedulerWorkers, err := getIntEnv("SCHEDULER_WORKERS", 5)
	if err != nil {
		return nil, err
	}
	schedulerJobDelay, err := getDurationEnv("SCHEDULER_JOB_DELAY", time.Second)
	if err != nil {
		return nil, err
	}
	schedulerQueueSize, err := getIntEnv("SCHEDULER_QUEUE_SIZE", 100)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Host:         getEnv("HOST", "0.0.0.0"),
			AllowedHosts: splitList(getEnv("ALLOWED_HOSTS", "")),
		},
		Database: DatabaseConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        dbPort,
			User:        getEnv("DB_USER", "ofsync"),
			Password:    getEnv("DB_PASSWORD", ""),
			DBName:      getEnv("DB_NAME", "ofsync"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			AutoMigrate: getBoolEnv("DB_AUTO_MIGRATE", false),
		},
		Auth: AuthConfig{
			Provider:       strings.ToLower(getEnv("AUTH_PROVIDER", AuthProviderJWT)),
			JWTSecret:      getEnv("JWT_SECRET", ""),
			ServiceKeyHash: getEnv("SERVICE_KEY_HASH", ""),
		},
		Aggregator: AggregatorConfig{
			ProviderName:  getEnv("AGGREGATOR_PROVIDER", "pluggy"),
			BaseURL:       strings.TrimRight(getEnv("AGGREGATOR_BASE_URL", "https://api.pluggy.ai"), "/"),
			ClientID:      getEnv("AGGREGATOR_CLIENT_ID", ""),
			ClientSecret:  getEnv("AGGREGATOR_CLIENT_SECRET", ""),
			ConnectURL:    getEnv("AGGREGATOR_CONNECT_URL", "https://connect.pluggy.ai"),
			WebhookURL:    getEnv("AGGREGATOR_WEBHOOK_URL", ""),
			WebhookSecret: getEnv("WEBHOOK_SECRET", ""),
			Timeout:       aggregatorTimeout,
		},
		Sync: SyncConfig{
			RunTimeout:  syncRunTimeout,
			PageSize:    syncPageSize,
			MaxPages:    syncMaxPages,
			Concurrency: syncConcurrency,
			Queue:       strings.ToLower(getEnv("SYNC_QUEUE", SyncQueuePool)),
		},
		Summary: SummaryConfig{
			BalancePolicy: strings.ToLower(getEnv("SUMMARY_BALANCE_POLICY", BalancePolicyAll)),
		},
		Scheduler: SchedulerConfig{
			Enabled:       getBoolEnv("SCHEDULER_ENABLED", true),
			ScheduleTimes: splitList(getEnv("SCHEDULER_TIMES", "03:00,12:00")),
			WorkerCount:   schedulerWorkers,
			JobDelay:      schedulerJobDelay,
			QueueSize:     schedulerQueueSize,
			RunOnStartup:  getBoolEnv("SCHEDULER_RUN_ON_STARTUP", false),
		},
		TLS: TLSConfig{
			Enabled:      getBoolEnv("TLS_ENABLED", false),
			CertPath:     getEnv("TLS_CERT_PATH", ""),
			KeyPath:      getEnv("TLS_KEY_PATH", ""),
			RedirectHTTP: getBoolEnv("TLS_REDIRECT_HTTP", false),
		},
		Firebase: FirebaseConfig{
			CredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getBoolEnv("OTEL_ENABLED", false),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "ofsync-api"),
			Environment:  getEnv("ENV", "development"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
			MetricsPort:  getEnv("METRICS_PORT", "9464"),
		},
		Log: LogConfig{
			Env:   getEnv("ENV", "development"),
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Aggregator.ClientID == "" {
		return fmt.Errorf("AGGREGATOR_CLIENT_ID is required")
	}
	if c.Aggregator.ClientSecret == "" {
		return fmt.Errorf("AGGREGATOR_CLIENT_SECRET is required")
	}

	switch c.Auth.Provider {
	case AuthProviderJWT:
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when AUTH_PROVIDER=jwt")
		}
	case AuthProviderFirebase:
		if c.Firebase.CredentialsFile == "" {
			return fmt.Errorf("FIREBASE_CREDENTIALS_FILE is required when AUTH_PROVIDER=firebase")
		}
	default:
		return fmt.Errorf("invalid AUTH_PROVIDER %q (use jwt or firebase)", c.Auth.Provider)
	}

	switch c.Sync.Queue {
	case SyncQueuePool, SyncQueueNotify:
	default:
		return fmt.Errorf("invalid SYNC_QUEUE %q (use pool or notify)", c.Sync.Queue)
	}

	switch c.Summary.BalancePolicy {
	case BalancePolicyAll, BalancePolicyConnectedOnly:
	default:
		return fmt.Errorf("invalid SUMMARY_BALANCE_POLICY %q (use all or connected_only)", c.Summary.BalancePolicy)
	}

	if c.Sync.PageSize <= 0 || c.Sync.MaxPages <= 0 || c.Sync.Concurrency <= 0 {
		return fmt.Errorf("SYNC_PAGE_SIZE, SYNC_MAX_PAGES and SYNC_CONCURRENCY must be positive")
	}
	if c.Sync.RunTimeout <= 0 {
		return fmt.Errorf("SYNC_RUN_TIMEOUT must be positive")
	}

	if c.TLS.Enabled {
		if c.TLS.CertPath == "" {
			return fmt.Errorf("TLS_CERT_PATH is required when TLS_ENABLED=true")
		}
		if c.TLS.KeyPath == "" {
			return fmt.Errorf("TLS_KEY_PATH is required when TLS_ENABLED=true")
		}
	}

	return nil
}

// ConnectionString returns a lib/pq key=value DSN.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// URL returns the postgres:// form expected by golang-migrate.
func (c *DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
