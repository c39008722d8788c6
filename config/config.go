package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the complete service configuration. It is loaded once at startup
// and handed to constructors; nothing reads the environment afterwards.
type Config struct {
	Server    ServerConfig    `yaml:"server" env:"SERVER"`
	Agent     AgentConfig     `yaml:"agent" env:"AGENT"`
	LLM       LLMConfig       `yaml:"llm" env:"LLM"`
	Tools     ToolsConfig     `yaml:"tools" env:"TOOLS"`
	Redis     RedisConfig     `yaml:"redis" env:"REDIS"`
	Database  DatabaseConfig  `yaml:"database" env:"DATABASE"`
	Log       LogConfig       `yaml:"log" env:"LOG"`
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig covers the HTTP listener, uploads and the middleware chain.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT"`
	MetricsPort     int           `yaml:"metrics_port" env:"METRICS_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`

	// TLS is enabled when both files are set.
	TLSCertFile string `yaml:"tls_cert_file" env:"TLS_CERT_FILE"`
	TLSKeyFile  string `yaml:"tls_key_file" env:"TLS_KEY_FILE"`

	// MaxUploadBytes caps POST /upload bodies.
	MaxUploadBytes int64 `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES"`

	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`

	// Per client IP. Zero disables the limiter.
	RateLimitRPS   float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`

	// APIKeys enables X-API-Key authentication when non-empty.
	APIKeys []string `yaml:"api_keys" env:"API_KEYS"`

	// JWTSecret enables HS256 bearer authentication when non-empty.
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
	JWTIssuer string `yaml:"jwt_issuer" env:"JWT_ISSUER"`
}

// AgentConfig controls the reasoning loop and the query service.
type AgentConfig struct {
	Model         string  `yaml:"model" env:"MODEL"`
	MaxIterations int     `yaml:"max_iterations" env:"MAX_ITERATIONS"`
	Temperature   float64 `yaml:"temperature" env:"TEMPERATURE"`
	MaxTokens     int     `yaml:"max_tokens" env:"MAX_TOKENS"`
	ContextWindow int     `yaml:"context_window" env:"CONTEXT_WINDOW"`

	// StrictParsing fails the run on malformed model output instead of
	// feeding the parse error back as an observation.
	StrictParsing bool `yaml:"strict_parsing" env:"STRICT_PARSING"`

	// CompletionTimeout bounds one model call. Zero leaves it to the provider.
	CompletionTimeout time.Duration `yaml:"completion_timeout" env:"COMPLETION_TIMEOUT"`

	MaxConcurrentRuns int64         `yaml:"max_concurrent_runs" env:"MAX_CONCURRENT_RUNS"`
	QueueTimeout      time.Duration `yaml:"queue_timeout" env:"QUEUE_TIMEOUT"`

	// Tokenizer is "tiktoken" or "estimator".
	Tokenizer         string `yaml:"tokenizer" env:"TOKENIZER"`
	TokenizerEncoding string `yaml:"tokenizer_encoding" env:"TOKENIZER_ENCODING"`
}

// LLMConfig selects and configures the text generator.
type LLMConfig struct {
	// Provider is one of the names accepted by llm/factory.
	Provider   string        `yaml:"provider" env:"PROVIDER"`
	BaseURL    string        `yaml:"base_url" env:"BASE_URL"`
	APIKey     string        `yaml:"api_key" env:"API_KEY"`
	Timeout    time.Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxRetries int           `yaml:"max_retries" env:"MAX_RETRIES"`

	// GPULayers is passed to Ollama as num_gpu.
	GPULayers int `yaml:"gpu_layers" env:"GPU_LAYERS"`
}

// ToolsConfig configures the built-in tools.
type ToolsConfig struct {
	// DispatchTimeout bounds one tool call.
	DispatchTimeout time.Duration `yaml:"dispatch_timeout" env:"DISPATCH_TIMEOUT"`

	// Timezone for the Time tool, an IANA name. Empty means local time.
	Timezone string `yaml:"timezone" env:"TIMEZONE"`

	UploadDir           string `yaml:"upload_dir" env:"UPLOAD_DIR"`
	RestrictToUploadDir bool   `yaml:"restrict_to_upload_dir" env:"RESTRICT_TO_UPLOAD_DIR"`

	Quote QuoteConfig `yaml:"quote" env:"QUOTE"`
}

// QuoteConfig configures the Stock Price tool. Without an API key the tool
// answers from the demo table.
type QuoteConfig struct {
	APIKey            string        `yaml:"api_key" env:"API_KEY"`
	BaseURL           string        `yaml:"base_url" env:"BASE_URL"`
	Timeout           time.Duration `yaml:"timeout" env:"TIMEOUT"`
	RequestsPerMinute int           `yaml:"requests_per_minute" env:"REQUESTS_PER_MINUTE"`
	CacheTTL          time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`

	BreakerThreshold    int           `yaml:"breaker_threshold" env:"BREAKER_THRESHOLD"`
	BreakerResetTimeout time.Duration `yaml:"breaker_reset_timeout" env:"BREAKER_RESET_TIMEOUT"`
}

// RedisConfig configures the quote cache.
type RedisConfig struct {
	Enabled      bool   `yaml:"enabled" env:"ENABLED"`
	Addr         string `yaml:"addr" env:"ADDR"`
	Password     string `yaml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" env:"DB"`
	KeyPrefix    string `yaml:"key_prefix" env:"KEY_PREFIX"`
	PoolSize     int    `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	TLSEnabled   bool   `yaml:"tls_enabled" env:"TLS_ENABLED"`
}

// DatabaseConfig configures query history storage. An empty Driver disables
// history.
type DatabaseConfig struct {
	// Driver is postgres, mysql or sqlite.
	Driver   string `yaml:"driver" env:"DRIVER"`
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	// Name is the database name, or the file path for sqlite.
	Name    string `yaml:"name" env:"NAME"`
	SSLMode string `yaml:"ssl_mode" env:"SSL_MODE"`

	MaxOpenConns        int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns        int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime     time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	ConnMaxIdleTime     time.Duration `yaml:"conn_max_idle_time" env:"CONN_MAX_IDLE_TIME"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval" env:"HEALTH_CHECK_INTERVAL"`

	MigrationsTable string `yaml:"migrations_table" env:"MIGRATIONS_TABLE"`
	// AutoMigrate lets gorm create the history table on startup instead of
	// running "finagent migrate up".
	AutoMigrate bool `yaml:"auto_migrate" env:"AUTO_MIGRATE"`

	// History writes happen off the request path on a small worker pool.
	HistoryWorkers      int           `yaml:"history_workers" env:"HISTORY_WORKERS"`
	HistoryQueueSize    int           `yaml:"history_queue_size" env:"HISTORY_QUEUE_SIZE"`
	HistoryWriteTimeout time.Duration `yaml:"history_write_timeout" env:"HISTORY_WRITE_TIMEOUT"`
}

// Enabled reports whether a database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Driver != ""
}

// DSN returns the driver-specific connection string.
func (d DatabaseConfig) DSN() string {
	switch strings.ToLower(d.Driver) {
	case "postgres", "postgresql", "pg":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql", "mariadb":
		// multiStatements lets golang-migrate apply multi-statement files.
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite", "sqlite3":
		return d.Name
	default:
		return ""
	}
}

// LogConfig configures the root zap logger.
type LogConfig struct {
	// Level is debug, info, warn or error. It can be changed at runtime by
	// editing the config file.
	Level            string   `yaml:"level" env:"LEVEL"`
	Format           string   `yaml:"format" env:"FORMAT"`
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
	Insecure     bool    `yaml:"insecure" env:"INSECURE"`
}

// Providers accepted in llm.provider.
var knownProviders = map[string]bool{
	"openaicompat": true,
	"openai":       true,
	"llamacpp":     true,
	"vllm":         true,
	"ollama":       true,
}

var knownDrivers = map[string]bool{
	"":           true,
	"postgres":   true,
	"postgresql": true,
	"pg":         true,
	"mysql":      true,
	"mariadb":    true,
	"sqlite":     true,
	"sqlite3":    true,
}

// Validate reports every problem found, joined into one error.
func (c *Config) Validate() error {
	var errs []string

	validPort := func(name string, p int) {
		if p <= 0 || p > 65535 {
			errs = append(errs, fmt.Sprintf("invalid %s: %d", name, p))
		}
	}
	validPort("server.http_port", c.Server.HTTPPort)
	if c.Server.MetricsPort != 0 {
		validPort("server.metrics_port", c.Server.MetricsPort)
		if c.Server.MetricsPort == c.Server.HTTPPort {
			errs = append(errs, "server.metrics_port must differ from server.http_port")
		}
	}
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		errs = append(errs, "server.tls_cert_file and server.tls_key_file must be set together")
	}
	if c.Server.RateLimitRPS < 0 || c.Server.RateLimitBurst < 0 {
		errs = append(errs, "server rate limits must not be negative")
	}

	if c.Agent.MaxIterations <= 0 {
		errs = append(errs, "agent.max_iterations must be positive")
	}
	if c.Agent.Temperature < 0 || c.Agent.Temperature > 2 {
		errs = append(errs, "agent.temperature must be between 0 and 2")
	}
	if c.Agent.MaxTokens <= 0 {
		errs = append(errs, "agent.max_tokens must be positive")
	}
	if c.Agent.ContextWindow < 0 {
		errs = append(errs, "agent.context_window must not be negative")
	}
	if c.Agent.MaxConcurrentRuns <= 0 {
		errs = append(errs, "agent.max_concurrent_runs must be positive")
	}
	switch c.Agent.Tokenizer {
	case "", "tiktoken", "estimator":
	default:
		errs = append(errs, fmt.Sprintf("unknown agent.tokenizer %q", c.Agent.Tokenizer))
	}

	if !knownProviders[strings.ToLower(c.LLM.Provider)] {
		errs = append(errs, fmt.Sprintf("unknown llm.provider %q", c.LLM.Provider))
	}
	if c.LLM.MaxRetries < 0 {
		errs = append(errs, "llm.max_retries must not be negative")
	}

	if !knownDrivers[strings.ToLower(c.Database.Driver)] {
		errs = append(errs, fmt.Sprintf("unknown database.driver %q", c.Database.Driver))
	}
	if c.Database.Enabled() && c.Database.Name == "" {
		errs = append(errs, "database.name is required when a driver is set")
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, "telemetry.sample_rate must be between 0 and 1")
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"server.read_timeout", c.Server.ReadTimeout},
		{"server.write_timeout", c.Server.WriteTimeout},
		{"server.idle_timeout", c.Server.IdleTimeout},
		{"server.shutdown_timeout", c.Server.ShutdownTimeout},
		{"agent.completion_timeout", c.Agent.CompletionTimeout},
		{"agent.queue_timeout", c.Agent.QueueTimeout},
		{"llm.timeout", c.LLM.Timeout},
		{"tools.dispatch_timeout", c.Tools.DispatchTimeout},
		{"tools.quote.timeout", c.Tools.Quote.Timeout},
		{"tools.quote.cache_ttl", c.Tools.Quote.CacheTTL},
		{"tools.quote.breaker_reset_timeout", c.Tools.Quote.BreakerResetTimeout},
		{"database.health_check_interval", c.Database.HealthCheckInterval},
		{"database.history_write_timeout", c.Database.HistoryWriteTimeout},
	}
	for _, d := range durations {
		if d.d < 0 {
			errs = append(errs, d.name+" must not be negative")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
