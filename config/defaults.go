package config

import "time"

// DefaultConfig returns a configuration that runs against a local
// llama.cpp server with history in a sqlite file and no Redis.
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Agent:     DefaultAgentConfig(),
		LLM:       DefaultLLMConfig(),
		Tools:     DefaultToolsConfig(),
		Redis:     DefaultRedisConfig(),
		Database:  DefaultDatabaseConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:           8000,
		MetricsPort:        9091,
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       5 * time.Minute,
		IdleTimeout:        2 * time.Minute,
		ShutdownTimeout:    15 * time.Second,
		MaxUploadBytes:     20 << 20,
		CORSAllowedOrigins: []string{"*"},
		RateLimitRPS:       5,
		RateLimitBurst:     10,
	}
}

// DefaultAgentConfig matches a small local model: two iterations and a
// 1024 token window.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		Model:             "mistral-7b-instruct",
		MaxIterations:     2,
		Temperature:       0.3,
		MaxTokens:         1024,
		ContextWindow:     1024,
		MaxConcurrentRuns: 1,
		QueueTimeout:      30 * time.Second,
		Tokenizer:         "tiktoken",
		TokenizerEncoding: "cl100k_base",
	}
}

func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:   "llamacpp",
		BaseURL:    "http://127.0.0.1:8080",
		Timeout:    2 * time.Minute,
		MaxRetries: 2,
	}
}

func DefaultToolsConfig() ToolsConfig {
	return ToolsConfig{
		DispatchTimeout:     30 * time.Second,
		UploadDir:           "uploads",
		RestrictToUploadDir: true,
		Quote: QuoteConfig{
			BaseURL:             "https://www.alphavantage.co",
			Timeout:             5 * time.Second,
			RequestsPerMinute:   5,
			CacheTTL:            time.Minute,
			BreakerThreshold:    5,
			BreakerResetTimeout: 30 * time.Second,
		},
	}
}

func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		KeyPrefix:    "finagent:",
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:              "sqlite",
		Name:                "finagent.db",
		SSLMode:             "disable",
		MaxOpenConns:        10,
		MaxIdleConns:        2,
		ConnMaxLifetime:     time.Hour,
		ConnMaxIdleTime:     10 * time.Minute,
		HealthCheckInterval: 30 * time.Second,
		MigrationsTable:     "schema_migrations",
		AutoMigrate:         true,
		HistoryWorkers:      2,
		HistoryQueueSize:    256,
		HistoryWriteTimeout: 5 * time.Second,
	}
}

func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:        "info",
		Format:       "json",
		OutputPaths:  []string{"stdout"},
		EnableCaller: true,
	}
}

func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "finagent",
		SampleRate:   0.1,
		Insecure:     true,
	}
}
