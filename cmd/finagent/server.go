package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/BaSui01/finagent/agent"
	"github.com/BaSui01/finagent/api/handlers"
	"github.com/BaSui01/finagent/config"
	"github.com/BaSui01/finagent/internal/cache"
	"github.com/BaSui01/finagent/internal/circuitbreaker"
	"github.com/BaSui01/finagent/internal/database"
	"github.com/BaSui01/finagent/internal/metrics"
	"github.com/BaSui01/finagent/internal/migration"
	"github.com/BaSui01/finagent/internal/pool"
	"github.com/BaSui01/finagent/internal/server"
	"github.com/BaSui01/finagent/internal/telemetry"
	"github.com/BaSui01/finagent/internal/tlsutil"
	"github.com/BaSui01/finagent/llm"
	llmfactory "github.com/BaSui01/finagent/llm/factory"
	"github.com/BaSui01/finagent/llm/tokenizer"
	"github.com/BaSui01/finagent/llm/tools"
	"github.com/BaSui01/finagent/llm/tools/builtin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// application holds every long-lived component of the serve command.
type application struct {
	cfg       *config.Config
	logger    *zap.Logger
	collector *metrics.Collector

	provider   llm.Provider
	registry   *tools.Registry
	dispatcher *tools.Dispatcher
	service    *agent.Service

	db          *database.PoolManager
	history     *database.HistoryStore
	historyPool *pool.WorkerPool
	cache       *cache.Manager

	health *handlers.HealthHandler
}

// newApplication wires the components described by cfg. Redis and the
// database are optional; a Redis outage at startup disables the quote cache
// instead of failing.
func newApplication(ctx context.Context, cfg *config.Config, collector *metrics.Collector, logger *zap.Logger) (*application, error) {
	a := &application{
		cfg:       cfg,
		logger:    logger,
		collector: collector,
		health:    handlers.NewHealthHandler(logger),
	}
	ok := false
	defer func() {
		if !ok {
			a.close(context.Background())
		}
	}()

	if cfg.Redis.Enabled {
		a.initCache()
	}
	if cfg.Database.Enabled() {
		if err := a.initHistory(ctx); err != nil {
			return nil, err
		}
	}
	if err := a.initTools(); err != nil {
		return nil, err
	}
	if err := a.initAgent(); err != nil {
		return nil, err
	}

	ok = true
	return a, nil
}

func (a *application) initCache() {
	rc := a.cfg.Redis
	m, err := cache.NewManager(cache.Config{
		Addr:                rc.Addr,
		Password:            rc.Password,
		DB:                  rc.DB,
		KeyPrefix:           rc.KeyPrefix,
		DefaultTTL:          a.cfg.Tools.Quote.CacheTTL,
		MaxRetries:          3,
		PoolSize:            rc.PoolSize,
		MinIdleConns:        rc.MinIdleConns,
		TLSEnabled:          rc.TLSEnabled,
		HealthCheckInterval: 30 * time.Second,
	}, a.logger)
	if err != nil {
		a.logger.Warn("redis unavailable, quote cache disabled", zap.String("addr", rc.Addr), zap.Error(err))
		return
	}
	a.cache = m
	a.health.RegisterCheck(handlers.CheckFunc{CheckName: "redis", Fn: m.Ping})
}

func (a *application) initHistory(ctx context.Context) error {
	dc := a.cfg.Database
	if dc.AutoMigrate {
		if err := migrateUp(ctx, a.cfg, a.logger); err != nil {
			return err
		}
	}

	gdb, err := database.Open(dc.Driver, dc.DSN(), a.logger)
	if err != nil {
		return err
	}
	pm, err := database.NewPoolManager(gdb, database.PoolConfig{
		MaxIdleConns:        dc.MaxIdleConns,
		MaxOpenConns:        dc.MaxOpenConns,
		ConnMaxLifetime:     dc.ConnMaxLifetime,
		ConnMaxIdleTime:     dc.ConnMaxIdleTime,
		HealthCheckInterval: dc.HealthCheckInterval,
	}, a.logger, database.WithStatsHook(func(s database.PoolStats) {
		a.collector.RecordDBConnections(dc.Driver, s.OpenConnections, s.Idle)
	}))
	if err != nil {
		if sqlDB, dbErr := gdb.DB(); dbErr == nil {
			sqlDB.Close()
		}
		return fmt.Errorf("database pool: %w", err)
	}
	a.db = pm
	a.history = database.NewHistoryStore(pm.DB(), a.logger)
	a.historyPool = pool.New(pool.Config{Workers: dc.HistoryWorkers, QueueSize: dc.HistoryQueueSize}, a.logger)
	a.health.RegisterCheck(handlers.CheckFunc{CheckName: "database", Fn: pm.Ping})
	return nil
}

func migrateUp(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	m, err := migration.NewMigratorFromConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	defer m.Close()
	if err := m.Up(ctx); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	return nil
}

func (a *application) initTools() error {
	tc := a.cfg.Tools
	var loc *time.Location
	if tc.Timezone != "" {
		l, err := time.LoadLocation(tc.Timezone)
		if err != nil {
			return fmt.Errorf("tools.timezone: %w", err)
		}
		loc = l
	}

	a.registry = tools.NewRegistry(a.logger)
	err := builtin.RegisterAll(a.registry, builtin.Dependencies{
		Time:   builtin.TimeConfig{Location: loc},
		Quote:  a.quoteConfig(),
		Files:  builtin.FileConfig{UploadDir: tc.UploadDir, RestrictToUploadDir: tc.RestrictToUploadDir},
		Logger: a.logger,
	})
	if err != nil {
		return err
	}
	a.registry.Freeze()

	opts := []tools.DispatcherOption{
		tools.WithTracer(telemetry.Tracer()),
		tools.WithMaxTimeout(tc.DispatchTimeout),
	}
	if a.collector != nil {
		opts = append(opts, tools.WithObserver(a.collector))
	}
	a.dispatcher = tools.NewDispatcher(a.registry, a.logger, opts...)
	return nil
}

// quoteConfig serves demo prices unless an Alpha Vantage key is set.
func (a *application) quoteConfig() builtin.QuoteConfig {
	qc := a.cfg.Tools.Quote
	out := builtin.QuoteConfig{Timeout: qc.Timeout}
	if a.collector != nil {
		out.Observer = a.collector
	}
	if qc.APIKey == "" {
		a.logger.Info("quote api key not set, serving demo prices")
		return out
	}

	out.Source = builtin.NewAlphaVantageSource(builtin.AlphaVantageConfig{
		APIKey:            qc.APIKey,
		BaseURL:           qc.BaseURL,
		Timeout:           qc.Timeout,
		RequestsPerMinute: qc.RequestsPerMinute,
	}, a.logger)
	out.Breaker = circuitbreaker.New(circuitbreaker.Config{
		Threshold:        qc.BreakerThreshold,
		Timeout:          qc.Timeout,
		ResetTimeout:     qc.BreakerResetTimeout,
		HalfOpenMaxCalls: 1,
		IsFailure:        builtin.QuoteBreakerFailure,
		OnStateChange: func(_, to circuitbreaker.State) {
			if a.collector != nil {
				a.collector.RecordBreakerState("quote", to.String())
			}
		},
	}, a.logger)
	if a.cache != nil {
		out.Cache = cache.NewQuoteCache(a.cache, qc.CacheTTL)
	}
	return out
}

func (a *application) initAgent() error {
	ac, lc := a.cfg.Agent, a.cfg.LLM
	p, err := llmfactory.NewProviderFromConfig(lc.Provider, llmfactory.ProviderConfig{
		BaseURL:       lc.BaseURL,
		APIKey:        lc.APIKey,
		Model:         ac.Model,
		Timeout:       lc.Timeout,
		MaxRetries:    lc.MaxRetries,
		ContextWindow: ac.ContextWindow,
		GPULayers:     lc.GPULayers,
	}, a.logger)
	if err != nil {
		return err
	}
	a.provider = llm.Wrap(p,
		llm.RecoveryMiddleware(func(v any) {
			a.logger.Error("provider panic", zap.Any("panic", v))
		}),
		llm.LoggingMiddleware(a.logger),
		llm.MetricsMiddleware(p.Name(), a.collector),
	)
	a.health.RegisterCheck(handlers.CheckFunc{CheckName: "llm", Fn: func(ctx context.Context) error {
		st, err := a.provider.HealthCheck(ctx)
		if err != nil {
			return err
		}
		if !st.Healthy {
			return errors.New("provider reported unhealthy")
		}
		return nil
	}})

	tok := tokenizer.New(tokenizer.Kind(ac.Tokenizer), ac.TokenizerEncoding, ac.ContextWindow, a.logger)
	exec, err := agent.NewExecutor(a.provider, a.dispatcher, agent.Config{
		Model:         ac.Model,
		MaxIterations: ac.MaxIterations,
		Temperature:   float32(ac.Temperature),
		MaxTokens:     ac.MaxTokens,
		ContextWindow: ac.ContextWindow,
		StrictParsing: ac.StrictParsing,
		Timeout:       ac.CompletionTimeout,
	}, a.logger, agent.WithTokenizer(tok))
	if err != nil {
		return err
	}

	opts := []agent.ServiceOption{agent.WithRunObserver(a.collector)}
	if a.history != nil {
		opts = append(opts, agent.WithHistory(
			database.NewAsyncRecorder(a.history, a.historyPool, a.cfg.Database.HistoryWriteTimeout)))
	}
	a.service = agent.NewService(exec, agent.ServiceConfig{
		MaxConcurrentRuns: ac.MaxConcurrentRuns,
		QueueTimeout:      ac.QueueTimeout,
	}, a.logger, opts...)
	return nil
}

// routes builds the API mux wrapped in the middleware chain.
func (a *application) routes(ctx context.Context) http.Handler {
	sc := a.cfg.Server
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", a.health.HandleHealth)
	mux.HandleFunc("GET /healthz", a.health.HandleHealth)
	mux.HandleFunc("GET /ready", a.health.HandleReady)
	mux.HandleFunc("GET /readyz", a.health.HandleReady)
	mux.HandleFunc("GET /version", a.health.HandleVersion(handlers.BuildInfo{
		Version: Version, BuildTime: BuildTime, GitCommit: GitCommit,
	}))

	query := handlers.NewQueryHandler(a.service, a.cfg.Tools.UploadDir, a.logger)
	upload := handlers.NewUploadHandler(a.cfg.Tools.UploadDir, sc.MaxUploadBytes, a.logger)
	toolsH := handlers.NewToolsHandler(a.dispatcher, a.logger)
	mux.HandleFunc("POST /query", query.HandleQuery)
	mux.HandleFunc("POST /upload", upload.HandleUpload)
	mux.HandleFunc("GET /api/v1/tools", toolsH.HandleList)
	mux.HandleFunc("POST /api/v1/tools/invoke", toolsH.HandleInvoke)

	if a.history != nil {
		hist := handlers.NewHistoryHandler(a.history, database.ErrRecordNotFound, a.logger)
		mux.HandleFunc("GET /api/v1/queries", hist.HandleList)
		mux.HandleFunc("GET /api/v1/queries/{id}", hist.HandleGet)
	}

	var creds []Credential
	if len(sc.APIKeys) > 0 {
		creds = append(creds, APIKey(sc.APIKeys))
	}
	if sc.JWTSecret != "" {
		creds = append(creds, JWT(JWTConfig{Secret: sc.JWTSecret, Issuer: sc.JWTIssuer}, a.logger))
	}
	a.logger.Info("http routes ready", zap.String("auth", describeAuth(sc.APIKeys, sc.JWTSecret)), zap.Bool("history", a.history != nil))

	return Chain(mux,
		Recovery(a.logger),
		RequestID(),
		SecurityHeaders(),
		OTelTracing(telemetry.Tracer()),
		Metrics(a.collector),
		RequestLogger(a.logger),
		CORS(sc.CORSAllowedOrigins),
		RateLimiter(ctx, sc.RateLimitRPS, sc.RateLimitBurst, publicPaths, a.logger),
		Auth(creds, publicPaths, a.logger),
	)
}

// managers returns the API server and the metrics server.
func (a *application) managers(ctx context.Context) ([]*server.Manager, error) {
	sc := a.cfg.Server
	apiCfg := server.Config{
		Name:            "api",
		Addr:            fmt.Sprintf(":%d", sc.HTTPPort),
		ReadTimeout:     sc.ReadTimeout,
		WriteTimeout:    sc.WriteTimeout,
		IdleTimeout:     sc.IdleTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: sc.ShutdownTimeout,
	}
	if sc.TLSCertFile != "" {
		tlsCfg, err := tlsutil.ServerConfig(sc.TLSCertFile, sc.TLSKeyFile)
		if err != nil {
			return nil, err
		}
		apiCfg.TLS = tlsCfg
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", promhttp.Handler())
	metricsCfg := server.DefaultConfig()
	metricsCfg.Name = "metrics"
	metricsCfg.Addr = fmt.Sprintf(":%d", sc.MetricsPort)
	metricsCfg.ShutdownTimeout = sc.ShutdownTimeout

	return []*server.Manager{
		server.NewManager(a.routes(ctx), apiCfg, a.logger),
		server.NewManager(metricsMux, metricsCfg, a.logger),
	}, nil
}

// close releases resources in reverse dependency order. Queued history
// writes are drained before the database closes.
func (a *application) close(ctx context.Context) {
	if a.historyPool != nil {
		if err := a.historyPool.Close(ctx); err != nil {
			a.logger.Warn("history writes dropped at shutdown", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("close database", zap.Error(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
}

// runServe loads config, starts both servers and blocks until ctx ends.
func runServe(ctx context.Context, cfg *config.Config, reloader *config.LevelReloader, logger *zap.Logger) error {
	logger.Info("starting finagent",
		zap.String("version", Version),
		zap.String("git_commit", GitCommit),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("model", cfg.Agent.Model))

	providers, err := telemetry.Init(ctx, cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("telemetry disabled", zap.Error(err))
	}
	defer func() {
		if providers == nil {
			return
		}
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(sctx); err != nil {
			logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	app, err := newApplication(ctx, cfg, metrics.NewCollector("finagent", logger), logger)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		app.close(sctx)
	}()

	if reloader != nil {
		if err := reloader.Start(ctx); err != nil {
			logger.Warn("config watcher not started", zap.Error(err))
		} else {
			defer reloader.Stop()
		}
	}

	managers, err := app.managers(ctx)
	if err != nil {
		return err
	}
	return server.Run(ctx, logger, managers...)
}
