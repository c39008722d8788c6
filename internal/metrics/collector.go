package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector owns every Prometheus series the service exports. It satisfies
// the observer interfaces of the dispatcher, the quote tool, the agent
// service and the LLM metrics middleware.
type Collector struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec
	llmTokensUsed      *prometheus.CounterVec

	toolDispatchTotal    *prometheus.CounterVec
	toolDispatchDuration *prometheus.HistogramVec
	quoteLookupsTotal    *prometheus.CounterVec
	breakerState         *prometheus.GaugeVec

	agentRunsTotal   *prometheus.CounterVec
	agentRunDuration *prometheus.HistogramVec
	agentRunSteps    prometheus.Histogram

	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec

	logger *zap.Logger
}

// NewCollector registers the series under namespace on the default registry.
// Registering the same namespace twice panics, so tests use unique names.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{logger: logger.With(zap.String("component", "metrics"))}

	c.httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	c.httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"method", "path"})

	c.httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	c.llmRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "llm_requests_total",
		Help:      "Total number of completion requests",
	}, []string{"provider", "model", "status"})

	c.llmRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "llm_request_duration_seconds",
		Help:      "Completion latency in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"provider", "model"})

	c.llmTokensUsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "llm_tokens_used_total",
		Help:      "Tokens reported by the provider",
	}, []string{"provider", "model", "type"})

	c.toolDispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tool_dispatch_total",
		Help:      "Tool dispatches by tool and outcome",
	}, []string{"tool", "outcome"})

	c.toolDispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "tool_dispatch_duration_seconds",
		Help:      "Tool dispatch latency in seconds",
		Buckets:   []float64{0.0005, 0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30},
	}, []string{"tool"})

	c.quoteLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quote_lookups_total",
		Help:      "Stock price lookups by source and result",
	}, []string{"source", "result"})

	c.breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state: 0 closed, 1 half-open, 2 open",
	}, []string{"name"})

	c.agentRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "agent_runs_total",
		Help:      "Agent runs by outcome",
	}, []string{"outcome"})

	c.agentRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "agent_run_duration_seconds",
		Help:      "Agent run duration in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	}, []string{"outcome"})

	c.agentRunSteps = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "agent_run_steps",
		Help:      "Tool steps taken per agent run",
		Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
	})

	c.dbConnectionsOpen = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_connections_open",
		Help:      "Open database connections",
	}, []string{"database"})

	c.dbConnectionsIdle = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_connections_idle",
		Help:      "Idle database connections",
	}, []string{"database"})

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// RecordHTTPRequest records one served request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusClass(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// RecordLLMRequest implements llm.MetricsCollector.
func (c *Collector) RecordLLMRequest(provider, model, status string, duration time.Duration) {
	c.llmRequestsTotal.WithLabelValues(provider, model, status).Inc()
	c.llmRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// RecordLLMTokens implements llm.MetricsCollector.
func (c *Collector) RecordLLMTokens(provider, model string, promptTokens, completionTokens int) {
	c.llmTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	c.llmTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
}

// ObserveToolDispatch implements tools.DispatchObserver.
func (c *Collector) ObserveToolDispatch(tool, outcome string, duration time.Duration) {
	c.toolDispatchTotal.WithLabelValues(tool, outcome).Inc()
	c.toolDispatchDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// ObserveQuoteLookup implements builtin.QuoteObserver.
func (c *Collector) ObserveQuoteLookup(source, result string) {
	c.quoteLookupsTotal.WithLabelValues(source, result).Inc()
}

// ObserveAgentRun implements agent.RunObserver.
func (c *Collector) ObserveAgentRun(outcome string, steps int, duration time.Duration) {
	c.agentRunsTotal.WithLabelValues(outcome).Inc()
	c.agentRunDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	c.agentRunSteps.Observe(float64(steps))
}

// RecordBreakerState sets the gauge for a breaker; state is the
// circuitbreaker.State string.
func (c *Collector) RecordBreakerState(name, state string) {
	v := -1.0
	switch state {
	case "closed":
		v = 0
	case "half_open":
		v = 1
	case "open":
		v = 2
	}
	c.breakerState.WithLabelValues(name).Set(v)
}

// RecordDBConnections sets the pool gauges.
func (c *Collector) RecordDBConnections(database string, open, idle int) {
	c.dbConnectionsOpen.WithLabelValues(database).Set(float64(open))
	c.dbConnectionsIdle.WithLabelValues(database).Set(float64(idle))
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}
