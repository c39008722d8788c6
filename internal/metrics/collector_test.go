package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BaSui01/finagent/agent"
	"github.com/BaSui01/finagent/llm"
	"github.com/BaSui01/finagent/llm/tools"
	"github.com/BaSui01/finagent/llm/tools/builtin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var namespaceSeq uint64

func nextTestNamespace() string {
	return fmt.Sprintf("test_%d", atomic.AddUint64(&namespaceSeq, 1))
}

var (
	_ tools.DispatchObserver = (*Collector)(nil)
	_ builtin.QuoteObserver  = (*Collector)(nil)
	_ agent.RunObserver      = (*Collector)(nil)
	_ llm.MetricsCollector   = (*Collector)(nil)
)

func TestCollector_HTTP(t *testing.T) {
	c := NewCollector(nextTestNamespace(), zap.NewNop())

	c.RecordHTTPRequest("POST", "/query", 200, 120*time.Millisecond, 64)
	c.RecordHTTPRequest("POST", "/query", 201, 80*time.Millisecond, 64)
	c.RecordHTTPRequest("POST", "/query", 500, time.Second, 32)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("POST", "/query", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("POST", "/query", "5xx")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.httpRequestDuration))
}

func TestCollector_ToolDispatch(t *testing.T) {
	c := NewCollector(nextTestNamespace(), zap.NewNop())

	c.ObserveToolDispatch("Calculator", tools.OutcomeOK, time.Millisecond)
	c.ObserveToolDispatch("Calculator", tools.OutcomeOK, time.Millisecond)
	c.ObserveToolDispatch("Foo", tools.OutcomeUnknown, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.toolDispatchTotal.WithLabelValues("Calculator", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.toolDispatchTotal.WithLabelValues("Foo", "unknown_tool")))
}

func TestCollector_QuoteAndBreaker(t *testing.T) {
	c := NewCollector(nextTestNamespace(), zap.NewNop())

	c.ObserveQuoteLookup("demo", "hit")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.quoteLookupsTotal.WithLabelValues("demo", "hit")))

	for state, want := range map[string]float64{"closed": 0, "half_open": 1, "open": 2, "bogus": -1} {
		c.RecordBreakerState("quote", state)
		assert.Equal(t, want, testutil.ToFloat64(c.breakerState.WithLabelValues("quote")), state)
	}
}

func TestCollector_AgentRun(t *testing.T) {
	c := NewCollector(nextTestNamespace(), zap.NewNop())

	c.ObserveAgentRun(agent.SourceFinished, 2, 3*time.Second)
	c.ObserveAgentRun(agent.OutcomeBusy, 0, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.agentRunsTotal.WithLabelValues("finished")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.agentRunsTotal.WithLabelValues("busy")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.agentRunSteps))
}

func TestCollector_LLM(t *testing.T) {
	c := NewCollector(nextTestNamespace(), zap.NewNop())

	c.RecordLLMRequest("llamacpp", "mistral-7b", "success", 2*time.Second)
	c.RecordLLMTokens("llamacpp", "mistral-7b", 300, 40)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.llmRequestsTotal.WithLabelValues("llamacpp", "mistral-7b", "success")))
	assert.Equal(t, 300.0, testutil.ToFloat64(c.llmTokensUsed.WithLabelValues("llamacpp", "mistral-7b", "prompt")))
	assert.Equal(t, 40.0, testutil.ToFloat64(c.llmTokensUsed.WithLabelValues("llamacpp", "mistral-7b", "completion")))
}

func TestCollector_DBConnections(t *testing.T) {
	c := NewCollector(nextTestNamespace(), zap.NewNop())

	c.RecordDBConnections("sqlite", 3, 1)
	assert.Equal(t, 3.0, testutil.ToFloat64(c.dbConnectionsOpen.WithLabelValues("sqlite")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.dbConnectionsIdle.WithLabelValues("sqlite")))
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{200: "2xx", 302: "3xx", 404: "4xx", 503: "5xx", 0: "unknown", 700: "unknown"}
	for code, want := range tests {
		assert.Equal(t, want, statusClass(code), code)
	}
}
