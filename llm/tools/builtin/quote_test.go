package builtin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BaSui01/finagent/internal/circuitbreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubSource struct {
	calls atomic.Int32
	price float64
	err   error
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Quote(context.Context, string) (float64, error) {
	s.calls.Add(1)
	return s.price, s.err
}

type mapCache struct {
	mu     sync.Mutex
	prices map[string]float64
	err    error
}

func (c *mapCache) GetQuote(_ context.Context, symbol string) (float64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, false, c.err
	}
	p, ok := c.prices[symbol]
	return p, ok, nil
}

func (c *mapCache) SetQuote(_ context.Context, symbol string, price float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.prices == nil {
		c.prices = map[string]float64{}
	}
	c.prices[symbol] = price
	return nil
}

type quoteEvents struct {
	mu     sync.Mutex
	events []string
}

func (q *quoteEvents) ObserveQuoteLookup(source, result string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, source+":"+result)
}

func TestQuoteTool_Demo(t *testing.T) {
	events := &quoteEvents{}
	q := NewQuoteTool(QuoteConfig{Observer: events}, zap.NewNop())
	ctx := context.Background()

	assert.Equal(t, "The current price of AAPL is $175.2 (demo).", q.Lookup(ctx, "aapl"))
	assert.Equal(t, "The current price of MSFT is $415.5 (demo).", q.Lookup(ctx, " $msft "))
	assert.Equal(t, "No data for ZZZZ.", q.Lookup(ctx, "ZZZZ"))
	assert.Equal(t, "Please provide a stock symbol.", q.Lookup(ctx, "  "))
	assert.Equal(t, []string{"demo:hit", "demo:hit", "demo:miss"}, events.events)
}

func TestQuoteTool_Spec(t *testing.T) {
	spec := NewQuoteTool(QuoteConfig{}, nil).Spec()
	assert.Equal(t, "Stock Price", spec.Name)
	assert.NotEmpty(t, spec.Description)
	assert.Equal(t, "The current price of TSLA is $245.7 (demo).", spec.Handler(context.Background(), "'TSLA'"))
}

func TestNormalizeSymbol(t *testing.T) {
	assert.Equal(t, "AAPL", NormalizeSymbol(`"aapl"`))
	assert.Equal(t, "BRK.B", NormalizeSymbol(" brk.b "))
	assert.Equal(t, "", NormalizeSymbol("$"))
}

func TestQuoteTool_Live(t *testing.T) {
	src := &stubSource{price: 180.25}
	cache := &mapCache{}
	q := NewQuoteTool(QuoteConfig{Source: src, Cache: cache}, zap.NewNop())

	assert.Equal(t, "The current price of AAPL is $180.25.", q.Lookup(context.Background(), "aapl"))
	assert.Equal(t, "The current price of AAPL is $180.25.", q.Lookup(context.Background(), "AAPL"))
	assert.Equal(t, int32(1), src.calls.Load(), "second lookup served from cache")
}

func TestQuoteTool_LiveCacheErrorFallsThrough(t *testing.T) {
	src := &stubSource{price: 10}
	q := NewQuoteTool(QuoteConfig{Source: src, Cache: &mapCache{err: errors.New("redis down")}}, zap.NewNop())

	assert.Equal(t, "The current price of IBM is $10.", q.Lookup(context.Background(), "ibm"))
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestQuoteTool_LiveFailures(t *testing.T) {
	events := &quoteEvents{}

	noQuote := NewQuoteTool(QuoteConfig{Source: &stubSource{err: ErrNoQuote}, Observer: events}, zap.NewNop())
	assert.Equal(t, "No data for ZZZZ.", noQuote.Lookup(context.Background(), "zzzz"))

	broken := NewQuoteTool(QuoteConfig{Source: &stubSource{err: errors.New("connection refused")}, Observer: events}, zap.NewNop())
	assert.Equal(t, "Could not fetch price for AAPL right now.", broken.Lookup(context.Background(), "aapl"))

	assert.Equal(t, []string{"stub:no_data", "stub:error"}, events.events)
}

func TestQuoteTool_BreakerOpens(t *testing.T) {
	src := &stubSource{err: errors.New("503")}
	breaker := circuitbreaker.New(circuitbreaker.Config{
		Threshold:    2,
		ResetTimeout: time.Hour,
		IsFailure:    QuoteBreakerFailure,
	}, zap.NewNop())
	q := NewQuoteTool(QuoteConfig{Source: src, Breaker: breaker}, zap.NewNop())

	for i := 0; i < 4; i++ {
		assert.Equal(t, "Could not fetch price for AAPL right now.", q.Lookup(context.Background(), "AAPL"))
	}
	assert.Equal(t, int32(2), src.calls.Load())
	assert.Equal(t, circuitbreaker.StateOpen, breaker.State())
}

func TestQuoteBreakerFailure(t *testing.T) {
	assert.False(t, QuoteBreakerFailure(ErrNoQuote))
	assert.False(t, QuoteBreakerFailure(fmt.Errorf("%w: bad symbol", ErrNoQuote)))
	assert.False(t, QuoteBreakerFailure(fmt.Errorf("%w: local limit", ErrQuoteThrottled)))
	assert.False(t, QuoteBreakerFailure(fmt.Errorf("quote request: %w", context.Canceled)))
	assert.True(t, QuoteBreakerFailure(errors.New("timeout")))
	assert.True(t, QuoteBreakerFailure(fmt.Errorf("quote request: %w", context.DeadlineExceeded)))
}

func TestQuoteTool_LocalRateLimitKeepsBreakerClosed(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"Global Quote":{"05. price":"100.00"}}`))
	}))
	t.Cleanup(srv.Close)

	// Free tier defaults: 5 requests a minute, burst 1.
	src := NewAlphaVantageSource(AlphaVantageConfig{APIKey: "k", BaseURL: srv.URL}, zap.NewNop())
	breaker := circuitbreaker.New(circuitbreaker.Config{
		Threshold: 5,
		Timeout:   2 * time.Second,
		IsFailure: QuoteBreakerFailure,
	}, zap.NewNop())
	events := &quoteEvents{}
	q := NewQuoteTool(QuoteConfig{Source: src, Breaker: breaker, Observer: events, Timeout: 2 * time.Second}, zap.NewNop())

	assert.Equal(t, "The current price of AAPL is $100.", q.Lookup(context.Background(), "AAPL"))
	for _, sym := range []string{"MSFT", "GOOGL", "AMZN", "TSLA", "NVDA", "META"} {
		assert.Equal(t, "Could not fetch price for "+sym+" right now.", q.Lookup(context.Background(), sym))
	}

	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, circuitbreaker.StateClosed, breaker.State())
	assert.Equal(t, "alphavantage:throttled", events.events[len(events.events)-1])
}

type gatedSource struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	price   float64
}

func (s *gatedSource) Name() string { return "gated" }

func (s *gatedSource) Quote(ctx context.Context, _ string) (float64, error) {
	if s.calls.Add(1) == 1 {
		close(s.started)
	}
	select {
	case <-s.release:
		return s.price, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func TestQuoteTool_SharedFetchOutlivesFirstCaller(t *testing.T) {
	src := &gatedSource{started: make(chan struct{}), release: make(chan struct{}), price: 42}
	cache := &mapCache{}
	q := NewQuoteTool(QuoteConfig{Source: src, Cache: cache, Timeout: 5 * time.Second}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan string, 1)
	go func() { first <- q.Lookup(ctx, "AAPL") }()
	<-src.started

	second := make(chan string, 1)
	go func() { second <- q.Lookup(context.Background(), "AAPL") }()

	cancel()
	assert.Equal(t, "Could not fetch price for AAPL right now.", <-first)

	close(src.release)
	assert.Equal(t, "The current price of AAPL is $42.", <-second)

	assert.Eventually(t, func() bool {
		_, ok, _ := cache.GetQuote(context.Background(), "AAPL")
		return ok
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "The current price of AAPL is $42.", q.Lookup(context.Background(), "AAPL"))
	assert.LessOrEqual(t, src.calls.Load(), int32(2))
}

func newAlphaVantage(t *testing.T, handler http.HandlerFunc) *AlphaVantageSource {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewAlphaVantageSource(AlphaVantageConfig{
		APIKey:            "test-key",
		BaseURL:           srv.URL,
		RequestsPerMinute: 6000,
	}, zap.NewNop())
}

func TestAlphaVantageSource_Quote(t *testing.T) {
	src := newAlphaVantage(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/query", r.URL.Path)
		assert.Equal(t, "GLOBAL_QUOTE", r.URL.Query().Get("function"))
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Global Quote":{"01. symbol":"AAPL","05. price":"175.2000"}}`))
	})

	price, err := src.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 175.2, price)
	assert.Equal(t, "alphavantage", src.Name())
}

func TestAlphaVantageSource_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		noQuote   bool
		errSubstr string
	}{
		{name: "empty quote", status: 200, body: `{"Global Quote":{}}`, noQuote: true},
		{name: "error message", status: 200, body: `{"Error Message":"Invalid API call"}`, noQuote: true},
		{name: "throttled", status: 200, body: `{"Note":"Thank you for using Alpha Vantage"}`, errSubstr: "throttled"},
		{name: "information", status: 200, body: `{"Information":"premium endpoint"}`, errSubstr: "refused"},
		{name: "bad price", status: 200, body: `{"Global Quote":{"05. price":"n/a"}}`, errSubstr: "parse quote price"},
		{name: "bad json", status: 200, body: `not json`, errSubstr: "decode"},
		{name: "server error", status: 502, body: ``, errSubstr: "unexpected status 502"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newAlphaVantage(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := src.Quote(context.Background(), "ZZZZ")
			require.Error(t, err)
			assert.Equal(t, tt.noQuote, errors.Is(err, ErrNoQuote))
			if tt.errSubstr != "" {
				assert.Contains(t, err.Error(), tt.errSubstr)
			}
		})
	}
}

func TestQuoteTool_WithAlphaVantage(t *testing.T) {
	src := newAlphaVantage(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") == "MSFT" {
			_, _ = w.Write([]byte(`{"Global Quote":{"05. price":"420.10"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"Global Quote":{}}`))
	})
	q := NewQuoteTool(QuoteConfig{Source: src}, zap.NewNop())

	assert.Equal(t, "The current price of MSFT is $420.1.", q.Lookup(context.Background(), "msft"))
	assert.Equal(t, "No data for ZZZZ.", q.Lookup(context.Background(), "zzzz"))
}
