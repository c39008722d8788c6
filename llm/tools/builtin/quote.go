package builtin

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BaSui01/finagent/internal/circuitbreaker"
	"github.com/BaSui01/finagent/llm/tools"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrNoQuote means the source answered but has no price for the symbol.
	ErrNoQuote = errors.New("no quote for symbol")
	// ErrQuoteThrottled means the request quota was used up, locally or upstream.
	ErrQuoteThrottled = errors.New("quote source throttled")
)

// QuoteSource fetches a live price.
type QuoteSource interface {
	Quote(ctx context.Context, symbol string) (float64, error)
	Name() string
}

// QuoteCache stores recent live prices.
type QuoteCache interface {
	GetQuote(ctx context.Context, symbol string) (price float64, ok bool, err error)
	SetQuote(ctx context.Context, symbol string, price float64) error
}

// QuoteObserver is told how each lookup was served.
type QuoteObserver interface {
	ObserveQuoteLookup(source, result string)
}

// DemoPrices is served when no live source is configured.
var DemoPrices = map[string]float64{
	"AAPL":  175.2,
	"MSFT":  415.5,
	"GOOGL": 140.1,
	"AMZN":  178.3,
	"TSLA":  245.7,
}

// QuoteConfig configures the Stock Price tool.
type QuoteConfig struct {
	// Source is the live price source. nil serves Demo.
	Source QuoteSource

	// Demo overrides DemoPrices.
	Demo map[string]float64

	// Cache is optional and only used with a live Source.
	Cache QuoteCache

	// Breaker guards Source. nil disables it.
	Breaker *circuitbreaker.Breaker

	// Observer is optional.
	Observer QuoteObserver

	// Timeout bounds one lookup. Defaults to 10s.
	Timeout time.Duration
}

// QuoteTool looks up stock prices.
type QuoteTool struct {
	cfg    QuoteConfig
	demo   map[string]float64
	group  singleflight.Group
	logger *zap.Logger
}

// NewQuoteTool creates the quote tool.
func NewQuoteTool(cfg QuoteConfig, logger *zap.Logger) *QuoteTool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	demo := cfg.Demo
	if demo == nil {
		demo = DemoPrices
	}
	return &QuoteTool{
		cfg:    cfg,
		demo:   demo,
		logger: logger.With(zap.String("tool", tools.ToolStockPrice.String())),
	}
}

// Spec returns the Stock Price tool spec.
func (q *QuoteTool) Spec() tools.ToolSpec {
	return tools.ToolSpec{
		Name:        tools.ToolStockPrice.String(),
		Description: "Get the latest price of a stock. Input: a ticker symbol such as AAPL.",
		Timeout:     q.cfg.Timeout + time.Second,
		Handler:     q.Lookup,
	}
}

// NormalizeSymbol trims quotes, "$" and whitespace and uppercases.
func NormalizeSymbol(arg string) string {
	return strings.ToUpper(strings.Trim(strings.TrimSpace(arg), "\"'`$ "))
}

// Lookup answers a price request for arg. It never fails.
func (q *QuoteTool) Lookup(ctx context.Context, arg string) string {
	symbol := NormalizeSymbol(arg)
	if symbol == "" {
		return "Please provide a stock symbol."
	}

	if q.cfg.Source == nil {
		price, ok := q.demo[symbol]
		if !ok {
			q.observe("demo", "miss")
			return noData(symbol)
		}
		q.observe("demo", "hit")
		return fmt.Sprintf("The current price of %s is $%s (demo).", symbol, formatPrice(price))
	}

	return q.live(ctx, symbol)
}

func (q *QuoteTool) live(ctx context.Context, symbol string) string {
	source := q.cfg.Source.Name()

	if q.cfg.Cache != nil {
		price, ok, err := q.cfg.Cache.GetQuote(ctx, symbol)
		if err != nil {
			q.logger.Warn("quote cache read failed", zap.String("symbol", symbol), zap.Error(err))
		} else if ok {
			q.observe(source, "cache_hit")
			return liveMessage(symbol, price)
		}
	}

	// Concurrent questions about one symbol share a single upstream call. It
	// runs detached from the caller that started it, so one caller leaving
	// does not fail the others.
	ch := q.group.DoChan(symbol, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), q.cfg.Timeout)
		defer cancel()
		price, err := q.fetch(fetchCtx, symbol)
		if err == nil && q.cfg.Cache != nil {
			if err := q.cfg.Cache.SetQuote(fetchCtx, symbol, price); err != nil {
				q.logger.Warn("quote cache write failed", zap.String("symbol", symbol), zap.Error(err))
			}
		}
		return price, err
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		q.observe(source, "cancelled")
		return couldNotFetch(symbol)
	}

	if err := res.Err; err != nil {
		if errors.Is(err, ErrNoQuote) {
			q.observe(source, "no_data")
			return noData(symbol)
		}
		result := "error"
		if errors.Is(err, ErrQuoteThrottled) {
			result = "throttled"
		}
		q.observe(source, result)
		q.logger.Warn("quote lookup failed",
			zap.String("symbol", symbol),
			zap.String("source", source),
			zap.Error(err),
		)
		return couldNotFetch(symbol)
	}

	price := res.Val.(float64)
	q.observe(source, "live")
	return liveMessage(symbol, price)
}

func (q *QuoteTool) fetch(ctx context.Context, symbol string) (float64, error) {
	if q.cfg.Breaker == nil {
		return q.cfg.Source.Quote(ctx, symbol)
	}
	return circuitbreaker.CallWithResult(ctx, q.cfg.Breaker, func(ctx context.Context) (float64, error) {
		return q.cfg.Source.Quote(ctx, symbol)
	})
}

func (q *QuoteTool) observe(source, result string) {
	if q.cfg.Observer != nil {
		q.cfg.Observer.ObserveQuoteLookup(source, result)
	}
}

// QuoteBreakerFailure reports whether err should count against the breaker.
// Unknown symbols, throttling and callers that went away do not.
func QuoteBreakerFailure(err error) bool {
	switch {
	case errors.Is(err, ErrNoQuote), errors.Is(err, ErrQuoteThrottled), errors.Is(err, context.Canceled):
		return false
	default:
		return true
	}
}

func couldNotFetch(symbol string) string {
	return fmt.Sprintf("Could not fetch price for %s right now.", symbol)
}

func noData(symbol string) string {
	return fmt.Sprintf("No data for %s.", symbol)
}

func liveMessage(symbol string, price float64) string {
	return fmt.Sprintf("The current price of %s is $%s.", symbol, formatPrice(price))
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
