package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/BaSui01/finagent/internal/tlsutil"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// AlphaVantageConfig configures the Alpha Vantage GLOBAL_QUOTE source.
type AlphaVantageConfig struct {
	APIKey            string
	BaseURL           string        // defaults to https://www.alphavantage.co
	Timeout           time.Duration // HTTP client timeout, defaults to 5s
	RequestsPerMinute int           // defaults to 5 (free tier)
}

// AlphaVantageSource is a QuoteSource backed by Alpha Vantage.
type AlphaVantageSource struct {
	cfg     AlphaVantageConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewAlphaVantageSource creates the source.
func NewAlphaVantageSource(cfg AlphaVantageConfig, logger *zap.Logger) *AlphaVantageSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.alphavantage.co"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlphaVantageSource{
		cfg:     cfg,
		client:  tlsutil.HTTPClient(cfg.Timeout),
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
		logger:  logger.With(zap.String("component", "quote_source"), zap.String("source", "alphavantage")),
	}
}

// Name implements QuoteSource.
func (s *AlphaVantageSource) Name() string { return "alphavantage" }

type globalQuoteResponse struct {
	GlobalQuote  map[string]string `json:"Global Quote"`
	Note         string            `json:"Note"`
	Information  string            `json:"Information"`
	ErrorMessage string            `json:"Error Message"`
}

// Quote implements QuoteSource.
func (s *AlphaVantageSource) Quote(ctx context.Context, symbol string) (float64, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("%w: local limit: %v", ErrQuoteThrottled, err)
	}

	q := url.Values{}
	q.Set("function", "GLOBAL_QUOTE")
	q.Set("symbol", symbol)
	q.Set("apikey", s.cfg.APIKey)
	endpoint := strings.TrimRight(s.cfg.BaseURL, "/") + "/query?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("build quote request: %w", err)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("quote request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("quote request: unexpected status %d", resp.StatusCode)
	}

	var body globalQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode quote response: %w", err)
	}
	s.logger.Debug("quote fetched", zap.String("symbol", symbol), zap.Duration("latency", time.Since(start)))

	switch {
	case body.ErrorMessage != "":
		return 0, fmt.Errorf("%w: %s", ErrNoQuote, body.ErrorMessage)
	case body.Note != "":
		return 0, fmt.Errorf("%w: %s", ErrQuoteThrottled, body.Note)
	case body.Information != "":
		return 0, fmt.Errorf("quote source refused: %s", body.Information)
	case len(body.GlobalQuote) == 0:
		return 0, ErrNoQuote
	}

	raw, ok := body.GlobalQuote["05. price"]
	if !ok || raw == "" {
		return 0, ErrNoQuote
	}
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse quote price %q: %w", raw, err)
	}
	return price, nil
}
