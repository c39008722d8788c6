package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BaSui01/finagent/llm/tools/builtin"
)

var _ builtin.QuoteCache = (*QuoteCache)(nil)

// QuoteCache keeps live prices for a short TTL.
type QuoteCache struct {
	m   *Manager
	ttl time.Duration
}

// NewQuoteCache stores prices through m. A zero ttl uses the manager default.
func NewQuoteCache(m *Manager, ttl time.Duration) *QuoteCache {
	return &QuoteCache{m: m, ttl: ttl}
}

func (c *QuoteCache) key(symbol string) string {
	return c.m.Key("quote:" + strings.ToUpper(symbol))
}

// GetQuote implements builtin.QuoteCache.
func (c *QuoteCache) GetQuote(ctx context.Context, symbol string) (float64, bool, error) {
	raw, err := c.m.Get(ctx, c.key(symbol))
	if IsCacheMiss(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("cached price for %s: %w", symbol, err)
	}
	return price, true, nil
}

// SetQuote implements builtin.QuoteCache.
func (c *QuoteCache) SetQuote(ctx context.Context, symbol string, price float64) error {
	return c.m.Set(ctx, c.key(symbol), strconv.FormatFloat(price, 'f', -1, 64), c.ttl)
}
