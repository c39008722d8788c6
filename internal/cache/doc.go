// Copyright 2026 finagent Authors. All rights reserved.
// Use of this source code is governed by a MIT license that can be
// found in the LICENSE file.

/*
Package cache wraps a go-redis client for finagent.

Manager owns the connection: it pings on start, runs an optional background
health check and closes the pool on shutdown. QuoteCache stores recent live
stock prices under "<prefix>quote:<SYMBOL>" with a short TTL so repeated
questions about the same ticker do not spend the quote API's rate limit.

ErrCacheMiss is returned by Get when a key is absent; QuoteCache reports a
miss as ok=false instead.
*/
package cache
