// Copyright 2026 finagent Authors. All rights reserved.
// Use of this source code is governed by a MIT license that can be
// found in the LICENSE file.

/*
Package database stores query history with GORM.

Open connects to postgres, mysql or sqlite (pure Go, no cgo). PoolManager
applies database/sql pool limits, runs a background ping loop and offers
transactions with retry on deadlocks and dropped connections.

HistoryStore implements agent.HistoryRecorder over the query_history table
and serves the listing and lookup behind the history endpoints. Steps are
stored as a JSON column; the raw model output kept for the scratchpad is not
persisted.
*/
package database
