// Copyright 2026 finagent Authors. All rights reserved.
// Use of this source code is governed by a MIT license that can be
// found in the LICENSE file.

// Package metrics exports Prometheus series for HTTP traffic, completions,
// tool dispatches, quote lookups, circuit breakers, agent runs and the
// database pool. The series are served on the separate metrics port.
package metrics
