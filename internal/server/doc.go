// Copyright 2026 finagent Authors. All rights reserved.
// Use of this source code is governed by a MIT license that can be
// found in the LICENSE file.

// Package server manages http.Server lifecycles: non-blocking Start,
// optional TLS listeners, graceful Shutdown and Run, which serves the API
// and metrics servers together until the context is cancelled.
package server
