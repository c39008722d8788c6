// Copyright 2026 finagent Authors. All rights reserved.
// Use of this source code is governed by a MIT license that can be
// found in the LICENSE file.

/*
Package api holds the request and response types of the finagent HTTP API.

# Endpoints

	POST /query                 {"query", "filename"?} -> {"response"}
	POST /upload                multipart "file" -> {"filename", "size"}
	GET  /api/v1/tools          registered tools
	POST /api/v1/tools/invoke   {"tool", "argument"} -> observation
	GET  /api/v1/queries        recent query history (?limit=N)
	GET  /api/v1/queries/{id}   one history entry
	GET  /health, /healthz      liveness
	GET  /ready, /readyz        readiness with dependency checks
	GET  /version               build information

/query and /upload keep the {"detail": "..."} error body. The /api/v1
endpoints wrap results in the handlers.Response envelope.

# Authentication

When server.api_keys is set every endpoint except the health probes requires
an X-API-Key header. When server.jwt_secret is set an HS256 bearer token is
accepted instead.
*/
package api
