// Copyright 2026 finagent Authors. All rights reserved.
// Use of this source code is governed by a MIT license that can be
// found in the LICENSE file.

/*
Package handlers implements the finagent HTTP endpoints on net/http.

QueryHandler and UploadHandler keep the {"detail": "..."} error body of the
query API. ToolsHandler, HistoryHandler and HealthHandler use the Response
envelope written by WriteSuccess and WriteError, which maps types.Error codes
to HTTP status codes.
*/
package handlers
