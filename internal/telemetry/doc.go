// Copyright 2026 finagent Authors. All rights reserved.
// Use of this source code is governed by a MIT license that can be
// found in the LICENSE file.

// Package telemetry sets up OpenTelemetry tracing and metrics export over
// OTLP/gRPC. Tool dispatch spans and HTTP server spans use Tracer.
package telemetry
