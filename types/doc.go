// Copyright (c) finagent Authors.
// Licensed under the MIT License.

/*
Package types provides the shared, dependency-free types of finagent.

# Overview

types sits at the bottom of the import graph. The tool registry, the
reasoning loop, the LLM providers and the HTTP handlers all agree on the
error model and chat message shape defined here.

# Core types

  - Error / ErrorCode: structured errors carrying an HTTP status, a
    Retryable flag and an optional Provider tag
  - Message / Role: chat messages exchanged with a text generator

# Helpers

  - AsError / IsErrorCode / GetErrorCode / IsRetryable walk the error chain
  - WrapError converts foreign errors without losing an existing *Error
*/
package types
