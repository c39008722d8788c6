// Copyright 2026 finagent Authors. All rights reserved.
// Use of this source code is governed by a MIT license that can be
// found in the LICENSE file.

/*
Package llm defines the text generator the reasoning loop talks to.

# Provider

[Provider] is a single non-streaming completion call plus a health probe.
Implementations live under llm/providers:

  - openaicompat: any server speaking /v1/chat/completions (llama.cpp
    server, vLLM, OpenAI)
  - ollama: a local Ollama daemon

llm/factory builds one from configuration by name.

# Middleware

[Wrap] routes Completion through a [Middleware] chain without changing the
rest of the Provider:

	p = llm.Wrap(p,
	    llm.RecoveryMiddleware(onPanic),
	    llm.LoggingMiddleware(logger),
	    llm.MetricsMiddleware(p.Name(), collector),
	)

# Errors

Providers return *[Error] with an [ErrorCode], HTTP status and a retryable
flag. llm/retry uses the flag to decide whether to try again.
*/
package llm
