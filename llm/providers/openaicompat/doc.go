// Package openaicompat is a client for OpenAI-compatible chat completion
// servers: the llama.cpp HTTP server, vLLM, LM Studio and OpenAI itself.
//
// Usage:
//
//	p := openaicompat.New(openaicompat.Config{
//	    ProviderName: "llamacpp",
//	    BaseURL:      "http://127.0.0.1:8080",
//	    DefaultModel: "mistral-7b-instruct-v0.2.Q4_K_M",
//	}, logger)
package openaicompat
