// Copyright 2026 finagent Authors. All rights reserved.
// Use of this source code is governed by a MIT license that can be
// found in the LICENSE file.

/*
Package tools is the facade between a text-driven reasoning loop and the
fixed set of named operations the service exposes.

# Registry

[Registry] maps exact, case-sensitive tool names to [ToolSpec] values. It is
populated once at startup and then frozen; [Registry.Lookup] never corrects a
name (a trailing space is a miss).

# Tool identifiers

[ToolID] is the closed set of tool names the service ships. [ParseToolID]
converts free-form model output into a ToolID at the parse boundary, with
[ToolUnknown] for anything else.

# Dispatch

[Dispatcher.Dispatch] turns an [Invocation] into an [Observation] and never
returns an error: unknown names, handler panics, per-tool rate limits and
timeouts all become an Observation with IsError set so the reasoning loop
can self-correct.
*/
package tools
