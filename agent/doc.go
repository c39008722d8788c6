// Copyright 2026 finagent Authors. All rights reserved.
// Use of this source code is governed by a MIT license that can be
// found in the LICENSE file.

/*
Package agent runs the text-based ReAct loop that answers finance questions
with the built-in tools.

# Flow

	Service.Query
	   │  compose question (+ "File: <path>")
	   ▼
	Executor.Run ──► Provider.Completion ──► Parse
	   ▲                                      │
	   │        Observation                   ▼
	   └──────────────────────────── Dispatcher.Dispatch
	   │
	   ▼
	AgentResult (Finished | Trace) ──► Normalize ──► Response

The loop renders the prompt template with the tool list and a scratchpad of
earlier steps, asks the provider for the next Thought/Action, and feeds the
tool's observation back in. It stops when the model writes "Final Answer:",
calls the Final Answer tool, or reaches the iteration cap. In the last case
the result is a Trace and Normalize answers with the last observation.

Parse errors are sent back to the model as observations so it can correct
its format on the next iteration.
*/
package agent
