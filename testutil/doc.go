// Copyright 2026 finagent Authors. All rights reserved.
// Use of this source code is governed by a MIT license that can be
// found in the LICENSE file.

/*
Package testutil holds helpers shared by finagent tests.

  - Context helpers: TestContext / CancelledContext register Cleanup so
    nothing leaks between tests.
  - File helpers: WriteFile writes fixtures into t.TempDir().
  - Async assertions: Eventually polls until a condition holds.

Subpackages:

  - mocks: ScriptedProvider replays model completions in order and
    records every request; Recorder captures observer events.
  - fixtures: canned ReAct completions (Action, FinalAnswer, ...).
*/
package testutil
