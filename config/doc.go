// Copyright 2026 finagent Authors. All rights reserved.
// Use of this source code is governed by a MIT license that can be
// found in the LICENSE file.

/*
Package config loads the finagent configuration.

Values come from DefaultConfig, then an optional YAML file, then environment
variables named after the env struct tags under the FINAGENT prefix, for
example FINAGENT_LLM_BASE_URL or FINAGENT_TOOLS_QUOTE_API_KEY. Slices are
comma separated and durations use time.ParseDuration syntax.

The loaded Config is passed explicitly to constructors at startup. The only
setting applied at runtime is log.level, through LevelReloader.
*/
package config
