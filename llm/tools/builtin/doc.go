// Package builtin implements the tools finagent registers at startup.
//
// Every handler is total: failures come back as descriptive text so the
// reasoning loop can read them, never as panics or errors. Configuration
// (API keys, upload directory, clock) is passed to the constructors.
package builtin
