// Package factory creates llm.Provider values by name so that callers do not
// import every provider package.
package factory
