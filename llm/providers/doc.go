// Package providers holds the wire types and error mapping shared by the
// text-generator clients under llm/providers/.
package providers
