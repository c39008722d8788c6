// Package tlsutil is the single place TLS settings are defined for outbound
// HTTP clients, the Redis connection and the HTTP server.
package tlsutil
