package tlsutil

import (
	"crypto/tls"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTLSConfig(t *testing.T) {
	cfg := DefaultTLSConfig()
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	assert.ElementsMatch(t, aeadSuites, cfg.CipherSuites)

	// Callers get their own copy.
	cfg.CipherSuites[0] = 0
	assert.NotEqual(t, uint16(0), DefaultTLSConfig().CipherSuites[0])
}

func TestHTTPClient(t *testing.T) {
	c := HTTPClient(15 * time.Second)
	assert.Equal(t, 15*time.Second, c.Timeout)

	tr, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	require.NotNil(t, tr.TLSClientConfig)
	assert.Equal(t, uint16(tls.VersionTLS12), tr.TLSClientConfig.MinVersion)
	assert.NotNil(t, tr.Proxy)
}

func TestClientConfig(t *testing.T) {
	assert.Nil(t, ClientConfig(false, "redis.internal"))

	cfg := ClientConfig(true, "redis.internal")
	require.NotNil(t, cfg)
	assert.Equal(t, "redis.internal", cfg.ServerName)
}

func TestServerConfig(t *testing.T) {
	cfg, err := ServerConfig("", "")
	assert.NoError(t, err)
	assert.Nil(t, cfg)

	_, err = ServerConfig("cert.pem", "")
	assert.ErrorContains(t, err, "both cert_file and key_file")

	_, err = ServerConfig("/nope/cert.pem", "/nope/key.pem")
	assert.ErrorContains(t, err, "load key pair")
}
