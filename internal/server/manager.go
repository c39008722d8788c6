package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config configures one http.Server.
type Config struct {
	Name            string
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxHeaderBytes  int
	ShutdownTimeout time.Duration

	// TLS switches the listener to HTTPS when non-nil.
	TLS *tls.Config
}

// DefaultConfig leaves room for slow local-model completions in WriteTimeout.
func DefaultConfig() Config {
	return Config{
		Name:            "http",
		Addr:            ":8000",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    5 * time.Minute,
		IdleTimeout:     120 * time.Second,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Manager runs an http.Server in the background and shuts it down gracefully.
type Manager struct {
	server   *http.Server
	config   Config
	logger   *zap.Logger
	errCh    chan error
	mu       sync.RWMutex
	listener net.Listener
	closed   bool
}

// NewManager creates a Manager for handler.
func NewManager(handler http.Handler, config Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Name == "" {
		config.Name = "http"
	}
	return &Manager{
		server: &http.Server{
			Addr:           config.Addr,
			Handler:        handler,
			ReadTimeout:    config.ReadTimeout,
			WriteTimeout:   config.WriteTimeout,
			IdleTimeout:    config.IdleTimeout,
			MaxHeaderBytes: config.MaxHeaderBytes,
			TLSConfig:      config.TLS,
		},
		config: config,
		logger: logger.With(zap.String("component", "http_server"), zap.String("server", config.Name)),
		errCh:  make(chan error, 1),
	}
}

// Start listens and serves in a goroutine.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("server %s is closed", m.config.Name)
	}
	if m.listener != nil {
		return fmt.Errorf("server %s already started", m.config.Name)
	}

	ln, err := net.Listen("tcp", m.config.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", m.config.Addr, err)
	}
	if m.config.TLS != nil {
		ln = tls.NewListener(ln, m.config.TLS)
	}
	m.listener = ln

	m.logger.Info("server listening",
		zap.String("addr", ln.Addr().String()),
		zap.Bool("tls", m.config.TLS != nil),
	)
	go m.serve(ln)
	return nil
}

func (m *Manager) serve(ln net.Listener) {
	if err := m.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		m.logger.Error("server failed", zap.Error(err))
		select {
		case m.errCh <- err:
		default:
		}
	}
}

// Shutdown drains in-flight requests for up to ShutdownTimeout. Safe to
// call twice.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	if m.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.ShutdownTimeout)
		defer cancel()
	}

	m.logger.Info("shutting down server")
	if err := m.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown %s: %w", m.config.Name, err)
	}
	m.logger.Info("server stopped")
	return nil
}

// Errors carries the first serve error.
func (m *Manager) Errors() <-chan error {
	return m.errCh
}

// Addr is the bound address once started, else the configured one.
func (m *Manager) Addr() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.listener != nil {
		return m.listener.Addr().String()
	}
	return m.config.Addr
}

// IsRunning reports whether Shutdown has not been called.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.closed
}

// Run starts every manager, waits for ctx to end or any server to fail,
// then shuts all of them down. A serve failure is returned.
func Run(ctx context.Context, logger *zap.Logger, managers ...*Manager) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	for i, m := range managers {
		if err := m.Start(); err != nil {
			for _, started := range managers[:i] {
				started.Shutdown(context.Background())
			}
			return err
		}
	}

	failed := make(chan error, len(managers))
	stop := make(chan struct{})
	defer close(stop)
	for _, m := range managers {
		go func(m *Manager) {
			select {
			case err := <-m.Errors():
				failed <- err
			case <-stop:
			}
		}(m)
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case runErr = <-failed:
		logger.Error("server exited unexpectedly", zap.Error(runErr))
	}

	var errs []error
	for _, m := range managers {
		if err := m.Shutdown(context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(append([]error{runErr}, errs...)...)
}
