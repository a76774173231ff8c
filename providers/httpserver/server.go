// Package httpserver provides the Kubit/Core/Route chi router and the
// Kubit/Core/Server HTTP server.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

var (
	ErrAlreadyStarted = errors.New("httpserver: already started")
	ErrNotStarted     = errors.New("httpserver: not started")
)

// Config holds the listener settings. Environment variables provide the
// defaults; config/http.yaml overrides them.
type Config struct {
	Host              string        `env:"HOST"`
	Port              int           `env:"PORT,default=3333"`
	ReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT,default=15s"`
	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT,default=5s"`
	WriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT,default=15s"`
	IdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT,default=60s"`
	MaxHeaderBytes    int           `env:"HTTP_MAX_HEADER_BYTES,default=1048576"`
}

// Address returns host:port.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, fmt.Sprint(c.Port))
}

// Server serves a handler in the background between Start and Shutdown.
type Server struct {
	server *http.Server
	logger *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	done     chan error
}

// NewServer creates a stopped server for handler.
func NewServer(cfg Config, handler http.Handler, log *slog.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:              cfg.Address(),
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			MaxHeaderBytes:    cfg.MaxHeaderBytes,
		},
		logger: log,
	}
}

// Start listens on the configured address and serves in the background.
// Listen errors are returned directly.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return ErrAlreadyStarted
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("httpserver: listen on %s: %w", s.server.Addr, err)
	}
	s.listener = ln
	s.done = make(chan error, 1)

	go func(done chan<- error) {
		err := s.server.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		if err != nil {
			s.logger.Error("http server failed", slog.String("error", err.Error()))
		}
		done <- err
		close(done)
	}(s.done)

	s.logger.InfoContext(ctx, "http server started", slog.String("address", ln.Addr().String()))
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}

// Handler returns the served handler.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Shutdown stops accepting connections and waits for active requests or ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	started := s.listener != nil
	s.mu.Unlock()

	if !started {
		return ErrNotStarted
	}

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("httpserver: shutdown: %w", err)
	}
	s.logger.InfoContext(ctx, "http server stopped")
	return <-done
}
