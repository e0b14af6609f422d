// Package server exposes SPF analysis over an HTTP JSON API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/synqronlabs/spfaudit/dns"
	"github.com/synqronlabs/spfaudit/ratelimit"
	"github.com/synqronlabs/spfaudit/spf"
)

// Server serves SPF validation reports over HTTP.
type Server struct {
	cfg      *Config
	logger   *slog.Logger
	analyzer *spf.Analyzer
	limiter  *ratelimit.Limiter
	httpSrv  *fasthttp.Server
}

// New builds a Server from cfg. A nil logger falls back to slog.Default.
func New(cfg *Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("server: config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	resolver := dns.NewResolver(dns.ResolverConfig{
		Nameservers: cfg.Nameservers,
		DNSSEC:      cfg.DNSSEC,
	})

	analyzer := spf.New(spf.Config{
		Resolver: resolver,
		Deadline: cfg.AnalysisDeadline,
		Logger:   logger,
	})
	return newServer(cfg, logger, analyzer), nil
}

// newServer wires middleware and routing around an existing analyzer.
func newServer(cfg *Config, logger *slog.Logger, analyzer *spf.Analyzer) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		analyzer: analyzer,
	}

	mws := []Middleware{
		RequestID(),
		Recovery(logger),
		Logger(logger),
	}
	if cfg.RateLimit > 0 {
		s.limiter = ratelimit.New(cfg.RateLimit, cfg.RateWindow)
		mws = append(mws, RateLimit(s.limiter))
	}

	s.httpSrv = &fasthttp.Server{
		Handler:      chain(s.route, mws...),
		Name:         "spfaudit",
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// route dispatches by method and path.
func (s *Server) route(ctx *fasthttp.RequestCtx) {
	if string(ctx.Method()) != fasthttp.MethodGet {
		writeError(ctx, fasthttp.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	path := string(ctx.Path())
	switch {
	case path == "/healthz":
		s.handleHealth(ctx)
	case path == "/v1/spf" || strings.HasPrefix(path, "/v1/spf/"):
		s.handleAnalyze(ctx)
	default:
		writeError(ctx, fasthttp.StatusNotFound, "Not found")
	}
}

// ListenAndServe blocks serving requests until Shutdown is called or
// the listener fails.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server starting", slog.String("addr", s.cfg.Addr))
	if err := s.httpSrv.ListenAndServe(s.cfg.Addr); err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.cfg.Addr, err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones,
// bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server stopping")
	if s.limiter != nil {
		defer s.limiter.Stop()
	}

	done := make(chan error, 1)
	go func() {
		done <- s.httpSrv.Shutdown()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handler exposes the composed request handler, mainly for tests.
func (s *Server) Handler() fasthttp.RequestHandler {
	return s.httpSrv.Handler
}
