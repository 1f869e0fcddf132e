// Package api provides the versecorpus HTTP server: synchronous parsing,
// background parse jobs and a websocket that streams diagnostics.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/FocuswithJustin/versecorpus/core/cache"
	"github.com/FocuswithJustin/versecorpus/internal/logging"

	// Every format the server can read and write.
	_ "github.com/FocuswithJustin/versecorpus/internal/formats/all"
)

// Server serves the API. Create one with NewServer.
type Server struct {
	cfg     Config
	hub     *Hub
	cache   *cache.BoundedCache[string, *parsed]
	limiter *RateLimiter
	jobs    *JobStore
	started time.Time
	handler http.Handler
	wg      sync.WaitGroup
}

// NewServer validates cfg and builds the handler chain.
func NewServer(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		hub:     NewHub(),
		jobs:    NewJobStore(cfg.MaxJobs),
		started: time.Now(),
	}
	if cfg.CacheEntries > 0 {
		s.cache = cache.NewBoundedCache[string, *parsed](
			cache.Config{MaxSize: cfg.CacheEntries, TTL: cfg.CacheTTL},
			cfg.CacheBytes,
			(*parsed).size,
		)
	}

	var handler http.Handler = securityHeadersMiddleware(s.routes())
	if cfg.Auth.Enabled {
		handler = AuthMiddleware(cfg.Auth, handler)
	}
	if cfg.RateLimitRequests > 0 {
		s.limiter = NewRateLimiter(RateLimiterConfig{
			RequestsPerMinute: cfg.RateLimitRequests,
			BurstSize:         cfg.RateLimitBurst,
		})
		handler = s.limiter.Middleware(handler)
	}
	handler = corsMiddleware(cfg.AllowedOrigins, handler)
	s.handler = logging.CombinedMiddleware(handler)
	return s, nil
}

// routes configures all HTTP routes.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/formats", s.handleFormats)
	mux.HandleFunc("/api/parse", s.handleParse)
	mux.HandleFunc("/api/jobs", s.handleJobs)
	mux.HandleFunc("/api/jobs/", s.handleJobByID)
	mux.HandleFunc("/api/ws", s.handleWebSocket)

	return mux
}

// Handler returns the HTTP handler with every middleware applied. The hub
// and the rate limiter cleanup only run under Run; tests that use the
// handler directly start them with Start.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start runs the background loops until ctx is done.
func (s *Server) Start(ctx context.Context) {
	go s.hub.Run(ctx)
	if s.limiter != nil {
		go s.limiter.Run(ctx)
	}
}

// Run serves until ctx is done, then tells websocket clients, stops
// accepting requests and waits up to ShutdownTimeout for running requests
// and jobs.
func (s *Server) Run(ctx context.Context) error {
	loopCtx, stopLoops := context.WithCancel(context.Background())
	defer stopLoops()
	s.Start(loopCtx)

	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	protocol := "http"
	if s.cfg.TLS.Enabled {
		protocol = "https"
	}
	logging.ServerStartup("rest_api", srv.Addr,
		"protocol", protocol,
		"auth", s.cfg.Auth.Enabled,
		"rate_limit_per_minute", s.cfg.RateLimitRequests,
		"cache_entries", s.cfg.CacheEntries,
	)

	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			err = srv.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info("server shutting down", "timeout", s.cfg.ShutdownTimeout)
	s.hub.Broadcast(ProgressMessage{Type: "shutdown", Operation: "server", Message: "server shutting down"})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	stopLoops()

	jobsDone := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(jobsDone)
	}()
	select {
	case <-jobsDone:
	case <-shutdownCtx.Done():
		logging.Warn("shutdown timed out with jobs still running")
	}

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
