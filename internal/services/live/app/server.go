// Package app wires the livegate runtime: HTTP API, optional gRPC health,
// SQLite storage and the optional Redis-backed cache and limiter.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	platformgrpc "github.com/siu-labs/livegate/internal/platform/grpc"
	"github.com/siu-labs/livegate/internal/platform/httpx"
	"github.com/siu-labs/livegate/internal/platform/timeouts"
	"github.com/siu-labs/livegate/internal/services/live/api"
	"github.com/siu-labs/livegate/internal/services/live/chain"
	"github.com/siu-labs/livegate/internal/services/live/gate"
	"github.com/siu-labs/livegate/internal/services/live/room"
	livesqlite "github.com/siu-labs/livegate/internal/services/live/storage/sqlite"
	"github.com/siu-labs/livegate/internal/services/live/token"
)

// HealthService is the gRPC health service name livegate reports.
const HealthService = "livegate.v1.LiveGate"

// Option customizes runtime wiring, mainly for tests.
type Option func(*options)

type options struct {
	dialer     chain.Dialer
	httpClient *http.Client
	now        func() time.Time
}

// WithDialer replaces the EVM dialer used by the access checker.
func WithDialer(dialer chain.Dialer) Option {
	return func(o *options) {
		o.dialer = dialer
	}
}

// WithHTTPClient replaces the HTTP client used for the room provider.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithClock replaces the clock used for tokens, audit records and revocation
// expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// Server hosts the livegate HTTP API and its dependencies.
type Server struct {
	cfg          Config
	listener     net.Listener
	httpServer   *http.Server
	grpcListener net.Listener
	health       *platformgrpc.HealthServer
	store        *livesqlite.Store
	redis        *redis.Client
	now          func() time.Time
}

// New opens storage, connects optional backends and binds listeners.
func New(ctx context.Context, cfg Config, opts ...Option) (*Server, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{cfg: cfg, now: o.now}
	if err := s.open(ctx, o); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Server) open(ctx context.Context, o options) error {
	store, err := livesqlite.Open(ctx, s.cfg.DBPath, livesqlite.WithClock(o.now))
	if err != nil {
		return fmt.Errorf("open livegate sqlite store: %w", err)
	}
	s.store = store

	if addr := strings.TrimSpace(s.cfg.RedisAddr); addr != "" {
		client, err := connectRedis(ctx, addr, s.cfg.RedisPassword)
		if err != nil {
			return err
		}
		s.redis = client
	}

	checkerOpts := []chain.Option{chain.WithDialer(o.dialer), chain.WithLogf(log.Printf)}
	if cache := s.decisionCache(); cache != nil {
		checkerOpts = append(checkerOpts, chain.WithCache(cache))
	}
	checker := chain.NewChecker(s.cfg.checkerConfig(), checkerOpts...)

	huddle := s.cfg.huddleConfig()
	huddle.HTTPClient = o.httpClient
	tokenCfg := token.Config{Secret: []byte(s.cfg.JWTSecret), Now: o.now}

	apiServer := api.NewServer(api.Deps{
		Checker:     checker,
		Issuer:      token.NewIssuer(tokenCfg),
		Verifier:    token.NewVerifier(tokenCfg, store),
		Rooms:       room.NewIdempotentProvisioner(room.NewHuddleProvisioner(huddle), store),
		Revocations: store,
		Audit:       store,
		Limiter:     s.limiter(),
	})
	mux := http.NewServeMux()
	apiServer.RegisterRoutes(mux)

	listener, err := net.Listen("tcp", s.cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.HTTPAddr, err)
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           httpx.Chain(mux, httpx.RequestID(), httpx.Logging(log.Printf), httpx.RecoverPanic()),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	if addr := strings.TrimSpace(s.cfg.GRPCAddr); addr != "" {
		grpcListener, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		s.grpcListener = grpcListener
		s.health = platformgrpc.NewHealthServer(HealthService)
	}
	return nil
}

func connectRedis(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  timeouts.Redis,
		ReadTimeout:  timeouts.Redis,
		WriteTimeout: timeouts.Redis,
	})
	pingCtx, cancel := context.WithTimeout(ctx, timeouts.Redis)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return client, nil
}

// decisionCache returns nil when caching is disabled.
func (s *Server) decisionCache() chain.DecisionCache {
	if s.cfg.DecisionCacheTTL <= 0 {
		return nil
	}
	if s.redis != nil {
		return gate.NewRedisCache(s.redis, s.cfg.DecisionCacheTTL)
	}
	return gate.NewMemoryCache(s.cfg.DecisionCacheTTL, s.now)
}

// limiter returns nil when rate limiting is disabled.
func (s *Server) limiter() gate.Limiter {
	if s.cfg.RateLimit <= 0 {
		return nil
	}
	if s.redis != nil {
		return gate.NewRedisLimiter(s.redis, s.cfg.RateLimit, s.cfg.RateWindow, s.now)
	}
	return gate.NewMemoryLimiter(s.cfg.RateLimit, s.cfg.RateWindow, s.now)
}

// Addr returns the HTTP listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// GRPCAddr returns the gRPC health listener address, if enabled.
func (s *Server) GRPCAddr() string {
	if s == nil || s.grpcListener == nil {
		return ""
	}
	return s.grpcListener.Addr().String()
}

// Run creates and serves a livegate server until context cancellation.
func Run(ctx context.Context, cfg Config, opts ...Option) error {
	server, err := New(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve runs the HTTP API, and the gRPC health endpoint when configured,
// until ctx ends. Shutdown is graceful within timeouts.Shutdown.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	log.Printf("livegate listening at %v chain=%s", s.listener.Addr(), s.cfg.Chain)
	serveErr := make(chan error, 2)
	go func() {
		err := s.httpServer.Serve(s.listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		serveErr <- err
	}()
	pending := 1
	if s.health != nil {
		pending++
		log.Printf("livegate health listening at %v", s.grpcListener.Addr())
		go func() {
			serveErr <- s.health.Serve(runCtx, s.grpcListener)
		}()
		s.health.SetServing(true)
	}
	go s.sweepRevocations(runCtx)

	var firstErr error
	select {
	case <-ctx.Done():
	case firstErr = <-serveErr:
		pending--
	}
	if s.health != nil {
		s.health.SetServing(false)
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
	defer shutdownCancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("shutdown http: %w", err)
	}
	for ; pending > 0; pending-- {
		if err := <-serveErr; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return fmt.Errorf("serve livegate: %w", firstErr)
	}
	return nil
}

// sweepRevocations prunes expired revocations until ctx ends.
func (s *Server) sweepRevocations(ctx context.Context) {
	interval := s.cfg.RevocationSweep
	if interval <= 0 || s.store == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pruned, err := s.store.PruneRevocations(ctx, s.now().UTC())
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("prune revocations: %v", err)
				}
				continue
			}
			if pruned > 0 {
				log.Printf("pruned %d expired revocations", pruned)
			}
		}
	}
}

// Close releases listeners, storage and backend connections.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.grpcListener != nil {
		_ = s.grpcListener.Close()
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			log.Printf("close redis: %v", err)
		}
		s.redis = nil
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close livegate store: %v", err)
		}
		s.store = nil
	}
}
