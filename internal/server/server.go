// Package server implements the TCP listener: bounded-concurrency accept
// loop with backoff, and graceful shutdown fan-out to connection handlers.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/adred-codev/redigo/internal/metrics"
	"github.com/adred-codev/redigo/internal/shutdown"
	"github.com/adred-codev/redigo/internal/store"
)

// maxBackoff is the accept-retry ceiling; once a failed Accept would need
// to wait longer than this, the listener gives up instead of retrying.
const maxBackoff = 64 * time.Second

// Config controls a Server's listening address, connection cap, and
// admission rate.
type Config struct {
	Addr           string
	MaxConnections int

	// ConnectRatePerSec throttles connection admission; zero disables
	// throttling entirely, admitting connections as fast as MaxConnections
	// allows.
	ConnectRatePerSec float64
	ConnectBurst      int

	// Guard, if set, is consulted on every accepted connection before the
	// handler is spawned; a rejection closes the connection immediately.
	Guard *ResourceGuard
}

// Server owns the TCP listener, the connection semaphore, and the
// shutdown fan-out/rendezvous pair shared by every handler it spawns.
type Server struct {
	cfg    Config
	store  *store.Store
	logger zerolog.Logger

	sem        chan struct{}
	limiter    *rate.Limiter
	notifier   *shutdown.Notifier
	rendezvous *shutdown.Rendezvous
}

// New constructs a Server bound to store, not yet listening. A nil
// rate.Limiter (cfg.ConnectRatePerSec == 0) admits connections as fast as
// the semaphore allows.
func New(cfg Config, st *store.Store, logger zerolog.Logger) *Server {
	var limiter *rate.Limiter
	if cfg.ConnectRatePerSec > 0 {
		burst := cfg.ConnectBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.ConnectRatePerSec), burst)
	}
	return &Server{
		cfg:        cfg,
		store:      st,
		logger:     logger,
		sem:        make(chan struct{}, cfg.MaxConnections),
		limiter:    limiter,
		notifier:   shutdown.NewNotifier(),
		rendezvous: shutdown.NewRendezvous(),
	}
}

// Run listens on cfg.Addr and serves connections until ctx is canceled.
// It accepts connections with exponential backoff on transient errors,
// spawning one handler goroutine per connection, each holding a
// semaphore permit for its lifetime. When ctx is canceled, Run stops
// accepting, fans the shutdown signal out to every live handler, and
// waits for them all to finish before returning.
func (s *Server) Run(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}

	s.logger.Info().Str("addr", s.cfg.Addr).Msg("accepting inbound connections")

	acceptErr := make(chan error, 1)
	go func() { acceptErr <- s.acceptLoop(ctx, ln) }()

	var runErr error
	select {
	case runErr = <-acceptErr:
		if runErr != nil {
			s.logger.Error().Err(runErr).Msg("accept loop aborted")
		}
	case <-ctx.Done():
		s.logger.Info().Msg("shutting down")
	}

	ln.Close()
	s.notifier.Fire()
	s.rendezvous.Wait()

	return runErr
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	backoff := time.Second
	for {
		conn, err := s.accept(ctx, ln, &backoff)
		if err != nil {
			return err
		}
		if conn == nil {
			// The listener was closed, or ctx was canceled while waiting
			// out a backoff sleep.
			return nil
		}

		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				conn.Close()
				if ctx.Err() != nil {
					return nil
				}
				continue
			}
		}

		if s.cfg.Guard != nil {
			if ok, reason := s.cfg.Guard.Admit(); !ok {
				s.logger.Warn().Str("reason", reason).Msg("connection rejected by resource guard")
				metrics.ConnectionsRejected.Inc()
				conn.Close()
				continue
			}
		}

		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			conn.Close()
			return nil
		}

		sender := s.rendezvous.NewSender()
		observer := s.notifier.NewObserver()
		go func() {
			defer func() { <-s.sem }()
			defer sender.Release()
			h := newHandler(conn, s.store, s.logger, observer)
			h.run()
		}()
	}
}

// accept wraps ln.Accept with exponential backoff: the first failure
// waits 1s, doubling on each subsequent failure, up to 64s; a failure
// that would require waiting longer than that is returned instead of
// retried.
func (s *Server) accept(ctx context.Context, ln net.Listener, backoff *time.Duration) (net.Conn, error) {
	for {
		conn, err := ln.Accept()
		if err == nil {
			*backoff = time.Second
			return conn, nil
		}
		if errors.Is(err, net.ErrClosed) {
			return nil, nil
		}
		if *backoff > maxBackoff {
			return nil, fmt.Errorf("server: accept: %w", err)
		}
		s.logger.Warn().Err(err).Dur("retry_in", *backoff).Msg("accept failed, retrying")

		timer := time.NewTimer(*backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, nil
		}
		*backoff *= 2
	}
}
