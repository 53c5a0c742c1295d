// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/fabgo/fab/internal/core/serverbase"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/logging"
)

// Start listens and blocks until the server accepts connections, fails, or
// the startup timeout elapses. After Start returns nil, use Err() to monitor
// runtime errors.
func (s *Server) Start(ctx context.Context) error {
	if err := s.cfg.Validate(); err != nil {
		s.TransitionToFailed(err)
		return err
	}
	if err := s.TransitionToStarting(ctx); err != nil {
		return err
	}

	if s.cfg.AuthorizedKeysFile != "" {
		keys, err := loadAuthorizedKeys(s.cfg.AuthorizedKeysFile)
		if err != nil {
			s.TransitionToFailed(err)
			return err
		}
		s.authorizedKeys = keys
	}

	startupCtx, startupCancel := context.WithTimeout(ctx, s.cfg.StartupTimeout)
	defer startupCancel()

	addr := net.JoinHostPort(s.cfg.Host.String(), s.cfg.Port.String())
	var lc net.ListenConfig
	listener, err := lc.Listen(startupCtx, "tcp", addr)
	if err != nil {
		s.TransitionToFailed(fmt.Errorf("failed to listen on %s: %w", addr, err))
		return s.LastError()
	}

	opts := []ssh.Option{
		wish.WithAddress(addr),
		wish.WithPasswordAuth(s.passwordHandler),
		wish.WithMiddleware(
			s.sessionMiddleware(),
			logging.MiddlewareWithLogger(s.logger),
		),
	}
	if len(s.authorizedKeys) > 0 {
		opts = append(opts, wish.WithPublicKeyAuth(s.publicKeyHandler))
	}
	if s.cfg.HostKeyPath != "" {
		opts = append(opts, wish.WithHostKeyPath(s.cfg.HostKeyPath))
	}
	srv, err := wish.NewServer(opts...)
	if err != nil {
		_ = listener.Close() // Best-effort cleanup on error
		s.TransitionToFailed(fmt.Errorf("failed to create SSH server: %w", err))
		return s.LastError()
	}

	s.srvMu.Lock()
	s.srv = srv
	s.listener = listener
	s.addr = listener.Addr().String()
	s.srvMu.Unlock()

	s.Go(s.serve)
	s.Go(s.cleanupExpiredTokens)

	select {
	case <-s.StartedChannel():
		s.logger.Info("SSH server started", "address", s.addr)
		return nil
	case err := <-s.Err():
		s.TransitionToFailed(err)
		return err
	case <-startupCtx.Done():
		s.TransitionToFailed(fmt.Errorf("startup timeout: %w", startupCtx.Err()))
		return s.LastError()
	}
}

// Stop shuts down gracefully, waiting at most ShutdownTimeout for open
// sessions. Safe to call multiple times.
func (s *Server) Stop() error {
	if !s.TransitionToStopping() {
		s.WaitForShutdown()
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	var shutdownErr error
	s.srvMu.Lock()
	if s.srv != nil {
		if err := s.srv.Shutdown(shutdownCtx); err != nil && !isClosedConnError(err) {
			s.logger.Error("shutdown error", "error", err)
			shutdownErr = err
		}
	}
	if s.listener != nil {
		_ = s.listener.Close() //nolint:errcheck // Best-effort cleanup during shutdown
	}
	s.srvMu.Unlock()

	s.WaitForShutdown()
	s.TransitionToStopped()
	s.logger.Info("SSH server stopped")
	return shutdownErr
}

// serve blocks accepting connections until shutdown.
func (s *Server) serve() {
	s.TransitionToRunning()

	s.srvMu.Lock()
	srv, listener := s.srv, s.listener
	s.srvMu.Unlock()

	if err := srv.Serve(listener); err != nil {
		if errors.Is(err, ssh.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
			return
		}
		s.SendError(fmt.Errorf("serve error: %w", err))
	}
}

// Address returns the bound host:port, or "" if the server never started.
func (s *Server) Address() string {
	select {
	case <-s.StartedChannel():
	default:
		return ""
	}
	s.srvMu.Lock()
	defer s.srvMu.Unlock()
	return s.addr
}

// Port returns the bound port, or 0 if the server never started.
func (s *Server) Port() int {
	_, portStr, err := net.SplitHostPort(s.Address())
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}
	return port
}

// Host returns the configured bind address.
func (s *Server) Host() HostAddress {
	return s.cfg.Host
}

// Wait blocks until the server stops and returns the failure cause, if any.
func (s *Server) Wait() error {
	if ctx := s.Context(); ctx != nil {
		<-ctx.Done()
	}
	s.WaitForShutdown()
	if s.State() == serverbase.StateFailed {
		return s.LastError()
	}
	return nil
}

// isClosedConnError reports whether err is a "use of closed network connection" error.
func isClosedConnError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && errors.Is(opErr.Err, net.ErrClosed)
}
