// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/fabgo/fab/internal/core/serverbase"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
)

type (
	// Clock supplies the current time for token expiry.
	Clock interface {
		Now() time.Time
	}

	realClock struct{}

	// Token is a generated login secret.
	Token struct {
		Value     TokenValue
		Label     string
		CreatedAt time.Time
		ExpiresAt time.Time
	}

	// Server is an SSH server that executes commands through a shell.
	// A Server is single-use: once stopped or failed, create a new one.
	Server struct {
		*serverbase.Base

		cfg            Config
		clock          Clock
		authorizedKeys []ssh.PublicKey

		srvMu    sync.Mutex
		srv      *ssh.Server
		listener net.Listener
		addr     string

		tokens  map[TokenValue]*Token
		tokenMu sync.RWMutex

		logger *log.Logger
	}
)

func (realClock) Now() time.Time { return time.Now() }

// New creates a server with the real clock. Call Start to listen.
func New(cfg Config) *Server {
	return NewWithClock(cfg, realClock{})
}

// NewWithClock creates a server whose token expiry follows clock.
func NewWithClock(cfg Config, clock Clock) *Server {
	return &Server{
		Base:   serverbase.NewBase(),
		cfg:    cfg.withDefaults(),
		clock:  clock,
		tokens: make(map[TokenValue]*Token),
		logger: log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "ssh-server",
		}),
	}
}

// SetLogger replaces the server logger. Call before Start.
func (s *Server) SetLogger(l *log.Logger) {
	s.logger = l
}

// sessionMiddleware dispatches exec requests and interactive shells.
func (s *Server) sessionMiddleware() wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			if sess.RawCommand() == "" {
				s.runInteractiveShell(sess)
			} else {
				s.runCommand(sess)
			}
			next(sess)
		}
	}
}

// runCommand executes the raw exec request as `<shell> -c <command>`, the
// way sshd does.
func (s *Server) runCommand(sess ssh.Session) {
	cmd := exec.CommandContext(sess.Context(), s.cfg.Shell, "-c", sess.RawCommand())
	cmd.Env = append(os.Environ(), sess.Environ()...)
	cmd.Stdout = sess
	cmd.Stderr = sess.Stderr()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		s.fail(sess, fmt.Errorf("stdin pipe: %w", err))
		return
	}
	if err := cmd.Start(); err != nil {
		s.fail(sess, err)
		return
	}
	// not awaited: the client may never close its side; Wait closes the pipe
	go func() {
		_, _ = io.Copy(stdin, sess) //nolint:errcheck // ends when the command exits
		_ = stdin.Close()
	}()

	s.exit(sess, cmd.Wait())
}

// runInteractiveShell starts the shell under a PTY when one was requested.
func (s *Server) runInteractiveShell(sess ssh.Session) {
	ptyReq, winCh, isPty := sess.Pty()
	if !isPty {
		_, _ = fmt.Fprintln(sess.Stderr(), "interactive sessions require a PTY (use ssh -t)")
		_ = sess.Exit(1) //nolint:errcheck // Terminal operation; error non-critical
		return
	}

	cmd := exec.CommandContext(sess.Context(), s.cfg.Shell)
	cmd.Env = append(os.Environ(), sess.Environ()...)
	cmd.Env = append(cmd.Env, "TERM="+ptyReq.Term)

	f, err := startPty(cmd, ptyReq.Window.Width, ptyReq.Window.Height)
	if err != nil {
		s.fail(sess, fmt.Errorf("starting shell: %w", err))
		return
	}
	defer func() { _ = f.Close() }() // PTY cleanup; error non-critical

	go func() {
		for win := range winCh {
			setWinsize(f, win.Width, win.Height)
		}
	}()
	go func() {
		_, _ = io.Copy(f, sess) //nolint:errcheck // I/O copy; errors are non-recoverable
	}()
	_, _ = io.Copy(sess, f) //nolint:errcheck // I/O copy; errors are non-recoverable

	s.exit(sess, cmd.Wait())
}

func (s *Server) exit(sess ssh.Session, err error) {
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		_ = sess.Exit(0) //nolint:errcheck // Terminal operation; error non-critical
	case errors.As(err, &exitErr):
		_ = sess.Exit(exitErr.ExitCode()) //nolint:errcheck // Terminal operation; error non-critical
	default:
		s.fail(sess, err)
	}
}

func (s *Server) fail(sess ssh.Session, err error) {
	s.logger.Warn("session failed", "user", sess.User(), "error", err)
	_, _ = fmt.Fprintf(sess.Stderr(), "Error: %v\n", err)
	_ = sess.Exit(1) //nolint:errcheck // Terminal operation; error non-critical
}
