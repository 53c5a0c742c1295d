// SPDX-License-Identifier: MPL-2.0

package connection

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/user"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fabgo/fab/internal/config"
	"github.com/fabgo/fab/internal/target"
	"github.com/fabgo/fab/pkg/types"

	"github.com/charmbracelet/log"
	"golang.org/x/crypto/ssh"
	"mvdan.cc/sh/v3/syntax"
)

// Connection is an SSH execution context bound to one host.
//
// Construction performs no I/O. The SSH client is dialed on the first Run or
// Sudo (or an explicit Open) and reused for every later command; each command
// runs in its own session.
type Connection struct {
	host    target.Host
	spec    target.Spec
	cfg     config.Snapshot
	streams Streams
	logger  *log.Logger
	local   *LocalContext

	mu     sync.Mutex
	client *ssh.Client
	closed bool
}

// NewConnection parses host and binds it to cfg. The returned Connection is
// not connected.
func NewConnection(host target.Host, cfg config.Snapshot, opts ...Option) (*Connection, error) {
	spec, err := target.Parse(host)
	if err != nil {
		return nil, err
	}
	sshCfg := cfg.SSH()
	defUser := sshCfg.User
	if defUser == "" {
		defUser = localUser()
	}
	spec = spec.Resolve(defUser, types.Port(sshCfg.Port))

	o := applyOptions(opts)
	return &Connection{
		host:    host,
		spec:    spec,
		cfg:     cfg,
		streams: o.streams,
		logger:  o.logger,
		local:   NewLocalContext(cfg, opts...),
	}, nil
}

// Host returns the host this connection is bound to.
func (c *Connection) Host() target.Host { return c.host }

// Spec returns the resolved user, hostname and port.
func (c *Connection) Spec() target.Spec { return c.spec }

// IsConnected reports whether the SSH client is open.
func (c *Connection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client != nil
}

// Open dials the host and authenticates. It is a no-op when already connected.
func (c *Connection) Open(ctx context.Context) error {
	_, err := c.ensureClient(ctx)
	return err
}

func (c *Connection) ensureClient(ctx context.Context) (*ssh.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if c.client != nil {
		return c.client, nil
	}

	client, err := c.dial(ctx)
	if err != nil {
		return nil, &ConnectError{Host: c.host, Err: err}
	}
	c.client = client
	c.logger.Debug("connected", "host", c.host, "address", c.spec.Address(), "user", c.spec.User)
	return client, nil
}

func (c *Connection) dial(ctx context.Context) (*ssh.Client, error) {
	sshCfg := c.cfg.SSH()
	clientCfg, cleanup, err := clientConfig(c.spec, sshCfg)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	timeout := sshCfg.ConnectTimeout
	if timeout <= 0 {
		timeout = config.DefaultConnectTimeout
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := c.spec.Address()
	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	// the handshake is bounded by the same deadline as the dial
	deadline, _ := dialCtx.Deadline()
	_ = conn.SetDeadline(deadline)
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientCfg)
	if err != nil {
		_ = conn.Close()
		return nil, classifyHandshakeError(err)
	}
	_ = conn.SetDeadline(time.Time{})
	return ssh.NewClient(sshConn, chans, reqs), nil
}

// Run executes command on the remote host inside run.shell.
func (c *Connection) Run(ctx context.Context, command string, opts ...RunOption) (*Result, error) {
	o := resolveRunOptions(c.cfg, opts)
	wrapped, err := shellCommand(c.cfg.Run().Shell, command)
	if err != nil {
		return nil, err
	}
	return c.exec(ctx, command, withEnvPrefix(o.Env, wrapped), o, false)
}

// Sudo executes command on the remote host through sudo, answering the
// password prompt from sudo.password.
func (c *Connection) Sudo(ctx context.Context, command string, opts ...RunOption) (*Result, error) {
	o := resolveRunOptions(c.cfg, opts)
	wrapped, err := sudoCommand(c.cfg.Sudo(), c.cfg.Run().Shell, command)
	if err != nil {
		return nil, err
	}
	return c.exec(ctx, command, withEnvPrefix(o.Env, wrapped), o, true)
}

// Local runs command on the machine running fab. It never opens the SSH client.
func (c *Connection) Local(ctx context.Context, command string, opts ...RunOption) (*Result, error) {
	return c.local.Local(ctx, command, opts...)
}

// Close closes the SSH client if open. Later commands fail with ErrClosed.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	c.logger.Debug("disconnected", "host", c.host)
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("close connection to %s: %w", c.host, err)
	}
	return nil
}

func (c *Connection) exec(ctx context.Context, display, command string, o RunOptions, sudo bool) (*Result, error) {
	client, err := c.ensureClient(ctx)
	if err != nil {
		return nil, err
	}

	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("open session on %s: %w", c.host, err)
	}
	defer func() { _ = session.Close() }()

	stdin, err := session.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("open stdin on %s: %w", c.host, err)
	}

	streams := c.streams.withDefaults()
	var stdout, stderr bytes.Buffer
	outW, errW := io.Writer(&stdout), io.Writer(&stderr)
	if !o.Hide {
		outW = io.MultiWriter(&stdout, streams.Stdout)
		errW = io.MultiWriter(&stderr, streams.Stderr)
	}
	var watcher *promptWatcher
	if sudo {
		sudoCfg := c.cfg.Sudo()
		watcher = newPromptWatcher(sudoCfg.Prompt, sudoCfg.Password, stdin, func() { _ = session.Close() })
		errW = io.MultiWriter(errW, watcher)
	}
	session.Stdout, session.Stderr = outW, errW

	c.logger.Debug("running", "host", c.host, "command", display, "sudo", sudo)
	if err := session.Start(command); err != nil {
		return nil, fmt.Errorf("start %q on %s: %w", display, c.host, err)
	}

	done := make(chan struct{})
	defer close(done)

	switch {
	case o.InStream && streams.Stdin != nil:
		in := sharedStdin(streams.Stdin).attach(done)
		go func() {
			_, _ = io.Copy(stdin, in) //nolint:errcheck // a closed session ends the copy
			if !sudo {
				_ = stdin.Close()
			}
		}()
	case !sudo:
		_ = stdin.Close()
	}

	go func() {
		select {
		case <-ctx.Done():
			_ = session.Signal(ssh.SIGKILL)
			_ = session.Close()
		case <-done:
		}
	}()

	waitErr := session.Wait()
	res := &Result{Host: c.host, Command: display, Stdout: stdout.String(), Stderr: stderr.String()}
	if watcher != nil {
		if werr := watcher.err(c.host); werr != nil {
			res.ExitCode = types.ExitFailure
			return res, werr
		}
	}
	if ctx.Err() != nil {
		return res, fmt.Errorf("run %q on %s: %w", display, c.host, ctx.Err())
	}

	var exitErr *ssh.ExitError
	var missingErr *ssh.ExitMissingError
	switch {
	case waitErr == nil:
		res.ExitCode = types.ExitSuccess
	case errors.As(waitErr, &exitErr):
		res.ExitCode = types.NormalizeExitCode(exitErr.ExitStatus())
	case errors.As(waitErr, &missingErr):
		res.ExitCode = types.ExitFailure
	default:
		return res, fmt.Errorf("run %q on %s: %w", display, c.host, waitErr)
	}
	return checkExit(res, o.Warn)
}

// withEnvPrefix prepends `export K=V;` assignments, since most servers
// refuse the SSH "env" request.
func withEnvPrefix(env map[string]string, command string) string {
	if len(env) == 0 {
		return command
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		if syntax.ValidName(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		v, err := syntax.Quote(env[k], syntax.LangPOSIX)
		if err != nil {
			continue
		}
		fmt.Fprintf(&sb, "export %s=%s; ", k, v)
	}
	sb.WriteString(command)
	return sb.String()
}

func localUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}
