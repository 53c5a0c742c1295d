// SPDX-License-Identifier: MPL-2.0

// Package sshtarget starts an in-process SSH server for tests that need a
// real remote target.
package sshtarget

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/fabgo/fab/internal/config"
	"github.com/fabgo/fab/internal/sshserver"
	"github.com/fabgo/fab/internal/target"
	"github.com/fabgo/fab/internal/testutil"

	"github.com/charmbracelet/log"
)

const (
	// User is the login name the test server accepts.
	User = "fab"
	// Password is the login password the test server accepts.
	Password = "fab-test-password"
)

// Target is a running test server plus matching client configuration.
type Target struct {
	Server *sshserver.Server
	Host   target.Host
}

// Start launches a server on a free loopback port and stops it when the test
// ends. Tests are skipped if the server cannot start.
func Start(t testing.TB) *Target {
	t.Helper()

	cfg := sshserver.DefaultConfig()
	cfg.User = User
	cfg.Password = Password
	srv := sshserver.New(cfg)
	srv.SetLogger(log.New(io.Discard))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Start(ctx); err != nil {
		t.Skipf("skipping: cannot start SSH server: %v", err)
	}
	testutil.StopOnCleanup(t, srv)

	return &Target{
		Server: srv,
		Host:   target.Host(fmt.Sprintf("%s@%s:%d", User, srv.Host(), srv.Port())),
	}
}

// Config returns a client configuration that logs into the target with the
// password and skips host key verification.
func (tg *Target) Config() *config.Config {
	cfg := config.DefaultConfig()
	cfg.SSH.Password = Password
	cfg.SSH.UseAgent = false
	cfg.SSH.IdentityFiles = []string{"/nonexistent/fab-test-key"}
	cfg.SSH.InsecureIgnoreHostKey = true
	cfg.SSH.ConnectTimeout = 5 * time.Second
	return cfg
}
