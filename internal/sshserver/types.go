// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fabgo/fab/pkg/types"
)

const (
	// DefaultHost is the bind address when none is configured.
	DefaultHost HostAddress = "127.0.0.1"
	// DefaultShell runs exec requests and interactive sessions.
	DefaultShell = "/bin/sh"
	// DefaultTokenTTL bounds how long a generated token authenticates.
	DefaultTokenTTL = time.Hour
)

var (
	// ErrInvalidHostAddress is the sentinel error wrapped by InvalidHostAddressError.
	ErrInvalidHostAddress = errors.New("invalid host address")
	// ErrInvalidTokenValue is the sentinel error wrapped by InvalidTokenValueError.
	ErrInvalidTokenValue = errors.New("invalid token value")
	// ErrInvalidServerConfig is the sentinel error wrapped by InvalidServerConfigError.
	ErrInvalidServerConfig = errors.New("invalid SSH server config")
)

type (
	// HostAddress is the IP or hostname the server binds to.
	HostAddress string

	// TokenValue is a generated login secret, accepted as the SSH password.
	TokenValue string

	// InvalidHostAddressError is returned when a HostAddress is empty or whitespace-only.
	InvalidHostAddressError struct {
		Value HostAddress
	}

	// InvalidTokenValueError is returned when a TokenValue is empty or whitespace-only.
	InvalidTokenValueError struct {
		Value TokenValue
	}

	// InvalidServerConfigError collects field-level validation errors from a Config.
	InvalidServerConfigError struct {
		FieldErrors []error
	}

	// Config holds immutable server configuration.
	Config struct {
		// Host is the bind address (default 127.0.0.1).
		Host HostAddress
		// Port is the listen port; 0 picks a free one.
		Port types.ListenPort
		// Shell runs commands as `<shell> -c <command>` (default /bin/sh).
		Shell string
		// User, when set, is the only login name accepted.
		User string
		// Password, when set, is accepted for every login.
		Password string
		// AuthorizedKeysFile lists public keys accepted for login.
		AuthorizedKeysFile string
		// HostKeyPath persists the host key; empty uses an ephemeral key.
		HostKeyPath string
		// TokenTTL is how long generated tokens stay valid (default 1h).
		TokenTTL time.Duration
		// ShutdownTimeout bounds graceful shutdown (default 10s).
		ShutdownTimeout time.Duration
		// StartupTimeout bounds Start (default 5s).
		StartupTimeout time.Duration
	}

	// ConnectionInfo is what a client needs to log in with a token.
	ConnectionInfo struct {
		Host     HostAddress
		Port     int
		User     string
		Token    TokenValue
		ExpireAt time.Time
	}
)

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Host:            DefaultHost,
		Shell:           DefaultShell,
		TokenTTL:        DefaultTokenTTL,
		ShutdownTimeout: 10 * time.Second,
		StartupTimeout:  5 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Host == "" {
		c.Host = def.Host
	}
	if c.Shell == "" {
		c.Shell = def.Shell
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = def.TokenTTL
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
	if c.StartupTimeout == 0 {
		c.StartupTimeout = def.StartupTimeout
	}
	return c
}

// Validate returns nil if every field is usable, or an InvalidServerConfigError.
func (c Config) Validate() error {
	var errs []error
	if err := c.Host.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Port.Validate(); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.Shell) == "" {
		errs = append(errs, errors.New("shell must be non-empty"))
	}
	if c.TokenTTL < 0 {
		errs = append(errs, fmt.Errorf("token TTL must not be negative, got %s", c.TokenTTL))
	}
	if len(errs) > 0 {
		return &InvalidServerConfigError{FieldErrors: errs}
	}
	return nil
}

// String returns the string representation of the HostAddress.
func (h HostAddress) String() string { return string(h) }

// Validate returns nil if the HostAddress is non-empty and not whitespace-only.
func (h HostAddress) Validate() error {
	if strings.TrimSpace(string(h)) == "" {
		return &InvalidHostAddressError{Value: h}
	}
	return nil
}

// String returns the string representation of the TokenValue.
func (t TokenValue) String() string { return string(t) }

// Validate returns nil if the TokenValue is non-empty and not whitespace-only.
func (t TokenValue) Validate() error {
	if strings.TrimSpace(string(t)) == "" {
		return &InvalidTokenValueError{Value: t}
	}
	return nil
}

// Error implements the error interface for InvalidHostAddressError.
func (e *InvalidHostAddressError) Error() string {
	return fmt.Sprintf("invalid host address %q: must be non-empty", e.Value)
}

// Unwrap returns ErrInvalidHostAddress for errors.Is() compatibility.
func (e *InvalidHostAddressError) Unwrap() error { return ErrInvalidHostAddress }

// Error implements the error interface for InvalidTokenValueError.
func (e *InvalidTokenValueError) Error() string {
	return fmt.Sprintf("invalid token value %q: must be non-empty", e.Value)
}

// Unwrap returns ErrInvalidTokenValue for errors.Is() compatibility.
func (e *InvalidTokenValueError) Unwrap() error { return ErrInvalidTokenValue }

// Error implements the error interface for InvalidServerConfigError.
func (e *InvalidServerConfigError) Error() string {
	return fmt.Sprintf("invalid SSH server config: %d field error(s): %v", len(e.FieldErrors), errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidServerConfig for errors.Is() compatibility.
func (e *InvalidServerConfigError) Unwrap() error { return ErrInvalidServerConfig }
