// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrInvalidListenPort is the sentinel error wrapped by InvalidListenPortError.
	ErrInvalidListenPort = errors.New("invalid listen port")
	// ErrInvalidPort is the sentinel error wrapped by InvalidPortError.
	ErrInvalidPort = errors.New("invalid port")
)

// DefaultSSHPort is used when neither the host string nor the config names a port.
const DefaultSSHPort Port = 22

type (
	// ListenPort represents a TCP port for server listening.
	// The zero value (0) is valid and means "auto-select an available port".
	ListenPort int

	// Port is a TCP port to dial. Unlike ListenPort, zero is not a usable
	// value; callers treat it as "unset" and fall back to a default.
	Port int

	// InvalidListenPortError is returned when a ListenPort value is
	// outside the valid range (0 or 1-65535).
	InvalidListenPortError struct {
		Value ListenPort
	}

	// InvalidPortError is returned when a Port is outside 1-65535.
	InvalidPortError struct {
		Value Port
	}
)

// String returns the decimal string representation of the ListenPort.
func (p ListenPort) String() string { return strconv.Itoa(int(p)) }

// Validate returns an error if the ListenPort is outside the valid range.
func (p ListenPort) Validate() error {
	if p < 0 || p > 65535 {
		return &InvalidListenPortError{Value: p}
	}
	return nil
}

// String returns the decimal string representation of the Port.
func (p Port) String() string { return strconv.Itoa(int(p)) }

// Validate returns an error unless the Port is in the range 1-65535.
func (p Port) Validate() error {
	if p < 1 || p > 65535 {
		return &InvalidPortError{Value: p}
	}
	return nil
}

// ParsePort parses a decimal port number and validates it.
func ParsePort(s string) (Port, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("port %q: %w", s, ErrInvalidPort)
	}
	p := Port(n)
	if err := p.Validate(); err != nil {
		return 0, err
	}
	return p, nil
}

// Error implements the error interface for InvalidListenPortError.
func (e *InvalidListenPortError) Error() string {
	return fmt.Sprintf("invalid listen port %d: must be 0 (auto-select) or 1-65535", e.Value)
}

// Unwrap returns ErrInvalidListenPort for errors.Is() compatibility.
func (e *InvalidListenPortError) Unwrap() error { return ErrInvalidListenPort }

// Error implements the error interface for InvalidPortError.
func (e *InvalidPortError) Error() string {
	return fmt.Sprintf("invalid port %d: must be 1-65535", e.Value)
}

// Unwrap returns ErrInvalidPort for errors.Is() compatibility.
func (e *InvalidPortError) Unwrap() error { return ErrInvalidPort }
