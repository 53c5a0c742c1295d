// SPDX-License-Identifier: MPL-2.0

package target

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidHost is the sentinel error wrapped by InvalidHostError.
var ErrInvalidHost = errors.New("invalid host")

type (
	// Host is an opaque identifier for an execution destination, typically
	// "[user@]hostname[:port]" as typed on the command line.
	Host string

	// InvalidHostError is returned when a Host is empty, whitespace-only, or
	// contains characters that cannot appear in a host string.
	InvalidHostError struct {
		Value  Host
		Reason string
	}
)

// String returns the string representation of the Host.
func (h Host) String() string { return string(h) }

// Validate returns nil if the Host is usable as a target.
func (h Host) Validate() error {
	s := string(h)
	if strings.TrimSpace(s) == "" {
		return &InvalidHostError{Value: h, Reason: "must be non-empty"}
	}
	if strings.ContainsAny(s, " \t\r\n,") {
		return &InvalidHostError{Value: h, Reason: "must not contain whitespace or commas"}
	}
	return nil
}

// Error implements the error interface for InvalidHostError.
func (e *InvalidHostError) Error() string {
	return fmt.Sprintf("invalid host %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidHost for errors.Is() compatibility.
func (e *InvalidHostError) Unwrap() error { return ErrInvalidHost }

// ParseHosts flattens one or more comma-separated host lists (as collected
// from repeated --hosts flags) into a single ordered slice.
//
// Whitespace around each entry is trimmed and empty entries are skipped, so
// "web1, ,web2," yields [web1 web2]. Duplicates are kept: a host listed twice
// receives every work item twice.
func ParseHosts(values []string) ([]Host, error) {
	var hosts []Host
	for _, value := range values {
		for part := range strings.SplitSeq(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			h := Host(part)
			if err := h.Validate(); err != nil {
				return nil, err
			}
			hosts = append(hosts, h)
		}
	}
	return hosts, nil
}
