// SPDX-License-Identifier: MPL-2.0

package target

import (
	"net"
	"strings"

	"github.com/fabgo/fab/pkg/types"
)

// Spec is a Host broken into its dialable parts. Zero-valued User and Port
// mean "not given" and are filled by Resolve.
type Spec struct {
	User     string
	Hostname string
	Port     types.Port
}

// Parse splits a host string of the form [user@]hostname[:port].
// Bracketed IPv6 literals ("[::1]:2222") are supported; a bare IPv6 literal
// without brackets is taken as a hostname with no port.
func Parse(h Host) (Spec, error) {
	if err := h.Validate(); err != nil {
		return Spec{}, err
	}

	var spec Spec
	rest := string(h)
	if i := strings.LastIndex(rest, "@"); i >= 0 {
		spec.User = rest[:i]
		rest = rest[i+1:]
		if spec.User == "" {
			return Spec{}, &InvalidHostError{Value: h, Reason: "empty user before '@'"}
		}
	}

	switch {
	case strings.HasPrefix(rest, "["):
		hostname, port, err := net.SplitHostPort(rest)
		if err != nil {
			// "[::1]" without a port
			if strings.HasSuffix(rest, "]") {
				spec.Hostname = strings.Trim(rest, "[]")
				break
			}
			return Spec{}, &InvalidHostError{Value: h, Reason: err.Error()}
		}
		spec.Hostname = hostname
		if spec.Port, err = types.ParsePort(port); err != nil {
			return Spec{}, &InvalidHostError{Value: h, Reason: err.Error()}
		}
	case strings.Count(rest, ":") == 1:
		hostname, port, _ := strings.Cut(rest, ":")
		spec.Hostname = hostname
		var err error
		if spec.Port, err = types.ParsePort(port); err != nil {
			return Spec{}, &InvalidHostError{Value: h, Reason: err.Error()}
		}
	default:
		spec.Hostname = rest
	}

	if spec.Hostname == "" {
		return Spec{}, &InvalidHostError{Value: h, Reason: "empty hostname"}
	}
	return spec, nil
}

// Resolve returns a copy of s with unset fields filled from the defaults.
// A zero defPort falls back to types.DefaultSSHPort.
func (s Spec) Resolve(defUser string, defPort types.Port) Spec {
	if s.User == "" {
		s.User = defUser
	}
	if s.Port == 0 {
		s.Port = defPort
	}
	if s.Port == 0 {
		s.Port = types.DefaultSSHPort
	}
	return s
}

// Address returns the "hostname:port" form suitable for net.Dial.
func (s Spec) Address() string {
	return net.JoinHostPort(s.Hostname, s.Port.String())
}
