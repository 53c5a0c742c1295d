// SPDX-License-Identifier: MPL-2.0

package connection

import (
	"os"

	"github.com/charmbracelet/log"
)

type (
	// Option configures contexts built by NewConnection, NewLocalContext and NewFactory.
	Option func(*options)

	options struct {
		streams Streams
		logger  *log.Logger
	}
)

// WithStreams sets the streams commands read from and write to.
// The default is the process's standard streams.
func WithStreams(s Streams) Option {
	return func(o *options) { o.streams = s }
}

// WithLogger sets the logger for connection lifecycle and command tracing.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

func applyOptions(opts []Option) options {
	o := options{streams: DefaultStreams()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "connection"})
	}
	return o
}
