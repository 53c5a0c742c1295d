// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"io"
	"os"

	"github.com/fabgo/fab/internal/config"
	"github.com/fabgo/fab/internal/connection"

	"github.com/charmbracelet/log"
)

type (
	// FactoryBuilder returns the connection factory used for parameterized
	// items. It receives the run's streams and logger.
	FactoryBuilder func(streams connection.Streams, logger *log.Logger) connection.Factory

	// App wires CLI services and shared dependencies. Cobra command handlers
	// receive an App reference instead of reaching for package globals.
	App struct {
		Config     config.Provider
		NewFactory FactoryBuilder
		stdin      io.Reader
		stdout     io.Writer
		stderr     io.Writer
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config     config.Provider
		NewFactory FactoryBuilder
		Stdin      io.Reader
		Stdout     io.Writer
		Stderr     io.Writer
	}
)

// NewApp creates an App from deps, filling production defaults.
func NewApp(deps Dependencies) *App {
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.NewFactory == nil {
		deps.NewFactory = defaultFactory
	}
	if deps.Stdin == nil {
		deps.Stdin = os.Stdin
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}

	return &App{
		Config:     deps.Config,
		NewFactory: deps.NewFactory,
		stdin:      deps.Stdin,
		stdout:     deps.Stdout,
		stderr:     deps.Stderr,
	}
}

func defaultFactory(streams connection.Streams, logger *log.Logger) connection.Factory {
	return connection.NewFactory(connection.WithStreams(streams), connection.WithLogger(logger))
}

func (a *App) streams() connection.Streams {
	return connection.Streams{Stdin: a.stdin, Stdout: a.stdout, Stderr: a.stderr}
}

// newLogger returns the CLI logger. Debug output is enabled by verbose.
func (a *App) newLogger(verbose bool) *log.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(a.stderr, log.Options{
		Prefix: "fab",
		Level:  level,
	})
}
