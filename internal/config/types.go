// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	// HookModePerTarget runs a task's pre/post tasks around every (task, host)
	// work item, against that item's own execution context.
	HookModePerTarget HookMode = "per_target"
	// HookModePerInvocation runs a task's pre/post tasks once around the whole
	// set of per-host items produced from one invocation, on the local context.
	HookModePerInvocation HookMode = "per_invocation"

	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"

	// DefaultShell wraps every remote command.
	DefaultShell = "/bin/sh"
	// DefaultSudoPrompt is the prompt sudo is told to print; it is matched on
	// the remote stderr to know when to send the password.
	DefaultSudoPrompt = "[sudo] fab password: "
	// DefaultConnectTimeout bounds TCP connect plus SSH handshake.
	DefaultConnectTimeout = 10 * time.Second
	// DefaultMaxWorkers bounds concurrent hosts in parallel mode.
	DefaultMaxWorkers = 8
)

var (
	// ErrInvalidHookMode is returned when a HookMode value is not recognized.
	ErrInvalidHookMode = errors.New("invalid hook mode")
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// HookMode selects where pre/post tasks run relative to host fan-out.
	HookMode string

	// InvalidHookModeError is returned when a HookMode value is not recognized.
	InvalidHookModeError struct {
		Value HookMode
	}

	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// InvalidConfigError collects field-level validation errors from a Config.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config is the root configuration structure.
	Config struct {
		// SSH controls how remote execution contexts connect.
		SSH SSHConfig `json:"ssh" mapstructure:"ssh"`
		// Run holds defaults applied to every command run.
		Run RunConfig `json:"run" mapstructure:"run"`
		// Sudo holds defaults for privileged commands.
		Sudo SudoConfig `json:"sudo" mapstructure:"sudo"`
		// Execution controls how the work-item list is consumed.
		Execution ExecutionConfig `json:"execution" mapstructure:"execution"`
		// Hooks controls pre/post task placement.
		Hooks HooksConfig `json:"hooks" mapstructure:"hooks"`
		// UI configures the user interface.
		UI UIConfig `json:"ui" mapstructure:"ui"`
	}

	// SSHConfig configures remote connections.
	SSHConfig struct {
		// User is the login user when the host string names none.
		// Empty means the local user.
		User string `json:"user" mapstructure:"user" toml:"user"`
		// Port is the port when the host string names none (0 = 22).
		Port int `json:"port" mapstructure:"port" toml:"port"`
		// Password enables password authentication when set.
		Password string `json:"password" mapstructure:"password" toml:"password,omitempty"`
		// IdentityFiles are private key paths tried in order. Missing files are skipped.
		IdentityFiles []string `json:"identity_files" mapstructure:"identity_files" toml:"identity_files"`
		// KnownHostsFile verifies host keys. Empty means ~/.ssh/known_hosts.
		KnownHostsFile string `json:"known_hosts_file" mapstructure:"known_hosts_file" toml:"known_hosts_file"`
		// InsecureIgnoreHostKey disables host key verification.
		InsecureIgnoreHostKey bool `json:"insecure_ignore_host_key" mapstructure:"insecure_ignore_host_key" toml:"insecure_ignore_host_key"`
		// ConnectTimeout bounds dial plus handshake.
		ConnectTimeout time.Duration `json:"connect_timeout" mapstructure:"connect_timeout" toml:"connect_timeout"`
		// UseAgent enables ssh-agent authentication via SSH_AUTH_SOCK.
		UseAgent bool `json:"use_agent" mapstructure:"use_agent" toml:"use_agent"`
	}

	// RunConfig holds command-run defaults.
	RunConfig struct {
		// Shell wraps remote commands as `<shell> -c <command>`.
		Shell string `json:"shell" mapstructure:"shell" toml:"shell"`
		// Hide suppresses streaming of command output to the terminal.
		Hide bool `json:"hide" mapstructure:"hide" toml:"hide"`
		// Warn turns non-zero exits into warnings instead of failures.
		Warn bool `json:"warn" mapstructure:"warn" toml:"warn"`
		// Env is exported to every command.
		Env map[string]string `json:"env" mapstructure:"env" toml:"env,omitempty"`
	}

	// SudoConfig holds sudo defaults.
	SudoConfig struct {
		// Password is sent when the sudo prompt appears.
		Password string `json:"password" mapstructure:"password" toml:"password,omitempty"`
		// Prompt is passed to sudo -p and watched for on stderr.
		Prompt string `json:"prompt" mapstructure:"prompt" toml:"prompt"`
		// User runs sudo commands as this user (sudo -u) when set.
		User string `json:"user" mapstructure:"user" toml:"user,omitempty"`
	}

	// ExecutionConfig controls work-item scheduling.
	ExecutionConfig struct {
		// Parallel runs different hosts concurrently.
		Parallel bool `json:"parallel" mapstructure:"parallel" toml:"parallel"`
		// MaxWorkers bounds concurrent hosts when Parallel is set.
		MaxWorkers int `json:"max_workers" mapstructure:"max_workers" toml:"max_workers"`
		// FailFast skips items that have not started once any item fails.
		FailFast bool `json:"fail_fast" mapstructure:"fail_fast" toml:"fail_fast"`
	}

	// HooksConfig controls pre/post task placement.
	HooksConfig struct {
		Mode HookMode `json:"mode" mapstructure:"mode" toml:"mode"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// ColorScheme sets the color scheme ("auto", "dark", "light")
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme" toml:"color_scheme"`
		// Verbose enables debug logging
		Verbose bool `json:"verbose" mapstructure:"verbose" toml:"verbose"`
	}
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		SSH: SSHConfig{
			ConnectTimeout: DefaultConnectTimeout,
			UseAgent:       true,
		},
		Run: RunConfig{
			Shell: DefaultShell,
		},
		Sudo: SudoConfig{
			Prompt: DefaultSudoPrompt,
		},
		Execution: ExecutionConfig{
			MaxWorkers: DefaultMaxWorkers,
		},
		Hooks: HooksConfig{
			Mode: HookModePerTarget,
		},
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
		},
	}
}

// Validate returns nil if the HookMode is recognized.
// The zero value is accepted and treated as HookModePerTarget.
func (m HookMode) Validate() error {
	switch m {
	case "", HookModePerTarget, HookModePerInvocation:
		return nil
	default:
		return &InvalidHookModeError{Value: m}
	}
}

// String returns the string representation of the HookMode.
func (m HookMode) String() string { return string(m) }

// Error implements the error interface.
func (e *InvalidHookModeError) Error() string {
	return fmt.Sprintf("invalid hook mode %q (valid: %s, %s)", e.Value, HookModePerTarget, HookModePerInvocation)
}

// Unwrap returns ErrInvalidHookMode for errors.Is() compatibility.
func (e *InvalidHookModeError) Unwrap() error { return ErrInvalidHookMode }

// Validate returns nil if the ColorScheme is recognized.
func (c ColorScheme) Validate() error {
	switch c {
	case "", ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return nil
	default:
		return &InvalidColorSchemeError{Value: c}
	}
}

// Error implements the error interface.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns ErrInvalidColorScheme for errors.Is() compatibility.
func (e *InvalidColorSchemeError) Unwrap() error { return ErrInvalidColorScheme }

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %d field error(s): %v", len(e.FieldErrors), errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// Validate checks constraints that are also enforced by the CUE schema, so
// configs built in code (flags, tests) get the same guarantees.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Hooks.Mode.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.UI.ColorScheme.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.SSH.Port < 0 || c.SSH.Port > 65535 {
		errs = append(errs, fmt.Errorf("ssh.port %d out of range 0-65535", c.SSH.Port))
	}
	if c.SSH.ConnectTimeout < 0 {
		errs = append(errs, fmt.Errorf("ssh.connect_timeout must not be negative"))
	}
	if c.Execution.MaxWorkers < 0 {
		errs = append(errs, fmt.Errorf("execution.max_workers must not be negative"))
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}
