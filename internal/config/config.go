// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/fabgo/fab/internal/issue"
	"github.com/fabgo/fab/pkg/cueutil"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "fab"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides (FAB_SSH_USER, ...).
	EnvPrefix = "FAB"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the fab configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := newViper()

	resolvedPath := ""
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'fab config show' to see the default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
		if err != nil {
			return nil, "", err
		}
		for _, candidate := range []string{
			filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt),
			ConfigFileName + "." + ConfigFileExt,
		} {
			if fileExists(candidate) {
				resolvedPath = candidate
				break
			}
		}
	}

	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Run 'fab config show' to compare against the defaults").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Check FAB_* environment variables for typos").
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// newViper returns a Viper instance seeded with defaults and wired to
// FAB_* environment overrides.
func newViper() *viper.Viper {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("ssh.user", defaults.SSH.User)
	v.SetDefault("ssh.port", defaults.SSH.Port)
	v.SetDefault("ssh.password", defaults.SSH.Password)
	v.SetDefault("ssh.identity_files", defaults.SSH.IdentityFiles)
	v.SetDefault("ssh.known_hosts_file", defaults.SSH.KnownHostsFile)
	v.SetDefault("ssh.insecure_ignore_host_key", defaults.SSH.InsecureIgnoreHostKey)
	v.SetDefault("ssh.connect_timeout", defaults.SSH.ConnectTimeout)
	v.SetDefault("ssh.use_agent", defaults.SSH.UseAgent)
	v.SetDefault("run.shell", defaults.Run.Shell)
	v.SetDefault("run.hide", defaults.Run.Hide)
	v.SetDefault("run.warn", defaults.Run.Warn)
	v.SetDefault("sudo.password", defaults.Sudo.Password)
	v.SetDefault("sudo.prompt", defaults.Sudo.Prompt)
	v.SetDefault("sudo.user", defaults.Sudo.User)
	v.SetDefault("execution.parallel", defaults.Execution.Parallel)
	v.SetDefault("execution.max_workers", defaults.Execution.MaxWorkers)
	v.SetDefault("execution.fail_fast", defaults.Execution.FailFast)
	v.SetDefault("hooks.mode", string(defaults.Hooks.Mode))
	v.SetDefault("ui.color_scheme", string(defaults.UI.ColorScheme))
	v.SetDefault("ui.verbose", defaults.UI.Verbose)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}
	return ConfigDir()
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
//
// Decoding goes to map[string]any rather than through cueutil.ParseAndDecode
// because Viper needs a config map to merge over its defaults, and every
// field is optional (Concrete(false)).
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return cueutil.FormatError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return cueutil.FormatError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, path)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes a default config file if none exists and
// returns its path.
func CreateDefaultConfig() (string, error) {
	cfgDir, err := ConfigDir()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	cfgPath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
	if _, err := os.Stat(cfgPath); err == nil {
		return cfgPath, nil
	}

	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(DefaultConfig())), 0o600); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return cfgPath, nil
}

// GenerateCUE generates a CUE representation of the configuration.
// Secrets (ssh.password, sudo.password) are never written.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// fab configuration file\n\n")

	sb.WriteString("ssh: {\n")
	if cfg.SSH.User != "" {
		fmt.Fprintf(&sb, "\tuser: %q\n", cfg.SSH.User)
	}
	if cfg.SSH.Port != 0 {
		fmt.Fprintf(&sb, "\tport: %d\n", cfg.SSH.Port)
	}
	if len(cfg.SSH.IdentityFiles) > 0 {
		sb.WriteString("\tidentity_files: [")
		for i, f := range cfg.SSH.IdentityFiles {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%q", f)
		}
		sb.WriteString("]\n")
	}
	if cfg.SSH.KnownHostsFile != "" {
		fmt.Fprintf(&sb, "\tknown_hosts_file: %q\n", cfg.SSH.KnownHostsFile)
	}
	fmt.Fprintf(&sb, "\tinsecure_ignore_host_key: %v\n", cfg.SSH.InsecureIgnoreHostKey)
	fmt.Fprintf(&sb, "\tconnect_timeout: %q\n", cfg.SSH.ConnectTimeout.String())
	fmt.Fprintf(&sb, "\tuse_agent: %v\n", cfg.SSH.UseAgent)
	sb.WriteString("}\n")

	sb.WriteString("\nrun: {\n")
	fmt.Fprintf(&sb, "\tshell: %q\n", cfg.Run.Shell)
	fmt.Fprintf(&sb, "\thide: %v\n", cfg.Run.Hide)
	fmt.Fprintf(&sb, "\twarn: %v\n", cfg.Run.Warn)
	if len(cfg.Run.Env) > 0 {
		keys := make([]string, 0, len(cfg.Run.Env))
		for k := range cfg.Run.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString("\tenv: {\n")
		for _, k := range keys {
			fmt.Fprintf(&sb, "\t\t%q: %q\n", k, cfg.Run.Env[k])
		}
		sb.WriteString("\t}\n")
	}
	sb.WriteString("}\n")

	sb.WriteString("\nsudo: {\n")
	fmt.Fprintf(&sb, "\tprompt: %q\n", cfg.Sudo.Prompt)
	if cfg.Sudo.User != "" {
		fmt.Fprintf(&sb, "\tuser: %q\n", cfg.Sudo.User)
	}
	sb.WriteString("}\n")

	sb.WriteString("\nexecution: {\n")
	fmt.Fprintf(&sb, "\tparallel: %v\n", cfg.Execution.Parallel)
	fmt.Fprintf(&sb, "\tmax_workers: %d\n", cfg.Execution.MaxWorkers)
	fmt.Fprintf(&sb, "\tfail_fast: %v\n", cfg.Execution.FailFast)
	sb.WriteString("}\n")

	sb.WriteString("\nhooks: {\n")
	fmt.Fprintf(&sb, "\tmode: %q\n", cfg.Hooks.Mode)
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tcolor_scheme: %q\n", cfg.UI.ColorScheme)
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	sb.WriteString("}\n")

	return sb.String()
}

// GenerateTOML renders the configuration as TOML for tooling that does not
// speak CUE. Secrets are never written.
func GenerateTOML(cfg *Config) (string, error) {
	redacted := cfg.clone()
	redacted.Sudo.Password = ""

	doc := map[string]any{
		"ssh": map[string]any{
			"user":                     redacted.SSH.User,
			"port":                     redacted.SSH.Port,
			"identity_files":           redacted.SSH.IdentityFiles,
			"known_hosts_file":         redacted.SSH.KnownHostsFile,
			"insecure_ignore_host_key": redacted.SSH.InsecureIgnoreHostKey,
			"connect_timeout":          redacted.SSH.ConnectTimeout.String(),
			"use_agent":                redacted.SSH.UseAgent,
		},
		"run":       redacted.Run,
		"sudo":      redacted.Sudo,
		"execution": redacted.Execution,
		"hooks":     redacted.Hooks,
		"ui":        redacted.UI,
	}

	out, err := toml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode config as TOML: %w", err)
	}
	return string(out), nil
}
