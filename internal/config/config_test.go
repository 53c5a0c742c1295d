// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fabgo/fab/internal/issue"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	t.Parallel()

	cfg, path, err := LoadWithPath(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("LoadWithPath() error: %v", err)
	}
	if path != "" {
		t.Errorf("resolved path = %q, want empty", path)
	}

	defaults := DefaultConfig()
	if cfg.Run.Shell != defaults.Run.Shell {
		t.Errorf("Run.Shell = %q, want %q", cfg.Run.Shell, defaults.Run.Shell)
	}
	if cfg.SSH.ConnectTimeout != DefaultConnectTimeout {
		t.Errorf("SSH.ConnectTimeout = %v, want %v", cfg.SSH.ConnectTimeout, DefaultConnectTimeout)
	}
	if cfg.Hooks.Mode != HookModePerTarget {
		t.Errorf("Hooks.Mode = %q, want %q", cfg.Hooks.Mode, HookModePerTarget)
	}
	if cfg.Execution.MaxWorkers != DefaultMaxWorkers {
		t.Errorf("Execution.MaxWorkers = %d, want %d", cfg.Execution.MaxWorkers, DefaultMaxWorkers)
	}
}

func TestLoad_CUEFileOverridesDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfig(t, dir, `
ssh: {
	user: "deploy"
	port: 2222
	identity_files: ["~/.ssh/deploy_ed25519"]
	connect_timeout: "3s"
}
run: {
	hide: true
	env: {"APP_ENV": "staging"}
}
execution: {
	parallel: true
	max_workers: 4
}
hooks: mode: "per_invocation"
`)

	cfg, path, err := LoadWithPath(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("LoadWithPath() error: %v", err)
	}
	if !strings.HasSuffix(path, "config.cue") {
		t.Errorf("resolved path = %q", path)
	}
	if cfg.SSH.User != "deploy" || cfg.SSH.Port != 2222 {
		t.Errorf("SSH = %+v", cfg.SSH)
	}
	if cfg.SSH.ConnectTimeout != 3*time.Second {
		t.Errorf("ConnectTimeout = %v, want 3s", cfg.SSH.ConnectTimeout)
	}
	if len(cfg.SSH.IdentityFiles) != 1 || cfg.SSH.IdentityFiles[0] != "~/.ssh/deploy_ed25519" {
		t.Errorf("IdentityFiles = %v", cfg.SSH.IdentityFiles)
	}
	if !cfg.Run.Hide || cfg.Run.Env["APP_ENV"] != "staging" {
		t.Errorf("Run = %+v", cfg.Run)
	}
	if cfg.Run.Shell != DefaultShell {
		t.Errorf("unset field lost its default: Run.Shell = %q", cfg.Run.Shell)
	}
	if !cfg.Execution.Parallel || cfg.Execution.MaxWorkers != 4 {
		t.Errorf("Execution = %+v", cfg.Execution)
	}
	if cfg.Hooks.Mode != HookModePerInvocation {
		t.Errorf("Hooks.Mode = %q", cfg.Hooks.Mode)
	}
}

func TestLoad_SchemaViolation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfig(t, dir, `hooks: mode: "sometimes"`)

	_, _, err := LoadWithPath(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err == nil {
		t.Fatal("expected schema validation error")
	}
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("error should be *issue.ActionableError, got %T", err)
	}
	if !ae.HasSuggestions() {
		t.Error("expected suggestions on config load error")
	}
}

func TestLoad_UnknownField(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfig(t, dir, `roles: web: ["web1"]`)

	if _, _, err := LoadWithPath(context.Background(), LoadOptions{ConfigDirPath: dir}); err == nil {
		t.Fatal("expected error for field outside #Config")
	}
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	t.Parallel()

	_, err := NewProvider().Load(context.Background(), LoadOptions{
		ConfigFilePath: filepath.Join(t.TempDir(), "nope.cue"),
	})
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Fatalf("Load() error = %v, want config file not found", err)
	}
}

func TestLoad_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewProvider().Load(ctx, LoadOptions{ConfigDirPath: t.TempDir()}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Load() error = %v, want context.Canceled", err)
	}
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Setenv("FAB_SSH_USER", "envuser")
	t.Setenv("FAB_EXECUTION_PARALLEL", "true")

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.SSH.User != "envuser" {
		t.Errorf("SSH.User = %q, want envuser", cfg.SSH.User)
	}
	if !cfg.Execution.Parallel {
		t.Error("Execution.Parallel = false, want true from FAB_EXECUTION_PARALLEL")
	}
}

func TestGenerateCUE_RoundTripsThroughSchema(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.SSH.User = "deploy"
	cfg.SSH.Password = "secret"
	cfg.Run.Env = map[string]string{"B": "2", "A": "1"}

	content := GenerateCUE(cfg)
	if strings.Contains(content, "secret") {
		t.Fatal("GenerateCUE leaked ssh.password")
	}

	dir := t.TempDir()
	writeConfig(t, dir, content)
	loaded, _, err := LoadWithPath(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("generated CUE failed to load: %v\n%s", err, content)
	}
	if loaded.SSH.User != "deploy" || loaded.Run.Env["A"] != "1" {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestGenerateTOML(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Sudo.Password = "hunter2"

	out, err := GenerateTOML(cfg)
	if err != nil {
		t.Fatalf("GenerateTOML() error: %v", err)
	}
	if strings.Contains(out, "hunter2") {
		t.Error("GenerateTOML leaked sudo.password")
	}
	for _, want := range []string{"[ssh]", "connect_timeout = '10s'", "[hooks]", "mode = 'per_target'"} {
		if !strings.Contains(out, want) {
			t.Errorf("TOML output missing %q:\n%s", want, out)
		}
	}
}

func TestCreateDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	SetConfigDirOverride(dir)
	t.Cleanup(Reset)

	path, err := CreateDefaultConfig()
	if err != nil {
		t.Fatalf("CreateDefaultConfig() error: %v", err)
	}
	if path != filepath.Join(dir, "config.cue") {
		t.Errorf("path = %q", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not created: %v", err)
	}
}
