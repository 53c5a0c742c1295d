// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/fabgo/fab/internal/config"
	"github.com/fabgo/fab/internal/connection"
	"github.com/fabgo/fab/internal/target"
	"github.com/fabgo/fab/internal/testutil"
	"github.com/fabgo/fab/pkg/types"

	"github.com/charmbracelet/log"
)

const testFabfile = `
tasks: [
	{
		name:        "greet"
		description: "Say hello"
		args: [{name: "name", default: "world"}]
		pre: ["prep"]
		cmds: [{run: "echo hello ${name}"}]
	},
	{
		name: "prep"
		cmds: [{run: "echo prep"}]
	},
	{
		name: "boom"
		cmds: [{run: "fail now"}]
	},
]
`

type (
	staticProvider struct {
		cfg *config.Config
		err error
	}

	// recorder collects "host:command" lines from fakeContexts.
	recorder struct {
		mu    sync.Mutex
		lines []string
	}

	// fakeContext records commands; commands starting with "fail" exit 1.
	fakeContext struct {
		host target.Host
		rec  *recorder
	}
)

func (p staticProvider) Load(context.Context, config.LoadOptions) (*config.Config, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.cfg == nil {
		return config.DefaultConfig(), nil
	}
	c := *p.cfg
	return &c, nil
}

func (r *recorder) add(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.lines)
}

func (f *fakeContext) Host() target.Host { return f.host }

func (f *fakeContext) Run(_ context.Context, command string, _ ...connection.RunOption) (*connection.Result, error) {
	f.rec.add(f.host.String() + ":" + command)
	if strings.HasPrefix(command, "fail") {
		return &connection.Result{Command: command, ExitCode: types.ExitFailure},
			&connection.UnexpectedExitError{Result: &connection.Result{Command: command, ExitCode: types.ExitFailure}}
	}
	return &connection.Result{Command: command}, nil
}

func (f *fakeContext) Sudo(ctx context.Context, command string, opts ...connection.RunOption) (*connection.Result, error) {
	return f.Run(ctx, "sudo "+command, opts...)
}

func (f *fakeContext) Local(ctx context.Context, command string, opts ...connection.RunOption) (*connection.Result, error) {
	return f.Run(ctx, "local "+command, opts...)
}

func (f *fakeContext) Close() error { return nil }

func fakeFactory(rec *recorder) FactoryBuilder {
	return func(connection.Streams, *log.Logger) connection.Factory {
		return func(host target.Host, _ config.Snapshot) (connection.Context, error) {
			if host == "unreachable" {
				return nil, &connection.ConnectError{Host: host, Err: errors.New("dial tcp: connection refused")}
			}
			return &fakeContext{host: host, rec: rec}, nil
		}
	}
}

// runFab executes the CLI in-process and returns what it wrote.
func runFab(t *testing.T, deps Dependencies, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	var out, errOut bytes.Buffer
	deps.Stdout = &out
	deps.Stderr = &errOut
	if deps.Stdin == nil {
		deps.Stdin = strings.NewReader("")
	}
	if deps.Config == nil {
		deps.Config = staticProvider{}
	}

	root := NewRootCommand(NewApp(deps))
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	err = root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func writeFabfile(t *testing.T) string {
	t.Helper()
	return testutil.MustWriteFile(t, t.TempDir(), "fabfile.cue", testFabfile)
}

func exitCode(t *testing.T, err error) types.ExitCode {
	t.Helper()
	if err == nil {
		return types.ExitSuccess
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("error %v is not an *ExitError", err)
	}
	return exitErr.Code
}

func TestGetVersionString(t *testing.T) {
	// Not parallel: subtests mutate package-level Version/Commit/BuildDate vars.

	t.Run("ldflags version takes priority", func(t *testing.T) {
		origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
		t.Cleanup(func() {
			Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
		})

		Version = "v1.2.3"
		Commit = "abc1234"
		BuildDate = "2026-06-15T10:00:00Z"

		got := getVersionString()
		want := "v1.2.3 (commit: abc1234, built: 2026-06-15T10:00:00Z)"
		if got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})

	t.Run("fallback to dev when no build info", func(t *testing.T) {
		origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
		t.Cleanup(func() {
			Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
		})

		// Test binaries report Main.Version == "(devel)".
		Version = "dev"
		Commit = "unknown"
		BuildDate = "unknown"

		got := getVersionString()
		want := "dev (built from source)"
		if got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})
}

func TestSplitArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		args      []string
		dash      int
		wantNames []string
		wantAnon  string
	}{
		{"no dash", []string{"deploy", "check"}, -1, []string{"deploy", "check"}, ""},
		{"only command", []string{"uptime"}, 0, []string{}, "uptime"},
		{"tasks and command", []string{"deploy", "ls", "-la", "/tmp"}, 1, []string{"deploy"}, "ls -la /tmp"},
		{"empty command", []string{"deploy"}, 1, []string{"deploy"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			names, anon := splitArgs(tt.args, tt.dash)
			if !slices.Equal(names, tt.wantNames) {
				t.Errorf("names = %q, want %q", names, tt.wantNames)
			}
			if anon != tt.wantAnon {
				t.Errorf("anonymous = %q, want %q", anon, tt.wantAnon)
			}
		})
	}
}

func TestRun_DryRun(t *testing.T) {
	t.Parallel()

	path := writeFabfile(t)
	stdout, _, err := runFab(t, Dependencies{},
		"--dry-run", "-f", path, "-H", "web1,web2", "-H", "db1", "greet:name=ops", "prep", "--", "uptime")
	if err != nil {
		t.Fatalf("fab error = %v", err)
	}

	want := strings.Join([]string{
		"greet:name=ops@web1",
		"greet:name=ops@web2",
		"greet:name=ops@db1",
		"prep@web1",
		"prep@web2",
		"prep@db1",
		`"uptime"@web1`,
		`"uptime"@web2`,
		`"uptime"@db1`,
	}, "\n") + "\n"
	if stdout != want {
		t.Errorf("stdout =\n%s\nwant\n%s", stdout, want)
	}
}

func TestRun_DryRunWithoutHosts(t *testing.T) {
	t.Parallel()

	stdout, _, err := runFab(t, Dependencies{}, "--dry-run", "-f", writeFabfile(t), "greet")
	if err != nil {
		t.Fatalf("fab error = %v", err)
	}
	if stdout != "greet:name=world\n" {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestRun_Remote(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "per target hooks",
			args: []string{"-H", "web1,web2", "greet:name=ops"},
			want: []string{"web1:echo prep", "web1:echo hello ops", "web2:echo prep", "web2:echo hello ops"},
		},
		{
			name: "anonymous after tasks",
			args: []string{"-H", "web1", "-H", "web2", "prep", "--", "uname", "-a"},
			want: []string{"web1:echo prep", "web2:echo prep", "web1:uname -a", "web2:uname -a"},
		},
		{
			name: "duplicate hosts run twice",
			args: []string{"-H", "web1,web1", "--", "uptime"},
			want: []string{"web1:uptime", "web1:uptime"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := &recorder{}
			args := append([]string{"-f", writeFabfile(t)}, tt.args...)
			_, stderr, err := runFab(t, Dependencies{NewFactory: fakeFactory(rec)}, args...)
			if err != nil {
				t.Fatalf("fab error = %v\nstderr: %s", err, stderr)
			}
			if got := rec.snapshot(); !slices.Equal(got, tt.want) {
				t.Errorf("commands = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRun_PerInvocationHooks(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	stdout, stderr, err := runFab(t, Dependencies{NewFactory: fakeFactory(rec)},
		"-f", writeFabfile(t), "--hook-mode", "per_invocation", "-H", "web1,web2", "greet")
	if err != nil {
		t.Fatalf("fab error = %v\nstderr: %s", err, stderr)
	}

	// prep runs once on the local default context, not on the hosts.
	want := []string{"web1:echo hello world", "web2:echo hello world"}
	if got := rec.snapshot(); !slices.Equal(got, want) {
		t.Errorf("commands = %q, want %q", got, want)
	}
	if stdout != "prep\n" {
		t.Errorf("local stdout = %q, want %q", stdout, "prep\n")
	}
}

func TestRun_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		args       []string
		wantCode   types.ExitCode
		wantStderr []string
		wantRan    []string
	}{
		{
			name:       "anonymous without hosts",
			args:       []string{"--", "uptime"},
			wantCode:   types.ExitUsage,
			wantStderr: []string{"not given any hosts to run it on", "Nothing to run the command on"},
		},
		{
			name:       "unparsable command without hosts",
			args:       []string{"--", "if"},
			wantCode:   types.ExitUsage,
			wantStderr: []string{"not given any hosts to run it on"},
		},
		{
			name:       "unknown task",
			args:       []string{"nope"},
			wantCode:   types.ExitFailure,
			wantStderr: []string{`task "nope" not found`, "Available tasks: greet, prep, boom"},
		},
		{
			name:       "unknown argument",
			args:       []string{"greet:color=red"},
			wantCode:   types.ExitUsage,
			wantStderr: []string{"color"},
		},
		{
			name:       "bad raw command",
			args:       []string{"-H", "web1", "--", "echo", "'unterminated"},
			wantCode:   types.ExitUsage,
			wantStderr: []string{"parse command"},
		},
		{
			name:       "bad hook mode",
			args:       []string{"--hook-mode", "sometimes", "greet"},
			wantCode:   types.ExitUsage,
			wantStderr: []string{"sometimes"},
		},
		{
			name:       "item failure is isolated",
			args:       []string{"-H", "web1,web2", "boom", "prep"},
			wantCode:   types.ExitFailure,
			wantStderr: []string{"2 of 4 work items failed", "boom@web1", "boom@web2"},
			wantRan:    []string{"web1:fail now", "web2:fail now", "web1:echo prep", "web2:echo prep"},
		},
		{
			name:       "unreachable host",
			args:       []string{"-H", "unreachable,web1", "--", "uptime"},
			wantCode:   types.ExitFailure,
			wantStderr: []string{"1 of 2 work items failed", "connection refused"},
			wantRan:    []string{"web1:uptime"},
		},
		{
			name:       "fail fast skips the rest",
			args:       []string{"--fail-fast", "-H", "web1", "boom", "prep"},
			wantCode:   types.ExitFailure,
			wantStderr: []string{"1 of 2 work items failed"},
			wantRan:    []string{"web1:fail now"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := &recorder{}
			args := append([]string{"-f", writeFabfile(t)}, tt.args...)
			_, stderr, err := runFab(t, Dependencies{NewFactory: fakeFactory(rec)}, args...)
			if code := exitCode(t, err); code != tt.wantCode {
				t.Errorf("exit code = %d, want %d\nstderr: %s", code, tt.wantCode, stderr)
			}
			for _, want := range tt.wantStderr {
				if !strings.Contains(stderr, want) {
					t.Errorf("stderr missing %q:\n%s", want, stderr)
				}
			}
			if got := rec.snapshot(); !slices.Equal(got, tt.wantRan) {
				t.Errorf("commands = %q, want %q", got, tt.wantRan)
			}
		})
	}
}

func TestRun_MissingFabfile(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "fabfile.cue")
	_, stderr, err := runFab(t, Dependencies{}, "-f", missing, "deploy")
	if code := exitCode(t, err); code != types.ExitFailure {
		t.Errorf("exit code = %d", code)
	}
	for _, want := range []string{"No fabfile found", "no fabfile at " + missing} {
		if !strings.Contains(stderr, want) {
			t.Errorf("stderr missing %q:\n%s", want, stderr)
		}
	}
}

func TestRun_ConfigLoadFailure(t *testing.T) {
	t.Parallel()

	_, stderr, err := runFab(t, Dependencies{Config: staticProvider{err: errors.New("bad config")}}, "--", "uptime")
	if code := exitCode(t, err); code != types.ExitFailure {
		t.Errorf("exit code = %d", code)
	}
	if !strings.Contains(stderr, "bad config") {
		t.Errorf("stderr = %s", stderr)
	}
}

func TestRun_SudoPasswordPrompt(t *testing.T) {
	t.Parallel()

	var seen string
	var mu sync.Mutex
	factory := func(connection.Streams, *log.Logger) connection.Factory {
		return func(host target.Host, cfg config.Snapshot) (connection.Context, error) {
			mu.Lock()
			seen = cfg.Sudo().Password
			mu.Unlock()
			return &fakeContext{host: host, rec: &recorder{}}, nil
		}
	}

	_, stderr, err := runFab(t, Dependencies{NewFactory: factory, Stdin: strings.NewReader("s3cret\n")},
		"--prompt-for-sudo-password", "-H", "web1", "--", "id")
	if err != nil {
		t.Fatalf("fab error = %v\nstderr: %s", err, stderr)
	}
	if !strings.Contains(stderr, "Sudo password:") {
		t.Errorf("stderr = %q", stderr)
	}
	mu.Lock()
	defer mu.Unlock()
	if seen != "s3cret" {
		t.Errorf("sudo password = %q", seen)
	}
}

func TestRun_FlagOverrides(t *testing.T) {
	t.Parallel()

	base := config.DefaultConfig()
	base.SSH.IdentityFiles = []string{"~/.ssh/id_fab"}

	var (
		mu   sync.Mutex
		seen config.Snapshot
	)
	factory := func(connection.Streams, *log.Logger) connection.Factory {
		return func(host target.Host, cfg config.Snapshot) (connection.Context, error) {
			mu.Lock()
			seen = cfg
			mu.Unlock()
			return &fakeContext{host: host, rec: &recorder{}}, nil
		}
	}

	_, stderr, err := runFab(t, Dependencies{Config: staticProvider{cfg: base}, NewFactory: factory},
		"-P", "--max-workers", "3", "-u", "deploy", "--port", "2222", "-i", "/keys/a",
		"-H", "web1", "--", "id")
	if err != nil {
		t.Fatalf("fab error = %v\nstderr: %s", err, stderr)
	}

	mu.Lock()
	defer mu.Unlock()
	if exec := seen.Execution(); !exec.Parallel || exec.MaxWorkers != 3 || exec.FailFast {
		t.Errorf("execution = %+v", exec)
	}
	ssh := seen.SSH()
	if ssh.User != "deploy" || ssh.Port != 2222 {
		t.Errorf("ssh = %+v", ssh)
	}
	if !slices.Equal(ssh.IdentityFiles, []string{"/keys/a", "~/.ssh/id_fab"}) {
		t.Errorf("identity files = %q", ssh.IdentityFiles)
	}
	if seen.Hooks().Mode != config.HookModePerTarget {
		t.Errorf("hook mode = %q, want the config default", seen.Hooks().Mode)
	}
}

func TestList(t *testing.T) {
	t.Parallel()

	stdout, _, err := runFab(t, Dependencies{}, "list", "-f", writeFabfile(t))
	if err != nil {
		t.Fatalf("fab list error = %v", err)
	}
	for _, want := range []string{"Available tasks:", "greet:name=world", "Say hello", "pre:  prep", "boom"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}
}

func TestConfigShow(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.SSH.Password = "hunter2"
	cfg.SSH.User = "deploy"

	tests := []struct {
		format string
		want   string
	}{
		{"cue", `user: "deploy"`},
		{"toml", "deploy"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			t.Parallel()
			stdout, _, err := runFab(t, Dependencies{Config: staticProvider{cfg: cfg}}, "config", "show", "--format", tt.format)
			if err != nil {
				t.Fatalf("config show error = %v", err)
			}
			if !strings.Contains(stdout, tt.want) {
				t.Errorf("stdout missing %q:\n%s", tt.want, stdout)
			}
			if strings.Contains(stdout, "hunter2") {
				t.Error("config show leaked the SSH password")
			}
		})
	}

	t.Run("unknown format", func(t *testing.T) {
		t.Parallel()
		_, _, err := runFab(t, Dependencies{}, "config", "show", "--format", "yaml")
		if err == nil || !strings.Contains(err.Error(), "yaml") {
			t.Errorf("error = %v", err)
		}
	})
}

func TestRun_NoArgsShowsHelp(t *testing.T) {
	t.Parallel()

	stdout, _, err := runFab(t, Dependencies{})
	if err != nil {
		t.Fatalf("fab error = %v", err)
	}
	if !strings.Contains(stdout, "fab [flags]") {
		t.Errorf("help output = %s", stdout)
	}
}

func TestRun_LocalWithoutHosts(t *testing.T) {
	t.Parallel()

	stdout, stderr, err := runFab(t, Dependencies{}, "-f", writeFabfile(t), "greet:name=fab")
	if err != nil {
		t.Fatalf("fab error = %v\nstderr: %s", err, stderr)
	}
	if stdout != "prep\nhello fab\n" {
		t.Errorf("stdout = %q", stdout)
	}
}
