// SPDX-License-Identifier: MPL-2.0

package fabfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fabgo/fab/internal/testutil"
)

const sampleFabfile = `
tasks: [
	{
		name:        "deploy"
		description: "Ship a release"
		args: [{name: "env"}, {name: "tag", default: "latest"}]
		pre: ["check"]
		post: ["notify"]
		env: {APP: "shop"}
		cmds: [
			{run: "echo deploying ${tag} to ${env}"},
			{run: "systemctl restart shop", sudo: true},
		]
	},
	{
		name: "check"
		cmds: [{run: "uptime", warn: true, hide: true}]
	},
	{
		name:  "notify"
		local: true
		cmds: [{run: "echo done"}]
	},
]
`

func TestParseBytes(t *testing.T) {
	t.Parallel()

	ff, err := ParseBytes([]byte(sampleFabfile), "fabfile.cue")
	if err != nil {
		t.Fatalf("ParseBytes() error = %v", err)
	}
	if ff.FilePath != "fabfile.cue" || len(ff.Tasks) != 3 {
		t.Fatalf("parsed %+v", ff)
	}

	deploy, ok := ff.Task("deploy")
	if !ok {
		t.Fatal("deploy not found")
	}
	if deploy.Description != "Ship a release" || deploy.Env["APP"] != "shop" {
		t.Errorf("deploy = %+v", deploy)
	}
	if len(deploy.Args) != 2 || deploy.Args[0].Default != nil || deploy.Args[1].Default == nil || *deploy.Args[1].Default != "latest" {
		t.Errorf("args = %+v", deploy.Args)
	}
	if !deploy.Cmds[1].Sudo || deploy.Cmds[0].Sudo {
		t.Errorf("cmds = %+v", deploy.Cmds)
	}

	check, _ := ff.Task("check")
	if !check.Cmds[0].Warn || !check.Cmds[0].Hide {
		t.Errorf("check cmds = %+v", check.Cmds)
	}
	if _, ok := ff.Task("missing"); ok {
		t.Error("Task(missing) should fail")
	}
}

func TestParseBytes_SchemaErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{"no cmds", `tasks: [{name: "a"}]`},
		{"empty cmds", `tasks: [{name: "a", cmds: []}]`},
		{"bad name", `tasks: [{name: "has space", cmds: [{run: "true"}]}]`},
		{"reserved name", `tasks: [{name: "<remainder>", cmds: [{run: "true"}]}]`},
		{"unknown field", `tasks: [{name: "a", retries: 3, cmds: [{run: "true"}]}]`},
		{"empty run", `tasks: [{name: "a", cmds: [{run: ""}]}]`},
		{"not cue", `tasks: [`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := ParseBytes([]byte(tt.content), "fabfile.cue"); err == nil {
				t.Errorf("ParseBytes(%q) succeeded, want error", tt.content)
			}
		})
	}
}

func TestParseBytes_ValidationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "duplicate task",
			content: `tasks: [{name: "a", cmds: [{run: "true"}]}, {name: "a", cmds: [{run: "true"}]}]`,
			want:    "defined more than once",
		},
		{
			name:    "duplicate arg",
			content: `tasks: [{name: "a", args: [{name: "x"}, {name: "x"}], cmds: [{run: "true"}]}]`,
			want:    `argument "x" declared more than once`,
		},
		{
			name:    "unknown pre",
			content: `tasks: [{name: "a", pre: ["ghost"], cmds: [{run: "true"}]}]`,
			want:    `pre task "ghost" is not defined`,
		},
		{
			name:    "unknown post",
			content: `tasks: [{name: "a", post: ["ghost"], cmds: [{run: "true"}]}]`,
			want:    `post task "ghost" is not defined`,
		},
		{
			name:    "sudo and local",
			content: `tasks: [{name: "a", local: true, cmds: [{run: "true", sudo: true}]}]`,
			want:    "sudo cannot be combined with local",
		},
		{
			name:    "unparseable command",
			content: `tasks: [{name: "a", cmds: [{run: "if true; then"}]}]`,
			want:    "task 'a' cmds[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseBytes([]byte(tt.content), "fabfile.cue")
			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("error = %v, want ValidationErrors", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.want)
			}
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Parallel()

	errs := ValidationErrors{
		{Field: "task 'a'", Message: "one"},
		{Field: "task 'b'", Message: "two"},
	}
	want := "fabfile has 2 errors:\n  - task 'a': one\n  - task 'b': two"
	if got := errs.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if got := errs[:1].Error(); got != "task 'a': one" {
		t.Errorf("single Error() = %q", got)
	}
}

func TestFind(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if _, err := Find("", dir); !errors.Is(err, ErrNotFound) {
		t.Errorf("Find() in empty dir = %v, want ErrNotFound", err)
	}

	path := testutil.MustWriteFile(t, dir, DefaultFilename, sampleFabfile)
	got, err := Find("", dir)
	if err != nil || got != path {
		t.Errorf("Find() = %q, %v, want %q", got, err, path)
	}

	other := testutil.MustWriteFile(t, dir, "ops.cue", sampleFabfile)
	if got, err := Find(other, "/nonexistent"); err != nil || got != other {
		t.Errorf("Find(explicit) = %q, %v", got, err)
	}
	if _, err := Find(filepath.Join(dir, "nope.cue"), dir); !errors.Is(err, ErrNotFound) {
		t.Errorf("Find(missing explicit) = %v", err)
	}
	if _, err := Find(dir, dir); !errors.Is(err, ErrNotFound) {
		t.Error("a directory is not a fabfile")
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := testutil.MustWriteFile(t, dir, DefaultFilename, sampleFabfile)
	ff, err := Parse(path)
	if err != nil {
		t.Fatal(err)
	}
	if ff.FilePath != path {
		t.Errorf("FilePath = %q", ff.FilePath)
	}

	if _, err := Parse(filepath.Join(dir, "missing.cue")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Parse(missing) = %v", err)
	}
}
