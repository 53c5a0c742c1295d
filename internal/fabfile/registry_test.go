// SPDX-License-Identifier: MPL-2.0

package fabfile

import (
	"context"
	"errors"
	"maps"
	"strings"
	"testing"

	"github.com/fabgo/fab/internal/connection"
	"github.com/fabgo/fab/internal/target"
	"github.com/fabgo/fab/internal/task"
)

type (
	recordedRun struct {
		method  string
		command string
		opts    connection.RunOptions
	}

	recordingContext struct {
		runs []recordedRun
		fail string
	}
)

func (r *recordingContext) record(method, command string, opts []connection.RunOption) (*connection.Result, error) {
	var o connection.RunOptions
	for _, opt := range opts {
		opt(&o)
	}
	r.runs = append(r.runs, recordedRun{method: method, command: command, opts: o})
	if r.fail != "" && strings.Contains(command, r.fail) {
		return nil, errors.New("exit status 1")
	}
	return &connection.Result{Command: command}, nil
}

func (r *recordingContext) Host() target.Host { return "web1" }

func (r *recordingContext) Run(_ context.Context, command string, opts ...connection.RunOption) (*connection.Result, error) {
	return r.record("run", command, opts)
}

func (r *recordingContext) Sudo(_ context.Context, command string, opts ...connection.RunOption) (*connection.Result, error) {
	return r.record("sudo", command, opts)
}

func (r *recordingContext) Local(_ context.Context, command string, opts ...connection.RunOption) (*connection.Result, error) {
	return r.record("local", command, opts)
}

func (r *recordingContext) Close() error { return nil }

func sampleRegistry(t *testing.T) *task.Registry {
	t.Helper()
	ff, err := ParseBytes([]byte(sampleFabfile), "fabfile.cue")
	if err != nil {
		t.Fatal(err)
	}
	reg, err := ff.Registry()
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	reg := sampleRegistry(t)
	if got := strings.Join(reg.Names(), ","); got != "deploy,check,notify" {
		t.Errorf("Names() = %s", got)
	}
	deploy, _ := reg.Get("deploy")
	if deploy.Description != "Ship a release" || len(deploy.Pre) != 1 || deploy.Post[0] != "notify" {
		t.Errorf("deploy = %+v", deploy)
	}
	tag, ok := deploy.Arg("tag")
	if !ok || !tag.HasDefault || tag.Default != "latest" {
		t.Errorf("tag arg = %+v", tag)
	}
	if env, _ := deploy.Arg("env"); env.HasDefault {
		t.Error("env should be required")
	}
}

func TestRegistry_Bodies(t *testing.T) {
	t.Parallel()

	reg := sampleRegistry(t)
	call, err := task.ParseInvocation(reg, "deploy:prod")
	if err != nil {
		t.Fatal(err)
	}
	rc := &recordingContext{}
	if err := call.Run(context.Background(), rc); err != nil {
		t.Fatal(err)
	}

	if len(rc.runs) != 2 {
		t.Fatalf("runs = %+v", rc.runs)
	}
	first := rc.runs[0]
	if first.method != "run" || first.command != "echo deploying latest to prod" {
		t.Errorf("first run = %+v", first)
	}
	if !maps.Equal(first.opts.Env, map[string]string{"APP": "shop"}) {
		t.Errorf("env = %v", first.opts.Env)
	}
	if rc.runs[1].method != "sudo" || rc.runs[1].command != "systemctl restart shop" {
		t.Errorf("second run = %+v", rc.runs[1])
	}

	rc = &recordingContext{}
	check, _ := task.ParseInvocation(reg, "check")
	if err := check.Run(context.Background(), rc); err != nil {
		t.Fatal(err)
	}
	if o := rc.runs[0].opts; !o.Warn || !o.Hide {
		t.Errorf("check options = %+v", o)
	}

	rc = &recordingContext{}
	notify, _ := task.ParseInvocation(reg, "notify")
	if err := notify.Run(context.Background(), rc); err != nil {
		t.Fatal(err)
	}
	if rc.runs[0].method != "local" {
		t.Errorf("notify ran via %s, want local", rc.runs[0].method)
	}
}

func TestRegistry_BodyStopsAtFailure(t *testing.T) {
	t.Parallel()

	reg := sampleRegistry(t)
	call, err := task.ParseInvocation(reg, "deploy:env=prod")
	if err != nil {
		t.Fatal(err)
	}
	rc := &recordingContext{fail: "deploying"}
	if err := call.Run(context.Background(), rc); err == nil {
		t.Fatal("expected failure")
	}
	if len(rc.runs) != 1 {
		t.Errorf("ran %d commands after a failure, want 1", len(rc.runs))
	}
}

func TestExpandArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		command string
		args    task.Args
		want    string
	}{
		{"no args", "echo ${env}", nil, "echo ${env}"},
		{"no expansion", "uptime", task.Args{"env": "prod"}, "uptime"},
		{"simple", "echo ${env}", task.Args{"env": "prod"}, "echo prod"},
		{"short form", "echo $env", task.Args{"env": "prod"}, "echo prod"},
		{"quoted word", "ls ${dir}", task.Args{"dir": "my dir"}, "ls 'my dir'"},
		{"inside double quotes", `echo "tag=${tag}"`, task.Args{"tag": "v1"}, `echo "tag=v1"`},
		{"escaped in double quotes", `echo "${msg}"`, task.Args{"msg": `say "hi" $x`}, `echo "say \"hi\" \$x"`},
		{"default operator", "echo ${env:-dev}", task.Args{"env": ""}, "echo dev"},
		{"undeclared left alone", "echo $HOME ${env}", task.Args{"env": "prod"}, "echo $HOME prod"},
		{"list", "cd /srv && ls ${dir}", task.Args{"dir": "a b"}, "cd /srv && ls 'a b'"},
		{"empty value", "echo x${env}y", task.Args{"env": ""}, "echo x''y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ExpandArgs(tt.command, tt.args)
			if err != nil {
				t.Fatalf("ExpandArgs() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ExpandArgs(%q) = %q, want %q", tt.command, got, tt.want)
			}
		})
	}
}

func TestExpandArgs_Errors(t *testing.T) {
	t.Parallel()

	if _, err := ExpandArgs("echo ${env", task.Args{"env": "x"}); !errors.Is(err, task.ErrInvalidCommand) {
		t.Errorf("parse error = %v", err)
	}
	if _, err := ExpandArgs("echo ${env:?required}", task.Args{"env": ""}); err == nil {
		t.Error("${env:?} on an empty value should fail")
	}
}
