// SPDX-License-Identifier: MPL-2.0

package task

import (
	"context"
	"errors"
	"testing"

	"github.com/fabgo/fab/internal/connection"
	"github.com/fabgo/fab/internal/target"
)

// recordingContext captures commands instead of running them.
type recordingContext struct {
	host     target.Host
	commands []string
	inStream []bool
}

func (r *recordingContext) Host() target.Host { return r.host }

func (r *recordingContext) Run(_ context.Context, command string, opts ...connection.RunOption) (*connection.Result, error) {
	o := connection.RunOptions{InStream: true}
	for _, opt := range opts {
		opt(&o)
	}
	r.commands = append(r.commands, command)
	r.inStream = append(r.inStream, o.InStream)
	return &connection.Result{Host: r.host, Command: command}, nil
}

func (r *recordingContext) Sudo(ctx context.Context, command string, opts ...connection.RunOption) (*connection.Result, error) {
	return r.Run(ctx, "sudo "+command, opts...)
}

func (r *recordingContext) Local(ctx context.Context, command string, opts ...connection.RunOption) (*connection.Result, error) {
	return r.Run(ctx, "local "+command, opts...)
}

func (r *recordingContext) Close() error { return nil }

func TestCall_Immutable(t *testing.T) {
	t.Parallel()

	deploy := &Task{Name: "deploy"}
	args := Args{"env": "prod"}
	call := NewCall(deploy, args)

	args["env"] = "staging"
	if got := call.Args()["env"]; got != "prod" {
		t.Errorf("NewCall must copy args, got env=%q", got)
	}

	view := call.Args()
	view["env"] = "dev"
	if got := call.Args()["env"]; got != "prod" {
		t.Errorf("Args() must return a copy, got env=%q", got)
	}

	clone := call.Clone()
	if clone == call || clone.Task() != deploy || !clone.Equal(call) {
		t.Error("Clone() should be a distinct, equal call sharing the task")
	}
}

func TestCall_Equal(t *testing.T) {
	t.Parallel()

	a := &Task{Name: "a"}
	b := &Task{Name: "b"}
	tests := []struct {
		name string
		x, y *Call
		want bool
	}{
		{"same task no args", NewCall(a, nil), NewCall(a, Args{}), true},
		{"same task same args", NewCall(a, Args{"k": "v"}), NewCall(a, Args{"k": "v"}), true},
		{"different args", NewCall(a, Args{"k": "v"}), NewCall(a, Args{"k": "w"}), false},
		{"different task", NewCall(a, nil), NewCall(b, nil), false},
	}
	for _, tt := range tests {
		if got := tt.x.Equal(tt.y); got != tt.want {
			t.Errorf("%s: Equal() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCall_String(t *testing.T) {
	t.Parallel()

	deploy := &Task{Name: "deploy"}
	tests := []struct {
		call *Call
		want string
	}{
		{NewCall(deploy, nil), "deploy"},
		{NewCall(deploy, Args{"tag": "v1", "env": "prod"}), "deploy:env=prod,tag=v1"},
		{NewCall(deploy, Args{"msg": "a,b=c"}), `deploy:msg=a\,b\=c`},
		{NewCall(Anonymous("uptime"), nil), `"uptime"`},
	}
	for _, tt := range tests {
		if got := tt.call.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestCall_Run(t *testing.T) {
	t.Parallel()

	var gotArgs Args
	tk := &Task{
		Name: "greet",
		Body: func(ctx context.Context, c connection.Context, args Args) error {
			gotArgs = args
			args["name"] = "mutated"
			_, err := c.Run(ctx, "echo hi "+args["name"])
			return err
		},
	}
	call := NewCall(tk, Args{"name": "world"})
	rc := &recordingContext{host: "web1"}
	if err := call.Run(context.Background(), rc); err != nil {
		t.Fatal(err)
	}
	if gotArgs == nil || call.Args()["name"] != "world" {
		t.Error("the body must receive a copy of the arguments")
	}

	if err := NewCall(&Task{Name: "noop"}, nil).Run(context.Background(), rc); err != nil {
		t.Errorf("nil body should be a no-op, got %v", err)
	}
}

func TestAnonymous(t *testing.T) {
	t.Parallel()

	anon := Anonymous("uname -a")
	if !anon.IsAnonymous() || anon.Command != "uname -a" || anon.Name != AnonymousName {
		t.Errorf("Anonymous() = %+v", anon)
	}

	rc := &recordingContext{host: "web1"}
	if err := NewCall(anon, nil).Run(context.Background(), rc); err != nil {
		t.Fatal(err)
	}
	if len(rc.commands) != 1 || rc.commands[0] != "uname -a" {
		t.Errorf("commands = %q", rc.commands)
	}
	if rc.inStream[0] {
		t.Error("anonymous commands must not forward stdin")
	}
}

func TestValidateCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		command string
		wantErr bool
	}{
		{"uptime", false},
		{"cd /srv && ls | wc -l", false},
		{"echo 'unterminated", true},
		{"if true; then", true},
		{"   ", true},
	}
	for _, tt := range tests {
		err := ValidateCommand(tt.command)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateCommand(%q) = %v, wantErr %v", tt.command, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidCommand) {
			t.Errorf("error should wrap ErrInvalidCommand: %v", err)
		}
	}
}
