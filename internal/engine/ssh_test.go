// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/fabgo/fab/internal/connection"
	"github.com/fabgo/fab/internal/plan"
	"github.com/fabgo/fab/internal/target"
	"github.com/fabgo/fab/internal/testutil/sshtarget"

	"github.com/charmbracelet/log"
)

// syncBuffer serialises writes from concurrent sessions.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestExecute_AnonymousOverSSH(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping SSH round trip in short mode")
	}
	t.Parallel()

	tg := sshtarget.Start(t)
	cfg := tg.Config()
	cfg.Execution.Parallel = true

	var out syncBuffer
	quiet := log.New(io.Discard)
	factory := connection.NewFactory(
		connection.WithStreams(connection.Streams{Stdout: &out, Stderr: &out}),
		connection.WithLogger(quiet),
	)

	items, err := plan.NewPlanner(factory).Expand(nil, []target.Host{tg.Host, tg.Host}, "echo fanned-out")
	if err != nil {
		t.Fatal(err)
	}
	report, err := New(cfg.Snapshot(), WithDeduper(plan.NoDedupe{}), WithLogger(quiet)).Execute(context.Background(), items)
	if err != nil {
		t.Fatal(err)
	}
	if !report.OK() {
		t.Fatalf("report failed: %v", report.Err())
	}
	if n := strings.Count(out.String(), "fanned-out"); n != 2 {
		t.Errorf("output %q has %d greetings, want 2", out.String(), n)
	}
}
