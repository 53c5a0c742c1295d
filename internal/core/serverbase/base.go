// SPDX-License-Identifier: MPL-2.0

package serverbase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Base tracks one server's lifecycle and background goroutines. Servers embed
// it and drive the Transition* methods from Start and Stop.
//
// A Base is single-use: once stopped or failed, build a new server.
type Base struct {
	state atomic.Int32

	mu      sync.Mutex
	lastErr error

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startedCh chan struct{}
	errCh     chan error
}

// NewBase returns a Base in StateCreated.
func NewBase() *Base {
	b := &Base{
		startedCh: make(chan struct{}),
		errCh:     make(chan error, 1),
	}
	b.state.Store(int32(StateCreated))
	return b
}

// State returns the current state without locking.
func (b *Base) State() State { return State(b.state.Load()) }

// IsRunning reports whether the state is StateRunning.
func (b *Base) IsRunning() bool { return b.State() == StateRunning }

// Err delivers asynchronous server errors. It is closed once stopped.
func (b *Base) Err() <-chan error { return b.errCh }

// LastError returns the cause of StateFailed, or nil.
func (b *Base) LastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// Context is canceled when the server stops or fails. Nil before Start.
func (b *Base) Context() context.Context { return b.ctx }

// StartedChannel is closed on the transition to StateRunning.
func (b *Base) StartedChannel() <-chan struct{} { return b.startedCh }

// TransitionToStarting moves Created to Starting. An already-canceled ctx
// fails the server instead.
func (b *Base) TransitionToStarting(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		b.TransitionToFailed(fmt.Errorf("context cancelled before start: %w", err))
		return b.LastError()
	}
	if !b.state.CompareAndSwap(int32(StateCreated), int32(StateStarting)) {
		return fmt.Errorf("cannot start server in state %s", b.State())
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())
	return nil
}

// TransitionToRunning moves Starting to Running and releases WaitForReady callers.
func (b *Base) TransitionToRunning() {
	if b.state.CompareAndSwap(int32(StateStarting), int32(StateRunning)) {
		close(b.startedCh)
	}
}

// TransitionToFailed records err, enters StateFailed and cancels Context.
func (b *Base) TransitionToFailed(err error) {
	b.mu.Lock()
	b.lastErr = err
	b.mu.Unlock()

	b.state.Store(int32(StateFailed))
	if b.cancel != nil {
		b.cancel()
	}
	b.SendError(err)
}

// TransitionToStopping reports whether the caller owns the shutdown. It is
// false when the server never started or is already stopping or stopped.
func (b *Base) TransitionToStopping() bool {
	for {
		current := b.State()
		switch current {
		case StateCreated:
			if b.state.CompareAndSwap(int32(StateCreated), int32(StateStopped)) {
				return false
			}
		case StateStarting, StateRunning:
			if b.state.CompareAndSwap(int32(current), int32(StateStopping)) {
				if b.cancel != nil {
					b.cancel()
				}
				return true
			}
		default:
			return false
		}
	}
}

// TransitionToStopped enters StateStopped and closes Err. Call it once all
// goroutines have returned.
func (b *Base) TransitionToStopped() {
	b.state.Store(int32(StateStopped))
	close(b.errCh)
}

// WaitForReady blocks until Running or until ctx is done.
func (b *Base) WaitForReady(ctx context.Context) error {
	select {
	case <-b.startedCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for server ready: %w", ctx.Err())
	}
}

// Go runs fn in a goroutine tracked by WaitForShutdown.
func (b *Base) Go(fn func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn()
	}()
}

// WaitForShutdown blocks until every Go goroutine has returned.
func (b *Base) WaitForShutdown() { b.wg.Wait() }

// SendError delivers err on Err without blocking; it is dropped when full.
func (b *Base) SendError(err error) {
	defer func() { _ = recover() }() // Err may already be closed
	select {
	case b.errCh <- err:
	default:
	}
}
