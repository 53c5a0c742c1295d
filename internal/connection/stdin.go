// SPDX-License-Identifier: MPL-2.0

package connection

import (
	"io"
	"reflect"
	"sync"
)

var (
	pumpsMu sync.Mutex
	pumps   = map[io.Reader]*stdinPump{}
)

type (
	// stdinPump owns every read of one shared stdin source. Commands attach
	// to it for the length of their run; bytes read after a command finished
	// are kept for the next command instead of being dropped.
	stdinPump struct {
		src  io.Reader
		reqs chan int
		data chan stdinChunk
		turn chan struct{}
		once sync.Once

		// guarded by turn
		leftover []byte
		err      error
		inflight bool
	}

	stdinChunk struct {
		b   []byte
		err error
	}

	// runStdin is one command's view of a stdinPump. It reports EOF once
	// done is closed.
	runStdin struct {
		pump *stdinPump
		done <-chan struct{}
	}
)

// sharedStdin returns the pump for src, creating it on first use. Every
// context built over the same reader shares one pump.
func sharedStdin(src io.Reader) *stdinPump {
	if !reflect.TypeOf(src).Comparable() {
		return newStdinPump(src)
	}
	pumpsMu.Lock()
	defer pumpsMu.Unlock()
	p, ok := pumps[src]
	if !ok {
		p = newStdinPump(src)
		pumps[src] = p
	}
	return p
}

func newStdinPump(src io.Reader) *stdinPump {
	return &stdinPump{
		src:  src,
		reqs: make(chan int, 1),
		data: make(chan stdinChunk),
		turn: make(chan struct{}, 1),
	}
}

// attach returns a reader for one command. The reader stops at EOF of the
// source or when done is closed, whichever comes first.
func (p *stdinPump) attach(done <-chan struct{}) io.Reader {
	p.once.Do(func() { go p.loop() })
	return &runStdin{pump: p, done: done}
}

func (p *stdinPump) loop() {
	for n := range p.reqs {
		buf := make([]byte, n)
		k, err := p.src.Read(buf)
		p.data <- stdinChunk{b: buf[:k], err: err}
	}
}

// Read implements io.Reader.
func (r *runStdin) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	p := r.pump
	select {
	case p.turn <- struct{}{}:
	case <-r.done:
		return 0, io.EOF
	}
	defer func() { <-p.turn }()

	for {
		if len(p.leftover) > 0 {
			n := copy(b, p.leftover)
			p.leftover = p.leftover[n:]
			return n, nil
		}
		if p.err != nil {
			return 0, p.err
		}
		if !p.inflight {
			p.inflight = true
			p.reqs <- len(b)
		}
		select {
		case c := <-p.data:
			p.inflight = false
			p.leftover = append(p.leftover, c.b...)
			p.err = c.err
		case <-r.done:
			// the pending read is delivered to the next command
			return 0, io.EOF
		}
	}
}
