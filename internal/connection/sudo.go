// SPDX-License-Identifier: MPL-2.0

package connection

import (
	"bytes"
	"io"
	"strings"
	"sync"

	"github.com/fabgo/fab/internal/config"
	"github.com/fabgo/fab/internal/target"

	"mvdan.cc/sh/v3/syntax"
)

// promptWatcher scans a stderr stream for the sudo prompt and answers it.
// A second prompt after an answer means the password was rejected, at which
// point abort (if set) is called so the command does not hang waiting on
// stdin.
type promptWatcher struct {
	prompt   []byte
	password string
	stdin    io.Writer
	abort    func()

	mu       sync.Mutex
	tail     []byte
	answered int
	missing  bool
	rejected bool
}

func newPromptWatcher(prompt, password string, stdin io.Writer, abort func()) *promptWatcher {
	if prompt == "" {
		prompt = config.DefaultSudoPrompt
	}
	return &promptWatcher{
		prompt:   []byte(prompt),
		password: password,
		stdin:    stdin,
		abort:    abort,
	}
}

// Write implements io.Writer. It never fails so the stderr copy continues.
func (w *promptWatcher) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.tail = append(w.tail, p...)
	for {
		i := bytes.Index(w.tail, w.prompt)
		if i < 0 {
			break
		}
		w.tail = w.tail[i+len(w.prompt):]
		w.respond()
	}
	// keep only enough bytes to match a prompt split across writes
	if keep := len(w.prompt) - 1; len(w.tail) > keep {
		w.tail = w.tail[len(w.tail)-keep:]
	}
	return len(p), nil
}

// respond must be called with mu held.
func (w *promptWatcher) respond() {
	switch {
	case w.password == "":
		w.missing = true
	case w.answered > 0:
		w.rejected = true
	default:
		w.answered++
		_, _ = io.WriteString(w.stdin, w.password+"\n") //nolint:errcheck // a dead stdin surfaces as the command's exit status
		return
	}
	if w.abort != nil {
		w.abort()
	}
	if c, ok := w.stdin.(io.Closer); ok {
		_ = c.Close()
	}
}

// err reports a prompt failure seen during the run, or nil.
func (w *promptWatcher) err(host target.Host) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.missing || w.rejected {
		return &SudoPasswordError{Host: host, Rejected: w.rejected}
	}
	return nil
}

// sudoArgs returns the arguments following "sudo" for running command in shell.
func sudoArgs(sudo config.SudoConfig, shell, command string) []string {
	prompt := sudo.Prompt
	if prompt == "" {
		prompt = config.DefaultSudoPrompt
	}
	if shell == "" {
		shell = config.DefaultShell
	}
	args := []string{"-S", "-p", prompt}
	if sudo.User != "" {
		args = append(args, "-H", "-u", sudo.User)
	}
	return append(args, shell, "-c", command)
}

// sudoCommand renders sudoArgs as one POSIX command line for a remote shell.
func sudoCommand(sudo config.SudoConfig, shell, command string) (string, error) {
	words := []string{"sudo"}
	for _, arg := range sudoArgs(sudo, shell, command) {
		quoted, err := syntax.Quote(arg, syntax.LangPOSIX)
		if err != nil {
			return "", err
		}
		words = append(words, quoted)
	}
	return strings.Join(words, " "), nil
}

// shellCommand wraps command as `<shell> -c '<command>'`.
func shellCommand(shell, command string) (string, error) {
	if shell == "" {
		shell = config.DefaultShell
	}
	quoted, err := syntax.Quote(command, syntax.LangPOSIX)
	if err != nil {
		return "", err
	}
	return shell + " -c " + quoted, nil
}
