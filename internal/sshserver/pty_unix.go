// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package sshserver

import (
	"os"
	"os/exec"

	"github.com/creack/pty"
)

// startPty starts cmd attached to a new pseudo-terminal of the given size.
func startPty(cmd *exec.Cmd, width, height int) (*os.File, error) {
	return pty.StartWithSize(cmd, winsize(width, height))
}

// setWinsize resizes the PTY after a window-change request.
func setWinsize(f *os.File, width, height int) {
	_ = pty.Setsize(f, winsize(width, height)) //nolint:errcheck // resize is best-effort
}

func winsize(width, height int) *pty.Winsize {
	return &pty.Winsize{Cols: clampUint16(width), Rows: clampUint16(height)}
}

func clampUint16(v int) uint16 {
	switch {
	case v < 0:
		return 0
	case v > 0xFFFF:
		return 0xFFFF
	default:
		return uint16(v)
	}
}
