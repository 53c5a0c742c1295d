// SPDX-License-Identifier: MPL-2.0

//go:build windows

package sshserver

import (
	"errors"
	"os"
	"os/exec"
)

// startPty is unsupported on Windows; only exec requests work there.
func startPty(_ *exec.Cmd, _, _ int) (*os.File, error) {
	return nil, errors.New("interactive PTY sessions are not supported on Windows")
}

func setWinsize(_ *os.File, _, _ int) {}
