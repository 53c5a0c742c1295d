// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// errEmptySudoPassword is returned when the prompt is answered with nothing.
var errEmptySudoPassword = errors.New("empty sudo password")

// readSudoPassword prompts on w and reads one line from r. Terminal input is
// read without echo; anything else (a pipe, a test buffer) is read as a
// plain line.
func readSudoPassword(r io.Reader, w io.Writer) (string, error) {
	fmt.Fprint(w, "Sudo password: ")

	var password string
	if f, ok := r.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(w)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		password = string(raw)
	} else {
		line, err := bufio.NewReader(r).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(w)
		password = strings.TrimRight(line, "\r\n")
	}

	if password == "" {
		return "", errEmptySudoPassword
	}
	return password, nil
}
