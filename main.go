// SPDX-License-Identifier: MPL-2.0

// Command fab runs tasks and shell commands across many hosts over SSH.
package main

import cmd "github.com/fabgo/fab/cmd/fab"

func main() {
	cmd.Execute()
}
