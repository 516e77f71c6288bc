package main

import (
	"os"

	"kas/cmd" // Import the cmd package which contains the CLI surface, dispatch and exit code logic
)

// main is the program entry point.
// It delegates to cmd.Execute() and exits with the code it returns.
//
// kas is a setup tool for bitbake based projects. Its subcommands are
// contributed by plugins registered at startup:
//   - dump prints a kas project configuration file in normalized form
//   - shell runs a command or an interactive shell in the build environment
//   - unpack fetches layer archives and extracts them in parallel
//
// Exit codes:
//   - 0 on success
//   - 2 for errors the user can fix (bad arguments, invalid configuration)
//   - the exit code of a failed child command when that code is forwarded
//   - 1 for internal errors, reported together with a trace
func main() {
	os.Exit(cmd.Execute())
}
