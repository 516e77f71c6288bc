// Package shell implements the shell plugin: it runs a command or an
// interactive shell inside the build environment.
package shell

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"kas/internal/kaserr"
	"kas/internal/plugin"
)

// DefaultShell is used when $SHELL is not set.
const DefaultShell = "/bin/sh"

// Plugin is the shell subcommand.
type Plugin struct{}

// New creates the shell plugin.
func New() *Plugin { return &Plugin{} }

func (*Plugin) Name() string { return "shell" }

func (*Plugin) Help() string { return "Run a shell in the build environment." }

func (*Plugin) SetupParser(cmd *cobra.Command) {
	cmd.Long = "Run a shell in the build environment.\n\n" +
		"The exit code of the command is forwarded as the exit code of kas."
	cmd.Args = cobra.NoArgs
	cmd.Flags().StringP("command", "c", "", "Run command instead of an interactive shell")
}

// Run starts the shell in the build directory and waits for it.
// A non-zero exit is reported as a forwarded CommandExecError.
func (*Plugin) Run(ctx context.Context, inv *plugin.Invocation, args *plugin.Args) error {
	command, err := args.Flags.GetString("command")
	if err != nil {
		return err
	}

	sh := os.Getenv("SHELL")
	if sh == "" {
		sh = DefaultShell
	}
	argv := []string{sh}
	if command != "" {
		argv = append(argv, "-c", command)
	}

	if err := os.MkdirAll(inv.Env.BuildDir, 0o755); err != nil {
		return &kaserr.UserError{Msg: "creating build directory", Err: err}
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = inv.Env.BuildDir
	cmd.Env = append(os.Environ(), inv.Env.Vars()...)
	cmd.Stdin = inv.Stdin
	cmd.Stdout = inv.Stdout
	cmd.Stderr = inv.Stderr

	inv.Log.Debugf("running %s in %s", strings.Join(argv, " "), cmd.Dir)
	err = cmd.Run()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &exitErr):
		code := exitErr.ExitCode()
		if code < 0 {
			// terminated by a signal
			code = 1
		}
		return &kaserr.CommandExecError{Cmd: argv, RetCode: code, Forward: true}
	default:
		return &kaserr.UserError{Msg: "starting " + sh, Err: err}
	}
}
