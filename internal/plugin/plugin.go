// Package plugin defines the contract between kas and the plugins that
// contribute its subcommands, and the registry holding them.
package plugin

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"kas/internal/async"
	"kas/internal/config"
)

// Plugin is implemented by every kas subcommand.
//
// Name and Help identify the subcommand on the command line. SetupParser
// adds the plugin's flags and positional argument rules to the subcommand;
// it must not set Run hooks. Run performs the work and reports failures
// using the error kinds of package kaserr.
type Plugin interface {
	Name() string
	Help() string
	SetupParser(cmd *cobra.Command)
	Run(ctx context.Context, inv *Invocation, args *Args) error
}

// Args is the parsed command line of a single invocation.
type Args struct {
	// Command is the selected subcommand.
	Command string
	// LogLevel is the effective log level name.
	LogLevel string
	// Debug is set when the deprecated -d/--debug flag was given.
	Debug bool
	// Positional holds the arguments left after flag parsing.
	Positional []string
	// Flags is the subcommand's flag set as defined by SetupParser.
	// Plugins read it; they never modify it.
	Flags *pflag.FlagSet
}

// Invocation carries the process-scoped collaborators a plugin may use.
// They are created once at startup and shared by all plugins.
type Invocation struct {
	Log   *logrus.Logger
	Tasks *async.Runtime
	Env   config.Environment

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}
