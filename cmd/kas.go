package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"kas/internal/async"
	"kas/internal/config"
	"kas/internal/kaserr"
	"kas/internal/logger"
	"kas/internal/plugin"
	"kas/internal/plugins"
	"kas/internal/signals"
	"kas/internal/version"
)

// App is one kas process: the plugin registry, the standard streams and
// the process-wide logger, plus the state created while dispatching.
type App struct {
	Registry *plugin.Registry
	Log      *logrus.Logger

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	env   config.Environment
	tasks *async.Runtime
}

// NewApp creates an App for reg. The logger is created here, before any
// command line parsing happens.
func NewApp(reg *plugin.Registry, stdin io.Reader, stdout, stderr io.Writer) *App {
	return &App{
		Registry: reg,
		Log:      logger.New(stderr),
		Stdin:    stdin,
		Stdout:   stdout,
		Stderr:   stderr,
	}
}

// Execute runs kas with the process arguments and returns the exit code.
func Execute() int {
	return Main(os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

// Main loads the built-in plugins, intercepts termination signals and runs
// kas with argv. It returns the process exit code.
func Main(argv []string, stdin io.Reader, stdout, stderr io.Writer) int {
	app := NewApp(plugin.NewRegistry(), stdin, stdout, stderr)
	if err := plugins.Load(app.Registry); err != nil {
		return app.translate(err)
	}

	stop := signals.Intercept(func(sig os.Signal) {
		app.Log.Debugf("received %s, leaving it to child processes", sig)
	}, signals.Default...)
	defer stop()

	return app.Run(argv)
}

// Run dispatches argv, translates the outcome into an exit code and drains
// the async runtime before returning that code.
func (a *App) Run(argv []string) int {
	code := a.translate(a.dispatch(argv))
	return a.shutdown(code)
}

// dispatch parses argv and runs the selected plugin, or prints the help text
// when no subcommand is given. Errors returned by a plugin are passed on
// unchanged; errors raised before a plugin could run are usage errors.
func (a *App) dispatch(argv []string) error {
	parsed := false
	root, err := a.newRootCommand(newGlobalFlags(), &parsed)
	if err != nil {
		return err
	}
	root.SetArgs(argv)

	cmd, err := root.ExecuteC()
	if err == nil || parsed {
		return err
	}
	var usage *kaserr.UsageError
	if errors.As(err, &usage) {
		return err
	}
	return usageError(cmd, err)
}

// prepare applies the log level and sets up the environment and async
// runtime. It runs after parsing and before any plugin.
func (a *App) prepare(g *globalFlags) error {
	if err := logger.SetLevel(a.Log, g.level.String()); err != nil {
		return err
	}
	a.Log.Infof("%s %s started", progName, version.Version)
	a.Log.Debugf("plugins: %s", strings.Join(a.Registry.Names(), ", "))

	env, err := config.LoadEnvironment()
	if err != nil {
		return err
	}
	a.env = env
	a.tasks = async.New(context.Background(), env.Jobs, a.Log)
	return nil
}

// runPlugin invokes p with the parsed arguments. A panic in the plugin is
// converted into an InternalError carrying the stack.
func (a *App) runPlugin(cmd *cobra.Command, p plugin.Plugin, g *globalFlags, positional []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &kaserr.InternalError{
				Err:   fmt.Errorf("plugin %s panicked: %v", p.Name(), r),
				Stack: debug.Stack(),
			}
		}
	}()

	args := &plugin.Args{
		Command:    p.Name(),
		LogLevel:   g.level.String(),
		Debug:      g.debug.set,
		Positional: positional,
		Flags:      cmd.Flags(),
	}
	inv := &plugin.Invocation{
		Log:    a.Log,
		Tasks:  a.tasks,
		Env:    a.env,
		Stdin:  a.Stdin,
		Stdout: a.Stdout,
		Stderr: a.Stderr,
	}
	a.Log.Debugf("running plugin %s", p.Name())
	return p.Run(cmd.Context(), inv, args)
}

// translate reports err and maps it to the exit code.
func (a *App) translate(err error) int {
	switch kaserr.Classify(err) {
	case kaserr.KindSuccess:
	case kaserr.KindUsage:
		var usage *kaserr.UsageError
		if errors.As(err, &usage) && usage.Usage != "" {
			fmt.Fprint(a.Stderr, usage.Usage)
		}
		a.Log.Error(err)
	case kaserr.KindUser, kaserr.KindForwarded:
		a.Log.Error(err)
	default:
		a.Log.Error(err)
		fmt.Fprint(a.Stderr, kaserr.Trace(err))
	}
	return kaserr.ExitCode(err)
}

// shutdown drains the async runtime. Pending work is cancelled right away
// when the invocation already failed. A failing background task turns a
// successful exit code into 1; a failure code is kept as is.
func (a *App) shutdown(code int) int {
	if a.tasks.Active() {
		a.Log.Debugf("waiting for %d pending background task(s)", a.tasks.Pending())
	}
	err := a.tasks.Shutdown(async.ShutdownOptions{
		Grace:  a.env.DrainTimeout,
		Cancel: code != kaserr.ExitSuccess,
	})
	if err == nil {
		return code
	}
	a.Log.Errorf("background task failed: %v", err)
	fmt.Fprint(a.Stderr, kaserr.Trace(err))
	if code == kaserr.ExitSuccess {
		return kaserr.ExitInternal
	}
	return code
}

// usageError wraps a command line error with the usage text of cmd.
func usageError(cmd *cobra.Command, err error) error {
	usage := ""
	if cmd != nil {
		usage = cmd.UsageString()
	}
	return &kaserr.UsageError{Err: err, Usage: usage}
}
