package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kas/internal/kaserr"
	"kas/internal/plugin"
	"kas/internal/version"
)

type fakePlugin struct {
	name  string
	setup func(*cobra.Command)
	run   func(ctx context.Context, inv *plugin.Invocation, args *plugin.Args) error

	calls int
	args  *plugin.Args
	level logrus.Level
}

func (p *fakePlugin) Name() string { return p.name }

func (p *fakePlugin) Help() string { return "fake " + p.name }

func (p *fakePlugin) SetupParser(cmd *cobra.Command) {
	if p.setup != nil {
		p.setup(cmd)
	}
}

func (p *fakePlugin) Run(ctx context.Context, inv *plugin.Invocation, args *plugin.Args) error {
	p.calls++
	p.args = args
	p.level = inv.Log.GetLevel()
	if p.run != nil {
		return p.run(ctx, inv, args)
	}
	return nil
}

type testApp struct {
	*App
	stdout, stderr *bytes.Buffer
}

func newTestApp(t *testing.T, plugins ...plugin.Plugin) *testApp {
	t.Helper()
	t.Setenv("KAS_WORK_DIR", t.TempDir())
	t.Setenv("KAS_DRAIN_TIMEOUT", "5s")

	reg := plugin.NewRegistry()
	for _, p := range plugins {
		require.NoError(t, reg.Register(p))
	}
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	return &testApp{
		App:    NewApp(reg, strings.NewReader(""), stdout, stderr),
		stdout: stdout,
		stderr: stderr,
	}
}

func failWith(err error) func(context.Context, *plugin.Invocation, *plugin.Args) error {
	return func(context.Context, *plugin.Invocation, *plugin.Args) error { return err }
}

func TestRunRoutesToSelectedPlugin(t *testing.T) {
	first := &fakePlugin{name: "first"}
	second := &fakePlugin{name: "second"}
	app := newTestApp(t, first, second)

	code := app.Run([]string{"second", "a", "b"})

	assert.Equal(t, 0, code)
	assert.Equal(t, 0, first.calls)
	require.Equal(t, 1, second.calls)
	assert.Equal(t, "second", second.args.Command)
	assert.Equal(t, []string{"a", "b"}, second.args.Positional)
	assert.Equal(t, "info", second.args.LogLevel)
	assert.False(t, second.args.Debug)
}

func TestRunPluginFlags(t *testing.T) {
	p := &fakePlugin{
		name: "build",
		setup: func(cmd *cobra.Command) {
			cmd.Flags().String("target", "core-image-minimal", "")
		},
	}
	app := newTestApp(t, p)

	require.Equal(t, 0, app.Run([]string{"build", "--target", "world"}))
	target, err := p.args.Flags.GetString("target")
	require.NoError(t, err)
	assert.Equal(t, "world", target)
}

func TestRunVersion(t *testing.T) {
	p := &fakePlugin{name: "shell"}
	app := newTestApp(t, p)

	assert.Equal(t, 0, app.Run([]string{"--version"}))
	assert.Equal(t, version.String("kas")+"\n", app.stdout.String())
	assert.Zero(t, p.calls)
}

func TestRunWithoutSubcommandPrintsHelp(t *testing.T) {
	p := &fakePlugin{name: "shell"}
	app := newTestApp(t, p)

	assert.Equal(t, 0, app.Run(nil))
	assert.Contains(t, app.stdout.String(), "Usage:")
	assert.Contains(t, app.stdout.String(), "fake shell")
	assert.Zero(t, p.calls)
}

func TestRunErrorKinds(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  int
		wantTrace bool
	}{
		{"user error", kaserr.NewUserError("no such config"), 2, false},
		{"wrapped user error", errors.Join(kaserr.NewUserError("bad layer")), 2, false},
		{"args combination", &kaserr.ArgsCombinationError{Msg: "--a and --b"}, 2, false},
		{"forwarded", &kaserr.CommandExecError{Cmd: []string{"bitbake"}, RetCode: 42, Forward: true}, 42, false},
		{"not forwarded", &kaserr.CommandExecError{Cmd: []string{"git"}, RetCode: 128}, 2, false},
		{"forwarded zero", &kaserr.CommandExecError{Cmd: []string{"true"}, Forward: true}, 0, false},
		{"unexpected", errors.New("index out of range"), 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t, &fakePlugin{name: "p", run: failWith(tt.err)})

			assert.Equal(t, tt.wantCode, app.Run([]string{"p"}))
			assert.Contains(t, app.stderr.String(), "ERROR")
			assert.Contains(t, app.stderr.String(), tt.err.Error())
			assert.Equal(t, tt.wantTrace, strings.Contains(app.stderr.String(), "error chain"))
			assert.NotContains(t, app.stderr.String(), "Usage:")
		})
	}
}

func TestRunPluginPanic(t *testing.T) {
	app := newTestApp(t, &fakePlugin{
		name: "p",
		run: func(context.Context, *plugin.Invocation, *plugin.Args) error {
			panic("layer table corrupted")
		},
	})

	assert.Equal(t, 1, app.Run([]string{"p"}))
	assert.Contains(t, app.stderr.String(), "plugin p panicked: layer table corrupted")
	assert.Contains(t, app.stderr.String(), "goroutine")
}

func TestRunUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		argv []string
	}{
		{"unknown command", []string{"bogus"}},
		{"unknown global flag", []string{"--bogus"}},
		{"unknown plugin flag", []string{"p", "--bogus"}},
		{"invalid log level", []string{"-l", "verbose", "p"}},
		{"missing argument", []string{"p"}},
		{"missing required flag", []string{"p", "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePlugin{
				name: "p",
				setup: func(cmd *cobra.Command) {
					cmd.Args = cobra.ExactArgs(1)
					cmd.Flags().String("config", "", "")
					_ = cmd.MarkFlagRequired("config")
				},
			}
			app := newTestApp(t, p)

			assert.Equal(t, 2, app.Run(tt.argv))
			assert.Zero(t, p.calls)
			assert.Contains(t, app.stderr.String(), "Usage:")
			assert.NotContains(t, app.stderr.String(), "error chain")
		})
	}
}

func TestRunLogLevel(t *testing.T) {
	tests := []struct {
		name      string
		argv      []string
		wantLevel logrus.Level
		wantName  string
		wantDebug bool
	}{
		{"default", []string{"p"}, logrus.InfoLevel, "info", false},
		{"long flag", []string{"--log-level", "warning", "p"}, logrus.WarnLevel, "warning", false},
		{"after subcommand", []string{"p", "-l", "error"}, logrus.ErrorLevel, "error", false},
		{"critical", []string{"-l", "critical", "p"}, logrus.FatalLevel, "critical", false},
		{"debug flag", []string{"-d", "p"}, logrus.DebugLevel, "debug", true},
		{"level after debug", []string{"-d", "-l", "error", "p"}, logrus.ErrorLevel, "error", true},
		{"debug after level", []string{"-l", "error", "--debug", "p"}, logrus.DebugLevel, "debug", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePlugin{name: "p"}
			app := newTestApp(t, p)

			require.Equal(t, 0, app.Run(tt.argv))
			assert.Equal(t, tt.wantLevel, p.level)
			assert.Equal(t, tt.wantName, p.args.LogLevel)
			assert.Equal(t, tt.wantDebug, p.args.Debug)
		})
	}
}

func TestRunInvalidEnvironment(t *testing.T) {
	p := &fakePlugin{name: "p"}
	app := newTestApp(t, p)
	t.Setenv("KAS_JOBS", "many")

	assert.Equal(t, 2, app.Run([]string{"p"}))
	assert.Zero(t, p.calls)
	assert.Contains(t, app.stderr.String(), "KAS_JOBS")
}

func TestRunPassesEnvironment(t *testing.T) {
	var workDir string
	app := newTestApp(t, &fakePlugin{
		name: "p",
		run: func(_ context.Context, inv *plugin.Invocation, _ *plugin.Args) error {
			workDir = inv.Env.WorkDir
			return nil
		},
	})
	dir := t.TempDir()
	t.Setenv("KAS_WORK_DIR", dir)

	require.Equal(t, 0, app.Run([]string{"p"}))
	assert.Equal(t, dir, workDir)
}

func TestRunWaitsForBackgroundTasks(t *testing.T) {
	var done atomic.Bool
	app := newTestApp(t, &fakePlugin{
		name: "p",
		run: func(_ context.Context, inv *plugin.Invocation, _ *plugin.Args) error {
			_, err := inv.Tasks.Go("sleeper", func(context.Context) error {
				time.Sleep(50 * time.Millisecond)
				done.Store(true)
				return nil
			})
			return err
		},
	})

	assert.Equal(t, 0, app.Run([]string{"-d", "p"}))
	assert.True(t, done.Load())
	assert.Contains(t, app.stderr.String(), "plugins: p")
	assert.Contains(t, app.stderr.String(), "pending background task(s)")
}

func TestRunDrainFailure(t *testing.T) {
	background := func(result error) func(context.Context, *plugin.Invocation, *plugin.Args) error {
		return func(_ context.Context, inv *plugin.Invocation, _ *plugin.Args) error {
			_, err := inv.Tasks.Go("background", func(context.Context) error {
				return errors.New("lost connection to sstate mirror")
			})
			require.NoError(t, err)
			return result
		}
	}

	t.Run("escalates success", func(t *testing.T) {
		app := newTestApp(t, &fakePlugin{name: "p", run: background(nil)})

		assert.Equal(t, 1, app.Run([]string{"p"}))
		assert.Contains(t, app.stderr.String(), "background task failed")
		assert.Contains(t, app.stderr.String(), "lost connection to sstate mirror")
	})

	t.Run("keeps failure code", func(t *testing.T) {
		app := newTestApp(t, &fakePlugin{name: "p", run: background(kaserr.NewUserError("bad config"))})

		assert.Equal(t, 2, app.Run([]string{"p"}))
		assert.Contains(t, app.stderr.String(), "background task failed")
	})
}

func TestRunCancelsTasksOnFailure(t *testing.T) {
	var cancelled atomic.Bool
	app := newTestApp(t, &fakePlugin{
		name: "p",
		run: func(_ context.Context, inv *plugin.Invocation, _ *plugin.Args) error {
			_, err := inv.Tasks.Go("waiter", func(ctx context.Context) error {
				<-ctx.Done()
				cancelled.Store(true)
				return ctx.Err()
			})
			require.NoError(t, err)
			return kaserr.NewUserError("fetch failed")
		},
	})

	assert.Equal(t, 2, app.Run([]string{"p"}))
	assert.True(t, cancelled.Load())
	assert.NotContains(t, app.stderr.String(), "background task failed")
}

func TestRunRejectsRenamedSubcommand(t *testing.T) {
	app := newTestApp(t, &fakePlugin{
		name:  "p",
		setup: func(cmd *cobra.Command) { cmd.Use = "other" },
	})

	assert.Equal(t, 1, app.Run([]string{"p"}))
	assert.Contains(t, app.stderr.String(), "renamed its subcommand")
}

func TestMainBuiltins(t *testing.T) {
	t.Setenv("KAS_WORK_DIR", t.TempDir())

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, Main([]string{"--version"}, strings.NewReader(""), &stdout, &stderr))
	assert.Contains(t, stdout.String(), "configuration format version")

	stdout.Reset()
	assert.Equal(t, 0, Main([]string{"--help"}, strings.NewReader(""), &stdout, &stderr))
	for _, name := range []string{"dump", "shell", "unpack"} {
		assert.Contains(t, stdout.String(), name)
	}

	stderr.Reset()
	assert.Equal(t, 2, Main([]string{"dump"}, strings.NewReader(""), &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Usage:")
}
