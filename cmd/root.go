package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"kas/internal/logger"
	"kas/internal/version"
)

// progName is the name kas is invoked as.
const progName = "kas"

// globalFlags holds the destinations of the flags every invocation accepts.
type globalFlags struct {
	level *logLevelValue
	debug *debugValue
}

func newGlobalFlags() *globalFlags {
	lvl := newLogLevelValue()
	return &globalFlags{level: lvl, debug: &debugValue{level: lvl}}
}

// newRootCommand builds the command line grammar: the global flags and one
// subcommand per registered plugin, in registration order. parsed is set
// once the command line has been accepted, which separates usage errors
// from errors returned by the selected plugin.
func (a *App) newRootCommand(g *globalFlags, parsed *bool) (*cobra.Command, error) {
	root := &cobra.Command{
		Use:     progName,
		Short:   "kas - setup tool for bitbake based projects",
		Version: version.Version,

		SilenceErrors: true, // reported by the exit translator
		SilenceUsage:  true,

		// PersistentPreRunE runs after parsing and before the selected
		// command, for plugins and for the bare invocation alike.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// cobra checks required flags only after this hook
			if err := cmd.ValidateRequiredFlags(); err != nil {
				return usageError(cmd, err)
			}
			if err := cmd.ValidateFlagGroups(); err != nil {
				return usageError(cmd, err)
			}
			*parsed = true
			return a.prepare(g)
		},
		// Without a subcommand kas prints its help and succeeds.
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetIn(a.Stdin)
	root.SetOut(a.Stdout)
	root.SetErr(a.Stderr)
	root.SetVersionTemplate(version.String(progName) + "\n")
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError(cmd, err)
	})

	// A plain bool flag named "version" keeps cobra from adding a -v shorthand.
	root.Flags().Bool("version", false, "Show program's version number and exit")

	pf := root.PersistentFlags()
	pf.VarPF(g.debug, "debug", "d", "Enable debug logging (deprecated, use --log-level debug).").NoOptDefVal = "true"
	pf.VarP(g.level, "log-level", "l", "Set log level ("+strings.Join(logger.Levels, ", ")+")")
	_ = root.RegisterFlagCompletionFunc("log-level", cobra.FixedCompletions(logger.Levels, cobra.ShellCompDirectiveNoFileComp))

	for _, p := range a.Registry.All() {
		sub := &cobra.Command{Use: p.Name(), Short: p.Help()}
		p.SetupParser(sub)
		if sub.Name() != p.Name() {
			return nil, fmt.Errorf("plugin %s renamed its subcommand to %q", p.Name(), sub.Name())
		}
		sub.Run = nil
		sub.RunE = func(cmd *cobra.Command, args []string) error {
			return a.runPlugin(cmd, p, g, args)
		}
		root.AddCommand(sub)
	}
	return root, nil
}
