// Package dump implements the dump plugin, which prints a project
// configuration file after validating it.
package dump

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"kas/internal/config"
	"kas/internal/kaserr"
	"kas/internal/plugin"
)

// Formats lists the output formats.
var Formats = []string{"yaml", "json"}

// Plugin is the dump subcommand.
type Plugin struct{}

// New creates the dump plugin.
func New() *Plugin { return &Plugin{} }

func (*Plugin) Name() string { return "dump" }

func (*Plugin) Help() string { return "Check a kas configuration file and print it." }

func (*Plugin) SetupParser(cmd *cobra.Command) {
	cmd.Use = "dump CONFIG"
	cmd.Args = cobra.ExactArgs(1)
	cmd.Flags().String("format", "yaml", "Output format ("+strings.Join(Formats, ", ")+")")
	cmd.Flags().Int("indent", 4, "Line indent (# of spaces)")
	_ = cmd.RegisterFlagCompletionFunc("format", cobra.FixedCompletions(Formats, cobra.ShellCompDirectiveNoFileComp))
}

func (*Plugin) Run(ctx context.Context, inv *plugin.Invocation, args *plugin.Args) error {
	format, err := args.Flags.GetString("format")
	if err != nil {
		return err
	}
	indent, err := args.Flags.GetInt("indent")
	if err != nil {
		return err
	}
	if indent < 1 {
		return &kaserr.ArgsCombinationError{Msg: fmt.Sprintf("--indent must be positive, got %d", indent)}
	}

	path := args.Positional[0]
	p, err := config.LoadProject(path)
	if err != nil {
		return err
	}
	inv.Log.Debugf("loaded %s (format version %d)", path, p.Header.Version)

	switch format {
	case "yaml":
		enc := yaml.NewEncoder(inv.Stdout)
		enc.SetIndent(indent)
		if err := enc.Encode(p); err != nil {
			return fmt.Errorf("encoding %s as yaml: %w", path, err)
		}
		return enc.Close()
	case "json":
		out, err := json.MarshalIndent(p, "", strings.Repeat(" ", indent))
		if err != nil {
			return fmt.Errorf("encoding %s as json: %w", path, err)
		}
		_, err = fmt.Fprintln(inv.Stdout, string(out))
		return err
	default:
		return kaserr.NewUserError("unknown output format %q (choose from %s)", format, strings.Join(Formats, ", "))
	}
}
