// Package plugins loads the plugins built into kas.
package plugins

import (
	"fmt"

	"kas/internal/plugin"
	"kas/internal/plugins/dump"
	"kas/internal/plugins/shell"
	"kas/internal/plugins/unpack"
)

// Builtin returns the built-in plugins in registration order.
func Builtin() []plugin.Plugin {
	return []plugin.Plugin{
		dump.New(),
		shell.New(),
		unpack.New(),
	}
}

// Load registers the built-in plugins with reg. It is called once, before
// the command line is parsed.
func Load(reg *plugin.Registry) error {
	for _, p := range Builtin() {
		if err := reg.Register(p); err != nil {
			return fmt.Errorf("loading built-in plugins: %w", err)
		}
	}
	return nil
}
