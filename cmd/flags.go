package cmd

import (
	"strconv"
	"strings"

	"kas/internal/logger"
)

// logLevelValue is the destination shared by --log-level and --debug.
// It implements pflag.Value and only accepts the names in logger.Levels.
type logLevelValue struct {
	name string
}

func newLogLevelValue() *logLevelValue {
	return &logLevelValue{name: logger.DefaultLevel}
}

func (v *logLevelValue) String() string { return v.name }

func (v *logLevelValue) Set(s string) error {
	s = strings.ToLower(s)
	if _, err := logger.ParseLevel(s); err != nil {
		return err
	}
	v.name = s
	return nil
}

func (v *logLevelValue) Type() string { return "level" }

// debugValue implements the deprecated -d/--debug flag. Setting it stores
// "debug" into the shared level, so whichever of -d and -l comes last wins.
type debugValue struct {
	level *logLevelValue
	set   bool
}

func (d *debugValue) String() string { return strconv.FormatBool(d.set) }

func (d *debugValue) Set(s string) error {
	on, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	if !on {
		return nil
	}
	d.set = true
	return d.level.Set("debug")
}

func (d *debugValue) Type() string { return "bool" }

func (d *debugValue) IsBoolFlag() bool { return true }
