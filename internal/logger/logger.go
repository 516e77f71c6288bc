package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// DefaultLevel is the log level used when none is given on the command line.
const DefaultLevel = "info"

// Levels lists the accepted log level names, most verbose first.
var Levels = []string{"debug", "info", "warning", "error", "critical"}

// levelMap translates kas level names to logrus levels.
// "critical" maps to logrus' fatal level. Log it with Logger.Log, which
// does not exit like Logger.Fatal.
var levelMap = map[string]logrus.Level{
	"debug":    logrus.DebugLevel,
	"info":     logrus.InfoLevel,
	"warning":  logrus.WarnLevel,
	"error":    logrus.ErrorLevel,
	"critical": logrus.FatalLevel,
}

// New creates the process-wide logger writing to w.
// It is created once at startup, before the command line is parsed, so that
// parse errors are already visible. Colors are enabled when w is a terminal.
func New(w io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetLevel(levelMap[DefaultLevel])
	log.SetFormatter(&Formatter{Colored: isTerminal(w)})
	return log
}

// ParseLevel converts a kas level name (case-insensitive) to a logrus level.
func ParseLevel(name string) (logrus.Level, error) {
	lvl, ok := levelMap[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("invalid log level %q (choose from %s)", name, strings.Join(Levels, ", "))
	}
	return lvl, nil
}

// SetLevel updates the threshold of log by kas level name.
func SetLevel(log *logrus.Logger, name string) error {
	lvl, err := ParseLevel(name)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	return nil
}

// LevelName returns the kas name of a logrus level.
func LevelName(lvl logrus.Level) string {
	switch lvl {
	case logrus.TraceLevel, logrus.DebugLevel:
		return "debug"
	case logrus.InfoLevel:
		return "info"
	case logrus.WarnLevel:
		return "warning"
	case logrus.ErrorLevel:
		return "error"
	default:
		return "critical"
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
