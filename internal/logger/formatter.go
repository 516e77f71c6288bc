package logger

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color" // Colored level output
	"github.com/sirupsen/logrus"
)

// TimestampFormat is the layout of the timestamp column.
const TimestampFormat = "2006-01-02 15:04:05"

// levelColors holds the color applied to a whole line per level.
// Debug and info lines are printed without color so that warnings and
// errors stand out.
var levelColors = map[logrus.Level]*color.Color{
	logrus.WarnLevel:  newColor(color.FgYellow, color.Bold),
	logrus.ErrorLevel: newColor(color.FgRed, color.Bold),
	logrus.FatalLevel: newColor(color.FgRed, color.Bold),
	logrus.PanicLevel: newColor(color.FgRed, color.Bold),
}

// newColor returns a color that is always rendered when used.
// color.NoColor looks at stdout only, while kas logs to stderr; the
// Formatter decides on its own whether colors are wanted.
func newColor(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	c.EnableColor()
	return c
}

// Formatter renders entries as
//
//	2006-01-02 15:04:05 - LEVEL    - message key=value
type Formatter struct {
	Colored bool
}

// Format implements logrus.Formatter.
func (f *Formatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s - %-8s - %s",
		entry.Time.Format(TimestampFormat),
		strings.ToUpper(levelLabel(entry.Level)),
		entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
	}

	line := b.String()
	if c, ok := levelColors[entry.Level]; ok && f.Colored {
		line = c.Sprint(line)
	}
	return []byte(line + "\n"), nil
}

func levelLabel(lvl logrus.Level) string {
	if lvl == logrus.PanicLevel {
		return "critical"
	}
	return LevelName(lvl)
}
