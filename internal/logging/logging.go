// Package logging builds the application logger (echo's gommon logger).
package logging

import (
	"io"
	"strings"

	"github.com/labstack/gommon/log"
)

const header = `{"time":"${time_rfc3339}","level":"${level}","prefix":"${prefix}","file":"${short_file}","line":"${line}"}`

// New returns a JSON-header logger writing to out at the given level.
func New(prefix, level string, out io.Writer) *log.Logger {
	l := log.New(prefix)
	l.SetHeader(header)
	l.SetLevel(ParseLevel(level))
	if out != nil {
		l.SetOutput(out)
	}
	return l
}

// ParseLevel maps a config level name to a gommon level. Unknown names mean INFO.
func ParseLevel(level string) log.Lvl {
	switch strings.ToLower(level) {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	default:
		return log.INFO
	}
}
