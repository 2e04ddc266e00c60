// ABOUTME: Leveled structured logger shared by the CLI, MCP server and benchmark
// ABOUTME: Verbose enables debug output, quiet limits output to errors
package logging

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// New returns a logger writing to w at the level selected by the flags.
// quiet wins over verbose.
func New(w io.Writer, verbose, quiet bool) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "policy",
	})
	logger.SetLevel(Level(verbose, quiet))
	return logger
}

// Level maps the CLI flags to a log level
func Level(verbose, quiet bool) log.Level {
	switch {
	case quiet:
		return log.ErrorLevel
	case verbose:
		return log.DebugLevel
	default:
		return log.InfoLevel
	}
}

// Discard returns a logger that drops everything
func Discard() *log.Logger {
	return log.New(io.Discard)
}
