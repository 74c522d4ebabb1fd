package session

import (
	"log"
	"regexp"
)

// Logger is the logging surface used by the session manager.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

type defLogger struct {
	quiet bool
}

// NewStdLogger returns a Logger writing through the standard log package.
// Debug lines are dropped unless debug is set.
func NewStdLogger(debug bool) Logger {
	return defLogger{quiet: !debug}
}

func (l defLogger) Debug(format string, args ...any) {
	if l.quiet {
		return
	}
	log.Printf("[DBG] SESSION "+format, args...)
}

func (defLogger) Info(format string, args ...any) {
	log.Printf("[INF] SESSION "+format, args...)
}

func (defLogger) Error(format string, args ...any) {
	log.Printf("[ERR] SESSION "+format, args...)
}

// LogSanitizer strips credentials and tokens from raw error text before it is logged.
type LogSanitizer struct {
	patterns []*regexp.Regexp
}

// NewLogSanitizer builds a sanitizer with the default secret patterns.
func NewLogSanitizer() *LogSanitizer {
	return &LogSanitizer{
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(apikey|api[_-]?key|access_token|refresh_token|token|secret|password)\s*[:=]\s*['"]?[\w\-\.]+['"]?`),
			regexp.MustCompile(`(?i)bearer\s+[\w\-\.=]+`),
			regexp.MustCompile(`eyJ[\w\-]+\.[\w\-]+\.[\w\-]+`),
		},
	}
}

// Sanitize replaces every secret-looking fragment with a placeholder.
func (s *LogSanitizer) Sanitize(message string) string {
	if s == nil {
		return message
	}
	clean := message
	for _, p := range s.patterns {
		clean = p.ReplaceAllString(clean, "[REDACTED]")
	}
	return clean
}
