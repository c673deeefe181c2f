// Package logging builds the diagnostic logger. Everything it produces goes to
// stderr by default because stdout may carry protocol frames.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	log "github.com/charmbracelet/log"
)

// Config describes how runtime logging should behave.
type Config struct {
	Output    io.Writer
	Level     log.Level
	Prefix    string
	UseColors bool
}

// New builds a log.Logger writing to the diagnostic channel.
func New(cfg Config) *log.Logger {
	writer := cfg.Output
	if writer == nil {
		writer = os.Stderr
	}
	logger := log.NewWithOptions(writer, log.Options{
		Level:           cfg.Level,
		Prefix:          renderPrefix(cfg.Prefix),
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
	})
	if !cfg.UseColors {
		applyNoColorStyles(logger)
	}
	return logger
}

// FromEnv derives logging preferences from LOG_LEVEL and LOG_NO_COLOR.
func FromEnv(prefix string, lookup func(string) string) *log.Logger {
	if lookup == nil {
		lookup = os.Getenv
	}
	useColors := true
	if value := strings.TrimSpace(lookup("LOG_NO_COLOR")); value != "" {
		useColors = !strings.EqualFold(value, "true") && value != "1"
	}
	return New(Config{
		Output:    os.Stderr,
		Level:     ParseLevel(lookup("LOG_LEVEL")),
		Prefix:    prefix,
		UseColors: useColors,
	})
}

// ParseLevel maps a level name to a log.Level, defaulting to info.
func ParseLevel(value string) log.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

// Discard returns a logger that drops everything. Used by tests and callers
// that construct components without a diagnostic channel.
func Discard() *log.Logger {
	return New(Config{Output: io.Discard, Level: log.FatalLevel})
}

func renderPrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return ""
	}
	return prefix + " "
}

func applyNoColorStyles(logger *log.Logger) {
	styles := log.DefaultStyles()
	styles.Timestamp = lipgloss.NewStyle()
	styles.Caller = lipgloss.NewStyle()
	styles.Prefix = lipgloss.NewStyle()
	styles.Message = lipgloss.NewStyle()
	styles.Key = lipgloss.NewStyle()
	styles.Value = lipgloss.NewStyle()
	styles.Separator = lipgloss.NewStyle()

	for level := range styles.Levels {
		styles.Levels[level] = lipgloss.NewStyle().SetString(strings.ToUpper(level.String()))
	}
	styles.Keys = map[string]lipgloss.Style{}
	styles.Values = map[string]lipgloss.Style{}

	logger.SetStyles(styles)
}
