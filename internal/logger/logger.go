package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config holds logger configuration
type Config struct {
	Level  string
	Output io.Writer
}

// Setup initializes the global logger with the specified configuration
func Setup(cfg Config) {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{
					Key:   a.Key,
					Value: slog.StringValue(a.Value.Time().UTC().Format("2006-01-02 15:04:05")),
				}
			}
			return a
		},
	})

	slog.SetDefault(slog.New(handler))
}

// parseLevel converts a string log level to slog.Level
func parseLevel(levelStr string) slog.Level {
	switch GetLevel(levelStr) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetLevel returns the normalized log level string
func GetLevel(levelStr string) string {
	level := strings.ToUpper(strings.TrimSpace(levelStr))
	switch level {
	case "DEBUG", "INFO", "WARN", "ERROR":
		return level
	case "WARNING":
		return "WARN"
	default:
		return "INFO"
	}
}
