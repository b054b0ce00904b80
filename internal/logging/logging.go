package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
	"hermannm.dev/devlog"
)

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// New builds a logger writing to w. Format "text" selects the devlog handler,
// "json" the JSON handler, and "auto" devlog only when w is a terminal.
func New(w io.Writer, level slog.Leveler, format string) (*slog.Logger, error) {
	switch format {
	case "text":
		return slog.New(devlog.NewHandler(w, &devlog.Options{Level: level})), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})), nil
	case "", "auto":
		if isTerminal(w) {
			return slog.New(devlog.NewHandler(w, &devlog.Options{Level: level})), nil
		}
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
