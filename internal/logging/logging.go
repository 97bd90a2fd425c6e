// Package logging builds the process slog.Logger from configuration.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// Форматы вывода
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatAuto = "auto"
)

// Config настройки логирования
type Config struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig info, формат по типу вывода
func DefaultConfig() Config {
	return Config{Level: "info", Format: FormatAuto}
}

// ParseLevel разбирает уровень debug|info|warn|error
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// New создает логгер, пишущий в w.
// Формат auto выбирает текст для терминала и JSON для всего остального.
func New(cfg Config, w io.Writer) (*slog.Logger, error) {
	level := slog.LevelInfo
	if cfg.Level != "" {
		var err error
		if level, err = ParseLevel(cfg.Level); err != nil {
			return nil, err
		}
	}
	opts := &slog.HandlerOptions{Level: level}

	switch format := resolveFormat(cfg.Format, w); format {
	case FormatText:
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}
}

func resolveFormat(format string, w io.Writer) string {
	if format != "" && format != FormatAuto {
		return format
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return FormatText
	}
	return FormatJSON
}

// Discard логгер, который ничего не пишет
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
