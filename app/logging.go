package app

import (
	"fmt"
	"io"

	"comicbot/config"

	"github.com/apex/log"
	"github.com/apex/log/handlers/json"
	"github.com/apex/log/handlers/text"
)

// NewLogger builds an apex logger writing to w in the configured format
// ("text" or "json") at the configured level.
func NewLogger(cfg config.LogConfig, w io.Writer) (*log.Logger, error) {
	level := log.InfoLevel
	if cfg.Level != "" {
		parsed, err := log.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	var handler log.Handler
	switch cfg.Format {
	case "", "text":
		handler = text.New(w)
	case "json":
		handler = json.New(w)
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT %q: want text or json", cfg.Format)
	}

	return &log.Logger{Handler: handler, Level: level}, nil
}
