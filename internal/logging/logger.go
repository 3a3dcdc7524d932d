package logging

import (
	"log/slog"
	"os"
)

// Level reads LOG_LEVEL (debug, info, warn, error). Anything else means info.
func Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv("LOG_LEVEL"))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func NewStdoutHandler() slog.Handler {
	return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: Level()})
}

// Setup installs the stdout JSON logger as the default until the database sink is ready.
func Setup() {
	slog.SetDefault(slog.New(NewStdoutHandler()))
}
