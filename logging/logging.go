package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

var (
	globalLogger log.Logger
	loggerInit   sync.Once
)

// GlobalLogger is the process logger, writing JSON to stderr at the level named by
// LOG_LEVEL.
func GlobalLogger() log.Logger {
	loggerInit.Do(func() {
		globalLogger = NewLogger(os.Stderr, os.Getenv("LOG_LEVEL"))
	})
	return globalLogger
}

func NewLogger(w io.Writer, lvl string) log.Logger {
	logger := log.NewJSONLogger(log.NewSyncWriter(w))
	logger = level.NewFilter(logger, LevelOption(lvl))
	logger = log.With(logger, "caller", log.DefaultCaller, "ts", log.DefaultTimestamp)
	return logger
}

// LevelOption maps a level name to a filter option, defaulting to info.
func LevelOption(lvl string) level.Option {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return level.AllowDebug()
	case "warn", "warning":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	case "none":
		return level.AllowNone()
	default:
		return level.AllowInfo()
	}
}
