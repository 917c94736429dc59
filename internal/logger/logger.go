package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup builds the process logger: JSON on stderr, or a colored console
// writer with caller and stack information when dev is set. The result also
// becomes the global logger used by library packages.
func Setup(dev bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.Kitchen)
		}}).Level(level).With().Caller().Stack().Logger()
	}

	zerolog.SetGlobalLevel(level)
	log.Logger = logger

	return logger
}
