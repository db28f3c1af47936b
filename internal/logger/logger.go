package logger

import (
	"os"
	"time"

	"github.com/bep/godartsass/v2"
	"github.com/rs/zerolog"
)

func Setup(dev bool) zerolog.Logger {
	var logger zerolog.Logger
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	logger = zerolog.New(os.Stderr).Level(level).With().Timestamp().Caller().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.RFC3339)
		}}).Level(level).With().Stack().Logger()
	}

	return logger
}

// SassEvents forwards Dart Sass @warn, @debug and deprecation messages.
func SassEvents(logger zerolog.Logger) func(godartsass.LogEvent) {
	return func(event godartsass.LogEvent) {
		switch event.Type {
		case godartsass.LogEventTypeDebug:
			logger.Debug().Str("source", "sass").Msg(event.Message)
		case godartsass.LogEventTypeDeprecated:
			logger.Warn().
				Str("source", "sass").
				Str("deprecation", event.DeprecationType).
				Msg(event.Message)
		default:
			logger.Warn().Str("source", "sass").Msg(event.Message)
		}
	}
}
