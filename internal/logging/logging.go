// Package logging provides the server's leveled, category-gated logging.
//
// original_source/server/utility.py splits logging into a ServerLogger (info
// / error) and a FrameworkLogger (info / request / response), each gated by
// its own boolean in config.py. Here the same five categories are kept, but
// backed by github.com/rs/zerolog sub-loggers instead of hand-rolled `if`
// guards, and gopkg.in/natefinch/lumberjack.v2 for optional rotation to
// disk — the stack TwentyQuestions (the other full game-service repo in the
// retrieved pack) reaches for.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"turnserver/internal/config"
)

// Loggers bundles the category loggers a running server passes down to its
// components. A disabled category's logger is set to zerolog.Nop(), which
// costs a no-op field check rather than a branch at every call site.
type Loggers struct {
	ServerInfo        zerolog.Logger
	ServerError       zerolog.Logger
	FrameworkInfo     zerolog.Logger
	FrameworkRequest  zerolog.Logger
	FrameworkResponse zerolog.Logger
}

// New builds a Loggers from the server configuration, writing to stderr and,
// if cfg.LogFile is set, to a rotating file.
func New(cfg config.Config) Loggers {
	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	if cfg.LogFile != "" {
		out = io.MultiWriter(out, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		})
	}

	base := zerolog.New(out).With().Timestamp().Logger()

	return Loggers{
		ServerInfo:        gate(base.With().Str("category", "server.info").Logger(), cfg.LogServerInfo),
		ServerError:       gate(base.With().Str("category", "server.error").Logger(), cfg.LogServerErrors),
		FrameworkInfo:     gate(base.With().Str("category", "framework.info").Logger(), cfg.LogFrameworkInfo),
		FrameworkRequest:  gate(base.With().Str("category", "framework.request").Logger(), cfg.LogFrameworkRequest),
		FrameworkResponse: gate(base.With().Str("category", "framework.response").Logger(), cfg.LogFrameworkResponse),
	}
}

func gate(l zerolog.Logger, enabled bool) zerolog.Logger {
	if !enabled {
		return zerolog.Nop()
	}
	return l
}
