package logger

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DisableLogging silences all output from the library.  Useful in tests.
var DisableLogging = false

var disabledLogger = zerolog.New(nil)

func Ctx(ctx context.Context) *zerolog.Logger {
	if DisableLogging {
		return &disabledLogger
	}
	return log.Ctx(ctx)
}

func Default() *zerolog.Logger {
	if DisableLogging {
		return &disabledLogger
	}
	return &log.Logger
}

// SetupConsole configures the global zerolog logger with a human readable
// console writer and error stacks.  Intended for example programs and local
// development; services embedding the library should configure zerolog
// themselves.
func SetupConsole() {
	zerolog.ErrorStackMarshaler = func(err error) any {
		return fmt.Sprintf("%+v", err)
	}
	log.Logger = log.With().Stack().Caller().Logger().
		Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05 MST",
		})
	zerolog.DefaultContextLogger = &log.Logger
}
