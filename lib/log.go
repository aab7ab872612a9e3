package lib

import (
	"io"
	"os"
	"runtime"

	"github.com/mattn/go-colorable"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	LogTimeFormat = "2006-01-02T15:04:05.000"
)

// ZeroConsoleLog configures the global zerolog logger to write pretty
// console output only, without a log file.
func ZeroConsoleLog() zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(viper.GetString("logging.console.level")))
	sysType := runtime.GOOS

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, NoColor: false, TimeFormat: LogTimeFormat})
	if sysType == "windows" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: colorable.NewColorableStdout(), TimeFormat: LogTimeFormat})
	}
	return log.Logger
}

// ZeroConsoleAndFileLog configures the global zerolog logger to write to
// both the console and a rotating-free append-only log file.
func ZeroConsoleAndFileLog() zerolog.Logger {
	filename := viper.GetString("logging.file.path")
	if filename == "" {
		filename = "geogrid.log"
	}
	zerolog.SetGlobalLevel(parseLevel(viper.GetString("logging.console.level")))
	sysType := runtime.GOOS

	var logFile *os.File
	var err error
	if _, statErr := os.Stat(filename); os.IsNotExist(statErr) {
		logFile, err = os.Create(filename)
	} else {
		logFile, err = os.OpenFile(filename, os.O_WRONLY|os.O_APPEND, 0666)
	}
	if err != nil {
		log.Error().Err(err).Msg("Error setting up log file")
	}

	var writers []io.Writer
	if viper.GetString("logging.console.format") == "pretty" {
		var consoleLog zerolog.ConsoleWriter
		if sysType == "windows" {
			consoleLog = zerolog.ConsoleWriter{Out: colorable.NewColorableStdout(), TimeFormat: LogTimeFormat}
		} else {
			consoleLog = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: false, TimeFormat: LogTimeFormat}
		}
		writers = append(writers, consoleLog)
	} else {
		writers = append(writers, os.Stdout)
	}

	if viper.GetBool("logging.file.enabled") && logFile != nil {
		writers = append(writers, logFile)
	}

	mw := io.MultiWriter(writers...)
	logger := zerolog.New(mw).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
