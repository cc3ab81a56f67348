// Package logger holds the process-wide logrus logger used by gn.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"

	defaultLogFormat LogFormat    = LogFormatText
	defaultLogLevel  logrus.Level = logrus.InfoLevel
)

// DefaultLogger is the base logger. It writes to stderr so that reports and
// received payloads on stdout stay machine readable.
var DefaultLogger = InitializeDefaultLogger()

// InitializeDefaultLogger returns a logrus Logger with a text formatter.
func InitializeDefaultLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	formatter, _ := getFormatter(defaultLogFormat)
	logger.SetFormatter(formatter)
	logger.SetLevel(defaultLogLevel)
	return logger
}

func getFormatter(format LogFormat) (logrus.Formatter, error) {
	switch format {
	case LogFormatText:
		return &logrus.TextFormatter{
			DisableColors: true,
		}, nil
	case LogFormatJSON:
		return &logrus.JSONFormatter{}, nil
	default:
		return &logrus.TextFormatter{}, fmt.Errorf("invalid log format '%s'", string(format))
	}
}

// Setup applies a level and format to DefaultLogger. Empty values keep the
// defaults.
func Setup(level, format string) error {
	if level != "" {
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("incorrect log level %q: %w", level, err)
		}
		DefaultLogger.SetLevel(lvl)
	}
	if format != "" {
		formatter, err := getFormatter(LogFormat(strings.ToLower(strings.TrimSpace(format))))
		if err != nil {
			return err
		}
		DefaultLogger.SetFormatter(formatter)
	}
	return nil
}

// SetOutput redirects DefaultLogger.
func SetOutput(w io.Writer) {
	DefaultLogger.SetOutput(w)
}

// GetLogger returns the DefaultLogger that was previously setup
func GetLogger() logrus.FieldLogger {
	return DefaultLogger
}
