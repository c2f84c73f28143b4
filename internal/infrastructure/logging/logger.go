package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/loicbachelot/cross-section-digitizer/internal/application/ports"
)

// LogrusLogger implements the LoggingGateway interface on top of logrus.
// Output goes to stderr so data written to stdout stays clean.
type LogrusLogger struct {
	logger *logrus.Logger
}

// NewLogrusLogger creates a logger at info level, or debug when asked
func NewLogrusLogger(debug bool) *LogrusLogger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})
	if debug {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	return &LogrusLogger{logger: logger}
}

// SetOutput redirects log output, used by tests
func (l *LogrusLogger) SetOutput(w io.Writer) {
	l.logger.SetOutput(w)
}

// Log logs a message with the specified level
func (l *LogrusLogger) Log(level ports.LogLevel, message string, fields map[string]interface{}) {
	entry := l.logger.WithFields(logrus.Fields(fields))
	switch level {
	case ports.LogLevelDebug:
		entry.Debug(message)
	case ports.LogLevelInfo:
		entry.Info(message)
	case ports.LogLevelWarn:
		entry.Warn(message)
	case ports.LogLevelError:
		entry.Error(message)
	default:
		entry.Info(message)
	}
}

// LogError logs an error
func (l *LogrusLogger) LogError(err error, message string, fields map[string]interface{}) {
	l.logger.WithFields(logrus.Fields(fields)).WithError(err).Error(message)
}

// SetLogLevel sets the logging level
func (l *LogrusLogger) SetLogLevel(level ports.LogLevel) {
	switch level {
	case ports.LogLevelDebug:
		l.logger.SetLevel(logrus.DebugLevel)
	case ports.LogLevelInfo:
		l.logger.SetLevel(logrus.InfoLevel)
	case ports.LogLevelWarn:
		l.logger.SetLevel(logrus.WarnLevel)
	case ports.LogLevelError:
		l.logger.SetLevel(logrus.ErrorLevel)
	}
}

// GetLogLevel returns the current logging level
func (l *LogrusLogger) GetLogLevel() ports.LogLevel {
	switch l.logger.GetLevel() {
	case logrus.DebugLevel, logrus.TraceLevel:
		return ports.LogLevelDebug
	case logrus.InfoLevel:
		return ports.LogLevelInfo
	case logrus.WarnLevel:
		return ports.LogLevelWarn
	default:
		return ports.LogLevelError
	}
}
