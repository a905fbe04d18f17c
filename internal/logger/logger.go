package logger

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"gateway/internal/config"
)

// ServiceLogFile is the name of the rotated service log inside the service log directory.
const ServiceLogFile = "service.log"

// Logger provides leveled logging (debug/info/warning/error) to a rotated file and stdout.
type Logger struct {
	entry  *logrus.Logger
	logDir string
	file   *lumberjack.Logger
}

// NewLogger creates a Logger and ensures the service log directory exists.
func NewLogger(config *config.Config) (*Logger, error) {
	if err := os.MkdirAll(config.ServiceLogDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	fileWriter := &lumberjack.Logger{
		Filename:   filepath.Join(config.ServiceLogDirectory, ServiceLogFile),
		LocalTime:  true,
		MaxSize:    50,
		MaxAge:     14,
		MaxBackups: 5,
	}

	l := newLogger(io.MultiWriter(os.Stdout, fileWriter))
	l.logDir = config.ServiceLogDirectory
	l.file = fileWriter
	l.entry.SetLevel(parseLevel(config.LogLevel))
	return l, nil
}

// NewNop returns a Logger that discards everything. Useful in tests.
func NewNop() *Logger {
	return newLogger(io.Discard)
}

// New wraps an arbitrary writer, mostly for tests that assert on log output.
func New(w io.Writer) *Logger {
	return newLogger(w)
}

func newLogger(w io.Writer) *Logger {
	base := logrus.New()
	base.SetOutput(w)
	base.SetLevel(logrus.InfoLevel)
	base.SetFormatter(&formatter.Formatter{
		NoColors:        true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return &Logger{entry: base}
}

func parseLevel(level string) logrus.Level {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel
	}
	return parsed
}

// Debug writes a formatted debug-level log entry.
func (l *Logger) Debug(format string, v ...interface{}) {
	l.log(logrus.DebugLevel, format, v...)
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.log(logrus.InfoLevel, format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.log(logrus.WarnLevel, format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.log(logrus.ErrorLevel, format, v...)
}

// log tags the entry with the file:line and function that called the leveled method.
func (l *Logger) log(level logrus.Level, format string, v ...interface{}) {
	if !l.entry.IsLevelEnabled(level) {
		return
	}
	l.entry.WithField("caller", caller(3)).Logf(level, format, v...)
}

func caller(skip int) string {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	name := "?"
	if fn := runtime.FuncForPC(pc); fn != nil {
		parts := strings.Split(fn.Name(), ".")
		name = parts[len(parts)-1]
	}
	return fmt.Sprintf("%s:%d %s()", path.Base(file), line, name)
}

// WithFields returns a structured entry, used by the access log middleware.
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.entry.WithFields(logrus.Fields(fields))
}

// FilePath returns the current service log file, or "" when logging only to a writer.
func (l *Logger) FilePath() string {
	if l.logDir == "" {
		return ""
	}
	return filepath.Join(l.logDir, ServiceLogFile)
}

// Rotate moves the current service log aside and starts a new one.
func (l *Logger) Rotate() error {
	if l.file == nil {
		return nil
	}
	return l.file.Rotate()
}

// Close flushes and closes the service log file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
