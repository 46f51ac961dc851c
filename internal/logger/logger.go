package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var base = newBase(os.Stdout)

func newBase(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})
	return l
}

// SetLevel changes the level of every logger handed out by New.
func SetLevel(level LogLevel) error {
	lvl, err := logrus.ParseLevel(strings.ToLower(string(level)))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	base.SetLevel(lvl)
	return nil
}

// SetOutput redirects all log output, mostly for tests.
func SetOutput(out io.Writer) {
	base.SetOutput(out)
}

type Log struct {
	entry *logrus.Entry
}

func New() *Log {
	return &Log{entry: logrus.NewEntry(base)}
}

func (l *Log) WithError(err error) *Log {
	return &Log{entry: l.entry.WithError(err)}
}

func (l *Log) WithField(key string, value interface{}) *Log {
	return &Log{entry: l.entry.WithField(key, value)}
}

func (l *Log) Debug(msg string) {
	l.entry.Debug(msg)
}

func (l *Log) Info(msg string) {
	l.entry.Info(msg)
}

// Panel logs an info line attributed to a reader panel.
func (l *Log) Panel(id, msg string) {
	l.entry.WithField("panel", id).Info(msg)
}

func (l *Log) Warn(msg string) {
	l.entry.Warn(msg)
}

func (l *Log) Error(msg string) {
	l.entry.Error(msg)
}
