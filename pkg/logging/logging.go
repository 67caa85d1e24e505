// Package logging is the structured logger used throughout this module.
// It keeps the call surface of the teacher's colored logger
// (Info/Warn/Error/Debug/Success/Fatal/Banner) but is backed by logrus so
// callers can attach structured fields and swap formatters/hooks freely.
package logging

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

var std = logrus.New()

func init() {
	std.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	std.SetLevel(logrus.InfoLevel)
}

// SetLevel sets the minimum level the default logger emits.
func SetLevel(level logrus.Level) {
	std.SetLevel(level)
}

// Fields is a shorthand for logrus.Fields, used to attach structured
// context (circuit, sequence id, message id, ...) to a log line.
type Fields = logrus.Fields

// With returns an *Entry carrying fields, for call sites that want
// structured context without formatting it into the message string.
func With(fields Fields) *logrus.Entry {
	return std.WithFields(fields)
}

func Debug(format string, args ...interface{}) {
	std.Debugf(format, args...)
}

func Info(format string, args ...interface{}) {
	std.Infof(format, args...)
}

func Warn(format string, args ...interface{}) {
	std.Warnf(format, args...)
}

func Error(format string, args ...interface{}) {
	std.Errorf(format, args...)
}

// Success logs at info level with an "outcome"="success" field, since
// logrus has no dedicated success level.
func Success(format string, args ...interface{}) {
	std.WithField("outcome", "success").Infof(format, args...)
}

// Fatal logs at error level and terminates the process, matching the
// teacher's Fatal semantics.
func Fatal(format string, args ...interface{}) {
	std.Errorf(format, args...)
	os.Exit(1)
}

// Banner prints a one-line startup banner. Unlike the teacher's ASCII-art
// banner this is a single structured line; ASCII art has no place in a
// library's log output.
func Banner(title, version string) {
	fmt.Fprintf(os.Stdout, "%s v%s\n", title, version)
}
