// Package log provides logrus loggers configured from the environment.
package log

import (
	"io/ioutil"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
)

const (
	// DebugEnv enables debug level when it parses as true.
	DebugEnv = "PATCHBAY_DEBUG"
	// LevelEnv sets the log level by name, e.g. "info" or "warning".
	LevelEnv = "PATCHBAY_LOG_LEVEL"
)

// DefaultLevel is used when the environment does not define a level.
const DefaultLevel = logrus.WarnLevel

// GetLogger returns a new logger instance. Its level is read from
// PATCHBAY_LOG_LEVEL, PATCHBAY_DEBUG overrides it with debug level.
func GetLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(Level())
	return l
}

// Level returns the log level defined by the environment.
func Level() logrus.Level {
	if debug, err := strconv.ParseBool(os.Getenv(DebugEnv)); err == nil && debug {
		return logrus.DebugLevel
	}
	return ParseLevel(os.Getenv(LevelEnv))
}

// ParseLevel returns the level by its name. Unknown or empty names result
// in DefaultLevel.
func ParseLevel(name string) logrus.Level {
	if name == "" {
		return DefaultLevel
	}
	lvl, err := logrus.ParseLevel(name)
	if err != nil {
		return DefaultLevel
	}
	return lvl
}

// Discard returns a logger which drops every entry.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.Out = ioutil.Discard
	l.SetLevel(logrus.PanicLevel)
	return l
}
