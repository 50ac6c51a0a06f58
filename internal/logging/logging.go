// Package logging sets up structured logging in a uniform way.
package logging

import (
	"os"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// Provided by ldflags during build
var (
	release string
	commit  string
	branch  string
)

// Init returns a logger configured with common settings like
// timestamping and source code locations.
//
// Init must be called as early as possible in main(), before any
// application-specific flag parsing or logging occurs.
func Init() log.Logger {
	l := log.NewJSONLogger(log.NewSyncWriter(os.Stdout))
	logger := log.With(l, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)

	logger.Log("release", release, "commit", commit, "git-branch", branch, "msg", "Starting")

	return logger
}

// Debug logs key-value pairs at debug level.
func Debug(l log.Logger, kv ...interface{}) {
	level.Debug(l).Log(kv...)
}

// Info logs key-value pairs at info level.
func Info(l log.Logger, kv ...interface{}) {
	level.Info(l).Log(kv...)
}

// Warn logs key-value pairs at warn level.
func Warn(l log.Logger, kv ...interface{}) {
	level.Warn(l).Log(kv...)
}

// Error logs key-value pairs at error level.
func Error(l log.Logger, kv ...interface{}) {
	level.Error(l).Log(kv...)
}
