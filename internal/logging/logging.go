// File: internal/logging/logging.go
// Author: momentics <momentics@gmail.com>
//
// Package logging configures the process-wide logrus logger.

package logging

import (
	"github.com/sirupsen/logrus"
)

// Setup applies the configured level and formatter to the standard
// logger. Unknown levels fall back to info.
func Setup(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
}

// Component returns an entry scoped to a named subsystem.
func Component(name string) *logrus.Entry {
	return logrus.WithField("component", name)
}
