// Package logging configures the structured logger shared by every keyticket component.
//
// Usage:
//
//	log := logging.New("keyticket", "info")
//	log.WithField("stream_id", id).Warn("registration failed")
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a JSON logger writing to stdout, tagged with the given service name.
// Unrecognized or empty levels fall back to info.
func New(service string, level string) *logrus.Entry {
	return NewWithOutput(service, level, os.Stdout)
}

// NewWithOutput is New with an explicit destination
func NewWithOutput(service string, level string, out io.Writer) *logrus.Entry {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	log.SetOutput(out)

	parsed, err := logrus.ParseLevel(level)
	if err != nil || level == "" {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)

	return log.WithField("service", service)
}
