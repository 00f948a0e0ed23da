// Package logging builds the application logger from configuration.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/settled-dev/settled/internal/config"
)

// NewLogger creates a logrus logger honoring the configured level and
// format. Unknown values fall back to info-level text output.
func NewLogger(cfg config.LoggingConfig) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
