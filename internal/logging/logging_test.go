package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/settled-dev/settled/internal/config"
)

func TestNewLogger_Levels(t *testing.T) {
	log := NewLogger(config.LoggingConfig{Level: "debug", Format: "text"})
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	log = NewLogger(config.LoggingConfig{Level: "nonsense"})
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}

func TestNewLogger_JSONFormat(t *testing.T) {
	log := NewLogger(config.LoggingConfig{Level: "info", Format: "json"})
	_, ok := log.Formatter.(*logrus.JSONFormatter)
	assert.True(t, ok)
}
