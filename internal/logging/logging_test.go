package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/javajoker/storefront-analytics/internal/config"
)

func TestNewUsesJSONInProduction(t *testing.T) {
	logger := New("production", config.LogConfig{Level: "debug"})

	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
}

func TestNewHonoursExplicitFormat(t *testing.T) {
	logger := New("production", config.LogConfig{Level: "warn", Format: "text"})

	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
}

func TestNewFallsBackToInfo(t *testing.T) {
	logger := New("development", config.LogConfig{Level: "chatty"})

	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}
