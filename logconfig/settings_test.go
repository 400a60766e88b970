package logconfig

import (
	"testing"

	myLogger "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestConfigLogger(t *testing.T) {
	defer ConfigInfoLogger()

	assert.NoError(t, ConfigLogger("debug"))
	assert.Equal(t, myLogger.DebugLevel, myLogger.GetLevel())

	assert.NoError(t, ConfigLogger(""))
	assert.Equal(t, myLogger.InfoLevel, myLogger.GetLevel())

	assert.NoError(t, ConfigLogger("warn"))
	assert.Equal(t, myLogger.WarnLevel, myLogger.GetLevel())
	_, isJSON := myLogger.StandardLogger().Formatter.(*myLogger.JSONFormatter)
	assert.True(t, isJSON)

	assert.Error(t, ConfigLogger("chatty"))
}
