package logging

import (
	"testing"

	log "github.com/Ptt-Alertor/logrus"
	"github.com/stretchr/testify/assert"
)

func restoreLogger(t *testing.T) {
	t.Helper()
	std := log.StandardLogger()
	formatter, level := std.Formatter, log.GetLevel()
	t.Cleanup(func() {
		log.SetFormatter(formatter)
		log.SetLevel(level)
	})
}

func TestSetupJSON(t *testing.T) {
	restoreLogger(t)

	Setup("debug", "json")

	assert.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)
	assert.Equal(t, log.DebugLevel, log.GetLevel())
}

func TestSetupText(t *testing.T) {
	restoreLogger(t)

	Setup("warn", "text")

	assert.IsType(t, &log.TextFormatter{}, log.StandardLogger().Formatter)
	assert.Equal(t, log.WarnLevel, log.GetLevel())
}

func TestSetupUnknownLevelFallsBackToInfo(t *testing.T) {
	restoreLogger(t)

	Setup("loud", "")

	assert.Equal(t, log.InfoLevel, log.GetLevel())
}
