package logging

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerWritesInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf})

	logger.Info("server ready", "port", 8080)

	out := buf.String()
	assert.Contains(t, out, "server ready")
	assert.Contains(t, out, "port=8080")
}

func TestSilentSuppressesBelowError(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Silent: true, Output: &buf})

	logger.Debug("debug line")
	logger.Info("info line")
	logger.Warn("warn line")
	assert.Empty(t, buf.String())

	logger.Error(errors.New("boom"), "request failed")
	assert.Contains(t, buf.String(), "request failed")
	assert.Contains(t, buf.String(), "boom")
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf}).WithComponent("watcher")

	logger.Info("started")
	assert.Contains(t, buf.String(), "component=watcher")
}
