// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/qaloop-dev/qaloop/internal/config"
)

// initToBuffer initializes the global logger with console output captured in a
// buffer. The singleton is reset first so every test starts clean.
func initToBuffer(t *testing.T, cfg config.LoggerConfig) *bytes.Buffer {
	t.Helper()
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf bytes.Buffer
	Initialize(cfg, zapcore.AddSync(&buf))
	return &buf
}

// -- Test Cases --

func TestInitialize_ConsoleWithColors(t *testing.T) {
	buf := initToBuffer(t, config.LoggerConfig{
		Level:       "debug",
		Format:      "console",
		ServiceName: "qaloop",
		Colors:      config.ColorConfig{Info: "green"},
	})

	GetLogger().Info("This is a test message.")
	Sync()

	output := buf.String()
	assert.Contains(t, output, "INFO", "output should contain the log level")
	assert.Contains(t, output, "This is a test message.")
	assert.Contains(t, output, colorMap["green"], "info level should be colorized green")
	assert.Contains(t, output, colorReset)
	assert.Contains(t, output, "qaloop.", "named logger should prefix the entry")
}

func TestInitialize_JSONFormat(t *testing.T) {
	buf := initToBuffer(t, config.LoggerConfig{
		Level:       "info",
		Format:      "json",
		ServiceName: "qaloop",
	})

	GetLogger().Warn("This is a JSON message.", zap.String("key", "value"))
	Sync()

	var logEntry map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &logEntry)
	require.NoError(t, err, "log output should be valid JSON")

	assert.Equal(t, "WARN", logEntry["level"])
	assert.Equal(t, "qaloop", logEntry["logger"])
	assert.Equal(t, "This is a JSON message.", logEntry["msg"])
	assert.Equal(t, "value", logEntry["key"])
}

func TestInitialize_InvalidLevelFallsBackToInfo(t *testing.T) {
	buf := initToBuffer(t, config.LoggerConfig{
		Level:  "chatty",
		Format: "json",
	})

	logger := GetLogger()
	logger.Debug("should be suppressed")
	logger.Info("should appear")
	Sync()

	output := buf.String()
	assert.NotContains(t, output, "should be suppressed")
	assert.Contains(t, output, "should appear")
}

func TestInitialize_WritesToLogFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "qaloop.log")
	buf := initToBuffer(t, config.LoggerConfig{
		Level:   "debug",
		Format:  "console",
		LogFile: logFile,
		MaxSize: 1,
	})

	GetLogger().Error("This should go to the file.")
	Sync()

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "This should go to the file.")
	assert.Contains(t, string(content), `"msg"`, "rotated file output stays JSON regardless of console format")
	assert.Contains(t, buf.String(), "This should go to the file.", "console core still receives the entry")
}

func TestInitialize_OnlyOnce(t *testing.T) {
	buf := initToBuffer(t, config.LoggerConfig{Level: "info", Format: "console", ServiceName: "first"})

	first := GetLogger()
	Initialize(config.LoggerConfig{Level: "debug", Format: "console", ServiceName: "second"}, zapcore.AddSync(&bytes.Buffer{}))
	second := GetLogger()

	assert.Same(t, first, second, "reinitialization must not replace the logger")
	second.Info("test")
	Sync()
	assert.True(t, strings.Contains(buf.String(), "first."))
	assert.False(t, strings.Contains(buf.String(), "second."))
}

func TestGetLogger_FallbackBeforeInitialize(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logger := GetLogger()
	require.NotNil(t, logger)
	assert.Nil(t, globalLogger.Load(), "fallback must not become the global instance")
}

func TestGetLogger_ReturnsGlobalAfterInitialize(t *testing.T) {
	initToBuffer(t, config.LoggerConfig{Level: "info", Format: "json"})

	assert.Same(t, globalLogger.Load(), GetLogger())
}

func TestSync_NoopWithoutLogger(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	assert.NotPanics(t, Sync)
}
