package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "debug", "json")

	logger.Info("login failed", "reason", "password_mismatch", "account_id", 7, "error", errors.New("boom"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "login failed", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "password_mismatch", entry["reason"])
	assert.Equal(t, float64(7), entry["account_id"])
	assert.Equal(t, "boom", entry["error"])
}

func TestLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn", "text")

	logger.Debug("hidden")
	logger.Info("hidden")
	assert.Empty(t, buf.String())

	logger.Warn("shown", "key", "value")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "key=value")
}

func TestLogger_BadLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "loud", "text")

	logger.Debug("hidden")
	assert.Empty(t, buf.String())
	logger.Info("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestLogger_WithAndOddArgs(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info", "json").With("component", "auth")

	logger.Error("odd", "dangling")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "auth", entry["component"])
	assert.Equal(t, "MISSING", entry["dangling"])
}
