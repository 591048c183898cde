package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWriterJSON(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	require.NoError(t, SetupWriter(&buf, "debug", "json"))

	Tools.Debug().Str("tool", "get_open_ports").Msg("running")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "tools", entry["component"])
	assert.Equal(t, "get_open_ports", entry["tool"])
	assert.Equal(t, "debug", entry["level"])
}

func TestSetupWriterLevelFilters(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	require.NoError(t, SetupWriter(&buf, "warn", "json"))

	Collector.Info().Msg("hidden")
	assert.Empty(t, buf.String())

	Collector.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestSetupWriterRejectsBadInput(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, SetupWriter(&buf, "loud", "json"))
	assert.Error(t, SetupWriter(&buf, "info", "xml"))
}
