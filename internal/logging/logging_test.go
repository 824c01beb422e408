package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWriterJSON(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	var buf bytes.Buffer
	require.NoError(t, SetupWriter(&buf, "warn", "json"))

	log.Info().Msg("dropped")
	log.Warn().Str("asset", "a1").Msg("kept")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "a1", line["asset"])
	assert.Equal(t, "kept", line["message"])
}

func TestSetupWriterInvalid(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, SetupWriter(&buf, "loud", "json"))
	assert.Error(t, SetupWriter(&buf, "info", "xml"))
}
