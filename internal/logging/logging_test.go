package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/jrsteele09/go-exchange-client/internal/logging"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONOutsideDev(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, "debug", "PROD")

	logger.Debug().Str("component", "session").Msg("refreshed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "refreshed", line["message"])
	require.Equal(t, "session", line["component"])
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, "loud", "PROD")

	require.Equal(t, zerolog.InfoLevel, logger.GetLevel())
	logger.Debug().Msg("hidden")
	require.Zero(t, buf.Len())
}
