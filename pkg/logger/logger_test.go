package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/pharmacheck/inventory/backend-go/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { logger.SetLevel("info") })

	logger.SetLevel("warn")
	assert.Equal(t, zerolog.WarnLevel, logger.Log.GetLevel())

	logger.SetLevel("loud")
	assert.Equal(t, zerolog.InfoLevel, logger.Log.GetLevel())
}

func TestUseJSON(t *testing.T) {
	var buf bytes.Buffer
	logger.UseJSON(&buf)

	logger.Log.Info().Str("category", "general").Msg("reconciliation completed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "reconciliation completed", line["message"])
	assert.Equal(t, "general", line["category"])
	assert.Equal(t, "info", line["level"])
}
