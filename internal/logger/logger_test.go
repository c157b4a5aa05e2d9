package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/doc-enricher/internal/logger"
)

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "applier", "debug", "json")
	log.Debug("hello", "doc", "abc")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "applier", rec["service"])
	require.Equal(t, "abc", rec["doc"])
	require.Equal(t, "DEBUG", rec["level"])
}

func TestNewWithWriterFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "listener", "warn", "")
	log.Info("dropped")
	require.Zero(t, buf.Len())

	log.Warn("kept")
	require.Contains(t, buf.String(), "kept")
	require.Contains(t, buf.String(), "service=listener")
}
