package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/pion/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mossy-p/emocall/config"
)

func TestProductionLoggerWritesJSONAtInfo(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(config.EnvProduction, &buf)

	log.Debug("hidden")
	log.Info("joined", "room", "abcde")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "joined", line["msg"])
	assert.Equal(t, "abcde", line["room"])
}

func TestLocalLoggerIsText(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(config.EnvLocal, &buf)

	log.Debug("visible")

	assert.Contains(t, buf.String(), "msg=visible")
}

func TestPionFactoryLevel(t *testing.T) {
	f, ok := PionFactory(config.EnvProduction).(*logging.DefaultLoggerFactory)
	require.True(t, ok)
	assert.Equal(t, logging.LogLevelWarn, f.DefaultLogLevel)

	f, ok = PionFactory(config.EnvLocal).(*logging.DefaultLoggerFactory)
	require.True(t, ok)
	assert.Equal(t, logging.LogLevelInfo, f.DefaultLogLevel)
}
