package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitWithWriter(Config{Level: "warn", Format: "json"}, &buf))
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	Info().Msg("hidden")
	lexiconLog := Component("lexicon")
	lexiconLog.Warn().Int("rows", 3).Msg("skipped rows")

	var event map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &event))
	assert.Equal(t, "warn", event["level"])
	assert.Equal(t, "lexicon", event["component"])
	assert.EqualValues(t, 3, event["rows"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestInitWithFileCopy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	var buf bytes.Buffer
	require.NoError(t, InitWithWriter(Config{Level: "info", File: path}, &buf))

	Info().Str("analysis_id", "a1").Msg("scored")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"analysis_id":"a1"`)
	assert.Contains(t, buf.String(), "scored")
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitWithWriter(Config{Level: "loud"}, &buf))

	Debug().Msg("debug")
	Info().Msg("info")

	assert.NotContains(t, buf.String(), `"message":"debug"`)
	assert.Contains(t, buf.String(), `"message":"info"`)
}

func TestHertzLevel(t *testing.T) {
	assert.Equal(t, hlog.LevelDebug, hertzLevel(zerolog.DebugLevel))
	assert.Equal(t, hlog.LevelInfo, hertzLevel(zerolog.InfoLevel))
	assert.Equal(t, hlog.LevelFatal, hertzLevel(zerolog.PanicLevel))
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitWithWriter(Config{Level: "info"}, &buf))

	ctx := WithContext(context.Background())
	Ctx(ctx).Info().Msg("from context")

	assert.Contains(t, buf.String(), "from context")
}
