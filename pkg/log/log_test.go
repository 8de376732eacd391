package log_test

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/cloudvault/pkg/log"
)

func TestGinWriterLevels(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf).Level(zerolog.TraceLevel)

	w := log.NewGinWriter(&l, zerolog.ErrorLevel)

	n, err := w.Write([]byte("[GIN-debug] GET /api/v1/health --> handler\n"))
	require.NoError(t, err)
	assert.Equal(t, 43, n)
	assert.Contains(t, buf.String(), `"level":"debug"`)
	assert.Contains(t, buf.String(), `"message":"GET /api/v1/health --> handler"`)

	buf.Reset()

	_, _ = w.Write([]byte("listen tcp: address in use"))
	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), `"component":"gin"`)

	buf.Reset()

	_, _ = w.Write([]byte("  \n"))
	assert.Empty(t, buf.String())
}

func TestSetLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	require.NoError(t, log.SetLevel("WARN"))
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	require.NoError(t, log.SetLevel(""))
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())

	assert.Error(t, log.SetLevel("loud"))
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
