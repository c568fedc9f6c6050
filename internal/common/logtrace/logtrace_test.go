package logtrace

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestInitLoggerLevel(t *testing.T) {
	defer func(l zerolog.Logger) { log.Logger = l }(log.Logger)

	var buf bytes.Buffer
	InitLoggerWithWriter("info", &buf)
	log.Debug().Msg("hidden")
	log.Info().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	InitLoggerWithWriter("bogus", &buf)
	log.Info().Msg("info")
	log.Warn().Msg("warn")
	assert.NotContains(t, buf.String(), `"info"`)
	assert.Contains(t, buf.String(), "warn")
}

func TestRequestID(t *testing.T) {
	assert.Empty(t, RequestIdFromContext(context.Background()))

	ctx, id := WithRequestID(context.Background())
	assert.NotEmpty(t, id)
	assert.Equal(t, id, RequestIdFromContext(ctx))

	same, again := WithRequestID(ctx)
	assert.Equal(t, id, again)
	assert.Equal(t, ctx, same)

	var buf bytes.Buffer
	l := Logger(ctx, zerolog.New(&buf))
	l.Info().Msg("x")
	assert.Contains(t, buf.String(), `"request_id":"`+id+`"`)
}
