package rowdb

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := context.Background()

	l.WithName("people.rdb").WithCount(3).Info("loaded")
	assert.Contains(t, buf.String(), "name=people.rdb")
	assert.Contains(t, buf.String(), "count=3")

	buf.Reset()
	l.LogSave(ctx, "people.rdb", 208, CompressionZSTD, nil)
	assert.Contains(t, buf.String(), `msg="database saved"`)
	assert.Contains(t, buf.String(), "compression=zstd")

	buf.Reset()
	l.LogRemoveSelection(ctx, 2, 1, nil)
	assert.Contains(t, buf.String(), "removed=2")

	buf.Reset()
	l.LogOpen(ctx, "missing.rdb", 0, errors.New("boom"))
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "error=boom")
}

func TestNoopLogger(t *testing.T) {
	l := NoopLogger()
	assert.False(t, l.Enabled(context.Background(), slog.LevelError))
}
