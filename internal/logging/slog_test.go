package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) (*SlogLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogLogger(slog.New(h)), &buf
}

func TestSlogLogger_Levels_WriteExpectedOutput(t *testing.T) {
	log, buf := newTestLogger(t)
	ctx := context.Background()

	log.Debug(ctx, "dbg", "a", 1)
	log.Info(ctx, "inf", "b", 2)
	log.Warn(ctx, "wrn", "c", 3)
	log.Error(ctx, "err", "d", 4)

	out := buf.String()

	tests := []struct {
		level string
		msg   string
		key   string
		val   string
	}{
		{"DEBUG", "dbg", "a", "1"},
		{"INFO", "inf", "b", "2"},
		{"WARN", "wrn", "c", "3"},
		{"ERROR", "err", "d", "4"},
	}

	for _, tc := range tests {
		assert.Contains(t, out, "level="+tc.level)
		assert.Contains(t, out, "msg="+tc.msg)
		assert.Contains(t, out, tc.key+"="+tc.val)
	}
}

func TestSlogLogger_With_AddsAttributes(t *testing.T) {
	log, buf := newTestLogger(t)

	log.With("module", "sync", "peer", "did:example:alice").Info(context.Background(), "pushed", "count", 3)

	out := buf.String()
	for _, s := range []string{"msg=pushed", "module=sync", "peer=did:example:alice", "count=3"} {
		assert.Contains(t, out, s)
	}
}

func TestNewHandler_JSONCarriesAppName(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogLogger(slog.New(NewHandler(&buf, FormatJSON, "momentsd")))

	l.Info(context.Background(), "hello", "k", "v")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "momentsd", line["app"])
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "v", line["k"])
}

func TestNewHandler_ConsoleIsPrefixed(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogLogger(slog.New(NewHandler(&buf, FormatConsole, "relay")))

	l.Warn(context.Background(), "queue full", "peer", "bob")

	out := buf.String()
	assert.True(t, strings.Contains(out, "relay"), out)
	assert.True(t, strings.Contains(out, "queue full"), out)
}

func TestDiscard_DoesNotPanic(t *testing.T) {
	l := Discard()
	ctx := context.TODO()
	l.Debug(ctx, "x")
	l.With("a", 1).Error(ctx, "y")
}
