package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, l := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if l == "" {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(l), &m))
		out = append(out, m)
	}
	return out
}

func TestNewLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewTo(&buf, "warn", "test")
	log.Info("hidden")
	log.Warn("shown")
	got := lines(t, &buf)
	require.Len(t, got, 1)
	assert.Equal(t, "shown", got[0]["msg"])
	assert.Equal(t, "test", got[0]["logger"])
	assert.NotContains(t, got[0], "ts")
}

func TestNewBadLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewTo(&buf, "loud", "test")
	log.Info("visible")
	got := lines(t, &buf)
	require.Len(t, got, 2)
	assert.Equal(t, "warn", got[0]["level"])
	assert.Equal(t, "loud", got[0]["requested_level"])
	assert.Equal(t, "visible", got[1]["msg"])
}

func TestContextFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewTo(&buf, "debug", "test")
	ctx := WithFields(context.Background(), zap.String("conn", "c1"))
	ctx = WithFields(ctx, zap.String("utt", "u1"))
	assert.Len(t, Fields(ctx), 2)
	assert.Empty(t, Fields(context.Background()))

	FromContext(ctx, log).Debug("hello")
	got := lines(t, &buf)
	require.Len(t, got, 1)
	assert.Equal(t, "c1", got[0]["conn"])
	assert.Equal(t, "u1", got[0]["utt"])
}

func TestRecover(t *testing.T) {
	var buf bytes.Buffer
	log := NewTo(&buf, "info", "test")
	func() {
		defer Recover(log)
		panic("boom")
	}()
	got := lines(t, &buf)
	require.Len(t, got, 1)
	assert.Equal(t, "recovered panic", got[0]["msg"])
	assert.Equal(t, "boom", got[0]["panic"])
	assert.Contains(t, got[0]["stack"], "goroutine")
}
