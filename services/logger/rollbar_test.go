package logsvc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/rollbar/rollbar-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vigilsat/vigil/core"
)

func newObservedLogger() (*RollbarLogger, *observer.ObservedLogs) {
	rollbar.SetEnabled(false)
	obsCore, logs := observer.New(zapcore.DebugLevel)
	return &RollbarLogger{std: zap.New(obsCore).Sugar()}, logs
}

func TestRollbarLogger_fields(t *testing.T) {
	logger, logs := newObservedLogger()

	id := &core.Identity{ID: 7, Username: "awe", Email: "awe@test.cd"}
	logger.Error("audit: inserting log", errors.New("boom"), map[string]interface{}{"action": "GET /api/policies"}, id)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	assert.Equal(t, "audit: inserting log", entry.Message)

	fields := entry.ContextMap()
	assert.EqualValues(t, 7, fields["user_id"])
	assert.Equal(t, "awe", fields["username"])
	assert.Equal(t, "GET /api/policies", fields["action"])
	assert.Contains(t, fields["error"], "boom")
}

func TestRollbarLogger_prepare(t *testing.T) {
	logger, _ := newObservedLogger()

	first := &core.Identity{ID: 1, Username: "first"}
	second := &core.Identity{ID: 2, Username: "second"}
	rbArgs, fields := logger.prepare("msg", []interface{}{first, second, "extra"})

	assert.Equal(t, []interface{}{"msg", "extra"}, rbArgs)
	assert.Equal(t, []interface{}{"user_id", int64(1), "username", "first", "extra", "extra"}, fields)
}

func TestRollbarLogger_levels(t *testing.T) {
	logger, logs := newObservedLogger()

	logger.Debug("d")
	logger.Info("i")
	logger.Warn("w")

	levels := make([]zapcore.Level, 0, logs.Len())
	for _, e := range logs.All() {
		levels = append(levels, e.Level)
	}
	assert.Equal(t, []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel}, levels)
}
