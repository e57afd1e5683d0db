package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	require.Equal(t, zapcore.WarnLevel, ParseLevel(" warning "))
	require.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	require.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}

func TestNewHonorsLevel(t *testing.T) {
	l := New(Config{Env: "prod", Level: "warn", Service: "sessionjwt"})
	require.NotNil(t, l)
	require.False(t, l.Core().Enabled(zapcore.InfoLevel))
	require.True(t, l.Core().Enabled(zapcore.WarnLevel))
}

func TestContextRoundTrip(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	scoped := zap.New(core).With(zap.String("request_id", "r1"))

	ctx := ToContext(context.Background(), scoped)
	From(ctx, nil).Info("hello")

	require.Equal(t, 1, logs.Len())
	require.Equal(t, "r1", logs.All()[0].ContextMap()["request_id"])

	require.NotNil(t, From(context.Background(), nil))
}
