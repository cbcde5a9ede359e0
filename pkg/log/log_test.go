package log

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestToFields(t *testing.T) {
	err := errors.New("boom")

	fields := toFields("vin", "LSJA123", "attempt", 2, "delay", 15*time.Second, err, "dangling")

	require.Len(t, fields, 5)
	assert.Equal(t, "vin", fields[0].Key)
	assert.Equal(t, zapcore.StringType, fields[0].Type)
	assert.Equal(t, zapcore.Int64Type, fields[1].Type)
	assert.Equal(t, zapcore.DurationType, fields[2].Type)
	assert.Equal(t, "error", fields[3].Key)
	assert.Equal(t, "arg#7", fields[4].Key)
}

func TestToFields_NonStringKey(t *testing.T) {
	fields := toFields(42, "value")

	require.Len(t, fields, 1)
	assert.Equal(t, "invalid_key_1", fields[0].Key)
}

func TestWithNameAndValues(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core)).WithName("coordinator").WithValues("vin", "VIN1")

	l.Warn("generic response", "payload", "status")
	l.Error(errors.New("fetch failed"), "giving up")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "coordinator", entries[0].LoggerName)
	assert.Equal(t, "VIN1", entries[0].ContextMap()["vin"])
	assert.Equal(t, "status", entries[0].ContextMap()["payload"])
	assert.Equal(t, "fetch failed", entries[1].ContextMap()["error"])
}

func TestNewLogger(t *testing.T) {
	opts := NewOptions()
	opts.Format = "json"
	opts.OutputPaths = []string{filepath.Join(t.TempDir(), "saic.log")}

	l, err := NewLogger(opts)
	require.NoError(t, err)
	l.Info("started")

	opts.Level = "chatty"
	_, err = NewLogger(opts)
	assert.Error(t, err)
}

func TestOptions_Validate(t *testing.T) {
	opts := NewOptions()
	assert.Empty(t, opts.Validate())

	opts.Format = "xml"
	opts.Level = "trace"
	assert.Len(t, opts.Validate(), 2)
}

func TestOptions_AddFlags(t *testing.T) {
	opts := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	opts.AddFlags(fs)

	require.NoError(t, fs.Parse([]string{"--log.level=debug", "--log.format=json"}))
	assert.Equal(t, "debug", opts.Level)
	assert.Equal(t, "json", opts.Format)
}

func TestStd(t *testing.T) {
	prev := Std()
	defer SetStd(prev)

	l := NewNopLogger()
	SetStd(l)
	assert.Same(t, l, Std())
}
