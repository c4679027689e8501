package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterLogger_Debug(t *testing.T) {
	tests := []struct {
		name      string
		debug     bool
		expectLog bool
	}{
		{name: "logs when debug enabled", debug: true, expectLog: true},
		{name: "silent when debug disabled", debug: false, expectLog: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewWriterLogger(&buf, "test", tt.debug)
			l.Debug("dialing %s", "10.0.0.1")

			if tt.expectLog {
				assert.Contains(t, buf.String(), "dialing 10.0.0.1")
				assert.Contains(t, buf.String(), "test")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestWriterLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf, "", false)

	l.Info("info %d", 1)
	l.Warn("warn %d", 2)
	l.Error("error %d", 3)

	out := buf.String()
	assert.Contains(t, out, "info 1")
	assert.Contains(t, out, "warn 2")
	assert.Contains(t, out, "error 3")
}

func TestEnvLogger_RespectsDebugEnv(t *testing.T) {
	t.Setenv(DebugEnv, "1")
	l := NewEnvLogger("env")
	require.NotNil(t, l)
	assert.NotPanics(t, func() { l.Debug("hello") })
}

func TestNoop(t *testing.T) {
	l := Noop()
	assert.NotPanics(t, func() {
		l.Debug("a")
		l.Info("b")
		l.Warn("c")
		l.Error("d")
	})
}

func TestBufferLogger(t *testing.T) {
	l := NewBufferLogger()

	l.Debug("debug %s", "x")
	l.Info("info")
	l.Warn("warn")
	l.Error("error")

	require.Len(t, l.Messages, 4)
	assert.Equal(t, LogMessage{Level: "debug", Message: "debug x"}, l.Messages[0])
	assert.True(t, l.HasLevel("warn"))
	assert.False(t, l.HasLevel("fatal"))
	assert.Equal(t, "debug x\ninfo\nwarn\nerror\n", l.Joined())

	l.Clear()
	assert.Empty(t, l.Messages)
	assert.False(t, l.HasLevel("info"))
}

func TestDefaultAndSetDefault(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	buf := NewBufferLogger()
	SetDefault(buf)
	Default().Info("through default")

	assert.True(t, buf.HasLevel("info"))
}
