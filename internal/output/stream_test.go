package output

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type upper struct{}

func (upper) ProcessLine(line string) string { return strings.ToUpper(line) }

func TestStreamHandler_BuffersPartialLines(t *testing.T) {
	var buf bytes.Buffer
	h := NewStreamHandler(&buf, upper{})

	_, err := h.Write([]byte("hel"))
	require.NoError(t, err)
	assert.Empty(t, buf.String())

	_, err = h.Write([]byte("lo\nwor"))
	require.NoError(t, err)
	assert.Equal(t, "HELLO\n", buf.String())

	require.NoError(t, h.Flush())
	assert.Equal(t, "HELLO\nWOR\n", buf.String())
	assert.Equal(t, 2, h.Lines())

	require.NoError(t, h.Flush())
	assert.Equal(t, 2, h.Lines())
}

func TestStreamHandler_StripsCarriageReturn(t *testing.T) {
	var buf bytes.Buffer
	h := NewStreamHandler(&buf, nil)

	_, err := h.Write([]byte("Reading package lists...\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "Reading package lists...\n", buf.String())
}

func TestStreamHandler_ConcurrentWriters(t *testing.T) {
	var buf bytes.Buffer
	h := NewStreamHandler(&buf, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.Write([]byte("line\n"))
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, h.Lines())
	assert.Equal(t, strings.Repeat("line\n", 10), buf.String())
}

func TestIndentFormatter(t *testing.T) {
	f := NewIndentFormatter()

	got := f.ProcessLine("Setting up neovim")
	assert.True(t, strings.HasPrefix(got, "    "))
	assert.True(t, strings.HasSuffix(got, "Setting up neovim"))
	assert.Contains(t, got, "│")
}

func TestIsErrorLine(t *testing.T) {
	assert.True(t, isErrorLine("E: Could not get lock /var/lib/dpkg/lock-frontend"))
	assert.True(t, isErrorLine("  Error: Nothing to do"))
	assert.True(t, isErrorLine("sudo: a password is required"))
	assert.False(t, isErrorLine("Setting up neovim (0.7.2-7)"))
	assert.False(t, isErrorLine(""))
}
