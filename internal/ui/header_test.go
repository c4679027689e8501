package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderHeader(t *testing.T) {
	out := RenderHeader(HeaderInfo{Version: "v0.3.0", Target: "root@203.0.113.5"})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, "vpsinit v0.3.0", lines[0])
	assert.Equal(t, "target root@203.0.113.5", lines[1])
	assert.Equal(t, HeaderWidth, strings.Count(lines[2], "━"))
}

func TestRenderHeader_Minimal(t *testing.T) {
	out := RenderHeader(HeaderInfo{})
	assert.True(t, strings.HasPrefix(out, "vpsinit\n"))
	assert.NotContains(t, out, "target")
}

func TestRenderHeader_Note(t *testing.T) {
	out := RenderHeader(HeaderInfo{Target: "admin@198.51.100.7:2222", Note: "keep-going mode"})
	assert.Contains(t, out, "keep-going mode\n")
}
