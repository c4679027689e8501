package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderSummary_Success(t *testing.T) {
	out := RenderSummary(Summary{
		Title: "203.0.113.5 is ready",
		OK:    true,
		Items: []SummaryItem{
			{Status: ItemOK, Label: "alias", Detail: "srv3"},
			{Status: ItemOK, Label: "key", Detail: "/home/u/.ssh/key203.0.113.5"},
		},
		Next: []string{"ssh srv3"},
	})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Equal(t, SymbolSuccess+" 203.0.113.5 is ready", lines[0])
	assert.Equal(t, "  "+SymbolComplete+" alias        srv3", lines[1])
	assert.Equal(t, "  "+SymbolComplete+" key          /home/u/.ssh/key203.0.113.5", lines[2])
	assert.Equal(t, "", lines[3])
	assert.Equal(t, "  $ ssh srv3", lines[4])
}

func TestRenderSummary_FailureWithWarnings(t *testing.T) {
	out := RenderSummary(Summary{
		Title: "Provisioning incomplete",
		Items: []SummaryItem{
			{Status: ItemFailed, Label: "copy-key", Detail: "exit 1"},
			{Status: ItemSkipped, Label: "harden-sshd", Detail: "needs copy-key"},
			{Status: ItemInfo, Label: "verify"},
		},
		Warnings: []string{"Password login is still enabled"},
	})

	assert.True(t, strings.HasPrefix(out, SymbolFail+" Provisioning incomplete\n"))
	assert.Contains(t, out, SymbolFail+" copy-key")
	assert.Contains(t, out, SymbolSkipped+" harden-sshd  needs copy-key")
	assert.Contains(t, out, SymbolArrow+" verify\n")
	assert.Contains(t, out, SymbolWarning+" Password login is still enabled\n")
	assert.NotContains(t, out, "$")
}

func TestPadRight(t *testing.T) {
	assert.Equal(t, "ab   ", padRight("ab", 5))
	assert.Equal(t, "abcdef", padRight("abcdef", 3))
}
