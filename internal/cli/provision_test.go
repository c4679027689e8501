package cli

import (
	"fmt"
	"testing"
	"time"

	"github.com/rileyhilliard/vpsinit/internal/errors"
	"github.com/rileyhilliard/vpsinit/internal/host"
	"github.com/rileyhilliard/vpsinit/internal/provision"
	"github.com/rileyhilliard/vpsinit/internal/ui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func succeeded(names ...provision.StepName) []provision.StepResult {
	out := make([]provision.StepResult, 0, len(names))
	for _, n := range names {
		out = append(out, provision.StepResult{Name: n, Status: provision.StatusSuccess})
	}
	return out
}

func itemFor(t *testing.T, s ui.Summary, label string) ui.SummaryItem {
	t.Helper()
	for _, it := range s.Items {
		if it.Label == label {
			return it
		}
	}
	require.Failf(t, "missing item", "no summary item %q", label)
	return ui.SummaryItem{}
}

func TestBuildSummary_AllOK(t *testing.T) {
	r := &provision.Report{
		Host:       "203.0.113.5",
		Steps:      succeeded(provision.StepNames()...),
		Manager:    "apt-get",
		Editor:     "neovim",
		KeyPath:    "/home/u/.ssh/key203.0.113.5",
		KeyCreated: true,
		Alias:      "srv1",
		Verify:     &host.ProbeResult{Success: true, Latency: 120 * time.Millisecond},
	}

	s := buildSummary(r)

	assert.True(t, s.OK)
	assert.Equal(t, "203.0.113.5 is ready", s.Title)
	assert.Equal(t, "packages updated with apt-get", itemFor(t, s, "server").Detail)
	assert.Equal(t, "neovim installed", itemFor(t, s, "editor").Detail)
	assert.Equal(t, r.KeyPath, itemFor(t, s, "key").Detail)
	assert.Equal(t, "srv1", itemFor(t, s, "alias").Detail)
	assert.Equal(t, ui.ItemOK, itemFor(t, s, "password").Status)
	assert.Equal(t, "key login works (120ms)", itemFor(t, s, "verify").Detail)
	assert.Equal(t, []string{"ssh srv1"}, s.Next)
	assert.Len(t, s.Warnings, 3)
}

func TestBuildSummary_ReusedKeyAndAlias(t *testing.T) {
	r := &provision.Report{
		Host:        "203.0.113.5",
		Steps:       succeeded(provision.StepNames()...),
		KeyPath:     "/k",
		Alias:       "srv4",
		AliasReused: true,
		Verify:      &host.ProbeResult{Success: true},
	}

	s := buildSummary(r)

	assert.Equal(t, "/k (existing key reused)", itemFor(t, s, "key").Detail)
	assert.Equal(t, "srv4 (already configured)", itemFor(t, s, "alias").Detail)
}

func TestBuildSummary_HardenFailed(t *testing.T) {
	steps := succeeded(provision.StepUpdate, provision.StepKeygen, provision.StepCopyKey, provision.StepAlias)
	steps = append(steps,
		provision.StepResult{Name: provision.StepHarden, Status: provision.StatusFailed,
			Err: errors.New(errors.ErrStep, "Key login doesn't work, so password login stays enabled", "")},
		provision.StepResult{Name: provision.StepRestart, Status: provision.StatusSkipped, Reason: "needs harden-sshd"},
	)
	r := &provision.Report{
		Host:   "203.0.113.5",
		Steps:  steps,
		Alias:  "srv1",
		Verify: &host.ProbeResult{Error: &host.ProbeError{Reason: host.ProbeFailAuth, Cause: fmt.Errorf("denied")}},
	}

	s := buildSummary(r)

	assert.False(t, s.OK)
	assert.Equal(t, "203.0.113.5 is not fully set up", s.Title)
	pw := itemFor(t, s, "password")
	assert.Equal(t, ui.ItemFailed, pw.Status)
	assert.Contains(t, pw.Detail, "password login stays enabled")
	assert.Equal(t, "needs harden-sshd", itemFor(t, s, "sshd").Detail)
	assert.Contains(t, itemFor(t, s, "verify").Detail, "key authentication failed")
	assert.Contains(t, s.Warnings, "Password login is still enabled on the server.")
}

func TestBuildSummary_NothingRan(t *testing.T) {
	r := &provision.Report{Host: "203.0.113.5", VerifyReason: "no key available"}

	s := buildSummary(r)

	assert.False(t, s.OK)
	assert.Equal(t, "not run", itemFor(t, s, "server").Detail)
	assert.Equal(t, "no key available", itemFor(t, s, "verify").Detail)
	assert.Empty(t, s.Warnings)
	assert.Empty(t, s.Next)
}

func TestFailureText(t *testing.T) {
	res := provision.StepResult{
		Err: errors.WrapWithCode(fmt.Errorf("exit status 4"), errors.ErrStep,
			"Hardening sshd_config failed", "Restore /etc/ssh/sshd_config.bak"),
		Output: "sed: cannot rename\n",
	}

	got := failureText(res)

	assert.Equal(t, "Hardening sshd_config failed\nexit status 4\nRestore /etc/ssh/sshd_config.bak\nsed: cannot rename", got)
}
