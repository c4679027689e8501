package integration

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rileyhilliard/vpsinit/internal/keys"
	"github.com/rileyhilliard/vpsinit/internal/logger"
	"github.com/rileyhilliard/vpsinit/internal/prompt"
	"github.com/rileyhilliard/vpsinit/internal/provision"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecSimpleCommand(t *testing.T) {
	client := PasswordClient(t)

	stdout, _, code, err := client.Exec("echo hello")
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "hello\n", string(stdout))
}

func TestExecInputFeedsScriptOnStdin(t *testing.T) {
	client := PasswordClient(t)

	var stdout, stderr bytes.Buffer
	code, err := client.ExecInput("bash -s", strings.NewReader("x='a b'\necho \"$x\"\nexit 3\n"), &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, 3, code)
	assert.Equal(t, "a b\n", stdout.String())
}

func TestAuthorizedKeysCommandIsIdempotent(t *testing.T) {
	client := PasswordClient(t)
	pub := "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIIntegrationTestKeyOnlyxxxxxxxxxxxxxxxxxxx vpsinit-integration"

	for i := 0; i < 2; i++ {
		var stderr bytes.Buffer
		code, err := client.ExecInput(provision.AuthorizedKeysCommand, strings.NewReader(pub+"\n"), nil, &stderr)
		require.NoError(t, err)
		require.Equal(t, 0, code, stderr.String())
	}

	out, _, _, err := client.Exec("grep -c 'vpsinit-integration' ~/.ssh/authorized_keys")
	require.NoError(t, err)
	assert.Equal(t, "1", strings.TrimSpace(string(out)))

	_, _, _, _ = client.Exec("sed -i '/vpsinit-integration/d' ~/.ssh/authorized_keys")
}

// TestProvisionFullRun runs every step against the test server. The server
// only accepts keys afterwards.
func TestProvisionFullRun(t *testing.T) {
	RequireDestructive(t)
	cfg := testConfig(t)
	target := testTarget(t)

	creds := &prompt.Credentials{
		Password:   []byte(os.Getenv("VPSINIT_TEST_SSH_PASSWORD")),
		Passphrase: []byte("integration passphrase"),
	}
	var out bytes.Buffer
	p := provision.New(provision.Options{
		Config: cfg,
		Logger: logger.NewBufferLogger(),
		Output: &out,
	})

	report, err := p.Run(context.Background(), target, creds)
	require.NoError(t, err, out.String())
	assert.True(t, report.OK())
	assert.Equal(t, "srv1", report.Alias)

	keyPath := keys.KeyPath(cfg.SSHDir, target.Host)
	assert.FileExists(t, keyPath)
	sshConfig, err := os.ReadFile(filepath.Join(cfg.SSHDir, "config"))
	require.NoError(t, err)
	assert.Contains(t, string(sshConfig), "Host srv1")

	// The password is no longer accepted, so a second run only gets
	// through the local steps, reusing both the key and the alias.
	cfg.KeepGoing = true
	report, err = p.Run(context.Background(), target, creds)
	require.Error(t, err)
	assert.False(t, report.Succeeded(provision.StepUpdate))
	assert.False(t, report.KeyCreated)
	assert.Equal(t, "srv1", report.Alias)
	assert.True(t, report.AliasReused)
}
