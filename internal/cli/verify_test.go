package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rileyhilliard/vpsinit/internal/keys"
	sshtesting "github.com/rileyhilliard/vpsinit/pkg/sshutil/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateTestKey(t *testing.T, env *testEnv, host, passphrase string) string {
	t.Helper()
	path := keys.KeyPath(env.sshDir, host)
	_, err := keys.Generate(path, keys.Comment(host), keys.Params{Type: "ed25519"}, []byte(passphrase))
	require.NoError(t, err)
	return path
}

func TestVerify_ByAddressPromptsForPassphrase(t *testing.T) {
	env := newTestEnv(t, "pp")
	generateTestKey(t, env, "203.0.113.5", "pp")

	code := env.run("verify", "203.0.113.5")

	require.Equal(t, 0, code, "stderr: %s", env.stderr.String())
	assert.Contains(t, env.stdout.String(), "root@203.0.113.5 key login works")
	require.Len(t, env.prompt.labels, 1)
	assert.Contains(t, env.prompt.labels[0], "key203.0.113.5")
	assert.True(t, env.key.Ran("echo ok"))
}

func TestVerify_ByAlias(t *testing.T) {
	env := newTestEnv(t)
	path := generateTestKey(t, env, "198.51.100.7", "")
	sshConfig := "Host srv3\n    Hostname 198.51.100.7\n    User admin\n    IdentityFile " + path + "\n    Port 2222\n"
	require.NoError(t, os.WriteFile(filepath.Join(env.sshDir, "config"), []byte(sshConfig), 0600))

	code := env.run("verify", "srv3")

	require.Equal(t, 0, code, "stderr: %s", env.stderr.String())
	assert.Contains(t, env.stdout.String(), "srv3 (admin@198.51.100.7:2222)")
	assert.Empty(t, env.prompt.labels)
}

func TestVerify_Failure(t *testing.T) {
	env := newTestEnv(t)
	generateTestKey(t, env, "203.0.113.5", "")
	sshtesting.FailCommand(env.key, `^echo ok$`, 1, "boom")

	code := env.run("verify", "203.0.113.5")

	assert.Equal(t, 1, code)
	assert.Contains(t, env.stdout.String(), "key login failed")
}

func TestVerify_JSON(t *testing.T) {
	env := newTestEnv(t)
	path := generateTestKey(t, env, "203.0.113.5", "")

	require.Equal(t, 0, env.run("verify", "--json", "203.0.113.5"))

	var envl struct {
		Success bool       `json:"success"`
		Data    verifyJSON `json:"data"`
	}
	require.NoError(t, json.Unmarshal(env.stdout.Bytes(), &envl))
	assert.True(t, envl.Success)
	assert.Equal(t, "root@203.0.113.5", envl.Data.Target)
	assert.Equal(t, path, envl.Data.Key)
}

func TestVerify_JSONMissingKey(t *testing.T) {
	env := newTestEnv(t)

	code := env.run("verify", "--json", "203.0.113.5")

	assert.Equal(t, 1, code)
	var envl JSONEnvelope
	require.NoError(t, json.Unmarshal(env.stdout.Bytes(), &envl))
	assert.False(t, envl.Success)
	require.NotNil(t, envl.Error)
	assert.Equal(t, ErrCodeKeyUnusable, envl.Error.Code)
	assert.Zero(t, env.dials)
}
