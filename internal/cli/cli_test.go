package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rileyhilliard/vpsinit/internal/logger"
	"github.com/rileyhilliard/vpsinit/internal/prompt"
	"github.com/rileyhilliard/vpsinit/pkg/sshutil"
	sshtesting "github.com/rileyhilliard/vpsinit/pkg/sshutil/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedPrompter answers secrets in order.
type scriptedPrompter struct {
	answers []string
	labels  []string
}

func (s *scriptedPrompter) Secret(label string) ([]byte, error) {
	s.labels = append(s.labels, label)
	if len(s.answers) == 0 {
		return nil, io.EOF
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return []byte(a), nil
}

// testEnv is an app wired to buffers, a fake dialer and a temp ~/.ssh.
type testEnv struct {
	app     *app
	stdout  *bytes.Buffer
	stderr  *bytes.Buffer
	sshDir  string
	cfgPath string
	prompt  *scriptedPrompter
	pw      *sshtesting.MockClient
	key     *sshtesting.MockClient
	dials   int
}

func newTestEnv(t *testing.T, answers ...string) *testEnv {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(logger.DebugEnv, "")

	env := &testEnv{
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
		sshDir: filepath.Join(home, ".ssh"),
		prompt: &scriptedPrompter{answers: answers},
	}
	env.cfgPath = filepath.Join(home, "vpsinit.yaml")
	cfg := "ssh_dir: " + env.sshDir + "\nkey:\n  type: ed25519\n  bits: 0\n"
	require.NoError(t, os.WriteFile(env.cfgPath, []byte(cfg), 0644))

	env.pw = sshtesting.NewMockClient("203.0.113.5")
	sshtesting.WithBinaries(env.pw, "apt-get")
	env.key = sshtesting.NewMockClient("203.0.113.5")
	sshtesting.RespondWith(env.key, `^echo ok$`, "ok")

	a := newApp(strings.NewReader(""), env.stdout, env.stderr)
	a.prompter = func(*app, logger.Logger) prompt.Prompter { return env.prompt }
	a.dial = func(_ context.Context, _ sshutil.Target, auth sshutil.Auth, _ sshutil.Options) (sshutil.SSHClient, error) {
		env.dials++
		if auth.Password != "" {
			return env.pw, nil
		}
		return env.key, nil
	}
	env.app = a
	return env
}

func (e *testEnv) run(args ...string) int {
	args = append([]string{"--no-color", "--config", e.cfgPath}, args...)
	return run(context.Background(), e.app, args)
}

func TestRun_NoArgsPrintsUsage(t *testing.T) {
	env := newTestEnv(t)

	code := run(context.Background(), env.app, nil)

	assert.Equal(t, 1, code)
	assert.Equal(t, usageText, env.stdout.String())
	assert.Empty(t, env.stderr.String())
	assert.Zero(t, env.dials)
}

func TestRun_TooManyArgsPrintsUsage(t *testing.T) {
	env := newTestEnv(t)

	code := env.run("203.0.113.5", "198.51.100.7")

	assert.Equal(t, 1, code)
	assert.Contains(t, env.stdout.String(), "Usage: vpsinit <SERVER_IP>")
	assert.Zero(t, env.dials)
}

func TestRun_InvalidAddress(t *testing.T) {
	env := newTestEnv(t)

	code := env.run("not an address")

	assert.Equal(t, 1, code)
	assert.Contains(t, env.stderr.String(), "isn't a server address")
	assert.Contains(t, env.stdout.String(), "Usage: vpsinit <SERVER_IP>")
	assert.Zero(t, env.dials)
	assert.Empty(t, env.prompt.labels)
}

func TestRun_PassphraseMismatchStopsBeforeConnecting(t *testing.T) {
	env := newTestEnv(t, "hunter2", "correct horse", "battery staple")

	code := env.run("203.0.113.5")

	assert.Equal(t, 1, code)
	assert.Contains(t, env.stderr.String(), "Passphrases don't match")
	assert.Zero(t, env.dials)
	_, err := os.Stat(filepath.Join(env.sshDir, "key203.0.113.5"))
	assert.True(t, os.IsNotExist(err))
}

func TestRun_ProvisionsServer(t *testing.T) {
	env := newTestEnv(t, "hunter2", "correct horse", "correct horse")

	code := env.run("203.0.113.5")

	require.Equal(t, 0, code, "stderr: %s", env.stderr.String())
	out := env.stdout.String()

	assert.Contains(t, out, "root@203.0.113.5")
	for _, label := range []string{
		"[1/6] Updating packages",
		"[2/6] Generating SSH key",
		"[3/6] Installing public key on the server",
		"[4/6] Adding host alias to SSH config",
		"[5/6] Disabling password authentication",
		"[6/6] Restarting SSH daemon",
	} {
		assert.Contains(t, out, label)
	}
	assert.Contains(t, out, "203.0.113.5 is ready")
	assert.Contains(t, out, "srv1")
	assert.Contains(t, out, "$ ssh srv1")
	assert.Contains(t, out, "Test the new login")
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, env.stderr.String(), "hunter2")
	assert.NotContains(t, out, "correct horse")

	assert.Equal(t, []string{prompt.PasswordLabel("root"), prompt.PassphraseLabel, prompt.ConfirmLabel}, env.prompt.labels)

	_, err := os.Stat(filepath.Join(env.sshDir, "key203.0.113.5"))
	require.NoError(t, err)
	sshConfig, err := os.ReadFile(filepath.Join(env.sshDir, "config"))
	require.NoError(t, err)
	assert.Contains(t, string(sshConfig), "Host srv1")
	assert.Contains(t, string(sshConfig), "Hostname 203.0.113.5")

	for _, call := range env.pw.Calls() {
		assert.NotContains(t, call.Cmd, "hunter2")
	}
}

func TestRun_StepFailureExitsNonZero(t *testing.T) {
	env := newTestEnv(t, "hunter2", "pp", "pp")
	sshtesting.FailCommand(env.key, `^bash -s$`, 4, "sed: cannot rename")

	code := env.run("203.0.113.5")

	assert.Equal(t, 1, code)
	out := env.stdout.String()
	assert.Contains(t, out, "not fully set up")
	assert.Contains(t, out, "Restarting SSH daemon")
	assert.Contains(t, env.stderr.String(), "failed")
}

func TestRun_FlagOverrides(t *testing.T) {
	env := newTestEnv(t, "hunter2", "", "")

	code := env.run("--user", "admin", "--port", "2222", "--editor", "", "198.51.100.7")

	require.Equal(t, 0, code, "stderr: %s", env.stderr.String())
	assert.Contains(t, env.stdout.String(), "admin@198.51.100.7:2222")
	assert.Equal(t, prompt.PasswordLabel("admin"), env.prompt.labels[0])

	sshConfig, err := os.ReadFile(filepath.Join(env.sshDir, "config"))
	require.NoError(t, err)
	assert.Contains(t, string(sshConfig), "User admin")
	assert.Contains(t, string(sshConfig), "Port 2222")

	script, ok := env.pw.StdinFor("bash -s")
	require.True(t, ok)
	assert.NotContains(t, script, "neovim")
}

func TestRun_VerboseStreamsRemoteOutput(t *testing.T) {
	env := newTestEnv(t, "hunter2", "pp", "pp")
	sshtesting.RespondWith(env.pw, `^bash -s$`, "Reading package lists... Done")

	code := env.run("--verbose", "203.0.113.5")

	require.Equal(t, 0, code, "stderr: %s", env.stderr.String())
	out := env.stdout.String()
	assert.Contains(t, out, "│ Reading package lists... Done")
	assert.Contains(t, out, "[1/6] Updating packages...")
}

func TestBitsFor(t *testing.T) {
	tests := []struct {
		keyType string
		bits    int
		want    int
	}{
		{"rsa", 4096, 4096},
		{"rsa", 3072, 3072},
		{"rsa", 256, 4096},
		{"rsa", 0, 4096},
		{"ecdsa", 384, 384},
		{"ecdsa", 4096, 256},
		{"ed25519", 4096, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, bitsFor(tt.keyType, tt.bits), "%s/%d", tt.keyType, tt.bits)
	}
}

func TestVersionCommand(t *testing.T) {
	env := newTestEnv(t)
	SetVersionInfo("1.2.3", "abc123", "2026-01-01")
	t.Cleanup(func() { SetVersionInfo("dev", "none", "unknown") })

	require.Equal(t, 0, env.run("version"))
	assert.Contains(t, env.stdout.String(), "vpsinit v1.2.3")
	assert.Contains(t, env.stdout.String(), "commit: abc123")

	env.stdout.Reset()
	require.Equal(t, 0, env.run("version", "--short"))
	assert.Equal(t, "1.2.3\n", env.stdout.String())
}

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "dev", formatVersion("dev"))
	assert.Equal(t, "v1.0.0", formatVersion("1.0.0"))
	assert.Equal(t, "v1.0.0", formatVersion("v1.0.0"))
}

func TestHostsCommand(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.MkdirAll(env.sshDir, 0700))
	content := `Host github.com
    User git

Host srv1
    HostName 203.0.113.5
    User root
    IdentityFile ` + env.sshDir + `/key203.0.113.5

Host srv2
    HostName 198.51.100.7
    User admin
    Port 2222
`
	require.NoError(t, os.WriteFile(filepath.Join(env.sshDir, "config"), []byte(content), 0600))

	require.Equal(t, 0, env.run("hosts"))
	out := env.stdout.String()
	assert.Contains(t, out, "srv1")
	assert.Contains(t, out, "203.0.113.5")
	assert.Contains(t, out, "srv2")
	assert.NotContains(t, out, "github.com")

	env.stdout.Reset()
	require.Equal(t, 0, env.run("hosts", "--json"))
	var envl struct {
		Success bool       `json:"success"`
		Data    []hostJSON `json:"data"`
	}
	require.NoError(t, json.Unmarshal(env.stdout.Bytes(), &envl))
	assert.True(t, envl.Success)
	require.Len(t, envl.Data, 2)
	assert.Equal(t, "srv2", envl.Data[1].Alias)
	assert.Equal(t, "2222", envl.Data[1].Port)
}

func TestHostsCommand_Empty(t *testing.T) {
	env := newTestEnv(t)

	require.Equal(t, 0, env.run("hosts"))
	assert.Contains(t, env.stdout.String(), "No hosts provisioned yet")
}

func TestConfigShow(t *testing.T) {
	env := newTestEnv(t)

	require.Equal(t, 0, env.run("config", "show"))
	out := env.stdout.String()
	assert.Contains(t, out, "# source: "+env.cfgPath)
	assert.Contains(t, out, "type: ed25519")
	assert.Contains(t, out, "ssh_dir: "+env.sshDir)
}

func TestConfigInit_NonInteractive(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	code := run(context.Background(), env.app, []string{"--config", path, "config", "init", "--non-interactive"})
	require.Equal(t, 0, code, "stderr: %s", env.stderr.String())
	assert.Contains(t, env.stdout.String(), "Wrote "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "alias_prefix: srv")

	// A second run refuses to overwrite without --force.
	env.stderr.Reset()
	code = run(context.Background(), env.app, []string{"--config", path, "config", "init", "--non-interactive"})
	assert.Equal(t, 1, code)
	assert.Contains(t, env.stderr.String(), "already exists")

	code = run(context.Background(), env.app, []string{"--config", path, "config", "init", "--non-interactive", "--force"})
	assert.Equal(t, 0, code)
}

func TestInvalidConfigIsReported(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(env.cfgPath, []byte("key:\n  type: dsa\n"), 0644))

	code := env.run("203.0.113.5")

	assert.Equal(t, 1, code)
	assert.Contains(t, env.stderr.String(), "dsa")
	assert.Zero(t, env.dials)
}
