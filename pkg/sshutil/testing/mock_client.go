package testing

import (
	"bytes"
	"errors"
	"io"
	"regexp"
	"strings"
	"sync"

	"github.com/rileyhilliard/vpsinit/pkg/sshutil"
)

// CommandResponse defines a canned response for a specific command pattern.
type CommandResponse struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Error    error
}

// Call is one command the mock received, with whatever was sent on stdin.
type Call struct {
	Cmd   string
	Stdin string
}

type patternResponse struct {
	re   *regexp.Regexp
	resp CommandResponse
}

// MockClient simulates an SSH connection for testing. It records every
// command and its stdin, answers `command -v` lookups from a set of known
// binaries, and otherwise returns canned responses or success.
type MockClient struct {
	mu       sync.Mutex
	address  string
	closed   bool
	exact    map[string]CommandResponse
	patterns []patternResponse
	binaries map[string]bool
	calls    []Call
}

// NewMockClient creates a mock SSH client where every command succeeds.
func NewMockClient(host string) *MockClient {
	return &MockClient{
		address:  host + ":22",
		exact:    make(map[string]CommandResponse),
		binaries: make(map[string]bool),
	}
}

var _ sshutil.SSHClient = (*MockClient)(nil)

// Exec runs a command against the canned responses.
func (m *MockClient) Exec(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	return m.exec(cmd, nil)
}

// ExecStream runs a command and writes output to the provided writers.
func (m *MockClient) ExecStream(cmd string, stdout, stderr io.Writer) (exitCode int, err error) {
	return m.ExecInput(cmd, nil, stdout, stderr)
}

// ExecInput drains stdin into the call record, then behaves like ExecStream.
func (m *MockClient) ExecInput(cmd string, stdin io.Reader, stdout, stderr io.Writer) (exitCode int, err error) {
	var in []byte
	if stdin != nil {
		in, err = io.ReadAll(stdin)
		if err != nil {
			return -1, err
		}
	}

	out, errOut, code, execErr := m.exec(cmd, in)
	if execErr != nil {
		return -1, execErr
	}
	if stdout != nil && len(out) > 0 {
		stdout.Write(out)
	}
	if stderr != nil && len(errOut) > 0 {
		stderr.Write(errOut)
	}
	return code, nil
}

func (m *MockClient) exec(cmd string, stdin []byte) ([]byte, []byte, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, nil, -1, errors.New("connection closed")
	}
	m.calls = append(m.calls, Call{Cmd: cmd, Stdin: string(stdin)})

	if resp, ok := m.exact[cmd]; ok {
		return resp.Stdout, resp.Stderr, resp.ExitCode, resp.Error
	}
	for _, p := range m.patterns {
		if p.re.MatchString(cmd) {
			return p.resp.Stdout, p.resp.Stderr, p.resp.ExitCode, p.resp.Error
		}
	}

	if name, ok := strings.CutPrefix(cmd, "command -v "); ok {
		name = strings.TrimSpace(name)
		if m.binaries[name] {
			return []byte("/usr/bin/" + name + "\n"), nil, 0, nil
		}
		return nil, nil, 1, nil
	}

	return nil, nil, 0, nil
}

// Close marks the connection as closed.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockClient) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// GetAddress returns the host:port address.
func (m *MockClient) GetAddress() string {
	return m.address
}

// SetCommandResponse registers a canned response for an exact command.
func (m *MockClient) SetCommandResponse(cmd string, resp CommandResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exact[cmd] = resp
}

// SetPatternResponse registers a canned response for commands matching the
// regular expression. Patterns are tried in registration order.
func (m *MockClient) SetPatternResponse(pattern string, resp CommandResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patterns = append(m.patterns, patternResponse{re: regexp.MustCompile(pattern), resp: resp})
}

// AddBinary makes `command -v name` succeed.
func (m *MockClient) AddBinary(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.binaries[name] = true
}

// Calls returns a copy of the recorded calls.
func (m *MockClient) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// Commands returns just the recorded command strings.
func (m *MockClient) Commands() []string {
	calls := m.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Cmd
	}
	return out
}

// Ran reports whether any recorded command contains substr.
func (m *MockClient) Ran(substr string) bool {
	for _, c := range m.Calls() {
		if strings.Contains(c.Cmd, substr) {
			return true
		}
	}
	return false
}

// StdinFor returns the stdin of the first call whose command contains
// substr.
func (m *MockClient) StdinFor(substr string) (string, bool) {
	for _, c := range m.Calls() {
		if strings.Contains(c.Cmd, substr) {
			return c.Stdin, true
		}
	}
	return "", false
}

// joinedOutput is used by helpers to build multi-line stdout fixtures.
func joinedOutput(lines ...string) []byte {
	var b bytes.Buffer
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.Bytes()
}
