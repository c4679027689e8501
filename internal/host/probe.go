// Package host checks that a provisioned server accepts key-only logins.
package host

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rileyhilliard/vpsinit/pkg/sshutil"
)

// VerifyCommand is run on the server; it must print exactly "ok".
const VerifyCommand = "echo ok"

// ProbeError represents a failed probe with categorized failure reason.
type ProbeError struct {
	Target string
	Reason ProbeFailReason
	Cause  error
}

// ProbeFailReason categorizes why a probe failed.
type ProbeFailReason int

const (
	ProbeFailUnknown ProbeFailReason = iota
	ProbeFailTimeout
	ProbeFailRefused
	ProbeFailUnreachable
	ProbeFailAuth
	ProbeFailHostKey
	ProbeFailCommand
)

// String returns a human-readable description of the failure reason.
func (r ProbeFailReason) String() string {
	switch r {
	case ProbeFailTimeout:
		return "connection timed out"
	case ProbeFailRefused:
		return "connection refused"
	case ProbeFailUnreachable:
		return "host unreachable"
	case ProbeFailAuth:
		return "key authentication failed"
	case ProbeFailHostKey:
		return "host key verification failed"
	case ProbeFailCommand:
		return "test command failed"
	default:
		return "unknown error"
	}
}

// Hint returns what the operator should look at for this failure.
func (r ProbeFailReason) Hint() string {
	switch r {
	case ProbeFailTimeout, ProbeFailUnreachable:
		return "The server may still be restarting sshd. Wait a few seconds and run: vpsinit verify <alias>"
	case ProbeFailRefused:
		return "sshd isn't accepting connections. Use the provider's console to check: systemctl status ssh"
	case ProbeFailAuth:
		return "The key wasn't accepted. Check ~/.ssh/authorized_keys on the server from the provider's console."
	case ProbeFailHostKey:
		return "The server's host key changed. Check known_hosts before trusting it."
	default:
		return "Try connecting by hand with: ssh -v <alias>"
	}
}

func (e *ProbeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("verify %s failed: %s (%v)", e.Target, e.Reason, e.Cause)
	}
	return fmt.Sprintf("verify %s failed: %s", e.Target, e.Reason)
}

func (e *ProbeError) Unwrap() error {
	return e.Cause
}

// ProbeResult is the outcome of one verification connection.
type ProbeResult struct {
	Target  string
	Latency time.Duration
	Error   error
	Success bool
}

// Probe opens a fresh connection with auth, runs VerifyCommand and checks
// its output. timeout bounds connect plus handshake. Latency covers the
// whole round trip.
func Probe(ctx context.Context, dial sshutil.DialFunc, target sshutil.Target, auth sshutil.Auth, opts sshutil.Options, timeout time.Duration) ProbeResult {
	start := time.Now()
	result := ProbeResult{Target: target.String()}

	opts.Timeout = timeout
	client, err := dial(ctx, target, auth, opts)
	if err != nil {
		result.Error = categorizeProbeError(result.Target, err)
		return result
	}
	defer client.Close()

	stdout, stderr, code, err := client.Exec(VerifyCommand)
	if err != nil {
		result.Error = &ProbeError{Target: result.Target, Reason: ProbeFailCommand, Cause: err}
		return result
	}
	if code != 0 || strings.TrimSpace(string(stdout)) != "ok" {
		result.Error = &ProbeError{
			Target: result.Target,
			Reason: ProbeFailCommand,
			Cause:  fmt.Errorf("exit %d: %s", code, strings.TrimSpace(string(stdout)+string(stderr))),
		}
		return result
	}

	result.Latency = time.Since(start)
	result.Success = true
	return result
}

// categorizeProbeError converts a generic error into a ProbeError with
// a categorized failure reason.
func categorizeProbeError(target string, err error) *ProbeError {
	if err == nil {
		return nil
	}

	probeErr := &ProbeError{
		Target: target,
		Reason: ProbeFailUnknown,
		Cause:  err,
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "host key") {
		probeErr.Reason = ProbeFailHostKey
		return probeErr
	}

	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		probeErr.Reason = ProbeFailTimeout
		return probeErr
	}

	if strings.Contains(errStr, "connection refused") {
		probeErr.Reason = ProbeFailRefused
		return probeErr
	}

	if strings.Contains(errStr, "no route to host") ||
		strings.Contains(errStr, "network is unreachable") ||
		strings.Contains(errStr, "host is down") {
		probeErr.Reason = ProbeFailUnreachable
		return probeErr
	}

	if strings.Contains(errStr, "unable to authenticate") ||
		strings.Contains(errStr, "no supported methods") ||
		strings.Contains(errStr, "permission denied") ||
		strings.Contains(errStr, "authentication failed") {
		probeErr.Reason = ProbeFailAuth
		return probeErr
	}

	return probeErr
}
