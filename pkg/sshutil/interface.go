package sshutil

import (
	"context"
	"io"
)

// SSHClient defines the interface for SSH command execution.
// Both the real Client and mock implementations satisfy this interface.
type SSHClient interface {
	// Exec runs a command and returns stdout, stderr, and exit code.
	// Exit code is -1 if the command couldn't be executed at all.
	// A non-zero exit code with nil error means the command ran but failed.
	Exec(cmd string) (stdout, stderr []byte, exitCode int, err error)

	// ExecStream runs a command and streams output to the provided writers.
	ExecStream(cmd string, stdout, stderr io.Writer) (exitCode int, err error)

	// ExecInput is ExecStream with stdin fed from the reader.
	ExecInput(cmd string, stdin io.Reader, stdout, stderr io.Writer) (exitCode int, err error)

	// Close closes the SSH connection.
	Close() error

	// GetAddress returns the resolved host:port address.
	GetAddress() string
}

var _ SSHClient = (*Client)(nil)

// DialFunc opens a connection. Code that needs to connect takes a DialFunc
// so tests can substitute a mock.
type DialFunc func(ctx context.Context, target Target, auth Auth, opts Options) (SSHClient, error)

// DialClient is a DialFunc backed by Dial.
func DialClient(ctx context.Context, target Target, auth Auth, opts Options) (SSHClient, error) {
	client, err := Dial(ctx, target, auth, opts)
	if err != nil {
		return nil, err
	}
	return client, nil
}
