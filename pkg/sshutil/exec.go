package sshutil

import (
	"bytes"
	"fmt"
	"io"

	"github.com/rileyhilliard/vpsinit/internal/errors"
	"golang.org/x/crypto/ssh"
)

// Exec runs a command on the remote host and returns the output.
// Returns stdout, stderr, exit code, and any error.
// Exit code is -1 if the command couldn't be executed at all.
func (c *Client) Exec(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	var stdoutBuf, stderrBuf bytes.Buffer
	exitCode, err = c.run(cmd, nil, &stdoutBuf, &stderrBuf)
	if err != nil {
		return nil, nil, exitCode, err
	}
	return stdoutBuf.Bytes(), stderrBuf.Bytes(), exitCode, nil
}

// ExecStream runs a command and streams output to the provided writers.
// Returns the exit code and any error.
// Exit code is -1 if the command couldn't be executed at all.
func (c *Client) ExecStream(cmd string, stdout, stderr io.Writer) (exitCode int, err error) {
	return c.run(cmd, nil, stdout, stderr)
}

// ExecInput runs a command with stdin connected to the given reader.
// Scripts and key material are passed this way so they never show up in
// the remote process list.
func (c *Client) ExecInput(cmd string, stdin io.Reader, stdout, stderr io.Writer) (exitCode int, err error) {
	return c.run(cmd, stdin, stdout, stderr)
}

func (c *Client) run(cmd string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	session, err := c.NewSession()
	if err != nil {
		return -1, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to create SSH session",
			"Connection may have been closed. Try reconnecting.")
	}
	defer session.Close()

	session.Stdin = stdin
	session.Stdout = stdout
	session.Stderr = stderr

	err = session.Run(cmd)
	if err != nil {
		if exitErr, ok := err.(*ssh.ExitError); ok {
			return exitErr.ExitStatus(), nil // Command ran, just had non-zero exit
		}
		if _, ok := err.(*ssh.ExitMissingError); ok {
			return -1, errors.WrapWithCode(err, errors.ErrExec,
				fmt.Sprintf("Connection dropped while running: %s", cmd),
				"The remote side closed the session without an exit status.")
		}
		return -1, errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Failed to execute command: %s", cmd),
			"Check if the command exists on the remote host.")
	}
	return 0, nil
}
