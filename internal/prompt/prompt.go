// Package prompt reads secrets from the operator without echoing them.
package prompt

import (
	"bufio"
	"crypto/subtle"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/rileyhilliard/vpsinit/internal/errors"
	"github.com/rileyhilliard/vpsinit/internal/logger"
	"golang.org/x/term"
)

// Prompter asks for one secret at a time.
type Prompter interface {
	Secret(label string) ([]byte, error)
}

type fdReader interface {
	io.Reader
	Fd() uintptr
}

// Terminal prompts on out and reads from in. When in is a terminal, echo
// is turned off for the read; otherwise the line is read as typed and a
// warning is logged once.
type Terminal struct {
	in     io.Reader
	out    io.Writer
	log    logger.Logger
	lines  *bufio.Reader
	warned bool
}

// NewTerminal creates a Terminal prompter.
func NewTerminal(in io.Reader, out io.Writer, log logger.Logger) *Terminal {
	if log == nil {
		log = logger.Noop()
	}
	return &Terminal{in: in, out: out, log: log}
}

// Secret prints label and reads one line with echo disabled if possible.
// The trailing newline is not included.
func (t *Terminal) Secret(label string) ([]byte, error) {
	fmt.Fprint(t.out, label)

	if f, ok := t.in.(fdReader); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(t.out)
		if err == nil {
			return secret, nil
		}
		t.warnOnce("couldn't turn off terminal echo (%v); your input will be visible", err)
	} else {
		t.warnOnce("input is not a terminal; secrets are read without hiding them")
	}

	return t.readLine()
}

func (t *Terminal) warnOnce(format string, args ...interface{}) {
	if t.warned {
		return
	}
	t.warned = true
	t.log.Warn(format, args...)
}

func (t *Terminal) readLine() ([]byte, error) {
	if t.lines == nil {
		t.lines = bufio.NewReader(t.in)
	}
	line, err := t.lines.ReadString('\n')
	if err != nil && !(stderrors.Is(err, io.EOF) && line != "") {
		if stderrors.Is(err, io.EOF) {
			return nil, errors.New(errors.ErrInput,
				"Input ended before all secrets were entered",
				"Run again from an interactive terminal.")
		}
		return nil, errors.WrapWithCode(err, errors.ErrInput, "Couldn't read input", "")
	}
	return []byte(strings.TrimRight(line, "\r\n")), nil
}

// Credentials holds the secrets collected up front. They live only in
// memory and are never logged or put on a command line.
type Credentials struct {
	Password   []byte
	Passphrase []byte
}

// Labels shown for the key secrets, asked after the password.
const (
	PassphraseLabel = "Passphrase for the new SSH key: "
	ConfirmLabel    = "Confirm the passphrase: "
)

// PasswordLabel is the prompt for the login password of user.
func PasswordLabel(user string) string {
	return fmt.Sprintf("Password for %s on the server: ", user)
}

// Collect asks for user's server password, the new key passphrase and its
// confirmation. A mismatched confirmation is an ErrInput error; the caller
// must stop before contacting the server.
func Collect(p Prompter, user string) (*Credentials, error) {
	password, err := p.Secret(PasswordLabel(user))
	if err != nil {
		return nil, err
	}
	if len(password) == 0 {
		return nil, errors.New(errors.ErrInput,
			fmt.Sprintf("The password for %s is empty", user),
			"The server's password is needed for the first steps.")
	}

	passphrase, err := p.Secret(PassphraseLabel)
	if err != nil {
		wipe(password)
		return nil, err
	}

	confirm, err := p.Secret(ConfirmLabel)
	if err != nil {
		wipe(password)
		wipe(passphrase)
		return nil, err
	}
	defer wipe(confirm)

	if len(passphrase) != len(confirm) || subtle.ConstantTimeCompare(passphrase, confirm) != 1 {
		wipe(password)
		wipe(passphrase)
		return nil, errors.New(errors.ErrInput,
			"Passphrases don't match",
			"Run again and type the same passphrase twice.")
	}

	return &Credentials{Password: password, Passphrase: passphrase}, nil
}

// Wipe zeroes the secrets.
func (c *Credentials) Wipe() {
	if c == nil {
		return
	}
	wipe(c.Password)
	wipe(c.Passphrase)
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
