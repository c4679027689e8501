package sshutil

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rileyhilliard/vpsinit/internal/errors"
	"github.com/rileyhilliard/vpsinit/internal/logger"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// Client wraps an SSH connection with additional metadata.
type Client struct {
	*ssh.Client
	Host    string // The original host used to connect
	Address string // The resolved address (host:port)
}

// Target identifies the remote account to connect to.
type Target struct {
	Host string
	Port int
	User string
}

// Address returns the host:port string for dialing.
func (t Target) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// String returns user@host[:port] for display.
func (t Target) String() string {
	s := t.User + "@" + t.Host
	if t.Port != 0 && t.Port != 22 {
		s = t.User + "@" + t.Address()
	}
	return s
}

// Auth selects the credentials offered during the handshake. Password is
// only held in memory and sent inside the encrypted channel.
type Auth struct {
	Password string
	Signers  []ssh.Signer
	// Agent adds keys loaded in the running ssh-agent, if any.
	Agent bool
}

// Options control how a connection is established.
type Options struct {
	// HostKeyChecking is accept-new, yes or no.
	HostKeyChecking string
	// KnownHostsPath defaults to ~/.ssh/known_hosts.
	KnownHostsPath string
	// Timeout bounds TCP connect plus handshake.
	Timeout time.Duration
	Logger  logger.Logger
}

// Dial establishes an SSH connection to target. The context bounds the TCP
// connect; opts.Timeout bounds the whole handshake.
func Dial(ctx context.Context, target Target, auth Auth, opts Options) (*Client, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Noop()
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.KnownHostsPath == "" {
		opts.KnownHostsPath = DefaultKnownHostsPath()
	}

	methods := authMethods(auth)
	if len(methods) == 0 {
		return nil, errors.New(errors.ErrSSH,
			fmt.Sprintf("No SSH auth methods available for %s", target),
			"Provide a password or a key.")
	}

	hostKeyCallback, err := createHostKeyCallback(opts.HostKeyChecking, opts.KnownHostsPath, log)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			"Couldn't load known_hosts",
			"Check permissions on "+opts.KnownHostsPath)
	}

	config := &ssh.ClientConfig{
		User:            target.User,
		Auth:            methods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         opts.Timeout,
	}

	address := target.Address()
	log.Debug("dialing %s as %s", address, target.User)

	dialCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", address)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Can't reach %s", address),
			suggestionForDialError(err))
	}

	// Bound the handshake as well; ssh.ClientConfig.Timeout only covers
	// ssh.Dial, which we don't use.
	_ = conn.SetDeadline(time.Now().Add(opts.Timeout))

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if err != nil {
		conn.Close()

		var hostKeyErr *HostKeyMismatchError
		if stderrors.As(err, &hostKeyErr) {
			return nil, errors.New(errors.ErrSSH,
				hostKeyErr.Error(),
				hostKeyErr.Suggestion())
		}

		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("SSH handshake with %s didn't go through", target),
			suggestionForHandshakeError(err, auth))
	}
	_ = conn.SetDeadline(time.Time{})

	return &Client{
		Client:  ssh.NewClient(sshConn, chans, reqs),
		Host:    target.Host,
		Address: address,
	}, nil
}

// Close closes the SSH connection.
func (c *Client) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// GetAddress returns the resolved host:port address.
func (c *Client) GetAddress() string {
	return c.Address
}

// authMethods builds the handshake auth list. Keys go first so a server
// that accepts both never sees the password when a key would do.
func authMethods(auth Auth) []ssh.AuthMethod {
	var methods []ssh.AuthMethod

	var signers []ssh.Signer
	signers = append(signers, auth.Signers...)
	if auth.Agent {
		signers = append(signers, agentSigners()...)
	}
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}

	if auth.Password != "" {
		password := auth.Password
		methods = append(methods,
			ssh.Password(password),
			// Many distributions only enable keyboard-interactive for
			// password logins; answer every echo-off question with the
			// password.
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range questions {
					if !echos[i] {
						answers[i] = password
					}
				}
				return answers, nil
			}),
		)
	}

	return methods
}

var (
	agentConn     net.Conn
	agentClient   agent.ExtendedAgent
	agentConnOnce sync.Once
)

// agentSigners returns the keys held by ssh-agent, or nil when no agent is
// running. The agent connection is reused for the process lifetime.
func agentSigners() []ssh.Signer {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}

	agentConnOnce.Do(func() {
		conn, err := net.Dial("unix", socket)
		if err != nil {
			return
		}
		agentConn = conn
		agentClient = agent.NewClient(conn)
	})

	if agentClient == nil {
		return nil
	}

	signers, err := agentClient.Signers()
	if err != nil {
		return nil
	}
	return signers
}

// CloseAgent closes the SSH agent connection if one is open.
func CloseAgent() {
	if agentConn != nil {
		agentConn.Close()
	}
}

// ParseTarget splits an address argument into host and port. Accepted
// forms: host, host:port, IPv6, [IPv6]:port. defaultPort applies when no
// port is given.
func ParseTarget(arg string, defaultPort int) (string, int, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", 0, fmt.Errorf("empty address")
	}
	if strings.Contains(arg, "@") {
		return "", 0, fmt.Errorf("address %q must not include a user; use --user", arg)
	}

	// Bare IPv6 literal (more than one colon, no brackets)
	if strings.Count(arg, ":") > 1 && !strings.HasPrefix(arg, "[") {
		if net.ParseIP(arg) == nil {
			return "", 0, fmt.Errorf("invalid address %q", arg)
		}
		return arg, defaultPort, nil
	}

	if strings.Contains(arg, ":") {
		host, portStr, err := net.SplitHostPort(arg)
		if err != nil {
			return "", 0, fmt.Errorf("invalid address %q: %w", arg, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil || port < 1 || port > 65535 {
			return "", 0, fmt.Errorf("invalid port in %q", arg)
		}
		if host == "" {
			return "", 0, fmt.Errorf("missing host in %q", arg)
		}
		return host, port, nil
	}

	if strings.ContainsAny(arg, " \t/\\'\"") {
		return "", 0, fmt.Errorf("invalid address %q", arg)
	}
	return strings.Trim(arg, "[]"), defaultPort, nil
}

func suggestionForDialError(err error) string {
	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") {
		return "Is SSH running on that box, and on that port?"
	}
	if strings.Contains(errStr, "no route to host") || strings.Contains(errStr, "network is unreachable") {
		return "Can't route to the host. Check your network connection."
	}
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "Connection timed out. Host might be offline or blocked by a firewall."
	}
	return "Make sure the host is reachable: ping <host>"
}

func suggestionForHandshakeError(err error, auth Auth) string {
	errStr := err.Error()
	if strings.Contains(errStr, "unable to authenticate") || strings.Contains(errStr, "no supported methods") {
		if auth.Password != "" {
			return "The server rejected the password. Double-check it, and that password login is still enabled."
		}
		return "The server rejected the key. Check that it was installed in authorized_keys."
	}
	if strings.Contains(errStr, "host key") || strings.Contains(errStr, "knownhosts") {
		return "Host key issue. Check ~/.ssh/known_hosts for a stale entry: ssh-keygen -R <host>"
	}
	return "Something went wrong during the SSH handshake. Try: ssh -v <host>"
}
