package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rileyhilliard/vpsinit/internal/config"
	"github.com/rileyhilliard/vpsinit/internal/logger"
	"github.com/rileyhilliard/vpsinit/internal/prompt"
	"github.com/rileyhilliard/vpsinit/internal/ui"
	"github.com/rileyhilliard/vpsinit/pkg/sshutil"
	"github.com/spf13/cobra"
)

const usageText = `Usage: vpsinit <SERVER_IP>

Example:
  vpsinit 203.0.113.5
`

// errUsage is returned after usage text has been printed. It maps to exit
// status 1 without printing anything else.
var errUsage = stderrors.New("usage")

// rootFlags are the persistent and provisioning flags.
type rootFlags struct {
	configPath string
	verbose    bool
	noColor    bool
	keepGoing  bool
	port       int
	user       string
	keyType    string
	editor     string
}

// app carries what the commands need from the outside world. Tests swap
// dial and prompter.
type app struct {
	flags    rootFlags
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
	dial     sshutil.DialFunc
	prompter func(a *app, log logger.Logger) prompt.Prompter
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		dial:   sshutil.DialClient,
		prompter: func(a *app, log logger.Logger) prompt.Prompter {
			return prompt.NewTerminal(a.stdin, a.stderr, log)
		},
	}
}

// newRootCmd builds the command tree around a.
func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "vpsinit <SERVER_IP>",
		Short: "Harden a fresh Linux server for key-only SSH",
		Long: `Prepare a freshly installed Linux server in one pass:

  1. update packages and install an editor
  2. generate an SSH keypair (~/.ssh/key<IP>)
  3. install the public key on the server
  4. add a srvN alias to ~/.ssh/config
  5. disable password authentication in sshd_config
  6. restart the SSH daemon

then print a summary and check that key login works.

You are asked for the remote user's password and a passphrase for the new
key before anything touches the server.`,
		Example: `  vpsinit 203.0.113.5
  vpsinit --user admin --port 2222 198.51.100.7
  vpsinit --keep-going --key-type ed25519 203.0.113.5`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if a.flags.noColor || ui.ColorsDisabledByEnv() {
				ui.DisableColors()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				fmt.Fprint(a.stdout, usageText)
				return errUsage
			}
			return a.provisionCommand(cmd, args[0])
		},
	}

	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "config file (default: ./.vpsinit.yaml or ~/.config/vpsinit/config.yaml)")
	pf.BoolVarP(&a.flags.verbose, "verbose", "v", false, "show debug logs and remote output")
	pf.BoolVar(&a.flags.noColor, "no-color", false, "disable colored output")

	f := root.Flags()
	f.BoolVar(&a.flags.keepGoing, "keep-going", false, "continue with independent steps after a failure")
	f.IntVarP(&a.flags.port, "port", "p", 0, "SSH port on the server (default from config, 22)")
	f.StringVarP(&a.flags.user, "user", "u", "", "remote account to provision (default from config, root)")
	f.StringVar(&a.flags.keyType, "key-type", "", "key algorithm: rsa, ed25519 or ecdsa")
	f.StringVar(&a.flags.editor, "editor", "", "editor package to install (empty string skips it)")

	root.AddCommand(
		newHostsCmd(a),
		newVerifyCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

// newLogger returns the stderr logger, at debug level with --verbose or
// VPSINIT_DEBUG.
func (a *app) newLogger(prefix string) logger.Logger {
	debug := a.flags.verbose || os.Getenv(logger.DebugEnv) != ""
	return logger.NewWriterLogger(a.stderr, prefix, debug)
}

// loadConfig resolves the effective config and applies flag overrides.
func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	cfg, path, err := config.LoadOrDefault(a.flags.configPath)
	if err != nil {
		return nil, "", err
	}
	a.applyOverrides(cmd, cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// applyOverrides copies explicitly set flags onto cfg.
func (a *app) applyOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Lookup("keep-going") != nil && flags.Changed("keep-going") {
		cfg.KeepGoing = a.flags.keepGoing
	}
	if flags.Lookup("port") != nil && flags.Changed("port") {
		cfg.Port = a.flags.port
	}
	if flags.Lookup("user") != nil && flags.Changed("user") {
		cfg.RemoteUser = a.flags.user
	}
	if flags.Lookup("key-type") != nil && flags.Changed("key-type") {
		cfg.Key.Type = strings.ToLower(a.flags.keyType)
		cfg.Key.Bits = bitsFor(cfg.Key.Type, cfg.Key.Bits)
	}
	if flags.Lookup("editor") != nil && flags.Changed("editor") {
		cfg.Packages.Editor = a.flags.editor
	}
}

// bitsFor keeps bits when they are valid for keyType and otherwise
// returns that type's default size.
func bitsFor(keyType string, bits int) int {
	switch keyType {
	case "rsa":
		if bits >= 2048 {
			return bits
		}
		return 4096
	case "ecdsa":
		switch bits {
		case 256, 384, 521:
			return bits
		}
		return 256
	default:
		return 0
	}
}

// run executes the command tree with args and returns the exit status.
func run(ctx context.Context, a *app, args []string) int {
	root := newRootCmd(a)
	if args == nil {
		// cobra falls back to os.Args when given nil
		args = []string{}
	}
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	if !stderrors.Is(err, errUsage) && !stderrors.Is(err, errReported) {
		fmt.Fprintln(a.stderr, err)
	}
	return 1
}

// Execute runs vpsinit with the process arguments and exits.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, newApp(os.Stdin, os.Stdout, os.Stderr), os.Args[1:])
	stop()
	sshutil.CloseAgent()
	os.Exit(code)
}
