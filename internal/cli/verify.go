package cli

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rileyhilliard/vpsinit/internal/config"
	"github.com/rileyhilliard/vpsinit/internal/errors"
	"github.com/rileyhilliard/vpsinit/internal/host"
	"github.com/rileyhilliard/vpsinit/internal/keys"
	"github.com/rileyhilliard/vpsinit/internal/ui"
	"github.com/rileyhilliard/vpsinit/internal/util"
	"github.com/rileyhilliard/vpsinit/pkg/sshutil"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"
)

// verifyJSON is the data of `verify --json`.
type verifyJSON struct {
	Target    string `json:"target"`
	Alias     string `json:"alias,omitempty"`
	Key       string `json:"key"`
	LatencyMS int64  `json:"latency_ms"`
}

// verifyTarget is what verify connects to.
type verifyTarget struct {
	target   sshutil.Target
	alias    string
	identity string
}

func newVerifyCmd(a *app) *cobra.Command {
	var (
		identity string
		useAgent bool
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "verify <alias|SERVER_IP>",
		Short: "Check that key login to a provisioned server works",
		Long: `Open a fresh key-only connection and run a trivial command.

The argument is either an alias vpsinit wrote to the SSH config (srv1) or a
server address, in which case the key ~/.ssh/key<address> is used.`,
		Example: `  vpsinit verify srv1
  vpsinit verify 203.0.113.5 --identity ~/.ssh/id_ed25519`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := a.verifyCommand(cmd, args[0], identity, useAgent, asJSON)
			if err != nil && asJSON && err != errReported {
				_ = WriteJSONFromError(a.stdout, err)
				return errReported
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&identity, "identity", "i", "", "private key to use instead of the configured one")
	cmd.Flags().BoolVar(&useAgent, "agent", false, "also offer keys loaded in ssh-agent")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func (a *app) verifyCommand(cmd *cobra.Command, arg, identity string, useAgent, asJSON bool) error {
	log := a.newLogger("verify")

	cfg, _, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}

	vt, err := resolveVerifyTarget(cfg, arg)
	if err != nil {
		return err
	}
	if identity != "" {
		vt.identity = util.ExpandHome(identity)
	}
	log.Debug("verifying %s with %s", vt.target, vt.identity)

	signer, err := keys.LoadSigner(vt.identity, nil)
	if keys.NeedsPassphrase(err) {
		var passphrase []byte
		passphrase, err = a.prompter(a, log).Secret(fmt.Sprintf("Passphrase for %s: ", vt.identity))
		if err != nil {
			return err
		}
		signer, err = keys.LoadSigner(vt.identity, passphrase)
		for i := range passphrase {
			passphrase[i] = 0
		}
	}
	if err != nil {
		return err
	}

	opts := sshutil.Options{
		HostKeyChecking: cfg.HostKeyChecking,
		KnownHostsPath:  filepath.Join(util.ExpandHome(cfg.SSHDir), "known_hosts"),
		Logger:          log,
	}
	res := host.Probe(cmd.Context(), a.dial, vt.target, sshutil.Auth{Signers: []ssh.Signer{signer}, Agent: useAgent}, opts, cfg.VerifyTimeout)
	if !res.Success {
		if asJSON {
			return res.Error
		}
		printVerifyFailure(a, vt, res)
		return errReported
	}

	if asJSON {
		return WriteJSONSuccess(a.stdout, verifyJSON{
			Target:    vt.target.String(),
			Alias:     vt.alias,
			Key:       vt.identity,
			LatencyMS: res.Latency.Milliseconds(),
		})
	}

	name := vt.target.String()
	if vt.alias != "" {
		name = fmt.Sprintf("%s (%s)", vt.alias, name)
	}
	fmt.Fprintf(a.stdout, "%s %s key login works %s\n",
		ui.SuccessStyle().Render(ui.SymbolSuccess), name,
		ui.MutedStyle().Render(res.Latency.Round(time.Millisecond).String()))
	return nil
}

// resolveVerifyTarget looks arg up as an alias first and falls back to
// treating it as an address.
func resolveVerifyTarget(cfg *config.Config, arg string) (verifyTarget, error) {
	sshDir := util.ExpandHome(cfg.SSHDir)

	entry, found, err := sshutil.LookupHost(filepath.Join(sshDir, "config"), arg)
	if err != nil {
		return verifyTarget{}, errors.WrapWithCode(err, errors.ErrConfig,
			"Can't read the SSH config",
			"Fix the syntax error or pass the server address instead of an alias.")
	}
	if found {
		vt := verifyTarget{alias: entry.Alias}
		vt.target.Host = entry.Hostname
		if vt.target.Host == "" {
			vt.target.Host = entry.Alias
		}
		vt.target.User = entry.User
		if vt.target.User == "" {
			vt.target.User = cfg.RemoteUser
		}
		vt.target.Port = cfg.Port
		if entry.Port != "" {
			p, err := strconv.Atoi(entry.Port)
			if err != nil {
				return verifyTarget{}, errors.New(errors.ErrConfig,
					fmt.Sprintf("Alias %s has an invalid port %q", entry.Alias, entry.Port),
					"Fix the Port line in the SSH config.")
			}
			vt.target.Port = p
		}
		vt.identity = util.ExpandHome(entry.IdentityFile)
		if vt.identity == "" {
			vt.identity = keys.KeyPath(sshDir, vt.target.Host)
		}
		return vt, nil
	}

	hostname, port, err := sshutil.ParseTarget(arg, cfg.Port)
	if err != nil {
		return verifyTarget{}, errors.WrapWithCode(err, errors.ErrInput,
			fmt.Sprintf("%q is neither a known alias nor a server address", arg),
			"Run 'vpsinit hosts' to list aliases.")
	}
	return verifyTarget{
		target:   sshutil.Target{Host: hostname, Port: port, User: cfg.RemoteUser},
		identity: keys.KeyPath(sshDir, hostname),
	}, nil
}

func printVerifyFailure(a *app, vt verifyTarget, res host.ProbeResult) {
	name := vt.target.String()
	if vt.alias != "" {
		name = fmt.Sprintf("%s (%s)", vt.alias, name)
	}
	fmt.Fprintf(a.stdout, "%s %s key login failed\n", ui.ErrorStyle().Render(ui.SymbolFail), name)
	fmt.Fprintf(a.stdout, "\n  %s\n", errors.Summary(res.Error))
	if probeErr, ok := res.Error.(*host.ProbeError); ok {
		fmt.Fprintf(a.stdout, "\n  %s\n", probeErr.Reason.Hint())
	}
}
