package cli

import (
	"fmt"
	"path/filepath"

	"github.com/rileyhilliard/vpsinit/internal/errors"
	"github.com/rileyhilliard/vpsinit/internal/ui"
	"github.com/rileyhilliard/vpsinit/internal/util"
	"github.com/rileyhilliard/vpsinit/pkg/sshutil"
	"github.com/spf13/cobra"
)

// hostJSON is one alias in `hosts --json` output.
type hostJSON struct {
	Alias        string `json:"alias"`
	Hostname     string `json:"hostname"`
	User         string `json:"user,omitempty"`
	Port         string `json:"port,omitempty"`
	IdentityFile string `json:"identity_file,omitempty"`
}

func newHostsCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "hosts",
		Short: "List the server aliases vpsinit has added",
		Long: `List the srvN blocks in the SSH client config, with the address,
user, port and key each one uses.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}

			path := filepath.Join(util.ExpandHome(cfg.SSHDir), "config")
			entries, err := sshutil.ListAliases(path, cfg.AliasPrefix)
			if err != nil {
				err = errors.WrapWithCode(err, errors.ErrConfig,
					fmt.Sprintf("Can't read %s", path),
					"Check the file's permissions.")
				if asJSON {
					_ = WriteJSONFromError(a.stdout, err)
					return errReported
				}
				return err
			}

			if asJSON {
				out := make([]hostJSON, 0, len(entries))
				for _, e := range entries {
					out = append(out, hostJSON(e))
				}
				return WriteJSONSuccess(a.stdout, out)
			}

			rows := make([]ui.HostRow, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, ui.HostRow(e))
			}
			fmt.Fprintln(a.stdout, ui.RenderHostTable(rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}
