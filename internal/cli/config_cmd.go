package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/rileyhilliard/vpsinit/internal/config"
	"github.com/rileyhilliard/vpsinit/internal/errors"
	"github.com/spf13/cobra"
)

// configInitOptions holds the flags of `config init`.
type configInitOptions struct {
	force          bool
	nonInteractive bool
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create the vpsinit config file",
	}
	cmd.AddCommand(newConfigInitCmd(a), newConfigShowCmd(a))
	return cmd
}

func newConfigShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration vpsinit would use, after the config file,
VPSINIT_* environment variables and defaults are merged.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			data, err := config.Marshal(cfg)
			if err != nil {
				return errors.WrapWithCode(err, errors.ErrConfig, "Can't render the config", "")
			}
			if path == "" {
				path = "defaults (no config file)"
			}
			fmt.Fprintf(a.stdout, "# source: %s\n", path)
			_, err = a.stdout.Write(data)
			return err
		},
	}
}

func newConfigInitCmd(a *app) *cobra.Command {
	var opts configInitOptions

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a config file",
		Long: `Write a config file with the key type, editor and remote user to use.

Without --config the file goes to ~/.config/vpsinit/config.yaml.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.configInit(opts)
		},
	}
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "overwrite an existing config file")
	cmd.Flags().BoolVar(&opts.nonInteractive, "non-interactive", false, "write the defaults without asking")
	return cmd
}

func (a *app) configInit(opts configInitOptions) error {
	path := a.flags.configPath
	if path == "" {
		path = config.GlobalPath()
	}
	if path == "" {
		return errors.New(errors.ErrConfig,
			"Can't determine the home directory",
			"Pass --config with the path to write.")
	}

	if _, err := os.Stat(path); err == nil && !opts.force {
		if opts.nonInteractive {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Config file already exists: %s", path),
				"Use --force to overwrite")
		}

		var overwrite bool
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("%s already exists. Overwrite?", path)).
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to get user input",
				"Try running with --force to overwrite")
		}
		if !overwrite {
			fmt.Fprintln(a.stdout, "Cancelled.")
			return nil
		}
	}

	cfg := config.DefaultConfig()
	if !opts.nonInteractive {
		if err := askConfig(cfg); err != nil {
			return err
		}
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	if err := config.Write(path, cfg); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Can't write %s", path),
			"Check that the directory is writable.")
	}
	fmt.Fprintf(a.stdout, "Wrote %s\n", path)
	return nil
}

// askConfig fills cfg from an interactive form.
func askConfig(cfg *config.Config) error {
	keyOptions := make([]huh.Option[string], 0, len(config.KeyTypes))
	for _, t := range config.KeyTypes {
		keyOptions = append(keyOptions, huh.NewOption(t, t))
	}
	port := strconv.Itoa(cfg.Port)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Key type for new server keys").
				Options(keyOptions...).
				Value(&cfg.Key.Type),
			huh.NewInput().
				Title("Editor package to install").
				Description("Leave empty to skip installing an editor").
				Value(&cfg.Packages.Editor),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Remote account").
				Value(&cfg.RemoteUser).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("the remote account is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("SSH port").
				Value(&port).
				Validate(func(s string) error {
					n, err := strconv.Atoi(s)
					if err != nil || n < 1 || n > 65535 {
						return fmt.Errorf("enter a port between 1 and 65535")
					}
					return nil
				}),
			huh.NewConfirm().
				Title("Keep going with independent steps after a failure?").
				Value(&cfg.KeepGoing),
		),
	)
	if err := form.Run(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			"Run with --non-interactive to write the defaults")
	}

	cfg.Port, _ = strconv.Atoi(port)
	cfg.Key.Bits = bitsFor(cfg.Key.Type, cfg.Key.Bits)
	return nil
}
