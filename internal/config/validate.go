package config

import (
	"fmt"
	"strings"

	"github.com/rileyhilliard/vpsinit/internal/errors"
)

// KeyTypes lists the supported key algorithms.
var KeyTypes = []string{"rsa", "ed25519", "ecdsa"}

// PackageManagers lists accepted packages.manager values.
var PackageManagers = []string{"auto", "apt-get", "dnf", "yum"}

// Validate checks the config for errors and returns a structured error
// naming the offending key.
func Validate(cfg *Config) error {
	if err := validateKey(cfg.Key); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'key' section of your config.")
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("port %d is out of range", cfg.Port),
			"Use a port between 1 and 65535.")
	}

	if cfg.RemoteUser == "" || strings.ContainsAny(cfg.RemoteUser, " \t@") {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("remote_user %q isn't a valid user name", cfg.RemoteUser),
			"Use a plain account name such as root.")
	}

	if cfg.AliasPrefix == "" || strings.ContainsAny(cfg.AliasPrefix, " \t*?!") {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("alias_prefix %q can't be used as an SSH host alias", cfg.AliasPrefix),
			"Use letters, digits, dashes or underscores, like 'srv'.")
	}

	if !contains(PackageManagers, cfg.Packages.Manager) {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("packages.manager %q isn't supported", cfg.Packages.Manager),
			"Supported: "+strings.Join(PackageManagers, ", "))
	}

	switch cfg.HostKeyChecking {
	case HostKeyAcceptNew, HostKeyStrict, HostKeyOff:
	default:
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("host_key_checking %q isn't supported", cfg.HostKeyChecking),
			"Use accept-new, yes or no.")
	}

	if cfg.ConnectTimeout <= 0 || cfg.VerifyTimeout <= 0 {
		return errors.New(errors.ErrConfig,
			"connect_timeout and verify_timeout must be positive",
			"Use durations like 10s or 5s.")
	}

	if cfg.SSHDir == "" {
		return errors.New(errors.ErrConfig,
			"ssh_dir can't be empty",
			"Leave it unset to use ~/.ssh.")
	}

	return nil
}

func validateKey(k KeyConfig) error {
	switch k.Type {
	case "rsa":
		if k.Bits < 2048 {
			return fmt.Errorf("rsa keys need at least 2048 bits, got %d", k.Bits)
		}
	case "ecdsa":
		switch k.Bits {
		case 256, 384, 521:
		default:
			return fmt.Errorf("ecdsa key bits must be 256, 384 or 521, got %d", k.Bits)
		}
	case "ed25519":
	default:
		return fmt.Errorf("key type %q isn't supported (use %s)", k.Type, strings.Join(KeyTypes, ", "))
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
