package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rileyhilliard/vpsinit/internal/errors"
	"github.com/rileyhilliard/vpsinit/internal/util"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the project-local config file name.
	ConfigFileName = ".vpsinit.yaml"
	// GlobalConfigDir is the directory for global config.
	GlobalConfigDir = ".config/vpsinit"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"
	// EnvPrefix prefixes environment overrides (VPSINIT_PORT, VPSINIT_KEY_TYPE...).
	EnvPrefix = "VPSINIT"
)

// Load reads config from the specified path, applying defaults and
// environment overrides.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Config file not found: "+path,
				"Run 'vpsinit config init' to create one, or drop --config")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read config file",
			"Check the file exists and is valid YAML")
	}

	return decode(v, path)
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. .vpsinit.yaml in current directory
// 3. ~/.config/vpsinit/config.yaml
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		explicit = util.ExpandHome(explicit)
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	if cwd, err := os.Getwd(); err == nil {
		local := filepath.Join(cwd, ConfigFileName)
		if _, err := os.Stat(local); err == nil {
			return local, nil
		}
	}

	if global := GlobalPath(); global != "" {
		if _, err := os.Stat(global); err == nil {
			return global, nil
		}
	}

	return "", nil
}

// GlobalPath returns ~/.config/vpsinit/config.yaml, or "" when the home
// directory can't be determined.
func GlobalPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
}

// LoadOrDefault loads the config found by Find(explicit). When no file
// exists, defaults plus environment overrides are returned. The second
// return value is the path that was loaded ("" for defaults).
func LoadOrDefault(explicit string) (*Config, string, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, "", err
	}

	if path == "" {
		cfg, err := decode(newViper(), "")
		return cfg, "", err
	}

	cfg, err := Load(path)
	return cfg, path, err
}

// newViper returns a viper instance with every default registered so that
// environment overrides apply even without a config file.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	d := DefaultConfig()
	v.SetDefault("ssh_dir", d.SSHDir)
	v.SetDefault("alias_prefix", d.AliasPrefix)
	v.SetDefault("remote_user", d.RemoteUser)
	v.SetDefault("port", d.Port)
	v.SetDefault("key.type", d.Key.Type)
	v.SetDefault("key.bits", d.Key.Bits)
	v.SetDefault("packages.manager", d.Packages.Manager)
	v.SetDefault("packages.editor", d.Packages.Editor)
	v.SetDefault("host_key_checking", d.HostKeyChecking)
	v.SetDefault("connect_timeout", d.ConnectTimeout.String())
	v.SetDefault("verify_timeout", d.VerifyTimeout.String())
	v.SetDefault("keep_going", d.KeepGoing)
	return v
}

// decode converts viper state into a Config and expands paths.
func decode(v *viper.Viper, path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		where := "your environment"
		if path != "" {
			where = path
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the values in "+where)
	}

	cfg.SSHDir = util.ExpandHome(cfg.SSHDir)
	cfg.Key.Type = strings.ToLower(strings.TrimSpace(cfg.Key.Type))
	cfg.Packages.Manager = strings.ToLower(strings.TrimSpace(cfg.Packages.Manager))
	return cfg, nil
}
