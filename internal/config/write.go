package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rileyhilliard/vpsinit/internal/util"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk shape of Config. Durations are kept as strings
// so the written file reads "5s" rather than nanoseconds.
type fileConfig struct {
	SSHDir          string         `yaml:"ssh_dir"`
	AliasPrefix     string         `yaml:"alias_prefix"`
	RemoteUser      string         `yaml:"remote_user"`
	Port            int            `yaml:"port"`
	Key             KeyConfig      `yaml:"key"`
	Packages        PackagesConfig `yaml:"packages"`
	HostKeyChecking string         `yaml:"host_key_checking"`
	ConnectTimeout  string         `yaml:"connect_timeout"`
	VerifyTimeout   string         `yaml:"verify_timeout"`
	KeepGoing       bool           `yaml:"keep_going"`
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	fc := fileConfig{
		SSHDir:          cfg.SSHDir,
		AliasPrefix:     cfg.AliasPrefix,
		RemoteUser:      cfg.RemoteUser,
		Port:            cfg.Port,
		Key:             cfg.Key,
		Packages:        cfg.Packages,
		HostKeyChecking: cfg.HostKeyChecking,
		ConnectTimeout:  cfg.ConnectTimeout.String(),
		VerifyTimeout:   cfg.VerifyTimeout.String(),
		KeepGoing:       cfg.KeepGoing,
	}

	var node yaml.Node
	if err := node.Encode(fc); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if len(node.Content) > 0 {
		node.HeadComment = "vpsinit configuration"
	}
	return yaml.Marshal(&node)
}

// Write marshals cfg and writes it atomically to path, creating parent
// directories as needed.
func Write(path string, cfg *Config) error {
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return util.WriteFileAtomic(path, data, 0644)
}
