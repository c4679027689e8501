package config

import "time"

// Config is the effective vpsinit configuration. Every field has a
// default, so a missing config file is never an error.
type Config struct {
	// SSHDir holds generated keys and the client config file.
	SSHDir string `yaml:"ssh_dir" mapstructure:"ssh_dir"`

	// AliasPrefix is the prefix of generated host aliases ("srv" -> srv1, srv2...).
	AliasPrefix string `yaml:"alias_prefix" mapstructure:"alias_prefix"`

	// RemoteUser is the account provisioned on the server.
	RemoteUser string `yaml:"remote_user" mapstructure:"remote_user"`

	// Port is the SSH port on the server.
	Port int `yaml:"port" mapstructure:"port"`

	Key      KeyConfig      `yaml:"key" mapstructure:"key"`
	Packages PackagesConfig `yaml:"packages" mapstructure:"packages"`

	// HostKeyChecking is one of accept-new, yes, no.
	HostKeyChecking string `yaml:"host_key_checking" mapstructure:"host_key_checking"`

	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`
	VerifyTimeout  time.Duration `yaml:"verify_timeout" mapstructure:"verify_timeout"`

	// KeepGoing continues with independent steps after a failure.
	KeepGoing bool `yaml:"keep_going" mapstructure:"keep_going"`
}

// KeyConfig controls keypair generation.
type KeyConfig struct {
	// Type is rsa, ed25519 or ecdsa.
	Type string `yaml:"type" mapstructure:"type"`

	// Bits is the RSA modulus size or ECDSA curve size. Ignored for ed25519.
	Bits int `yaml:"bits" mapstructure:"bits"`
}

// PackagesConfig controls the package update step.
type PackagesConfig struct {
	// Manager is auto, apt-get, dnf or yum.
	Manager string `yaml:"manager" mapstructure:"manager"`

	// Editor is the editor package to install. Empty skips the install.
	Editor string `yaml:"editor" mapstructure:"editor"`
}

// Host key checking modes.
const (
	HostKeyAcceptNew = "accept-new"
	HostKeyStrict    = "yes"
	HostKeyOff       = "no"
)

// DefaultConfig returns a Config populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		SSHDir:          "~/.ssh",
		AliasPrefix:     "srv",
		RemoteUser:      "root",
		Port:            22,
		Key:             KeyConfig{Type: "rsa", Bits: 4096},
		Packages:        PackagesConfig{Manager: "auto", Editor: "neovim"},
		HostKeyChecking: HostKeyAcceptNew,
		ConnectTimeout:  10 * time.Second,
		VerifyTimeout:   5 * time.Second,
		KeepGoing:       false,
	}
}
