// Package provision runs the six hardening steps against a fresh server.
//
// Steps run strictly in order:
//
//	update        refresh packages and install the editor (password auth)
//	keygen        create or reuse ~/.ssh/key<host>
//	copy-key      append the public key to authorized_keys (password auth)
//	alias         add a Host <prefix>N block to ~/.ssh/config
//	harden-sshd   turn off password logins in sshd_config (key auth)
//	restart-sshd  restart the SSH daemon (key auth)
//
// Every step ends in a StepResult tagged success, failed or skipped. By
// default the first failure stops the run and the rest are reported as
// skipped; with KeepGoing later steps still run unless a step they need
// failed. Hardening is refused unless a key-authenticated connection has
// already been opened, so a broken key install can't lock the operator
// out.
//
// Remote scripts are sent on stdin to bash; nothing is written to a
// temporary file on either side, and no secret is ever part of a command
// line.
package provision
