// Package keys creates and loads the per-server SSH keypair.
//
// Each server gets its own key at <ssh_dir>/key<host> with the public half
// next to it as key<host>.pub and the comment vps-<host>. Keys are
// generated in process with crypto/rand and written in OpenSSH format,
// encrypted with the operator's passphrase when one is given.
//
//	kp, err := keys.Ensure("~/.ssh", "203.0.113.5", keys.Params{Type: "rsa", Bits: 4096}, passphrase)
//
// Ensure reuses an existing private key instead of overwriting it, as long
// as the passphrase unlocks it. LoadSigner turns a key file back into an
// ssh.Signer for key-authenticated connections.
//
// Private keys are written 0600 and public keys 0644, both through an
// atomic rename. Key material and passphrases are never logged.
package keys
