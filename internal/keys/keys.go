package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/pem"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rileyhilliard/vpsinit/internal/errors"
	"github.com/rileyhilliard/vpsinit/internal/util"
	"golang.org/x/crypto/ssh"
)

// Params selects the algorithm and size of a new key. Bits is ignored for
// ed25519.
type Params struct {
	Type string
	Bits int
}

// KeyPair describes a key on disk.
type KeyPair struct {
	Path        string // Full path to private key
	PublicPath  string // Path to public key
	Comment     string
	Type        string // SSH algorithm name, e.g. ssh-rsa
	Fingerprint string // SHA256 fingerprint
	Created     bool   // false when an existing key was reused
}

// KeyPath returns <sshDir>/key<host>.
func KeyPath(sshDir, host string) string {
	return filepath.Join(util.ExpandHome(sshDir), "key"+host)
}

// Comment returns the key comment for host.
func Comment(host string) string {
	return "vps-" + host
}

// Ensure returns the key for host, generating it if the private key file
// doesn't exist yet. An existing key must be unlockable with passphrase;
// a missing public half is rebuilt from the private key.
func Ensure(sshDir, host string, params Params, passphrase []byte) (*KeyPair, error) {
	path := KeyPath(sshDir, host)
	comment := Comment(host)

	if _, err := os.Stat(path); err == nil {
		return reuse(path, comment, passphrase)
	} else if !os.IsNotExist(err) {
		return nil, errors.WrapWithCode(err, errors.ErrKey,
			fmt.Sprintf("Can't check for existing key %s", path),
			"Check permissions on "+filepath.Dir(path))
	}

	return Generate(path, comment, params, passphrase)
}

func reuse(path, comment string, passphrase []byte) (*KeyPair, error) {
	signer, err := LoadSigner(path, passphrase)
	if err != nil {
		return nil, err
	}

	pub := signer.PublicKey()
	pubPath := path + ".pub"
	if _, err := os.Stat(pubPath); os.IsNotExist(err) {
		if err := util.WriteFileAtomic(pubPath, authorizedLine(pub, comment), 0644); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrKey,
				fmt.Sprintf("Couldn't rebuild public key %s", pubPath),
				"Check permissions on "+filepath.Dir(path))
		}
	}

	return &KeyPair{
		Path:        path,
		PublicPath:  pubPath,
		Comment:     comment,
		Type:        pub.Type(),
		Fingerprint: ssh.FingerprintSHA256(pub),
	}, nil
}

// Generate creates a new keypair at path. It refuses to overwrite an
// existing file.
func Generate(path, comment string, params Params, passphrase []byte) (*KeyPair, error) {
	path = util.ExpandHome(path)

	if _, err := os.Stat(path); err == nil {
		return nil, errors.New(errors.ErrKey,
			fmt.Sprintf("Key already exists at %s", path),
			"Choose a different path or delete the existing key")
	}

	sshDir := filepath.Dir(path)
	if err := os.MkdirAll(sshDir, 0700); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrKey,
			fmt.Sprintf("Failed to create SSH directory: %s", sshDir),
			"Check permissions on home directory")
	}

	priv, err := newPrivateKey(params)
	if err != nil {
		return nil, err
	}

	var block *pem.Block
	if len(passphrase) == 0 {
		block, err = ssh.MarshalPrivateKey(priv, comment)
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, comment, passphrase)
	}
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrKey,
			"Failed to encode private key", "")
	}

	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrKey,
			"Failed to derive public key", "")
	}
	pub := signer.PublicKey()

	if err := util.WriteFileAtomic(path, pem.EncodeToMemory(block), 0600); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrKey,
			fmt.Sprintf("Failed to write private key %s", path),
			"Check disk space and permissions")
	}

	pubPath := path + ".pub"
	if err := util.WriteFileAtomic(pubPath, authorizedLine(pub, comment), 0644); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrKey,
			fmt.Sprintf("Failed to write public key %s", pubPath),
			"Check disk space and permissions")
	}

	return &KeyPair{
		Path:        path,
		PublicPath:  pubPath,
		Comment:     comment,
		Type:        pub.Type(),
		Fingerprint: ssh.FingerprintSHA256(pub),
		Created:     true,
	}, nil
}

func newPrivateKey(params Params) (crypto.PrivateKey, error) {
	switch strings.ToLower(params.Type) {
	case "", "rsa":
		bits := params.Bits
		if bits == 0 {
			bits = 4096
		}
		if bits < 2048 {
			return nil, errors.New(errors.ErrKey,
				fmt.Sprintf("RSA key size %d is too small", bits),
				"Use at least 2048 bits; 4096 is the default")
		}
		key, err := rsa.GenerateKey(rand.Reader, bits)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrKey, "Failed to generate RSA key", "")
		}
		return key, nil

	case "ecdsa":
		var curve elliptic.Curve
		switch params.Bits {
		case 0, 256:
			curve = elliptic.P256()
		case 384:
			curve = elliptic.P384()
		case 521:
			curve = elliptic.P521()
		default:
			return nil, errors.New(errors.ErrKey,
				fmt.Sprintf("Invalid ECDSA key size: %d", params.Bits),
				"Supported sizes: 256, 384, 521")
		}
		key, err := ecdsa.GenerateKey(curve, rand.Reader)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrKey, "Failed to generate ECDSA key", "")
		}
		return key, nil

	case "ed25519":
		_, key, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrKey, "Failed to generate ed25519 key", "")
		}
		return key, nil
	}

	return nil, errors.New(errors.ErrKey,
		fmt.Sprintf("Invalid key type: %s", params.Type),
		"Supported types: rsa (default), ed25519, ecdsa")
}

// LoadSigner reads a private key and unlocks it with passphrase. An
// unencrypted key loads regardless of passphrase.
func LoadSigner(path string, passphrase []byte) (ssh.Signer, error) {
	path = util.ExpandHome(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrKey,
			fmt.Sprintf("Can't read key %s", path),
			"Check that the file exists and is readable")
	}

	signer, err := ssh.ParsePrivateKey(data)
	if err == nil {
		return signer, nil
	}

	var missing *ssh.PassphraseMissingError
	if !stderrors.As(err, &missing) {
		return nil, errors.WrapWithCode(err, errors.ErrKey,
			fmt.Sprintf("Can't parse key %s", path),
			"The file isn't a private key this tool understands. Move it aside to generate a new one.")
	}

	if len(passphrase) == 0 {
		return nil, errors.WrapWithCode(err, errors.ErrKey,
			fmt.Sprintf("Key %s is encrypted", path),
			"Enter the passphrase that was used when the key was created.")
	}

	signer, err = ssh.ParsePrivateKeyWithPassphrase(data, passphrase)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrKey,
			fmt.Sprintf("Passphrase doesn't unlock %s", path),
			"Use the passphrase this key was created with, or move the key aside to generate a new one.")
	}
	return signer, nil
}

// NeedsPassphrase reports whether err came from loading an encrypted key
// without its passphrase.
func NeedsPassphrase(err error) bool {
	var missing *ssh.PassphraseMissingError
	return stderrors.As(err, &missing)
}

// ReadPublicKey reads the contents of a public key file.
func ReadPublicKey(pubPath string) (string, error) {
	data, err := os.ReadFile(util.ExpandHome(pubPath))
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrKey,
			fmt.Sprintf("Failed to read public key: %s", pubPath),
			"Check that the file exists and is readable")
	}
	line := strings.TrimSpace(string(data))
	if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(line)); err != nil {
		return "", errors.WrapWithCode(err, errors.ErrKey,
			fmt.Sprintf("%s isn't a valid public key", pubPath),
			"Delete it; it will be rebuilt from the private key on the next run")
	}
	return line, nil
}

// authorizedLine renders "<type> <base64> <comment>\n".
func authorizedLine(pub ssh.PublicKey, comment string) []byte {
	line := strings.TrimSuffix(string(ssh.MarshalAuthorizedKey(pub)), "\n")
	if comment != "" {
		line += " " + comment
	}
	return []byte(line + "\n")
}
