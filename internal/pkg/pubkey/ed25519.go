// Package pubkey loads verification keys kept in OpenSSH authorized_keys format.
package pubkey

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/ssh"
)

// DefaultEd25519File is the usual location of a user's ed25519 public key, relative to home.
const DefaultEd25519File = ".ssh/id_ed25519.pub"

var errNotEd25519 = errors.New("public key is not ed25519")

// LoadEd25519 reads an OpenSSH public key file and returns its ed25519 key.
func LoadEd25519(path string) (ed25519.PublicKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read public key: %w", err)
	}
	return ParseEd25519(b)
}

// ParseEd25519 parses one authorized_keys line such as "ssh-ed25519 AAAA... comment".
func ParseEd25519(line []byte) (ed25519.PublicKey, error) {
	key, _, _, _, err := ssh.ParseAuthorizedKey(line)
	if err != nil {
		return nil, fmt.Errorf("could not parse public key: %w", err)
	}
	if key.Type() != ssh.KeyAlgoED25519 {
		return nil, fmt.Errorf("%w: %s", errNotEd25519, key.Type())
	}
	cryptoKey, ok := key.(ssh.CryptoPublicKey)
	if !ok {
		return nil, errNotEd25519
	}
	pub, ok := cryptoKey.CryptoPublicKey().(ed25519.PublicKey)
	if !ok {
		return nil, errNotEd25519
	}
	return pub, nil
}
