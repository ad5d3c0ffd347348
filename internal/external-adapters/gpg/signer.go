package gpg

import (
	"fmt"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
)

// Signer produces armored detached signatures with one private key
type Signer struct {
	entity *openpgp.Entity
}

// NewSignerFromFile loads the first private key found in keyPath. Encrypted
// keys are unlocked with passphrase.
func NewSignerFromFile(keyPath string, passphrase []byte) (*Signer, error) {
	keys, err := readKeyFile(keyPath)
	if err != nil {
		return nil, err
	}

	var entity *openpgp.Entity
	for _, k := range keys {
		if k.PrivateKey != nil {
			entity = k
			break
		}
	}
	if entity == nil {
		return nil, fmt.Errorf("no private key found in %s", keyPath)
	}

	if err := unlock(entity, passphrase); err != nil {
		return nil, err
	}
	return &Signer{entity: entity}, nil
}

// KeyID returns the signing key's fingerprint in upper-case hex
func (s *Signer) KeyID() string {
	return fmt.Sprintf("%X", s.entity.PrimaryKey.Fingerprint)
}

// SignFile writes an armored detached signature of filePath to sigPath
func (s *Signer) SignFile(filePath, sigPath string) (err error) {
	//nolint:gosec // G304: filePath is the manifest being signed
	data, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open data file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer data.Close()

	//nolint:gosec // G304: sigPath is derived from the manifest path
	sig, err := os.OpenFile(sigPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create signature file: %w", err)
	}
	defer func() {
		if closeErr := sig.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("failed to close signature file: %w", closeErr)
		}
	}()

	if err := openpgp.ArmoredDetachSign(sig, s.entity, data, nil); err != nil {
		return fmt.Errorf("failed to sign %s: %w", filePath, err)
	}
	return nil
}

func unlock(entity *openpgp.Entity, passphrase []byte) error {
	if entity.PrivateKey.Encrypted {
		if len(passphrase) == 0 {
			return fmt.Errorf("private key is encrypted and no passphrase was given")
		}
		if err := entity.PrivateKey.Decrypt(passphrase); err != nil {
			return fmt.Errorf("failed to decrypt private key: %w", err)
		}
	}
	for _, sub := range entity.Subkeys {
		if sub.PrivateKey != nil && sub.PrivateKey.Encrypted {
			if err := sub.PrivateKey.Decrypt(passphrase); err != nil {
				return fmt.Errorf("failed to decrypt private subkey: %w", err)
			}
		}
	}
	return nil
}
