package gateways

import (
	"fmt"

	"github.com/ochairo/libbundle/internal/external-adapters/gpg"
)

// SignatureSuffix is appended to a manifest path to name its detached signature
const SignatureSuffix = ".asc"

// signatureGateway wraps the external GPG adapter for manifest signing and verification
type signatureGateway struct{}

// NewSignatureGateway creates a new signature gateway
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewSignatureGateway() *signatureGateway {
	return &signatureGateway{}
}

// SignManifest writes an armored detached signature next to manifestPath and
// returns the signature path
func (g *signatureGateway) SignManifest(manifestPath, keyPath string, passphrase []byte) (string, error) {
	signer, err := gpg.NewSignerFromFile(keyPath, passphrase)
	if err != nil {
		return "", fmt.Errorf("failed to load signing key: %w", err)
	}

	sigPath := manifestPath + SignatureSuffix
	if err := signer.SignFile(manifestPath, sigPath); err != nil {
		return "", fmt.Errorf("failed to sign manifest: %w", err)
	}
	return sigPath, nil
}

// VerifyManifest checks the detached signature next to manifestPath against publicKeyPath
func (g *signatureGateway) VerifyManifest(manifestPath, publicKeyPath string) error {
	verifier := gpg.NewVerifier()
	if err := verifier.ImportKeyFromFile(publicKeyPath); err != nil {
		return fmt.Errorf("failed to import GPG key from file: %w", err)
	}
	if err := verifier.VerifySignatureFromFile(manifestPath, manifestPath+SignatureSuffix); err != nil {
		return fmt.Errorf("GPG signature verification failed: %w", err)
	}
	return nil
}
