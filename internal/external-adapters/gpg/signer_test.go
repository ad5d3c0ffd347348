package gpg

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
)

// writeTestKeys generates a fresh key pair and writes armored private and public key files
func writeTestKeys(t *testing.T) (privPath, pubPath string) {
	t.Helper()

	entity, err := openpgp.NewEntity("libbundle test", "", "test@example.com", nil)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}

	dir := t.TempDir()
	privPath = filepath.Join(dir, "private.asc")
	pubPath = filepath.Join(dir, "public.asc")

	writeArmored := func(path, blockType string, serialize func(w io.Writer) error) {
		f, err := os.Create(path)
		if err != nil {
			t.Fatalf("Failed to create %s: %v", path, err)
		}
		defer f.Close()

		w, err := armor.Encode(f, blockType, nil)
		if err != nil {
			t.Fatalf("Failed to create armor encoder: %v", err)
		}
		if err := serialize(w); err != nil {
			t.Fatalf("Failed to serialize key: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Failed to close armor encoder: %v", err)
		}
	}

	writeArmored(privPath, openpgp.PrivateKeyType, func(w io.Writer) error {
		return entity.SerializePrivate(w, nil)
	})
	writeArmored(pubPath, openpgp.PublicKeyType, func(w io.Writer) error {
		return entity.Serialize(w)
	})
	return privPath, pubPath
}

func TestSigner_SignAndVerify(t *testing.T) {
	privPath, pubPath := writeTestKeys(t)

	dir := t.TempDir()
	manifest := filepath.Join(dir, "manifest.yml")
	sigPath := manifest + ".asc"
	if err := os.WriteFile(manifest, []byte("files: []\n"), 0600); err != nil {
		t.Fatal(err)
	}

	signer, err := NewSignerFromFile(privPath, nil)
	if err != nil {
		t.Fatalf("NewSignerFromFile() error = %v", err)
	}
	if len(signer.KeyID()) != 40 {
		t.Errorf("KeyID() = %q, want a 40-character fingerprint", signer.KeyID())
	}

	if err := signer.SignFile(manifest, sigPath); err != nil {
		t.Fatalf("SignFile() error = %v", err)
	}

	sig, err := os.ReadFile(sigPath)
	if err != nil {
		t.Fatalf("signature not written: %v", err)
	}
	if !strings.HasPrefix(string(sig), armoredSignaturePrefix) {
		t.Errorf("signature is not armored: %q", sig[:20])
	}

	v := NewVerifier()
	if err := v.ImportKeyFromFile(pubPath); err != nil {
		t.Fatalf("ImportKeyFromFile() error = %v", err)
	}

	if err := v.VerifySignatureFromFile(manifest, sigPath); err != nil {
		t.Errorf("VerifySignatureFromFile() error = %v", err)
	}

	// Any change to the signed file invalidates the signature
	if err := os.WriteFile(manifest, []byte("files: [tampered]\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := v.VerifySignatureFromFile(manifest, sigPath); err == nil {
		t.Error("VerifySignatureFromFile() should fail for a modified file")
	}
}

func TestSigner_RequiresPrivateKey(t *testing.T) {
	_, pubPath := writeTestKeys(t)

	_, err := NewSignerFromFile(pubPath, nil)
	if err == nil || !strings.Contains(err.Error(), "no private key") {
		t.Errorf("NewSignerFromFile() with a public key error = %v", err)
	}
}

func TestVerifier_ImportKeyFromFile_Errors(t *testing.T) {
	v := NewVerifier()

	err := v.ImportKeyFromFile("/nonexistent/key.asc")
	if err == nil || !strings.Contains(err.Error(), "failed to open key file") {
		t.Errorf("missing file error = %v", err)
	}

	garbage := filepath.Join(t.TempDir(), "garbage.asc")
	if err := os.WriteFile(garbage, []byte("not a gpg key"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := v.ImportKeyFromFile(garbage); err == nil {
		t.Error("ImportKeyFromFile() should reject an invalid key file")
	}
}

func TestVerifier_EmptyKeyring(t *testing.T) {
	v := NewVerifier()

	err := v.VerifySignatureFromFile("/any/file", "/any/file.asc")
	if err == nil || !strings.Contains(err.Error(), "no GPG keys imported") {
		t.Errorf("VerifySignatureFromFile() error = %v", err)
	}
}
