// Package gpg verifies detached PGP signatures on built distribution
// archives before they are published into the index.
package gpg

import (
	"errors"
	"fmt"
	"os"

	"github.com/ProtonMail/gopenpgp/v2/crypto"
)

// Sentinel errors for signature verification.
var (
	ErrNoKeys     = errors.New("no keys in keyring")
	ErrEmptyKey   = errors.New("armored key data cannot be empty")
	ErrKeyRevoked = errors.New("key is revoked and cannot be used for verification")
)

// Verifier holds a keyring of trusted public keys and checks detached
// signatures against it.
type Verifier struct {
	keyRing *crypto.KeyRing
}

// NewVerifier creates an empty Verifier. At least one key must be added
// before verification succeeds.
func NewVerifier() *Verifier {
	return &Verifier{}
}

// AddArmoredKey parses an armored public key and adds it to the keyring.
func (v *Verifier) AddArmoredKey(armored string) error {
	if armored == "" {
		return ErrEmptyKey
	}

	key, err := crypto.NewKeyFromArmored(armored)
	if err != nil {
		return fmt.Errorf("failed to parse PGP key: %w", err)
	}

	if v.keyRing == nil {
		v.keyRing, err = crypto.NewKeyRing(key)
		if err != nil {
			return fmt.Errorf("failed to create keyring: %w", err)
		}
		return nil
	}

	if err := v.keyRing.AddKey(key); err != nil {
		return fmt.Errorf("failed to add key to keyring: %w", err)
	}
	return nil
}

// AddKeyFile reads an armored public key from disk and adds it to the
// keyring.
func (v *Verifier) AddKeyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read key file %s: %w", path, err)
	}
	return v.AddArmoredKey(string(data))
}

// KeyCount returns the number of keys in the keyring.
func (v *Verifier) KeyCount() int {
	if v.keyRing == nil {
		return 0
	}
	return v.keyRing.CountEntities()
}

// VerifyDetached checks a detached signature over message. The signature may
// be armored or binary.
func (v *Verifier) VerifyDetached(message, signature []byte) error {
	if v.keyRing == nil {
		return ErrNoKeys
	}

	plainMessage := crypto.NewPlainMessage(message)

	pgpSignature, err := crypto.NewPGPSignatureFromArmored(string(signature))
	if err != nil {
		// Not armored, try binary.
		pgpSignature = crypto.NewPGPSignature(signature)
	}

	if err := v.keyRing.VerifyDetached(plainMessage, pgpSignature, crypto.GetUnixTime()); err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}
	return nil
}

// VerifyFile checks the detached signature at signaturePath over the archive
// at archivePath. Satisfies the index builder's SignatureVerifier.
func (v *Verifier) VerifyFile(archivePath, signaturePath string) error {
	message, err := os.ReadFile(archivePath)
	if err != nil {
		return fmt.Errorf("failed to read archive %s: %w", archivePath, err)
	}

	signature, err := os.ReadFile(signaturePath)
	if err != nil {
		return fmt.Errorf("failed to read signature %s: %w", signaturePath, err)
	}

	return v.VerifyDetached(message, signature)
}
