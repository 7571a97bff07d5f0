// Package trust implements artifact signing and verification. Plugins are
// signed with Ed25519 detached signatures; the verifier holds a set of
// trusted author keys and a revocation list. Revoking an author does not
// un-verify their signatures, it only stops their plugins from loading.
package trust

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	dErrors "github.com/plughost-dev/plughost/domain/errors"
)

// Keypair is an Ed25519 signing keypair.
type Keypair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// GenerateKeypair creates a fresh Ed25519 keypair from crypto/rand.
func GenerateKeypair() (Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Keypair{}, fmt.Errorf("generating keypair: %w", err)
	}
	return Keypair{Public: pub, Private: priv}, nil
}

// Sign produces a detached signature over the artifact bytes.
func Sign(priv ed25519.PrivateKey, artifact []byte) ([]byte, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, &dErrors.SignatureError{Reason: "private key has wrong length"}
	}
	return ed25519.Sign(priv, artifact), nil
}

// TrustedKey binds an author identity to their public key. Revoked keys
// stay in the set so existing signatures keep verifying; they only stop
// plugins from loading.
type TrustedKey struct {
	Author  string
	Key     ed25519.PublicKey
	Revoked bool
}

// Fingerprint returns the hex encoding of the public key, used in logs and
// trust store files.
func (k TrustedKey) Fingerprint() string {
	return hex.EncodeToString(k.Key)
}

// ParsePublicKey decodes a hex-encoded Ed25519 public key.
func ParsePublicKey(author, hexKey string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, &dErrors.InvalidKeyError{Author: author, Reason: "not valid hex"}
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, &dErrors.InvalidKeyError{
			Author: author,
			Reason: fmt.Sprintf("expected %d bytes, got %d", ed25519.PublicKeySize, len(raw)),
		}
	}
	return ed25519.PublicKey(raw), nil
}
