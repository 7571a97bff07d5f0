package trust

import (
	"crypto/ed25519"
	"fmt"
	"sync"

	dErrors "github.com/plughost-dev/plughost/domain/errors"
)

// VerificationResult is the outcome of checking one artifact signature.
//
// Verified means the signature matches a key the verifier knows, revoked or
// not. Loadable additionally requires the signing author to be in good
// standing. Loadable implies Verified; the two differ exactly when the
// author has been revoked.
type VerificationResult struct {
	Verified bool
	Loadable bool
	Author   string
}

// Store persists the trusted key set between runs.
type Store interface {
	// Load returns all persisted keys.
	Load() ([]TrustedKey, error)

	// Save replaces the persisted key set.
	Save(keys []TrustedKey) error
}

// Verifier checks artifact signatures against a set of trusted author keys.
// Safe for concurrent use.
type Verifier struct {
	mu      sync.RWMutex
	keys    map[string]ed25519.PublicKey
	revoked map[string]struct{}
}

// NewVerifier creates an empty verifier. With no trusted keys every
// verification fails.
func NewVerifier() *Verifier {
	return &Verifier{
		keys:    make(map[string]ed25519.PublicKey),
		revoked: make(map[string]struct{}),
	}
}

// NewVerifierFromStore creates a verifier preloaded with the store's keys.
func NewVerifierFromStore(store Store) (*Verifier, error) {
	keys, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading trust store: %w", err)
	}
	v := NewVerifier()
	for _, k := range keys {
		if err := v.AddTrustedKey(k.Author, k.Key); err != nil {
			return nil, err
		}
		if k.Revoked {
			v.RevokeAuthor(k.Author)
		}
	}
	return v, nil
}

// AddTrustedKey registers an author's public key. Re-adding an author
// replaces their key and clears any revocation.
func (v *Verifier) AddTrustedKey(author string, key ed25519.PublicKey) error {
	if author == "" {
		return &dErrors.InvalidKeyError{Author: author, Reason: "empty author"}
	}
	if len(key) != ed25519.PublicKeySize {
		return &dErrors.InvalidKeyError{
			Author: author,
			Reason: fmt.Sprintf("expected %d bytes, got %d", ed25519.PublicKeySize, len(key)),
		}
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.keys[author] = append(ed25519.PublicKey(nil), key...)
	delete(v.revoked, author)
	return nil
}

// RevokeAuthor marks an author's plugins as no longer loadable. The key
// stays known so existing signatures still verify.
func (v *Verifier) RevokeAuthor(author string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.keys[author]; ok {
		v.revoked[author] = struct{}{}
	}
}

// IsRevoked reports whether the author has been revoked.
func (v *Verifier) IsRevoked(author string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.revoked[author]
	return ok
}

// TrustedKeys returns all known keys, revoked authors included and marked.
func (v *Verifier) TrustedKeys() []TrustedKey {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]TrustedKey, 0, len(v.keys))
	for author, key := range v.keys {
		_, revoked := v.revoked[author]
		out = append(out, TrustedKey{
			Author:  author,
			Key:     append(ed25519.PublicKey(nil), key...),
			Revoked: revoked,
		})
	}
	return out
}

// Verify checks a detached signature over artifact bytes against every
// known key.
func (v *Verifier) Verify(artifact, signature []byte) VerificationResult {
	if len(signature) != ed25519.SignatureSize {
		return VerificationResult{}
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	for author, key := range v.keys {
		if ed25519.Verify(key, artifact, signature) {
			_, revoked := v.revoked[author]
			return VerificationResult{
				Verified: true,
				Loadable: !revoked,
				Author:   author,
			}
		}
	}
	return VerificationResult{}
}
