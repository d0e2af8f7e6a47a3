// Package prooftest provides a fake WOPI client key pair for tests: it signs
// requests the way the WOPI client does and renders the matching discovery
// proof-key attributes.
package prooftest

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
	"testing"

	"github.com/marmos91/dittowopi/pkg/proof"
)

// Signer holds a current and an old private key.
type Signer struct {
	Current *rsa.PrivateKey
	Old     *rsa.PrivateKey
}

// NewSigner generates a fresh key pair. 1024-bit keys keep tests fast.
func NewSigner(t testing.TB) *Signer {
	t.Helper()
	return &Signer{
		Current: generate(t),
		Old:     generate(t),
	}
}

func generate(t testing.TB) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	return key
}

// Sign signs the canonical bytes for the request with key.
func Sign(t testing.TB, key *rsa.PrivateKey, accessToken, url string, timestamp int64) string {
	t.Helper()
	digest := sha256.Sum256(proof.CanonicalBytes(accessToken, url, timestamp))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		t.Fatalf("sign proof: %v", err)
	}
	return base64.StdEncoding.EncodeToString(sig)
}

// KeyPair returns the public halves.
func (s *Signer) KeyPair() proof.KeyPair {
	return proof.KeyPair{Current: &s.Current.PublicKey, Old: &s.Old.PublicKey}
}

// ProofKeys implements proof.KeySource.
func (s *Signer) ProofKeys(ctx context.Context) (proof.KeyPair, error) {
	return s.KeyPair(), nil
}

// ProofKeyElement renders the discovery <proof-key> element.
func (s *Signer) ProofKeyElement() string {
	cur, old := &s.Current.PublicKey, &s.Old.PublicKey
	return fmt.Sprintf(`<proof-key oldvalue=%q oldmodulus=%q oldexponent=%q value=%q modulus=%q exponent=%q />`,
		proof.EncodeCSPBlob(old), b64(old.N), b64(big.NewInt(int64(old.E))),
		proof.EncodeCSPBlob(cur), b64(cur.N), b64(big.NewInt(int64(cur.E))))
}

func b64(n *big.Int) string {
	return base64.StdEncoding.EncodeToString(n.Bytes())
}
