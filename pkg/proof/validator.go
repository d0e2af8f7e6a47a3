// Package proof validates WOPI proof-of-origin signatures.
//
// The WOPI client signs every request with its current private key and,
// during a key rotation, also with the previous one. A request is accepted
// when any of these verify against the canonical request bytes:
//
//   - X-WOPI-Proof with the current public key
//   - X-WOPI-ProofOld with the current public key
//   - X-WOPI-Proof with the old public key
//
// Verification never panics: malformed input simply fails closed.
package proof

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrMissingProof is returned when the proof or timestamp header is absent.
	ErrMissingProof = errors.New("proof or timestamp header missing")

	// ErrInvalidTimestamp is returned when the timestamp header is not an integer.
	ErrInvalidTimestamp = errors.New("invalid proof timestamp")

	// ErrProofMismatch is returned when no key/proof combination verifies.
	ErrProofMismatch = errors.New("proof does not match any published key")
)

// KeyPair holds the current and previous proof keys. Old may be nil.
type KeyPair struct {
	Current *rsa.PublicKey
	Old     *rsa.PublicKey
}

// KeySource supplies the proof keys, typically from a cached discovery
// document.
type KeySource interface {
	ProofKeys(ctx context.Context) (KeyPair, error)
}

// Request carries the request values that take part in proof validation.
type Request struct {
	// AccessToken is the access_token query parameter.
	AccessToken string

	// URL is the absolute request URL as seen by the WOPI client.
	URL string

	// Proof and ProofOld are the X-WOPI-Proof / X-WOPI-ProofOld values.
	Proof    string
	ProofOld string

	// Timestamp is the X-WOPI-TimeStamp value.
	Timestamp string
}

// Validator checks proofs against keys from a KeySource.
type Validator struct {
	keys KeySource
}

// NewValidator creates a Validator.
func NewValidator(keys KeySource) *Validator {
	return &Validator{keys: keys}
}

// Validate returns nil when the request carries a valid proof.
func (v *Validator) Validate(ctx context.Context, req Request) error {
	if strings.TrimSpace(req.Proof) == "" || strings.TrimSpace(req.Timestamp) == "" {
		return ErrMissingProof
	}

	ts, err := strconv.ParseInt(strings.TrimSpace(req.Timestamp), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimestamp, req.Timestamp)
	}

	keys, err := v.keys.ProofKeys(ctx)
	if err != nil {
		return fmt.Errorf("load proof keys: %w", err)
	}

	expected := CanonicalBytes(req.AccessToken, req.URL, ts)

	if Verify(expected, req.Proof, keys.Current) ||
		Verify(expected, req.ProofOld, keys.Current) ||
		Verify(expected, req.Proof, keys.Old) {
		return nil
	}

	return ErrProofMismatch
}

// Verify reports whether signature (base64) is a valid RSA PKCS#1 v1.5
// SHA-256 signature of data under key. Empty or malformed input yields false.
func Verify(data []byte, signature string, key *rsa.PublicKey) bool {
	if key == nil || signature == "" {
		return false
	}

	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}

	digest := sha256.Sum256(data)
	return rsa.VerifyPKCS1v15(key, crypto.SHA256, digest[:], sig) == nil
}
