package proof

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
)

// Windows CryptoAPI PUBLICKEYBLOB layout:
//
//	BLOBHEADER  bType(1) bVersion(1) reserved(2) aiKeyAlg(4)
//	RSAPUBKEY   magic(4) bitlen(4) pubexp(4)
//	modulus     bitlen/8 bytes, little-endian
const (
	cspHeaderLen     = 20
	cspPublicKeyBlob = 0x06
	cspBlobVersion   = 0x02
	cspMagicRSA1     = 0x31415352 // "RSA1"
	calgRSAKeyX      = 0x0000a400
)

var (
	// ErrInvalidKeyBlob is returned for blobs that are not RSA public key blobs.
	ErrInvalidKeyBlob = errors.New("invalid CSP public key blob")

	// ErrNoKey is returned when neither a blob nor modulus/exponent is available.
	ErrNoKey = errors.New("no proof key material")
)

// ParseCSPBlob decodes a base64 Windows CSP PUBLICKEYBLOB into an RSA key.
func ParseCSPBlob(encoded string) (*rsa.PublicKey, error) {
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode key blob: %w", err)
	}

	if len(blob) < cspHeaderLen {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrInvalidKeyBlob, len(blob))
	}
	if blob[0] != cspPublicKeyBlob {
		return nil, fmt.Errorf("%w: blob type 0x%02x", ErrInvalidKeyBlob, blob[0])
	}
	if magic := binary.LittleEndian.Uint32(blob[8:12]); magic != cspMagicRSA1 {
		return nil, fmt.Errorf("%w: magic 0x%08x", ErrInvalidKeyBlob, magic)
	}

	bitLen := binary.LittleEndian.Uint32(blob[12:16])
	exponent := binary.LittleEndian.Uint32(blob[16:20])
	modLen := int((bitLen + 7) / 8)

	if bitLen == 0 || len(blob) < cspHeaderLen+modLen {
		return nil, fmt.Errorf("%w: modulus truncated (%d bits)", ErrInvalidKeyBlob, bitLen)
	}
	if exponent == 0 {
		return nil, fmt.Errorf("%w: zero exponent", ErrInvalidKeyBlob)
	}

	modulus := make([]byte, modLen)
	for i := 0; i < modLen; i++ {
		modulus[i] = blob[cspHeaderLen+modLen-1-i]
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(modulus),
		E: int(exponent),
	}, nil
}

// EncodeCSPBlob is the inverse of ParseCSPBlob.
func EncodeCSPBlob(pub *rsa.PublicKey) string {
	modulus := pub.N.Bytes()
	modLen := (pub.N.BitLen() + 7) / 8

	blob := make([]byte, cspHeaderLen+modLen)
	blob[0] = cspPublicKeyBlob
	blob[1] = cspBlobVersion
	binary.LittleEndian.PutUint32(blob[4:8], calgRSAKeyX)
	binary.LittleEndian.PutUint32(blob[8:12], cspMagicRSA1)
	binary.LittleEndian.PutUint32(blob[12:16], uint32(modLen*8))
	binary.LittleEndian.PutUint32(blob[16:20], uint32(pub.E))

	for i, b := range modulus {
		blob[cspHeaderLen+len(modulus)-1-i] = b
	}

	return base64.StdEncoding.EncodeToString(blob)
}

// ParseModulusExponent builds a key from the base64 big-endian modulus and
// exponent attributes published alongside the blob.
func ParseModulusExponent(modulus, exponent string) (*rsa.PublicKey, error) {
	n, err := base64.StdEncoding.DecodeString(modulus)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	e, err := base64.StdEncoding.DecodeString(exponent)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}
	if len(n) == 0 || len(e) == 0 || len(e) > 4 {
		return nil, fmt.Errorf("%w: modulus %d bytes, exponent %d bytes", ErrInvalidKeyBlob, len(n), len(e))
	}

	exp := 0
	for _, b := range e {
		exp = exp<<8 | int(b)
	}

	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: exp}, nil
}

// ParseKey prefers the CSP blob and falls back to modulus/exponent.
func ParseKey(blob, modulus, exponent string) (*rsa.PublicKey, error) {
	if blob != "" {
		return ParseCSPBlob(blob)
	}
	if modulus != "" && exponent != "" {
		return ParseModulusExponent(modulus, exponent)
	}
	return nil, ErrNoKey
}
