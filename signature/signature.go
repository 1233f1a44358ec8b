// Package signature hashes a payload with SHA-256 and signs the digest with
// the scheme matching the key type: RSA-PSS (or PKCS#1 v1.5) for RSA keys,
// ECDSA with ASN.1 DER signatures for EC keys.
package signature

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

var (
	// ErrMalformedSignature is returned by Verify for structurally invalid
	// signatures (wrong length or encoding). A well-formed signature that does
	// not verify is reported as false, not as an error.
	ErrMalformedSignature = errors.New("signature: malformed signature")

	// ErrUnsupportedKey is returned for keys that are neither RSA nor ECDSA.
	ErrUnsupportedKey = errors.New("signature: unsupported key type")
)

// Padding selects the RSA signature padding.
type Padding int

const (
	// PSS is RSASSA-PSS with salt length equal to the hash length.
	PSS Padding = iota
	// PKCS1v15 is RSASSA-PKCS1-v1_5.
	PKCS1v15
)

func (p Padding) String() string {
	if p == PKCS1v15 {
		return "PKCS1v15"
	}
	return "PSS"
}

// Signer signs and verifies payloads. The zero value uses RSA-PSS.
type Signer struct {
	Padding Padding
}

// Option configures a Signer.
type Option func(*Signer)

// WithPadding selects the RSA padding.
func WithPadding(p Padding) Option {
	return func(s *Signer) { s.Padding = p }
}

// New returns a Signer with the given options applied.
func New(opts ...Option) Signer {
	var s Signer
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Digest returns the SHA-256 hash of payload.
func Digest(payload []byte) []byte {
	h := sha256.Sum256(payload)
	return h[:]
}

// Algorithm returns a display name for signatures made with key, such as
// "RSA-PSS-SHA256" or "ECDSA-SHA256".
func (s Signer) Algorithm(key crypto.PublicKey) string {
	switch key.(type) {
	case *rsa.PublicKey:
		return "RSA-" + s.Padding.String() + "-SHA256"
	case *ecdsa.PublicKey:
		return "ECDSA-SHA256"
	}
	return "unknown"
}

// Sign hashes payload and signs the digest with key.
func (s Signer) Sign(payload []byte, key crypto.Signer) (sig, digest []byte, err error) {
	digest = Digest(payload)

	switch k := key.(type) {
	case *rsa.PrivateKey:
		if s.Padding == PKCS1v15 {
			sig, err = rsa.SignPKCS1v15(rand.Reader, k, crypto.SHA256, digest)
		} else {
			sig, err = rsa.SignPSS(rand.Reader, k, crypto.SHA256, digest,
				&rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash})
		}
	case *ecdsa.PrivateKey:
		sig, err = ecdsa.SignASN1(rand.Reader, k, digest)
	default:
		return nil, nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, key)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("signature: sign failed: %w", err)
	}
	return sig, digest, nil
}

// Verify recomputes the digest of payload and checks sig against key.
func (s Signer) Verify(payload, sig []byte, key crypto.PublicKey) (bool, error) {
	digest := Digest(payload)

	switch k := key.(type) {
	case *rsa.PublicKey:
		if len(sig) != k.Size() {
			return false, fmt.Errorf("%w: got %d bytes, want %d", ErrMalformedSignature, len(sig), k.Size())
		}
		var err error
		if s.Padding == PKCS1v15 {
			err = rsa.VerifyPKCS1v15(k, crypto.SHA256, digest, sig)
		} else {
			err = rsa.VerifyPSS(k, crypto.SHA256, digest, sig,
				&rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash})
		}
		return err == nil, nil
	case *ecdsa.PublicKey:
		if !wellFormedECDSA(sig) {
			return false, fmt.Errorf("%w: not a DER ECDSA signature", ErrMalformedSignature)
		}
		return ecdsa.VerifyASN1(k, digest, sig), nil
	}
	return false, fmt.Errorf("%w: %T", ErrUnsupportedKey, key)
}

// wellFormedECDSA reports whether sig is SEQUENCE { INTEGER r, INTEGER s }
// with non-negative integers and no trailing data.
func wellFormedECDSA(sig []byte) bool {
	var inner cryptobyte.String
	input := cryptobyte.String(sig)
	if !input.ReadASN1(&inner, asn1.SEQUENCE) || !input.Empty() {
		return false
	}
	var r, s []byte
	if !inner.ReadASN1Integer(&r) || !inner.ReadASN1Integer(&s) || !inner.Empty() {
		return false
	}
	return len(r) > 0 && len(s) > 0
}
