package keywrap

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
)

// SupportedRSABits lists the accepted RSA modulus sizes.
var SupportedRSABits = []int{1024, 2048, 3072, 4096}

// GenerateRSA creates an RSA key of one of the SupportedRSABits sizes.
func GenerateRSA(bits int) (*rsa.PrivateKey, error) {
	supported := false
	for _, b := range SupportedRSABits {
		if b == bits {
			supported = true
			break
		}
	}
	if !supported {
		return nil, fmt.Errorf("%w: RSA key size %d", ErrUnsupportedParameter, bits)
	}

	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("keywrap: failed to generate RSA key: %w", err)
	}
	return key, nil
}

// RSA wraps keys with RSA-OAEP using SHA-256.
type RSA struct{}

// Compile-time interface check.
var _ Wrapper = RSA{}

// Algorithm returns "RSA-OAEP-SHA256".
func (RSA) Algorithm() string { return "RSA-OAEP-SHA256" }

// MaxPayload returns the largest key pub can carry with OAEP-SHA256.
func (RSA) MaxPayload(pub *rsa.PublicKey) int {
	return pub.Size() - 2*sha256.Size - 2
}

// Wrap encrypts key under recipient, which must be an *rsa.PublicKey.
func (w RSA) Wrap(key []byte, recipient crypto.PublicKey) ([]byte, error) {
	pub, ok := recipient.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: RSA wrap needs *rsa.PublicKey, got %T", ErrUnsupportedKey, recipient)
	}
	if max := w.MaxPayload(pub); len(key) > max {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d for a %d-bit key",
			ErrPayloadTooLarge, len(key), max, pub.N.BitLen())
	}

	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, key, nil)
	if err != nil {
		return nil, fmt.Errorf("keywrap: RSA-OAEP encrypt: %w", err)
	}
	return wrapped, nil
}

// Unwrap decrypts wrapped with recipient, which must be an *rsa.PrivateKey.
func (RSA) Unwrap(wrapped []byte, recipient crypto.PrivateKey) ([]byte, error) {
	priv, ok := recipient.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: RSA unwrap needs *rsa.PrivateKey, got %T", ErrUnsupportedKey, recipient)
	}

	key, err := rsa.DecryptOAEP(sha256.New(), nil, priv, wrapped, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: RSA-OAEP decrypt", ErrUnwrapFailure)
	}
	return key, nil
}
