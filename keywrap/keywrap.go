// Package keywrap protects a short symmetric key under an asymmetric key pair.
//
// Two wrappers are provided and they are deliberately not interchangeable:
//
//   - RSA encrypts the key directly under the recipient public key (OAEP).
//   - ECC cannot encrypt directly. It generates an ephemeral key pair on the
//     recipient's curve, derives a key-encryption key from the ECDH shared
//     secret (ECDH-ES, Concat KDF) and AES-key-wraps the symmetric key with it.
//     The ephemeral public key travels inside the wrapped output, so the
//     counterpart key pair the agreement needs is created per wrap.
package keywrap

import (
	"crypto"
	"errors"
)

var (
	// ErrUnsupportedParameter is returned for an unknown key size or curve.
	ErrUnsupportedParameter = errors.New("keywrap: unsupported parameter")

	// ErrUnsupportedKey is returned when a key has the wrong type for the wrapper.
	ErrUnsupportedKey = errors.New("keywrap: unsupported key type")

	// ErrPayloadTooLarge is returned when the key to wrap exceeds what the
	// recipient key can carry.
	ErrPayloadTooLarge = errors.New("keywrap: payload too large")

	// ErrUnwrapFailure is returned on any unwrap error. Unwrap never returns
	// partial output.
	ErrUnwrapFailure = errors.New("keywrap: unwrap failed")
)

// Wrapper wraps and unwraps symmetric keys.
// Implementations hold no per-call state and are safe for concurrent use.
type Wrapper interface {
	// Algorithm returns a display name such as "RSA-OAEP-SHA256".
	Algorithm() string

	// Wrap protects key for the holder of the private half of recipient.
	Wrap(key []byte, recipient crypto.PublicKey) ([]byte, error)

	// Unwrap recovers a key produced by Wrap.
	Unwrap(wrapped []byte, recipient crypto.PrivateKey) ([]byte, error)
}
