// Package vault provides a KeyProvider backed by the HashiCorp Vault Transit
// secrets engine.
//
// Key material is stored sealed (see stegocrypt.SealKeyMaterial) next to a
// key-encryption key encrypted by a Transit key. The KEK is decrypted through
// Transit at construction, used to open the bundle, then wiped.
//
// Usage:
//
//	provider, err := vault.New(ctx, client,
//	    vault.WithSealedKey(sealedBundle, "vault:v1:...", "stegocrypt-kek"),
//	)
package vault

import (
	"context"
	"fmt"

	"github.com/rbaliyan/stegocrypt"
)

// Client abstracts the Vault Transit decrypt operation.
// This allows injecting a mock for testing or wrapping any Vault client library.
type Client interface {
	// TransitDecrypt decrypts ciphertext using the named Transit key.
	// The ciphertext is in Vault's format (e.g., "vault:v1:base64data").
	TransitDecrypt(ctx context.Context, keyName string, ciphertext string) ([]byte, error)
}

// Option configures a Provider.
type Option func(*options)

type options struct {
	sealedKeys []sealedKeyEntry
}

type sealedKeyEntry struct {
	sealed         []byte
	encryptedKEK   string // Vault Transit ciphertext (e.g., "vault:v1:...")
	transitKeyName string
}

// WithSealedKey adds sealed key material whose KEK was encrypted by the named
// Transit key. The first key added becomes the current key.
func WithSealedKey(sealed []byte, encryptedKEK, transitKeyName string) Option {
	return func(o *options) {
		o.sealedKeys = append(o.sealedKeys, sealedKeyEntry{
			sealed:         sealed,
			encryptedKEK:   encryptedKEK,
			transitKeyName: transitKeyName,
		})
	}
}

// New creates a KeyProvider from Transit-protected sealed key material.
// The Vault client is not retained after construction.
func New(ctx context.Context, client Client, opts ...Option) (*stegocrypt.StaticKeyProvider, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if len(o.sealedKeys) == 0 {
		return nil, fmt.Errorf("vault: at least one sealed key is required")
	}

	keys := make([]stegocrypt.Key, 0, len(o.sealedKeys))
	for _, sk := range o.sealedKeys {
		id, err := stegocrypt.SealedKeyID(sk.sealed)
		if err != nil {
			return nil, fmt.Errorf("vault: %w", err)
		}

		kek, err := client.TransitDecrypt(ctx, sk.transitKeyName, sk.encryptedKEK)
		if err != nil {
			return nil, fmt.Errorf("vault: failed to decrypt KEK for key %q: %w", id, err)
		}

		key, err := stegocrypt.OpenKeyMaterial(sk.sealed, kek)
		clear(kek)
		if err != nil {
			return nil, fmt.Errorf("vault: %w", err)
		}
		keys = append(keys, key)
	}

	provider, err := stegocrypt.NewStaticKeyProviderFromKeys(keys...)
	if err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}
	return provider, nil
}
