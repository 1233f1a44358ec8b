// Package gcpkms provides a KeyProvider backed by Google Cloud KMS.
//
// The key-encryption key of each sealed bundle is decrypted with the
// CryptoKeys.Decrypt RPC at construction time.
//
// Usage:
//
//	client, err := kms.NewKeyManagementClient(ctx)
//	provider, err := gcpkms.New(ctx, client,
//	    gcpkms.WithSealedKey(sealedBundle, encryptedKEK, resourceName),
//	)
package gcpkms

import (
	"context"
	"fmt"

	kmspb "cloud.google.com/go/kms/apiv1/kmspb"

	"github.com/rbaliyan/stegocrypt"
)

// Client is the subset of the GCP Cloud KMS API used by this provider.
type Client interface {
	Decrypt(ctx context.Context, req *kmspb.DecryptRequest) (*kmspb.DecryptResponse, error)
}

// Option configures a Provider.
type Option func(*options)

type options struct {
	sealedKeys []sealedKeyEntry
}

type sealedKeyEntry struct {
	sealed       []byte
	encryptedKEK []byte
	resourceName string // projects/*/locations/*/keyRings/*/cryptoKeys/*
}

// WithSealedKey adds sealed key material whose KEK was encrypted by the
// Cloud KMS CryptoKey resourceName. The first key added becomes current.
func WithSealedKey(sealed, encryptedKEK []byte, resourceName string) Option {
	return func(o *options) {
		o.sealedKeys = append(o.sealedKeys, sealedKeyEntry{
			sealed:       sealed,
			encryptedKEK: encryptedKEK,
			resourceName: resourceName,
		})
	}
}

// New creates a KeyProvider from Cloud KMS-protected sealed key material.
//
// At least one key must be provided. The KMS client is not retained after
// construction.
func New(ctx context.Context, client Client, opts ...Option) (*stegocrypt.StaticKeyProvider, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if len(o.sealedKeys) == 0 {
		return nil, fmt.Errorf("gcpkms: at least one sealed key is required")
	}

	keys := make([]stegocrypt.Key, 0, len(o.sealedKeys))
	for _, sk := range o.sealedKeys {
		id, err := stegocrypt.SealedKeyID(sk.sealed)
		if err != nil {
			return nil, fmt.Errorf("gcpkms: %w", err)
		}

		resp, err := client.Decrypt(ctx, &kmspb.DecryptRequest{
			Name:       sk.resourceName,
			Ciphertext: sk.encryptedKEK,
		})
		if err != nil {
			return nil, fmt.Errorf("gcpkms: failed to decrypt KEK for key %q: %w", id, err)
		}

		key, err := stegocrypt.OpenKeyMaterial(sk.sealed, resp.Plaintext)
		clear(resp.Plaintext)
		if err != nil {
			return nil, fmt.Errorf("gcpkms: %w", err)
		}
		keys = append(keys, key)
	}

	provider, err := stegocrypt.NewStaticKeyProviderFromKeys(keys...)
	if err != nil {
		return nil, fmt.Errorf("gcpkms: %w", err)
	}
	return provider, nil
}
