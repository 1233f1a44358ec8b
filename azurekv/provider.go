// Package azurekv provides a KeyProvider backed by Azure Key Vault.
//
// The key-encryption key of each sealed bundle is unwrapped with the Key
// Vault UnwrapKey operation at construction time.
//
// Usage:
//
//	cred, err := azidentity.NewDefaultAzureCredential(nil)
//	client, err := azkeys.NewClient("https://my-vault.vault.azure.net/", cred, nil)
//
//	provider, err := azurekv.New(ctx, client,
//	    azurekv.WithSealedKey(sealedBundle, wrappedKEK, "my-key-name", "key-version"),
//	)
package azurekv

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azkeys"

	"github.com/rbaliyan/stegocrypt"
)

// Client is the subset of the Azure Key Vault API used by this provider.
type Client interface {
	UnwrapKey(ctx context.Context, keyName string, keyVersion string, parameters azkeys.KeyOperationParameters, options *azkeys.UnwrapKeyOptions) (azkeys.UnwrapKeyResponse, error)
}

// Option configures a Provider.
type Option func(*options)

type options struct {
	sealedKeys []sealedKeyEntry
}

type sealedKeyEntry struct {
	sealed     []byte
	wrappedKEK []byte
	keyName    string
	keyVersion string
	algorithm  azkeys.EncryptionAlgorithm
}

// WithSealedKey adds sealed key material whose KEK was wrapped by the Key
// Vault key keyName/keyVersion with RSA-OAEP-256. The first key added
// becomes current.
func WithSealedKey(sealed, wrappedKEK []byte, keyName, keyVersion string) Option {
	return WithSealedKeyAlgorithm(sealed, wrappedKEK, keyName, keyVersion, azkeys.EncryptionAlgorithmRSAOAEP256)
}

// WithSealedKeyAlgorithm is like WithSealedKey with an explicit unwrap algorithm.
func WithSealedKeyAlgorithm(sealed, wrappedKEK []byte, keyName, keyVersion string, alg azkeys.EncryptionAlgorithm) Option {
	return func(o *options) {
		o.sealedKeys = append(o.sealedKeys, sealedKeyEntry{
			sealed:     sealed,
			wrappedKEK: wrappedKEK,
			keyName:    keyName,
			keyVersion: keyVersion,
			algorithm:  alg,
		})
	}
}

// New creates a KeyProvider from Key Vault-protected sealed key material.
// The Key Vault client is not retained after construction.
func New(ctx context.Context, client Client, opts ...Option) (*stegocrypt.StaticKeyProvider, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if len(o.sealedKeys) == 0 {
		return nil, fmt.Errorf("azurekv: at least one sealed key is required")
	}

	keys := make([]stegocrypt.Key, 0, len(o.sealedKeys))
	for _, sk := range o.sealedKeys {
		id, err := stegocrypt.SealedKeyID(sk.sealed)
		if err != nil {
			return nil, fmt.Errorf("azurekv: %w", err)
		}

		resp, err := client.UnwrapKey(ctx, sk.keyName, sk.keyVersion, azkeys.KeyOperationParameters{
			Algorithm: &sk.algorithm,
			Value:     sk.wrappedKEK,
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("azurekv: failed to unwrap KEK for key %q: %w", id, err)
		}

		key, err := stegocrypt.OpenKeyMaterial(sk.sealed, resp.Result)
		clear(resp.Result)
		if err != nil {
			return nil, fmt.Errorf("azurekv: %w", err)
		}
		keys = append(keys, key)
	}

	provider, err := stegocrypt.NewStaticKeyProviderFromKeys(keys...)
	if err != nil {
		return nil, fmt.Errorf("azurekv: %w", err)
	}
	return provider, nil
}
