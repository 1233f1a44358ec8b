// Package awskms provides a KeyProvider backed by AWS KMS.
//
// Key material is stored sealed (see stegocrypt.SealKeyMaterial) next to a
// KMS-encrypted key-encryption key. At construction the KEK is decrypted via
// KMS Decrypt, the bundle is opened, and the KEK is wiped.
//
// Usage:
//
//	cfg, err := awsconfig.LoadDefaultConfig(ctx)
//	kmsClient := kms.NewFromConfig(cfg)
//
//	provider, err := awskms.New(ctx, kmsClient,
//	    awskms.WithSealedKey(sealedBundle, encryptedKEK),
//	)
package awskms

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/kms"

	"github.com/rbaliyan/stegocrypt"
)

// Client is the subset of the AWS KMS API used by this provider.
type Client interface {
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// Option configures a Provider.
type Option func(*options)

type options struct {
	sealedKeys []sealedKeyEntry
}

type sealedKeyEntry struct {
	sealed       []byte
	encryptedKEK []byte
	kmsKeyID     string // KMS key ARN or alias; empty = let KMS determine
}

// WithSealedKey adds sealed key material whose KEK was encrypted with KMS
// Encrypt or GenerateDataKey. The key ID is read from the sealed header.
// The first key added becomes the current key for new encryptions.
func WithSealedKey(sealed, encryptedKEK []byte) Option {
	return WithSealedKeyForKMSKey(sealed, encryptedKEK, "")
}

// WithSealedKeyForKMSKey is like WithSealedKey but names the KMS key ARN or
// alias to decrypt the KEK with.
func WithSealedKeyForKMSKey(sealed, encryptedKEK []byte, kmsKeyID string) Option {
	return func(o *options) {
		o.sealedKeys = append(o.sealedKeys, sealedKeyEntry{
			sealed:       sealed,
			encryptedKEK: encryptedKEK,
			kmsKeyID:     kmsKeyID,
		})
	}
}

// New creates a KeyProvider from KMS-protected sealed key material.
//
// At least one key must be provided. The first key is current; the rest
// stay available for decryption (key rotation). The KMS client is not
// retained after construction.
func New(ctx context.Context, client Client, opts ...Option) (*stegocrypt.StaticKeyProvider, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if len(o.sealedKeys) == 0 {
		return nil, fmt.Errorf("awskms: at least one sealed key is required")
	}

	keys := make([]stegocrypt.Key, 0, len(o.sealedKeys))
	for _, sk := range o.sealedKeys {
		id, err := stegocrypt.SealedKeyID(sk.sealed)
		if err != nil {
			return nil, fmt.Errorf("awskms: %w", err)
		}

		input := &kms.DecryptInput{
			CiphertextBlob: sk.encryptedKEK,
		}
		if sk.kmsKeyID != "" {
			input.KeyId = &sk.kmsKeyID
		}
		out, err := client.Decrypt(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("awskms: failed to decrypt KEK for key %q: %w", id, err)
		}

		key, err := stegocrypt.OpenKeyMaterial(sk.sealed, out.Plaintext)
		clear(out.Plaintext)
		if err != nil {
			return nil, fmt.Errorf("awskms: %w", err)
		}
		keys = append(keys, key)
	}

	provider, err := stegocrypt.NewStaticKeyProviderFromKeys(keys...)
	if err != nil {
		return nil, fmt.Errorf("awskms: %w", err)
	}
	return provider, nil
}
