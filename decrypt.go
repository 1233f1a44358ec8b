package stegocrypt

import (
	"bytes"
	"context"
	"fmt"

	"github.com/awnumar/memguard"

	"github.com/rbaliyan/stegocrypt/covertext"
	"github.com/rbaliyan/stegocrypt/signature"
	"github.com/rbaliyan/stegocrypt/symmetric"
	"github.com/rbaliyan/stegocrypt/watermark"
)

// Decrypt reverses Encrypt: cover extraction, signature verification,
// watermark extraction, key unwrap and symmetric decryption, in that order.
//
// Signature and CiphertextHash set on env take precedence over the copies
// framed in the stego text. IV and WrappedKey set on env must equal their
// framed copies. Empty side-channel fields fall back to the framed copies.
//
// When the signature or hash does not verify, Decrypt returns the partial
// result (identifier and verification flags, never plaintext) together with
// an error wrapping ErrSignatureVerificationFailed. A missing watermark is
// always an error. A sender mismatch is an error only under
// IdentifierPolicyStrict.
func (p *Pipeline) Decrypt(ctx context.Context, env *LayerEnvelope, km *KeyMaterial, cfg DecryptConfig) (res *VerificationResult, err error) {
	if env == nil {
		return nil, fmt.Errorf("%w: nil envelope", ErrEnvelopeMalformed)
	}
	if km == nil {
		return nil, fmt.Errorf("%w: nil key material", ErrIncompleteKeyMaterial)
	}
	if cfg.Scheme == 0 {
		cfg.Scheme = km.Scheme
	}
	if err := km.decryptKeys(cfg.Scheme); err != nil {
		return nil, err
	}

	ctx, end := p.begin(ctx, Reverse, cfg.Scheme)
	defer end(&err)

	res = &VerificationResult{}
	var f *frame

	// Stego -> framed blob
	err = p.layer(ctx, Reverse, LayerCover, func() error {
		blob, err := covertext.Extract(env.StegoText)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrStegoExtractionFailed, err)
		}
		if f, err = parseFrame(blob); err != nil {
			return err
		}
		if f.scheme != cfg.Scheme {
			return fmt.Errorf("%w: frame holds %s, requested %s", ErrSchemeMismatch, f.scheme, cfg.Scheme)
		}
		return mergeSideChannel(f, env)
	})
	if err != nil {
		return nil, err
	}

	// Signature and hash over the watermarked ciphertext
	err = p.layer(ctx, Reverse, LayerSign, func() error {
		res.HashValid = bytes.Equal(signature.Digest(f.watermarked), f.hash)
		ok, err := p.signer.Verify(f.watermarked, f.signature, km.Signing.Public)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSignatureVerificationFailed, err)
		}
		res.SignatureValid = ok
		if !ok || !res.HashValid {
			return fmt.Errorf("%w: signature valid %t, hash valid %t",
				ErrSignatureVerificationFailed, res.SignatureValid, res.HashValid)
		}
		return nil
	})
	if err != nil && !IsSignatureVerificationFailed(err) {
		return nil, err
	}

	// Sender identifier; extracted even when integrity failed so the caller
	// gets diagnostics.
	res.ExtractedIdentifier = watermark.Extract(f.watermarked)
	if err != nil {
		return res, err
	}

	var ciphertext []byte
	err = p.layer(ctx, Reverse, LayerWatermark, func() error {
		if res.ExtractedIdentifier == "" {
			return ErrWatermarkMissing
		}
		if cfg.ExpectedIdentifier != "" {
			res.IdentifierMatch = res.ExtractedIdentifier == cfg.ExpectedIdentifier
			if !res.IdentifierMatch {
				if p.policy == IdentifierPolicyStrict {
					return fmt.Errorf("%w: got %q, expected %q",
						ErrIdentifierMismatch, res.ExtractedIdentifier, cfg.ExpectedIdentifier)
				}
				res.Warnings = append(res.Warnings, fmt.Sprintf("sender identifier %q does not match expected %q",
					res.ExtractedIdentifier, cfg.ExpectedIdentifier))
				p.logger.WithField("layer", LayerWatermark.String()).Warn("sender identifier mismatch")
			}
		}
		// the cipher layer must see the pre-watermark ciphertext
		stripped, found := watermark.Strip(f.watermarked)
		if !found {
			return ErrWatermarkMissing
		}
		ciphertext = stripped
		return nil
	})
	if err != nil {
		return res, err
	}

	var secret *memguard.LockedBuffer
	err = p.layer(ctx, Reverse, LayerKeyWrap, func() error {
		key, err := cfg.Scheme.wrapper().Unwrap(f.wrappedKey, km.Wrapping.Private)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrKeyUnwrapFailed, err)
		}
		// NewBufferFromBytes wipes key
		secret = memguard.NewBufferFromBytes(key)
		return nil
	})
	if err != nil {
		return res, err
	}
	defer secret.Destroy()

	err = p.layer(ctx, Reverse, LayerCipher, func() error {
		pt, err := symmetric.Decrypt(ciphertext, secret.Bytes(), f.iv)
		if err != nil {
			return err
		}
		res.Plaintext = pt
		return nil
	})
	if err != nil {
		return res, err
	}
	return res, nil
}

// mergeSideChannel applies the side-channel fields of env to f. A signature
// or hash from env replaces the framed copy and is verified in its place. An
// IV or wrapped key that disagrees with its framed copy is malformed.
func mergeSideChannel(f *frame, env *LayerEnvelope) error {
	if len(env.Signature) > 0 {
		f.signature = append([]byte(nil), env.Signature...)
	}
	if len(env.CiphertextHash) > 0 {
		f.hash = append([]byte(nil), env.CiphertextHash...)
	}
	if len(env.IV) > 0 && !bytes.Equal(env.IV, f.iv) {
		return fmt.Errorf("%w: aes_iv differs from the framed copy", ErrEnvelopeMalformed)
	}
	if len(env.WrappedKey) > 0 && !bytes.Equal(env.WrappedKey, f.wrappedKey) {
		return fmt.Errorf("%w: encrypted_aes_key differs from the framed copy", ErrEnvelopeMalformed)
	}
	return nil
}
