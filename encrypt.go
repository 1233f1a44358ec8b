package stegocrypt

import (
	"context"
	"fmt"

	"github.com/awnumar/memguard"

	"github.com/rbaliyan/stegocrypt/covertext"
	"github.com/rbaliyan/stegocrypt/symmetric"
	"github.com/rbaliyan/stegocrypt/watermark"
)

// secretSize is the size of the per-call AES-256 key.
const secretSize = 32

// forwardState is the data threaded through the forward layers. The
// envelope only grows; no layer rewrites an earlier field.
type forwardState struct {
	km        *KeyMaterial
	cfg       PipelineConfig
	plaintext []byte
	secret    *memguard.LockedBuffer
	env       *LayerEnvelope
}

type forwardStage struct {
	layer Layer
	run   func(p *Pipeline, s *forwardState) error
}

// forward lists the encrypt transitions:
// Plaintext -> Enciphered -> KeyWrapped -> Watermarked -> Signed -> Stego.
var forward = []forwardStage{
	{LayerCipher, (*Pipeline).encipher},
	{LayerKeyWrap, (*Pipeline).wrapKey},
	{LayerWatermark, (*Pipeline).embedWatermark},
	{LayerSign, (*Pipeline).sign},
	{LayerCover, (*Pipeline).cover},
}

// Encrypt runs plaintext through the five forward layers.
//
// km must hold the recipient's key-encryption public key and the sender's
// signing private key. The symmetric key lives in locked memory for the
// duration of the call and is destroyed on return.
func (p *Pipeline) Encrypt(ctx context.Context, km *KeyMaterial, cfg PipelineConfig, plaintext []byte) (env *LayerEnvelope, err error) {
	if cfg.SenderIdentifier == "" {
		return nil, ErrMissingSenderIdentifier
	}
	if km == nil {
		return nil, fmt.Errorf("%w: nil key material", ErrIncompleteKeyMaterial)
	}
	if cfg.Scheme == 0 {
		cfg.Scheme = km.Scheme
	}
	if err := km.encryptKeys(cfg.Scheme); err != nil {
		return nil, err
	}

	ctx, end := p.begin(ctx, Forward, cfg.Scheme)
	defer end(&err)

	s := &forwardState{
		km:        km,
		cfg:       cfg,
		plaintext: plaintext,
		secret:    memguard.NewBufferRandom(secretSize),
		env: &LayerEnvelope{
			FormatVersion: FrameVersion,
			Scheme:        cfg.Scheme,
		},
	}
	defer s.secret.Destroy()

	for _, stage := range forward {
		if err := p.layer(ctx, Forward, stage.layer, func() error { return stage.run(p, s) }); err != nil {
			return nil, err
		}
	}
	return s.env, nil
}

func (p *Pipeline) encipher(s *forwardState) error {
	ct, iv, err := symmetric.Encrypt(s.plaintext, s.secret.Bytes(), nil)
	if err != nil {
		return err
	}
	s.env.Ciphertext, s.env.IV = ct, iv
	s.record(LayerCipher, symmetric.Algorithm(secretSize), len(ct))
	return nil
}

func (p *Pipeline) wrapKey(s *forwardState) error {
	w := s.cfg.Scheme.wrapper()
	wrapped, err := w.Wrap(s.secret.Bytes(), s.km.Wrapping.Public)
	if err != nil {
		return err
	}
	s.env.WrappedKey = wrapped
	s.record(LayerKeyWrap, w.Algorithm(), len(wrapped))
	return nil
}

func (p *Pipeline) embedWatermark(s *forwardState) error {
	wm, err := watermark.Embed(s.env.Ciphertext, s.cfg.SenderIdentifier)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWatermarkEmbedFailure, err)
	}
	s.env.WatermarkedCiphertext = wm
	s.record(LayerWatermark, watermark.Method, len(wm))
	return nil
}

func (p *Pipeline) sign(s *forwardState) error {
	sig, digest, err := p.signer.Sign(s.env.WatermarkedCiphertext, s.km.Signing.Private)
	if err != nil {
		return err
	}
	s.env.Signature, s.env.CiphertextHash = sig, digest
	s.record(LayerSign, p.signer.Algorithm(s.km.Signing.Public), len(sig))
	return nil
}

func (p *Pipeline) cover(s *forwardState) error {
	f := &frame{
		scheme:      s.cfg.Scheme,
		watermarked: s.env.WatermarkedCiphertext,
		signature:   s.env.Signature,
		hash:        s.env.CiphertextHash,
		iv:          s.env.IV,
		wrappedKey:  s.env.WrappedKey,
	}
	blob, err := f.marshal()
	if err != nil {
		return err
	}
	res, err := covertext.Hide(blob, s.cfg.CoverText)
	if err != nil {
		return err
	}
	s.env.StegoText = res.Text
	s.record(LayerCover, covertext.Method, len(res.Text))
	return nil
}

func (s *forwardState) record(l Layer, alg string, size int) {
	s.env.Layers = append(s.env.Layers, LayerRecord{Layer: l.String(), Algorithm: alg, Size: size})
}
