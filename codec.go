package stegocrypt

import (
	"context"
	"fmt"

	"github.com/rbaliyan/config/codec"
	jsoncodec "github.com/rbaliyan/config/codec/json"
)

// Codec wraps an inner codec with the layered pipeline.
// On Encode, the inner codec serializes the value, the result runs through
// the forward pipeline with the provider's current key material, and the
// side-channel envelope is stored as JSON. On Decode, the key material is
// looked up by the envelope's key ID and the reverse pipeline checks the
// sender watermark against the codec's sender.
//
// Codec is safe for concurrent use if the underlying KeyProvider and inner
// codec are safe for concurrent use. StaticKeyProvider satisfies this
// requirement.
type Codec struct {
	inner    codec.Codec
	envelope codec.Codec
	provider KeyProvider
	pipeline *Pipeline
	sender   string
	name     string
}

// Compile-time interface check.
var _ codec.Codec = (*Codec)(nil)

// NewCodec creates a layered codec that wraps the given inner codec.
// The codec name is "layered:<inner>", e.g. "layered:json". sender is
// embedded as the watermark of every encoded value and expected on decode.
func NewCodec(inner codec.Codec, provider KeyProvider, sender string, opts ...Option) (*Codec, error) {
	if inner == nil {
		return nil, fmt.Errorf("stegocrypt: NewCodec inner codec is nil")
	}
	if provider == nil {
		return nil, fmt.Errorf("stegocrypt: NewCodec provider is nil")
	}
	if sender == "" {
		return nil, fmt.Errorf("stegocrypt: NewCodec: %w", ErrMissingSenderIdentifier)
	}
	p, err := New(opts...)
	if err != nil {
		return nil, err
	}
	return &Codec{
		inner:    inner,
		envelope: jsoncodec.New(),
		provider: provider,
		pipeline: p,
		sender:   sender,
		name:     "layered:" + inner.Name(),
	}, nil
}

// Name returns the codec name, e.g. "layered:json".
func (c *Codec) Name() string {
	return c.name
}

// Encode serializes the value using the inner codec, then runs the forward
// pipeline. ctx is checked between layers.
func (c *Codec) Encode(ctx context.Context, v any) ([]byte, error) {
	plaintext, err := c.inner.Encode(ctx, v)
	if err != nil {
		return nil, fmt.Errorf("stegocrypt: inner encode failed: %w", err)
	}
	defer clear(plaintext)

	key, err := c.provider.CurrentKey()
	if err != nil {
		return nil, fmt.Errorf("stegocrypt: failed to get current key: %w", err)
	}

	env, err := c.pipeline.Encrypt(ctx, key.Material,
		PipelineConfig{SenderIdentifier: c.sender}, plaintext)
	if err != nil {
		return nil, err
	}
	out := env.SideChannel()
	out.KeyID = key.ID
	return c.envelope.Encode(ctx, out)
}

// Decode runs the reverse pipeline, then deserializes the plaintext using the inner codec.
func (c *Codec) Decode(ctx context.Context, data []byte, v any) error {
	var env LayerEnvelope
	if err := c.envelope.Decode(ctx, data, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if env.KeyID == "" {
		return fmt.Errorf("%w: envelope has no key ID", ErrInvalidFormat)
	}

	key, err := c.provider.KeyByID(env.KeyID)
	if err != nil {
		return err
	}

	res, err := c.pipeline.Decrypt(ctx, &env, key.Material,
		DecryptConfig{Scheme: env.Scheme, ExpectedIdentifier: c.sender})
	if err != nil {
		return fmt.Errorf("stegocrypt: decrypt failed: %w", err)
	}
	defer clear(res.Plaintext)

	if err := c.inner.Decode(ctx, res.Plaintext, v); err != nil {
		return fmt.Errorf("stegocrypt: inner decode failed: %w", err)
	}
	return nil
}
