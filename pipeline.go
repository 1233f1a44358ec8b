// Package stegocrypt chains five layers into a reversible pipeline: AES
// encryption, asymmetric key wrapping, a zero-width sender watermark, a
// signature over the watermarked ciphertext, and linguistic steganography.
//
// Encrypt produces a LayerEnvelope; Decrypt reverses it. Decryption is not
// self-describing: the caller keeps the key material and the side-channel
// fields of the envelope alongside the stego text.
//
// Basic usage:
//
//	km, _ := stegocrypt.GenerateKeyMaterial(stegocrypt.SchemeRSA)
//	p, _ := stegocrypt.New()
//	env, err := p.Encrypt(ctx, km, stegocrypt.PipelineConfig{SenderIdentifier: "Alice"}, plaintext)
//	res, err := p.Decrypt(ctx, env, km, stegocrypt.DecryptConfig{ExpectedIdentifier: "Alice"})
package stegocrypt

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/rbaliyan/stegocrypt/signature"
)

const instrumentationName = "github.com/rbaliyan/stegocrypt"

// IdentifierPolicy decides how Decrypt treats a sender identifier that
// differs from the expected one.
type IdentifierPolicy string

const (
	// IdentifierPolicyWarn records a mismatch as a warning in the result.
	IdentifierPolicyWarn IdentifierPolicy = "warn"
	// IdentifierPolicyStrict fails the decryption with ErrIdentifierMismatch.
	IdentifierPolicyStrict IdentifierPolicy = "strict"
)

// ParseIdentifierPolicy accepts "warn" or "strict"; empty means warn.
func ParseIdentifierPolicy(s string) (IdentifierPolicy, error) {
	switch p := IdentifierPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", IdentifierPolicyWarn:
		return IdentifierPolicyWarn, nil
	case IdentifierPolicyStrict:
		return p, nil
	}
	return "", fmt.Errorf("stegocrypt: unknown identifier policy %q", s)
}

// Pipeline runs the layered encrypt and decrypt operations. It holds no key
// material or per-call data and is safe for concurrent use.
type Pipeline struct {
	logger   logrus.FieldLogger
	tracer   trace.Tracer
	ops      metric.Int64Counter
	duration metric.Float64Histogram
	policy   IdentifierPolicy
	signer   signature.Signer
}

// Option configures a Pipeline.
type Option func(*options)

type options struct {
	logger         logrus.FieldLogger
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	policy         IdentifierPolicy
	padding        signature.Padding
	err            error // deferred validation error
}

// WithLogger sets the logger. Layer transitions are logged at debug level,
// failures at warn. Key material and payloads are never logged.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.logger = l }
}

// WithTracerProvider sets the tracer provider. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithMeterProvider sets the meter provider. Defaults to the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// WithIdentifierPolicy sets the sender identifier mismatch policy.
func WithIdentifierPolicy(p IdentifierPolicy) Option {
	return func(o *options) {
		if p != IdentifierPolicyWarn && p != IdentifierPolicyStrict {
			o.err = fmt.Errorf("stegocrypt: unknown identifier policy %q", p)
			return
		}
		o.policy = p
	}
}

// WithRSAPadding selects the RSA signature padding. Both sides of an
// exchange must use the same padding.
func WithRSAPadding(p signature.Padding) Option {
	return func(o *options) { o.padding = p }
}

// New creates a Pipeline.
func New(opts ...Option) (*Pipeline, error) {
	o := options{policy: IdentifierPolicyWarn}
	for _, opt := range opts {
		opt(&o)
	}
	if o.err != nil {
		return nil, o.err
	}

	if o.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.logger = l
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}
	if o.meterProvider == nil {
		o.meterProvider = otel.GetMeterProvider()
	}

	meter := o.meterProvider.Meter(instrumentationName)
	ops, err := meter.Int64Counter("stegocrypt.layer.operations",
		metric.WithDescription("Pipeline layer executions by direction, layer and outcome."))
	if err != nil {
		return nil, fmt.Errorf("stegocrypt: create counter: %w", err)
	}
	duration, err := meter.Float64Histogram("stegocrypt.pipeline.duration",
		metric.WithDescription("Duration of one encrypt or decrypt call."),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("stegocrypt: create histogram: %w", err)
	}

	return &Pipeline{
		logger:   o.logger,
		tracer:   o.tracerProvider.Tracer(instrumentationName),
		ops:      ops,
		duration: duration,
		policy:   o.policy,
		signer:   signature.New(signature.WithPadding(o.padding)),
	}, nil
}

// Policy returns the identifier mismatch policy.
func (p *Pipeline) Policy() IdentifierPolicy { return p.policy }

// begin opens the span of one pipeline call and returns a function that
// closes it and records the call duration.
func (p *Pipeline) begin(ctx context.Context, d Direction, scheme Scheme) (context.Context, func(*error)) {
	name := "stegocrypt.Encrypt"
	if d == Reverse {
		name = "stegocrypt.Decrypt"
	}
	ctx, span := p.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("stegocrypt.scheme", scheme.String()),
	))
	start := time.Now()

	return ctx, func(errp *error) {
		outcome := "ok"
		if *errp != nil {
			outcome = "error"
			span.RecordError(*errp)
			span.SetStatus(codes.Error, Hint(*errp))
		}
		p.duration.Record(ctx, float64(time.Since(start).Microseconds())/1000, metric.WithAttributes(
			attribute.String("direction", string(d)),
			attribute.String("outcome", outcome),
		))
		span.End()
	}
}

// layer runs one pipeline stage inside its own span. The context is checked
// first so a caller deadline stops the pipeline between layers. Any error is
// returned tagged with the layer.
func (p *Pipeline) layer(ctx context.Context, d Direction, l Layer, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return layerErr(d, l, err)
	}

	ctx, span := p.tracer.Start(ctx, "stegocrypt."+l.String())
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	outcome := "ok"
	log := p.logger.WithFields(logrus.Fields{
		"direction": d,
		"layer":     l.String(),
		"duration":  elapsed,
	})
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, Hint(err))
		log.WithField("hint", Hint(err)).Warn("layer failed")
	} else {
		log.Debug("layer done")
	}
	span.End()

	p.ops.Add(ctx, 1, metric.WithAttributes(
		attribute.String("direction", string(d)),
		attribute.String("layer", l.String()),
		attribute.String("outcome", outcome),
	))

	if err != nil {
		return layerErr(d, l, err)
	}
	return nil
}
