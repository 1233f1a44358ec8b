package stegocrypt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/rbaliyan/stegocrypt/covertext"
	"github.com/rbaliyan/stegocrypt/signature"
	"github.com/rbaliyan/stegocrypt/symmetric"
	"github.com/rbaliyan/stegocrypt/watermark"
)

const secretMessage = "Hello, this is a secret message!"

func testPipeline(t testing.TB, opts ...Option) *Pipeline {
	t.Helper()
	p, err := New(opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func encryptOrFail(t testing.TB, p *Pipeline, km *KeyMaterial, sender string, plaintext []byte) *LayerEnvelope {
	t.Helper()
	env, err := p.Encrypt(context.Background(), km, PipelineConfig{SenderIdentifier: sender}, plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	return env
}

func assertLayer(t *testing.T, err error, want Layer) {
	t.Helper()
	got, ok := LayerOf(err)
	if !ok {
		t.Errorf("error %v is not tagged with a layer", err)
		return
	}
	if got != want {
		t.Errorf("layer: got %s, want %s", got, want)
	}
}

func TestPipelineScenarioRSA(t *testing.T) {
	km := testKeys(t, "rsa")
	p := testPipeline(t)

	env, err := p.Encrypt(context.Background(), km,
		PipelineConfig{Scheme: SchemeRSA, SenderIdentifier: "Alice"}, []byte(secretMessage))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if env.StegoText == "" || env.StegoText == secretMessage {
		t.Fatal("stego text must be non-empty and differ from the plaintext")
	}
	if strings.Contains(env.StegoText, secretMessage) {
		t.Error("stego text contains the plaintext")
	}

	res, err := p.Decrypt(context.Background(), env.SideChannel(), km,
		DecryptConfig{Scheme: SchemeRSA, ExpectedIdentifier: "Alice"})
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(res.Plaintext) != secretMessage {
		t.Errorf("plaintext: got %q, want %q", res.Plaintext, secretMessage)
	}
	if !res.SignatureValid || !res.HashValid || !res.IdentifierMatch {
		t.Errorf("verification flags: %+v", res)
	}
	if res.ExtractedIdentifier != "Alice" {
		t.Errorf("identifier: got %q, want %q", res.ExtractedIdentifier, "Alice")
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", res.Warnings)
	}
}

func TestPipelineScenarioECC(t *testing.T) {
	for _, name := range []string{"ecc", "ecc-384"} {
		t.Run(name, func(t *testing.T) {
			km := testKeys(t, name)
			p := testPipeline(t)

			env, err := p.Encrypt(context.Background(), km,
				PipelineConfig{Scheme: SchemeFromECC(true), SenderIdentifier: "Alice"}, []byte(secretMessage))
			if err != nil {
				t.Fatalf("Encrypt: %v", err)
			}
			if env.Layers[1].Algorithm != "ECDH-ES+A256KW" || env.Layers[3].Algorithm != "ECDSA-SHA256" {
				t.Errorf("ECC scheme must use key agreement and ECDSA, got %+v", env.Layers)
			}

			res, err := p.Decrypt(context.Background(), env, km, DecryptConfig{Scheme: SchemeECC})
			if err != nil {
				t.Fatalf("Decrypt: %v", err)
			}
			if string(res.Plaintext) != secretMessage || !res.SignatureValid {
				t.Errorf("round trip failed: %+v", res)
			}
		})
	}
}

func TestPipelineLayerRecords(t *testing.T) {
	env := encryptOrFail(t, testPipeline(t), testKeys(t, "rsa"), "Alice", []byte("x"))

	if len(env.Layers) != len(Layers) {
		t.Fatalf("got %d layer records, want %d", len(env.Layers), len(Layers))
	}
	for i, l := range Layers {
		if env.Layers[i].Layer != l.String() {
			t.Errorf("record %d: got %q, want %q", i, env.Layers[i].Layer, l)
		}
		if env.Layers[i].Size <= 0 {
			t.Errorf("record %d: size %d", i, env.Layers[i].Size)
		}
	}
	if env.FormatVersion != FrameVersion || env.Scheme != SchemeRSA {
		t.Errorf("envelope header: version %d scheme %s", env.FormatVersion, env.Scheme)
	}
	if len(env.WrappedKey) == 0 || len(env.Signature) == 0 || len(env.CiphertextHash) == 0 || len(env.IV) != symmetric.BlockSize {
		t.Error("side-channel fields must be populated")
	}
}

func TestPipelineBoundaryLengths(t *testing.T) {
	km := testKeys(t, "ecc")
	p := testPipeline(t)

	for _, n := range []int{0, 1, 15, 16, 17, 31, 32, 33, 255, 256, 1023, 1024, 4097} {
		plaintext := bytes.Repeat([]byte{byte(n)}, n)
		env := encryptOrFail(t, p, km, "Alice", plaintext)
		if len(env.Ciphertext)%symmetric.BlockSize != 0 || len(env.Ciphertext) <= n {
			t.Errorf("len %d: ciphertext length %d", n, len(env.Ciphertext))
		}
		res, err := p.Decrypt(context.Background(), env.SideChannel(), km, DecryptConfig{})
		if err != nil {
			t.Fatalf("len %d: Decrypt: %v", n, err)
		}
		if !bytes.Equal(res.Plaintext, plaintext) {
			t.Errorf("len %d: got %d bytes back", n, len(res.Plaintext))
		}
	}
}

func TestPipelineDecryptFromStegoTextOnly(t *testing.T) {
	km := testKeys(t, "rsa")
	p := testPipeline(t)
	env := encryptOrFail(t, p, km, "Alice", []byte(secretMessage))

	res, err := p.Decrypt(context.Background(), &LayerEnvelope{StegoText: env.StegoText}, km, DecryptConfig{})
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(res.Plaintext) != secretMessage {
		t.Errorf("got %q", res.Plaintext)
	}
}

func TestPipelineStripsWatermarkBeforeDecrypting(t *testing.T) {
	env := encryptOrFail(t, testPipeline(t), testKeys(t, "rsa"), "Alice", []byte(secretMessage))

	if !bytes.HasPrefix(env.WatermarkedCiphertext, env.Ciphertext) ||
		len(env.WatermarkedCiphertext) != len(env.Ciphertext)+watermark.SuffixSize(len("Alice")) {
		t.Fatal("watermarked ciphertext should be the ciphertext plus the mark")
	}
	stripped, ok := watermark.Strip(env.WatermarkedCiphertext)
	if !ok || !bytes.Equal(stripped, env.Ciphertext) {
		t.Error("stripping the mark must restore the ciphertext")
	}

	// the cipher layer cannot take watermarked bytes directly
	key := makeKey(32)
	ct, iv, err := symmetric.Encrypt([]byte(secretMessage), key, nil)
	if err != nil {
		t.Fatal(err)
	}
	wm, err := watermark.Embed(ct, "Alice")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := symmetric.Decrypt(wm, key, iv); !IsPaddingOrIntegrity(err) {
		t.Errorf("decrypting watermarked bytes: expected ErrPaddingOrIntegrity, got %v", err)
	}
}

func TestPipelineSwappedSignature(t *testing.T) {
	km := testKeys(t, "rsa")
	p := testPipeline(t)
	env := encryptOrFail(t, p, km, "Alice", []byte(secretMessage))
	other := encryptOrFail(t, p, km, "Alice", []byte("a different message"))

	tampered := env.SideChannel()
	tampered.Signature = other.Signature

	res, err := p.Decrypt(context.Background(), tampered, km, DecryptConfig{ExpectedIdentifier: "Alice"})
	if !IsSignatureVerificationFailed(err) {
		t.Fatalf("expected ErrSignatureVerificationFailed, got %v", err)
	}
	assertLayer(t, err, LayerSign)
	if res == nil {
		t.Fatal("expected a partial result with diagnostics")
	}
	if res.Plaintext != nil {
		t.Error("plaintext must not be returned when the signature fails")
	}
	if res.SignatureValid {
		t.Error("SignatureValid must be false")
	}
	if !res.HashValid || res.ExtractedIdentifier != "Alice" {
		t.Errorf("diagnostics: %+v", res)
	}
}

func TestPipelineSwappedHash(t *testing.T) {
	km := testKeys(t, "ecc")
	p := testPipeline(t)
	env := encryptOrFail(t, p, km, "Alice", []byte(secretMessage))

	tampered := env.SideChannel()
	tampered.CiphertextHash = signature.Digest([]byte("other"))
	res, err := p.Decrypt(context.Background(), tampered, km, DecryptConfig{})
	if !IsSignatureVerificationFailed(err) {
		t.Fatalf("expected ErrSignatureVerificationFailed, got %v", err)
	}
	if res == nil || res.HashValid || !res.SignatureValid || res.Plaintext != nil {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestPipelineIntegrityFailureIsLogged(t *testing.T) {
	km := testKeys(t, "ecc")
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	p := testPipeline(t, WithLogger(logger))
	env := encryptOrFail(t, p, km, "Alice", []byte(secretMessage))
	other := encryptOrFail(t, p, km, "Alice", []byte("a different message"))
	hook.Reset()

	tampered := env.SideChannel()
	tampered.Signature = other.Signature
	if _, err := p.Decrypt(context.Background(), tampered, km, DecryptConfig{}); !IsSignatureVerificationFailed(err) {
		t.Fatalf("expected ErrSignatureVerificationFailed, got %v", err)
	}

	var failed bool
	for _, e := range hook.AllEntries() {
		if e.Data["layer"] != LayerSign.String() {
			continue
		}
		if e.Level == logrus.WarnLevel && e.Message == "layer failed" {
			failed = true
		}
		if e.Message == "layer done" {
			t.Error("sign layer logged as done after a signature mismatch")
		}
	}
	if !failed {
		t.Error("expected a warning for the sign layer")
	}
	for _, e := range hook.AllEntries() {
		if e.Data["layer"] == LayerWatermark.String() || e.Data["layer"] == LayerCipher.String() {
			t.Errorf("layer %v ran after the integrity failure", e.Data["layer"])
		}
	}
}

func TestPipelineMalformedSideChannelSignature(t *testing.T) {
	km := testKeys(t, "rsa")
	p := testPipeline(t)
	env := encryptOrFail(t, p, km, "Alice", []byte(secretMessage))

	tampered := env.SideChannel()
	tampered.Signature = []byte("short")
	_, err := p.Decrypt(context.Background(), tampered, km, DecryptConfig{})
	if !IsSignatureVerificationFailed(err) || !IsMalformedSignature(err) {
		t.Errorf("expected a malformed signature failure, got %v", err)
	}
}

func TestPipelineSideChannelMismatch(t *testing.T) {
	km := testKeys(t, "rsa")
	p := testPipeline(t)
	env := encryptOrFail(t, p, km, "Alice", []byte(secretMessage))
	other := encryptOrFail(t, p, km, "Alice", []byte(secretMessage))

	for name, mutate := range map[string]func(*LayerEnvelope){
		"iv":          func(e *LayerEnvelope) { e.IV = other.IV },
		"wrapped key": func(e *LayerEnvelope) { e.WrappedKey = other.WrappedKey },
	} {
		tampered := env.SideChannel()
		mutate(tampered)
		res, err := p.Decrypt(context.Background(), tampered, km, DecryptConfig{})
		if !IsEnvelopeMalformed(err) {
			t.Errorf("%s: expected ErrEnvelopeMalformed, got %v", name, err)
		}
		assertLayer(t, err, LayerCover)
		if res != nil {
			t.Errorf("%s: no result expected", name)
		}
	}
}

func TestPipelineWrongKeys(t *testing.T) {
	p := testPipeline(t)

	for _, tc := range []struct{ enc, dec string }{{"rsa", "rsa-other"}, {"ecc", "ecc-other"}, {"ecc", "ecc-384"}} {
		env := encryptOrFail(t, p, testKeys(t, tc.enc), "Alice", []byte(secretMessage))
		res, err := p.Decrypt(context.Background(), env.SideChannel(), testKeys(t, tc.dec), DecryptConfig{})
		if !IsSignatureVerificationFailed(err) && !IsKeyUnwrapFailed(err) {
			t.Errorf("%s -> %s: expected signature or unwrap failure, got %v", tc.enc, tc.dec, err)
		}
		if res != nil && res.Plaintext != nil {
			t.Errorf("%s -> %s: plaintext returned with wrong keys", tc.enc, tc.dec)
		}
	}
}

func TestPipelineWrongWrappingKey(t *testing.T) {
	p := testPipeline(t)
	env := encryptOrFail(t, p, testKeys(t, "rsa"), "Alice", []byte(secretMessage))

	// right signature key, wrong key-encryption key
	km := &KeyMaterial{
		Scheme:   SchemeRSA,
		RSABits:  2048,
		Wrapping: testKeys(t, "rsa-other").Wrapping,
		Signing:  testKeys(t, "rsa").Signing,
	}
	res, err := p.Decrypt(context.Background(), env.SideChannel(), km, DecryptConfig{})
	if !IsKeyUnwrapFailed(err) || !IsUnwrapFailure(err) {
		t.Fatalf("expected ErrKeyUnwrapFailed, got %v", err)
	}
	assertLayer(t, err, LayerKeyWrap)
	if res == nil || res.Plaintext != nil || !res.SignatureValid {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestPipelineTamperedStegoText(t *testing.T) {
	km := testKeys(t, "rsa")
	p := testPipeline(t)
	env := encryptOrFail(t, p, km, "Alice", []byte(secretMessage))
	text := []byte(env.StegoText)

	step := max(1, len(text)/60)
	for i := 0; i < len(text); i += step {
		tampered := env.SideChannel()
		b := append([]byte(nil), text...)
		b[i] ^= 0x01
		tampered.StegoText = string(b)

		res, err := p.Decrypt(context.Background(), tampered, km, DecryptConfig{})
		if err == nil {
			// benign edits outside the vocabulary leave the payload intact
			if string(res.Plaintext) != secretMessage {
				t.Fatalf("byte %d: silently wrong plaintext", i)
			}
			continue
		}
		if !IsStegoExtractionFailed(err) && !IsEnvelopeMalformed(err) && !IsSignatureVerificationFailed(err) {
			t.Errorf("byte %d: unexpected error %v", i, err)
		}
		if res != nil && res.Plaintext != nil {
			t.Errorf("byte %d: plaintext returned with an error", i)
		}
	}
}

func TestPipelineCorruptedCarrier(t *testing.T) {
	p := testPipeline(t)
	_, err := p.Decrypt(context.Background(), &LayerEnvelope{StegoText: "nothing to see here"},
		testKeys(t, "rsa"), DecryptConfig{})
	if !IsStegoExtractionFailed(err) || !IsCorruptedCarrier(err) {
		t.Fatalf("expected ErrStegoExtractionFailed, got %v", err)
	}
	assertLayer(t, err, LayerCover)
	if !strings.Contains(Hint(err), "altered") {
		t.Errorf("hint: %q", Hint(err))
	}
}

// craftEnvelope runs the forward layers by hand on an arbitrary signed payload.
func craftEnvelope(t *testing.T, km *KeyMaterial, signed []byte, iv, wrapped []byte) *LayerEnvelope {
	t.Helper()
	sig, digest, err := signature.New().Sign(signed, km.Signing.Private)
	if err != nil {
		t.Fatal(err)
	}
	blob, err := (&frame{
		scheme:      km.Scheme,
		watermarked: signed,
		signature:   sig,
		hash:        digest,
		iv:          iv,
		wrappedKey:  wrapped,
	}).marshal()
	if err != nil {
		t.Fatal(err)
	}
	text, err := covertext.Embed(blob, "")
	if err != nil {
		t.Fatal(err)
	}
	return &LayerEnvelope{StegoText: text}
}

func TestPipelineMissingWatermark(t *testing.T) {
	km := testKeys(t, "ecc")
	key := makeKey(32)
	ct, iv, err := symmetric.Encrypt([]byte(secretMessage), key, nil)
	if err != nil {
		t.Fatal(err)
	}
	wrapped, err := SchemeECC.wrapper().Wrap(key, km.Wrapping.Public)
	if err != nil {
		t.Fatal(err)
	}

	env := craftEnvelope(t, km, ct, iv, wrapped)
	res, err := testPipeline(t).Decrypt(context.Background(), env, km, DecryptConfig{})
	if !IsWatermarkMissing(err) {
		t.Fatalf("expected ErrWatermarkMissing, got %v", err)
	}
	assertLayer(t, err, LayerWatermark)
	if res == nil || res.Plaintext != nil || res.ExtractedIdentifier != "" || !res.SignatureValid {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestPipelineIdentifierPolicy(t *testing.T) {
	km := testKeys(t, "rsa")
	logger, hook := logtest.NewNullLogger()
	warn := testPipeline(t, WithLogger(logger))
	env := encryptOrFail(t, warn, km, "Alice", []byte(secretMessage))

	res, err := warn.Decrypt(context.Background(), env, km, DecryptConfig{ExpectedIdentifier: "Bob"})
	if err != nil {
		t.Fatalf("warn policy: %v", err)
	}
	if res.IdentifierMatch || len(res.Warnings) != 1 || string(res.Plaintext) != secretMessage {
		t.Errorf("warn policy result: %+v", res)
	}
	if e := hook.LastEntry(); e == nil || e.Level != logrus.WarnLevel {
		t.Error("expected a warning log entry for the mismatch")
	}

	strict := testPipeline(t, WithIdentifierPolicy(IdentifierPolicyStrict))
	res, err = strict.Decrypt(context.Background(), env, km, DecryptConfig{ExpectedIdentifier: "Bob"})
	if !IsIdentifierMismatch(err) {
		t.Fatalf("strict policy: expected ErrIdentifierMismatch, got %v", err)
	}
	assertLayer(t, err, LayerWatermark)
	if res == nil || res.Plaintext != nil || res.ExtractedIdentifier != "Alice" {
		t.Errorf("strict policy result: %+v", res)
	}

	res, err = strict.Decrypt(context.Background(), env, km, DecryptConfig{ExpectedIdentifier: "Alice"})
	if err != nil || !res.IdentifierMatch {
		t.Errorf("strict policy with matching sender: %v", err)
	}
}

func TestPipelineSenderValidation(t *testing.T) {
	km := testKeys(t, "rsa")
	p := testPipeline(t)

	_, err := p.Encrypt(context.Background(), km, PipelineConfig{}, []byte("x"))
	if !IsMissingSenderIdentifier(err) {
		t.Errorf("empty sender: expected ErrMissingSenderIdentifier, got %v", err)
	}

	_, err = p.Encrypt(context.Background(), km, PipelineConfig{SenderIdentifier: "Zoë"}, []byte("x"))
	if !IsWatermarkEmbedFailure(err) || !IsUnsupportedIdentifierCharacters(err) {
		t.Errorf("non-ASCII sender: expected ErrWatermarkEmbedFailure, got %v", err)
	}
	assertLayer(t, err, LayerWatermark)
}

func TestPipelineSchemeMismatch(t *testing.T) {
	p := testPipeline(t)

	_, err := p.Encrypt(context.Background(), testKeys(t, "rsa"),
		PipelineConfig{Scheme: SchemeECC, SenderIdentifier: "Alice"}, []byte("x"))
	if !IsSchemeMismatch(err) {
		t.Errorf("Encrypt: expected ErrSchemeMismatch, got %v", err)
	}

	env := encryptOrFail(t, p, testKeys(t, "ecc"), "Alice", []byte("x"))
	_, err = p.Decrypt(context.Background(), &LayerEnvelope{StegoText: env.StegoText},
		testKeys(t, "rsa"), DecryptConfig{})
	if !IsSchemeMismatch(err) {
		t.Errorf("Decrypt: expected ErrSchemeMismatch, got %v", err)
	}
}

func TestPipelineIncompleteKeys(t *testing.T) {
	km := testKeys(t, "ecc")
	p := testPipeline(t)

	_, err := p.Encrypt(context.Background(), km.Public(), PipelineConfig{SenderIdentifier: "Alice"}, []byte("x"))
	if !IsIncompleteKeyMaterial(err) {
		t.Errorf("Encrypt with public keys: expected ErrIncompleteKeyMaterial, got %v", err)
	}

	env := encryptOrFail(t, p, km, "Alice", []byte("x"))
	_, err = p.Decrypt(context.Background(), env, km.Public(), DecryptConfig{})
	if !IsIncompleteKeyMaterial(err) {
		t.Errorf("Decrypt with public keys: expected ErrIncompleteKeyMaterial, got %v", err)
	}

	if _, err := p.Encrypt(context.Background(), nil, PipelineConfig{SenderIdentifier: "Alice"}, nil); !IsIncompleteKeyMaterial(err) {
		t.Errorf("nil keys: got %v", err)
	}
	if _, err := p.Decrypt(context.Background(), nil, km, DecryptConfig{}); !IsEnvelopeMalformed(err) {
		t.Errorf("nil envelope: got %v", err)
	}
}

func TestPipelineContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := testPipeline(t)
	km := testKeys(t, "ecc")
	_, err := p.Encrypt(ctx, km, PipelineConfig{SenderIdentifier: "Alice"}, []byte("x"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Encrypt: expected context.Canceled, got %v", err)
	}
	assertLayer(t, err, LayerCipher)

	env := encryptOrFail(t, p, km, "Alice", []byte("x"))
	_, err = p.Decrypt(ctx, env, km, DecryptConfig{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Decrypt: expected context.Canceled, got %v", err)
	}
	assertLayer(t, err, LayerCover)
}

func TestPipelineConcurrent(t *testing.T) {
	p := testPipeline(t)
	keys := []*KeyMaterial{testKeys(t, "rsa"), testKeys(t, "ecc")}
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km := keys[i%2]
			msg := []byte(fmt.Sprintf("message %d", i))
			sender := fmt.Sprintf("sender-%d", i)

			env, err := p.Encrypt(context.Background(), km, PipelineConfig{SenderIdentifier: sender}, msg)
			if err != nil {
				t.Errorf("Encrypt %d: %v", i, err)
				return
			}
			res, err := p.Decrypt(context.Background(), env, km, DecryptConfig{ExpectedIdentifier: sender})
			if err != nil {
				t.Errorf("Decrypt %d: %v", i, err)
				return
			}
			if !bytes.Equal(res.Plaintext, msg) || !res.IdentifierMatch {
				t.Errorf("goroutine %d: got %q", i, res.Plaintext)
			}
		}()
	}
	wg.Wait()
}

func TestPipelineLogsNoSecrets(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	p := testPipeline(t, WithLogger(logger))
	km := testKeys(t, "rsa")

	env := encryptOrFail(t, p, km, "Alice", []byte(secretMessage))
	if _, err := p.Decrypt(context.Background(), env, km, DecryptConfig{}); err != nil {
		t.Fatal(err)
	}
	if got := len(hook.AllEntries()); got != 2*len(Layers) {
		t.Errorf("expected one debug entry per layer and direction, got %d", got)
	}
	for _, e := range hook.AllEntries() {
		line, _ := e.String()
		if strings.Contains(line, secretMessage) || strings.Contains(line, "PRIVATE KEY") {
			t.Errorf("log entry leaks data: %s", line)
		}
	}
}

func TestPipelineOptions(t *testing.T) {
	p := testPipeline(t,
		WithTracerProvider(tracenoop.NewTracerProvider()),
		WithMeterProvider(metricnoop.NewMeterProvider()),
		WithRSAPadding(signature.PKCS1v15),
	)
	km := testKeys(t, "rsa")
	env := encryptOrFail(t, p, km, "Alice", []byte("x"))
	if env.Layers[3].Algorithm != "RSA-PKCS1v15-SHA256" {
		t.Errorf("sign algorithm: got %q", env.Layers[3].Algorithm)
	}

	// padding is not carried in the envelope; a PSS verifier rejects it
	_, err := testPipeline(t).Decrypt(context.Background(), env, km, DecryptConfig{})
	if !IsSignatureVerificationFailed(err) {
		t.Errorf("expected ErrSignatureVerificationFailed across paddings, got %v", err)
	}

	if _, err := New(WithIdentifierPolicy("loose")); err == nil {
		t.Error("expected error for unknown identifier policy")
	}
	if p := testPipeline(t); p.Policy() != IdentifierPolicyWarn {
		t.Errorf("default policy: got %q", p.Policy())
	}
}

func TestParseIdentifierPolicy(t *testing.T) {
	for in, want := range map[string]IdentifierPolicy{"": IdentifierPolicyWarn, "WARN": IdentifierPolicyWarn, " strict ": IdentifierPolicyStrict} {
		got, err := ParseIdentifierPolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseIdentifierPolicy(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseIdentifierPolicy("lenient"); err == nil {
		t.Error("expected error")
	}
}
