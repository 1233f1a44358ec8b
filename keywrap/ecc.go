package keywrap

import (
	"crypto"
	"crypto/aes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"fmt"
	"strings"

	josecipher "github.com/go-jose/go-jose/v3/cipher"
	"golang.org/x/crypto/cryptobyte"
)

// eccKWAlg is the algorithm identifier fed into the Concat KDF.
const eccKWAlg = "ECDH-ES+A256KW"

// kekSize is the derived key-encryption key size (AES-256).
const kekSize = 32

var curves = map[string]elliptic.Curve{
	"secp256r1": elliptic.P256(),
	"secp384r1": elliptic.P384(),
	"secp521r1": elliptic.P521(),
}

var curveAliases = map[string]string{
	"p-256":      "secp256r1",
	"p256":       "secp256r1",
	"prime256v1": "secp256r1",
	"p-384":      "secp384r1",
	"p384":       "secp384r1",
	"p-521":      "secp521r1",
	"p521":       "secp521r1",
}

// SupportedCurves lists the canonical curve names.
var SupportedCurves = []string{"secp256r1", "secp384r1", "secp521r1"}

// CurveByName resolves a curve name or alias and returns the curve with its canonical name.
func CurveByName(name string) (elliptic.Curve, string, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := curveAliases[n]; ok {
		n = canonical
	}
	c, ok := curves[n]
	if !ok {
		return nil, "", fmt.Errorf("%w: curve %q", ErrUnsupportedParameter, name)
	}
	return c, n, nil
}

// CurveName returns the canonical name of c, or "" when unsupported.
func CurveName(c elliptic.Curve) string {
	for name, known := range curves {
		if known == c {
			return name
		}
	}
	return ""
}

// GenerateECC creates an ECDSA key on the named curve.
func GenerateECC(curve string) (*ecdsa.PrivateKey, error) {
	c, _, err := CurveByName(curve)
	if err != nil {
		return nil, err
	}
	key, err := ecdsa.GenerateKey(c, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("keywrap: failed to generate EC key: %w", err)
	}
	return key, nil
}

// ECC wraps keys with ECDH-ES key agreement and AES key wrap (RFC 3394).
//
// Wrapped layout: u16-length-prefixed PKIX DER of the ephemeral public key,
// followed by the AES-KW output.
type ECC struct{}

// Compile-time interface check.
var _ Wrapper = ECC{}

// Algorithm returns "ECDH-ES+A256KW".
func (ECC) Algorithm() string { return eccKWAlg }

// Wrap generates an ephemeral key on the recipient's curve and wraps key with it.
func (w ECC) Wrap(key []byte, recipient crypto.PublicKey) ([]byte, error) {
	pub, ok := recipient.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: ECC wrap needs *ecdsa.PublicKey, got %T", ErrUnsupportedKey, recipient)
	}

	ephemeral, err := ecdsa.GenerateKey(pub.Curve, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("keywrap: failed to generate ephemeral key: %w", err)
	}
	return w.WrapWithEphemeral(key, pub, ephemeral)
}

// WrapWithEphemeral wraps key using the given ephemeral private key as the
// agreement counterpart. Reusing an ephemeral key across wraps defeats its
// purpose; this entry point exists for deterministic tests and for callers
// holding a pre-agreed sender key.
func (ECC) WrapWithEphemeral(key []byte, recipient *ecdsa.PublicKey, ephemeral *ecdsa.PrivateKey) ([]byte, error) {
	if len(key) < 16 || len(key)%8 != 0 {
		return nil, fmt.Errorf("%w: AES key wrap needs a multiple of 8 bytes, at least 16, got %d",
			ErrUnsupportedParameter, len(key))
	}
	if _, err := recipient.ECDH(); err != nil {
		return nil, fmt.Errorf("%w: invalid recipient key: %v", ErrUnsupportedKey, err)
	}
	if ephemeral.Curve != recipient.Curve {
		return nil, fmt.Errorf("%w: ephemeral and recipient keys are on different curves", ErrUnsupportedKey)
	}

	kek := josecipher.DeriveECDHES(eccKWAlg, nil, nil, ephemeral, recipient, kekSize)
	defer clear(kek)

	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, fmt.Errorf("keywrap: failed to create KEK cipher: %w", err)
	}
	wrapped, err := josecipher.KeyWrap(block, key)
	if err != nil {
		return nil, fmt.Errorf("keywrap: AES key wrap: %w", err)
	}

	ephDER, err := x509.MarshalPKIXPublicKey(&ephemeral.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("keywrap: failed to encode ephemeral key: %w", err)
	}

	var b cryptobyte.Builder
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(ephDER)
	})
	b.AddBytes(wrapped)
	return b.Bytes()
}

// Unwrap recovers the key using the recipient's private key and the
// ephemeral public key carried in wrapped.
func (ECC) Unwrap(wrapped []byte, recipient crypto.PrivateKey) ([]byte, error) {
	priv, ok := recipient.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: ECC unwrap needs *ecdsa.PrivateKey, got %T", ErrUnsupportedKey, recipient)
	}

	s := cryptobyte.String(wrapped)
	var ephDER cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&ephDER) || len(s) == 0 {
		return nil, fmt.Errorf("%w: truncated wrapped key", ErrUnwrapFailure)
	}

	parsed, err := x509.ParsePKIXPublicKey(ephDER)
	if err != nil {
		return nil, fmt.Errorf("%w: bad ephemeral key", ErrUnwrapFailure)
	}
	ephPub, ok := parsed.(*ecdsa.PublicKey)
	if !ok || ephPub.Curve != priv.Curve {
		return nil, fmt.Errorf("%w: ephemeral key does not match recipient curve", ErrUnwrapFailure)
	}

	kek := josecipher.DeriveECDHES(eccKWAlg, nil, nil, priv, ephPub, kekSize)
	defer clear(kek)

	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnwrapFailure, err)
	}
	key, err := josecipher.KeyUnwrap(block, []byte(s))
	if err != nil {
		return nil, fmt.Errorf("%w: AES key unwrap", ErrUnwrapFailure)
	}
	return key, nil
}
