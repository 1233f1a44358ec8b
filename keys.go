package stegocrypt

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"fmt"
	"strings"

	"github.com/rbaliyan/stegocrypt/keywrap"
)

// Scheme selects the asymmetric algorithms of a pipeline run.
type Scheme uint8

const (
	// SchemeRSA wraps with RSA-OAEP and signs with RSA-PSS.
	SchemeRSA Scheme = iota + 1
	// SchemeECC wraps with ECDH-ES+A256KW and signs with ECDSA.
	SchemeECC
)

// Defaults for GenerateKeyMaterial.
const (
	DefaultRSABits = 2048
	DefaultCurve   = "secp256r1"
)

func (s Scheme) String() string {
	switch s {
	case SchemeRSA:
		return "RSA"
	case SchemeECC:
		return "ECC"
	}
	return fmt.Sprintf("Scheme(%d)", uint8(s))
}

// ParseScheme accepts "RSA" or "ECC" in any case.
func ParseScheme(s string) (Scheme, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "RSA":
		return SchemeRSA, nil
	case "ECC", "EC", "ECDSA":
		return SchemeECC, nil
	}
	return 0, fmt.Errorf("%w: scheme %q", keywrap.ErrUnsupportedParameter, s)
}

// SchemeFromECC maps a use-ECC flag to a Scheme.
func SchemeFromECC(useECC bool) Scheme {
	if useECC {
		return SchemeECC
	}
	return SchemeRSA
}

func (s Scheme) wrapper() keywrap.Wrapper {
	if s == SchemeECC {
		return keywrap.ECC{}
	}
	return keywrap.RSA{}
}

// KeyPair holds one asymmetric key pair. Private is nil for public-only material.
type KeyPair struct {
	Public  crypto.PublicKey
	Private crypto.Signer
}

// KeyMaterial holds the two independent key pairs of a party: one for key
// encryption, one for signatures. It is immutable after creation and is
// never retained by the pipeline.
type KeyMaterial struct {
	Scheme  Scheme
	RSABits int
	Curve   string

	Wrapping KeyPair
	Signing  KeyPair
}

// KeyOption configures GenerateKeyMaterial.
type KeyOption func(*keyOptions)

type keyOptions struct {
	rsaBits int
	curve   string
}

// WithRSABits sets the RSA modulus size.
func WithRSABits(bits int) KeyOption {
	return func(o *keyOptions) { o.rsaBits = bits }
}

// WithCurve sets the elliptic curve by name (secp256r1, P-384, ...).
func WithCurve(name string) KeyOption {
	return func(o *keyOptions) { o.curve = name }
}

// GenerateKeyMaterial creates fresh key-encryption and signature key pairs.
func GenerateKeyMaterial(scheme Scheme, opts ...KeyOption) (*KeyMaterial, error) {
	o := keyOptions{rsaBits: DefaultRSABits, curve: DefaultCurve}
	for _, opt := range opts {
		opt(&o)
	}

	km := &KeyMaterial{Scheme: scheme}
	switch scheme {
	case SchemeRSA:
		wrap, err := keywrap.GenerateRSA(o.rsaBits)
		if err != nil {
			return nil, err
		}
		sign, err := keywrap.GenerateRSA(o.rsaBits)
		if err != nil {
			return nil, err
		}
		km.RSABits = o.rsaBits
		km.Wrapping = KeyPair{Public: &wrap.PublicKey, Private: wrap}
		km.Signing = KeyPair{Public: &sign.PublicKey, Private: sign}
	case SchemeECC:
		_, name, err := keywrap.CurveByName(o.curve)
		if err != nil {
			return nil, err
		}
		wrap, err := keywrap.GenerateECC(name)
		if err != nil {
			return nil, err
		}
		sign, err := keywrap.GenerateECC(name)
		if err != nil {
			return nil, err
		}
		km.Curve = name
		km.Wrapping = KeyPair{Public: &wrap.PublicKey, Private: wrap}
		km.Signing = KeyPair{Public: &sign.PublicKey, Private: sign}
	default:
		return nil, fmt.Errorf("%w: scheme %d", keywrap.ErrUnsupportedParameter, scheme)
	}
	return km, nil
}

// Validate checks that every present key matches the scheme. It does not
// require private halves.
func (km *KeyMaterial) Validate() error {
	if km == nil {
		return fmt.Errorf("%w: nil key material", ErrIncompleteKeyMaterial)
	}
	for _, kp := range []struct {
		name string
		pair KeyPair
	}{{"key encryption", km.Wrapping}, {"signature", km.Signing}} {
		if kp.pair.Public == nil {
			return fmt.Errorf("%w: %s public key missing", ErrIncompleteKeyMaterial, kp.name)
		}
		if err := km.checkType(kp.pair.Public); err != nil {
			return fmt.Errorf("%s public key: %w", kp.name, err)
		}
		if kp.pair.Private != nil {
			if err := km.checkType(kp.pair.Private.Public()); err != nil {
				return fmt.Errorf("%s private key: %w", kp.name, err)
			}
		}
	}
	return nil
}

func (km *KeyMaterial) checkType(pub crypto.PublicKey) error {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		if km.Scheme != SchemeRSA {
			return fmt.Errorf("%w: RSA key in %s material", ErrSchemeMismatch, km.Scheme)
		}
	case *ecdsa.PublicKey:
		if km.Scheme != SchemeECC {
			return fmt.Errorf("%w: EC key in %s material", ErrSchemeMismatch, km.Scheme)
		}
		if km.Curve != "" && keywrap.CurveName(k.Curve) != km.Curve {
			return fmt.Errorf("%w: key on %s, material declares %s",
				ErrSchemeMismatch, k.Curve.Params().Name, km.Curve)
		}
	default:
		return fmt.Errorf("%w: %T", keywrap.ErrUnsupportedKey, pub)
	}
	return nil
}

// Public returns a copy of km without private keys.
func (km *KeyMaterial) Public() *KeyMaterial {
	return &KeyMaterial{
		Scheme:   km.Scheme,
		RSABits:  km.RSABits,
		Curve:    km.Curve,
		Wrapping: KeyPair{Public: km.Wrapping.Public},
		Signing:  KeyPair{Public: km.Signing.Public},
	}
}

// encryptKeys checks what the forward pass needs: the recipient's
// key-encryption public key and the signing private key.
func (km *KeyMaterial) encryptKeys(scheme Scheme) error {
	if err := km.Validate(); err != nil {
		return err
	}
	if scheme != km.Scheme {
		return fmt.Errorf("%w: requested %s, keys are %s", ErrSchemeMismatch, scheme, km.Scheme)
	}
	if km.Signing.Private == nil {
		return fmt.Errorf("%w: signature private key missing", ErrIncompleteKeyMaterial)
	}
	return nil
}

// decryptKeys checks what the reverse pass needs: the signature public key
// and the key-encryption private key.
func (km *KeyMaterial) decryptKeys(scheme Scheme) error {
	if err := km.Validate(); err != nil {
		return err
	}
	if scheme != km.Scheme {
		return fmt.Errorf("%w: requested %s, keys are %s", ErrSchemeMismatch, scheme, km.Scheme)
	}
	if km.Wrapping.Private == nil {
		return fmt.Errorf("%w: key encryption private key missing", ErrIncompleteKeyMaterial)
	}
	return nil
}

// MarshalText encodes s as "RSA" or "ECC".
func (s Scheme) MarshalText() ([]byte, error) {
	if s != SchemeRSA && s != SchemeECC {
		return nil, fmt.Errorf("%w: scheme %d", keywrap.ErrUnsupportedParameter, uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a scheme name.
func (s *Scheme) UnmarshalText(b []byte) error {
	v, err := ParseScheme(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
