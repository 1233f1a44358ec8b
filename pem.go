package stegocrypt

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/rbaliyan/stegocrypt/keywrap"
)

// KeyMaterialPEM is the JSON wire form of KeyMaterial exchanged with callers.
type KeyMaterialPEM struct {
	Algorithm     string `json:"algorithm"`
	KeyEncryption KeyPEM `json:"key_encryption"`
	Signature     KeyPEM `json:"signature"`
}

// KeyPEM is one PEM-encoded key pair. PrivateKey is empty for public material.
type KeyPEM struct {
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key,omitempty"`
	KeySize    int    `json:"key_size,omitempty"`
	Curve      string `json:"curve,omitempty"`
}

// MarshalPEM encodes km with PKIX public keys and PKCS#8 private keys.
func (km *KeyMaterial) MarshalPEM() (*KeyMaterialPEM, error) {
	if err := km.Validate(); err != nil {
		return nil, err
	}
	wrap, err := marshalPair(km.Wrapping, km)
	if err != nil {
		return nil, fmt.Errorf("key encryption: %w", err)
	}
	sign, err := marshalPair(km.Signing, km)
	if err != nil {
		return nil, fmt.Errorf("signature: %w", err)
	}
	return &KeyMaterialPEM{Algorithm: km.Scheme.String(), KeyEncryption: wrap, Signature: sign}, nil
}

func marshalPair(kp KeyPair, km *KeyMaterial) (KeyPEM, error) {
	der, err := x509.MarshalPKIXPublicKey(kp.Public)
	if err != nil {
		return KeyPEM{}, err
	}
	out := KeyPEM{
		PublicKey: string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})),
		KeySize:   km.RSABits,
		Curve:     km.Curve,
	}
	if kp.Private != nil {
		der, err := x509.MarshalPKCS8PrivateKey(kp.Private)
		if err != nil {
			return KeyPEM{}, err
		}
		out.PrivateKey = string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
		clear(der)
	}
	return out, nil
}

// ParseKeyMaterialPEM decodes p and validates the result.
func ParseKeyMaterialPEM(p *KeyMaterialPEM) (*KeyMaterial, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: no keys supplied", ErrIncompleteKeyMaterial)
	}
	scheme, err := ParseScheme(p.Algorithm)
	if err != nil {
		return nil, err
	}
	km := &KeyMaterial{Scheme: scheme}
	if km.Wrapping, err = parsePair(p.KeyEncryption); err != nil {
		return nil, fmt.Errorf("key encryption: %w", err)
	}
	if km.Signing, err = parsePair(p.Signature); err != nil {
		return nil, fmt.Errorf("signature: %w", err)
	}

	switch k := km.Wrapping.Public.(type) {
	case *rsa.PublicKey:
		km.RSABits = k.N.BitLen()
	case *ecdsa.PublicKey:
		km.Curve = keywrap.CurveName(k.Curve)
		if km.Curve == "" {
			return nil, fmt.Errorf("%w: curve %s", keywrap.ErrUnsupportedParameter, k.Curve.Params().Name)
		}
	}
	if err := km.Validate(); err != nil {
		return nil, err
	}
	return km, nil
}

func parsePair(p KeyPEM) (KeyPair, error) {
	if p.PublicKey == "" {
		return KeyPair{}, fmt.Errorf("%w: public key missing", ErrIncompleteKeyMaterial)
	}
	pub, err := ParsePublicKeyPEM(p.PublicKey)
	if err != nil {
		return KeyPair{}, err
	}
	kp := KeyPair{Public: pub}
	if p.PrivateKey == "" {
		return kp, nil
	}

	signer, err := ParsePrivateKeyPEM(p.PrivateKey)
	if err != nil {
		return KeyPair{}, err
	}
	if !publicEqual(signer.Public(), pub) {
		return KeyPair{}, fmt.Errorf("%w: private key does not match public key", ErrIncompleteKeyMaterial)
	}
	kp.Private = signer
	return kp, nil
}

// ParsePublicKeyPEM decodes a single PKIX "PUBLIC KEY" block.
func ParsePublicKeyPEM(s string) (crypto.PublicKey, error) {
	block, _ := pem.Decode([]byte(s))
	if block == nil {
		return nil, fmt.Errorf("%w: public key is not PEM", ErrIncompleteKeyMaterial)
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: public key: %v", ErrIncompleteKeyMaterial, err)
	}
	return pub, nil
}

// ParsePrivateKeyPEM decodes a single PKCS#8 "PRIVATE KEY" block holding an
// RSA or ECDSA key.
func ParsePrivateKeyPEM(s string) (crypto.Signer, error) {
	block, _ := pem.Decode([]byte(s))
	if block == nil {
		return nil, fmt.Errorf("%w: private key is not PEM", ErrIncompleteKeyMaterial)
	}
	defer clear(block.Bytes)
	priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: private key: %v", ErrIncompleteKeyMaterial, err)
	}
	switch k := priv.(type) {
	case *rsa.PrivateKey:
		return k, nil
	case *ecdsa.PrivateKey:
		return k, nil
	}
	return nil, fmt.Errorf("%w: %T", keywrap.ErrUnsupportedKey, priv)
}

// MarshalKeyPEM encodes a single key pair, filling KeySize or Curve from the key.
func MarshalKeyPEM(key crypto.Signer) (KeyPEM, error) {
	km := &KeyMaterial{}
	switch k := key.(type) {
	case *rsa.PrivateKey:
		km.RSABits = k.N.BitLen()
	case *ecdsa.PrivateKey:
		km.Curve = keywrap.CurveName(k.Curve)
	default:
		return KeyPEM{}, fmt.Errorf("%w: %T", keywrap.ErrUnsupportedKey, key)
	}
	return marshalPair(KeyPair{Public: key.Public(), Private: key}, km)
}

func publicEqual(a, b crypto.PublicKey) bool {
	eq, ok := a.(interface{ Equal(crypto.PublicKey) bool })
	return ok && eq.Equal(b)
}
