package stegocrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
)

// SealKeyMaterial encrypts km (including private keys) under a 32-byte
// key-encryption key with AES-256-GCM. The key ID is stored in the header
// and bound to the ciphertext as additional authenticated data.
func SealKeyMaterial(km *KeyMaterial, id string, kek []byte) ([]byte, error) {
	if len(kek) != kekSize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKeySize, len(kek))
	}
	p, err := km.MarshalPEM()
	if err != nil {
		return nil, err
	}
	plaintext, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("stegocrypt: encode key material: %w", err)
	}
	defer clear(plaintext)

	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("stegocrypt: failed to generate nonce: %w", err)
	}
	h := &sealHeader{version: sealVersion, algorithm: algAES256GCM, keyID: id, nonce: nonce}
	header, err := h.marshal()
	if err != nil {
		return nil, err
	}

	gcm, err := newGCM(kek)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(header), len(header)+len(plaintext)+gcm.Overhead())
	copy(out, header)
	return gcm.Seal(out, nonce, plaintext, header), nil
}

// OpenKeyMaterial decrypts data produced by SealKeyMaterial and returns the
// key material under the ID stored in its header.
func OpenKeyMaterial(data, kek []byte) (Key, error) {
	if len(kek) != kekSize {
		return Key{}, fmt.Errorf("%w: got %d bytes", ErrInvalidKeySize, len(kek))
	}
	h, header, ciphertext, err := readSealHeader(data)
	if err != nil {
		return Key{}, err
	}

	gcm, err := newGCM(kek)
	if err != nil {
		return Key{}, err
	}
	plaintext, err := gcm.Open(nil, h.nonce, ciphertext, header)
	if err != nil {
		return Key{}, fmt.Errorf("%w: failed to open key material %q", ErrDecryptionFailed, h.keyID)
	}
	defer clear(plaintext)

	var p KeyMaterialPEM
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return Key{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	km, err := ParseKeyMaterialPEM(&p)
	if err != nil {
		return Key{}, err
	}
	return Key{ID: h.keyID, Material: km}, nil
}

// SealedKeyID returns the key ID from the header of sealed key material
// without decrypting it.
func SealedKeyID(data []byte) (string, error) {
	h, _, _, err := readSealHeader(data)
	if err != nil {
		return "", err
	}
	return h.keyID, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeySize, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("stegocrypt: failed to create GCM: %w", err)
	}
	return gcm, nil
}
