// Package symmetric implements the block-cipher layer of the pipeline:
// AES in CBC mode with PKCS#7 padding, keyed with 128, 192 or 256 bits.
package symmetric

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
)

// BlockSize is the AES block size, which is also the IV size.
const BlockSize = aes.BlockSize

var (
	// ErrInvalidKeyLength is returned when a key is not 16, 24 or 32 bytes.
	ErrInvalidKeyLength = errors.New("symmetric: invalid key length, must be 16, 24 or 32 bytes")

	// ErrInvalidIV is returned when a supplied IV is not exactly one block long.
	ErrInvalidIV = errors.New("symmetric: invalid IV length")

	// ErrPaddingOrIntegrity is returned when ciphertext is not block aligned
	// or its padding does not survive decryption. It is the usual symptom of
	// a key or IV mismatch.
	ErrPaddingOrIntegrity = errors.New("symmetric: padding or integrity check failed")
)

// Algorithm returns the display name for a key of the given length, e.g. "AES-256-CBC".
func Algorithm(keyLen int) string {
	return fmt.Sprintf("AES-%d-CBC", keyLen*8)
}

func checkKey(key []byte) error {
	switch len(key) {
	case 16, 24, 32:
		return nil
	}
	return fmt.Errorf("%w: got %d bytes", ErrInvalidKeyLength, len(key))
}

// Encrypt pads and encrypts plaintext under key. When iv is nil a random IV
// is generated. The IV actually used is returned alongside the ciphertext.
func Encrypt(plaintext, key, iv []byte) (ciphertext, usedIV []byte, err error) {
	if err := checkKey(key); err != nil {
		return nil, nil, err
	}

	if iv == nil {
		iv = make([]byte, BlockSize)
		if _, err := io.ReadFull(rand.Reader, iv); err != nil {
			return nil, nil, fmt.Errorf("symmetric: failed to generate IV: %w", err)
		}
	} else if len(iv) != BlockSize {
		return nil, nil, fmt.Errorf("%w: got %d bytes", ErrInvalidIV, len(iv))
	} else {
		iv = append([]byte(nil), iv...)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("symmetric: failed to create cipher: %w", err)
	}

	padded := pad(plaintext)
	ciphertext = make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	clear(padded)

	return ciphertext, iv, nil
}

// Decrypt decrypts ciphertext under key and iv and removes the padding.
func Decrypt(ciphertext, key, iv []byte) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	if len(iv) != BlockSize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidIV, len(iv))
	}
	if len(ciphertext) == 0 || len(ciphertext)%BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d is not a positive multiple of %d",
			ErrPaddingOrIntegrity, len(ciphertext), BlockSize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("symmetric: failed to create cipher: %w", err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, ok := unpad(plaintext)
	if !ok {
		clear(plaintext)
		return nil, fmt.Errorf("%w: bad padding", ErrPaddingOrIntegrity)
	}
	return unpadded, nil
}

// pad applies PKCS#7 padding. A full block is added when the input is already aligned.
func pad(data []byte) []byte {
	n := BlockSize - len(data)%BlockSize
	out := make([]byte, len(data)+n)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

// unpad strips PKCS#7 padding, inspecting the whole final block in constant time.
func unpad(data []byte) ([]byte, bool) {
	n := int(data[len(data)-1])
	good := subtle.ConstantTimeLessOrEq(1, n) & subtle.ConstantTimeLessOrEq(n, BlockSize)

	last := data[len(data)-BlockSize:]
	for i := 0; i < BlockSize; i++ {
		inPad := subtle.ConstantTimeLessOrEq(BlockSize-n, i)
		match := subtle.ConstantTimeByteEq(last[i], byte(n))
		// bytes inside the pad region must equal n
		good &= match | (inPad ^ 1)
	}
	if good != 1 {
		return nil, false
	}
	return data[:len(data)-n], true
}
