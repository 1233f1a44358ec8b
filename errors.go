package stegocrypt

import (
	"errors"
	"fmt"

	"github.com/rbaliyan/stegocrypt/covertext"
	"github.com/rbaliyan/stegocrypt/keywrap"
	"github.com/rbaliyan/stegocrypt/signature"
	"github.com/rbaliyan/stegocrypt/symmetric"
	"github.com/rbaliyan/stegocrypt/watermark"
)

var (
	// ErrEnvelopeMalformed is returned when the framed blob recovered from the
	// stego text or the side-channel fields of an envelope are inconsistent.
	ErrEnvelopeMalformed = errors.New("stegocrypt: envelope malformed")

	// ErrStegoExtractionFailed is returned when no payload can be recovered
	// from the stego text.
	ErrStegoExtractionFailed = errors.New("stegocrypt: stego extraction failed")

	// ErrSignatureVerificationFailed is returned when the signature or the
	// ciphertext hash does not match. No plaintext is produced.
	ErrSignatureVerificationFailed = errors.New("stegocrypt: signature verification failed")

	// ErrKeyUnwrapFailed is returned when the wrapped symmetric key cannot be recovered.
	ErrKeyUnwrapFailed = errors.New("stegocrypt: key unwrap failed")

	// ErrWatermarkEmbedFailure is returned when the sender identifier cannot be embedded.
	ErrWatermarkEmbedFailure = errors.New("stegocrypt: watermark embed failure")

	// ErrWatermarkMissing is returned when signed ciphertext carries no watermark.
	ErrWatermarkMissing = errors.New("stegocrypt: watermark missing")

	// ErrIdentifierMismatch is returned under IdentifierPolicyStrict when the
	// extracted identifier differs from the expected one.
	ErrIdentifierMismatch = errors.New("stegocrypt: identifier mismatch")

	// ErrMissingSenderIdentifier is returned when encryption is requested without a sender.
	ErrMissingSenderIdentifier = errors.New("stegocrypt: missing sender identifier")

	// ErrSchemeMismatch is returned when the requested scheme differs from the key material.
	ErrSchemeMismatch = errors.New("stegocrypt: scheme does not match key material")

	// ErrIncompleteKeyMaterial is returned when a key pair needed by an operation is absent.
	ErrIncompleteKeyMaterial = errors.New("stegocrypt: incomplete key material")

	// ErrKeyNotFound is returned when a key ID is not found in the provider.
	ErrKeyNotFound = errors.New("stegocrypt: key not found")

	// ErrInvalidKeyID is returned when a key ID is empty or too long.
	ErrInvalidKeyID = errors.New("stegocrypt: invalid key ID")

	// ErrInvalidKeySize is returned when a key-encryption key is not 32 bytes.
	ErrInvalidKeySize = errors.New("stegocrypt: invalid key size, must be 32 bytes")

	// ErrInvalidFormat is returned when sealed key material has an invalid format.
	ErrInvalidFormat = errors.New("stegocrypt: invalid sealed data format")

	// ErrDecryptionFailed is returned when sealed key material cannot be opened
	// (wrong key-encryption key, tampered data).
	ErrDecryptionFailed = errors.New("stegocrypt: decryption failed")
)

// Direction is the pipeline direction an error occurred in.
type Direction string

const (
	Forward Direction = "encrypt"
	Reverse Direction = "decrypt"
)

// LayerError tags a terminal pipeline failure with the layer that failed.
type LayerError struct {
	Direction Direction
	Layer     Layer
	Err       error
}

func (e *LayerError) Error() string {
	return fmt.Sprintf("stegocrypt: %s failed at %s layer: %v", e.Direction, e.Layer, e.Err)
}

func (e *LayerError) Unwrap() error { return e.Err }

// LayerOf returns the layer a pipeline error is tagged with.
func LayerOf(err error) (Layer, bool) {
	var le *LayerError
	if errors.As(err, &le) {
		return le.Layer, true
	}
	return 0, false
}

func layerErr(d Direction, l Layer, err error) error {
	return &LayerError{Direction: d, Layer: l, Err: err}
}

// Hint returns a short caller-facing description of err that never
// includes key material or payload data.
func Hint(err error) string {
	switch {
	case err == nil:
		return ""
	case IsCorruptedCarrier(err), IsStegoExtractionFailed(err):
		return "the stego text was altered or truncated"
	case IsEnvelopeMalformed(err):
		return "envelope fields are inconsistent or damaged"
	case IsSignatureVerificationFailed(err):
		return "signature or hash mismatch: wrong keys or tampered data"
	case IsKeyUnwrapFailed(err), IsUnwrapFailure(err):
		return "keys mismatch: the wrapped key cannot be opened with these keys"
	case IsPaddingOrIntegrity(err):
		return "symmetric decryption failed: key or IV mismatch"
	case IsWatermarkMissing(err):
		return "no sender watermark found"
	case IsIdentifierMismatch(err):
		return "sender identifier does not match the expected sender"
	case IsUnsupportedIdentifierCharacters(err), IsMissingSenderIdentifier(err):
		return "sender identifier must be 1-255 printable ASCII characters"
	case IsSchemeMismatch(err), IsIncompleteKeyMaterial(err):
		return "keys do not match the selected scheme"
	case IsUnsupportedParameter(err):
		return "unsupported key size or curve"
	case IsPayloadTooLarge(err):
		return "payload too large for the key"
	}
	return "operation failed"
}

// IsEnvelopeMalformed returns true if the error is or wraps ErrEnvelopeMalformed.
func IsEnvelopeMalformed(err error) bool {
	return errors.Is(err, ErrEnvelopeMalformed)
}

// IsStegoExtractionFailed returns true if the error is or wraps ErrStegoExtractionFailed.
func IsStegoExtractionFailed(err error) bool {
	return errors.Is(err, ErrStegoExtractionFailed)
}

// IsSignatureVerificationFailed returns true if the error is or wraps ErrSignatureVerificationFailed.
func IsSignatureVerificationFailed(err error) bool {
	return errors.Is(err, ErrSignatureVerificationFailed)
}

// IsKeyUnwrapFailed returns true if the error is or wraps ErrKeyUnwrapFailed.
func IsKeyUnwrapFailed(err error) bool {
	return errors.Is(err, ErrKeyUnwrapFailed)
}

// IsWatermarkEmbedFailure returns true if the error is or wraps ErrWatermarkEmbedFailure.
func IsWatermarkEmbedFailure(err error) bool {
	return errors.Is(err, ErrWatermarkEmbedFailure)
}

// IsWatermarkMissing returns true if the error is or wraps ErrWatermarkMissing.
func IsWatermarkMissing(err error) bool {
	return errors.Is(err, ErrWatermarkMissing)
}

// IsIdentifierMismatch returns true if the error is or wraps ErrIdentifierMismatch.
func IsIdentifierMismatch(err error) bool {
	return errors.Is(err, ErrIdentifierMismatch)
}

// IsMissingSenderIdentifier returns true if the error is or wraps ErrMissingSenderIdentifier.
func IsMissingSenderIdentifier(err error) bool {
	return errors.Is(err, ErrMissingSenderIdentifier)
}

// IsSchemeMismatch returns true if the error is or wraps ErrSchemeMismatch.
func IsSchemeMismatch(err error) bool {
	return errors.Is(err, ErrSchemeMismatch)
}

// IsIncompleteKeyMaterial returns true if the error is or wraps ErrIncompleteKeyMaterial.
func IsIncompleteKeyMaterial(err error) bool {
	return errors.Is(err, ErrIncompleteKeyMaterial)
}

// IsKeyNotFound returns true if the error is or wraps ErrKeyNotFound.
func IsKeyNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}

// IsInvalidKeyID returns true if the error is or wraps ErrInvalidKeyID.
func IsInvalidKeyID(err error) bool {
	return errors.Is(err, ErrInvalidKeyID)
}

// IsInvalidKeySize returns true if the error is or wraps ErrInvalidKeySize.
func IsInvalidKeySize(err error) bool {
	return errors.Is(err, ErrInvalidKeySize)
}

// IsInvalidFormat returns true if the error is or wraps ErrInvalidFormat.
func IsInvalidFormat(err error) bool {
	return errors.Is(err, ErrInvalidFormat)
}

// IsDecryptionFailed returns true if the error is or wraps ErrDecryptionFailed.
func IsDecryptionFailed(err error) bool {
	return errors.Is(err, ErrDecryptionFailed)
}

// IsInvalidKeyLength returns true if the error is or wraps symmetric.ErrInvalidKeyLength.
func IsInvalidKeyLength(err error) bool {
	return errors.Is(err, symmetric.ErrInvalidKeyLength)
}

// IsPaddingOrIntegrity returns true if the error is or wraps symmetric.ErrPaddingOrIntegrity.
func IsPaddingOrIntegrity(err error) bool {
	return errors.Is(err, symmetric.ErrPaddingOrIntegrity)
}

// IsUnsupportedParameter returns true if the error is or wraps keywrap.ErrUnsupportedParameter.
func IsUnsupportedParameter(err error) bool {
	return errors.Is(err, keywrap.ErrUnsupportedParameter)
}

// IsPayloadTooLarge returns true if the error is or wraps a payload size error
// from the key-wrap or covertext layer.
func IsPayloadTooLarge(err error) bool {
	return errors.Is(err, keywrap.ErrPayloadTooLarge) || errors.Is(err, covertext.ErrPayloadTooLarge)
}

// IsUnwrapFailure returns true if the error is or wraps keywrap.ErrUnwrapFailure.
func IsUnwrapFailure(err error) bool {
	return errors.Is(err, keywrap.ErrUnwrapFailure)
}

// IsUnsupportedIdentifierCharacters returns true if the error is or wraps
// watermark.ErrUnsupportedIdentifierCharacters.
func IsUnsupportedIdentifierCharacters(err error) bool {
	return errors.Is(err, watermark.ErrUnsupportedIdentifierCharacters)
}

// IsMalformedSignature returns true if the error is or wraps signature.ErrMalformedSignature.
func IsMalformedSignature(err error) bool {
	return errors.Is(err, signature.ErrMalformedSignature)
}

// IsCorruptedCarrier returns true if the error is or wraps covertext.ErrCorruptedCarrier.
func IsCorruptedCarrier(err error) bool {
	return errors.Is(err, covertext.ErrCorruptedCarrier)
}
