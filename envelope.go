package stegocrypt

// LayerEnvelope is the result of the forward pipeline. The reverse pipeline
// needs StegoText plus the side-channel fields (IV, WrappedKey, Signature,
// CiphertextHash) and the key material; callers must retain them together.
type LayerEnvelope struct {
	FormatVersion int    `json:"format_version"`
	Scheme        Scheme `json:"scheme"`
	KeyID         string `json:"key_id,omitempty"`

	Ciphertext            []byte `json:"ciphertext,omitempty"`
	IV                    []byte `json:"aes_iv"`
	WrappedKey            []byte `json:"encrypted_aes_key"`
	WatermarkedCiphertext []byte `json:"watermarked_ciphertext,omitempty"`
	Signature             []byte `json:"digital_signature"`
	CiphertextHash        []byte `json:"ciphertext_hash"`
	StegoText             string `json:"stego_text"`

	Layers []LayerRecord `json:"layers,omitempty"`
}

// SideChannel returns a copy of e holding only what Decrypt reads: the stego
// text and the side-channel metadata.
func (e *LayerEnvelope) SideChannel() *LayerEnvelope {
	return &LayerEnvelope{
		FormatVersion:  e.FormatVersion,
		Scheme:         e.Scheme,
		KeyID:          e.KeyID,
		IV:             append([]byte(nil), e.IV...),
		WrappedKey:     append([]byte(nil), e.WrappedKey...),
		Signature:      append([]byte(nil), e.Signature...),
		CiphertextHash: append([]byte(nil), e.CiphertextHash...),
		StegoText:      e.StegoText,
	}
}

// VerificationResult is the outcome of the reverse pipeline. Plaintext is
// nil unless every integrity check passed.
type VerificationResult struct {
	Plaintext           []byte   `json:"plaintext,omitempty"`
	ExtractedIdentifier string   `json:"extracted_watermark"`
	SignatureValid      bool     `json:"signature_verified"`
	HashValid           bool     `json:"hash_verified"`
	IdentifierMatch     bool     `json:"identifier_match"` // false when no identifier was expected
	Warnings            []string `json:"warnings,omitempty"`
}

// PipelineConfig selects the scheme and the sender identifier of one
// Encrypt call. A zero Scheme uses the scheme of the key material.
type PipelineConfig struct {
	Scheme           Scheme
	SenderIdentifier string

	// CoverText carries the stego payload. Empty selects the default cover.
	CoverText string
}

// DecryptConfig parameterizes one Decrypt call. A zero Scheme uses the
// scheme of the key material. An empty ExpectedIdentifier skips the sender
// comparison; the watermark must still be present.
type DecryptConfig struct {
	Scheme             Scheme
	ExpectedIdentifier string
}
