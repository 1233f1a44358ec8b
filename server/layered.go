package server

import (
	"net/http"

	"github.com/rbaliyan/stegocrypt"
	"github.com/rbaliyan/stegocrypt/keywrap"
	"github.com/rbaliyan/stegocrypt/watermark"
)

// Layered pipeline endpoints.
const (
	LayeredPath      = "/api/advanced-layered"
	GenerateKeysPath = LayeredPath + "/generate-keys"
	EncryptPath      = LayeredPath + "/encrypt"
	DecryptPath      = LayeredPath + "/decrypt"
	InfoPath         = LayeredPath + "/info"
	HealthPath       = "/healthz"
)

type generateKeysRequest struct {
	UseECC  bool   `json:"use_ecc"`
	KeySize int    `json:"key_size,omitempty"`
	Curve   string `json:"curve,omitempty"`
}

type generateKeysResponse struct {
	Success bool                       `json:"success"`
	Keys    *stegocrypt.KeyMaterialPEM `json:"keys"`
	UseECC  bool                       `json:"use_ecc"`
}

type encryptRequest struct {
	Plaintext        string                     `json:"plaintext"`
	SenderIdentifier string                     `json:"sender_identifier"`
	Keys             *stegocrypt.KeyMaterialPEM `json:"keys,omitempty"`
	UseECC           bool                       `json:"use_ecc"`
	CoverText        string                     `json:"cover_text,omitempty"`
}

type encryptResponse struct {
	Success          bool                       `json:"success"`
	FinalOutput      string                     `json:"final_output"`
	EncryptedAESKey  []byte                     `json:"encrypted_aes_key"`
	DigitalSignature []byte                     `json:"digital_signature"`
	CiphertextHash   []byte                     `json:"ciphertext_hash"`
	AESIV            []byte                     `json:"aes_iv"`
	Envelope         *stegocrypt.LayerEnvelope  `json:"envelope"`
	LayerOutputs     []stegocrypt.LayerRecord   `json:"layer_outputs"`
	Keys             *stegocrypt.KeyMaterialPEM `json:"keys,omitempty"`
}

type decryptRequest struct {
	StegoText          string                     `json:"stego_text"`
	Keys               *stegocrypt.KeyMaterialPEM `json:"keys"`
	EncryptedAESKey    []byte                     `json:"encrypted_aes_key,omitempty"`
	DigitalSignature   []byte                     `json:"digital_signature,omitempty"`
	CiphertextHash     []byte                     `json:"ciphertext_hash,omitempty"`
	AESIV              []byte                     `json:"aes_iv,omitempty"`
	UseECC             bool                       `json:"use_ecc"`
	ExpectedIdentifier string                     `json:"expected_identifier,omitempty"`
}

type decryptResponse struct {
	Success            bool     `json:"success"`
	Plaintext          string   `json:"plaintext"`
	ExtractedWatermark string   `json:"extracted_watermark"`
	SignatureVerified  bool     `json:"signature_verified"`
	HashVerified       bool     `json:"hash_verified"`
	IdentifierMatch    bool     `json:"identifier_match"`
	Warnings           []string `json:"warnings,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) generateKeys(w http.ResponseWriter, r *http.Request) {
	var req generateKeysRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	p, err := generate(req.UseECC, req.KeySize, req.Curve)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, generateKeysResponse{Success: true, Keys: p, UseECC: req.UseECC})
}

func generate(useECC bool, keySize int, curve string) (*stegocrypt.KeyMaterialPEM, error) {
	var opts []stegocrypt.KeyOption
	if keySize != 0 {
		opts = append(opts, stegocrypt.WithRSABits(keySize))
	}
	if curve != "" {
		opts = append(opts, stegocrypt.WithCurve(curve))
	}
	km, err := stegocrypt.GenerateKeyMaterial(stegocrypt.SchemeFromECC(useECC), opts...)
	if err != nil {
		return nil, err
	}
	return km.MarshalPEM()
}

// parseKeys decodes the key bundle of a request and checks it against use_ecc.
func parseKeys(p *stegocrypt.KeyMaterialPEM, useECC bool) (*stegocrypt.KeyMaterial, error) {
	if p == nil {
		return nil, invalid("keys are required")
	}
	km, err := stegocrypt.ParseKeyMaterialPEM(p)
	if err != nil {
		return nil, err
	}
	if want := stegocrypt.SchemeFromECC(useECC); km.Scheme != want {
		return nil, invalid("keys are %s but use_ecc selects %s", km.Scheme, want)
	}
	return km, nil
}

func (s *Server) encrypt(w http.ResponseWriter, r *http.Request) {
	var req encryptRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	s.encryptWith(w, r, req)
}

func (s *Server) encryptWith(w http.ResponseWriter, r *http.Request, req encryptRequest) {
	if req.Plaintext == "" {
		s.writeError(w, r, invalid("plaintext is required"), nil)
		return
	}
	if err := s.checkSize("plaintext", req.Plaintext); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	if req.SenderIdentifier == "" {
		s.writeError(w, r, invalid("sender_identifier is required"), nil)
		return
	}

	// Without keys a fresh bundle is generated and returned to the caller.
	var generated *stegocrypt.KeyMaterialPEM
	if req.Keys == nil {
		p, err := generate(req.UseECC, 0, "")
		if err != nil {
			s.writeError(w, r, err, nil)
			return
		}
		req.Keys, generated = p, p
	}
	km, err := parseKeys(req.Keys, req.UseECC)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}

	env, err := s.pipeline.Encrypt(r.Context(), km, stegocrypt.PipelineConfig{
		Scheme:           km.Scheme,
		SenderIdentifier: req.SenderIdentifier,
		CoverText:        req.CoverText,
	}, []byte(req.Plaintext))
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}

	writeJSON(w, http.StatusOK, encryptResponse{
		Success:          true,
		FinalOutput:      env.StegoText,
		EncryptedAESKey:  env.WrappedKey,
		DigitalSignature: env.Signature,
		CiphertextHash:   env.CiphertextHash,
		AESIV:            env.IV,
		Envelope:         env.SideChannel(),
		LayerOutputs:     env.Layers,
		Keys:             generated,
	})
}

func (s *Server) decrypt(w http.ResponseWriter, r *http.Request) {
	var req decryptRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	if req.StegoText == "" {
		s.writeError(w, r, invalid("stego_text is required"), nil)
		return
	}
	km, err := parseKeys(req.Keys, req.UseECC)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}

	env := &stegocrypt.LayerEnvelope{
		Scheme:         km.Scheme,
		StegoText:      req.StegoText,
		WrappedKey:     req.EncryptedAESKey,
		Signature:      req.DigitalSignature,
		CiphertextHash: req.CiphertextHash,
		IV:             req.AESIV,
	}
	res, err := s.pipeline.Decrypt(r.Context(), env, km, stegocrypt.DecryptConfig{
		Scheme:             km.Scheme,
		ExpectedIdentifier: req.ExpectedIdentifier,
	})
	if err != nil {
		s.writeError(w, r, err, res)
		return
	}
	writeJSON(w, http.StatusOK, decryptResponse{
		Success:            true,
		Plaintext:          string(res.Plaintext),
		ExtractedWatermark: res.ExtractedIdentifier,
		SignatureVerified:  res.SignatureValid,
		HashVerified:       res.HashValid,
		IdentifierMatch:    res.IdentifierMatch,
		Warnings:           res.Warnings,
	})
}

type layerInfo struct {
	Layer       int    `json:"layer"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type infoResponse struct {
	Success         bool        `json:"success"`
	Name            string      `json:"name"`
	Layers          []layerInfo `json:"layers"`
	RSAKeySizes     []int       `json:"rsa_key_sizes"`
	Curves          []string    `json:"curves"`
	DefaultCurve    string      `json:"default_curve"`
	DefaultRSABits  int         `json:"default_rsa_bits"`
	IdentifierLimit int         `json:"identifier_max_length"`
}

func (s *Server) info(w http.ResponseWriter, _ *http.Request) {
	descriptions := map[stegocrypt.Layer]string{
		stegocrypt.LayerCipher:    "AES-256-CBC encryption of the plaintext with a fresh key and IV",
		stegocrypt.LayerKeyWrap:   "RSA-OAEP or ECDH-ES+A256KW wrapping of the AES key",
		stegocrypt.LayerWatermark: "zero-width sender identifier appended to the ciphertext",
		stegocrypt.LayerSign:      "SHA-256 digest signed with RSA-PSS or ECDSA",
		stegocrypt.LayerCover:     "synonym substitution in natural-language cover text",
	}
	resp := infoResponse{
		Success:         true,
		Name:            "stegocrypt layered pipeline",
		RSAKeySizes:     keywrap.SupportedRSABits,
		Curves:          keywrap.SupportedCurves,
		DefaultCurve:    stegocrypt.DefaultCurve,
		DefaultRSABits:  stegocrypt.DefaultRSABits,
		IdentifierLimit: watermark.MaxIdentifierLength,
	}
	for i, l := range stegocrypt.Layers {
		resp.Layers = append(resp.Layers, layerInfo{Layer: i + 1, Name: l.String(), Description: descriptions[l]})
	}
	writeJSON(w, http.StatusOK, resp)
}
