package server

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"net/http"
	"strings"

	"github.com/rbaliyan/stegocrypt"
	"github.com/rbaliyan/stegocrypt/keywrap"
	"github.com/rbaliyan/stegocrypt/signature"
	"github.com/rbaliyan/stegocrypt/symmetric"
)

// Single-primitive endpoints. Each one runs one layer of the pipeline on
// its own with caller-supplied keys.
const (
	AESPath        = "/api/aes"
	AESEncryptPath = AESPath + "/encrypt"
	AESDecryptPath = AESPath + "/decrypt"
	AESInfoPath    = AESPath + "/info"

	RSAPath         = "/api/rsa"
	RSAGeneratePath = RSAPath + "/generate-keypair"
	RSAEncryptPath  = RSAPath + "/encrypt"
	RSADecryptPath  = RSAPath + "/decrypt"
	RSASignPath     = RSAPath + "/sign"
	RSAVerifyPath   = RSAPath + "/verify"
	RSAInfoPath     = RSAPath + "/info"

	ECCPath         = "/api/ecc"
	ECCGeneratePath = ECCPath + "/generate-keypair"
	ECCSignPath     = ECCPath + "/sign"
	ECCVerifyPath   = ECCPath + "/verify"
	ECCInfoPath     = ECCPath + "/info"

	SignaturePath         = "/api/signature"
	SignatureGeneratePath = SignaturePath + "/generate-keypair"
	SignatureSignPath     = SignaturePath + "/sign"
	SignatureVerifyPath   = SignaturePath + "/verify"
	SignatureInfoPath     = SignaturePath + "/info"
)

// keyFamily restricts an endpoint to RSA or ECC keys. anyKey accepts both.
type keyFamily string

const (
	rsaKeys keyFamily = "RSA"
	eccKeys keyFamily = "ECC"
	anyKey  keyFamily = ""
)

func (f keyFamily) check(pub crypto.PublicKey) error {
	switch pub.(type) {
	case *rsa.PublicKey:
		if f == eccKeys {
			return invalid("an ECC key is required, got RSA")
		}
	case *ecdsa.PublicKey:
		if f == rsaKeys {
			return invalid("an RSA key is required, got ECC")
		}
	default:
		return invalid("unsupported key type %T", pub)
	}
	return nil
}

type aesRequest struct {
	Plaintext  string `json:"plaintext,omitempty"`
	Ciphertext []byte `json:"ciphertext,omitempty"`
	Key        string `json:"key"`
	Mode       string `json:"mode,omitempty"`
	KeySize    int    `json:"key_size,omitempty"`
	IV         []byte `json:"iv,omitempty"`
}

type aesResponse struct {
	Success    bool   `json:"success"`
	Ciphertext []byte `json:"ciphertext,omitempty"`
	Plaintext  string `json:"plaintext,omitempty"`
	IV         []byte `json:"iv,omitempty"`
	Mode       string `json:"mode"`
	KeySize    int    `json:"key_size"`
	Algorithm  string `json:"algorithm"`
}

// aesKey derives a key of bits length from a passphrase by truncating its
// SHA-256 digest. Only CBC is offered.
func aesKey(req aesRequest) ([]byte, int, error) {
	if req.Key == "" {
		return nil, 0, invalid("key is required")
	}
	if m := strings.ToUpper(req.Mode); m != "" && m != "CBC" {
		return nil, 0, invalid("mode %q is not supported, use CBC", req.Mode)
	}
	bits := req.KeySize
	if bits == 0 {
		bits = 256
	}
	if bits != 128 && bits != 192 && bits != 256 {
		return nil, 0, invalid("key_size must be 128, 192 or 256, got %d", bits)
	}
	return signature.Digest([]byte(req.Key))[:bits/8], bits, nil
}

func (s *Server) aesEncrypt(w http.ResponseWriter, r *http.Request) {
	var req aesRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	if req.Plaintext == "" {
		s.writeError(w, r, invalid("plaintext is required"), nil)
		return
	}
	if err := s.checkSize("plaintext", req.Plaintext); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	key, bits, err := aesKey(req)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	defer clear(key)

	ct, iv, err := symmetric.Encrypt([]byte(req.Plaintext), key, req.IV)
	if err != nil {
		s.writeError(w, r, &badRequest{err: err}, nil)
		return
	}
	writeJSON(w, http.StatusOK, aesResponse{
		Success:    true,
		Ciphertext: ct,
		IV:         iv,
		Mode:       "CBC",
		KeySize:    bits,
		Algorithm:  symmetric.Algorithm(len(key)),
	})
}

func (s *Server) aesDecrypt(w http.ResponseWriter, r *http.Request) {
	var req aesRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	if len(req.Ciphertext) == 0 || len(req.IV) == 0 {
		s.writeError(w, r, invalid("ciphertext and iv are required"), nil)
		return
	}
	key, bits, err := aesKey(req)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	defer clear(key)

	pt, err := symmetric.Decrypt(req.Ciphertext, key, req.IV)
	if err != nil {
		s.writeError(w, r, &badRequest{err: err}, nil)
		return
	}
	writeJSON(w, http.StatusOK, aesResponse{
		Success:   true,
		Plaintext: string(pt),
		Mode:      "CBC",
		KeySize:   bits,
		Algorithm: symmetric.Algorithm(len(key)),
	})
}

type keypairRequest struct {
	Algorithm string `json:"algorithm,omitempty"`
	KeySize   int    `json:"key_size,omitempty"`
	Curve     string `json:"curve,omitempty"`
}

type keypairResponse struct {
	Success   bool   `json:"success"`
	Algorithm string `json:"algorithm"`
	stegocrypt.KeyPEM
}

// generateKeypair returns a handler creating one key pair of family f. With
// anyKey the request's algorithm field selects the family, RSA by default.
func (s *Server) generateKeypair(f keyFamily) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req keypairRequest
		if err := s.decode(w, r, &req); err != nil {
			s.writeError(w, r, err, nil)
			return
		}
		family := f
		if family == anyKey {
			family = keyFamily(strings.ToUpper(req.Algorithm))
			if family == anyKey {
				family = rsaKeys
			}
		}

		var key crypto.Signer
		var err error
		switch family {
		case rsaKeys:
			bits := req.KeySize
			if bits == 0 {
				bits = stegocrypt.DefaultRSABits
			}
			key, err = keywrap.GenerateRSA(bits)
		case eccKeys:
			curve := req.Curve
			if curve == "" {
				curve = stegocrypt.DefaultCurve
			}
			key, err = keywrap.GenerateECC(curve)
		default:
			err = invalid("algorithm must be RSA or ECC, got %q", req.Algorithm)
		}
		if err != nil {
			s.writeError(w, r, err, nil)
			return
		}
		p, err := stegocrypt.MarshalKeyPEM(key)
		if err != nil {
			s.writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, keypairResponse{Success: true, Algorithm: string(family), KeyPEM: p})
	}
}

type primitiveRequest struct {
	Message    string `json:"message,omitempty"`
	Plaintext  string `json:"plaintext,omitempty"`
	Ciphertext []byte `json:"ciphertext,omitempty"`
	Signature  []byte `json:"signature,omitempty"`
	PublicKey  string `json:"public_key,omitempty"`
	PrivateKey string `json:"private_key,omitempty"`
	Algorithm  string `json:"algorithm,omitempty"`
}

type primitiveResponse struct {
	Success       bool   `json:"success"`
	Ciphertext    []byte `json:"ciphertext,omitempty"`
	Plaintext     string `json:"plaintext,omitempty"`
	Signature     []byte `json:"signature,omitempty"`
	Valid         *bool  `json:"valid,omitempty"`
	MessageLength int    `json:"message_length,omitempty"`
	Algorithm     string `json:"algorithm"`
	HashAlgorithm string `json:"hash_algorithm,omitempty"`
}

func publicKey(pemText string, f keyFamily) (crypto.PublicKey, error) {
	if pemText == "" {
		return nil, invalid("public_key is required")
	}
	pub, err := stegocrypt.ParsePublicKeyPEM(pemText)
	if err != nil {
		return nil, &badRequest{err: err}
	}
	return pub, f.check(pub)
}

func privateKey(pemText string, f keyFamily) (crypto.Signer, error) {
	if pemText == "" {
		return nil, invalid("private_key is required")
	}
	priv, err := stegocrypt.ParsePrivateKeyPEM(pemText)
	if err != nil {
		return nil, &badRequest{err: err}
	}
	return priv, f.check(priv.Public())
}

func (s *Server) rsaEncrypt(w http.ResponseWriter, r *http.Request) {
	var req primitiveRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	if req.Plaintext == "" {
		s.writeError(w, r, invalid("plaintext is required"), nil)
		return
	}
	pub, err := publicKey(req.PublicKey, rsaKeys)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	ct, err := keywrap.RSA{}.Wrap([]byte(req.Plaintext), pub)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, primitiveResponse{
		Success:       true,
		Ciphertext:    ct,
		MessageLength: len(req.Plaintext),
		Algorithm:     keywrap.RSA{}.Algorithm(),
	})
}

func (s *Server) rsaDecrypt(w http.ResponseWriter, r *http.Request) {
	var req primitiveRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	if len(req.Ciphertext) == 0 {
		s.writeError(w, r, invalid("ciphertext is required"), nil)
		return
	}
	priv, err := privateKey(req.PrivateKey, rsaKeys)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	pt, err := keywrap.RSA{}.Unwrap(req.Ciphertext, priv)
	if err != nil {
		s.writeError(w, r, &badRequest{err: err}, nil)
		return
	}
	writeJSON(w, http.StatusOK, primitiveResponse{
		Success:       true,
		Plaintext:     string(pt),
		MessageLength: len(pt),
		Algorithm:     keywrap.RSA{}.Algorithm(),
	})
}

func (s *Server) sign(f keyFamily) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req primitiveRequest
		if err := s.decode(w, r, &req); err != nil {
			s.writeError(w, r, err, nil)
			return
		}
		if req.Message == "" {
			s.writeError(w, r, invalid("message is required"), nil)
			return
		}
		priv, err := privateKey(req.PrivateKey, f)
		if err != nil {
			s.writeError(w, r, err, nil)
			return
		}
		signer := signature.New()
		sig, _, err := signer.Sign([]byte(req.Message), priv)
		if err != nil {
			s.writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, primitiveResponse{
			Success:       true,
			Signature:     sig,
			MessageLength: len(req.Message),
			Algorithm:     signer.Algorithm(priv.Public()),
			HashAlgorithm: "SHA-256",
		})
	}
}

func (s *Server) verify(f keyFamily) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req primitiveRequest
		if err := s.decode(w, r, &req); err != nil {
			s.writeError(w, r, err, nil)
			return
		}
		if req.Message == "" || len(req.Signature) == 0 {
			s.writeError(w, r, invalid("message and signature are required"), nil)
			return
		}
		pub, err := publicKey(req.PublicKey, f)
		if err != nil {
			s.writeError(w, r, err, nil)
			return
		}
		signer := signature.New()
		ok, err := signer.Verify([]byte(req.Message), req.Signature, pub)
		if err != nil {
			s.writeError(w, r, &badRequest{err: err}, nil)
			return
		}
		writeJSON(w, http.StatusOK, primitiveResponse{
			Success:       true,
			Valid:         &ok,
			MessageLength: len(req.Message),
			Algorithm:     signer.Algorithm(pub),
			HashAlgorithm: "SHA-256",
		})
	}
}

type moduleInfo struct {
	Success   bool     `json:"success"`
	Module    string   `json:"module"`
	KeySizes  []int    `json:"supported_key_sizes,omitempty"`
	Curves    []string `json:"supported_curves,omitempty"`
	Modes     []string `json:"supported_modes,omitempty"`
	Endpoints []string `json:"endpoints"`
}

// describe returns a handler listing info and the endpoints registered under prefix.
func (s *Server) describe(info moduleInfo, prefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := info
		resp.Success = true
		for _, h := range s.handlers {
			if strings.HasPrefix(h.Path(), prefix+"/") {
				resp.Endpoints = append(resp.Endpoints, h.Method()+" "+h.Path())
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
