package stegocrypt

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"golang.org/x/crypto/cryptobyte"
)

// Frame format constants. The frame packs everything the reverse pipeline
// needs into the payload hidden by the cover layer:
//
//	"LS" | version | scheme | u32-len watermarked | u32-len signature |
//	u32-len hash | u32-len iv | u32-len wrappedKey | crc32-IEEE
const (
	// frameMagic is the 2-byte signature "LS" (Layered Stego).
	frameMagic = "LS"

	// FrameVersion is the current frame format version.
	FrameVersion = 0x01

	frameFields = 5

	crcSize = 4

	// minFrameSize is magic(2) + version(1) + scheme(1) + five empty fields + crc.
	minFrameSize = 4 + frameFields*4 + crcSize
)

// Sealed key material format constants.
const (
	// sealMagic is the 2-byte signature "SK" (Sealed Keys).
	sealMagic = "SK"

	sealVersion = 0x01

	// algAES256GCM identifies AES-256-GCM as the sealing algorithm.
	algAES256GCM = 0x01

	// kekSize is the required key-encryption key size in bytes (AES-256).
	kekSize = 32

	// gcmNonceSize is the nonce size for AES-GCM (12 bytes).
	gcmNonceSize = 12

	// minSealHeaderSize is magic(2) + version(1) + alg(1) + keyIDLen(1).
	minSealHeaderSize = 5
)

// frame is the parsed content of the cover layer payload.
type frame struct {
	scheme      Scheme
	watermarked []byte
	signature   []byte
	hash        []byte
	iv          []byte
	wrappedKey  []byte
}

func (f *frame) fields() []*[]byte {
	return []*[]byte{&f.watermarked, &f.signature, &f.hash, &f.iv, &f.wrappedKey}
}

// marshal encodes f and appends the checksum.
func (f *frame) marshal() ([]byte, error) {
	b := cryptobyte.NewBuilder(make([]byte, 0, f.size()))
	b.AddBytes([]byte(frameMagic))
	b.AddUint8(FrameVersion)
	b.AddUint8(uint8(f.scheme))
	for _, field := range f.fields() {
		b.AddUint32LengthPrefixed(func(c *cryptobyte.Builder) {
			c.AddBytes(*field)
		})
	}
	out, err := b.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEnvelopeMalformed, err)
	}
	return binary.BigEndian.AppendUint32(out, crc32.ChecksumIEEE(out)), nil
}

func (f *frame) size() int {
	n := minFrameSize
	for _, field := range f.fields() {
		n += len(*field)
	}
	return n
}

// parseFrame decodes data. All byte slices in the returned frame are
// defensive copies, safe from caller mutation.
func parseFrame(data []byte) (*frame, error) {
	if len(data) < minFrameSize {
		return nil, fmt.Errorf("%w: frame too short (%d bytes)", ErrEnvelopeMalformed, len(data))
	}
	body, sum := data[:len(data)-crcSize], data[len(data)-crcSize:]
	if crc32.ChecksumIEEE(body) != binary.BigEndian.Uint32(sum) {
		return nil, fmt.Errorf("%w: frame checksum mismatch", ErrEnvelopeMalformed)
	}

	s := cryptobyte.String(body)
	var magic []byte
	var version, scheme uint8
	if !s.ReadBytes(&magic, len(frameMagic)) || string(magic) != frameMagic {
		return nil, fmt.Errorf("%w: invalid magic bytes", ErrEnvelopeMalformed)
	}
	if !s.ReadUint8(&version) || version != FrameVersion {
		return nil, fmt.Errorf("%w: unsupported frame version %d", ErrEnvelopeMalformed, version)
	}
	if !s.ReadUint8(&scheme) || (Scheme(scheme) != SchemeRSA && Scheme(scheme) != SchemeECC) {
		return nil, fmt.Errorf("%w: unknown scheme %d", ErrEnvelopeMalformed, scheme)
	}

	f := &frame{scheme: Scheme(scheme)}
	for i, field := range f.fields() {
		var n uint32
		var v []byte
		if !s.ReadUint32(&n) || !s.ReadBytes(&v, int(n)) {
			return nil, fmt.Errorf("%w: field %d truncated", ErrEnvelopeMalformed, i)
		}
		*field = append([]byte(nil), v...)
	}
	if !s.Empty() {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrEnvelopeMalformed, len(s))
	}
	return f, nil
}

// sealHeader is the header of sealed key material. Its encoding is also the
// additional authenticated data of the sealed payload.
type sealHeader struct {
	version   byte
	algorithm byte
	keyID     string
	nonce     []byte
}

func (h *sealHeader) marshal() ([]byte, error) {
	if len(h.keyID) == 0 || len(h.keyID) > 255 {
		return nil, fmt.Errorf("%w: key ID must be 1-255 bytes", ErrInvalidKeyID)
	}
	b := cryptobyte.NewBuilder(nil)
	b.AddBytes([]byte(sealMagic))
	b.AddUint8(h.version)
	b.AddUint8(h.algorithm)
	b.AddUint8LengthPrefixed(func(c *cryptobyte.Builder) {
		c.AddBytes([]byte(h.keyID))
	})
	b.AddBytes(h.nonce)
	return b.Bytes()
}

// readSealHeader parses the header and returns it with the raw header bytes
// and the remaining ciphertext.
func readSealHeader(data []byte) (*sealHeader, []byte, []byte, error) {
	if len(data) < minSealHeaderSize {
		return nil, nil, nil, fmt.Errorf("%w: data too short", ErrInvalidFormat)
	}

	s := cryptobyte.String(data)
	var magic, nonce []byte
	h := &sealHeader{}
	if !s.ReadBytes(&magic, len(sealMagic)) || string(magic) != sealMagic {
		return nil, nil, nil, fmt.Errorf("%w: invalid magic bytes", ErrInvalidFormat)
	}
	s.ReadUint8(&h.version)
	s.ReadUint8(&h.algorithm)
	if h.version != sealVersion {
		return nil, nil, nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidFormat, h.version)
	}
	if h.algorithm != algAES256GCM {
		return nil, nil, nil, fmt.Errorf("%w: unsupported algorithm %d", ErrInvalidFormat, h.algorithm)
	}

	var id cryptobyte.String
	if !s.ReadUint8LengthPrefixed(&id) || !s.ReadBytes(&nonce, gcmNonceSize) {
		return nil, nil, nil, fmt.Errorf("%w: data too short for header", ErrInvalidFormat)
	}
	h.keyID = string(id)
	h.nonce = append([]byte(nil), nonce...)

	headerLen := len(data) - len(s)
	return h, data[:headerLen:headerLen], s, nil
}
