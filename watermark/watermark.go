// Package watermark hides a short identifier in a carrier using invisible
// zero-width characters.
//
// The mark is a suffix appended to the carrier:
//
//	bits(identifier) | bits(len(identifier)) | U+2060
//
// where each bit is U+200B (0) or U+200C (1), most significant bit first.
// The suffix is parsed backwards from the terminator, so the carrier may hold
// arbitrary bytes, including bytes that look like zero-width characters.
package watermark

import (
	"bytes"
	"errors"
	"fmt"
)

// MaxIdentifierLength is the longest identifier that can be embedded.
const MaxIdentifierLength = 255

var (
	zeroBit    = []byte("\u200b")
	oneBit     = []byte("\u200c")
	terminator = []byte("\u2060")
)

// runeLen is the UTF-8 length of every marker rune used in the suffix.
const runeLen = 3

var (
	// ErrUnsupportedIdentifierCharacters is returned when an identifier holds
	// characters outside printable ASCII (0x20-0x7E).
	ErrUnsupportedIdentifierCharacters = errors.New("watermark: unsupported identifier characters")

	// ErrInvalidIdentifierLength is returned for an empty or overlong identifier.
	ErrInvalidIdentifierLength = errors.New("watermark: invalid identifier length")
)

// Method names the embedding scheme.
const Method = "zero-width-characters"

// Validate checks that identifier can be embedded.
func Validate(identifier string) error {
	if len(identifier) == 0 || len(identifier) > MaxIdentifierLength {
		return fmt.Errorf("%w: %d bytes, must be 1-%d", ErrInvalidIdentifierLength, len(identifier), MaxIdentifierLength)
	}
	for i := 0; i < len(identifier); i++ {
		if c := identifier[i]; c < 0x20 || c > 0x7E {
			return fmt.Errorf("%w: byte 0x%02x at offset %d", ErrUnsupportedIdentifierCharacters, c, i)
		}
	}
	return nil
}

// Embed returns a copy of carrier with identifier appended as a zero-width mark.
func Embed(carrier []byte, identifier string) ([]byte, error) {
	if err := Validate(identifier); err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(carrier)+SuffixSize(len(identifier)))
	out = append(out, carrier...)
	for i := 0; i < len(identifier); i++ {
		out = appendByte(out, identifier[i])
	}
	out = appendByte(out, byte(len(identifier)))
	return append(out, terminator...), nil
}

// SuffixSize returns the number of bytes a mark for an identifier of n bytes occupies.
func SuffixSize(n int) int {
	return (n+1)*8*runeLen + len(terminator)
}

// Extract returns the embedded identifier, or "" when watermarked carries no
// recognizable mark. An empty result is not an error here; callers that
// require provenance must treat it as a failure.
func Extract(watermarked []byte) string {
	id, _, ok := parse(watermarked)
	if !ok {
		return ""
	}
	return id
}

// Verify extracts the identifier and reports whether it equals expected.
func Verify(watermarked []byte, expected string) (string, bool) {
	id := Extract(watermarked)
	return id, id != "" && id == expected
}

// Strip removes the mark and returns the original carrier. The boolean is
// false, and watermarked is returned unchanged, when no mark is present.
func Strip(watermarked []byte) ([]byte, bool) {
	_, start, ok := parse(watermarked)
	if !ok {
		return watermarked, false
	}
	return watermarked[:start:start], true
}

func appendByte(dst []byte, c byte) []byte {
	for bit := 7; bit >= 0; bit-- {
		if c>>uint(bit)&1 == 1 {
			dst = append(dst, oneBit...)
		} else {
			dst = append(dst, zeroBit...)
		}
	}
	return dst
}

// readByte decodes the 8 marker runes ending at end.
func readByte(b []byte, end int) (byte, int, bool) {
	start := end - 8*runeLen
	if start < 0 {
		return 0, 0, false
	}
	var c byte
	for i := start; i < end; i += runeLen {
		r := b[i : i+runeLen]
		switch {
		case bytes.Equal(r, zeroBit):
			c <<= 1
		case bytes.Equal(r, oneBit):
			c = c<<1 | 1
		default:
			return 0, 0, false
		}
	}
	return c, start, true
}

// parse locates the mark and returns the identifier and the offset where the
// mark begins.
func parse(b []byte) (string, int, bool) {
	if !bytes.HasSuffix(b, terminator) {
		return "", 0, false
	}
	end := len(b) - len(terminator)

	n, end, ok := readByte(b, end)
	if !ok || n == 0 {
		return "", 0, false
	}

	id := make([]byte, n)
	for i := int(n) - 1; i >= 0; i-- {
		id[i], end, ok = readByte(b, end)
		if !ok {
			return "", 0, false
		}
	}
	if Validate(string(id)) != nil {
		return "", 0, false
	}
	return string(id), end, true
}
