// Package covertext hides arbitrary bytes in ordinary English prose by
// synonym substitution.
//
// Every word of the cover text that belongs to one of the synonym groups
// carries two bits: the index of the chosen synonym within its group. The
// payload is preceded by a 32-bit big-endian byte count. The cover text is
// repeated until it offers enough substitutable words.
//
// Extraction reads words, not layout: whitespace and letter case may be
// changed in transit. Adding, removing or rewording vocabulary words (spell
// checkers, translation, editors that hyphenate) breaks extraction and is
// reported as ErrCorruptedCarrier.
package covertext

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// headerBits is the size of the payload length prefix.
	headerBits = 32

	// bitsPerWord is the capacity of one substitutable word.
	bitsPerWord = 2

	// MaxPayload bounds the payload size accepted by Embed and Extract.
	MaxPayload = 128 << 10

	// MaxTextBytes bounds the stego text produced by Embed. A sparse cover
	// text is repeated many times, so small payloads can hit this first.
	MaxTextBytes = 16 << 20
)

// Method names the embedding scheme.
const Method = "linguistic-synonym-substitution"

var (
	// ErrCorruptedCarrier is returned when stego text does not hold a
	// complete, well-formed payload.
	ErrCorruptedCarrier = errors.New("covertext: corrupted carrier")

	// ErrPayloadTooLarge is returned when a payload exceeds MaxPayload or
	// its stego text would exceed MaxTextBytes.
	ErrPayloadTooLarge = errors.New("covertext: payload too large")
)

// groups lists four synonyms per base word; a synonym's index is its 2-bit value.
var groups = [][4]string{
	{"good", "great", "excellent", "fine"},
	{"bad", "poor", "terrible", "awful"},
	{"big", "large", "huge", "giant"},
	{"small", "tiny", "little", "mini"},
	{"fast", "quick", "rapid", "swift"},
	{"easy", "simple", "basic", "plain"},
	{"hard", "difficult", "tough", "complex"},
	{"new", "recent", "fresh", "modern"},
	{"old", "ancient", "aged", "dated"},
	{"start", "begin", "launch", "initiate"},
	{"end", "finish", "complete", "conclude"},
	{"make", "create", "build", "produce"},
	{"find", "discover", "locate", "detect"},
	{"think", "ponder", "consider", "reflect"},
	{"know", "understand", "grasp", "comprehend"},
	{"want", "desire", "wish", "need"},
	{"help", "assist", "aid", "support"},
	{"work", "function", "operate", "perform"},
	{"use", "employ", "utilize", "apply"},
	{"give", "provide", "offer", "supply"},
}

type slot struct {
	group int
	index int
}

// longestSynonym is the byte length of the longest vocabulary word.
var longestSynonym = func() int {
	n := 0
	for _, words := range groups {
		for _, w := range words {
			n = max(n, len(w))
		}
	}
	return n
}()

var vocabulary = func() map[string]slot {
	m := make(map[string]slot, len(groups)*4)
	for g, words := range groups {
		for i, w := range words {
			m[w] = slot{group: g, index: i}
		}
	}
	return m
}()

// DefaultCoverText is used when no cover text is supplied or the supplied
// one has no substitutable words.
const DefaultCoverText = `Good new methods make work easy and fast for all people to use every day.
Big ideas help us find better ways to think about hard problems we face.
Small teams can start to build great tools that give users what they want.
It is important to know the old rules before you begin any difficult task.
We should help each other and make things simple when work becomes complex.
Modern systems need to function well and operate without any major issues.
When you discover new concepts you must understand them before moving ahead.
Smart developers create software to provide solutions and offer real value.
The end goal is to produce results that users desire and truly appreciate.`

// Result describes one embedding.
type Result struct {
	// Text is the stego text.
	Text string

	// BitsEmbedded counts header and payload bits.
	BitsEmbedded int

	// WordsUsed counts substituted words.
	WordsUsed int

	// Repetitions is how many times the cover text was repeated.
	Repetitions int

	// UsedDefaultCover is true when DefaultCoverText replaced the supplied cover.
	UsedDefaultCover bool
}

// Embed hides payload in coverText and returns the stego text.
func Embed(payload []byte, coverText string) (string, error) {
	r, err := Hide(payload, coverText)
	if err != nil {
		return "", err
	}
	return r.Text, nil
}

// Hide is Embed with embedding statistics.
func Hide(payload []byte, coverText string) (*Result, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, len(payload), MaxPayload)
	}

	res := &Result{}
	base := strings.Fields(coverText)
	capacity := countSlots(base)
	if capacity == 0 {
		base = strings.Fields(DefaultCoverText)
		capacity = countSlots(base)
		res.UsedDefaultCover = true
	}

	totalBits := headerBits + 8*len(payload)
	needed := (totalBits + bitsPerWord - 1) / bitsPerWord
	res.Repetitions = max(1, (needed+capacity-1)/capacity)
	if size := textSize(base, capacity) * res.Repetitions; size > MaxTextBytes {
		return nil, fmt.Errorf("%w: stego text would be %d bytes after %d repetitions, limit %d",
			ErrPayloadTooLarge, size, res.Repetitions, MaxTextBytes)
	}

	words := make([]string, 0, len(base)*res.Repetitions)
	for range res.Repetitions {
		words = append(words, base...)
	}

	bits := newBitReader(payload)
	for i, w := range words {
		if bits.pos >= totalBits {
			break
		}
		prefix, core, suffix := splitWord(w)
		s, ok := vocabulary[strings.ToLower(core)]
		if !ok {
			continue
		}
		v := bits.next2()
		words[i] = prefix + matchCase(groups[s.group][v], core) + suffix
		res.WordsUsed++
	}
	res.BitsEmbedded = bits.pos
	res.Text = strings.Join(words, " ")
	return res, nil
}

// Extract recovers the payload hidden by Embed.
func Extract(stegoText string) ([]byte, error) {
	var bits bitWriter
	for _, w := range strings.Fields(stegoText) {
		_, core, _ := splitWord(w)
		s, ok := vocabulary[strings.ToLower(core)]
		if !ok {
			continue
		}
		bits.add2(s.index)
	}

	if bits.n < headerBits {
		return nil, fmt.Errorf("%w: only %d bits present, header needs %d", ErrCorruptedCarrier, bits.n, headerBits)
	}
	n := bits.uint32At(0)
	if n > MaxPayload || int(n)*8 > bits.n-headerBits {
		return nil, fmt.Errorf("%w: header declares %d bytes, %d bits available",
			ErrCorruptedCarrier, n, bits.n-headerBits)
	}
	return bits.bytesAt(headerBits, int(n)), nil
}

// Capacity returns how many payload bytes coverText can carry without repetition.
func Capacity(coverText string) int {
	bits := countSlots(strings.Fields(coverText))*bitsPerWord - headerBits
	if bits < 0 {
		return 0
	}
	return bits / 8
}

// textSize is an upper bound on the joined length of one repetition of
// words after substitution.
func textSize(words []string, slots int) int {
	n := slots * longestSynonym
	for _, w := range words {
		n += len(w) + 1
	}
	return n
}

func countSlots(words []string) int {
	n := 0
	for _, w := range words {
		_, core, _ := splitWord(w)
		if _, ok := vocabulary[strings.ToLower(core)]; ok {
			n++
		}
	}
	return n
}

// splitWord separates leading and trailing non-letters from the word core.
// A core containing anything but letters is never substitutable.
func splitWord(w string) (prefix, core, suffix string) {
	start := strings.IndexFunc(w, unicode.IsLetter)
	if start < 0 {
		return w, "", ""
	}
	end := strings.LastIndexFunc(w, unicode.IsLetter)
	_, size := utf8.DecodeRuneInString(w[end:])
	end += size

	core = w[start:end]
	if strings.IndexFunc(core, func(r rune) bool { return !unicode.IsLetter(r) }) >= 0 {
		return w, "", ""
	}
	return w[:start], core, w[end:]
}

// matchCase capitalizes word when original starts with an upper-case letter.
func matchCase(word, original string) string {
	r, _ := utf8.DecodeRuneInString(original)
	if !unicode.IsUpper(r) {
		return word
	}
	return strings.ToUpper(word[:1]) + word[1:]
}

// bitReader yields header then payload bits, two at a time, MSB first.
type bitReader struct {
	data []byte
	pos  int
}

func newBitReader(payload []byte) *bitReader {
	data := make([]byte, 4+len(payload))
	n := uint32(len(payload))
	data[0], data[1], data[2], data[3] = byte(n>>24), byte(n>>16), byte(n>>8), byte(n)
	copy(data[4:], payload)
	return &bitReader{data: data}
}

func (r *bitReader) next2() int {
	b := r.data[r.pos/8]
	shift := 6 - r.pos%8
	r.pos += 2
	return int(b>>uint(shift)) & 0x3
}

// bitWriter accumulates 2-bit values MSB first.
type bitWriter struct {
	data []byte
	n    int
}

func (w *bitWriter) add2(v int) {
	if w.n%8 == 0 {
		w.data = append(w.data, 0)
	}
	shift := 6 - w.n%8
	w.data[len(w.data)-1] |= byte(v&0x3) << uint(shift)
	w.n += 2
}

func (w *bitWriter) uint32At(bitOff int) uint32 {
	b := w.data[bitOff/8:]
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func (w *bitWriter) bytesAt(bitOff, n int) []byte {
	out := make([]byte, n)
	copy(out, w.data[bitOff/8:bitOff/8+n])
	return out
}
