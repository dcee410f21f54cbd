// Package tokenizer provides the token codecs used to budget chunks.
package tokenizer

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktokenloader "github.com/pkoukk/tiktoken-go-loader"
)

// Tokenizer encodes text to token ids and back. Decode(Encode(s)) == s for
// valid UTF-8 input.
type Tokenizer interface {
	Name() string
	Encode(text string) []int
	Decode(tokens []int) string
}

// New returns the tokenizer named by kind ("tiktoken" or "word").
func New(kind, encoding string) (Tokenizer, error) {
	switch kind {
	case "tiktoken", "":
		return NewTiktoken(encoding)
	case "word":
		return Words(), nil
	default:
		return nil, fmt.Errorf("unknown tokenizer: %s", kind)
	}
}

var loaderOnce sync.Once

// Tiktoken is a BPE tokenizer backed by tiktoken-go with the offline BPE loader.
type Tiktoken struct {
	encoding string
	enc      *tiktoken.Tiktoken
}

// NewTiktoken loads the named encoding, "cl100k_base" if empty.
func NewTiktoken(encoding string) (*Tiktoken, error) {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktokenloader.NewOfflineLoader())
	})
	if encoding == "" {
		encoding = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %s: %w", encoding, err)
	}
	return &Tiktoken{encoding: encoding, enc: enc}, nil
}

// Name returns the encoding name.
func (t *Tiktoken) Name() string { return "tiktoken/" + t.encoding }

// Encode returns the BPE token ids of text. Special tokens are treated as plain text.
func (t *Tiktoken) Encode(text string) []int { return t.enc.EncodeOrdinary(text) }

// Decode maps token ids back to text.
func (t *Tiktoken) Decode(tokens []int) string { return t.enc.Decode(tokens) }

// Word splits text into pieces of leading whitespace plus one run of
// non-space characters. Pieces are interned into a vocabulary shared by
// every user of Words(), so ids are stable for the life of the process.
type Word struct {
	mu     sync.RWMutex
	ids    map[string]int
	pieces []string
}

var (
	wordPiece = regexp.MustCompile(`\s*\S+|\s+`)

	sharedWords     *Word
	sharedWordsOnce sync.Once
)

// Words returns the process-wide word tokenizer.
func Words() *Word {
	sharedWordsOnce.Do(func() { sharedWords = NewWord() })
	return sharedWords
}

// NewWord returns a word tokenizer with its own vocabulary.
func NewWord() *Word {
	return &Word{ids: make(map[string]int)}
}

// Name returns the tokenizer name.
func (w *Word) Name() string { return "word" }

// Encode interns every piece of text and returns their ids.
func (w *Word) Encode(text string) []int {
	pieces := wordPiece.FindAllString(text, -1)
	if len(pieces) == 0 {
		return nil
	}
	out := make([]int, len(pieces))
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, p := range pieces {
		id, ok := w.ids[p]
		if !ok {
			id = len(w.pieces)
			w.ids[p] = id
			w.pieces = append(w.pieces, p)
		}
		out[i] = id
	}
	return out
}

// Decode concatenates the pieces for tokens. Unknown ids are skipped.
func (w *Word) Decode(tokens []int) string {
	var b strings.Builder
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, id := range tokens {
		if id >= 0 && id < len(w.pieces) {
			b.WriteString(w.pieces[id])
		}
	}
	return b.String()
}
