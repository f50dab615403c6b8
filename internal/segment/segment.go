// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package segment splits text into word-like tokens for shingling.
//
// Whitespace-delimited scripts are split on spaces and punctuation. Thai,
// which is written without spaces, is split by greedy longest matching
// against a Dictionary; runes that start no dictionary word become single
// tokens. Han, Hiragana and Katakana runes are always single tokens.
//
// The dictionary is loaded once by the caller and passed to New; there is
// no package-level state.
package segment

import (
	"bufio"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/unicode/norm"
)

// Dictionary is an immutable word list.
type Dictionary struct {
	words  map[string]struct{}
	maxLen int
}

// NewDictionary builds a dictionary from words. Blank entries are ignored.
func NewDictionary(words []string) *Dictionary {
	d := &Dictionary{words: make(map[string]struct{}, len(words))}
	for _, w := range words {
		w = norm.NFC.String(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		d.words[w] = struct{}{}
		if n := utf8.RuneCountInString(w); n > d.maxLen {
			d.maxLen = n
		}
	}
	return d
}

// LoadDictionary reads a word list with one word per line. Lines starting
// with '#' are comments.
func LoadDictionary(path string) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dictionary %s: %w", path, err)
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading dictionary %s: %w", path, err)
	}
	return NewDictionary(words), nil
}

// Len returns the number of words.
func (d *Dictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.words)
}

// Digest identifies the word set independent of load order.
func (d *Dictionary) Digest() string {
	if d == nil {
		d = NewDictionary(nil)
	}
	words := make([]string, 0, len(d.words))
	for w := range d.words {
		words = append(words, w)
	}
	slices.Sort(words)
	h := xxhash.New()
	for _, w := range words {
		h.WriteString(w)
		h.Write([]byte{'\n'})
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

func (d *Dictionary) contains(w string) bool {
	_, ok := d.words[w]
	return ok
}

// Segmenter tokenizes text. It is safe for concurrent use.
type Segmenter struct {
	dict *Dictionary
}

// New returns a segmenter backed by dict. A nil dict splits Thai runs
// into single runes.
func New(dict *Dictionary) *Segmenter {
	if dict == nil {
		dict = NewDictionary(nil)
	}
	return &Segmenter{dict: dict}
}

// Fingerprint names the segmentation this segmenter produces. Signatures
// are only comparable when built with the same fingerprint.
func (s *Segmenter) Fingerprint() string {
	return "dict:" + s.dict.Digest()
}

type runeClass int

const (
	classSpace runeClass = iota
	classWord
	classThai
	classIdeograph
	classSymbol
)

func classify(r rune) runeClass {
	switch {
	case unicode.IsSpace(r):
		return classSpace
	case unicode.In(r, unicode.Thai):
		if unicode.IsPunct(r) {
			return classSymbol
		}
		return classThai
	case unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana):
		return classIdeograph
	case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r):
		return classWord
	default:
		return classSymbol
	}
}

// Segment returns the ordered tokens of text. Whitespace is dropped.
func (s *Segmenter) Segment(text string) []string {
	runes := []rune(norm.NFC.String(text))
	var tokens []string

	for i := 0; i < len(runes); {
		c := classify(runes[i])
		switch c {
		case classSpace:
			i++
		case classSymbol, classIdeograph:
			tokens = append(tokens, string(runes[i]))
			i++
		default:
			j := i + 1
			for j < len(runes) && classify(runes[j]) == c {
				j++
			}
			if c == classThai {
				tokens = s.segmentThai(runes[i:j], tokens)
			} else {
				tokens = append(tokens, string(runes[i:j]))
			}
			i = j
		}
	}
	return tokens
}

// segmentThai appends the longest-match split of run to tokens.
func (s *Segmenter) segmentThai(run []rune, tokens []string) []string {
	for i := 0; i < len(run); {
		n := 1
		limit := min(s.dict.maxLen, len(run)-i)
		for l := limit; l > 1; l-- {
			if s.dict.contains(string(run[i : i+l])) {
				n = l
				break
			}
		}
		tokens = append(tokens, string(run[i:i+n]))
		i += n
	}
	return tokens
}
